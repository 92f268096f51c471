package luac

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/Aloecraft-org/diluvium/pkg/bytecode"
)

// Dump serializes a prototype graph back to the binary chunk format.
// Primarily test and fixture support; Undump(Dump(p)) reproduces p.
func Dump(p *bytecode.Proto) []byte {
	w := &writer{}
	w.header()
	w.byte(byte(len(p.Upvalues))) // upvalue count of the main closure
	w.function(p, "")
	return w.buf.Bytes()
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte) { w.buf.WriteByte(b) }

func (w *writer) bytes(b []byte) { w.buf.Write(b) }

// unsigned writes the seven-bits-per-byte size encoding, high bit set on
// the final byte.
func (w *writer) unsigned(x uint64) {
	var tmp [10]byte
	n := 0
	for {
		tmp[n] = byte(x & 0x7f)
		n++
		x >>= 7
		if x == 0 {
			break
		}
	}
	for i := n - 1; i >= 0; i-- {
		b := tmp[i]
		if i == 0 {
			b |= 0x80
		}
		w.byte(b)
	}
}

func (w *writer) int(x int) { w.unsigned(uint64(x)) }

func (w *writer) integer(x int64) {
	var b [integerSize]byte
	binary.LittleEndian.PutUint64(b[:], uint64(x))
	w.bytes(b[:])
}

func (w *writer) number(x float64) {
	var b [numberSize]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
	w.bytes(b[:])
}

func (w *writer) string(s string) {
	if s == "" {
		w.unsigned(0)
		return
	}
	w.unsigned(uint64(len(s) + 1))
	w.bytes([]byte(s))
}

func (w *writer) header() {
	w.bytes([]byte(signature))
	w.byte(version)
	w.byte(format)
	w.bytes([]byte(luacData))
	w.byte(instructionSize)
	w.byte(integerSize)
	w.byte(numberSize)
	w.integer(testInt)
	w.number(testNum)
}

func (w *writer) function(p *bytecode.Proto, parentSource string) {
	if p.Source == parentSource {
		w.string("")
	} else {
		w.string(p.Source)
	}
	w.int(p.LineDefined)
	w.int(p.LastLineDefined)
	w.byte(byte(p.NumParams))
	if p.IsVararg {
		w.byte(1)
	} else {
		w.byte(0)
	}
	w.byte(byte(p.MaxStackSize))

	w.int(len(p.Code))
	for _, ins := range p.Code {
		var b [instructionSize]byte
		binary.LittleEndian.PutUint32(b[:], uint32(ins))
		w.bytes(b[:])
	}

	w.int(len(p.Constants))
	for _, k := range p.Constants {
		w.constant(k)
	}

	w.int(len(p.Upvalues))
	for _, uv := range p.Upvalues {
		if uv.InStack {
			w.byte(1)
		} else {
			w.byte(0)
		}
		w.byte(byte(uv.Index))
		w.byte(byte(uv.Kind))
	}

	w.int(len(p.Protos))
	for _, child := range p.Protos {
		w.function(child, p.Source)
	}

	w.debug(p)
}

func (w *writer) constant(k bytecode.Constant) {
	switch k.Type {
	case bytecode.ConstNil:
		w.byte(tagNil)
	case bytecode.ConstBool:
		if k.Bool {
			w.byte(tagTrue)
		} else {
			w.byte(tagFalse)
		}
	case bytecode.ConstFloat:
		w.byte(tagFloat)
		w.number(k.Float)
	case bytecode.ConstInt:
		w.byte(tagInt)
		w.integer(k.Int)
	case bytecode.ConstString:
		w.byte(tagShortStr)
		w.string(k.Str)
	}
}

func (w *writer) debug(p *bytecode.Proto) {
	w.int(len(p.LineInfo))
	for _, d := range p.LineInfo {
		w.byte(byte(d))
	}

	w.int(len(p.AbsLineInfo))
	for _, al := range p.AbsLineInfo {
		w.int(al.PC)
		w.int(al.Line)
	}

	w.int(len(p.LocVars))
	for _, lv := range p.LocVars {
		w.string(lv.Name)
		w.int(lv.StartPC)
		w.int(lv.EndPC)
	}

	w.int(len(p.Upvalues))
	for _, uv := range p.Upvalues {
		w.string(uv.Name)
	}
}
