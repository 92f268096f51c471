// Package luac reads and writes the Lua 5.4 precompiled binary chunk
// format (the output of luac). It is the input boundary of the analyzer:
// it turns an opaque chunk file into the prototype graph the engine
// consumes, and performs the only validation the pipeline does.
package luac

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/Aloecraft-org/diluvium/pkg/bytecode"
)

const (
	signature = "\x1bLua"
	luacData  = "\x19\x93\r\n\x1a\n"

	version = 0x54 // Lua 5.4
	format  = 0    // official format

	instructionSize = 4
	integerSize     = 8
	numberSize      = 8

	// Endianness/representation probes written after the header.
	testInt = 0x5678
	testNum = 370.5
)

// Constant-pool variant tags (type | variant<<4).
const (
	tagNil      = 0x00
	tagFalse    = 0x01
	tagTrue     = 0x11
	tagFloat    = 0x03
	tagInt      = 0x13
	tagShortStr = 0x04
	tagLongStr  = 0x14
)

// Undump decodes a binary chunk into its outermost prototype.
func Undump(chunk []byte) (*bytecode.Proto, error) {
	r := &reader{buf: chunk}
	if err := r.header(); err != nil {
		return nil, err
	}
	r.byte() // upvalue count of the enclosing main closure
	p := r.function("")
	if r.err != nil {
		return nil, fmt.Errorf("luac: %w", r.err)
	}
	return p, nil
}

type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// unsigned reads the variable-length big-endian encoding used for sizes
// and counts: seven bits per byte, high bit set on the final byte.
func (r *reader) unsigned() uint64 {
	var x uint64
	for {
		b := r.byte()
		if r.err != nil {
			return 0
		}
		x = x<<7 | uint64(b&0x7f)
		if b&0x80 != 0 {
			return x
		}
	}
}

func (r *reader) int() int { return int(r.unsigned()) }

// count reads an element count and rejects values the remaining input
// cannot possibly hold, given the minimum encoded size of one element.
// Counts are trusted for preallocation, so a hostile varint here would
// otherwise drive an arbitrarily large make.
func (r *reader) count(minSize int) int {
	n := r.unsigned()
	if r.err != nil {
		return 0
	}
	if rem := uint64(len(r.buf) - r.pos); n > rem/uint64(minSize) {
		r.fail("luac: count %d exceeds remaining input", n)
		return 0
	}
	return int(n)
}

func (r *reader) integer() int64 {
	b := r.bytes(integerSize)
	if r.err != nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *reader) number() float64 {
	b := r.bytes(numberSize)
	if r.err != nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// string reads a length-prefixed string; size 0 encodes the absent string.
func (r *reader) string() string {
	size := r.unsigned()
	if r.err != nil || size == 0 {
		return ""
	}
	if size-1 > uint64(len(r.buf)-r.pos) {
		r.fail("luac: string size %d exceeds remaining input", size-1)
		return ""
	}
	return string(r.bytes(int(size) - 1))
}

func (r *reader) header() error {
	if string(r.bytes(len(signature))) != signature {
		r.fail("luac: bad signature (not a precompiled chunk)")
	}
	if v := r.byte(); r.err == nil && v != version {
		r.fail("luac: version mismatch: got %#x, want %#x", v, version)
	}
	if f := r.byte(); r.err == nil && f != format {
		r.fail("luac: format mismatch: got %d, want %d", f, format)
	}
	if string(r.bytes(len(luacData))) != luacData && r.err == nil {
		r.fail("luac: corrupted chunk header")
	}
	if s := r.byte(); r.err == nil && s != instructionSize {
		r.fail("luac: instruction size %d unsupported", s)
	}
	if s := r.byte(); r.err == nil && s != integerSize {
		r.fail("luac: integer size %d unsupported", s)
	}
	if s := r.byte(); r.err == nil && s != numberSize {
		r.fail("luac: number size %d unsupported", s)
	}
	if i := r.integer(); r.err == nil && i != testInt {
		r.fail("luac: integer format mismatch (endianness)")
	}
	if n := r.number(); r.err == nil && n != testNum {
		r.fail("luac: float format mismatch")
	}
	return r.err
}

// function reads one prototype; nested prototypes inherit the parent
// source when theirs is absent.
func (r *reader) function(parentSource string) *bytecode.Proto {
	p := &bytecode.Proto{}

	p.Source = r.string()
	if p.Source == "" {
		p.Source = parentSource
	}
	p.LineDefined = r.int()
	p.LastLineDefined = r.int()
	p.NumParams = int(r.byte())
	p.IsVararg = r.byte() != 0
	p.MaxStackSize = int(r.byte())

	// Code.
	n := r.count(instructionSize)
	if r.err != nil {
		return p
	}
	p.Code = make([]bytecode.Instruction, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		b := r.bytes(instructionSize)
		if r.err != nil {
			break
		}
		p.Code = append(p.Code, bytecode.Instruction(binary.LittleEndian.Uint32(b)))
	}

	// Constants.
	n = r.count(1)
	for i := 0; i < n && r.err == nil; i++ {
		p.Constants = append(p.Constants, r.constant())
	}

	// Upvalues.
	n = r.count(3)
	for i := 0; i < n && r.err == nil; i++ {
		p.Upvalues = append(p.Upvalues, bytecode.Upvalue{
			InStack: r.byte() != 0,
			Index:   int(r.byte()),
			Kind:    int(r.byte()),
		})
	}

	// Nested prototypes.
	n = r.count(1)
	for i := 0; i < n && r.err == nil; i++ {
		p.Protos = append(p.Protos, r.function(p.Source))
	}

	r.debug(p)
	return p
}

func (r *reader) constant() bytecode.Constant {
	switch tag := r.byte(); tag {
	case tagNil:
		return bytecode.Constant{Type: bytecode.ConstNil}
	case tagFalse:
		return bytecode.Constant{Type: bytecode.ConstBool}
	case tagTrue:
		return bytecode.Constant{Type: bytecode.ConstBool, Bool: true}
	case tagFloat:
		return bytecode.Constant{Type: bytecode.ConstFloat, Float: r.number()}
	case tagInt:
		return bytecode.Constant{Type: bytecode.ConstInt, Int: r.integer()}
	case tagShortStr, tagLongStr:
		return bytecode.Constant{Type: bytecode.ConstString, Str: r.string()}
	default:
		r.fail("luac: unknown constant tag %#x", tag)
		return bytecode.Constant{}
	}
}

func (r *reader) debug(p *bytecode.Proto) {
	// Per-instruction line deltas.
	n := r.count(1)
	for i := 0; i < n && r.err == nil; i++ {
		p.LineInfo = append(p.LineInfo, int8(r.byte()))
	}

	// Absolute {pc, line} checkpoints.
	n = r.count(2)
	for i := 0; i < n && r.err == nil; i++ {
		p.AbsLineInfo = append(p.AbsLineInfo, bytecode.AbsLine{
			PC:   r.int(),
			Line: r.int(),
		})
	}

	// Local variables.
	n = r.count(3)
	for i := 0; i < n && r.err == nil; i++ {
		p.LocVars = append(p.LocVars, bytecode.LocVar{
			Name:    r.string(),
			StartPC: r.int(),
			EndPC:   r.int(),
		})
	}

	// Upvalue names, filled into the records read earlier.
	n = r.count(1)
	for i := 0; i < n && r.err == nil; i++ {
		name := r.string()
		if i < len(p.Upvalues) {
			p.Upvalues[i].Name = name
		}
	}
}
