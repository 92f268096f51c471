package analysis

import "github.com/Aloecraft-org/diluvium/pkg/bytecode"

// regSource is the verdict of the generic backward writer scan.
type regSource int

const (
	regSourceIndeterminate regSource = iota // lookback horizon exhausted
	regSourceClosure                        // nearest writer is CLOSURE
	regSourceOther                          // nearest writer is anything else
)

// writerLookback bounds the generic writer scan.
const writerLookback = 16

// writesRegisterA reports whether op writes R[A]. CLOSURE is deliberately
// excluded; callers that care about it check it first.
func writesRegisterA(op bytecode.OpCode) bool {
	switch op {
	case bytecode.OpMove, bytecode.OpLoadI, bytecode.OpLoadF,
		bytecode.OpLoadK, bytecode.OpLoadKX, bytecode.OpLoadFalse,
		bytecode.OpLFalseSkip, bytecode.OpLoadTrue, bytecode.OpLoadNil,
		bytecode.OpGetUpval, bytecode.OpGetTabUp, bytecode.OpGetTable,
		bytecode.OpGetI, bytecode.OpGetField, bytecode.OpNewTable,
		bytecode.OpSelf,
		bytecode.OpAddI, bytecode.OpAddK, bytecode.OpSubK, bytecode.OpMulK,
		bytecode.OpModK, bytecode.OpPowK, bytecode.OpDivK, bytecode.OpIDivK,
		bytecode.OpBAndK, bytecode.OpBOrK, bytecode.OpBXorK,
		bytecode.OpShrI, bytecode.OpShlI,
		bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpMod,
		bytecode.OpPow, bytecode.OpDiv, bytecode.OpIDiv, bytecode.OpBAnd,
		bytecode.OpBOr, bytecode.OpBXor, bytecode.OpShl, bytecode.OpShr,
		bytecode.OpMMBin, bytecode.OpMMBinI, bytecode.OpMMBinK,
		bytecode.OpUnm, bytecode.OpBNot, bytecode.OpNot, bytecode.OpLen,
		bytecode.OpConcat,
		bytecode.OpCall, bytecode.OpTailCall, bytecode.OpVararg:
		return true
	}
	return false
}

// findRegSource walks back from pc looking for the nearest instruction
// that wrote reg, within the lookback horizon. The second result is the pc
// of the writer, or -1 when the horizon was exhausted.
func findRegSource(p *bytecode.Proto, pc, reg int) (regSource, int) {
	limit := pc - writerLookback
	if limit < 0 {
		limit = 0
	}
	for i := pc - 1; i >= limit; i-- {
		ins := p.Code[i]
		op := ins.Opcode()
		if op == bytecode.OpClosure && ins.A() == reg {
			return regSourceClosure, i
		}
		if writesRegisterA(op) && ins.A() == reg {
			return regSourceOther, i
		}
	}
	return regSourceIndeterminate, -1
}

// findNewTableForReg walks back from pc, unbounded, for the NEWTABLE that
// produced reg. Table mutations (SETFIELD, SETTABLE, SETI, SETLIST) take
// the table register in A without reassigning it, so the scan continues
// past them; any other writer means the register was reassigned and the
// scan stops. Returns the pc of the NEWTABLE, or -1.
//
// This distinguishes
//
//	t = {}; t.x = 1; return t   -- found
//	t = {}; t = other(); return t -- reassigned, not found
func findNewTableForReg(p *bytecode.Proto, pc, reg int) int {
	for i := pc - 1; i >= 0; i-- {
		ins := p.Code[i]
		op := ins.Opcode()
		a := ins.A()

		if op == bytecode.OpNewTable && a == reg {
			return i
		}

		switch op {
		case bytecode.OpSetField, bytecode.OpSetTable,
			bytecode.OpSetI, bytecode.OpSetList:
			if a == reg {
				continue
			}
		}

		if (writesRegisterA(op) || op == bytecode.OpClosure) && a == reg {
			return -1
		}
	}
	return -1
}
