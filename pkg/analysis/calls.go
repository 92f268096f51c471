package analysis

import "github.com/Aloecraft-org/diluvium/pkg/bytecode"

const (
	// callLookback bounds the callee-register trace behind a call.
	callLookback = 32
	// fieldSourceLookback bounds the secondary scan for the table register
	// feeding a GETFIELD.
	fieldSourceLookback = 16
)

// stringConstant returns the string at constant-pool index idx, or false
// when the index is out of range or the slot is not a string.
func stringConstant(p *bytecode.Proto, idx int) (string, bool) {
	if idx < 0 || idx >= len(p.Constants) {
		return "", false
	}
	k := p.Constants[idx]
	if k.Type != bytecode.ConstString {
		return "", false
	}
	return k.Str, true
}

func upvalueName(p *bytecode.Proto, idx int) string {
	if idx < len(p.Upvalues) && p.Upvalues[idx].Name != "" {
		return p.Upvalues[idx].Name
	}
	return "?"
}

// resolveCallee recovers how the callee register of the call at callPC was
// loaded, walking back through the recognized load grammar:
//
//	GETTABUP upv=0, K[C]=string  → global, name = K[C]
//	GETTABUP upv≠0, K[C]=string  → field,  name = upvname.K[C]
//	GETFIELD     -, K[C]=string  → field,  name = src.K[C]
//	SELF         -, K[C]=string  → method, name = K[C]
//	MOVE / GETUPVAL / CLOSURE    → local, no name
//	anything else / horizon      → unresolved, no name
func resolveCallee(p *bytecode.Proto, callPC, calleeReg int) (CallKind, string) {
	limit := callPC - callLookback
	if limit < 0 {
		limit = 0
	}
	for i := callPC - 1; i >= limit; i-- {
		ins := p.Code[i]
		if ins.A() != calleeReg {
			continue
		}

		switch ins.Opcode() {
		case bytecode.OpGetTabUp:
			field, ok := stringConstant(p, ins.C())
			if !ok {
				return CallUnknown, ""
			}
			if upv := ins.B(); upv != 0 {
				return CallField, upvalueName(p, upv) + "." + field
			}
			// Direct _ENV access.
			return CallGlobal, field

		case bytecode.OpGetField:
			field, ok := stringConstant(p, ins.C())
			if !ok {
				return CallUnknown, ""
			}
			return CallField, fieldSourceName(p, i, ins.B()) + "." + field

		case bytecode.OpSelf:
			field, ok := stringConstant(p, ins.C())
			if !ok {
				return CallUnknown, ""
			}
			return CallMethod, field

		case bytecode.OpMove, bytecode.OpGetUpval, bytecode.OpClosure:
			return CallLocal, ""

		default:
			return CallUnknown, ""
		}
	}
	return CallUnknown, ""
}

// fieldSourceName names the table register feeding a GETFIELD at pc by
// looking a little further back for the GETTABUP that loaded it. "?" when
// nothing matches or the register was overwritten first.
func fieldSourceName(p *bytecode.Proto, pc, srcReg int) string {
	limit := pc - fieldSourceLookback
	if limit < 0 {
		limit = 0
	}
	for j := pc - 1; j >= limit; j-- {
		prev := p.Code[j]
		if prev.Opcode() == bytecode.OpGetTabUp && prev.A() == srcReg {
			if s, ok := stringConstant(p, prev.C()); ok {
				return s
			}
			return "?"
		}
		if prev.A() == srcReg {
			break // overwritten, give up
		}
	}
	return "?"
}
