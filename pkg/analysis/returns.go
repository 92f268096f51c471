package analysis

import "github.com/Aloecraft-org/diluvium/pkg/bytecode"

// returnLookback bounds the value-source scan behind a single-value return.
const returnLookback = 24

// classifyReturn classifies what the return instruction at pc hands back.
func classifyReturn(p *bytecode.Proto, pc int) ReturnKind {
	ins := p.Code[pc]

	switch ins.Opcode() {
	case bytecode.OpReturn0:
		return ReturnVoid

	case bytecode.OpReturn1:
		return classifySingleReturn(p, pc, ins.A())

	default: // OpReturn: A = first register, B = count+1 (0 = variable)
		b := ins.B()
		switch {
		case b == 1:
			return ReturnVoid
		case b == 0:
			return ReturnMulti
		case b == 2:
			// Single value; only the table-origin scan applies here. The
			// compiler emits RETURN1 for the common single-value case, so
			// anything else stays unknown.
			if findNewTableForReg(p, pc, ins.A()) >= 0 {
				return ReturnTable
			}
			return ReturnUnknown
		default:
			return ReturnMulti
		}
	}
}

// classifySingleReturn traces the returned register back to its producer.
func classifySingleReturn(p *bytecode.Proto, pc, reg int) ReturnKind {
	// Tables first: the dedicated scan sees through in-place mutations,
	// so this handles NEWTABLE; SETFIELD...; RETURN1 patterns.
	if findNewTableForReg(p, pc, reg) >= 0 {
		return ReturnTable
	}

	limit := pc - returnLookback
	if limit < 0 {
		limit = 0
	}
	for i := pc - 1; i >= limit; i-- {
		prev := p.Code[i]
		if prev.A() != reg {
			continue
		}
		switch prev.Opcode() {
		case bytecode.OpCall, bytecode.OpTailCall:
			return ReturnCall
		case bytecode.OpGetUpval, bytecode.OpGetTabUp,
			bytecode.OpGetTable, bytecode.OpGetField, bytecode.OpGetI:
			return ReturnUpvalue
		case bytecode.OpClosure:
			// A closure is not a terminal value kind here.
			return ReturnUnknown
		case bytecode.OpLoadK, bytecode.OpLoadI, bytecode.OpLoadF,
			bytecode.OpLoadTrue, bytecode.OpLoadFalse:
			return ReturnConstant
		}
		// First instruction touching reg in the A slot decides.
		break
	}
	return ReturnUnknown
}

// mergeReturnKind folds one return site's verdict into the function-level
// verdict. UNKNOWN and VOID are weak: any strong kind replaces them. Two
// different strong kinds make the verdict MIXED, permanently. The
// compiler's trailing RETURN0 guard must never clobber a verdict derived
// from a real return site, so VOID is only taken while no strong site has
// been seen; hadReal tracks that across sites.
func mergeReturnKind(fi *FunctionInfo, kind ReturnKind, hadReal *bool) {
	if fi.ReturnKind != ReturnMixed {
		curWeak := fi.ReturnKind == ReturnUnknown || fi.ReturnKind == ReturnVoid
		newWeak := kind == ReturnUnknown || kind == ReturnVoid

		switch {
		case curWeak && !newWeak:
			fi.ReturnKind = kind
		case !curWeak && !newWeak && kind != fi.ReturnKind:
			fi.ReturnKind = ReturnMixed
		case fi.ReturnKind == ReturnUnknown && kind == ReturnVoid && !*hadReal:
			fi.ReturnKind = ReturnVoid
		}
	}
	if kind != ReturnUnknown && kind != ReturnVoid {
		*hadReal = true
	}
}
