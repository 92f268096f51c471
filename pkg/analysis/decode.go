package analysis

import "github.com/Aloecraft-org/diluvium/pkg/bytecode"

// HashSize decodes the NEWTABLE hash-part size hint from argument B:
// 0 means no hash part, otherwise the part holds 1<<(b-1) slots.
func HashSize(b int) int {
	if b == 0 {
		return 0
	}
	return 1 << (b - 1)
}

// ArraySize decodes the NEWTABLE array-part size hint at pc. When the k
// flag is set the true size lives partly in a mandatory EXTRAARG word at
// pc+1 (high bits from EXTRAARG, low 8 bits from C); a malformed stream
// without the extension word falls back to the raw C value.
func ArraySize(p *bytecode.Proto, pc int) int {
	ins := p.Code[pc]
	c := ins.C()
	if !ins.K() {
		return c
	}
	if pc+1 < len(p.Code) {
		extra := p.Code[pc+1]
		if extra.Opcode() == bytecode.OpExtraArg {
			return extra.Ax()<<8 | c
		}
	}
	return c
}
