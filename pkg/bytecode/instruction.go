package bytecode

// Instruction is one 32-bit encoded instruction word.
//
// Lua 5.4 packs operands as (low bit first):
//
//	iABC:  op:7  A:8  k:1  B:8  C:8
//	iABx:  op:7  A:8  Bx:17
//	iAsBx: op:7  A:8  sBx:17 (excess-K)
//	iAx:   op:7  Ax:25
type Instruction uint32

const (
	sizeOp = 7
	sizeA  = 8
	sizeB  = 8
	sizeC  = 8
	sizeBx = sizeC + sizeB + 1
	sizeAx = sizeBx + sizeA

	posOp = 0
	posA  = posOp + sizeOp
	posK  = posA + sizeA
	posB  = posK + 1
	posC  = posB + sizeB
	posBx = posK
	posAx = posA
)

// MaxArgBx is the largest value representable in the Bx field.
const MaxArgBx = 1<<sizeBx - 1

// OffsetSBx is the excess applied to the signed sBx field.
const OffsetSBx = MaxArgBx >> 1

func mask(n, p uint) Instruction { return (1<<n - 1) << p }

// Opcode extracts the operation code.
func (i Instruction) Opcode() OpCode { return OpCode(i & mask(sizeOp, posOp)) }

// A extracts the A register operand.
func (i Instruction) A() int { return int(i >> posA & (1<<sizeA - 1)) }

// B extracts the B operand.
func (i Instruction) B() int { return int(i >> posB & (1<<sizeB - 1)) }

// C extracts the C operand.
func (i Instruction) C() int { return int(i >> posC & (1<<sizeC - 1)) }

// K extracts the single-bit k flag.
func (i Instruction) K() bool { return i>>posK&1 != 0 }

// Bx extracts the unsigned 17-bit Bx operand.
func (i Instruction) Bx() int { return int(i >> posBx & (1<<sizeBx - 1)) }

// SBx extracts the signed 17-bit sBx operand.
func (i Instruction) SBx() int { return i.Bx() - OffsetSBx }

// Ax extracts the 25-bit Ax operand (EXTRAARG).
func (i Instruction) Ax() int { return int(i >> posAx & (1<<sizeAx - 1)) }

// ABC builds an iABC instruction with the k flag clear.
func ABC(op OpCode, a, b, c int) Instruction {
	return ABCk(op, a, b, c, false)
}

// ABCk builds an iABC instruction.
func ABCk(op OpCode, a, b, c int, k bool) Instruction {
	i := Instruction(op) |
		Instruction(a)<<posA |
		Instruction(b)<<posB |
		Instruction(c)<<posC
	if k {
		i |= 1 << posK
	}
	return i
}

// ABx builds an iABx instruction.
func ABx(op OpCode, a, bx int) Instruction {
	return Instruction(op) | Instruction(a)<<posA | Instruction(bx)<<posBx
}

// ASBx builds an iAsBx instruction.
func ASBx(op OpCode, a, sbx int) Instruction {
	return ABx(op, a, sbx+OffsetSBx)
}

// AAx builds an iAx instruction.
func AAx(op OpCode, ax int) Instruction {
	return Instruction(op) | Instruction(ax)<<posAx
}
