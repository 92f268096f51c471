package bytecode

// OpCode enumerates Lua 5.4 bytecode operations, in the numbering used by
// the Diluvium fork. Keep values in sync with the fork's lopcodes.h.
type OpCode uint8

const (
	OpMove OpCode = iota
	OpLoadI
	OpLoadF
	OpLoadK
	OpLoadKX
	OpLoadFalse
	OpLFalseSkip
	OpLoadTrue
	OpLoadNil
	OpGetUpval
	OpSetUpval
	OpGetTabUp
	OpGetTable
	OpGetI
	OpGetField
	OpSetTabUp
	OpSetTable
	OpSetI
	OpSetField
	OpNewTable
	OpSelf
	OpAddI
	OpAddK
	OpSubK
	OpMulK
	OpModK
	OpPowK
	OpDivK
	OpIDivK
	OpBAndK
	OpBOrK
	OpBXorK
	OpShrI
	OpShlI
	OpAdd
	OpSub
	OpMul
	OpMod
	OpPow
	OpDiv
	OpIDiv
	OpBAnd
	OpBOr
	OpBXor
	OpShl
	OpShr
	OpMMBin
	OpMMBinI
	OpMMBinK
	OpUnm
	OpBNot
	OpNot
	OpLen
	OpConcat
	OpClose
	OpTbc
	OpJmp
	OpEq
	OpLt
	OpLe
	OpEqK
	OpEqI
	OpLtI
	OpLeI
	OpGtI
	OpGeI
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpReturn0
	OpReturn1
	OpForLoop
	OpForPrep
	OpTForPrep
	OpTForCall
	OpTForLoop
	OpSetList
	OpClosure
	OpVararg
	OpVarargPrep
	OpExtraArg

	// OpTwoQ is the Diluvium fork's null-coalescing operator (a ?? b).
	OpTwoQ
)

var opNames = [...]string{
	"MOVE", "LOADI", "LOADF", "LOADK", "LOADKX", "LOADFALSE", "LFALSESKIP",
	"LOADTRUE", "LOADNIL", "GETUPVAL", "SETUPVAL", "GETTABUP", "GETTABLE",
	"GETI", "GETFIELD", "SETTABUP", "SETTABLE", "SETI", "SETFIELD",
	"NEWTABLE", "SELF", "ADDI", "ADDK", "SUBK", "MULK", "MODK", "POWK",
	"DIVK", "IDIVK", "BANDK", "BORK", "BXORK", "SHRI", "SHLI", "ADD", "SUB",
	"MUL", "MOD", "POW", "DIV", "IDIV", "BAND", "BOR", "BXOR", "SHL", "SHR",
	"MMBIN", "MMBINI", "MMBINK", "UNM", "BNOT", "NOT", "LEN", "CONCAT",
	"CLOSE", "TBC", "JMP", "EQ", "LT", "LE", "EQK", "EQI", "LTI", "LEI",
	"GTI", "GEI", "TEST", "TESTSET", "CALL", "TAILCALL", "RETURN", "RETURN0",
	"RETURN1", "FORLOOP", "FORPREP", "TFORPREP", "TFORCALL", "TFORLOOP",
	"SETLIST", "CLOSURE", "VARARG", "VARARGPREP", "EXTRAARG", "2Q",
}

// String returns the mnemonic for the opcode.
func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}
