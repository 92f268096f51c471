package analysis

import "github.com/Aloecraft-org/diluvium/pkg/bytecode"

// Shared fixture helpers for building synthetic prototypes.

func strConst(s string) bytecode.Constant {
	return bytecode.Constant{Type: bytecode.ConstString, Str: s}
}

func intConst(i int64) bytecode.Constant {
	return bytecode.Constant{Type: bytecode.ConstInt, Int: i}
}

// envProto builds a chunk-like prototype: vararg, _ENV in upvalue slot 0.
func envProto(code []bytecode.Instruction, constants ...bytecode.Constant) *bytecode.Proto {
	return &bytecode.Proto{
		Source:    "@test.lua",
		IsVararg:  true,
		Code:      code,
		Constants: constants,
		Upvalues:  []bytecode.Upvalue{{Name: "_ENV", InStack: true}},
	}
}
