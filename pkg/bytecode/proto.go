// Package bytecode models compiled Lua 5.4 function prototypes as produced
// by the Diluvium compiler. The analyzer treats these structures as
// immutable, already-validated input; nothing in this package executes code.
package bytecode

// ConstType tags a constant-pool entry.
type ConstType uint8

const (
	ConstNil ConstType = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
)

// Constant is one constant-pool slot. Exactly one payload field is
// meaningful, selected by Type.
type Constant struct {
	Type  ConstType
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// Upvalue describes a variable captured from an enclosing scope.
// Slot 0 conventionally holds _ENV, the ambient global table.
type Upvalue struct {
	Name    string // "" when debug info is stripped
	InStack bool
	Index   int
	Kind    int
}

// LocVar is a named local variable with its live pc range. The first
// NumParams entries name the parameters.
type LocVar struct {
	Name    string
	StartPC int
	EndPC   int
}

// AbsLine is one {pc, line} checkpoint of the absolute line-info encoding.
type AbsLine struct {
	PC   int
	Line int
}

// Proto is one compiled function body: code, constants, nested prototypes,
// and debug info. The outermost chunk is itself a Proto.
type Proto struct {
	Source          string
	LineDefined     int
	LastLineDefined int
	NumParams       int
	IsVararg        bool
	MaxStackSize    int

	Code      []Instruction
	Constants []Constant
	Upvalues  []Upvalue
	Protos    []*Proto

	// Debug sections; any of these may be empty in stripped chunks.
	LineInfo    []int8 // per-instruction signed line deltas
	AbsLineInfo []AbsLine
	LocVars     []LocVar
}
