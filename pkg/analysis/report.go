package analysis

import "encoding/json"

// LuaVersion is the fork version tag burned into every report.
const LuaVersion = "5.4.7_rc4"

// ReturnKind classifies what a function hands back. Values are emitted as
// integers and must stay stable for downstream schema decoding.
type ReturnKind int

const (
	ReturnUnknown ReturnKind = iota
	ReturnVoid
	ReturnTable
	ReturnCall     // result of a function call
	ReturnUpvalue  // upvalue or table-field load
	ReturnConstant // literal constant
	ReturnMulti    // multiple values / vararg
	ReturnMixed    // different kinds at different return sites
)

// ConstantKind classifies entries in the constant pool.
type ConstantKind int

const (
	ConstantString ConstantKind = iota
	ConstantInteger
	ConstantFloat
	ConstantBool
	ConstantNull
)

// CallKind classifies how a call site reached its callee.
type CallKind int

const (
	CallUnknown CallKind = iota
	CallGlobal           // _ENV.name (GETTABUP upvalue 0)
	CallField            // table.field, one level
	CallMethod           // obj:method (SELF)
	CallLocal            // local variable / register
)

// TableInfo summarizes the shape of a returned table constructor. All
// fields are zero unless the owning function's ReturnKind is ReturnTable.
type TableInfo struct {
	ArraySize        int   `json:"array_size"`
	HashSize         int   `json:"hash_size"`
	EstimatedBytes   int64 `json:"estimated_bytes"`
	ContainsClosures bool  `json:"contains_closures"`
}

// ClosureInfo records one nested function literal that captures upvalues;
// the owning function allocates a closure each time that site runs.
type ClosureInfo struct {
	LineDefined  int `json:"line_defined"`
	UpvalueCount int `json:"upvalue_count"`
}

// ConstantEntry is one typed constant-pool slot. SVal is non-nil only for
// ConstantString; the remaining payload fields are zero-valued otherwise.
type ConstantEntry struct {
	Kind ConstantKind `json:"kind"`
	SVal *string      `json:"s_val"`
	IVal int64        `json:"i_val"`
	FVal float64      `json:"f_val"`
	BVal bool         `json:"b_val"`
}

// CallSite is one CALL or TAILCALL instruction with its best-effort
// resolved callee. ArgCount is -1 when the call consumes all available
// values.
type CallSite struct {
	Line     int      `json:"line"`
	Kind     CallKind `json:"kind"`
	Callee   string   `json:"callee"`
	ArgCount int      `json:"arg_count"`
	IsTail   bool     `json:"is_tail"`
}

// ReadEntry is a deduplicated (table, field) read.
type ReadEntry struct {
	TableName string `json:"table_name"`
	FieldName string `json:"field_name"`
}

// FunctionInfo is the analysis record for one compiled prototype. Field
// order is the canonical JSON emission order.
type FunctionInfo struct {
	Source            string          `json:"source"`
	LineDefined       int             `json:"line_defined"`
	LastLine          int             `json:"last_line"`
	ParamCount        int             `json:"param_count"`
	IsVararg          bool            `json:"is_vararg"`
	IsVarargUsed      bool            `json:"is_vararg_used"`
	IsMethod          bool            `json:"is_method"`
	ParamNames        []string        `json:"param_names"`
	UpvalueNames      []string        `json:"upvalue_names"`
	ReturnKind        ReturnKind      `json:"return_kind"`
	TableInfo         TableInfo       `json:"table_info"`
	Closures          []ClosureInfo   `json:"closures"`
	Constants         []ConstantEntry `json:"constants"`
	ChildProtoIndices []int           `json:"child_proto_indices"`
	CallSites         []CallSite      `json:"call_sites"`
	Reads             []ReadEntry     `json:"reads"`
}

// GlobalEntry is one name assigned through _ENV at the top level.
// FunctionIndex is -1 until (and unless) the owning function is resolved.
type GlobalEntry struct {
	Name          string `json:"name"`
	IsFunction    bool   `json:"is_function"`
	FunctionIndex int    `json:"function_index"`
}

// Report is the full interface report for one chunk. Functions are in
// pre-order traversal order with the outermost chunk at index 0; Globals
// are in first-seen order, deduplicated by name.
type Report struct {
	LuaVersion string          `json:"lua_version"`
	Functions  []*FunctionInfo `json:"functions"`
	Globals    []*GlobalEntry  `json:"globals"`
}

// JSON serializes the report with two-space indentation. Serialization is
// pure: the same report always yields byte-identical output, and every
// field is present (arrays are never omitted).
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func newFunctionInfo() *FunctionInfo {
	// Slices start non-nil so empty collections serialize as [].
	return &FunctionInfo{
		ParamNames:        []string{},
		UpvalueNames:      []string{},
		Closures:          []ClosureInfo{},
		Constants:         []ConstantEntry{},
		ChildProtoIndices: []int{},
		CallSites:         []CallSite{},
		Reads:             []ReadEntry{},
	}
}

// addRead records a (table, field) read once; repeats (e.g. inside a loop)
// are noise.
func (fi *FunctionInfo) addRead(table, field string) {
	for _, r := range fi.Reads {
		if r.TableName == table && r.FieldName == field {
			return
		}
	}
	fi.Reads = append(fi.Reads, ReadEntry{TableName: table, FieldName: field})
}

// upsertGlobal adds or updates a global entry. IsFunction only ever
// promotes (false→true), and a resolved function index is never clobbered
// by an unresolved one.
func (r *Report) upsertGlobal(name string, isFn bool, functionIndex int) {
	for _, g := range r.Globals {
		if g.Name == name {
			if isFn {
				g.IsFunction = true
			}
			if functionIndex >= 0 {
				g.FunctionIndex = functionIndex
			}
			return
		}
	}
	r.Globals = append(r.Globals, &GlobalEntry{
		Name:          name,
		IsFunction:    isFn,
		FunctionIndex: functionIndex,
	})
}
