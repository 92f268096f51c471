// Package analysis recovers a structured interface report from compiled
// Lua 5.4 bytecode: per-function signatures, return-value provenance,
// table-literal size hints, closure and call-site information, and the
// top-level global table. It performs bounded backward dataflow over the
// instruction stream; it never executes code and never mutates its input.
package analysis

import (
	"fmt"

	"github.com/Aloecraft-org/diluvium/pkg/bytecode"
)

// Analyze builds the interface report for an already-compiled chunk. The
// input prototype graph is borrowed read-only for the duration of the call;
// the returned report is exclusively owned by the caller. Analyze keeps no
// process-wide state, so concurrent calls on distinct prototypes are safe.
func Analyze(p *bytecode.Proto) (*Report, error) {
	if p == nil {
		return nil, fmt.Errorf("analysis: nil prototype")
	}
	r := &Report{
		LuaVersion: LuaVersion,
		Functions:  []*FunctionInfo{},
		Globals:    []*GlobalEntry{},
	}
	analyzeFunction(p, r)
	return r, nil
}

// analyzeFunction appends one record for p, scans its instruction stream,
// recurses into nested prototypes in declaration order, and resolves the
// global function indexes its scan staged.
func analyzeFunction(p *bytecode.Proto, r *Report) {
	fi := newFunctionInfo()
	r.Functions = append(r.Functions, fi)

	// Identity.
	fi.Source = p.Source
	if fi.Source == "" {
		fi.Source = "?"
	}
	fi.LineDefined = p.LineDefined
	fi.LastLine = p.LastLineDefined

	// Signature. The first NumParams local variables name the parameters;
	// a first parameter literally named "self" marks a method.
	fi.ParamCount = p.NumParams
	fi.IsVararg = p.IsVararg
	for i := 0; i < p.NumParams; i++ {
		name := "(?)"
		if i < len(p.LocVars) && p.LocVars[i].Name != "" {
			name = p.LocVars[i].Name
		}
		fi.ParamNames = append(fi.ParamNames, name)
	}
	if len(fi.ParamNames) > 0 && fi.ParamNames[0] == "self" {
		fi.IsMethod = true
	}

	for _, uv := range p.Upvalues {
		name := uv.Name
		if name == "" {
			name = "(?)"
		}
		fi.UpvalueNames = append(fi.UpvalueNames, name)
	}

	// Constant pool.
	for _, k := range p.Constants {
		fi.Constants = append(fi.Constants, constantEntry(k))
	}

	// Bytecode scan. pending stages globals whose defining closure's
	// record does not exist yet (children are appended during the
	// recursion step below), keyed by global slot.
	lastNewTableArr := 0
	lastNewTableHash := 0
	hadRealReturn := false
	var pending map[int]*bytecode.Proto

	for pc := 0; pc < len(p.Code); pc++ {
		ins := p.Code[pc]

		switch ins.Opcode() {

		case bytecode.OpNewTable:
			lastNewTableArr = ArraySize(p, pc)
			lastNewTableHash = HashSize(ins.B())

		case bytecode.OpReturn, bytecode.OpReturn0, bytecode.OpReturn1:
			kind := classifyReturn(p, pc)
			mergeReturnKind(fi, kind, &hadRealReturn)

			if kind == ReturnTable {
				// Size from the specific NEWTABLE that produced the
				// returned register, so multi-table functions report the
				// right shape; fall back to the most recent constructor.
				arr, hash := lastNewTableArr, lastNewTableHash
				if ntPC := findNewTableForReg(p, pc, ins.A()); ntPC >= 0 {
					arr = ArraySize(p, ntPC)
					hash = HashSize(p.Code[ntPC].B())
				}
				fi.TableInfo.ArraySize = arr
				fi.TableInfo.HashSize = hash
				fi.TableInfo.EstimatedBytes = 32 + int64(arr)*16 + int64(hash)*32
			}

		case bytecode.OpClosure:
			if bx := ins.Bx(); bx < len(p.Protos) {
				child := p.Protos[bx]
				if len(child.Upvalues) > 0 {
					fi.Closures = append(fi.Closures, ClosureInfo{
						LineDefined:  child.LineDefined,
						UpvalueCount: len(child.Upvalues),
					})
					fi.TableInfo.ContainsClosures = true
				}
			}

		case bytecode.OpSetTabUp:
			// UpValue[A][K[B]] := RK(C); only assignments through _ENV
			// (upvalue 0) define globals. With the k flag the value is a
			// constant, never a closure.
			if ins.A() != 0 {
				break
			}
			name, ok := stringConstant(p, ins.B())
			if !ok {
				break
			}

			isFn := false
			var childProto *bytecode.Proto
			if !ins.K() {
				// Whether the value is a function is decidable now; only
				// the child's record index has to wait for the recursion.
				if src, writerPC := findRegSource(p, pc, ins.C()); src == regSourceClosure {
					isFn = true
					if bx := p.Code[writerPC].Bx(); bx < len(p.Protos) {
						childProto = p.Protos[bx]
					}
				}
			}

			slot := len(r.Globals)
			r.upsertGlobal(name, isFn, -1)

			// New entry backed by a known closure: stage it for index
			// resolution once the child's record exists.
			if childProto != nil && len(r.Globals) > slot {
				if pending == nil {
					pending = make(map[int]*bytecode.Proto)
				}
				pending[slot] = childProto
			}

		case bytecode.OpVararg:
			fi.IsVarargUsed = true

		case bytecode.OpGetTabUp:
			// R[A] := UpValue[B][K[C]]; upvalue 0 is _ENV (a global read),
			// others are named captures.
			if field, ok := stringConstant(p, ins.C()); ok {
				table := "_ENV"
				if upv := ins.B(); upv != 0 && upv < len(p.Upvalues) && p.Upvalues[upv].Name != "" {
					table = p.Upvalues[upv].Name
				}
				fi.addRead(table, field)
			}

		case bytecode.OpGetField:
			// R[A] := R[B][K[C]]; one-level field read off an anonymous
			// table register.
			if field, ok := stringConstant(p, ins.C()); ok {
				fi.addRead("?", field)
			}

		case bytecode.OpCall, bytecode.OpTailCall:
			b := ins.B()
			argCount := -1 // B==0: consume all available values
			if b > 0 {
				argCount = b - 1
			}
			kind, callee := resolveCallee(p, pc, ins.A())
			fi.CallSites = append(fi.CallSites, CallSite{
				Line:     lineForPC(p, pc),
				Kind:     kind,
				Callee:   callee,
				ArgCount: argCount,
				IsTail:   ins.Opcode() == bytecode.OpTailCall,
			})

		case bytecode.OpTwoQ:
			// Null-coalescing writes R[A] like any other producer; nothing
			// to record.
		}
	}

	// Recurse into nested prototypes in declaration order; children are
	// always appended after their parent, so every child index is strictly
	// greater than the parent's.
	for _, child := range p.Protos {
		fi.ChildProtoIndices = append(fi.ChildProtoIndices, len(r.Functions))
		analyzeFunction(child, r)
	}

	// Resolve staged globals now that all child records exist. Records
	// carry no prototype pointer, so the match is on defined line, first
	// match wins. Two sibling functions on one line can collide; ordinary
	// programs never do.
	for slot, child := range pending {
		for idx, fn := range r.Functions {
			if fn.LineDefined == child.LineDefined {
				r.Globals[slot].FunctionIndex = idx
				break
			}
		}
	}

	// A table summary is only meaningful alongside a table verdict.
	if fi.ReturnKind != ReturnTable {
		fi.TableInfo = TableInfo{}
	}
}

// constantEntry converts one constant-pool slot to its typed report entry.
func constantEntry(k bytecode.Constant) ConstantEntry {
	switch k.Type {
	case bytecode.ConstString:
		s := k.Str
		return ConstantEntry{Kind: ConstantString, SVal: &s}
	case bytecode.ConstInt:
		return ConstantEntry{Kind: ConstantInteger, IVal: k.Int}
	case bytecode.ConstFloat:
		return ConstantEntry{Kind: ConstantFloat, FVal: k.Float}
	case bytecode.ConstBool:
		return ConstantEntry{Kind: ConstantBool, BVal: k.Bool}
	default:
		return ConstantEntry{Kind: ConstantNull}
	}
}
