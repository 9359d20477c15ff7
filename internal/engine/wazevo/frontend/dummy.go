package frontend

import (
	"fmt"

	"github.com/continuwasm/core/internal/wasm"
)

// OperatorTraceEntry is one (before, after) reachability pair recorded (or
// asserted) around a single operator.
type OperatorTraceEntry struct {
	Op             string
	Before, After  Reachability
}

// DummyEnvironment is a bare-bones Environment used to unit-test the
// translator in isolation from any real module layout. Every
// handle-producing method returns the smallest legal value and never
// fails; it exists to let tests drive the translator's control flow
// without a real VMOffsets/Module pair.
type DummyEnvironment struct {
	// Prescribed, if non-nil, is the expected reachability trace: if set,
	// the before/after hooks assert the actual trace matches exactly.
	Prescribed []OperatorTraceEntry

	trace      []OperatorTraceEntry
	current    string
	mismatches []string
}

var _ Environment = (*DummyEnvironment)(nil)

// NewDummyEnvironment returns a DummyEnvironment with no prescribed trace;
// set Prescribed afterwards to enable assertion mode.
func NewDummyEnvironment() *DummyEnvironment { return &DummyEnvironment{} }

// Trace returns the entries recorded so far, one per AfterTranslateOperator
// call, each holding the operator and its after bit. The before bit is only
// checked against Prescribed; it is not recorded and stays false here.
func (d *DummyEnvironment) Trace() []OperatorTraceEntry { return d.trace }

// Mismatches returns a description of every point where the actual trace
// diverged from Prescribed, empty if it matched exactly.
func (d *DummyEnvironment) Mismatches() []string { return d.mismatches }

func (d *DummyEnvironment) BeforeTranslateOperator(op string, reachable Reachability) {
	d.current = op
	if d.Prescribed != nil {
		i := len(d.trace)
		if i >= len(d.Prescribed) {
			d.mismatches = append(d.mismatches, fmt.Sprintf("operator %d (%s): no prescribed entry", i, op))
			return
		}
		if d.Prescribed[i].Before != reachable || d.Prescribed[i].Op != op {
			d.mismatches = append(d.mismatches, fmt.Sprintf(
				"operator %d: got before(%s)=%v, want before(%s)=%v",
				i, op, reachable, d.Prescribed[i].Op, d.Prescribed[i].Before))
		}
	}
}

func (d *DummyEnvironment) AfterTranslateOperator(op string, reachable Reachability) {
	d.trace = append(d.trace, OperatorTraceEntry{Op: op, After: reachable})
	if d.Prescribed != nil {
		i := len(d.trace) - 1
		if i < len(d.Prescribed) && d.Prescribed[i].After != reachable {
			d.mismatches = append(d.mismatches, fmt.Sprintf(
				"operator %d (%s): got after=%v, want after=%v", i, op, reachable, d.Prescribed[i].After))
		}
	}
}

func (d *DummyEnvironment) AfterTranslateFunction() {
	if d.Prescribed != nil && len(d.trace) != len(d.Prescribed) {
		d.mismatches = append(d.mismatches, fmt.Sprintf(
			"trace length %d does not match prescribed length %d", len(d.trace), len(d.Prescribed)))
	}
}

func (d *DummyEnvironment) MakeGlobal(wasm.GlobalIndex) (GlobalHandle, error) { return GlobalHandle{}, nil }
func (d *DummyEnvironment) MakeHeap(wasm.MemoryIndex) (HeapHandle, error) {
	return HeapHandle{Style: HeapStyleDynamic, Index: IndexTypeI32}, nil
}
func (d *DummyEnvironment) MakeTable(wasm.TableIndex) (TableHandle, error) {
	return TableHandle{ElementSize: 16}, nil
}
func (d *DummyEnvironment) MakeIndirectSig(wasm.TypeIndex) (Signature, error) {
	return Signature{HasVMCtx: true}, nil
}
func (d *DummyEnvironment) MakeDirectFunc(idx wasm.FuncIndex) (FuncHandle, error) {
	return FuncHandle{Index: idx, Signature: Signature{HasVMCtx: true}}, nil
}

func (d *DummyEnvironment) TranslateCall(_ FuncHandle, args []any) (CallHandle, error) {
	return CallHandle{Args: append(append([]any{}, args...), vmctxSentinel{})}, nil
}
func (d *DummyEnvironment) TranslateCallIndirect(_ TableHandle, _ Signature, _ any, args []any) (IndirectCallHandle, error) {
	return IndirectCallHandle{Args: append(append([]any{}, args...), vmctxSentinel{}), Trusted: true}, nil
}
func (d *DummyEnvironment) TranslateCallRef(_ Signature, _ any, args []any) (CallHandle, error) {
	return CallHandle{Args: append(append([]any{}, args...), vmctxSentinel{})}, nil
}

// dummyBuiltin is the smallest legal descriptor a DummyEnvironment method can
// return: a no-op handle the translator can still lower without a real
// wazevoapi.Registry behind it.
var dummyBuiltin = BuiltinCallHandle{Index: noBuiltinCall}

func (d *DummyEnvironment) TranslateMemoryGrow(wasm.MemoryIndex, any) (any, error) { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateMemorySize(wasm.MemoryIndex) (any, error)      { return MemorySizeHandle{}, nil }
func (d *DummyEnvironment) TranslateMemoryCopy(wasm.MemoryIndex, wasm.MemoryIndex) (any, error) {
	return dummyBuiltin, nil
}
func (d *DummyEnvironment) TranslateMemoryFill(wasm.MemoryIndex) (any, error) { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateMemoryInit(wasm.MemoryIndex, wasm.DataIndex) (any, error) {
	return dummyBuiltin, nil
}
func (d *DummyEnvironment) DataDrop(wasm.DataIndex) (any, error) { return dummyBuiltin, nil }

func (d *DummyEnvironment) TranslateTableGet(wasm.TableIndex) (any, error)  { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateTableSet(wasm.TableIndex) (any, error) { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateTableGrow(wasm.TableIndex) (any, error) { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateTableSize(wasm.TableIndex) (any, error) { return TableSizeHandle{}, nil }
func (d *DummyEnvironment) TranslateTableCopy(wasm.TableIndex, wasm.TableIndex) (any, error) {
	return dummyBuiltin, nil
}
func (d *DummyEnvironment) TranslateTableFill(wasm.TableIndex) (any, error) { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateTableInit(wasm.TableIndex, wasm.ElemIndex) (any, error) {
	return dummyBuiltin, nil
}
func (d *DummyEnvironment) ElemDrop(wasm.ElemIndex) (any, error) { return dummyBuiltin, nil }

func (d *DummyEnvironment) RefFunc(wasm.FuncIndex) (any, error) { return dummyBuiltin, nil }

func (d *DummyEnvironment) AtomicWait(wasm.MemoryIndex, bool) (any, error) { return dummyBuiltin, nil }
func (d *DummyEnvironment) AtomicNotify(wasm.MemoryIndex) (any, error)     { return dummyBuiltin, nil }

func (d *DummyEnvironment) TranslateContNew(any, uint32, uint32) (any, error) { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateResume(any) (any, error)                 { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateResumeThrow(any, uint32) (any, error)    { return dummyBuiltin, nil }
func (d *DummyEnvironment) TranslateSuspend(uint32) (any, error)             { return dummyBuiltin, nil }

func (d *DummyEnvironment) LoadPayloads(any) (any, error)             { return dummyBuiltin, nil }
func (d *DummyEnvironment) StorePayloads(any, []any) (any, error)     { return dummyBuiltin, nil }
func (d *DummyEnvironment) StoreResumeArgs(any, []any) (any, error)   { return dummyBuiltin, nil }
func (d *DummyEnvironment) ResetPayloads(any) (any, error)            { return dummyBuiltin, nil }
func (d *DummyEnvironment) LoadContinuationObject(any) (any, error)   { return dummyBuiltin, nil }
func (d *DummyEnvironment) NewContRef(any) (any, error)               { return dummyBuiltin, nil }
func (d *DummyEnvironment) LoadReturnValues(any) ([]any, error)       { return []any{dummyBuiltin}, nil }
func (d *DummyEnvironment) ContRefGetContObj(any) (any, error)        { return dummyBuiltin, nil }
