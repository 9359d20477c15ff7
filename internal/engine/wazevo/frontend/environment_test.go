package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/continuwasm/core/internal/continuation"
	"github.com/continuwasm/core/internal/engine/wazevo/wazevoapi"
	"github.com/continuwasm/core/internal/wasm"
)

func i32() wasm.Value { return wasm.Value{Numeric: wasm.ValueTypeI32} }

func moduleWithOneImportedFunc(t *testing.T) (*wasm.Module, *wazevoapi.VMOffsets) {
	t.Helper()
	m := wasm.NewModule()
	ft := m.DeclareTypeFunc(wasm.NewFunctionType([]wasm.Value{i32(), i32()}, []wasm.Value{i32()}))
	_, err := m.DeclareFuncImport("env", "add", ft)
	require.NoError(t, err)
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{
		ImportedFunctions: m.ImportFunctionCount, Functions: uint32(len(m.Functions)),
	})
	return m, offsets
}

// TestDirectCallLowering checks that a Wasm call(f) with two i32 args lowers
// to a call under the augmented signature (i32, i32, vmctx) -> returns, with
// args [arg0, arg1, vmctx] in that order.
func TestDirectCallLowering(t *testing.T) {
	m, offsets := moduleWithOneImportedFunc(t)
	env := NewProductionEnvironment(m, offsets)

	fn, err := env.MakeDirectFunc(0)
	require.NoError(t, err)
	require.True(t, fn.Signature.HasVMCtx)
	require.Equal(t, []wasm.Value{i32(), i32()}, fn.Signature.Params)
	require.Equal(t, []wasm.Value{i32()}, fn.Signature.Results)

	call, err := env.TranslateCall(fn, []any{"arg0", "arg1"})
	require.NoError(t, err)
	require.Equal(t, []any{"arg0", "arg1", vmctxSentinel{}}, call.Args)
}

// TestIndirectCallLowering checks that call_indirect loads the target from
// table_base + zext64(i) * 16 and marks the load trusted.
func TestIndirectCallLowering(t *testing.T) {
	m := wasm.NewModule()
	ft := m.DeclareTypeFunc(wasm.NewFunctionType(nil, nil))
	tbl := m.DeclareTable(wasm.Table{ElemType: wasm.RefType{Nullable: true, Heap: wasm.HeapType{Kind: wasm.HeapTypeFunc}}, Min: 4, Max: -1})
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{Tables: 1})
	env := NewProductionEnvironment(m, offsets)

	table, err := env.MakeTable(tbl)
	require.NoError(t, err)
	require.EqualValues(t, 16, table.ElementSize)

	sig, err := env.MakeIndirectSig(ft)
	require.NoError(t, err)

	ic, err := env.TranslateCallIndirect(table, sig, "calleeIndex", nil)
	require.NoError(t, err)
	require.True(t, ic.Trusted)
	require.Equal(t, []any{vmctxSentinel{}}, ic.Args)
}

func TestMakeGlobal_ImportedVsLocal(t *testing.T) {
	m := wasm.NewModule()
	_, err := m.DeclareGlobalImport("env", "g0", wasm.Global{ValType: i32()})
	require.NoError(t, err)
	m.DeclareGlobal(wasm.Global{ValType: i32(), Mutable: true})
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{ImportedGlobals: 1, Globals: 2})
	env := NewProductionEnvironment(m, offsets)

	imported, err := env.MakeGlobal(0)
	require.NoError(t, err)
	require.Equal(t, offsets.VMCtxImportedGlobalFrom(0), imported.Offset)

	local, err := env.MakeGlobal(1)
	require.NoError(t, err)
	require.Equal(t, offsets.VMCtxGlobalDefinition(0), local.Offset)
}

func TestMakeGlobal_OutOfBounds(t *testing.T) {
	m := wasm.NewModule()
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{})
	env := NewProductionEnvironment(m, offsets)
	_, err := env.MakeGlobal(0)
	require.Error(t, err)
}

func TestTranslateMemoryOps_ResolveBuiltins(t *testing.T) {
	m := wasm.NewModule()
	m.DeclareMemory(wasm.Memory{Min: 1, Max: 4})
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{Memories: 1})
	env := NewProductionEnvironment(m, offsets)

	grow, err := env.TranslateMemoryGrow(0, "delta")
	require.NoError(t, err)
	require.Equal(t, "memory32_grow", env.Builtins.At(grow.(BuiltinCallHandle).Index).Name)

	size, err := env.TranslateMemorySize(0)
	require.NoError(t, err)
	heap, err := env.MakeHeap(0)
	require.NoError(t, err)
	require.Equal(t, heap.BaseOffset+wazevoapi.Offset(offsets.PointerSize()), size.(MemorySizeHandle).BasePtrOffset)

	copyH, err := env.TranslateMemoryCopy(0, 0)
	require.NoError(t, err)
	require.Equal(t, "memory_copy", env.Builtins.At(copyH.(BuiltinCallHandle).Index).Name)

	fillH, err := env.TranslateMemoryFill(0)
	require.NoError(t, err)
	require.Equal(t, "memory_fill", env.Builtins.At(fillH.(BuiltinCallHandle).Index).Name)

	initH, err := env.TranslateMemoryInit(0, 0)
	require.NoError(t, err)
	require.Equal(t, "memory_init", env.Builtins.At(initH.(BuiltinCallHandle).Index).Name)

	dropH, err := env.DataDrop(0)
	require.NoError(t, err)
	require.Equal(t, "data_drop", env.Builtins.At(dropH.(BuiltinCallHandle).Index).Name)
}

func TestTranslateTableOps_BranchOnElementType(t *testing.T) {
	m := wasm.NewModule()
	funcTbl := m.DeclareTable(wasm.Table{ElemType: wasm.RefType{Nullable: true, Heap: wasm.HeapType{Kind: wasm.HeapTypeFunc}}, Min: 1, Max: -1})
	externTbl := m.DeclareTable(wasm.Table{ElemType: wasm.RefType{Nullable: true, Heap: wasm.HeapType{Kind: wasm.HeapTypeExtern}}, Min: 1, Max: -1})
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{Tables: 2})
	env := NewProductionEnvironment(m, offsets)

	get, err := env.TranslateTableGet(funcTbl)
	require.NoError(t, err)
	require.Equal(t, "table_get_lazy_init_func_ref", env.Builtins.At(get.(BuiltinCallHandle).Index).Name)

	get, err = env.TranslateTableGet(externTbl)
	require.NoError(t, err)
	require.Equal(t, noBuiltinCall, get.(BuiltinCallHandle).Index)

	set, err := env.TranslateTableSet(funcTbl)
	require.NoError(t, err)
	require.Equal(t, noBuiltinCall, set.(BuiltinCallHandle).Index)

	set, err = env.TranslateTableSet(externTbl)
	require.NoError(t, err)
	require.Equal(t, "activations_table_insert_with_gc", env.Builtins.At(set.(BuiltinCallHandle).Index).Name)

	grow, err := env.TranslateTableGrow(funcTbl)
	require.NoError(t, err)
	require.Equal(t, "table_grow_func_ref", env.Builtins.At(grow.(BuiltinCallHandle).Index).Name)

	grow, err = env.TranslateTableGrow(externTbl)
	require.NoError(t, err)
	require.Equal(t, "table_grow_externref", env.Builtins.At(grow.(BuiltinCallHandle).Index).Name)

	fill, err := env.TranslateTableFill(funcTbl)
	require.NoError(t, err)
	require.Equal(t, "table_fill_func_ref", env.Builtins.At(fill.(BuiltinCallHandle).Index).Name)

	size, err := env.TranslateTableSize(funcTbl)
	require.NoError(t, err)
	th, err := env.MakeTable(funcTbl)
	require.NoError(t, err)
	require.Equal(t, th.BoundOffset, size.(TableSizeHandle).BoundOffset)

	copyH, err := env.TranslateTableCopy(funcTbl, externTbl)
	require.NoError(t, err)
	require.Equal(t, "table_copy", env.Builtins.At(copyH.(BuiltinCallHandle).Index).Name)

	initH, err := env.TranslateTableInit(funcTbl, 0)
	require.NoError(t, err)
	require.Equal(t, "table_init", env.Builtins.At(initH.(BuiltinCallHandle).Index).Name)

	dropH, err := env.ElemDrop(0)
	require.NoError(t, err)
	require.Equal(t, "elem_drop", env.Builtins.At(dropH.(BuiltinCallHandle).Index).Name)
}

func TestTranslateContinuationOps_ResolveBuiltins(t *testing.T) {
	m := wasm.NewModule()
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{})
	env := NewProductionEnvironment(m, offsets)

	contNew, err := env.TranslateContNew("funcref", 2, 1)
	require.NoError(t, err)
	require.Equal(t, "cont_new", env.Builtins.At(contNew.(BuiltinCallHandle).Index).Name)

	resume, err := env.TranslateResume("contobj")
	require.NoError(t, err)
	require.Equal(t, "resume", env.Builtins.At(resume.(BuiltinCallHandle).Index).Name)

	resumeThrow, err := env.TranslateResumeThrow("contobj", 3)
	require.NoError(t, err)
	require.Equal(t, "resume", env.Builtins.At(resumeThrow.(BuiltinCallHandle).Index).Name)

	suspend, err := env.TranslateSuspend(5)
	require.NoError(t, err)
	require.Equal(t, "suspend", env.Builtins.At(suspend.(BuiltinCallHandle).Index).Name)

	load, err := env.LoadPayloads("contobj")
	require.NoError(t, err)
	require.Equal(t, "cont_obj_get_payloads", env.Builtins.At(load.(BuiltinCallHandle).Index).Name)

	store, err := env.StorePayloads("contobj", []any{1, 2})
	require.NoError(t, err)
	require.Equal(t, "cont_obj_occupy_next_args_slots", env.Builtins.At(store.(BuiltinCallHandle).Index).Name)

	reset, err := env.ResetPayloads("contobj")
	require.NoError(t, err)
	require.Equal(t, "cont_obj_reset_payloads", env.Builtins.At(reset.(BuiltinCallHandle).Index).Name)

	loadObj, err := env.LoadContinuationObject("contref")
	require.NoError(t, err)
	require.Equal(t, "cont_ref_get_cont_obj", env.Builtins.At(loadObj.(BuiltinCallHandle).Index).Name)

	newRef, err := env.NewContRef("contobj")
	require.NoError(t, err)
	require.Equal(t, "new_cont_ref", env.Builtins.At(newRef.(BuiltinCallHandle).Index).Name)

	results, err := env.LoadReturnValues("contobj")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "cont_obj_get_results", env.Builtins.At(results[0].(BuiltinCallHandle).Index).Name)
}

func TestTranslateContNew_RejectsOversizePayloads(t *testing.T) {
	m := wasm.NewModule()
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{})
	env := NewProductionEnvironment(m, offsets)

	_, err := env.TranslateContNew("funcref", continuation.MaxPayloadCount+1, 0)
	require.Error(t, err)
}

func TestTranslateSuspend_RejectsOversizeTag(t *testing.T) {
	m := wasm.NewModule()
	offsets := wazevoapi.NewVMOffsets(wazevoapi.PointerSize64, wazevoapi.Counts{})
	env := NewProductionEnvironment(m, offsets)

	_, err := env.TranslateSuspend(0x1000_0000)
	require.ErrorIs(t, err, continuation.ErrTagOutOfRange)

	_, err = env.TranslateResumeThrow("contobj", 0x8000_0000)
	require.ErrorIs(t, err, continuation.ErrTagOutOfRange)
}

func TestDummyEnvironment_ReachabilityTraceMatches(t *testing.T) {
	d := NewDummyEnvironment()
	d.Prescribed = []OperatorTraceEntry{
		{Op: "i32.const", Before: true, After: true},
		{Op: "unreachable", Before: true, After: false},
		{Op: "end", Before: false, After: false},
	}
	for _, e := range d.Prescribed {
		d.BeforeTranslateOperator(e.Op, e.Before)
		d.AfterTranslateOperator(e.Op, e.After)
	}
	d.AfterTranslateFunction()
	require.Empty(t, d.Mismatches())
	require.Len(t, d.Trace(), 3)
}

func TestDummyEnvironment_ReachabilityTraceMismatch(t *testing.T) {
	d := NewDummyEnvironment()
	d.Prescribed = []OperatorTraceEntry{{Op: "i32.const", Before: true, After: true}}
	d.BeforeTranslateOperator("i32.const", false) // wrong reachability
	d.AfterTranslateOperator("i32.const", true)
	d.AfterTranslateFunction()
	require.NotEmpty(t, d.Mismatches())
}
