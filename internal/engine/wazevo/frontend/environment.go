// Package frontend is consumed by an operator-level translator: an
// IR-producing walker that decodes Wasm operators and lowers them to its own
// intermediate representation. For every operator that reaches outside the
// current function body, the translator calls into an Environment, which
// materializes an IR handle grounded on the VMContext layout from
// wazevoapi.
//
// Environment deliberately returns plain descriptor values rather than IR
// nodes of any concrete type, so a translator's own IR builder can lower
// them however it likes. Production and test implementations share no base
// type — each satisfies the interface directly.
package frontend

import (
	"fmt"

	"github.com/continuwasm/core/internal/continuation"
	"github.com/continuwasm/core/internal/engine/wazevo/wazevoapi"
	"github.com/continuwasm/core/internal/wasm"
)

// WasmError is returned by Environment operations that detect a malformed or
// unsupported module. Translation of the module aborts on the first one;
// the environment never attempts to recover.
type WasmError struct {
	Op      string
	Message string
}

func (e *WasmError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Message) }

func wasmErrorf(op, format string, args ...any) error {
	return &WasmError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// HeapStyle distinguishes a memory with a fixed static bound from one that
// can grow dynamically.
type HeapStyle byte

const (
	HeapStyleStatic HeapStyle = iota
	HeapStyleDynamic
)

// IndexType is the width of a memory's effective-address index.
type IndexType byte

const (
	IndexTypeI32 IndexType = iota
	IndexTypeI64
)

// GlobalHandle is the IR handle make_global returns: either a direct
// memory-backed load at vmctx+offset, or an opaque custom-computed global
// the translator must not attempt to bound-check or inline.
type GlobalHandle struct {
	Custom bool
	// Offset and ValueType are valid only when !Custom.
	Offset    wazevoapi.Offset
	ValueType wasm.Value
}

// HeapHandle is the IR handle make_heap returns.
type HeapHandle struct {
	// BaseOffset is the vmctx offset to load the heap's base pointer from.
	BaseOffset wazevoapi.Offset
	Style      HeapStyle
	// OffsetGuardSize bytes past the end of a static heap's bound are
	// guaranteed unmapped/trapping, so any load/store at addr+offset with
	// offset+access_size <= OffsetGuardSize needs no explicit bound check.
	OffsetGuardSize uint64
	Index           IndexType
}

// TableHandle is the IR handle make_table returns.
type TableHandle struct {
	BaseOffset wazevoapi.Offset
	BoundOffset wazevoapi.Offset
	// ElementSize is the byte stride between table slots: two pointers
	// (func pointer + owning vmctx).
	ElementSize uint32
}

// Signature is a function signature augmented with a trailing VMContext
// parameter, as make_indirect_sig and make_direct_func produce.
type Signature struct {
	Params  []wasm.Value
	Results []wasm.Value
	// HasVMCtx is always true for signatures produced by this environment:
	// every call synthesized here appends the caller's VMContext.
	HasVMCtx bool
}

// FuncHandle is the IR handle make_direct_func returns: an external function
// reference under an augmented Signature.
type FuncHandle struct {
	Index     wasm.FuncIndex
	Signature Signature
}

// CallHandle describes a materialized call: the arguments actually passed,
// VMContext appended last.
type CallHandle struct {
	Args []any // caller-supplied IR values, opaque to this package.
}

// IndirectCallHandle is the result of translate_call_indirect: the target
// pointer load address (table_base + zext64(index) * stride) plus the args
// to pass, VMContext appended.
type IndirectCallHandle struct {
	TargetLoadAddr any // opaque IR value computed by the translator.
	Args           []any
	// Trusted marks the load as one the translator may mark trusted/unchecked
	// because bounds-checking is the table descriptor's responsibility.
	Trusted bool
}

// noBuiltinCall marks a BuiltinCallHandle that names no builtin: the
// operator lowers to pure inline code instead of a call through the
// builtin-functions vector.
const noBuiltinCall = -1

// BuiltinCallHandle is the IR handle for lowering an operator to a call
// into the vmctx builtin-functions vector: Index is the callee's dense,
// ABI-stable position in wazevoapi.Registry, and Args are the immediate
// operands the environment already knows about (module-level indices,
// tags, counts). The translator appends whatever SSA values it already
// holds on its own operand stack, plus the trailing VMContext.
type BuiltinCallHandle struct {
	Index int
	Args  []any
}

// MemorySizeHandle is the IR handle translate_memory_size returns:
// memory.size has no builtin of its own, so it reads directly from the
// same base-pointer offset make_heap resolves. The current page count
// lives one pointer-width past the loaded MemDef base pointer.
type MemorySizeHandle struct {
	BasePtrOffset wazevoapi.Offset
}

// TableSizeHandle is the IR handle translate_table_size returns: table.size
// has no builtin either, it reads the current-elements count already
// resolved by make_table.
type TableSizeHandle struct {
	BoundOffset wazevoapi.Offset
}

// Reachability is the bit the translator passes to before/after hooks: is
// the current program point statically reachable.
type Reachability bool

// Environment is the full set of capabilities the operator translator
// requires. Production and test implementations (DummyEnvironment) both
// satisfy it without any shared base type — composition, not inheritance.
type Environment interface {
	MakeGlobal(index wasm.GlobalIndex) (GlobalHandle, error)
	MakeHeap(index wasm.MemoryIndex) (HeapHandle, error)
	MakeTable(index wasm.TableIndex) (TableHandle, error)
	MakeIndirectSig(typeIndex wasm.TypeIndex) (Signature, error)
	MakeDirectFunc(index wasm.FuncIndex) (FuncHandle, error)

	TranslateCall(callee FuncHandle, args []any) (CallHandle, error)
	TranslateCallIndirect(table TableHandle, sig Signature, calleeIndex any, args []any) (IndirectCallHandle, error)
	TranslateCallRef(sig Signature, callee any, args []any) (CallHandle, error)

	TranslateMemoryGrow(memory wasm.MemoryIndex, delta any) (any, error)
	TranslateMemorySize(memory wasm.MemoryIndex) (any, error)
	TranslateMemoryCopy(dst, src wasm.MemoryIndex) (any, error)
	TranslateMemoryFill(memory wasm.MemoryIndex) (any, error)
	TranslateMemoryInit(memory wasm.MemoryIndex, data wasm.DataIndex) (any, error)
	DataDrop(data wasm.DataIndex) (any, error)

	TranslateTableGet(table wasm.TableIndex) (any, error)
	TranslateTableSet(table wasm.TableIndex) (any, error)
	TranslateTableGrow(table wasm.TableIndex) (any, error)
	TranslateTableSize(table wasm.TableIndex) (any, error)
	TranslateTableCopy(dst, src wasm.TableIndex) (any, error)
	TranslateTableFill(table wasm.TableIndex) (any, error)
	TranslateTableInit(table wasm.TableIndex, elem wasm.ElemIndex) (any, error)
	ElemDrop(elem wasm.ElemIndex) (any, error)

	RefFunc(index wasm.FuncIndex) (any, error)

	AtomicWait(memory wasm.MemoryIndex, is64 bool) (any, error)
	AtomicNotify(memory wasm.MemoryIndex) (any, error)

	// Continuation operators.
	TranslateContNew(funcRef any, paramCount, resultCount uint32) (any, error)
	TranslateResume(contObj any) (any, error)
	TranslateResumeThrow(contObj any, tag uint32) (any, error)
	TranslateSuspend(tag uint32) (any, error)

	// Typed continuation payload operators.
	LoadPayloads(contObj any) (any, error)
	StorePayloads(contObj any, values []any) (any, error)
	StoreResumeArgs(contObj any, values []any) (any, error)
	ResetPayloads(contObj any) (any, error)
	LoadContinuationObject(contRef any) (any, error)
	NewContRef(contObj any) (any, error)
	LoadReturnValues(contObj any) ([]any, error)
	ContRefGetContObj(contRef any) (any, error)

	// Reachability hooks: the translator notifies the environment at every
	// operator with the reachability bit. An implementation may record or
	// assert a prescribed trace; a mismatch is a test failure, not a
	// runtime error.
	BeforeTranslateOperator(opcodeName string, reachable Reachability)
	AfterTranslateOperator(opcodeName string, reachable Reachability)
	AfterTranslateFunction()
}

// ProductionEnvironment is the Environment implementation the real
// translator uses: it materializes handles from an actual *wasm.Module
// paired with its *wazevoapi.VMOffsets.
type ProductionEnvironment struct {
	Module  *wasm.Module
	Offsets *wazevoapi.VMOffsets

	// OffsetGuardSize is the static heap's guard-region size in bytes.
	// Production runtimes default this to a large reserved mapping
	// (commonly 2GiB on 64-bit) so in-bounds-offset loads never need an
	// explicit check. Left as a field so tests can use a smaller value.
	OffsetGuardSize uint64

	// Builtins is the compile-time builtin-function registry every
	// translate_* operator below resolves its callee index from.
	Builtins *wazevoapi.Registry
}

var _ Environment = (*ProductionEnvironment)(nil)

// NewProductionEnvironment builds the environment a real translator drives.
func NewProductionEnvironment(m *wasm.Module, offsets *wazevoapi.VMOffsets) *ProductionEnvironment {
	return &ProductionEnvironment{
		Module:          m,
		Offsets:         offsets,
		OffsetGuardSize: 1 << 31,
		Builtins:        wazevoapi.NewRegistry(),
	}
}

// builtin resolves name to its dense registry index, wrapped in a
// BuiltinCallHandle with args. An unknown name is a programmer error (a
// typo in this file, not a malformed module), so it's asserted rather than
// surfaced as a WasmError.
func (e *ProductionEnvironment) builtin(name string, args ...any) BuiltinCallHandle {
	idx, ok := e.Builtins.Index(name)
	if !ok {
		panic("frontend: unknown builtin " + name)
	}
	return BuiltinCallHandle{Index: idx, Args: args}
}

// tableElemIsExtern reports whether table's element type is externref
// rather than one of the function-pointer-shaped heap types (func, an
// indexed func/cont type, or bot).
func (e *ProductionEnvironment) tableElemIsExtern(index wasm.TableIndex) (bool, error) {
	t, ok := e.Module.TableAt(index)
	if !ok {
		return false, wasmErrorf("table_elem_type", "table %d out of bounds", index)
	}
	return t.ElemType.Heap.Kind == wasm.HeapTypeExtern, nil
}

func (e *ProductionEnvironment) MakeGlobal(index wasm.GlobalIndex) (GlobalHandle, error) {
	g, ok := e.Module.GlobalAt(index)
	if !ok {
		return GlobalHandle{}, wasmErrorf("make_global", "index %d out of bounds", index)
	}
	if uint32(index) < e.Module.ImportGlobalCount {
		off := e.Offsets.VMCtxImportedGlobalFrom(uint32(index))
		return GlobalHandle{Offset: off, ValueType: g.ValType}, nil
	}
	local := uint32(index) - e.Module.ImportGlobalCount
	off := e.Offsets.VMCtxGlobalDefinition(local)
	return GlobalHandle{Offset: off, ValueType: g.ValType}, nil
}

func (e *ProductionEnvironment) MakeHeap(index wasm.MemoryIndex) (HeapHandle, error) {
	mem, ok := e.Module.MemoryAt(index)
	if !ok {
		return HeapHandle{}, wasmErrorf("make_heap", "memory %d out of bounds", index)
	}
	style := HeapStyleDynamic
	if mem.Max >= 0 {
		style = HeapStyleStatic
	}
	var base wazevoapi.Offset
	if uint32(index) < e.Module.ImportMemoryCount {
		base = e.Offsets.VMCtxImportedMemoryFrom(uint32(index))
	} else {
		base = e.Offsets.VMCtxDefinedMemoryPointer(uint32(index) - e.Module.ImportMemoryCount)
	}
	return HeapHandle{
		BaseOffset:      base,
		Style:           style,
		OffsetGuardSize: e.OffsetGuardSize,
		Index:           IndexTypeI32,
	}, nil
}

func (e *ProductionEnvironment) MakeTable(index wasm.TableIndex) (TableHandle, error) {
	if _, ok := e.Module.TableAt(index); !ok {
		return TableHandle{}, wasmErrorf("make_table", "table %d out of bounds", index)
	}
	var base wazevoapi.Offset
	if uint32(index) < e.Module.ImportTableCount {
		base = e.Offsets.VMCtxImportedTableFrom(uint32(index))
		return TableHandle{BaseOffset: base, ElementSize: 2 * uint32(e.Offsets.PointerSize())}, nil
	}
	local := uint32(index) - e.Module.ImportTableCount
	base = e.Offsets.VMCtxDefinedTableBase(local)
	bound := e.Offsets.VMCtxDefinedTableCurrentElements(local)
	return TableHandle{BaseOffset: base, BoundOffset: bound, ElementSize: 2 * uint32(e.Offsets.PointerSize())}, nil
}

func (e *ProductionEnvironment) MakeIndirectSig(typeIndex wasm.TypeIndex) (Signature, error) {
	if int(typeIndex) >= len(e.Module.TypeSection) {
		return Signature{}, wasmErrorf("make_indirect_sig", "type %d out of bounds", typeIndex)
	}
	ft := e.Module.TypeSection[typeIndex]
	return Signature{Params: ft.Params, Results: ft.Results, HasVMCtx: true}, nil
}

func (e *ProductionEnvironment) MakeDirectFunc(index wasm.FuncIndex) (FuncHandle, error) {
	if int(index) >= len(e.Module.Functions) {
		return FuncHandle{}, wasmErrorf("make_direct_func", "func %d out of bounds", index)
	}
	typeIdx := e.Module.Functions[index].TypeIndex
	sig, err := e.MakeIndirectSig(typeIdx)
	if err != nil {
		return FuncHandle{}, err
	}
	return FuncHandle{Index: index, Signature: sig}, nil
}

// TranslateCall lowers a direct call: args with the caller's VMContext
// appended last.
func (e *ProductionEnvironment) TranslateCall(callee FuncHandle, args []any) (CallHandle, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, args...)
	full = append(full, vmctxSentinel{})
	return CallHandle{Args: full}, nil
}

// vmctxSentinel stands in for "the caller's VMContext pointer" in the
// opaque IR-value slices this package hands back; the real IR builder
// substitutes its own value for it.
type vmctxSentinel struct{}

func (e *ProductionEnvironment) TranslateCallIndirect(table TableHandle, sig Signature, calleeIndex any, args []any) (IndirectCallHandle, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, args...)
	full = append(full, vmctxSentinel{})
	return IndirectCallHandle{
		TargetLoadAddr: struct {
			TableBase   wazevoapi.Offset
			Index       any
			ElementSize uint32
		}{table.BaseOffset, calleeIndex, table.ElementSize},
		Args:    full,
		Trusted: true,
	}, nil
}

func (e *ProductionEnvironment) TranslateCallRef(sig Signature, callee any, args []any) (CallHandle, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, args...)
	full = append(full, vmctxSentinel{})
	return CallHandle{Args: full}, nil
}

func (e *ProductionEnvironment) TranslateMemoryGrow(memory wasm.MemoryIndex, delta any) (any, error) {
	return e.builtin("memory32_grow", memory, delta), nil
}

// TranslateMemorySize has no builtin of its own: the current page count
// lives at the same base-pointer offset make_heap already resolves, one
// pointer-width past the base pointer itself.
func (e *ProductionEnvironment) TranslateMemorySize(memory wasm.MemoryIndex) (any, error) {
	heap, err := e.MakeHeap(memory)
	if err != nil {
		return nil, err
	}
	return MemorySizeHandle{BasePtrOffset: heap.BaseOffset + wazevoapi.Offset(e.Offsets.PointerSize())}, nil
}

func (e *ProductionEnvironment) TranslateMemoryCopy(dst, src wasm.MemoryIndex) (any, error) {
	return e.builtin("memory_copy", dst, src), nil
}

func (e *ProductionEnvironment) TranslateMemoryFill(memory wasm.MemoryIndex) (any, error) {
	return e.builtin("memory_fill", memory), nil
}

func (e *ProductionEnvironment) TranslateMemoryInit(memory wasm.MemoryIndex, data wasm.DataIndex) (any, error) {
	return e.builtin("memory_init", memory, data), nil
}

func (e *ProductionEnvironment) DataDrop(data wasm.DataIndex) (any, error) {
	return e.builtin("data_drop", data), nil
}

func (e *ProductionEnvironment) TranslateTableGet(table wasm.TableIndex) (any, error) {
	extern, err := e.tableElemIsExtern(table)
	if err != nil {
		return nil, err
	}
	if extern {
		// A plain reference load: the translator reads the slot inline, no
		// lazy-init step applies to externref tables.
		return BuiltinCallHandle{Index: noBuiltinCall}, nil
	}
	return e.builtin("table_get_lazy_init_func_ref", table), nil
}

func (e *ProductionEnvironment) TranslateTableSet(table wasm.TableIndex) (any, error) {
	extern, err := e.tableElemIsExtern(table)
	if err != nil {
		return nil, err
	}
	if extern {
		// Storing a new externref live into a table slot needs the GC
		// barrier that keeps it reachable from the activations table.
		return e.builtin("activations_table_insert_with_gc", table), nil
	}
	// funcref slots are a plain pointer-pair store, no barrier needed.
	return BuiltinCallHandle{Index: noBuiltinCall}, nil
}

func (e *ProductionEnvironment) TranslateTableGrow(table wasm.TableIndex) (any, error) {
	extern, err := e.tableElemIsExtern(table)
	if err != nil {
		return nil, err
	}
	if extern {
		return e.builtin("table_grow_externref", table), nil
	}
	return e.builtin("table_grow_func_ref", table), nil
}

// TranslateTableSize has no builtin: the current element count is already
// resolved by make_table as TableHandle.BoundOffset.
func (e *ProductionEnvironment) TranslateTableSize(table wasm.TableIndex) (any, error) {
	th, err := e.MakeTable(table)
	if err != nil {
		return nil, err
	}
	return TableSizeHandle{BoundOffset: th.BoundOffset}, nil
}

func (e *ProductionEnvironment) TranslateTableCopy(dst, src wasm.TableIndex) (any, error) {
	return e.builtin("table_copy", dst, src), nil
}

func (e *ProductionEnvironment) TranslateTableFill(table wasm.TableIndex) (any, error) {
	extern, err := e.tableElemIsExtern(table)
	if err != nil {
		return nil, err
	}
	if extern {
		return e.builtin("table_fill_externref", table), nil
	}
	return e.builtin("table_fill_func_ref", table), nil
}

func (e *ProductionEnvironment) TranslateTableInit(table wasm.TableIndex, elem wasm.ElemIndex) (any, error) {
	return e.builtin("table_init", table, elem), nil
}

func (e *ProductionEnvironment) ElemDrop(elem wasm.ElemIndex) (any, error) {
	return e.builtin("elem_drop", elem), nil
}

func (e *ProductionEnvironment) RefFunc(index wasm.FuncIndex) (any, error) {
	return e.builtin("ref_func", index), nil
}

func (e *ProductionEnvironment) AtomicWait(memory wasm.MemoryIndex, is64 bool) (any, error) {
	if is64 {
		return e.builtin("memory_atomic_wait64", memory), nil
	}
	return e.builtin("memory_atomic_wait32", memory), nil
}

func (e *ProductionEnvironment) AtomicNotify(memory wasm.MemoryIndex) (any, error) {
	return e.builtin("memory_atomic_notify", memory), nil
}

// TranslateContNew lowers cont_new, rejecting payload shapes wider than the
// continuation runtime's fixed-size buffers up front rather than letting
// the call trap at run time.
func (e *ProductionEnvironment) TranslateContNew(funcRef any, paramCount, resultCount uint32) (any, error) {
	if paramCount > continuation.MaxPayloadCount || resultCount > continuation.MaxPayloadCount {
		return nil, wasmErrorf("translate_cont_new", "param/result count %d/%d exceeds MaxPayloadCount %d",
			paramCount, resultCount, continuation.MaxPayloadCount)
	}
	return e.builtin("cont_new", funcRef, paramCount, resultCount), nil
}

func (e *ProductionEnvironment) TranslateResume(contObj any) (any, error) {
	return e.builtin("resume", contObj), nil
}

// TranslateResumeThrow shares the resume builtin: there is no dedicated
// resume_throw entry in the registry, only the tag argument distinguishes a
// forced-throw resume from an ordinary one, and that distinction is made by
// the generated code around the call, not by the callee it invokes.
func (e *ProductionEnvironment) TranslateResumeThrow(contObj any, tag uint32) (any, error) {
	if err := continuation.ValidateTag(tag); err != nil {
		return nil, err
	}
	return e.builtin("resume", contObj, tag), nil
}

func (e *ProductionEnvironment) TranslateSuspend(tag uint32) (any, error) {
	if err := continuation.ValidateTag(tag); err != nil {
		return nil, err
	}
	return e.builtin("suspend", tag), nil
}

func (e *ProductionEnvironment) LoadPayloads(contObj any) (any, error) {
	return e.builtin("cont_obj_get_payloads", contObj), nil
}

// StorePayloads has no dedicated store builtin: cont_obj_occupy_next_args_slots
// reserves len(values) slots and returns a write pointer, which the
// translator's own IR then stores each value through.
func (e *ProductionEnvironment) StorePayloads(contObj any, values []any) (any, error) {
	return e.builtin("cont_obj_occupy_next_args_slots", contObj, uint32(len(values))), nil
}

// StoreResumeArgs shares cont_obj_occupy_next_args_slots with StorePayloads:
// both reserve argument slots in the same payload buffer, just at different
// points in the resume/suspend protocol.
func (e *ProductionEnvironment) StoreResumeArgs(contObj any, values []any) (any, error) {
	return e.builtin("cont_obj_occupy_next_args_slots", contObj, uint32(len(values))), nil
}

func (e *ProductionEnvironment) ResetPayloads(contObj any) (any, error) {
	return e.builtin("cont_obj_reset_payloads", contObj), nil
}

// LoadContinuationObject and ContRefGetContObj both resolve a ContRef to its
// owned ContObj, routing through the same cont_ref_get_cont_obj builtin. The
// translator calls the former from the general typed-continuation payload
// path and the latter from the resume/suspend path, but the underlying
// operation shares one wazevoapi.Registry builtin.
func (e *ProductionEnvironment) LoadContinuationObject(contRef any) (any, error) {
	return e.builtin("cont_ref_get_cont_obj", contRef), nil
}

func (e *ProductionEnvironment) NewContRef(contObj any) (any, error) {
	return e.builtin("new_cont_ref", contObj), nil
}

func (e *ProductionEnvironment) LoadReturnValues(contObj any) ([]any, error) {
	return []any{e.builtin("cont_obj_get_results", contObj)}, nil
}

func (e *ProductionEnvironment) ContRefGetContObj(contRef any) (any, error) {
	return e.builtin("cont_ref_get_cont_obj", contRef), nil
}

func (e *ProductionEnvironment) BeforeTranslateOperator(string, Reachability) {}
func (e *ProductionEnvironment) AfterTranslateOperator(string, Reachability)  {}
func (e *ProductionEnvironment) AfterTranslateFunction()                     {}
