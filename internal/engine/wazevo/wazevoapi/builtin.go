package wazevoapi

// BuiltinParamKind is one of the parameter kinds a builtin signature may be
// built from: vmctx, i32, i64, pointer, or reference.
type BuiltinParamKind byte

const (
	BuiltinParamVMCtx BuiltinParamKind = iota
	BuiltinParamI32
	BuiltinParamI64
	BuiltinParamPointer
	BuiltinParamReference
)

// BuiltinReturnKind is the optional return kind of a builtin.
type BuiltinReturnKind byte

const (
	BuiltinReturnNone BuiltinReturnKind = iota
	BuiltinReturnI32
	BuiltinReturnI64
	BuiltinReturnPointer
	BuiltinReturnReference
)

// BuiltinSignature is a builtin's typed parameter/return shape.
type BuiltinSignature struct {
	Params []BuiltinParamKind
	Return BuiltinReturnKind
}

// Builtin is one compile-time-enumerated helper routine: its name, typed
// signature, and doc string. Index is assigned by position in
// builtinList — stable across runs, and part of the ABI of compiled
// artifacts.
type Builtin struct {
	Name      string
	Signature BuiltinSignature
	Doc       string
}

func sig(ret BuiltinReturnKind, params ...BuiltinParamKind) BuiltinSignature {
	return BuiltinSignature{Params: params, Return: ret}
}

const (
	p  = BuiltinParamPointer
	i32 = BuiltinParamI32
	i64 = BuiltinParamI64
	ref = BuiltinParamReference
	vx  = BuiltinParamVMCtx
)

// builtinList is the canonical ordered list backing the registry. Order is
// the ABI: never reorder, only append. This covers the memory, table,
// atomics, and GC helper builtins alongside the typed-continuation ones —
// every translate_* operation the environment exposes needs a builtin to
// lower to, not just the continuation subset.
var builtinList = []Builtin{
	{"memory32_grow", sig(BuiltinReturnPointer, vx, i64, i32), "wasm memory.grow"},
	{"table_copy", sig(BuiltinReturnNone, vx, i32, i32, i32, i32, i32), "wasm table.copy, both tables locally defined"},
	{"table_init", sig(BuiltinReturnNone, vx, i32, i32, i32, i32, i32), "wasm table.init"},
	{"elem_drop", sig(BuiltinReturnNone, vx, i32), "wasm elem.drop"},
	{"memory_copy", sig(BuiltinReturnNone, vx, i32, i64, i32, i64, i64), "wasm memory.copy"},
	{"memory_fill", sig(BuiltinReturnNone, vx, i32, i64, i32, i64), "wasm memory.fill"},
	{"memory_init", sig(BuiltinReturnNone, vx, i32, i32, i64, i32, i32), "wasm memory.init"},
	{"ref_func", sig(BuiltinReturnPointer, vx, i32), "wasm ref.func"},
	{"data_drop", sig(BuiltinReturnNone, vx, i32), "wasm data.drop"},
	{"table_get_lazy_init_func_ref", sig(BuiltinReturnPointer, vx, i32, i32), "table entry after lazy init"},
	{"table_grow_func_ref", sig(BuiltinReturnI32, vx, i32, i32, p), "wasm table.grow, funcref"},
	{"table_grow_externref", sig(BuiltinReturnI32, vx, i32, i32, ref), "wasm table.grow, externref"},
	{"table_fill_externref", sig(BuiltinReturnNone, vx, i32, i32, ref, i32), "wasm table.fill, externref"},
	{"table_fill_func_ref", sig(BuiltinReturnNone, vx, i32, i32, p, i32), "wasm table.fill, funcref"},
	{"drop_externref", sig(BuiltinReturnNone, vx, p), "drop a VMExternRef"},
	{"activations_table_insert_with_gc", sig(BuiltinReturnNone, vx, ref), "GC then insert into externref activations table"},
	{"externref_global_get", sig(BuiltinReturnReference, vx, i32), "wasm global.get, externref"},
	{"externref_global_set", sig(BuiltinReturnNone, vx, i32, ref), "wasm global.set, externref"},
	{"memory_atomic_notify", sig(BuiltinReturnI32, vx, i32, i64, i32), "wasm memory.atomic.notify"},
	{"memory_atomic_wait32", sig(BuiltinReturnI32, vx, i32, i64, i32, i64), "wasm memory.atomic.wait32"},
	{"memory_atomic_wait64", sig(BuiltinReturnI32, vx, i32, i64, i64, i64), "wasm memory.atomic.wait64"},
	{"out_of_gas", sig(BuiltinReturnNone, vx), "fuel exhausted while executing a function"},
	{"new_epoch", sig(BuiltinReturnI64, vx), "reached a new epoch"},

	// Typed-continuation builtins.
	{"cont_new", sig(BuiltinReturnPointer, vx, p, i64, i64), "create a new continuation from a funcref"},
	{"resume", sig(BuiltinReturnI32, vx, p), "resume a continuation"},
	{"suspend", sig(BuiltinReturnNone, vx, i32), "suspend a continuation with a tag"},
	{"cont_obj_get_payloads", sig(BuiltinReturnPointer, vx, p), "project the continuation payload buffer"},
	{"cont_obj_get_results", sig(BuiltinReturnPointer, vx, p), "project the continuation result value buffer"},
	{"cont_obj_occupy_next_args_slots", sig(BuiltinReturnPointer, vx, p, i32), "reserve argument slots in the payload buffer"},
	{"cont_obj_reset_payloads", sig(BuiltinReturnNone, vx, p), "truncate the payload buffer to zero length"},
	{"cont_obj_ensure_payloads_additional_capacity", sig(BuiltinReturnNone, vx, p, i64), "grow payload buffer capacity"},
	{"cont_ref_get_cont_obj", sig(BuiltinReturnPointer, vx, p), "resolve a continuation reference to its object"},
	{"new_cont_ref", sig(BuiltinReturnPointer, vx, p), "create a new continuation reference owning an object"},
	{"alllocate_payload_buffer", sig(BuiltinReturnPointer, vx, i64), "allocate a fresh payload scratch buffer"},
	{"dealllocate_payload_buffer", sig(BuiltinReturnNone, vx, p), "free a payload scratch buffer"},
}

// Registry exposes, from builtinList, a dense stable index per builtin and
// the total count.
type Registry struct {
	byName map[string]int
}

// NewRegistry builds the registry once; index assignment is simply position
// in builtinList.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]int, len(builtinList))}
	for i, b := range builtinList {
		r.byName[b.Name] = i
	}
	return r
}

// Index returns the dense, stable index of the named builtin and whether it
// was found.
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.byName[name]
	return i, ok
}

// At returns the builtin at the given index. Index out of range is a
// programmer error (a miscompiled artifact referencing a builtin table that
// doesn't exist), so this panics rather than returning an error.
func (r *Registry) At(index int) Builtin {
	if index < 0 || index >= len(builtinList) {
		panic("wazevoapi: builtin index out of range")
	}
	return builtinList[index]
}

// Count returns the total number of registered builtins.
func (r *Registry) Count() int { return len(builtinList) }

// All returns the canonical ordered builtin list. Callers must not mutate
// the returned slice's contents.
func (r *Registry) All() []Builtin { return builtinList }
