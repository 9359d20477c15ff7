// Package wazevoapi computes the deterministic byte-offset layout of the
// VMContext record and the builtin-function registry that generated code
// calls into through it.
//
// The layout algorithm generalizes a single dynamically-sized "opaque
// module context" into a full VMContext record: imports, locals, owned
// memories, func refs, and the continuation store/payload fields.
package wazevoapi

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Offset is a byte offset of a field within the VMContext record, or within
// one of its indexed arrays.
type Offset uint32

// U32 encodes an Offset as uint32 for convenience at call sites that build
// machine-code immediates.
func (o Offset) U32() uint32 { return uint32(o) }

// PointerSize is the width, in bytes, of a pointer on the compilation
// target. The offset engine is parametric over this so the same algorithm
// serves both 32-bit and 64-bit backends.
type PointerSize uint32

const (
	PointerSize32 PointerSize = 4
	PointerSize64 PointerSize = 8
)

// VMContextMagic is the little-endian sentinel written at offset 0 of every
// VMContext.
const VMContextMagic uint32 = 0x65726f63 // "core" little-endian

// perRecordSizes are the number of pointer-widths consumed by one record of
// each indexed array. "Owned memories" also carries a fixed 16-byte
// alignment requirement handled separately.
const (
	importedFunctionPointers = 4 // wasm_call, native_call, array_call, vmctx
	importedTablePointers    = 2 // from, vmctx
	importedMemoryPointers   = 3 // from, vmctx, padding
	importedGlobalPointers   = 1 // from
	definedTablePointers     = 1 // base; current_elements (u32) is a fixed 4 bytes appended
	definedTableTrailerBytes = 4
	definedMemoryPointers    = 1 // *MemDef
	ownedMemoryPointers      = 2 // base, current_length
	definedGlobalBytes       = 16
	funcRefPointers          = 5 // native_call, array_call, wasm_call, type_index, vmctx
)

// Counts is the per-kind entity counts the offset engine needs. It is the
// same shape as wasm.Counts; kept as a separate type here so this package
// has no dependency on internal/wasm — the pure offset math only needs
// counts, not a whole module.
type Counts struct {
	ImportedFunctions, Functions uint32
	ImportedTables, Tables       uint32
	ImportedMemories, Memories   uint32
	ImportedGlobals, Globals    uint32
}

// definedFunctions is the number of locally defined (non-imported) functions.
func (c Counts) definedFunctions() uint32 { return c.Functions - c.ImportedFunctions }
func (c Counts) definedTables() uint32    { return c.Tables - c.ImportedTables }
func (c Counts) definedMemories() uint32  { return c.Memories - c.ImportedMemories }
func (c Counts) ownedMemories() uint32    { return c.definedMemories() }
func (c Counts) definedGlobals() uint32   { return c.Globals - c.ImportedGlobals }

// funcRefCount is the number of entries in the escaped-function-references
// table. Every declared function (imported or defined) can in principle
// have its reference taken via ref.func, so the table is sized to the full
// function count.
func (c Counts) funcRefCount() uint32 { return c.Functions }

// region is one named, fixed-size field in placement order, used both to
// derive offsets and to build the region-size iterator.
type region struct {
	name string
	size uint32
}

// VMOffsets is the result of laying out a VMContext for one
// (pointer_size, counts) pair. Every field and indexed slot is reachable
// through an accessor method below.
type VMOffsets struct {
	pointerSize PointerSize
	counts      Counts

	magic                       Offset
	runtimeLimits               Offset
	callee                      Offset
	epochPtr                    Offset
	externrefActivationsTable   Offset
	store                       Offset
	builtins                    Offset
	signatureIDs                Offset
	importedFunctionsBegin      Offset
	importedTablesBegin         Offset
	importedMemoriesBegin       Offset
	importedGlobalsBegin        Offset
	definedTablesBegin          Offset
	definedMemoriesBegin        Offset
	ownedMemoriesBegin          Offset
	definedGlobalsBegin         Offset
	funcRefsBegin               Offset
	typedContinuationsStore     Offset
	typedContinuationsPayloads  Offset

	size uint32

	regions []region // in placement order; region_sizes() walks it in reverse.
}

// alignUp rounds n up to the next multiple of align, which must be a power
// of two. Overflow (n so large that rounding wraps) is reported via the
// second return rather than wrapping silently. Generic over any unsigned
// integer type so both the layout algorithm's uint64 cursor and a narrower
// caller's offset type can share one implementation.
func alignUp[T constraints.Unsigned](n, align T) (T, bool) {
	var max T = ^T(0)
	if n > max-(align-1) {
		return 0, false
	}
	return (n + align - 1) &^ (align - 1), true
}

// NewVMOffsets computes the VMContext layout for the given pointer width and
// entity counts. It panics only on arithmetic overflow building an indexed
// array's total size — that indicates a module so large it cannot be
// represented, which callers are expected to reject long before reaching
// this engine.
func NewVMOffsets(pointerSize PointerSize, counts Counts) *VMOffsets {
	ps := uint64(pointerSize)
	o := &VMOffsets{pointerSize: pointerSize, counts: counts}

	var cursor uint64
	add := func(name string, size uint64) Offset {
		start := cursor
		o.regions = append(o.regions, region{name: name, size: uint32(size)})
		cursor += size
		return Offset(start)
	}

	// 1. magic at 0.
	o.magic = add("magic", 4)

	// 2. Align cursor to pointer width before the first pointer field.
	aligned, ok := alignUp(cursor, ps)
	if !ok {
		panic("vmoffsets: overflow aligning past magic")
	}
	if pad := aligned - cursor; pad > 0 {
		add("padding (magic -> pointer align)", pad)
	}

	// 3. Single pointer/typed-scalar fields, in their fixed order.
	o.runtimeLimits = add("runtime_limits", ps)
	o.callee = add("callee", ps)
	o.epochPtr = add("epoch_ptr", ps)
	o.externrefActivationsTable = add("externref_activations_table", ps)
	o.store = add("store", 2*ps) // fat pointer: two pointer-widths.
	o.builtins = add("builtins", ps)
	o.signatureIDs = add("signature_ids", ps)

	// 4. Indexed arrays, checked arithmetic.
	o.importedFunctionsBegin = Offset(cursor)
	sz, ok := checkedArraySize(uint64(counts.ImportedFunctions), importedFunctionPointers*ps)
	if !ok {
		panic("vmoffsets: overflow sizing imported functions")
	}
	add("imported_functions", sz)

	o.importedTablesBegin = Offset(cursor)
	sz, ok = checkedArraySize(uint64(counts.ImportedTables), importedTablePointers*ps)
	if !ok {
		panic("vmoffsets: overflow sizing imported tables")
	}
	add("imported_tables", sz)

	o.importedMemoriesBegin = Offset(cursor)
	sz, ok = checkedArraySize(uint64(counts.ImportedMemories), importedMemoryPointers*ps)
	if !ok {
		panic("vmoffsets: overflow sizing imported memories")
	}
	add("imported_memories", sz)

	o.importedGlobalsBegin = Offset(cursor)
	sz, ok = checkedArraySize(uint64(counts.ImportedGlobals), importedGlobalPointers*ps)
	if !ok {
		panic("vmoffsets: overflow sizing imported globals")
	}
	add("imported_globals", sz)

	o.definedTablesBegin = Offset(cursor)
	perTable := definedTablePointers*ps + definedTableTrailerBytes
	sz, ok = checkedArraySize(uint64(counts.definedTables()), perTable)
	if !ok {
		panic("vmoffsets: overflow sizing defined tables")
	}
	add("defined_tables", sz)

	o.definedMemoriesBegin = Offset(cursor)
	sz, ok = checkedArraySize(uint64(counts.definedMemories()), definedMemoryPointers*ps)
	if !ok {
		panic("vmoffsets: overflow sizing defined memories")
	}
	add("defined_memories", sz)

	// 5. Align to 16 before owned_memories.
	aligned, ok = alignUp(cursor, 16)
	if !ok {
		panic("vmoffsets: overflow aligning before owned_memories")
	}
	if pad := aligned - cursor; pad > 0 {
		add("padding (-> owned_memories align)", pad)
	}
	o.ownedMemoriesBegin = Offset(cursor)
	sz, ok = checkedArraySize(uint64(counts.ownedMemories()), ownedMemoryPointers*ps)
	if !ok {
		panic("vmoffsets: overflow sizing owned memories")
	}
	add("owned_memories", sz)

	// 5 (cont'd). Align to 16 before defined_globals.
	aligned, ok = alignUp(cursor, 16)
	if !ok {
		panic("vmoffsets: overflow aligning before defined_globals")
	}
	if pad := aligned - cursor; pad > 0 {
		add("padding (-> defined_globals align)", pad)
	}
	o.definedGlobalsBegin = Offset(cursor)
	sz, ok = checkedArraySize(uint64(counts.definedGlobals()), definedGlobalBytes)
	if !ok {
		panic("vmoffsets: overflow sizing defined globals")
	}
	add("defined_globals", sz)

	o.funcRefsBegin = Offset(cursor)
	sz, ok = checkedArraySize(uint64(counts.funcRefCount()), funcRefPointers*ps)
	if !ok {
		panic("vmoffsets: overflow sizing func refs")
	}
	add("func_refs", sz)

	// 6. After func_refs, append the continuation store and payloads ptr.
	o.typedContinuationsStore = add("typed_continuations_store", ps)
	o.typedContinuationsPayloads = add("typed_continuations_payloads_ptr", ps)

	// 7. Align final size to 16.
	aligned, ok = alignUp(cursor, 16)
	if !ok {
		panic("vmoffsets: overflow aligning final size")
	}
	if pad := aligned - cursor; pad > 0 {
		add("padding (final align)", pad)
	}

	o.size = uint32(cursor)
	return o
}

func checkedArraySize(count, perElem uint64) (uint64, bool) {
	if perElem != 0 && count > math.MaxUint64/perElem {
		return 0, false
	}
	return count * perElem, true
}

// PointerSize returns the pointer width this layout was computed for.
func (o *VMOffsets) PointerSize() PointerSize { return o.pointerSize }

// Size returns the total size of the VMContext record, a multiple of 16.
func (o *VMOffsets) Size() uint32 { return o.size }

// Non-indexed field accessors, named exactly after the logical record they expose.
func (o *VMOffsets) VMCtxMagic() Offset                     { return o.magic }
func (o *VMOffsets) VMCtxRuntimeLimits() Offset             { return o.runtimeLimits }
func (o *VMOffsets) VMCtxCallee() Offset                    { return o.callee }
func (o *VMOffsets) VMCtxEpochPtr() Offset                  { return o.epochPtr }
func (o *VMOffsets) VMCtxExternrefActivationsTable() Offset { return o.externrefActivationsTable }
func (o *VMOffsets) VMCtxStore() Offset                     { return o.store }
func (o *VMOffsets) VMCtxBuiltinFunctions() Offset          { return o.builtins }
func (o *VMOffsets) VMCtxSignatureIDs() Offset              { return o.signatureIDs }
func (o *VMOffsets) VMCtxImportedFunctionsBegin() Offset    { return o.importedFunctionsBegin }
func (o *VMOffsets) VMCtxImportedTablesBegin() Offset       { return o.importedTablesBegin }
func (o *VMOffsets) VMCtxImportedMemoriesBegin() Offset     { return o.importedMemoriesBegin }
func (o *VMOffsets) VMCtxImportedGlobalsBegin() Offset      { return o.importedGlobalsBegin }
func (o *VMOffsets) VMCtxDefinedTablesBegin() Offset        { return o.definedTablesBegin }
func (o *VMOffsets) VMCtxDefinedMemoriesBegin() Offset      { return o.definedMemoriesBegin }
func (o *VMOffsets) VMCtxOwnedMemoriesBegin() Offset        { return o.ownedMemoriesBegin }
func (o *VMOffsets) VMCtxDefinedGlobalsBegin() Offset       { return o.definedGlobalsBegin }
func (o *VMOffsets) VMCtxFuncRefsBegin() Offset             { return o.funcRefsBegin }
func (o *VMOffsets) VMCtxTypedContinuationsStore() Offset   { return o.typedContinuationsStore }
func (o *VMOffsets) VMCtxTypedContinuationsPayloadsPtr() Offset {
	return o.typedContinuationsPayloads
}

// Per-record sizes, named after the original vmoffsets.rs accessors.
func (o *VMOffsets) SizeOfVMFunctionImport() Offset { return Offset(importedFunctionPointers) * Offset(o.pointerSize) }
func (o *VMOffsets) SizeOfVMTableImport() Offset    { return Offset(importedTablePointers) * Offset(o.pointerSize) }
func (o *VMOffsets) SizeOfVMMemoryImport() Offset   { return Offset(importedMemoryPointers) * Offset(o.pointerSize) }
func (o *VMOffsets) SizeOfVMGlobalImport() Offset   { return Offset(importedGlobalPointers) * Offset(o.pointerSize) }
func (o *VMOffsets) SizeOfVMTableDefinition() Offset {
	return Offset(definedTablePointers)*Offset(o.pointerSize) + definedTableTrailerBytes
}
func (o *VMOffsets) SizeOfVMMemoryPointer() Offset  { return Offset(definedMemoryPointers) * Offset(o.pointerSize) }
func (o *VMOffsets) SizeOfVMMemoryDefinition() Offset {
	return Offset(ownedMemoryPointers) * Offset(o.pointerSize)
}
func (o *VMOffsets) SizeOfVMGlobalDefinition() Offset { return definedGlobalBytes }
func (o *VMOffsets) SizeOfVMFuncRef() Offset          { return Offset(funcRefPointers) * Offset(o.pointerSize) }

// checkIndex backs every indexed accessor's bounds-check; panics (a
// programmer error, never a recoverable runtime condition) when out of range.
func (o *VMOffsets) checkIndex(kind string, i, count uint32) {
	if i >= count {
		panic(fmt.Sprintf("vmoffsets: %s index %d out of range (count=%d)", kind, i, count))
	}
}

// vmctxImportedFunctionBase returns the offset of the i-th imported function's
// record, and VMCtxImportedFunctionWasmCall/NativeCall/ArrayCall/VMCtx
// return the offsets of its four pointer fields.
func (o *VMOffsets) vmctxImportedFunctionBase(i uint32) Offset {
	o.checkIndex("imported function", i, o.counts.ImportedFunctions)
	return o.importedFunctionsBegin + Offset(i)*o.SizeOfVMFunctionImport()
}

func (o *VMOffsets) VMCtxImportedFunctionWasmCall(i uint32) Offset {
	return o.vmctxImportedFunctionBase(i)
}
func (o *VMOffsets) VMCtxImportedFunctionNativeCall(i uint32) Offset {
	return o.vmctxImportedFunctionBase(i) + Offset(o.pointerSize)
}
func (o *VMOffsets) VMCtxImportedFunctionArrayCall(i uint32) Offset {
	return o.vmctxImportedFunctionBase(i) + 2*Offset(o.pointerSize)
}
func (o *VMOffsets) VMCtxImportedFunctionVMCtx(i uint32) Offset {
	return o.vmctxImportedFunctionBase(i) + 3*Offset(o.pointerSize)
}

// VMCtxImportedTableFrom/VMCtx return the two fields of the i-th imported
// table record.
func (o *VMOffsets) vmctxImportedTableBase(i uint32) Offset {
	o.checkIndex("imported table", i, o.counts.ImportedTables)
	return o.importedTablesBegin + Offset(i)*o.SizeOfVMTableImport()
}
func (o *VMOffsets) VMCtxImportedTableFrom(i uint32) Offset  { return o.vmctxImportedTableBase(i) }
func (o *VMOffsets) VMCtxImportedTableVMCtx(i uint32) Offset {
	return o.vmctxImportedTableBase(i) + Offset(o.pointerSize)
}

// VMCtxImportedMemoryFrom/VMCtx return the first two fields of the i-th
// imported memory record (the third is padding).
func (o *VMOffsets) vmctxImportedMemoryBase(i uint32) Offset {
	o.checkIndex("imported memory", i, o.counts.ImportedMemories)
	return o.importedMemoriesBegin + Offset(i)*o.SizeOfVMMemoryImport()
}
func (o *VMOffsets) VMCtxImportedMemoryFrom(i uint32) Offset { return o.vmctxImportedMemoryBase(i) }
func (o *VMOffsets) VMCtxImportedMemoryVMCtx(i uint32) Offset {
	return o.vmctxImportedMemoryBase(i) + Offset(o.pointerSize)
}

// VMCtxImportedGlobalFrom returns the single field of the i-th imported
// global record.
func (o *VMOffsets) VMCtxImportedGlobalFrom(i uint32) Offset {
	o.checkIndex("imported global", i, o.counts.ImportedGlobals)
	return o.importedGlobalsBegin + Offset(i)*o.SizeOfVMGlobalImport()
}

// VMCtxDefinedTableBase/CurrentElements return the two fields of the i-th
// defined (non-imported) table record, indexed by DefinedTableIndex (0-based
// among locals, not the module-wide TableIndex).
func (o *VMOffsets) vmctxDefinedTableBase(i uint32) Offset {
	o.checkIndex("defined table", i, o.counts.definedTables())
	return o.definedTablesBegin + Offset(i)*o.SizeOfVMTableDefinition()
}
func (o *VMOffsets) VMCtxDefinedTableBase(i uint32) Offset { return o.vmctxDefinedTableBase(i) }
func (o *VMOffsets) VMCtxDefinedTableCurrentElements(i uint32) Offset {
	return o.vmctxDefinedTableBase(i) + Offset(definedTablePointers)*Offset(o.pointerSize)
}

// VMCtxDefinedMemoryPointer returns the offset of the i-th defined memory's
// single *MemDef pointer.
func (o *VMOffsets) VMCtxDefinedMemoryPointer(i uint32) Offset {
	o.checkIndex("defined memory", i, o.counts.definedMemories())
	return o.definedMemoriesBegin + Offset(i)*o.SizeOfVMMemoryPointer()
}

// VMCtxOwnedMemoryBase/Length return the two fields of the i-th owned
// memory record (base pointer, current length).
func (o *VMOffsets) vmctxOwnedMemoryBase(i uint32) Offset {
	o.checkIndex("owned memory", i, o.counts.ownedMemories())
	return o.ownedMemoriesBegin + Offset(i)*o.SizeOfVMMemoryDefinition()
}
func (o *VMOffsets) VMCtxOwnedMemoryBase(i uint32) Offset { return o.vmctxOwnedMemoryBase(i) }
func (o *VMOffsets) VMCtxOwnedMemoryLength(i uint32) Offset {
	return o.vmctxOwnedMemoryBase(i) + Offset(o.pointerSize)
}

// VMCtxGlobalDefinition returns the offset of the i-th defined global's
// 16-byte value slot.
func (o *VMOffsets) VMCtxGlobalDefinition(i uint32) Offset {
	o.checkIndex("defined global", i, o.counts.definedGlobals())
	return o.definedGlobalsBegin + Offset(i)*o.SizeOfVMGlobalDefinition()
}

// VMCtxFuncRef returns the offset of the i-th func-ref record (native_call,
// array_call, wasm_call, type_index, vmctx — in that order).
func (o *VMOffsets) vmctxFuncRefBase(i uint32) Offset {
	o.checkIndex("func ref", i, o.counts.funcRefCount())
	return o.funcRefsBegin + Offset(i)*o.SizeOfVMFuncRef()
}
func (o *VMOffsets) VMCtxFuncRefNativeCall(i uint32) Offset { return o.vmctxFuncRefBase(i) }
func (o *VMOffsets) VMCtxFuncRefArrayCall(i uint32) Offset {
	return o.vmctxFuncRefBase(i) + Offset(o.pointerSize)
}
func (o *VMOffsets) VMCtxFuncRefWasmCall(i uint32) Offset {
	return o.vmctxFuncRefBase(i) + 2*Offset(o.pointerSize)
}
func (o *VMOffsets) VMCtxFuncRefTypeIndex(i uint32) Offset {
	return o.vmctxFuncRefBase(i) + 3*Offset(o.pointerSize)
}
func (o *VMOffsets) VMCtxFuncRefVMCtx(i uint32) Offset {
	return o.vmctxFuncRefBase(i) + 4*Offset(o.pointerSize)
}

// RegionSizes walks the placed fields in REVERSE of placement order and
// yields (description, bytes) pairs. The sum of all yielded sizes equals
// Size().
func (o *VMOffsets) RegionSizes() []RegionSize {
	out := make([]RegionSize, len(o.regions))
	for i, r := range o.regions {
		out[len(o.regions)-1-i] = RegionSize{Description: r.name, Bytes: r.size}
	}
	return out
}

// RegionSize is one entry of the region-size iterator: a human-readable
// description and its byte span.
type RegionSize struct {
	Description string
	Bytes       uint32
}
