package wasm

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the declare_* operations. Wrapped with
// fmt.Errorf("%w: ...") so callers can still errors.Is against these.
var (
	// ErrIndexOutOfBounds is returned when an export or initializer
	// references an index past the end of its entity kind's table.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	// ErrDuplicateStart is returned by declare_start when a start function
	// has already been recorded for this module.
	ErrDuplicateStart = errors.New("duplicate start section")
	// ErrImportsNotFirst is returned when an imported-entity declaration
	// would violate the imports-first invariant (the count of entities of
	// that kind must equal the count of its imports at declaration time).
	ErrImportsNotFirst = errors.New("imports must precede locally defined entities")
)

// Import records the (module, field) pair of an imported function, table,
// memory, or global, plus which kind and declared index it resolved to.
type Import struct {
	Module, Name string
	Type         byte // entity kind byte; the Declare*Import methods do not set it and leave it 0.
	// Index is the index, within the entity kind's dense index space, that
	// this import occupies. Imports are always declared before locals, so
	// this is always < the kind's import count.
	Index uint32
}

// Global is a declared global: its value type, mutability, and initializer.
type Global struct {
	ValType Value
	Mutable bool
	Init    GlobalInitializer
}

// GlobalInitKind distinguishes the constructors of GlobalInitializer.
type GlobalInitKind byte

const (
	GlobalInitConstI32 GlobalInitKind = iota
	GlobalInitConstI64
	GlobalInitConstF32
	GlobalInitConstF64
	GlobalInitConstV128
	GlobalInitGetGlobal
	GlobalInitRefNull
	GlobalInitRefFunc
	GlobalInitImport
)

// GlobalInitializer is a sum: a constant of each numeric type, GetGlobal(idx),
// RefNullConst, RefFunc(idx), or Import (the value comes from the host at
// instantiation and has no compile-time-known constant).
type GlobalInitializer struct {
	Kind GlobalInitKind
	// ConstI32/I64/F32Bits/F64Bits/V128 hold the bit-pattern of the constant
	// for the matching Kind; GlobalIndex holds the operand of GetGlobal; Ref
	// holds the operand of RefFunc.
	ConstI32   int32
	ConstI64   int64
	ConstF32   uint32
	ConstF64   uint64
	ConstV128  [16]byte
	GlobalRef  GlobalIndex
	FuncRef    FuncIndex
}

// Table is a declared table: element type and limits (min required, max
// optional, encoded as -1 when absent).
type Table struct {
	ElemType RefType
	Min      uint32
	Max      int64 // -1 means "no maximum"
}

// Memory is a declared memory: limits in Wasm pages (64KiB each).
type Memory struct {
	Min uint32
	Max int64 // -1 means "no maximum"
}

// Function is a declared function: its type index and the export names it
// has accumulated so far.
type Function struct {
	TypeIndex TypeIndex
	ExportNames []string
}

// tableEntry, memoryEntry and globalEntry share the shape of a
// table/memory/global declaration: the entity itself, plus its accumulated
// export names.
type tableEntry struct {
	Table       Table
	ExportNames []string
}

type memoryEntry struct {
	Memory      Memory
	ExportNames []string
}

type globalEntry struct {
	Global      Global
	ExportNames []string
}

// Element is a table-elements initializer, either active (table index +
// offset initializer) or passive (referenced only by table.init).
type Element struct {
	TableIndex TableIndex
	Offset     GlobalInitializer
	FuncRefs   []FuncIndex
	Passive    bool
}

// Data is a data-segment initializer, either active or passive, mirroring
// Element.
type Data struct {
	MemoryIndex MemoryIndex
	Offset      GlobalInitializer
	Bytes       []byte
	Passive     bool
}

// Code is a defined function's body: its local types beyond the parameters,
// and the raw (still undecoded) operator byte stream — decoding and
// validating that stream is an external decoder's job, not this package's.
type Code struct {
	LocalTypes []Value
	Body       []byte
}

// Module is a pure accumulator: it holds, keyed by index, every entity a
// Wasm module can declare. It knows nothing about binary encoding; a
// decoder drives it through the declare_* operations in import-then-local
// order, and once sealed (decoding finished) the VMContext offset engine
// derives a layout from Module.Counts().
type Module struct {
	TypeSection []FunctionType

	ImportFunctionCount uint32
	ImportTableCount    uint32
	ImportMemoryCount   uint32
	ImportGlobalCount   uint32
	Imports             []Import

	Functions []Function
	tables    []tableEntry
	memories  []memoryEntry
	globals   []globalEntry

	Elements []Element
	Data     []Data
	Code     []Code // index-correlated with Functions[ImportFunctionCount:]

	StartFunc *FuncIndex
	Name      string
	// DebugNames maps a FuncIndex to a human-readable name, populated from
	// the optional name custom section.
	DebugNames map[FuncIndex]string

	// HasContIndex records whether a HeapTypeContIndex appears anywhere in
	// the module, which gates whether continuations are enabled for it. No
	// Declare* method of Module sets it.
	HasContIndex bool
}

// NewModule returns an empty Module ready to be driven by declare_* calls.
func NewModule() *Module {
	return &Module{DebugNames: map[FuncIndex]string{}}
}

// Counts aggregates, per entity kind, the imported and total counts. The
// VMContext offset engine consumes exactly this shape.
type Counts struct {
	ImportedFunctions, Functions uint32
	ImportedTables, Tables       uint32
	ImportedMemories, Memories  uint32
	ImportedGlobals, Globals    uint32
}

// Counts returns the current entity counts. Valid to call at any point
// during declaration, not just once sealed — the offset engine is a pure
// function of whatever counts are true "so far", which is how the original
// vmoffsets.rs computes layouts at compile time once all sections are read.
func (m *Module) Counts() Counts {
	return Counts{
		ImportedFunctions: m.ImportFunctionCount,
		Functions:         uint32(len(m.Functions)),
		ImportedTables:    m.ImportTableCount,
		Tables:            uint32(len(m.tables)),
		ImportedMemories:  m.ImportMemoryCount,
		Memories:          uint32(len(m.memories)),
		ImportedGlobals:   m.ImportGlobalCount,
		Globals:           uint32(len(m.globals)),
	}
}

// declare_type_func appends a function type to the type section and returns
// its index.
func (m *Module) DeclareTypeFunc(ft FunctionType) TypeIndex {
	m.TypeSection = append(m.TypeSection, ft)
	return TypeIndex(len(m.TypeSection) - 1)
}

// DeclareFuncImport records an imported function. Must be called before any
// DeclareFuncType call for this module (imports-first invariant): asserts
// that doing so keeps ImportFunctionCount == len(Functions).
func (m *Module) DeclareFuncImport(module, name string, typeIdx TypeIndex) (FuncIndex, error) {
	if uint32(len(m.Functions)) != m.ImportFunctionCount {
		return 0, fmt.Errorf("%w: function import %s.%s declared after a local function", ErrImportsNotFirst, module, name)
	}
	idx := FuncIndex(len(m.Functions))
	m.Functions = append(m.Functions, Function{TypeIndex: typeIdx})
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Index: uint32(idx)})
	m.ImportFunctionCount++
	return idx, nil
}

// DeclareFuncType appends a locally defined function (no body yet — that
// comes from DefineFunctionBody) and returns its index.
func (m *Module) DeclareFuncType(typeIdx TypeIndex) FuncIndex {
	idx := FuncIndex(len(m.Functions))
	m.Functions = append(m.Functions, Function{TypeIndex: typeIdx})
	return idx
}

// DefineFunctionBody attaches a decoded body to the defined function at the
// given index (a FuncIndex in the defined range, i.e. >= ImportFunctionCount).
func (m *Module) DefineFunctionBody(idx FuncIndex, localTypes []Value, body []byte) error {
	local := int(idx) - int(m.ImportFunctionCount)
	if local < 0 || local >= len(m.Functions)-int(m.ImportFunctionCount) {
		return fmt.Errorf("%w: function %d", ErrIndexOutOfBounds, idx)
	}
	for len(m.Code) <= local {
		m.Code = append(m.Code, Code{})
	}
	m.Code[local] = Code{LocalTypes: localTypes, Body: body}
	return nil
}

// DeclareGlobalImport records an imported global.
func (m *Module) DeclareGlobalImport(module, name string, g Global) (GlobalIndex, error) {
	if uint32(len(m.globals)) != m.ImportGlobalCount {
		return 0, fmt.Errorf("%w: global import %s.%s declared after a local global", ErrImportsNotFirst, module, name)
	}
	idx := GlobalIndex(len(m.globals))
	m.globals = append(m.globals, globalEntry{Global: g})
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Index: uint32(idx)})
	m.ImportGlobalCount++
	return idx, nil
}

// DeclareGlobal appends a locally defined global.
func (m *Module) DeclareGlobal(g Global) GlobalIndex {
	idx := GlobalIndex(len(m.globals))
	m.globals = append(m.globals, globalEntry{Global: g})
	return idx
}

// DeclareTableImport records an imported table.
func (m *Module) DeclareTableImport(module, name string, t Table) (TableIndex, error) {
	if uint32(len(m.tables)) != m.ImportTableCount {
		return 0, fmt.Errorf("%w: table import %s.%s declared after a local table", ErrImportsNotFirst, module, name)
	}
	idx := TableIndex(len(m.tables))
	m.tables = append(m.tables, tableEntry{Table: t})
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Index: uint32(idx)})
	m.ImportTableCount++
	return idx, nil
}

// DeclareTable appends a locally defined table.
func (m *Module) DeclareTable(t Table) TableIndex {
	idx := TableIndex(len(m.tables))
	m.tables = append(m.tables, tableEntry{Table: t})
	return idx
}

// DeclareMemoryImport records an imported memory.
func (m *Module) DeclareMemoryImport(module, name string, mem Memory) (MemoryIndex, error) {
	if uint32(len(m.memories)) != m.ImportMemoryCount {
		return 0, fmt.Errorf("%w: memory import %s.%s declared after a local memory", ErrImportsNotFirst, module, name)
	}
	idx := MemoryIndex(len(m.memories))
	m.memories = append(m.memories, memoryEntry{Memory: mem})
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Index: uint32(idx)})
	m.ImportMemoryCount++
	return idx, nil
}

// DeclareMemory appends a locally defined memory.
func (m *Module) DeclareMemory(mem Memory) MemoryIndex {
	idx := MemoryIndex(len(m.memories))
	m.memories = append(m.memories, memoryEntry{Memory: mem})
	return idx
}

// DeclareFuncExport appends an export name to the function at idx.
// Duplicate names are not deduplicated at this layer.
func (m *Module) DeclareFuncExport(idx FuncIndex, name string) error {
	if int(idx) >= len(m.Functions) {
		return fmt.Errorf("%w: func export %q -> %d", ErrIndexOutOfBounds, name, idx)
	}
	m.Functions[idx].ExportNames = append(m.Functions[idx].ExportNames, name)
	return nil
}

// DeclareTableExport appends an export name to the table at idx.
func (m *Module) DeclareTableExport(idx TableIndex, name string) error {
	if int(idx) >= len(m.tables) {
		return fmt.Errorf("%w: table export %q -> %d", ErrIndexOutOfBounds, name, idx)
	}
	m.tables[idx].ExportNames = append(m.tables[idx].ExportNames, name)
	return nil
}

// DeclareMemoryExport appends an export name to the memory at idx.
func (m *Module) DeclareMemoryExport(idx MemoryIndex, name string) error {
	if int(idx) >= len(m.memories) {
		return fmt.Errorf("%w: memory export %q -> %d", ErrIndexOutOfBounds, name, idx)
	}
	m.memories[idx].ExportNames = append(m.memories[idx].ExportNames, name)
	return nil
}

// DeclareGlobalExport appends an export name to the global at idx.
func (m *Module) DeclareGlobalExport(idx GlobalIndex, name string) error {
	if int(idx) >= len(m.globals) {
		return fmt.Errorf("%w: global export %q -> %d", ErrIndexOutOfBounds, name, idx)
	}
	m.globals[idx].ExportNames = append(m.globals[idx].ExportNames, name)
	return nil
}

// DeclareStart sets the module's start function. Fails if a start function
// was already set.
func (m *Module) DeclareStart(idx FuncIndex) error {
	if m.StartFunc != nil {
		return fmt.Errorf("%w", ErrDuplicateStart)
	}
	if int(idx) >= len(m.Functions) {
		return fmt.Errorf("%w: start function %d", ErrIndexOutOfBounds, idx)
	}
	m.StartFunc = &idx
	return nil
}

// DeclarePassiveElement appends a passive element segment.
func (m *Module) DeclarePassiveElement(funcRefs []FuncIndex) ElemIndex {
	idx := ElemIndex(len(m.Elements))
	m.Elements = append(m.Elements, Element{FuncRefs: funcRefs, Passive: true})
	return idx
}

// DeclarePassiveData appends a passive data segment.
func (m *Module) DeclarePassiveData(b []byte) DataIndex {
	idx := DataIndex(len(m.Data))
	m.Data = append(m.Data, Data{Bytes: b, Passive: true})
	return idx
}

// DeclareTableElements appends an active element segment targeting table.
func (m *Module) DeclareTableElements(table TableIndex, offset GlobalInitializer, funcRefs []FuncIndex) error {
	if int(table) >= len(m.tables) {
		return fmt.Errorf("%w: table elements -> table %d", ErrIndexOutOfBounds, table)
	}
	m.Elements = append(m.Elements, Element{TableIndex: table, Offset: offset, FuncRefs: funcRefs})
	return nil
}

// DeclareDataInitialization appends an active data segment targeting memory.
func (m *Module) DeclareDataInitialization(memory MemoryIndex, offset GlobalInitializer, b []byte) error {
	if int(memory) >= len(m.memories) {
		return fmt.Errorf("%w: data initialization -> memory %d", ErrIndexOutOfBounds, memory)
	}
	m.Data = append(m.Data, Data{MemoryIndex: memory, Offset: offset, Bytes: b})
	return nil
}

// TableAt, MemoryAt, GlobalAt expose the entity (without its export names,
// use the *ExportNames accessors below for those) at a given index.
func (m *Module) TableAt(i TableIndex) (Table, bool) {
	if int(i) >= len(m.tables) {
		return Table{}, false
	}
	return m.tables[i].Table, true
}

func (m *Module) MemoryAt(i MemoryIndex) (Memory, bool) {
	if int(i) >= len(m.memories) {
		return Memory{}, false
	}
	return m.memories[i].Memory, true
}

func (m *Module) GlobalAt(i GlobalIndex) (Global, bool) {
	if int(i) >= len(m.globals) {
		return Global{}, false
	}
	return m.globals[i].Global, true
}

func (m *Module) TableExportNames(i TableIndex) []string   { return m.tables[i].ExportNames }
func (m *Module) MemoryExportNames(i MemoryIndex) []string { return m.memories[i].ExportNames }
func (m *Module) GlobalExportNames(i GlobalIndex) []string { return m.globals[i].ExportNames }

// NumTables, NumMemories, NumGlobals expose the current declared count of
// each kind, imports included.
func (m *Module) NumTables() int  { return len(m.tables) }
func (m *Module) NumMemories() int { return len(m.memories) }
func (m *Module) NumGlobals() int { return len(m.globals) }
