// Package wasm holds the type model and module descriptor that the rest of
// the runtime is built on: value types, reference types, function types, and
// the per-module table of declared entities that the VMContext offset engine
// and the translation environment both consume.
package wasm

import (
	"fmt"
)

// ValueType is a numeric Wasm value type; Value pairs it with the reference
// types.
//
// See https://webassembly.github.io/spec/core/syntax/types.html#value-types
type ValueType byte

const (
	ValueTypeI32 ValueType = iota
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
	ValueTypeV128
)

// Wire-format constructor bytes for ValueType and the two unparameterized
// HeapType constructors, per the binary value-type encoding.
const (
	wireValueTypeI32  byte = 0x7f
	wireValueTypeI64  byte = 0x7e
	wireValueTypeF32  byte = 0x7d
	wireValueTypeF64  byte = 0x7c
	wireValueTypeV128 byte = 0x7b

	wireHeapTypeFunc   byte = 0x70
	wireHeapTypeExtern byte = 0x6f
)

// ParseValueType decodes a numeric value-type constructor byte. It only
// handles the non-reference numeric kinds; funcref/externref decode via
// ParseHeapType instead. Fails with ErrInvalidType on an unrecognized
// constructor.
func ParseValueType(b byte) (ValueType, error) {
	switch b {
	case wireValueTypeI32:
		return ValueTypeI32, nil
	case wireValueTypeI64:
		return ValueTypeI64, nil
	case wireValueTypeF32:
		return ValueTypeF32, nil
	case wireValueTypeF64:
		return ValueTypeF64, nil
	case wireValueTypeV128:
		return ValueTypeV128, nil
	default:
		return 0, fmt.Errorf("%w: value type constructor %#x", ErrInvalidType, b)
	}
}

// ParseHeapType decodes the two unparameterized heap-type constructors,
// funcref (0x70) and externref (0x6f). Indexed heap types (HeapTypeFuncIndex,
// HeapTypeContIndex) are never spelled as a single wire byte: the decoder
// reads a signed type index instead and builds the HeapType directly. Fails
// with ErrInvalidType on any other constructor.
func ParseHeapType(b byte) (HeapType, error) {
	switch b {
	case wireHeapTypeFunc:
		return HeapType{Kind: HeapTypeFunc}, nil
	case wireHeapTypeExtern:
		return HeapType{Kind: HeapTypeExtern}, nil
	default:
		return HeapType{}, fmt.Errorf("%w: heap type constructor %#x", ErrInvalidType, b)
	}
}

// String implements fmt.Stringer, following the Wasm reference-type textual
// convention (e.g. "i32", "funcref").
func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(v))
	}
}

// HeapTypeKind distinguishes the constructors of HeapType.
type HeapTypeKind byte

const (
	// HeapTypeFunc is the top type of all function references.
	HeapTypeFunc HeapTypeKind = iota
	// HeapTypeExtern is the top type of all external (host) references.
	HeapTypeExtern
	// HeapTypeFuncIndex indexes a concrete function type in the module's
	// type section.
	HeapTypeFuncIndex
	// HeapTypeContIndex indexes a concrete continuation type. Valid only
	// where the module has opted into typed continuations.
	HeapTypeContIndex
	// HeapTypeBot is the bottom type, used for unreachable code.
	HeapTypeBot
)

// HeapType is Func | Extern | FuncIndex(u32) | ContIndex(u32) | Bot.
//
// A HeapType carrying an index is resolved lazily: Index is meaningful only
// once a table of module types is available, where the caller looks up the
// concrete FunctionType it denotes. HeapType itself has no lookup method.
type HeapType struct {
	Kind HeapTypeKind
	// Index is valid only when Kind is HeapTypeFuncIndex or HeapTypeContIndex.
	Index TypeIndex
}

// ErrInvalidType is returned when decoding an unrecognized type constructor.
var ErrInvalidType = fmt.Errorf("invalid type")

// String renders the Wasm reference-type textual form.
func (h HeapType) String() string {
	switch h.Kind {
	case HeapTypeFunc:
		return "func"
	case HeapTypeExtern:
		return "extern"
	case HeapTypeFuncIndex:
		return fmt.Sprintf("$type%d", h.Index)
	case HeapTypeContIndex:
		return fmt.Sprintf("$cont%d", h.Index)
	case HeapTypeBot:
		return "bot"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(h.Kind))
	}
}

// RefType is a nullable-or-not reference to a HeapType.
type RefType struct {
	Nullable bool
	Heap     HeapType
}

// String renders e.g. "funcref", "(ref null $type3)".
func (r RefType) String() string {
	switch {
	case r.Heap.Kind == HeapTypeFunc && r.Nullable:
		return "funcref"
	case r.Heap.Kind == HeapTypeExtern && r.Nullable:
		return "externref"
	case r.Nullable:
		return fmt.Sprintf("(ref null %s)", r.Heap)
	default:
		return fmt.Sprintf("(ref %s)", r.Heap)
	}
}

// Value is a tagged value-type variant: a numeric kind or a reference type.
type Value struct {
	// Numeric holds one of ValueTypeI32/I64/F32/F64/V128 when Ref is nil.
	Numeric ValueType
	// Ref is non-nil when this Value denotes a reference type; Numeric is
	// ignored in that case.
	Ref *RefType
}

// IsReference reports whether this value type is a reference.
func (v Value) IsReference() bool { return v.Ref != nil }

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.Ref != nil {
		return v.Ref.String()
	}
	return v.Numeric.String()
}

// Indices. Each is a distinct nominal type over uint32 so a caller can never
// accidentally pass a TableIndex where a MemoryIndex is expected.
type (
	TypeIndex        uint32
	FuncIndex        uint32 // dense, imports then defined
	DefinedFuncIndex uint32 // defined-only, i.e. FuncIndex - count(imported funcs)
	TableIndex       uint32
	MemoryIndex      uint32
	OwnedMemoryIndex uint32 // MemoryIndex - count(imported memories)
	GlobalIndex      uint32
	TagIndex         uint32
	DataIndex        uint32
	ElemIndex        uint32
	FuncRefIndex     uint32 // index into the escaped-function-references table
)

// FunctionType is an ordered parameter list and an ordered return list.
//
// ParamNumExternRef and ResultNumExternRef cache the count of externref
// typed entries in Params/Results respectively, used by generated code's GC
// barrier fast path to skip the barrier entirely when both are zero.
type FunctionType struct {
	Params  []Value
	Results []Value

	ParamNumExternRef  uint32
	ResultNumExternRef uint32
}

// NewFunctionType computes the derived externref counts and returns the type.
func NewFunctionType(params, results []Value) FunctionType {
	ft := FunctionType{Params: params, Results: results}
	ft.ParamNumExternRef = countExternRef(params)
	ft.ResultNumExternRef = countExternRef(results)
	return ft
}

func countExternRef(vs []Value) uint32 {
	var n uint32
	for _, v := range vs {
		if v.Ref != nil && v.Ref.Heap.Kind == HeapTypeExtern {
			n++
		}
	}
	return n
}

// String renders e.g. "(i32, i32) -> (i32)".
func (f *FunctionType) String() string {
	s := "("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	s += ") -> ("
	for i, r := range f.Results {
		if i > 0 {
			s += ", "
		}
		s += r.String()
	}
	return s + ")"
}

// Equal reports structural equality between two function types; indices
// embedded in a HeapType compare nominally rather than by resolving what
// they point to.
func (f *FunctionType) Equal(o *FunctionType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].equal(o.Params[i]) {
			return false
		}
	}
	for i := range f.Results {
		if !f.Results[i].equal(o.Results[i]) {
			return false
		}
	}
	return true
}

// equal is structural equality for a single Value, unlike ==, which would
// compare the Ref pointers rather than what they point to.
func (v Value) equal(o Value) bool {
	if (v.Ref == nil) != (o.Ref == nil) {
		return false
	}
	if v.Ref == nil {
		return v.Numeric == o.Numeric
	}
	return *v.Ref == *o.Ref
}
