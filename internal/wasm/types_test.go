package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueType_String(t *testing.T) {
	require.Equal(t, "i32", ValueTypeI32.String())
	require.Equal(t, "i64", ValueTypeI64.String())
	require.Equal(t, "f32", ValueTypeF32.String())
	require.Equal(t, "f64", ValueTypeF64.String())
	require.Equal(t, "v128", ValueTypeV128.String())
}

func TestParseValueType(t *testing.T) {
	v, err := ParseValueType(0x7f)
	require.NoError(t, err)
	require.Equal(t, ValueTypeI32, v)

	v, err = ParseValueType(0x7e)
	require.NoError(t, err)
	require.Equal(t, ValueTypeI64, v)

	v, err = ParseValueType(0x7d)
	require.NoError(t, err)
	require.Equal(t, ValueTypeF32, v)

	v, err = ParseValueType(0x7c)
	require.NoError(t, err)
	require.Equal(t, ValueTypeF64, v)

	v, err = ParseValueType(0x7b)
	require.NoError(t, err)
	require.Equal(t, ValueTypeV128, v)

	_, err = ParseValueType(0x00)
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestParseHeapType(t *testing.T) {
	h, err := ParseHeapType(0x70)
	require.NoError(t, err)
	require.Equal(t, HeapType{Kind: HeapTypeFunc}, h)

	h, err = ParseHeapType(0x6f)
	require.NoError(t, err)
	require.Equal(t, HeapType{Kind: HeapTypeExtern}, h)

	_, err = ParseHeapType(0x68)
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestRefType_String(t *testing.T) {
	funcref := RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeFunc}}
	require.Equal(t, "funcref", funcref.String())

	externref := RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeExtern}}
	require.Equal(t, "externref", externref.String())

	nonNullFunc := RefType{Nullable: false, Heap: HeapType{Kind: HeapTypeFuncIndex, Index: 3}}
	require.Equal(t, "(ref $type3)", nonNullFunc.String())

	nullableCont := RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeContIndex, Index: 2}}
	require.Equal(t, "(ref null $cont2)", nullableCont.String())
}

func TestValue_IsReference(t *testing.T) {
	numeric := Value{Numeric: ValueTypeI32}
	require.False(t, numeric.IsReference())

	ref := Value{Ref: &RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeExtern}}}
	require.True(t, ref.IsReference())
	require.Equal(t, "externref", ref.String())
}

func TestNewFunctionType_CountsExternRefs(t *testing.T) {
	externref := Value{Ref: &RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeExtern}}}
	funcref := Value{Ref: &RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeFunc}}}
	i32 := Value{Numeric: ValueTypeI32}

	ft := NewFunctionType([]Value{i32, externref, externref}, []Value{funcref, externref})
	require.EqualValues(t, 2, ft.ParamNumExternRef)
	require.EqualValues(t, 1, ft.ResultNumExternRef)
}

func TestFunctionType_String(t *testing.T) {
	i32 := Value{Numeric: ValueTypeI32}
	ft := NewFunctionType([]Value{i32, i32}, []Value{i32})
	require.Equal(t, "(i32, i32) -> (i32)", ft.String())

	empty := NewFunctionType(nil, nil)
	require.Equal(t, "() -> ()", empty.String())
}

func TestFunctionType_Equal(t *testing.T) {
	i32 := Value{Numeric: ValueTypeI32}
	externref1 := Value{Ref: &RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeExtern}}}
	// A second, distinct *RefType with the same structural value: Equal must
	// not compare Ref pointers.
	externref2 := Value{Ref: &RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeExtern}}}

	a := NewFunctionType([]Value{i32, externref1}, nil)
	b := NewFunctionType([]Value{i32, externref2}, nil)
	require.True(t, a.Equal(&b))

	c := NewFunctionType([]Value{i32}, nil)
	require.False(t, a.Equal(&c))

	funcIdx3 := Value{Ref: &RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeFuncIndex, Index: 3}}}
	funcIdx4 := Value{Ref: &RefType{Nullable: true, Heap: HeapType{Kind: HeapTypeFuncIndex, Index: 4}}}
	d := NewFunctionType([]Value{funcIdx3}, nil)
	e := NewFunctionType([]Value{funcIdx4}, nil)
	require.False(t, d.Equal(&e), "index operands compare nominally")
}
