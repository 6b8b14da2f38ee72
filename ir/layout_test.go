package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggbclang/ggbc/ast"
)

func litExpr(v uint16) *ast.Expression {
	return &ast.Expression{Kind: ast.ExprLiteral, IntVal: v}
}

func noConst(e *ast.Expression) (uint16, error) {
	return e.IntVal, nil
}

func TestLayoutScalarSizes(t *testing.T) {
	u8, err := NewLayout(&ast.Type{Kind: ast.TypeU8}, noConst)
	require.NoError(t, err)
	assert.EqualValues(t, 1, u8.Size())

	i8, err := NewLayout(&ast.Type{Kind: ast.TypeI8}, noConst)
	require.NoError(t, err)
	assert.EqualValues(t, 1, i8.Size())

	ptr, err := NewLayout(&ast.Type{Kind: ast.TypePointer, Elem: &ast.Type{Kind: ast.TypeU8}}, noConst)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ptr.Size())
}

func TestLayoutArraySize(t *testing.T) {
	arr, err := NewLayout(&ast.Type{
		Kind:   ast.TypeArray,
		Elem:   &ast.Type{Kind: ast.TypeU8},
		LenExp: litExpr(4),
	}, noConst)
	require.NoError(t, err)
	assert.EqualValues(t, 4, arr.Size())

	nested, err := NewLayout(&ast.Type{
		Kind: ast.TypeArray,
		Elem: &ast.Type{
			Kind:   ast.TypeArray,
			Elem:   &ast.Type{Kind: ast.TypeU8},
			LenExp: litExpr(2),
		},
		LenExp: litExpr(3),
	}, noConst)
	require.NoError(t, err)
	assert.EqualValues(t, 6, nested.Size())
}

func TestLayoutStructSumsFields(t *testing.T) {
	st, err := NewLayout(&ast.Type{
		Kind: ast.TypeStruct,
		Fields: []*ast.Field{
			{Ident: "x", Type: &ast.Type{Kind: ast.TypeU8}},
			{Ident: "y", Type: &ast.Type{Kind: ast.TypeArray, Elem: &ast.Type{Kind: ast.TypeU8}, LenExp: litExpr(2)}},
		},
	}, noConst)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Size())

	off, ok := st.FieldOffset("y")
	require.True(t, ok)
	assert.EqualValues(t, 1, off)
}

func TestLayoutUnionTakesMax(t *testing.T) {
	un, err := NewLayout(&ast.Type{
		Kind: ast.TypeUnion,
		Fields: []*ast.Field{
			{Ident: "a", Type: &ast.Type{Kind: ast.TypeU8}},
			{Ident: "b", Type: &ast.Type{Kind: ast.TypeArray, Elem: &ast.Type{Kind: ast.TypeU8}, LenExp: litExpr(2)}},
		},
	}, noConst)
	require.NoError(t, err)
	assert.EqualValues(t, 2, un.Size())
}

func TestLayoutRejectsUnsupportedKind(t *testing.T) {
	_, err := NewLayout(&ast.Type{Kind: ast.TypeFn}, noConst)
	require.Error(t, err)
	var tnse *TypeNotSupportedError
	assert.ErrorAs(t, err, &tnse)
}
