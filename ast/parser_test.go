package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStaticSequence(t *testing.T) {
	a, _, err := Parse([]byte(`
static s0 :: u8 = 0
static s1 :: u8 = 1
`))
	require.NoError(t, err)
	require.Len(t, a.Statements, 2)
	assert.Equal(t, StatementStatic, a.Statements[0].Kind)
	assert.Equal(t, "s0", a.Statements[0].Field.Ident)
	assert.EqualValues(t, 0, a.Statements[0].Init.IntVal)
	assert.EqualValues(t, 1, a.Statements[1].Init.IntVal)
}

func TestParseStaticAbsoluteNoInit(t *testing.T) {
	a, _, err := Parse([]byte(`static @ 0xff00 port :: u8`))
	require.NoError(t, err)
	require.Len(t, a.Statements, 1)
	s := a.Statements[0]
	require.NotNil(t, s.Offset)
	assert.EqualValues(t, 0xff00, s.Offset.IntVal)
	assert.Nil(t, s.Init)
}

func TestParseFnAndCall(t *testing.T) {
	a, _, err := Parse([]byte(`
fn add(a :: u8, b :: u8) : u8 {
    return (+ a b)
}
fn main {
    (add 1 2)
}
`))
	require.NoError(t, err)
	require.Len(t, a.Statements, 2)
	add := a.Statements[0]
	assert.Equal(t, StatementFn, add.Kind)
	assert.Equal(t, "add", add.Ident)
	require.Len(t, add.Args, 2)
	require.NotNil(t, add.Ret)
	assert.Equal(t, TypeU8, add.Ret.Kind)
	require.Len(t, add.Body, 1)
	assert.Equal(t, StatementReturn, add.Body[0].Kind)
	assert.Equal(t, ExprBinary, add.Body[0].Value.Kind)
	assert.Equal(t, BinAdd, add.Body[0].Value.BinaryOp)

	main := a.Statements[1]
	require.Len(t, main.Body, 1)
	call := main.Body[0].Expr
	assert.Equal(t, ExprCall, call.Kind)
	assert.Equal(t, []string{"add"}, call.Callee.Path)
	require.Len(t, call.Args, 2)
}

func TestParseIfElseLoopFor(t *testing.T) {
	a, _, err := Parse([]byte(`
fn main {
    if (== 1 1) {
        static a :: u8 = 1
    } else {
        static b :: u8 = 2
    }
    loop {
        break
    }
    for (let i :: u8 = 0 (< i 10) (= i (+ i 1))) {
        continue
    }
}
`))
	require.NoError(t, err)
	body := a.Statements[0].Body
	require.Len(t, body, 3)
	assert.Equal(t, StatementIfElse, body[0].Kind)
	assert.Equal(t, StatementLoop, body[1].Kind)
	assert.Equal(t, StatementBreak, body[1].Inner[0].Kind)
	assert.Equal(t, StatementFor, body[2].Kind)
	assert.Equal(t, StatementContinue, body[2].Inner[0].Kind)
}

func TestParseTypes(t *testing.T) {
	a, _, err := Parse([]byte(`
static arr :: [u8 4]
static ptr :: &u8
static rec :: struct { x :: u8, y :: u8 }
static alt :: union { a :: u8, b :: [u8 2] }
`))
	require.NoError(t, err)
	require.Len(t, a.Statements, 4)
	assert.Equal(t, TypeArray, a.Statements[0].Field.Type.Kind)
	assert.Equal(t, TypePointer, a.Statements[1].Field.Type.Kind)
	assert.Equal(t, TypeStruct, a.Statements[2].Field.Type.Kind)
	require.Len(t, a.Statements[2].Field.Type.Fields, 2)
	assert.Equal(t, TypeUnion, a.Statements[3].Field.Type.Kind)
}

func TestParseIndexExpr(t *testing.T) {
	a, _, err := Parse([]byte(`
static arr :: [u8 4]
static first :: u8 = ([] arr 0)
`))
	require.NoError(t, err)
	require.Len(t, a.Statements, 2)
	idx := a.Statements[1].Init
	assert.Equal(t, ExprIndex, idx.Kind)
	assert.Equal(t, []string{"arr"}, idx.Left.Path)
	assert.EqualValues(t, 0, idx.Right.IntVal)
}

func TestReservedKeywordAsIdent(t *testing.T) {
	_, _, err := Parse([]byte(`static fn :: u8 = 1`))
	require.Error(t, err)
	var rk *ReservedKeywordError
	require.ErrorAs(t, err, &rk)
	assert.Equal(t, "fn", rk.Keyword)
}

func TestShadowIdentInSameFrame(t *testing.T) {
	_, _, err := Parse([]byte(`
static s :: u8 = 1
static s :: u8 = 2
`))
	require.Error(t, err)
	var se *ShadowIdentError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "s", se.Ident)
}

func TestShadowAllowedAcrossScopes(t *testing.T) {
	a, _, err := Parse([]byte(`
fn main {
    static x :: u8 = 1
    {
        static x :: u8 = 2
    }
}
`))
	require.NoError(t, err)
	require.Len(t, a.Statements, 1)
}

func TestParseModAndQualifiedPath(t *testing.T) {
	a, _, err := Parse([]byte(`
mod util {
    static limit :: u8 = 10
}
static n :: u8 = util::limit
`))
	require.NoError(t, err)
	require.Len(t, a.Statements, 2)
	mod := a.Statements[0]
	assert.Equal(t, StatementMod, mod.Kind)
	assert.Equal(t, "util", mod.Ident)
	require.Len(t, mod.Inner, 1)
	assert.Equal(t, "limit", mod.Inner[0].Field.Ident)

	n := a.Statements[1]
	assert.Equal(t, []string{"util", "limit"}, n.Init.Path)
}

func TestParseModUnknownQualifiedPathIsError(t *testing.T) {
	_, _, err := Parse([]byte(`
mod util {
    static limit :: u8 = 10
}
static n :: u8 = util::missing
`))
	require.Error(t, err)
	var ip *InvalidPathError
	require.ErrorAs(t, err, &ip)
}

func TestParseNestedMod(t *testing.T) {
	a, _, err := Parse([]byte(`
mod outer {
    mod inner {
        static v :: u8 = 1
    }
}
static n :: u8 = outer::inner::v
`))
	require.NoError(t, err)
	outer := a.Statements[0]
	require.Len(t, outer.Inner, 1)
	assert.Equal(t, StatementMod, outer.Inner[0].Kind)
	assert.Equal(t, "inner", outer.Inner[0].Ident)
	assert.Equal(t, []string{"outer", "inner", "v"}, a.Statements[1].Init.Path)
}

// TestSpansWithinSource is the §8 property that every top-level
// statement's span is well-formed (Min <= Max) and that consecutive
// top-level statements do not overlap.
func TestSpansWithinSource(t *testing.T) {
	src := []byte(`
fn add(a :: u8, b :: u8) : u8 {
    return (+ a b)
}
static total :: u8 = (add 1 2)
`)
	a, _, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, a.Statements, 2)

	for _, s := range a.Statements {
		assert.False(t, s.Span.Max.Less(s.Span.Min), "span max precedes min: %+v", s.Span)
	}
	// Sibling top-level statements are sequential, so statement i's span
	// must end no later than statement i+1's span begins.
	for i := 0; i+1 < len(a.Statements); i++ {
		assert.False(t, a.Statements[i+1].Span.Min.Less(a.Statements[i].Span.Max))
	}
}
