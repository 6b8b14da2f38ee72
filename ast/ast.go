// Package ast implements the parser (component P): a recursive-descent
// parser over token.Token that produces a typed abstract syntax tree and
// maintains a scoped symbol Context alongside it.
package ast

import "github.com/ggbclang/ggbc/token"

// Ast is an ordered sequence of top-level Statements.
type Ast struct {
	Statements []*Statement
}

func (a *Ast) Span() token.Span {
	if len(a.Statements) == 0 {
		return token.Span{}
	}
	return token.Union(a.Statements[0].Span, a.Statements[len(a.Statements)-1].Span)
}

// StatementKind is the closed set of top-level and block-level statement
// forms (spec.md §3).
type StatementKind int

const (
	StatementStatic StatementKind = iota
	StatementConst
	StatementLet
	StatementFn
	StatementScope
	StatementIf
	StatementIfElse
	StatementLoop
	StatementFor
	StatementBreak
	StatementContinue
	StatementReturn
	StatementInline // naked expression
	StatementMod
)

// Statement is the universal statement node. Only the fields relevant to
// Kind are populated; this mirrors the teacher's single tagged Node type
// (std/compiler/parser.go) generalized into one family per §9's "tagged
// variant Statement/Type/Expression" note.
type Statement struct {
	Kind StatementKind
	Span token.Span

	// Static / Const / Let
	Offset *Expression // Static only, optional "@ <const-expr>"
	Field  *Field      // Static, Const, Let
	Init   *Expression // Static (optional), Const, Let

	// Fn / Mod
	Ident string
	Args  []*Field
	Ret   *Type
	Body  []*Statement

	// Scope / Loop / Mod
	Inner []*Statement

	// If / IfElse
	Cond      *Expression
	Then      []*Statement
	Else      []*Statement // IfElse only
	ElseIf    *Statement   // reserved for "else if" chains, unused by grammar below

	// For
	ForInit *Statement
	ForCond *Expression
	ForStep *Statement

	// Return
	Value *Expression

	// Inline
	Expr *Expression
}

// ExpressionKind is the closed set of expression forms (spec.md §3).
type ExpressionKind int

const (
	ExprLiteral ExpressionKind = iota
	ExprPath
	ExprUnary
	ExprBinary
	ExprIndex
	ExprCall
	ExprAssign
	ExprAddrOf
)

// UnaryOp and BinaryOp enumerate the operators of the prefix-notation
// expression grammar (spec.md §6).
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinGt
	BinLe
	BinGe
)

// Expression is the universal expression node.
type Expression struct {
	Kind ExpressionKind
	Span token.Span

	// Literal
	IntVal   uint16
	StrVal   string
	IsString bool

	// Path
	Path []string

	// Unary
	UnaryOp UnaryOp
	Inner   *Expression

	// Binary / Index / Assign share Left/Right
	BinaryOp BinaryOp
	Left     *Expression
	Right    *Expression

	// Call
	Callee *Expression
	Args   []*Expression
}

// TypeKind is the closed set of type forms (spec.md §3).
type TypeKind int

const (
	TypeU8 TypeKind = iota
	TypeI8
	TypeArray
	TypePointer
	TypeStruct
	TypeUnion
	TypePath
	TypeFn
)

// Type is the universal type node.
type Type struct {
	Kind TypeKind
	Span token.Span

	Elem   *Type       // Array, Pointer
	LenExp *Expression // Array
	Fields []*Field    // Struct, Union
	Path   []string    // Path
}

// Field is an (ident, type) pair, used for struct/union fields and
// function parameters.
type Field struct {
	Span  token.Span
	Ident string
	Type  *Type
}
