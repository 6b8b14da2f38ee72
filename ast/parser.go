package ast

import (
	"github.com/ggbclang/ggbc/token"
)

// Parser is a recursive-descent parser with single-token lookahead. Each
// grammar production is a method returning either the node or a typed
// error; errors propagate immediately (no resync), matching spec.md §4.2
// and the teacher's Parser (std/compiler/parser.go).
type Parser struct {
	toks []token.Token
	pos  int
	ctx  *Context
}

// NewParser builds a Parser over a token stream produced by token.Lexer,
// with a fresh top-level Context.
func NewParser(toks []token.Token) *Parser {
	return &Parser{toks: toks, ctx: NewContext()}
}

// Context returns the parser's scope context, populated as parsing
// proceeds.
func (p *Parser) Context() *Context { return p.ctx }

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.Eof}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return token.Token{Kind: token.Eof}
	}
	return p.toks[idx]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func (p *Parser) at(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	tok := p.peek()
	if tok.Kind == token.Eof && k != token.Eof {
		return tok, &EofError{Span: tok.Span}
	}
	if tok.Kind != k {
		return tok, &UnexpectedTokenError{Got: tok, Expected: k.String()}
	}
	return p.advance(), nil
}

// expectIdent consumes an identifier token, rejecting reserved keywords
// with ReservedKeywordError (spec.md §3/§7).
func (p *Parser) expectIdent() (token.Token, error) {
	tok := p.peek()
	if tok.Kind == token.Eof {
		return tok, &EofError{Span: tok.Span}
	}
	if tok.Kind != token.Ident {
		if token.IsKeyword(tok.Val) {
			return tok, &ReservedKeywordError{Keyword: tok.Val, Span: tok.Span}
		}
		return tok, &UnexpectedTokenError{Got: tok, Expected: "ident"}
	}
	return p.advance(), nil
}

// ParseAst parses the full token stream as a sequence of top-level
// statements.
func (p *Parser) ParseAst() (*Ast, error) {
	var stmts []*Statement
	for !p.at(token.Eof) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return &Ast{Statements: stmts}, nil
}

// Parse is the package-level entry point matching spec.md §6's
// `parse(src) -> Ast | Error`.
func Parse(src []byte) (*Ast, *Context, error) {
	lx := token.New(src)
	toks, err := lx.Tokenize()
	if err != nil {
		return nil, nil, err
	}
	p := NewParser(toks)
	a, err := p.ParseAst()
	if err != nil {
		return nil, nil, err
	}
	return a, p.ctx, nil
}

func (p *Parser) parseStatement() (*Statement, error) {
	switch p.peek().Kind {
	case token.KwStatic:
		return p.parseStatic()
	case token.KwConst:
		return p.parseConst()
	case token.KwLet:
		return p.parseLet()
	case token.KwFn:
		return p.parseFn()
	case token.KwMod:
		return p.parseMod()
	case token.LBrace:
		return p.parseScope()
	case token.KwIf:
		return p.parseIf()
	case token.KwLoop:
		return p.parseLoop()
	case token.KwFor:
		return p.parseFor()
	case token.KwBreak:
		tok := p.advance()
		return &Statement{Kind: StatementBreak, Span: tok.Span}, nil
	case token.KwContinue:
		tok := p.advance()
		return &Statement{Kind: StatementContinue, Span: tok.Span}, nil
	case token.KwReturn:
		return p.parseReturn()
	default:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StatementInline, Span: expr.Span, Expr: expr}, nil
	}
}

func (p *Parser) parseField() (*Field, error) {
	identTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ColonColon); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &Field{Span: token.Union(identTok.Span, typ.Span), Ident: identTok.Val, Type: typ}, nil
}

func (p *Parser) parseStatic() (*Statement, error) {
	start := p.advance() // "static"
	var offset *Expression
	if p.at(token.At) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		offset = e
	}
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	var init *Expression
	if p.at(token.Assign) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init = e
	}
	span := token.Union(start.Span, field.Span)
	if init != nil {
		span = token.Union(span, init.Span)
	}
	if err := p.ctx.Define(field.Ident, Binding{Kind: BindingValue, Type: field.Type, Span: field.Span}); err != nil {
		return nil, err
	}
	return &Statement{Kind: StatementStatic, Span: span, Offset: offset, Field: field, Init: init}, nil
}

func (p *Parser) parseConst() (*Statement, error) {
	start := p.advance() // "const"
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.ctx.Define(field.Ident, Binding{Kind: BindingValue, Type: field.Type, Span: field.Span}); err != nil {
		return nil, err
	}
	return &Statement{Kind: StatementConst, Span: token.Union(start.Span, init.Span), Field: field, Init: init}, nil
}

func (p *Parser) parseLet() (*Statement, error) {
	start := p.advance() // "let"
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.ctx.Define(field.Ident, Binding{Kind: BindingValue, Type: field.Type, Span: field.Span}); err != nil {
		return nil, err
	}
	return &Statement{Kind: StatementLet, Span: token.Union(start.Span, init.Span), Field: field, Init: init}, nil
}

func (p *Parser) parseFn() (*Statement, error) {
	start := p.advance() // "fn"
	identTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.ctx.Define(identTok.Val, Binding{Kind: BindingFn, Span: identTok.Span}); err != nil {
		return nil, err
	}
	p.ctx.Push()
	defer p.ctx.Pop()

	var args []*Field
	if p.at(token.LParen) {
		p.advance()
		for !p.at(token.RParen) {
			f, err := p.parseField()
			if err != nil {
				return nil, err
			}
			if err := p.ctx.Define(f.Ident, Binding{Kind: BindingValue, Type: f.Type, Span: f.Span}); err != nil {
				return nil, err
			}
			args = append(args, f)
			if p.at(token.Comma) {
				p.advance()
			}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}

	var ret *Type
	if p.at(token.Colon) {
		p.advance()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		ret = t
	}

	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var body []*Statement
	for !p.at(token.RBrace) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, s)
	}
	end, err := p.expect(token.RBrace)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Kind: StatementFn, Span: token.Union(start.Span, end.Span),
		Ident: identTok.Val, Args: args, Ret: ret, Body: body,
	}, nil
}

func (p *Parser) parseBlock() ([]*Statement, token.Span, error) {
	start, err := p.expect(token.LBrace)
	if err != nil {
		return nil, token.Span{}, err
	}
	var body []*Statement
	for !p.at(token.RBrace) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, token.Span{}, err
		}
		body = append(body, s)
	}
	end, err := p.expect(token.RBrace)
	if err != nil {
		return nil, token.Span{}, err
	}
	return body, token.Union(start.Span, end.Span), nil
}

// parseMod parses `mod ident { ... }`, a named nested scope whose
// members are reached from outside by path (`ident::member`, spec.md §3
// "Path"). Resolution stops at path mangling: a Mod's Context is a
// sibling of the enclosing one rather than an importable unit, per
// spec.md §1's non-goal of a full module resolver.
func (p *Parser) parseMod() (*Statement, error) {
	start := p.advance() // "mod"
	identTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	modCtx, err := p.ctx.DefineMod(identTok.Val, identTok.Span)
	if err != nil {
		return nil, err
	}
	outer := p.ctx
	p.ctx = modCtx
	body, bodySpan, err := p.parseBlock()
	p.ctx = outer
	if err != nil {
		return nil, err
	}
	return &Statement{
		Kind:  StatementMod,
		Span:  token.Union(start.Span, bodySpan),
		Ident: identTok.Val,
		Inner: body,
	}, nil
}

func (p *Parser) parseScope() (*Statement, error) {
	p.ctx.Push()
	defer p.ctx.Pop()
	body, span, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StatementScope, Span: span, Inner: body}, nil
}

func (p *Parser) parseIf() (*Statement, error) {
	start := p.advance() // "if"
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.ctx.Push()
	then, thenSpan, err := p.parseBlock()
	p.ctx.Pop()
	if err != nil {
		return nil, err
	}
	span := token.Union(start.Span, thenSpan)
	if !p.at(token.KwElse) {
		return &Statement{Kind: StatementIf, Span: span, Cond: cond, Then: then}, nil
	}
	p.advance() // "else"
	p.ctx.Push()
	elseBody, elseSpan, err := p.parseBlock()
	p.ctx.Pop()
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StatementIfElse, Span: token.Union(span, elseSpan), Cond: cond, Then: then, Else: elseBody}, nil
}

func (p *Parser) parseLoop() (*Statement, error) {
	start := p.advance() // "loop"
	p.ctx.Push()
	body, span, err := p.parseBlock()
	p.ctx.Pop()
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StatementLoop, Span: token.Union(start.Span, span), Inner: body}, nil
}

// parseFor accepts `for ( init cond step ) { body }` with no separators,
// where init and step are simple statements (let / inline expression).
func (p *Parser) parseFor() (*Statement, error) {
	start := p.advance() // "for"
	p.ctx.Push()
	defer p.ctx.Pop()

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	initStmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	stepStmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, span, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Statement{
		Kind: StatementFor, Span: token.Union(start.Span, span),
		ForInit: initStmt, ForCond: cond, ForStep: stepStmt, Inner: body,
	}, nil
}

func (p *Parser) parseReturn() (*Statement, error) {
	start := p.advance() // "return"
	if p.at(token.RBrace) || p.at(token.Eof) {
		return &Statement{Kind: StatementReturn, Span: start.Span}, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: StatementReturn, Span: token.Union(start.Span, val.Span), Value: val}, nil
}

// === Types ===

func (p *Parser) parseType() (*Type, error) {
	switch p.peek().Kind {
	case token.KwU8:
		tok := p.advance()
		return &Type{Kind: TypeU8, Span: tok.Span}, nil
	case token.KwI8:
		tok := p.advance()
		return &Type{Kind: TypeI8, Span: tok.Span}, nil
	case token.Amp:
		start := p.advance()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: TypePointer, Span: token.Union(start.Span, elem.Span), Elem: elem}, nil
	case token.LBracket:
		start := p.advance()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		lenExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RBracket)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: TypeArray, Span: token.Union(start.Span, end.Span), Elem: elem, LenExp: lenExpr}, nil
	case token.KwStruct:
		return p.parseFieldedType(token.KwStruct, TypeStruct)
	case token.KwUnion:
		return p.parseFieldedType(token.KwUnion, TypeUnion)
	case token.Ident:
		path, span, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: TypePath, Span: span, Path: path}, nil
	default:
		tok := p.peek()
		return nil, &UnexpectedTokenError{Got: tok, Expected: "type"}
	}
}

func (p *Parser) parseFieldedType(kw token.Kind, kind TypeKind) (*Type, error) {
	start, err := p.expect(kw)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var fields []*Field
	for !p.at(token.RBrace) {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	end, err := p.expect(token.RBrace)
	if err != nil {
		return nil, err
	}
	return &Type{Kind: kind, Span: token.Union(start.Span, end.Span), Fields: fields}, nil
}

// === Paths ===

// parsePath parses a `::`-separated path and, for any path reaching into
// a `mod` (more than one segment), validates it against the Context
// immediately: this is the "path mangling" spec.md §1 carves out of the
// module-resolver non-goal — a mod's members are reachable by qualified
// name, but nothing beyond that (imports, visibility, separate
// compilation) is implemented.
func (p *Parser) parsePath() ([]string, token.Span, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, token.Span{}, err
	}
	path := []string{first.Val}
	span := first.Span
	for p.at(token.ColonColon) {
		p.advance()
		seg, err := p.expectIdent()
		if err != nil {
			return nil, token.Span{}, err
		}
		path = append(path, seg.Val)
		span = token.Union(span, seg.Span)
	}
	if len(path) > 1 {
		if _, err := p.ctx.Resolve(path, span); err != nil {
			return nil, token.Span{}, err
		}
	}
	return path, span, nil
}

// === Expressions ===
//
// Expressions use prefix notation for operators ((+ a b), (= lhs rhs)) and
// index form ([] array index); precedence is explicit from
// parenthesization (spec.md §4.2).

func (p *Parser) parseExpr() (*Expression, error) {
	switch p.peek().Kind {
	case token.Int, token.Hex:
		return p.parseIntLit()
	case token.Str:
		tok := p.advance()
		return &Expression{Kind: ExprLiteral, Span: tok.Span, StrVal: tok.Val, IsString: true}, nil
	case token.Ident:
		path, span, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &Expression{Kind: ExprPath, Span: span, Path: path}, nil
	case token.Minus:
		start := p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Expression{Kind: ExprUnary, Span: token.Union(start.Span, inner.Span), UnaryOp: UnaryNeg, Inner: inner}, nil
	case token.Bang:
		start := p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Expression{Kind: ExprUnary, Span: token.Union(start.Span, inner.Span), UnaryOp: UnaryNot, Inner: inner}, nil
	case token.Amp:
		start := p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Expression{Kind: ExprAddrOf, Span: token.Union(start.Span, inner.Span), Inner: inner}, nil
	case token.LParen:
		return p.parseParenExpr()
	default:
		tok := p.peek()
		return nil, &UnexpectedTokenError{Got: tok, Expected: "expression"}
	}
}

func (p *Parser) parseIntLit() (*Expression, error) {
	tok := p.advance()
	v, err := parseIntToken(tok)
	if err != nil {
		return nil, err
	}
	return &Expression{Kind: ExprLiteral, Span: tok.Span, IntVal: v}, nil
}

var binOpTokens = map[token.Kind]BinaryOp{
	token.Plus: BinAdd, token.Minus: BinSub, token.Star: BinMul, token.Slash: BinDiv,
	token.Amp: BinAnd, token.Pipe: BinOr, token.Caret: BinXor,
	token.Shl: BinShl, token.Shr: BinShr,
	token.Eq: BinEq, token.Ne: BinNe, token.Lt: BinLt, token.Gt: BinGt,
	token.Le: BinLe, token.Ge: BinGe,
}

func (p *Parser) parseParenExpr() (*Expression, error) {
	start, err := p.expect(token.LParen)
	if err != nil {
		return nil, err
	}

	// index form: ([] array index)
	if p.at(token.LBracket) && p.peekAt(1).Kind == token.RBracket {
		p.advance()
		p.advance()
		arr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RParen)
		if err != nil {
			return nil, err
		}
		return &Expression{Kind: ExprIndex, Span: token.Union(start.Span, end.Span), Left: arr, Right: idx}, nil
	}

	// assignment: (= lhs rhs)
	if p.at(token.Assign) {
		p.advance()
		lhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RParen)
		if err != nil {
			return nil, err
		}
		return &Expression{Kind: ExprAssign, Span: token.Union(start.Span, end.Span), Left: lhs, Right: rhs}, nil
	}

	// binary operator form: (<op> a b)
	if op, ok := binOpTokens[p.peek().Kind]; ok {
		p.advance()
		left, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RParen)
		if err != nil {
			return nil, err
		}
		return &Expression{Kind: ExprBinary, Span: token.Union(start.Span, end.Span), BinaryOp: op, Left: left, Right: right}, nil
	}

	// otherwise: a call (callee arg*)
	callee, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var args []*Expression
	for !p.at(token.RParen) {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	end, err := p.expect(token.RParen)
	if err != nil {
		return nil, err
	}
	return &Expression{Kind: ExprCall, Span: token.Union(start.Span, end.Span), Callee: callee, Args: args}, nil
}
