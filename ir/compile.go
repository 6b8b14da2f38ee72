package ir

import (
	"github.com/ggbclang/ggbc/ast"
)

// symbol is what an identifier resolves to while compiling: where its
// value lives, and its byte layout (needed to size array indexing and
// struct/union field access).
type symbol struct {
	loc    Location
	layout *Layout
}

// UnknownIdentError is returned when a path fails to resolve to any
// known static, const, local, or function binding.
type UnknownIdentError struct {
	Ident string
}

func (e *UnknownIdentError) Error() string { return "unknown identifier: " + e.Ident }

// UnsupportedExprError flags expression shapes outside this compiler's
// supported subset (struct/union field access requires a single-segment
// path on the right of an Index expression; dynamic pointers must
// address the static space — see DESIGN.md's ir/compile.go entry).
type UnsupportedExprError struct {
	Reason string
}

func (e *UnsupportedExprError) Error() string { return "unsupported expression: " + e.Reason }

// Compiler lowers a parsed ast.Ast into a Program. It runs in two
// passes: first it interns every function name and finalizes static
// storage (so forward calls and forward references to statics both
// resolve), then it compiles every function body.
type Compiler struct {
	funcs     *FunctionAllocator
	constEval *ConstEval
	sym       *SymbolAllocator
	reg       *RegisterAllocator

	globals   map[string]symbol
	scopes    []map[string]symbol
	snapshots []SymbolAllocatorSnapshot

	static []byte
	const_ []byte

	stmts []Statement

	loops []loopCtx
}

type loopCtx struct {
	breaks    []int // statement indices of OpJmp needing a patched Target
	continues []int
	// continueTarget is filled in once known (For's step, Loop's top).
	continueTarget int
	continuesFixed bool
}

// Compile lowers ast into a Program. The compiler's ConstEval is shared
// with the type layout engine so array lengths and const declarations
// agree.
func Compile(a *ast.Ast) (*Program, error) {
	c := &Compiler{
		funcs:     NewFunctionAllocator(),
		constEval: NewConstEval(),
		sym:       NewSymbolAllocator(),
		reg:       NewRegisterAllocator(),
		globals:   make(map[string]symbol),
	}

	// Pass 1: intern function names so forward calls resolve, and fold
	// every static/const declaration's storage and initial value.
	for _, s := range a.Statements {
		if s.Kind == ast.StatementFn {
			c.funcs.Intern(s.Ident)
		}
	}
	for _, s := range a.Statements {
		switch s.Kind {
		case ast.StatementStatic:
			if err := c.compileTopStatic(s); err != nil {
				return nil, err
			}
		case ast.StatementConst:
			if err := c.compileConst(s); err != nil {
				return nil, err
			}
		case ast.StatementMod:
			// ast.Context already resolved member paths at parse time
			// (path mangling, spec.md §1); lowering a mod's own members
			// into the Program is a module resolver's job, which is out
			// of scope here (see DESIGN.md).
			return nil, &UnsupportedExprError{Reason: "mod " + s.Ident + ": module bodies are not lowered, only path-resolved at parse time"}
		}
	}

	routines := make([]Routine, len(c.funcs.Names()))
	var main int
	var haveMain bool
	for _, s := range a.Statements {
		if s.Kind != ast.StatementFn {
			continue
		}
		idx, _ := c.funcs.Lookup(s.Ident)
		r, err := c.compileRoutine(s)
		if err != nil {
			return nil, err
		}
		routines[idx] = r
		if s.Ident == "main" {
			main, haveMain = idx, true
		}
	}
	if !haveMain {
		return nil, &UnsupportedExprError{Reason: "program has no fn main"}
	}

	return &Program{
		Const:    c.const_,
		Static:   c.static,
		Routines: routines,
		Handlers: Handlers{Main: main},
	}, nil
}

func (c *Compiler) growStatic(to uint16) {
	if int(to) > len(c.static) {
		grown := make([]byte, to)
		copy(grown, c.static)
		c.static = grown
	}
}

func (c *Compiler) growConst(to uint16) {
	if int(to) > len(c.const_) {
		grown := make([]byte, to)
		copy(grown, c.const_)
		c.const_ = grown
	}
}

// compileConst folds a const declaration's initializer to a value (so
// later const expressions, array lengths, and layouts can use it as an
// immediate) and also writes it into the constant pool at a freshly
// allocated offset, matching how the rest of the program sees a real
// `ir.const_` image rather than only a compile-time substitution table
// (spec.md §4.6, ported from original_source/ggbc/tests/const.rs's
// `test_const`/`test_const_fn`: every const, top-level or nested inside
// a function or block, lands in `const_` in declaration order).
func (c *Compiler) compileConst(s *ast.Statement) error {
	v, err := c.constEval.Eval(s.Init)
	if err != nil {
		return err
	}
	c.constEval.Define(s.Field.Ident, v)

	layout, err := NewLayout(s.Field.Type, c.constEval.Eval)
	if err != nil {
		return err
	}
	off := c.sym.AllocConst(layout.Size())
	c.growConst(off + layout.Size())
	writeScalar(c.const_, off, layout, v)
	return nil
}

func (c *Compiler) compileTopStatic(s *ast.Statement) error {
	layout, err := NewLayout(s.Field.Type, c.constEval.Eval)
	if err != nil {
		return err
	}
	size := layout.Size()

	var loc Location
	if s.Offset != nil {
		addr, err := c.constEval.Eval(s.Offset)
		if err != nil {
			return err
		}
		c.sym.ReserveAbsolute(addr, size)
		loc = AbsoluteLoc(addr)
		// Absolute statics reserve address space but are never written
		// into the static image: they name memory-mapped I/O or a fixed
		// location outside the compiler's control (DESIGN.md Open
		// Question: "absolute statics reserve-not-write").
	} else {
		off := c.sym.AllocStatic(size)
		loc = StaticLoc(off)
		c.growStatic(off + size)
		if s.Init != nil {
			v, err := c.constEval.Eval(s.Init)
			switch {
			case err == nil:
				writeScalar(c.static, off, layout, v)
			case len(c.scopes) > 0:
				// Inside a routine, a non-constant initializer is stored
				// at run time instead.
				src, _, temp, err := c.compileExpr(s.Init)
				if err != nil {
					return err
				}
				c.emit(Statement{Op: OpMov, Dst: loc, Left: src})
				c.freeTemp(src, temp)
			default:
				return err
			}
		}
	}
	c.globals[s.Field.Ident] = symbol{loc: loc, layout: layout}
	return nil
}

func writeScalar(buf []byte, off uint16, l *Layout, v uint16) {
	switch l.Kind {
	case LayoutU8, LayoutI8:
		buf[off] = byte(v)
	case LayoutPointer:
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	}
}

func (c *Compiler) compileRoutine(fn *ast.Statement) (Routine, error) {
	c.sym.ResetRoutine()
	c.stmts = nil
	c.scopes = []map[string]symbol{make(map[string]symbol)}

	var argsSize uint16
	for _, arg := range fn.Args {
		layout, err := NewLayout(arg.Type, c.constEval.Eval)
		if err != nil {
			return Routine{}, err
		}
		off := c.sym.AllocStack(layout.Size())
		argsSize += layout.Size()
		c.define(arg.Ident, symbol{loc: StackLoc(off), layout: layout})
	}

	var retLayout *Layout
	if fn.Ret != nil {
		l, err := NewLayout(fn.Ret, c.constEval.Eval)
		if err != nil {
			return Routine{}, err
		}
		retLayout = l
	} else {
		retLayout = &Layout{Kind: LayoutU8}
	}

	c.pushScope()
	for _, s := range fn.Body {
		if err := c.compileStmt(s); err != nil {
			c.popScope()
			return Routine{}, err
		}
		if !c.reg.Empty() {
			c.popScope()
			return Routine{}, &UnsupportedExprError{Reason: "register leaked past end of a top-level statement in routine " + fn.Ident}
		}
	}
	c.popScope()

	// main never returns to a caller — it halts the whole machine, so its
	// body ends in an explicit Stop rather than falling off the end or
	// hitting a Ret (spec.md §4.7).
	if fn.Ident == "main" {
		c.emit(Statement{Op: OpStop})
	}

	return Routine{
		Name:       fn.Ident,
		Statements: c.stmts,
		StackSize:  c.sym.StackSize(),
		ArgsSize:   argsSize,
		ReturnSize: retLayout.Size(),
	}, nil
}

func (c *Compiler) emit(s Statement) int {
	c.stmts = append(c.stmts, s)
	return len(c.stmts) - 1
}

func (c *Compiler) patch(idx int) {
	c.stmts[idx].Target = int16(len(c.stmts) - idx)
}

func (c *Compiler) patchTo(idx, target int) {
	c.stmts[idx].Target = int16(target - idx)
}

// pushScope opens a new lexical scope, emitting the Push Statement
// spec.md §4.6 requires bracketing a scope's children with.
func (c *Compiler) pushScope() {
	c.scopes = append(c.scopes, make(map[string]symbol))
	c.snapshots = append(c.snapshots, c.sym.Snapshot())
	c.emit(Statement{Op: OpPush})
}

// popScope discards the innermost scope's bindings and rewinds the
// stack bump pointer to where it was on entry, so a later sibling block
// reuses the same stack bytes (spec.md §4.5), and emits the matching Pop
// closing the Push pushScope opened.
func (c *Compiler) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
	snap := c.snapshots[len(c.snapshots)-1]
	c.snapshots = c.snapshots[:len(c.snapshots)-1]
	c.sym.Restore(snap)
	c.emit(Statement{Op: OpPop})
}

func (c *Compiler) define(name string, sym symbol) {
	c.scopes[len(c.scopes)-1][name] = sym
}

func (c *Compiler) resolve(name string) (symbol, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if s, ok := c.scopes[i][name]; ok {
			return s, true
		}
	}
	if s, ok := c.globals[name]; ok {
		return s, true
	}
	return symbol{}, false
}

func (c *Compiler) compileBlock(body []*ast.Statement) error {
	c.pushScope()
	defer c.popScope()
	for _, s := range body {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(s *ast.Statement) error {
	switch s.Kind {
	case ast.StatementStatic:
		return c.compileTopStatic(s) // locals may also be declared `static`, sharing the global pool
	case ast.StatementConst:
		return c.compileConst(s)
	case ast.StatementLet:
		return c.compileLet(s)
	case ast.StatementScope:
		return c.compileBlock(s.Inner)
	case ast.StatementIf:
		return c.compileIf(s.Cond, s.Then, nil)
	case ast.StatementIfElse:
		return c.compileIf(s.Cond, s.Then, s.Else)
	case ast.StatementLoop:
		return c.compileLoop(s)
	case ast.StatementFor:
		return c.compileFor(s)
	case ast.StatementBreak:
		if len(c.loops) == 0 {
			return &UnsupportedExprError{Reason: "break outside loop"}
		}
		top := &c.loops[len(c.loops)-1]
		idx := c.emit(Statement{Op: OpJmp})
		top.breaks = append(top.breaks, idx)
		return nil
	case ast.StatementContinue:
		if len(c.loops) == 0 {
			return &UnsupportedExprError{Reason: "continue outside loop"}
		}
		top := &c.loops[len(c.loops)-1]
		idx := c.emit(Statement{Op: OpJmp})
		top.continues = append(top.continues, idx)
		return nil
	case ast.StatementReturn:
		loc, _, temp, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		c.emit(Statement{Op: OpRet, Left: loc})
		c.freeTemp(loc, temp)
		return nil
	case ast.StatementInline:
		loc, _, temp, err := c.compileExpr(s.Expr)
		if err != nil {
			return err
		}
		c.freeTemp(loc, temp)
		return nil
	default:
		return &UnsupportedExprError{Reason: "unhandled statement kind"}
	}
}

func (c *Compiler) compileLet(s *ast.Statement) error {
	layout, err := NewLayout(s.Field.Type, c.constEval.Eval)
	if err != nil {
		return err
	}
	off := c.sym.AllocStack(layout.Size())
	loc := StackLoc(off)
	c.define(s.Field.Ident, symbol{loc: loc, layout: layout})
	if s.Init != nil {
		v, _, temp, err := c.compileExpr(s.Init)
		if err != nil {
			return err
		}
		c.emit(Statement{Op: OpMov, Dst: loc, Left: v})
		c.freeTemp(v, temp)
	}
	return nil
}

func (c *Compiler) compileIf(cond *ast.Expression, then, els []*ast.Statement) error {
	cl, _, ctemp, err := c.compileExpr(cond)
	if err != nil {
		return err
	}
	jf := c.emit(Statement{Op: OpJmpIfNot, Left: cl})
	c.freeTemp(cl, ctemp)
	if err := c.compileBlock(then); err != nil {
		return err
	}
	if els == nil {
		c.patch(jf)
		return nil
	}
	jend := c.emit(Statement{Op: OpJmp})
	c.patch(jf)
	if err := c.compileBlock(els); err != nil {
		return err
	}
	c.patch(jend)
	return nil
}

func (c *Compiler) compileLoop(s *ast.Statement) error {
	start := len(c.stmts)
	c.loops = append(c.loops, loopCtx{continueTarget: start})
	if err := c.compileBlock(s.Inner); err != nil {
		return err
	}
	back := c.emit(Statement{Op: OpJmp})
	c.patchTo(back, start)
	end := len(c.stmts)
	top := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, b := range top.breaks {
		c.patchTo(b, end)
	}
	for _, ct := range top.continues {
		c.patchTo(ct, start)
	}
	return nil
}

func (c *Compiler) compileFor(s *ast.Statement) error {
	c.pushScope()
	defer c.popScope()
	if s.ForInit != nil {
		if err := c.compileStmt(s.ForInit); err != nil {
			return err
		}
	}
	condStart := len(c.stmts)
	cl, _, ctemp, err := c.compileExpr(s.ForCond)
	if err != nil {
		return err
	}
	jf := c.emit(Statement{Op: OpJmpIfNot, Left: cl})
	c.freeTemp(cl, ctemp)

	c.loops = append(c.loops, loopCtx{})
	if err := c.compileBlock(s.Inner); err != nil {
		return err
	}
	stepStart := len(c.stmts)
	if s.ForStep != nil {
		if err := c.compileStmt(s.ForStep); err != nil {
			return err
		}
	}
	back := c.emit(Statement{Op: OpJmp})
	c.patchTo(back, condStart)
	end := len(c.stmts)
	c.patchTo(jf, end)

	top := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, b := range top.breaks {
		c.patchTo(b, end)
	}
	for _, ct := range top.continues {
		c.patchTo(ct, stepStart)
	}
	return nil
}

// freeTemp releases loc's register if it was produced as an intermediate
// result rather than naming a static/stack/const binding.
func (c *Compiler) freeTemp(loc Location, temp bool) {
	if !temp {
		return
	}
	switch loc.Kind {
	case LocRegister, LocStaticIndexed, LocStackIndexed:
		c.reg.Free(loc.Reg)
	}
}

var binOps = map[ast.BinaryOp]Op{
	ast.BinAdd: OpAdd, ast.BinSub: OpSub, ast.BinMul: OpMul, ast.BinDiv: OpDiv,
	ast.BinAnd: OpAnd, ast.BinOr: OpOr, ast.BinXor: OpXor,
	ast.BinShl: OpShl, ast.BinShr: OpShr,
	ast.BinEq: OpEq, ast.BinNe: OpNe, ast.BinLt: OpLt, ast.BinGt: OpGt, ast.BinLe: OpLe, ast.BinGe: OpGe,
}

// compileExpr lowers e to a Location holding its value, the Layout of
// that value, and whether the Location's register (if any) is a
// temporary the caller must free once done consuming it.
func (c *Compiler) compileExpr(e *ast.Expression) (Location, *Layout, bool, error) {
	switch e.Kind {
	case ast.ExprLiteral:
		return LiteralLoc(e.IntVal), &Layout{Kind: LayoutU8}, false, nil

	case ast.ExprPath:
		if len(e.Path) != 1 {
			return Location{}, nil, false, &UnsupportedExprError{Reason: "module paths not supported at expression position"}
		}
		name := e.Path[0]
		if sym, ok := c.resolve(name); ok {
			return sym.loc, sym.layout, false, nil
		}
		if v, ok := c.constEval.consts[name]; ok {
			return LiteralLoc(v), &Layout{Kind: LayoutU8}, false, nil
		}
		return Location{}, nil, false, &UnknownIdentError{Ident: name}

	case ast.ExprUnary:
		inner, innerLayout, itemp, err := c.compileExpr(e.Inner)
		if err != nil {
			return Location{}, nil, false, err
		}
		reg, err := c.reg.Alloc()
		if err != nil {
			return Location{}, nil, false, err
		}
		op := OpNeg
		if e.UnaryOp == ast.UnaryNot {
			op = OpNot
		}
		c.emit(Statement{Op: op, Dst: RegisterLoc(reg), Left: inner})
		c.freeTemp(inner, itemp)
		return RegisterLoc(reg), innerLayout, true, nil

	case ast.ExprAddrOf:
		target, _, _, err := c.compileExpr(e.Inner)
		if err != nil {
			return Location{}, nil, false, err
		}
		if target.Kind != LocStatic {
			return Location{}, nil, false, &UnsupportedExprError{Reason: "address-of is only supported for static storage"}
		}
		reg, err := c.reg.Alloc()
		if err != nil {
			return Location{}, nil, false, err
		}
		c.emit(Statement{Op: OpMov, Dst: RegisterLoc(reg), Left: LiteralLoc(target.Offset)})
		return RegisterLoc(reg), &Layout{Kind: LayoutPointer, Inner: &Layout{Kind: LayoutU8}}, true, nil

	case ast.ExprBinary:
		ll, _, lt, err := c.compileExpr(e.Left)
		if err != nil {
			return Location{}, nil, false, err
		}
		rl, _, rt, err := c.compileExpr(e.Right)
		if err != nil {
			return Location{}, nil, false, err
		}
		op, ok := binOps[e.BinaryOp]
		if !ok {
			return Location{}, nil, false, &UnsupportedExprError{Reason: "unknown binary operator"}
		}
		reg, err := c.reg.Alloc()
		if err != nil {
			return Location{}, nil, false, err
		}
		c.emit(Statement{Op: op, Dst: RegisterLoc(reg), Left: ll, Right: rl})
		c.freeTemp(ll, lt)
		c.freeTemp(rl, rt)
		return RegisterLoc(reg), &Layout{Kind: LayoutU8}, true, nil

	case ast.ExprIndex:
		return c.compileIndex(e)

	case ast.ExprAssign:
		return c.compileAssign(e)

	case ast.ExprCall:
		return c.compileCall(e)

	default:
		return Location{}, nil, false, &UnsupportedExprError{Reason: "unknown expression kind"}
	}
}

func (c *Compiler) compileIndex(e *ast.Expression) (Location, *Layout, bool, error) {
	base, baseLayout, _, err := c.compileExpr(e.Left)
	if err != nil {
		return Location{}, nil, false, err
	}
	if base.Kind != LocStatic && base.Kind != LocStack {
		return Location{}, nil, false, &UnsupportedExprError{Reason: "indexing is only supported on static/stack storage"}
	}

	switch baseLayout.Kind {
	case LayoutStruct, LayoutUnion:
		if len(e.Right.Path) != 1 {
			return Location{}, nil, false, &UnsupportedExprError{Reason: "struct/union field access requires a bare field name"}
		}
		field := e.Right.Path[0]
		fl, ok := baseLayout.FieldLayout(field)
		if !ok {
			return Location{}, nil, false, &UnknownIdentError{Ident: field}
		}
		var off uint16
		if baseLayout.Kind == LayoutStruct {
			off, _ = baseLayout.FieldOffset(field) // all union fields share offset 0
		}
		return withOffset(base, off), fl, false, nil

	case LayoutArray:
		if v, err := c.constEval.Eval(e.Right); err == nil {
			return withOffset(base, v*baseLayout.Inner.Size()), baseLayout.Inner, false, nil
		}
		idxLoc, _, itemp, err := c.compileExpr(e.Right)
		if err != nil {
			return Location{}, nil, false, err
		}
		reg, err := c.ensureRegister(idxLoc, itemp)
		if err != nil {
			return Location{}, nil, false, err
		}
		if es := baseLayout.Inner.Size(); es > 1 {
			c.emit(Statement{Op: OpMul, Dst: RegisterLoc(reg), Left: RegisterLoc(reg), Right: LiteralLoc(es)})
		}
		kind := LocStaticIndexed
		if base.Kind == LocStack {
			kind = LocStackIndexed
		}
		return Location{Kind: kind, Offset: base.Offset, Reg: reg}, baseLayout.Inner, true, nil

	default:
		return Location{}, nil, false, &UnsupportedExprError{Reason: "indexing a non-aggregate type"}
	}
}

// withOffset returns a same-kind Location shifted by a further constant
// byte offset, used for constant struct-field and array-index addressing.
func withOffset(base Location, delta uint16) Location {
	base.Offset += delta
	return base
}

// ensureRegister materializes loc into a register, reusing loc's own
// register if it is already a temporary one.
func (c *Compiler) ensureRegister(loc Location, temp bool) (int, error) {
	if loc.Kind == LocRegister && temp {
		return loc.Reg, nil
	}
	reg, err := c.reg.Alloc()
	if err != nil {
		return 0, err
	}
	c.emit(Statement{Op: OpMov, Dst: RegisterLoc(reg), Left: loc})
	c.freeTemp(loc, temp)
	return reg, nil
}

// isAddressable reports whether loc can be written through directly —
// true for anything backed by a memory space or a register-indexed
// address, false for a plain computed value (LocRegister holding an
// arithmetic result, a Literal, or a Const read).
func isAddressable(loc Location) bool {
	switch loc.Kind {
	case LocStatic, LocStack, LocAbsolute, LocStaticIndexed, LocStackIndexed:
		return true
	default:
		return false
	}
}

func (c *Compiler) compileAssign(e *ast.Expression) (Location, *Layout, bool, error) {
	dst, dstLayout, dtemp, err := c.compileExpr(e.Left)
	if err != nil {
		return Location{}, nil, false, err
	}
	if !isAddressable(dst) {
		return Location{}, nil, false, &UnsupportedExprError{Reason: "assignment target must be an addressable binding"}
	}
	src, _, stemp, err := c.compileExpr(e.Right)
	if err != nil {
		return Location{}, nil, false, err
	}
	c.emit(Statement{Op: OpMov, Dst: dst, Left: src})
	c.freeTemp(src, stemp)
	c.freeTemp(dst, dtemp)
	return dst, dstLayout, false, nil
}

func (c *Compiler) compileCall(e *ast.Expression) (Location, *Layout, bool, error) {
	if len(e.Callee.Path) != 1 {
		return Location{}, nil, false, &UnsupportedExprError{Reason: "indirect/module-qualified calls are not supported"}
	}
	name := e.Callee.Path[0]
	routine, ok := c.funcs.Lookup(name)
	if !ok {
		return Location{}, nil, false, &UnknownIdentError{Ident: name}
	}
	args := make([]Location, 0, len(e.Args))
	var temps []Location
	for _, a := range e.Args {
		loc, _, temp, err := c.compileExpr(a)
		if err != nil {
			return Location{}, nil, false, err
		}
		args = append(args, loc)
		if temp {
			temps = append(temps, loc)
		}
	}
	reg, err := c.reg.Alloc()
	if err != nil {
		return Location{}, nil, false, err
	}
	c.emit(Statement{Op: OpCall, Dst: RegisterLoc(reg), Routine: routine, Args: args})
	for _, t := range temps {
		c.freeTemp(t, true)
	}
	return RegisterLoc(reg), &Layout{Kind: LayoutU8}, true, nil
}
