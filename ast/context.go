package ast

import "github.com/ggbclang/ggbc/token"

// BindingKind distinguishes what an identifier in scope refers to.
type BindingKind int

const (
	BindingValue BindingKind = iota // static, const, let, fn argument
	BindingFn
	BindingType // struct/union field, named type
	BindingMod
)

// Binding is what Context.Resolve returns for a successfully resolved path
// head.
type Binding struct {
	Kind BindingKind
	Type *Type
	Span token.Span
}

// frame is one lexical scope: a flat map of identifier to Binding, plus
// nested named modules so paths can descend into them.
type frame struct {
	idents  map[string]Binding
	modules map[string]*frame
}

func newFrame() *frame {
	return &frame{idents: make(map[string]Binding), modules: make(map[string]*frame)}
}

// Context is the parser-maintained scope stack (spec.md §3 "Context
// (scope)"). A new frame is pushed on '{ … }', Fn body, For header, and
// Mod; popped on exit. Ported from original_source/modules/parser/src/
// ast/context.rs's level/parent/idents shape, flattened from a borrowed
// parent chain into a slice of frames (idiomatic Go: no lifetimes).
type Context struct {
	frames []*frame
}

// NewContext returns a Context with a single, empty top-level frame.
func NewContext() *Context {
	return &Context{frames: []*frame{newFrame()}}
}

// Push introduces a new scope.
func (c *Context) Push() {
	c.frames = append(c.frames, newFrame())
}

// Pop drops the innermost scope; its bindings become unreachable.
func (c *Context) Pop() {
	if len(c.frames) == 1 {
		panic("ast: Context.Pop called on top-level frame")
	}
	c.frames = c.frames[:len(c.frames)-1]
}

// Level reports the current scope depth (0 = top level).
func (c *Context) Level() int { return len(c.frames) - 1 }

func (c *Context) top() *frame { return c.frames[len(c.frames)-1] }

// Define introduces ident into the innermost frame. Redefining an
// already-bound identifier within the same frame is an error
// (ShadowIdentError), carrying both spans.
func (c *Context) Define(ident string, binding Binding) error {
	top := c.top()
	if existing, ok := top.idents[ident]; ok {
		return &ShadowIdentError{Ident: ident, First: existing.Span, Shadow: binding.Span}
	}
	top.idents[ident] = binding
	return nil
}

// DefineMod introduces a named, nested module scope in the innermost
// frame, returning a Context over that module's single frame so callers
// can Define into it directly.
func (c *Context) DefineMod(ident string, span token.Span) (*Context, error) {
	top := c.top()
	if existing, ok := top.idents[ident]; ok {
		return nil, &ShadowIdentError{Ident: ident, First: existing.Span, Shadow: span}
	}
	top.idents[ident] = Binding{Kind: BindingMod, Span: span}
	mod := newFrame()
	top.modules[ident] = mod
	return &Context{frames: []*frame{mod}}, nil
}

// Resolve walks outward from the innermost frame looking for path[0], then
// descends into nested modules for the remaining path segments. It fails
// with InvalidPathError if any segment cannot be resolved.
func (c *Context) Resolve(path []string, span token.Span) (Binding, error) {
	if len(path) == 0 {
		return Binding{}, &InvalidPathError{Path: path, Span: span}
	}
	var found Binding
	var foundFrame *frame
	ok := false
	for i := len(c.frames) - 1; i >= 0; i-- {
		if b, exists := c.frames[i].idents[path[0]]; exists {
			found, foundFrame, ok = b, c.frames[i], true
			break
		}
	}
	if !ok {
		return Binding{}, &InvalidPathError{Path: path, Span: span}
	}
	cur := found
	curFrame := foundFrame
	curIdent := path[0]
	for _, seg := range path[1:] {
		if cur.Kind != BindingMod {
			return Binding{}, &InvalidPathError{Path: path, Span: span}
		}
		next, exists := curFrame.modules[curIdent]
		if !exists {
			return Binding{}, &InvalidPathError{Path: path, Span: span}
		}
		b, exists2 := next.idents[seg]
		if !exists2 {
			return Binding{}, &InvalidPathError{Path: path, Span: span}
		}
		cur, curFrame, curIdent = b, next, seg
	}
	return cur, nil
}
