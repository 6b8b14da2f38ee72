package ast

import (
	"fmt"

	"github.com/ggbclang/ggbc/token"
)

// ReservedKeywordError is raised when a reserved keyword is used where an
// identifier is required.
type ReservedKeywordError struct {
	Keyword string
	Span    token.Span
}

func (e *ReservedKeywordError) Error() string {
	return fmt.Sprintf("%q is a reserved keyword, not an identifier", e.Keyword)
}

func (e *ReservedKeywordError) ErrSpan() token.Span { return e.Span }

// UnexpectedTokenError is raised when the parser encounters a token that
// cannot start or continue the current production.
type UnexpectedTokenError struct {
	Got      token.Token
	Expected string // optional, empty if not applicable
}

func (e *UnexpectedTokenError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("unexpected token %s, expected %s", e.Got, e.Expected)
	}
	return fmt.Sprintf("unexpected token %s", e.Got)
}

func (e *UnexpectedTokenError) ErrSpan() token.Span { return e.Got.Span }

// EofError is raised when the parser runs out of input mid-production.
type EofError struct {
	Span token.Span
}

func (e *EofError) Error() string       { return "unexpected end of input" }
func (e *EofError) ErrSpan() token.Span { return e.Span }

// InvalidPathError is raised when a path segment cannot be resolved.
type InvalidPathError struct {
	Path []string
	Span token.Span
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q", joinPath(e.Path))
}

func (e *InvalidPathError) ErrSpan() token.Span { return e.Span }

// ShadowIdentError is raised on same-frame redefinition.
type ShadowIdentError struct {
	Ident  string
	First  token.Span
	Shadow token.Span
}

func (e *ShadowIdentError) Error() string {
	return fmt.Sprintf("%q redefined in the same scope", e.Ident)
}

func (e *ShadowIdentError) ErrSpan() token.Span { return e.Shadow }

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "::"
		}
		out += p
	}
	return out
}

// Spanned is implemented by every error kind in §7 so a caller can render
// a caret-underline diagnostic from any of them.
type Spanned interface {
	ErrSpan() token.Span
}
