package ir

import (
	"fmt"

	"github.com/ggbclang/ggbc/ast"
)

// NotConstError is returned when an expression cannot be folded to a
// compile-time u16 (spec.md §4.3: array lengths, const declarations and
// static offsets all require this).
type NotConstError struct {
	Expr *ast.Expression
}

func (e *NotConstError) Error() string {
	return fmt.Sprintf("expression is not a constant expression: kind=%d", e.Expr.Kind)
}

// ConstEval folds const-expressions to u16, ported from
// ggbc/src/bin/const_expr_gen.rs. consts resolves named const bindings
// (StatementConst's Init, already folded) by path key.
type ConstEval struct {
	consts map[string]uint16
}

func NewConstEval() *ConstEval {
	return &ConstEval{consts: make(map[string]uint16)}
}

// Define records a resolved const so later expressions may reference it
// by its single-segment path.
func (c *ConstEval) Define(ident string, val uint16) {
	c.consts[ident] = val
}

// Eval folds an expression to a u16. All arithmetic wraps modulo 2^16 and
// shift amounts are masked to 0..15 (spec.md §4.3), matching the target's
// native 16-bit registers.
func (c *ConstEval) Eval(e *ast.Expression) (uint16, error) {
	switch e.Kind {
	case ast.ExprLiteral:
		if e.IsString {
			return 0, &NotConstError{Expr: e}
		}
		return e.IntVal, nil
	case ast.ExprPath:
		if len(e.Path) == 1 {
			if v, ok := c.consts[e.Path[0]]; ok {
				return v, nil
			}
		}
		return 0, &NotConstError{Expr: e}
	case ast.ExprUnary:
		v, err := c.Eval(e.Inner)
		if err != nil {
			return 0, err
		}
		switch e.UnaryOp {
		case ast.UnaryNeg:
			return -v, nil
		case ast.UnaryNot:
			if v == 0 {
				return 1, nil
			}
			return 0, nil
		}
		return 0, &NotConstError{Expr: e}
	case ast.ExprBinary:
		l, err := c.Eval(e.Left)
		if err != nil {
			return 0, err
		}
		r, err := c.Eval(e.Right)
		if err != nil {
			return 0, err
		}
		return evalBinOp(e.BinaryOp, l, r), nil
	default:
		return 0, &NotConstError{Expr: e}
	}
}

func evalBinOp(op ast.BinaryOp, l, r uint16) uint16 {
	switch op {
	case ast.BinAdd:
		return l + r
	case ast.BinSub:
		return l - r
	case ast.BinMul:
		return l * r
	case ast.BinDiv:
		if r == 0 {
			return 0
		}
		return l / r
	case ast.BinAnd:
		return l & r
	case ast.BinOr:
		return l | r
	case ast.BinXor:
		return l ^ r
	case ast.BinShl:
		return l << (r & 0xf)
	case ast.BinShr:
		return l >> (r & 0xf)
	case ast.BinEq:
		return boolU16(l == r)
	case ast.BinNe:
		return boolU16(l != r)
	case ast.BinLt:
		return boolU16(l < r)
	case ast.BinGt:
		return boolU16(l > r)
	case ast.BinLe:
		return boolU16(l <= r)
	case ast.BinGe:
		return boolU16(l >= r)
	default:
		return 0
	}
}

func boolU16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
