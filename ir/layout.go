package ir

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ggbclang/ggbc/ast"
)

const (
	byteSize = 1
	wordSize = 2 // pointer size
)

// LayoutKind mirrors ast.TypeKind for the subset of types the layout
// engine supports (component T, spec.md §4.4); Fn and bare Path without a
// resolvable definition are not representable as a byte layout.
type LayoutKind int

const (
	LayoutU8 LayoutKind = iota
	LayoutI8
	LayoutArray
	LayoutPointer
	LayoutStruct
	LayoutUnion
)

// Layout is a pure function of an ast.Type: its byte size and (for
// structs) field offsets. Ported verbatim from
// original_source/modules/ggbc/src/ir/layout.rs.
type Layout struct {
	Kind   LayoutKind
	Inner  *Layout   // Array, Pointer
	Len    uint16    // Array
	Fields []*Layout // Struct, Union
	Names  []string  // Struct, Union field names, parallel to Fields
}

// TypeNotSupportedError is raised when the layout engine encounters a
// kind it cannot size (spec.md §7).
type TypeNotSupportedError struct {
	Type *ast.Type
}

func (e *TypeNotSupportedError) Error() string {
	return fmt.Sprintf("type not supported by layout engine: kind=%d", e.Type.Kind)
}

// NewLayout computes the Layout of an ast.Type. evalConst resolves array
// lengths (spec.md: "len of an array type must fold to a u16 via the
// const evaluator; non-constant sizes fail compilation").
func NewLayout(t *ast.Type, evalConst func(*ast.Expression) (uint16, error)) (*Layout, error) {
	switch t.Kind {
	case ast.TypeU8:
		return &Layout{Kind: LayoutU8}, nil
	case ast.TypeI8:
		return &Layout{Kind: LayoutI8}, nil
	case ast.TypeArray:
		inner, err := NewLayout(t.Elem, evalConst)
		if err != nil {
			return nil, err
		}
		n, err := evalConst(t.LenExp)
		if err != nil {
			return nil, err
		}
		return &Layout{Kind: LayoutArray, Inner: inner, Len: n}, nil
	case ast.TypePointer:
		inner, err := NewLayout(t.Elem, evalConst)
		if err != nil {
			return nil, err
		}
		return &Layout{Kind: LayoutPointer, Inner: inner}, nil
	case ast.TypeStruct:
		fields := lo.Map(t.Fields, func(f *ast.Field, _ int) *ast.Type { return f.Type })
		layouts := make([]*Layout, 0, len(fields))
		for _, ft := range fields {
			l, err := NewLayout(ft, evalConst)
			if err != nil {
				return nil, err
			}
			layouts = append(layouts, l)
		}
		names := lo.Map(t.Fields, func(f *ast.Field, _ int) string { return f.Ident })
		return &Layout{Kind: LayoutStruct, Fields: layouts, Names: names}, nil
	case ast.TypeUnion:
		fields := lo.Map(t.Fields, func(f *ast.Field, _ int) *ast.Type { return f.Type })
		layouts := make([]*Layout, 0, len(fields))
		for _, ft := range fields {
			l, err := NewLayout(ft, evalConst)
			if err != nil {
				return nil, err
			}
			layouts = append(layouts, l)
		}
		names := lo.Map(t.Fields, func(f *ast.Field, _ int) string { return f.Ident })
		return &Layout{Kind: LayoutUnion, Fields: layouts, Names: names}, nil
	default:
		return nil, &TypeNotSupportedError{Type: t}
	}
}

// Size computes the byte size of the layout.
func (l *Layout) Size() uint16 {
	switch l.Kind {
	case LayoutU8, LayoutI8:
		return byteSize
	case LayoutPointer:
		return wordSize
	case LayoutArray:
		return l.Len * l.Inner.Size()
	case LayoutStruct:
		return lo.Reduce(l.Fields, func(acc uint16, f *Layout, _ int) uint16 {
			return acc + f.Size()
		}, 0)
	case LayoutUnion:
		return lo.Reduce(l.Fields, func(acc uint16, f *Layout, _ int) uint16 {
			if f.Size() > acc {
				return f.Size()
			}
			return acc
		}, 0)
	default:
		return 0
	}
}

// FieldOffset returns the byte offset of a named field within a struct
// layout: the sum of sizes of preceding fields (spec.md §3). Returns
// false if name is not a field of l.
func (l *Layout) FieldOffset(name string) (uint16, bool) {
	if l.Kind != LayoutStruct {
		return 0, false
	}
	var offset uint16
	for i, n := range l.Names {
		if n == name {
			return offset, true
		}
		offset += l.Fields[i].Size()
	}
	return 0, false
}

// FieldLayout returns the Layout of a named field of a struct or union.
func (l *Layout) FieldLayout(name string) (*Layout, bool) {
	if l.Kind != LayoutStruct && l.Kind != LayoutUnion {
		return nil, false
	}
	for i, n := range l.Names {
		if n == name {
			return l.Fields[i], true
		}
	}
	return nil, false
}
