package ir

import (
	"math/bits"

	"github.com/samber/lo"
)

// SymbolAllocatorSnapshot captures the stack bump pointer at a scope
// boundary so it can be restored when the scope pops, letting sibling
// blocks reuse the same stack space (spec.md §4.5 "per-routine stack").
type SymbolAllocatorSnapshot struct {
	stackTop uint16
}

// SymbolAllocator bump-allocates byte offsets in three independent
// spaces: the constant pool, static RAM, and the current routine's stack
// frame. Ported from original_source/modules/ggbc/src/ir/alloc_register.rs's
// symbol table shape, generalized to Go's explicit snapshot/restore
// instead of a borrowed scope guard.
type SymbolAllocator struct {
	constTop  uint16
	staticTop uint16
	stackTop  uint16
	stackHigh uint16 // high-water mark across the whole routine
}

func NewSymbolAllocator() *SymbolAllocator {
	return &SymbolAllocator{}
}

// AllocConst reserves size bytes in the constant pool, returning the
// offset of the first byte.
func (a *SymbolAllocator) AllocConst(size uint16) uint16 {
	off := a.constTop
	a.constTop += size
	return off
}

// AllocStatic reserves size bytes in static RAM.
func (a *SymbolAllocator) AllocStatic(size uint16) uint16 {
	off := a.staticTop
	a.staticTop += size
	return off
}

// ReserveAbsolute accounts for an explicitly placed `static @ addr`
// symbol. Such a symbol lives in the separate absolute address space, not
// in static RAM, so the static bump pointer and StaticSize are left
// unchanged and sequential AllocStatic offsets still start at 0.
func (a *SymbolAllocator) ReserveAbsolute(addr, size uint16) {}

// AllocStack reserves size bytes in the current routine's stack frame.
func (a *SymbolAllocator) AllocStack(size uint16) uint16 {
	off := a.stackTop
	a.stackTop += size
	if a.stackTop > a.stackHigh {
		a.stackHigh = a.stackTop
	}
	return off
}

// Snapshot captures the stack cursor at a scope boundary (block entry).
func (a *SymbolAllocator) Snapshot() SymbolAllocatorSnapshot {
	return SymbolAllocatorSnapshot{stackTop: a.stackTop}
}

// Restore rewinds the stack cursor to a previously captured snapshot
// (block exit), reclaiming the locals the block declared.
func (a *SymbolAllocator) Restore(s SymbolAllocatorSnapshot) {
	a.stackTop = s.stackTop
}

// ResetRoutine clears the stack cursor and high-water mark for the start
// of a new function body; the const and static spaces are shared across
// the whole program and are never reset.
func (a *SymbolAllocator) ResetRoutine() {
	a.stackTop = 0
	a.stackHigh = 0
}

// StackSize reports the high-water mark of the routine currently being
// compiled, used to populate Routine.StackSize.
func (a *SymbolAllocator) StackSize() uint16 { return a.stackHigh }

// ConstSize and StaticSize report the total size of their respective
// spaces once the whole program has been compiled.
func (a *SymbolAllocator) ConstSize() uint16  { return a.constTop }
func (a *SymbolAllocator) StaticSize() uint16 { return a.staticTop }

// FunctionAllocator interns function names to stable routine indices in
// declaration order, mirroring how the VM's Program.Routines slice is
// indexed by call targets.
type FunctionAllocator struct {
	order []lo.Tuple2[string, int]
	index map[string]int
}

func NewFunctionAllocator() *FunctionAllocator {
	return &FunctionAllocator{index: make(map[string]int)}
}

// Intern returns name's routine index, assigning the next one if it is
// the first time name has been seen.
func (a *FunctionAllocator) Intern(name string) int {
	if i, ok := a.index[name]; ok {
		return i
	}
	i := len(a.order)
	a.index[name] = i
	a.order = append(a.order, lo.Tuple2[string, int]{A: name, B: i})
	return i
}

// Lookup reports the routine index for an already-interned name.
func (a *FunctionAllocator) Lookup(name string) (int, bool) {
	i, ok := a.index[name]
	return i, ok
}

// Names returns interned names in routine-index order.
func (a *FunctionAllocator) Names() []string {
	return lo.Map(a.order, func(t lo.Tuple2[string, int], _ int) string { return t.A })
}

// registerCount is the number of virtual registers the allocator manages
// (spec.md §4.5: "a fixed bank of 64 virtual registers").
const registerCount = 64

// RegisterAllocator hands out and reclaims virtual register slots using a
// 64-bit bitset, always choosing the lowest free index. Ported from
// alloc_register.rs's free-list bitmap.
type RegisterAllocator struct {
	used uint64
}

func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{}
}

// RegisterExhaustedError is returned when all 64 registers are live at
// once (spec.md §7).
type RegisterExhaustedError struct{}

func (e *RegisterExhaustedError) Error() string {
	return "register allocator exhausted: all 64 virtual registers are live"
}

// Alloc returns the lowest free register index and marks it used.
func (a *RegisterAllocator) Alloc() (int, error) {
	if a.used == ^uint64(0) {
		return 0, &RegisterExhaustedError{}
	}
	idx := bits.TrailingZeros64(^a.used)
	a.used |= uint64(1) << uint(idx)
	return idx, nil
}

// Free releases a previously allocated register.
func (a *RegisterAllocator) Free(idx int) {
	a.used &^= uint64(1) << uint(idx)
}

// Empty reports whether no registers are currently live, the invariant
// that must hold after every top-level statement compiles (spec.md §8).
func (a *RegisterAllocator) Empty() bool { return a.used == 0 }
