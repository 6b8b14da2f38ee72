// Package vm implements the stack-based bytecode interpreter (component
// V): four independent memory spaces plus a flat 64KiB absolute address
// window, stepped one ir.Statement at a time. Grounded on
// original_source/modules/ggbc-vm/src/{memory,registers,stack}.rs and
// cross-checked against the VM shapes in
// other_examples/c41c7e81_robertodauria-ebpf-vm and
// other_examples/b55e6ddd_lookbusy1344-arm_emulator for the
// fetch/decode/execute step shape.
package vm

import "github.com/ggbclang/ggbc/ir"

const registerCount = 64

// absoluteSize is the full address space a target 8-bit CPU can address
// with a 16-bit pointer (spec.md §3 "absolute memory").
const absoluteSize = 1 << 16

// memory holds the VM's globally shared addressable spaces (spec.md §3
// "Memory Model"): a read-only constant pool, mutable static RAM, and a
// flat 64KiB absolute window. The register bank and the routine stack
// are NOT here — each call frame gets its own, so a suspended caller's
// live registers are never clobbered by a callee reusing the same
// low register indices (spec.md §4.5's allocator hands out indices
// per-routine at compile time; at run time each activation needs its
// own bank for that to be safe across recursive/nested calls).
type memory struct {
	constMem []byte
	static   []byte
	absolute [absoluteSize]byte
}

func newMemory(prog *ir.Program) *memory {
	m := &memory{
		constMem: append([]byte(nil), prog.Const...),
		static:   append([]byte(nil), prog.Static...),
	}
	return m
}

func (m *memory) readByteSpace(space []byte, off uint16) uint16 {
	if int(off) >= len(space) {
		return 0
	}
	return uint16(space[off])
}

func (m *memory) writeByteSpace(space []byte, off uint16, v uint16) {
	if int(off) < len(space) {
		space[off] = byte(v)
	}
}
