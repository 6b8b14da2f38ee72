package vm

import (
	"errors"
	"fmt"

	"github.com/ggbclang/ggbc/ir"
)

// Opts configures a Machine (spec.md §4.7 "Configuration"). MaxSteps
// bounds Run's cooperative loop so a runaway or genuinely infinite
// program cannot hang the host; 0 means unlimited.
type Opts struct {
	MaxSteps int
}

// ErrStepBudgetExceeded is returned by Run when MaxSteps statements have
// executed without the program returning from main.
var ErrStepBudgetExceeded = errors.New("vm: step budget exceeded")

// UnknownOpError is raised for an ir.Op the interpreter does not
// recognize — it should be unreachable for any Program produced by
// ir.Compile, but guards against a future opcode added to one package
// and not the other.
type UnknownOpError struct{ Op ir.Op }

func (e *UnknownOpError) Error() string { return fmt.Sprintf("vm: unknown opcode %d", e.Op) }

// callFrame is one routine activation: its own stack bytes and register
// bank, a program counter into its routine's Statement slice, and where
// the caller wants its return value written once this frame's Ret
// fires.
type callFrame struct {
	routine   int
	stack     []byte
	registers [registerCount]uint16
	pc        int
	dst       ir.Location
}

// Machine is the stack-based interpreter over a compiled ir.Program
// (component V). It is stepped cooperatively: Step executes exactly one
// Statement, Running reports whether main has returned yet, and Run
// drives Step to completion or to a step-budget error.
type Machine struct {
	prog   *ir.Program
	mem    *memory
	frames []callFrame
	opts   Opts
	steps  int
}

// NewMachine constructs a Machine ready to execute prog starting at its
// main handler.
func NewMachine(prog *ir.Program, opts Opts) *Machine {
	m := &Machine{prog: prog, mem: newMemory(prog), opts: opts}
	m.pushFrame(prog.Handlers.Main, nil, ir.Location{})
	return m
}

func (m *Machine) pushFrame(routine int, args []ir.Location, dst ir.Location) {
	r := m.prog.Routines[routine]
	f := callFrame{routine: routine, stack: make([]byte, r.StackSize), dst: dst}
	m.frames = append(m.frames, f)
	// args were evaluated in the caller's frame, already resolved to
	// concrete values by the caller before the push — copy them into
	// the new frame's leading stack slots, one byte per argument
	// (parameters wider than one byte are a known gap; see DESIGN.md).
	callee := &m.frames[len(m.frames)-1]
	for i, a := range args {
		callee.stack[i] = byte(a.Value)
	}
}

// Running reports whether the program has not yet returned from main.
func (m *Machine) Running() bool { return len(m.frames) > 0 }

// Static returns the current contents of static RAM, used by callers to
// observe a program's effects once it halts (spec.md §8's testable
// properties all assert on this).
func (m *Machine) Static() []byte { return append([]byte(nil), m.mem.static...) }

// Run drives Step until the program halts or the step budget is spent.
func (m *Machine) Run() error {
	for m.Running() {
		if m.opts.MaxSteps > 0 && m.steps >= m.opts.MaxSteps {
			return ErrStepBudgetExceeded
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes exactly one Statement of the current frame's routine.
// It is a no-op returning nil once the program has halted.
func (m *Machine) Step() error {
	if !m.Running() {
		return nil
	}
	m.steps++
	fi := len(m.frames) - 1
	f := &m.frames[fi]
	routine := m.prog.Routines[f.routine]
	if f.pc >= len(routine.Statements) {
		m.ret(ir.Location{Kind: ir.LocLiteral, Value: 0})
		return nil
	}
	s := routine.Statements[f.pc]
	pc := f.pc

	switch s.Op {
	case ir.OpStop:
		// Halts the interpreter outright, regardless of call depth — a
		// suspended caller never resumes, unlike Ret which only unwinds
		// the current frame.
		m.frames = m.frames[:0]
	case ir.OpNop:
		f.pc++
	case ir.OpMov:
		m.write(f, s.Dst, m.read(f, s.Left))
		f.pc++
	case ir.OpLoad8:
		addr := m.read(f, s.Left)
		m.write(f, s.Dst, m.mem.readByteSpace(m.mem.static, addr))
		f.pc++
	case ir.OpStore8:
		addr := m.read(f, s.Left)
		m.mem.writeByteSpace(m.mem.static, addr, m.read(f, s.Right))
		f.pc++
	case ir.OpAdd:
		m.binary(f, s, func(l, r uint16) uint16 { return l + r })
		f.pc++
	case ir.OpSub:
		m.binary(f, s, func(l, r uint16) uint16 { return l - r })
		f.pc++
	case ir.OpMul:
		m.binary(f, s, func(l, r uint16) uint16 { return l * r })
		f.pc++
	case ir.OpDiv:
		m.binary(f, s, func(l, r uint16) uint16 {
			if r == 0 {
				return 0
			}
			return l / r
		})
		f.pc++
	case ir.OpAnd:
		m.binary(f, s, func(l, r uint16) uint16 { return l & r })
		f.pc++
	case ir.OpOr:
		m.binary(f, s, func(l, r uint16) uint16 { return l | r })
		f.pc++
	case ir.OpXor:
		m.binary(f, s, func(l, r uint16) uint16 { return l ^ r })
		f.pc++
	case ir.OpShl:
		m.binary(f, s, func(l, r uint16) uint16 { return l << (r & 0xf) })
		f.pc++
	case ir.OpShr:
		m.binary(f, s, func(l, r uint16) uint16 { return l >> (r & 0xf) })
		f.pc++
	case ir.OpNeg:
		m.write(f, s.Dst, -m.read(f, s.Left))
		f.pc++
	case ir.OpNot:
		v := m.read(f, s.Left)
		m.write(f, s.Dst, boolU16(v == 0))
		f.pc++
	case ir.OpEq:
		m.binary(f, s, func(l, r uint16) uint16 { return boolU16(l == r) })
		f.pc++
	case ir.OpNe:
		m.binary(f, s, func(l, r uint16) uint16 { return boolU16(l != r) })
		f.pc++
	case ir.OpLt:
		m.binary(f, s, func(l, r uint16) uint16 { return boolU16(l < r) })
		f.pc++
	case ir.OpGt:
		m.binary(f, s, func(l, r uint16) uint16 { return boolU16(l > r) })
		f.pc++
	case ir.OpLe:
		m.binary(f, s, func(l, r uint16) uint16 { return boolU16(l <= r) })
		f.pc++
	case ir.OpGe:
		m.binary(f, s, func(l, r uint16) uint16 { return boolU16(l >= r) })
		f.pc++
	case ir.OpJmp:
		f.pc = pc + int(s.Target)
	case ir.OpJmpIf:
		if m.read(f, s.Left) != 0 {
			f.pc = pc + int(s.Target)
		} else {
			f.pc++
		}
	case ir.OpJmpIfNot:
		if m.read(f, s.Left) == 0 {
			f.pc = pc + int(s.Target)
		} else {
			f.pc++
		}
	case ir.OpCall:
		f.pc++ // resume here once the callee returns
		args := make([]ir.Location, len(s.Args))
		for i, a := range s.Args {
			args[i] = ir.Location{Kind: ir.LocLiteral, Value: m.read(f, a)}
		}
		m.pushFrame(s.Routine, args, s.Dst)
	case ir.OpRet:
		m.ret(s.Left)
	case ir.OpPush, ir.OpPop:
		// Scope entry/exit markers (spec.md §4.6). The frame's stack bytes
		// are already sized to the routine's high-water mark by the
		// allocator, so these carry no runtime effect of their own; they
		// exist so a routine's Statement stream has an explicit shape for
		// every lexical scope, matching how the compiler brackets one.
		f.pc++
	default:
		return &UnknownOpError{Op: s.Op}
	}
	return nil
}

func boolU16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// ret evaluates value in the top frame, pops it, and — if a caller
// remains — writes the result to the Location the Call recorded.
func (m *Machine) ret(value ir.Location) {
	fi := len(m.frames) - 1
	f := &m.frames[fi]
	result := m.read(f, value)
	dst := f.dst
	m.frames = m.frames[:fi]
	if len(m.frames) > 0 {
		caller := &m.frames[len(m.frames)-1]
		m.write(caller, dst, result)
	}
}

func (m *Machine) binary(f *callFrame, s ir.Statement, op func(l, r uint16) uint16) {
	m.write(f, s.Dst, op(m.read(f, s.Left), m.read(f, s.Right)))
}

func (m *Machine) read(f *callFrame, loc ir.Location) uint16 {
	switch loc.Kind {
	case ir.LocConst:
		return m.mem.readByteSpace(m.mem.constMem, loc.Offset)
	case ir.LocStatic:
		return m.mem.readByteSpace(m.mem.static, loc.Offset)
	case ir.LocAbsolute:
		return uint16(m.mem.absolute[loc.Addr])
	case ir.LocStack:
		return m.mem.readByteSpace(f.stack, loc.Offset)
	case ir.LocRegister:
		return f.registers[loc.Reg]
	case ir.LocLiteral:
		return loc.Value
	case ir.LocStaticIndexed:
		return m.mem.readByteSpace(m.mem.static, loc.Offset+f.registers[loc.Reg])
	case ir.LocStackIndexed:
		return m.mem.readByteSpace(f.stack, loc.Offset+f.registers[loc.Reg])
	default:
		return 0
	}
}

func (m *Machine) write(f *callFrame, loc ir.Location, v uint16) {
	switch loc.Kind {
	case ir.LocStatic:
		m.mem.writeByteSpace(m.mem.static, loc.Offset, v)
	case ir.LocAbsolute:
		m.mem.absolute[loc.Addr] = byte(v)
	case ir.LocStack:
		m.mem.writeByteSpace(f.stack, loc.Offset, v)
	case ir.LocRegister:
		f.registers[loc.Reg] = v
	case ir.LocStaticIndexed:
		m.mem.writeByteSpace(m.mem.static, loc.Offset+f.registers[loc.Reg], v)
	case ir.LocStackIndexed:
		m.mem.writeByteSpace(f.stack, loc.Offset+f.registers[loc.Reg], v)
	default:
		// Const and Literal are not valid write targets; the compiler
		// never emits a Dst of either kind.
	}
}
