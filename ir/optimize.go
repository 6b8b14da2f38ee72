package ir

// Optimize runs the three-pass, index-preserving cleanup over every
// routine in prog until a pass changes nothing, ported from
// original_source/modules/ggbc/src/ir/optimize.rs. Statements are never
// deleted — only ever replaced with Nop — because Statement.Target is a
// Statement-index-relative jump: removing a slot would require
// rewriting every jump that crosses it, where overwriting with Nop
// leaves every index, and therefore every jump, valid.
func Optimize(prog *Program) {
	for i := range prog.Routines {
		optimizeRoutine(&prog.Routines[i])
	}
}

func optimizeRoutine(r *Routine) {
	for {
		changed := trailingCut(r)
		changed = reachability(r) || changed
		changed = threadJumps(r) || changed
		if !changed {
			return
		}
	}
}

// trailingCut nops out any statement after a routine's first Stop
// (spec.md §4.7 "any statements after the first Stop in a routine are
// dropped"): Stop halts the whole interpreter, so nothing after it can
// ever execute, in this routine or any other. Only main ever compiles a
// Stop; Ret-terminated dead code in ordinary routines is instead cleaned
// up by reachability below.
func trailingCut(r *Routine) bool {
	first := -1
	for i, s := range r.Statements {
		if s.Op == OpStop {
			first = i
			break
		}
	}
	if first < 0 {
		return false
	}
	changed := false
	for i := first + 1; i < len(r.Statements); i++ {
		if r.Statements[i].Op != OpNop {
			r.Statements[i] = Statement{Op: OpNop}
			changed = true
		}
	}
	return changed
}

// reachability walks the control-flow graph from statement 0 and
// replaces every statement no walk reaches with Nop. Branches are
// conservative: both arms of a conditional jump are always considered
// reachable, since the optimizer does not evaluate conditions.
func reachability(r *Routine) bool {
	n := len(r.Statements)
	if n == 0 {
		return false
	}
	live := make([]bool, n)
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i < 0 || i >= n || live[i] {
			continue
		}
		live[i] = true
		s := r.Statements[i]
		switch s.Op {
		case OpJmp:
			stack = append(stack, i+int(s.Target))
		case OpJmpIf, OpJmpIfNot:
			stack = append(stack, i+int(s.Target), i+1)
		case OpRet, OpStop:
			// no fallthrough successor
		default:
			stack = append(stack, i+1)
		}
	}
	changed := false
	for i, ok := range live {
		if !ok && r.Statements[i].Op != OpNop {
			r.Statements[i] = Statement{Op: OpNop}
			changed = true
		}
	}
	return changed
}

// threadJumps collapses a Jmp whose target is itself an unconditional
// Jmp into a single direct jump to the final destination, avoiding a
// hop through an intermediate trampoline statement left behind by
// earlier lowering (e.g. an `if` with no else, or a loop's back-edge
// landing on another loop's back-edge).
func threadJumps(r *Routine) bool {
	changed := false
	for i := range r.Statements {
		s := &r.Statements[i]
		if s.Op != OpJmp {
			continue
		}
		target := i + int(s.Target)
		seen := map[int]bool{i: true}
		for target >= 0 && target < len(r.Statements) && r.Statements[target].Op == OpJmp && !seen[target] {
			seen[target] = true
			target = target + int(r.Statements[target].Target)
		}
		newTarget := int16(target - i)
		if newTarget != s.Target {
			s.Target = newTarget
			changed = true
		}
	}
	return changed
}
