package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// cloneStatements is a deep-enough copy for these tests: Statement has no
// pointer fields that Optimize mutates other than Op/Target, so a plain
// slice copy is sufficient to compare before/after.
func cloneStatements(stmts []Statement) []Statement {
	out := make([]Statement, len(stmts))
	copy(out, stmts)
	return out
}

func TestOptimizeIdempotent(t *testing.T) {
	r := Routine{
		Name: "main",
		Statements: []Statement{
			{Op: OpMov, Dst: StaticLoc(0), Left: LiteralLoc(1)}, // 0
			{Op: OpJmp, Target: 3},                              // 1: -> 4
			{Op: OpMov, Dst: StaticLoc(1), Left: LiteralLoc(2)}, // 2: unreachable
			{Op: OpJmp, Target: 1},                              // 3: -> 4, unreachable
			{Op: OpStop},                                        // 4
			{Op: OpMov, Dst: StaticLoc(2), Left: LiteralLoc(3)}, // 5: after Stop
		},
	}
	optimizeRoutine(&r)
	once := cloneStatements(r.Statements)
	optimizeRoutine(&r)
	assert.Equal(t, once, r.Statements, "a second Optimize pass over an already-optimized routine must be a no-op")
}

func TestOptimizeUnreachableBecomesNop(t *testing.T) {
	r := Routine{
		Name: "f",
		Statements: []Statement{
			{Op: OpJmp, Target: 2},                              // 0: -> 2
			{Op: OpMov, Dst: StaticLoc(0), Left: LiteralLoc(9)}, // 1: unreachable, no path ever lands here
			{Op: OpRet, Left: LiteralLoc(0)},                     // 2
		},
	}
	optimizeRoutine(&r)
	assert.Equal(t, OpJmp, r.Statements[0].Op)
	assert.Equal(t, OpNop, r.Statements[1].Op, "statement with no incoming control-flow edge must become Nop")
	assert.Equal(t, OpRet, r.Statements[2].Op)
}

func TestOptimizeStopDropsOnlyTrailingStatements(t *testing.T) {
	r := Routine{
		Name: "main",
		Statements: []Statement{
			{Op: OpMov, Dst: StaticLoc(0), Left: LiteralLoc(1)},
			{Op: OpStop},
			{Op: OpMov, Dst: StaticLoc(1), Left: LiteralLoc(2)}, // after Stop, must become Nop
			{Op: OpMov, Dst: StaticLoc(2), Left: LiteralLoc(3)}, // after Stop, must become Nop
		},
	}
	optimizeRoutine(&r)
	require_ := assert.New(t)
	require_.Equal(OpMov, r.Statements[0].Op)
	require_.Equal(OpStop, r.Statements[1].Op)
	require_.Equal(OpNop, r.Statements[2].Op)
	require_.Equal(OpNop, r.Statements[3].Op)
}

func TestOptimizePreservesStatementIndicesAndJumpTargets(t *testing.T) {
	// A conditional branch with a one-statement else: the `then` arm's
	// trailing Jmp (index 2) skips the else body (index 3) to the join
	// point (index 4). No Statement is ever deleted, so every
	// surviving jump's absolute destination (index + Target) must still
	// resolve to the same logical statement before and after Optimize.
	r := Routine{
		Name: "main",
		Statements: []Statement{
			{Op: OpJmpIfNot, Left: LiteralLoc(0), Target: 3}, // 0: else branch starts at index 3
			{Op: OpMov, Dst: StaticLoc(0), Left: LiteralLoc(1)}, // 1: then body
			{Op: OpJmp, Target: 2},                              // 2: -> join at index 4
			{Op: OpMov, Dst: StaticLoc(0), Left: LiteralLoc(2)}, // 3: else body
			{Op: OpStop},                                        // 4: join
		},
	}
	before := len(r.Statements)
	optimizeRoutine(&r)
	assert.Len(t, r.Statements, before, "Optimize must never change the number of Statement slots")

	// statement 0's JmpIfNot must still land on the else body (index 3).
	target0 := 0 + int(r.Statements[0].Target)
	assert.Equal(t, 3, target0)
	assert.Equal(t, OpMov, r.Statements[target0].Op)

	// the then-arm's trailing Jmp (index 2) must still land on the join
	// point, whatever single hop or thread-through got it there.
	target2 := 2 + int(r.Statements[2].Target)
	assert.Equal(t, 4, target2)
	assert.Equal(t, OpStop, r.Statements[target2].Op)
}
