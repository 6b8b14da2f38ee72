package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolAllocatorBumpsIndependentSpaces(t *testing.T) {
	a := NewSymbolAllocator()
	assert.EqualValues(t, 0, a.AllocConst(2))
	assert.EqualValues(t, 2, a.AllocConst(1))
	assert.EqualValues(t, 0, a.AllocStatic(4))
	assert.EqualValues(t, 4, a.AllocStatic(1))
	assert.EqualValues(t, 0, a.AllocStack(1))
	assert.EqualValues(t, 1, a.AllocStack(1))
	assert.EqualValues(t, 3, a.ConstSize())
	assert.EqualValues(t, 5, a.StaticSize())
}

func TestSymbolAllocatorScopeSnapshotRestore(t *testing.T) {
	a := NewSymbolAllocator()
	a.AllocStack(2)
	snap := a.Snapshot()
	a.AllocStack(3)
	assert.EqualValues(t, 5, a.StackSize())
	a.Restore(snap)
	assert.EqualValues(t, 2, a.stackTop)
	// Sibling scope reuses the same bytes but the high-water mark sticks.
	off := a.AllocStack(1)
	assert.EqualValues(t, 2, off)
	assert.EqualValues(t, 5, a.StackSize())
}

func TestSymbolAllocatorResetRoutine(t *testing.T) {
	a := NewSymbolAllocator()
	a.AllocStatic(10)
	a.AllocStack(4)
	a.ResetRoutine()
	assert.EqualValues(t, 0, a.AllocStack(1))
	assert.EqualValues(t, 10, a.StaticSize(), "static space is shared across routines")
}

func TestSymbolAllocatorReserveAbsolute(t *testing.T) {
	a := NewSymbolAllocator()
	a.ReserveAbsolute(0xff00, 4)
	assert.EqualValues(t, 0, a.StaticSize(), "absolute statics reserve address space, not the sequential pool")
	off := a.AllocStatic(1)
	assert.EqualValues(t, 0, off, "sequential statics still start at 0")
}

func TestFunctionAllocatorInternsInOrder(t *testing.T) {
	a := NewFunctionAllocator()
	assert.Equal(t, 0, a.Intern("main"))
	assert.Equal(t, 1, a.Intern("helper"))
	assert.Equal(t, 0, a.Intern("main"))
	assert.Equal(t, []string{"main", "helper"}, a.Names())
	idx, ok := a.Lookup("helper")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = a.Lookup("missing")
	assert.False(t, ok)
}

func TestRegisterAllocatorLowestFreeSlot(t *testing.T) {
	a := NewRegisterAllocator()
	r0, err := a.Alloc()
	require.NoError(t, err)
	r1, err := a.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 0, r0)
	assert.Equal(t, 1, r1)
	a.Free(r0)
	r2, err := a.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 0, r2, "freed slot 0 is reused before allocating a new one")
	a.Free(r1)
	a.Free(r2)
	assert.True(t, a.Empty())
}

func TestRegisterAllocatorExhaustion(t *testing.T) {
	a := NewRegisterAllocator()
	for i := 0; i < registerCount; i++ {
		_, err := a.Alloc()
		require.NoError(t, err)
	}
	_, err := a.Alloc()
	require.Error(t, err)
	var exhausted *RegisterExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}
