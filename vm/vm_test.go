package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggbclang/ggbc/ast"
	"github.com/ggbclang/ggbc/ir"
	"github.com/ggbclang/ggbc/vm"
)

// run compiles, optimizes, and executes src to completion, returning the
// final static memory image — the observation point every scenario
// below asserts against.
func run(t *testing.T, src string) []byte {
	t.Helper()
	a, _, err := ast.Parse([]byte(src))
	require.NoError(t, err)
	prog, err := ir.Compile(a)
	require.NoError(t, err)
	ir.Optimize(prog)
	m := vm.NewMachine(prog, vm.Opts{MaxSteps: 100000})
	require.NoError(t, m.Run())
	require.False(t, m.Running())
	return m.Static()
}

func TestScenarioStaticAllocationOrder(t *testing.T) {
	static := run(t, `
static s0 :: u8 = 0
static s1 :: u8 = 1
static s2 :: u8 = 2
static s3 :: u8 = 3
static s4 :: u8 = 4
static s5 :: u8 = 5
static s6 :: u8 = 6
static s7 :: u8 = 7
static s8 :: u8 = 8
static s9 :: u8 = 9
static s10 :: u8 = 10
static s11 :: u8 = 11
static s12 :: u8 = 12
static s13 :: u8 = 13
static s14 :: u8 = 14
static s15 :: u8 = 15
fn main {}
`)
	want := make([]byte, 16)
	for i := range want {
		want[i] = byte(i)
	}
	assert.Equal(t, want, static[:16])
}

func TestScenarioBool(t *testing.T) {
	static := run(t, `
static result :: u8 = 0
fn main {
    (= result 42)
}
`)
	assert.Equal(t, byte(42), static[0])
}

func TestScenarioCompare(t *testing.T) {
	static := run(t, `
static res :: [u8 6]
fn main {
    (= ([] res 0) (== 1 1))
    (= ([] res 1) (== 1 2))
    (= ([] res 2) (< 2 1))
    (= ([] res 3) (< 1 2))
    (= ([] res 4) (<= 1 1))
    (= ([] res 5) (>= 2 1))
}
`)
	assert.Equal(t, []byte{1, 0, 0, 1, 1, 1}, static[:6])
}

func TestScenarioFibonacci(t *testing.T) {
	static := run(t, `
static fib :: [u8 13]
fn main {
    (= ([] fib 0) 1)
    (= ([] fib 1) 1)
    for (let i :: u8 = 2 (< i 13) (= i (+ i 1))) {
        (= ([] fib i) (+ ([] fib (- i 1)) ([] fib (- i 2))))
    }
}
`)
	want := []byte{1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233}
	assert.Equal(t, want, static[:13])
}

func TestScenarioMul(t *testing.T) {
	static := run(t, `
static res :: [u8 2]
fn mul(a :: u8, b :: u8) : u8 {
    let acc :: u8 = 0
    for (let i :: u8 = 0 (< i b) (= i (+ i 1))) {
        (= acc (+ acc a))
    }
    return acc
}
fn main {
    (= ([] res 0) (mul 10 11))
    (= ([] res 1) (* 10 11))
}
`)
	assert.Equal(t, []byte{110, 110}, static[:2])
}

func TestScenarioRecursion(t *testing.T) {
	static := run(t, `
static res :: [u8 4]
fn fact(n :: u8) : u8 {
    if (== n 0) {
        return 1
    } else {
        return (* n (fact (- n 1)))
    }
}
fn main {
    (= ([] res 0) (fact 5))
    (= ([] res 1) (fact 6))
    (= ([] res 2) (fact 7))
    (= ([] res 3) (fact 8))
}
`)
	// factorials modulo 256, matching the target's 8-bit multiply wrap:
	// 5!=120, 6!=720%256=208, 7!=5040%256=176, 8!=40320%256=128.
	assert.Equal(t, []byte{120, 208, 176, 128}, static[:4])
}

func TestScenarioSort(t *testing.T) {
	static := run(t, `
static arr :: [u8 16]
fn main {
    for (let i :: u8 = 0 (< i 16) (= i (+ i 1))) {
        (= ([] arr i) (- 15 i))
    }
    for (let i :: u8 = 0 (< i 16) (= i (+ i 1))) {
        for (let j :: u8 = 0 (< j (- 15 i)) (= j (+ j 1))) {
            if (> ([] arr j) ([] arr (+ j 1))) {
                let tmp :: u8 = ([] arr j)
                (= ([] arr j) ([] arr (+ j 1)))
                (= ([] arr (+ j 1)) tmp)
            }
        }
    }
}
`)
	want := make([]byte, 16)
	for i := range want {
		want[i] = byte(i)
	}
	assert.Equal(t, want, static[:16])
}

func TestScenarioUnion(t *testing.T) {
	static := run(t, `
static u :: union { a :: u8, b :: [u8 2] }
fn main {
    (= ([] u a) 3)
    (= ([] ([] u b) 1) 4)
}
`)
	assert.Equal(t, []byte{3, 4}, static[:2])
}
