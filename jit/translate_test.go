package jit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/cpu"
	"ember/ir"
	"ember/mem"
)

func TestLayoutContract(t *testing.T) {
	// P5: members 0..3 are acc/lc/pc/halt at the baked offsets
	require.NoError(t, checkLayout())
	assert.Equal(t, int32(0), fieldOffset(ir.FieldAcc))
	assert.Equal(t, int32(4), fieldOffset(ir.FieldLc))
	assert.Equal(t, int32(8), fieldOffset(ir.FieldPc))
	assert.Equal(t, int32(12), fieldOffset(ir.FieldHalt))
}

func TestTranslateShape(t *testing.T) {
	f, err := Translate([]cpu.Op{cpu.INC3A, cpu.BACK7})
	require.NoError(t, err)
	require.NoError(t, ir.Verify(f))

	assert.Equal(t, FuncName, f.Name)
	require.Equal(t, 5, len(f.Blocks))
	assert.Equal(t, "entry", f.Blocks[0].Name)
	assert.Equal(t, "start", f.Blocks[1].Name)
	assert.Equal(t, "if.then", f.Blocks[2].Name)
	assert.Equal(t, "if.else", f.Blocks[3].Name)
	assert.Equal(t, "if.cont", f.Blocks[4].Name)

	// prologue: param, four member addresses, branch into the code region
	entry := f.Blocks[0]
	assert.Equal(t, ir.OpParam, entry.Instrs[0].Op)
	for i := 0; i < 4; i++ {
		assert.Equal(t, ir.OpFieldAddr, entry.Instrs[1+i].Op)
		assert.Equal(t, int64(i), entry.Instrs[1+i].Aux)
	}
	assert.Equal(t, ir.OpJump, entry.Terminator().Op)

	// the merge stores the phi'd pc and the epilogue returns
	cont := f.Blocks[4]
	assert.Equal(t, ir.OpPhi, cont.Instrs[0].Op)
	assert.Equal(t, ir.OpStore, cont.Instrs[1].Op)
	assert.Equal(t, ir.OpReturn, cont.Terminator().Op)
}

func TestTranslateStraightLine(t *testing.T) {
	f, err := Translate([]cpu.Op{cpu.CLRA, cpu.DECA, cpu.SETL, cpu.HALT})
	require.NoError(t, err)
	require.NoError(t, ir.Verify(f))
	assert.Equal(t, 2, len(f.Blocks)) // no diamond without BACK7
}

func TestTranslateEmpty(t *testing.T) {
	_, err := Translate(nil)
	assert.ErrorContains(t, err, "empty block")
}

func encodeOps(ops []cpu.Op) []byte {
	bs := make([]byte, len(ops))
	for i, op := range ops {
		bs[i] = byte(op)
	}
	return bs
}

// interpretBlock runs one dynamic basic block placed at c.Pc and returns
// the resulting register file.
func interpretBlock(t *testing.T, ops []cpu.Op, c cpu.Cpu) cpu.Cpu {
	t.Helper()
	m := &mem.Memory{}
	for i, b := range encodeOps(ops) {
		m.Write(c.Pc+uint32(i), b)
	}
	dbb, err := c.Interpret(m)
	require.NoError(t, err)
	require.Equal(t, ops, dbb)
	return c
}

// checkEquivalence compiles ops on the given host and asserts the compiled
// function leaves the same register file the interpreter does (P2).
func checkEquivalence(t *testing.T, h *Host, ops []cpu.Op, start cpu.Cpu) {
	t.Helper()
	tr := NewTranslator(h)
	fn, err := tr.Compile(ops)
	require.NoError(t, err)

	want := interpretBlock(t, ops, start)
	got := start
	fn(&got)
	assert.Equal(t, want, got, "block %v from %s", ops, &start)
}

func equivalenceSuite(t *testing.T, h *Host) {
	cases := []struct {
		ops   []cpu.Op
		start cpu.Cpu
	}{
		{[]cpu.Op{cpu.HALT}, cpu.Cpu{Acc: 7, Lc: 3}},
		{[]cpu.Op{cpu.CLRA, cpu.HALT}, cpu.Cpu{Acc: -5}},
		{[]cpu.Op{cpu.INC3A, cpu.HALT}, cpu.Cpu{Acc: 2147483646}}, // signed wrap
		{[]cpu.Op{cpu.DECA, cpu.HALT}, cpu.Cpu{Acc: -2147483648}}, // signed wrap
		{[]cpu.Op{cpu.INC3A, cpu.SETL, cpu.HALT}, cpu.Cpu{}},
		{ // taken loop branch
			[]cpu.Op{cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.BACK7},
			cpu.Cpu{Lc: 2, Pc: 64},
		},
		{ // fall-through loop branch
			[]cpu.Op{cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.INC3A, cpu.BACK7},
			cpu.Cpu{Lc: 1, Pc: 64},
		},
		{[]cpu.Op{cpu.BACK7}, cpu.Cpu{Lc: -3, Pc: 9}},
		{[]cpu.Op{cpu.BACK7}, cpu.Cpu{Lc: 5, Pc: 2}}, // pc wraps below 6
	}
	for _, tc := range cases {
		checkEquivalence(t, h, tc.ops, tc.start)
	}
}

func TestPortableEquivalence(t *testing.T) {
	h := NewPortableHost()
	defer h.Close()
	assert.Equal(t, "portable", h.Backend())
	equivalenceSuite(t, h)
}

// randomBlock draws a valid dynamic basic block: straight-line opcodes
// closed by one terminal.
func randomBlock(r *rand.Rand) []cpu.Op {
	straight := []cpu.Op{cpu.CLRA, cpu.INC3A, cpu.DECA, cpu.SETL}
	n := r.Intn(20)
	ops := make([]cpu.Op, 0, n+1)
	for i := 0; i < n; i++ {
		ops = append(ops, straight[r.Intn(len(straight))])
	}
	if r.Intn(2) == 0 {
		return append(ops, cpu.HALT)
	}
	return append(ops, cpu.BACK7)
}

func TestPortableEquivalenceRandom(t *testing.T) {
	h := NewPortableHost()
	defer h.Close()

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		ops := randomBlock(r)
		start := cpu.Cpu{
			Acc: int32(r.Uint32()),
			Lc:  int32(r.Intn(9) - 4),
			Pc:  uint32(r.Intn(1000) + 8),
		}
		checkEquivalence(t, h, ops, start)
	}
}

func TestHostSymbols(t *testing.T) {
	h := NewPortableHost()
	defer h.Close()

	_, err := h.Lookup(FuncName)
	assert.ErrorContains(t, err, "no such symbol")

	tr := NewTranslator(h)
	fn, err := tr.Compile([]cpu.Op{cpu.HALT})
	require.NoError(t, err)
	require.NotNil(t, fn)

	got, err := h.Lookup(FuncName)
	require.NoError(t, err)
	assert.NotNil(t, got)

	called := false
	h.InstallSymbol("trace", func(*cpu.Cpu) { called = true })
	tracer, err := h.Lookup("trace")
	require.NoError(t, err)
	tracer(nil)
	assert.True(t, called)
}

func TestHostCloseIsFinal(t *testing.T) {
	h := NewPortableHost()
	tr := NewTranslator(h)
	_, err := tr.Compile([]cpu.Op{cpu.HALT})
	require.NoError(t, err)
	assert.NoError(t, h.Close())

	_, err = h.Lookup(FuncName)
	assert.ErrorContains(t, err, "no such symbol")
}
