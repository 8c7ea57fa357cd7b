package jit

import (
	"fmt"

	"ember/cpu"
	"ember/ir"
)

// FuncName is the symbol every translated block is emitted under; the
// driver resolves it through the host.
const FuncName = "dbb"

// A fnContext carries the in-progress function's field-address values
// through the per-opcode lowering helpers. It is threaded explicitly
// alongside the builder; the translator itself holds no mutable state.
type fnContext struct {
	accPtr  *ir.Value
	lcPtr   *ir.Value
	pcPtr   *ir.Value
	haltPtr *ir.Value
}

// Translate lowers a dynamic basic block into a single void function over
// the cpu pointer. The caller is expected to run ir.Verify on the result
// before handing it to a backend.
func Translate(dbb []cpu.Op) (*ir.Func, error) {
	if len(dbb) == 0 {
		return nil, fmt.Errorf("translate: empty block")
	}

	f := ir.NewFunc(FuncName)
	b := ir.NewBuilder(f)
	fc := setupPrologue(f, b)

	for _, op := range dbb {
		switch op {
		case cpu.HALT:
			lowerHalt(b, fc)
		case cpu.CLRA:
			lowerClra(b, fc)
		case cpu.INC3A:
			lowerInc3a(b, fc)
		case cpu.DECA:
			lowerDeca(b, fc)
		case cpu.SETL:
			lowerSetl(b, fc)
		case cpu.BACK7:
			lowerBack7(f, b, fc)
		default:
			return nil, fmt.Errorf("translate: unknown opcode %d", byte(op))
		}
	}

	setupEpilogue(b)
	return f, nil
}

// setupPrologue materializes the cpu parameter, derives the four member
// addresses, and branches into the code region.
func setupPrologue(f *ir.Func, b *ir.Builder) fnContext {
	entry := f.NewBlock("entry")
	code := f.NewBlock("start")

	b.SetBlock(entry)
	param := b.Param()
	fc := fnContext{
		accPtr:  b.FieldAddr(param, ir.FieldAcc),
		lcPtr:   b.FieldAddr(param, ir.FieldLc),
		pcPtr:   b.FieldAddr(param, ir.FieldPc),
		haltPtr: b.FieldAddr(param, ir.FieldHalt),
	}
	b.Jump(code)

	b.SetBlock(code)
	return fc
}

func setupEpilogue(b *ir.Builder) {
	b.Return()
}

// lowerIncPC emits PC += 1 (unsigned).
func lowerIncPC(b *ir.Builder, fc fnContext) {
	pc := b.Load(fc.pcPtr)
	inc := b.Iadd(pc, b.Iconst(ir.I32, 1))
	b.Store(fc.pcPtr, inc)
}

func lowerHalt(b *ir.Builder, fc fnContext) {
	b.Store(fc.haltPtr, b.Iconst(ir.I8, 1))
	lowerIncPC(b, fc)
}

func lowerClra(b *ir.Builder, fc fnContext) {
	b.Store(fc.accPtr, b.Iconst(ir.I32, 0))
	lowerIncPC(b, fc)
}

func lowerInc3a(b *ir.Builder, fc fnContext) {
	acc := b.Load(fc.accPtr)
	sum := b.Iadd(acc, b.Iconst(ir.I32, 3))
	b.Store(fc.accPtr, sum)
	lowerIncPC(b, fc)
}

func lowerDeca(b *ir.Builder, fc fnContext) {
	acc := b.Load(fc.accPtr)
	dec := b.Isub(acc, b.Iconst(ir.I32, 1))
	b.Store(fc.accPtr, dec)
	lowerIncPC(b, fc)
}

func lowerSetl(b *ir.Builder, fc fnContext) {
	acc := b.Load(fc.accPtr)
	b.Store(fc.lcPtr, acc)
	lowerIncPC(b, fc)
}

// lowerBack7 emits the loop branch: LC -= 1, then a then/else/cont diamond
// merging PC-6 and PC+1 through a phi. BACK7 terminates the block, so
// nothing is ever emitted after the merge except the epilogue's return.
func lowerBack7(f *ir.Func, b *ir.Builder, fc fnContext) {
	one := b.Iconst(ir.I32, 1)
	six := b.Iconst(ir.I32, 6)
	zero := b.Iconst(ir.I32, 0)

	lc := b.Load(fc.lcPtr)
	dec := b.Isub(lc, one)
	b.Store(fc.lcPtr, dec)

	pc := b.Load(fc.pcPtr)
	cond := b.IcmpSgt(dec, zero)

	then := f.NewBlock("if.then")
	els := f.NewBlock("if.else")
	cont := f.NewBlock("if.cont")
	b.Brnz(cond, then, els)

	b.SetBlock(then)
	back := b.Isub(pc, six)
	b.Jump(cont)

	b.SetBlock(els)
	fwd := b.Iadd(pc, one)
	b.Jump(cont)

	b.SetBlock(cont)
	merged := b.Phi(ir.I32, back, fwd)
	b.Store(fc.pcPtr, merged)
}
