//go:build amd64 && (linux || darwin)

package jit

import (
	"fmt"
	"runtime"
	"unsafe"

	"ember/cpu"
	"ember/enc"
	"ember/ir"
)

func init() {
	supportedNativeArchs = append(supportedNativeArchs,
		nativeArch{arch: "amd64", os: "linux", make: newAmd64Backend},
		nativeArch{arch: "amd64", os: "darwin", make: newAmd64Backend},
	)
}

func newAmd64Backend() (backend, error) { return amd64Backend{}, nil }

// The amd64 backend is a single-pass lowering with no register allocation:
// every IR value gets a 4-byte slot in a per-unit scratch area addressed
// off R11, field accesses go through RDI (the cpu pointer, placed there by
// the invoke trampoline), and EAX/ECX are the working registers. Branches
// are emitted with placeholder displacements and patched once every block
// has an address.
type amd64Backend struct{}

func (amd64Backend) name() string { return "amd64" }

// invokeNative transfers control to compiled code with the cpu pointer in
// the first integer argument register. Implemented in invoke_amd64.s.
func invokeNative(code, cpu unsafe.Pointer)

type nativeUnit struct {
	code    *execMapping
	scratch []uint32 // address baked into the code; held to keep it live
}

func (u *nativeUnit) fn() CompiledFunc {
	entry := unsafe.Pointer(&u.code.buf[0])
	return func(c *cpu.Cpu) {
		invokeNative(entry, unsafe.Pointer(c))
		runtime.KeepAlive(u)
	}
}

func (u *nativeUnit) release() error { return u.code.close() }

// register numbers as ModRM fields
const (
	regEAX = 0
	regECX = 1
	regRDI = 7
	regR11 = 3 // low bits; REX.B supplies the fourth
)

type codeGen struct {
	buf      []byte
	blockOff map[*ir.Block]int
	fixups   []fixup
}

// a fixup is a rel32 displacement at buf[at:at+4] awaiting its target's
// address (the usual emit-then-patch scheme for forward branches)
type fixup struct {
	at     int
	target *ir.Block
}

func (g *codeGen) emit(bs ...byte)  { g.buf = append(g.buf, bs...) }
func (g *codeGen) emitU32(v uint32) { g.buf = enc.AppendU32(g.buf, v) }
func (g *codeGen) emitU64(v uint64) { g.buf = enc.AppendU64(g.buf, v) }

// loadSlot emits mov reg, [r11 + 4*id].
func (g *codeGen) loadSlot(reg byte, v *ir.Value) {
	g.emit(0x41, 0x8b, enc.ModRM(0b10, reg, regR11))
	g.emitU32(uint32(4 * v.ID))
}

// storeSlot emits mov [r11 + 4*id], reg.
func (g *codeGen) storeSlot(reg byte, v *ir.Value) {
	g.emit(0x41, 0x89, enc.ModRM(0b10, reg, regR11))
	g.emitU32(uint32(4 * v.ID))
}

// jumpTo emits the phi copies for the edge from block b to target, then an
// unconditional jump. Phi slots are written one at a time; the translator
// never emits a phi that reads another phi of the same block.
func (g *codeGen) jumpTo(b *ir.Block, target *ir.Block) {
	edge := 0
	for i, p := range target.Preds {
		if p == b {
			edge = i
			break
		}
	}
	for _, v := range target.Instrs {
		if v.Op != ir.OpPhi {
			break
		}
		g.loadSlot(regEAX, v.Args[edge])
		g.storeSlot(regEAX, v)
	}
	g.emit(0xe9) // jmp rel32
	g.fixups = append(g.fixups, fixup{at: len(g.buf), target: target})
	g.emitU32(0)
}

func (g *codeGen) emitValue(b *ir.Block, v *ir.Value) error {
	switch v.Op {
	case ir.OpParam, ir.OpFieldAddr, ir.OpPhi:
		// no code: the param lives in rdi, field addresses are
		// rdi-relative offsets, and phi slots are written on entry edges

	case ir.OpIconst:
		g.emit(0xb8) // mov eax, imm32
		g.emitU32(uint32(v.Aux))
		g.storeSlot(regEAX, v)

	case ir.OpLoad:
		off := byte(fieldOffset(v.Args[0].Aux))
		if v.Type == ir.I8 {
			g.emit(0x0f, 0xb6, enc.ModRM(0b01, regEAX, regRDI), off) // movzx eax, byte [rdi+off]
		} else {
			g.emit(0x8b, enc.ModRM(0b01, regEAX, regRDI), off) // mov eax, [rdi+off]
		}
		g.storeSlot(regEAX, v)

	case ir.OpStore:
		off := byte(fieldOffset(v.Args[0].Aux))
		g.loadSlot(regEAX, v.Args[1])
		if v.Args[1].Type == ir.I8 {
			g.emit(0x88, enc.ModRM(0b01, regEAX, regRDI), off) // mov [rdi+off], al
		} else {
			g.emit(0x89, enc.ModRM(0b01, regEAX, regRDI), off) // mov [rdi+off], eax
		}

	case ir.OpIadd:
		g.loadSlot(regEAX, v.Args[0])
		g.loadSlot(regECX, v.Args[1])
		g.emit(0x01, enc.ModRM(0b11, regECX, regEAX)) // add eax, ecx
		g.storeSlot(regEAX, v)

	case ir.OpIsub:
		g.loadSlot(regEAX, v.Args[0])
		g.loadSlot(regECX, v.Args[1])
		g.emit(0x29, enc.ModRM(0b11, regECX, regEAX)) // sub eax, ecx
		g.storeSlot(regEAX, v)

	case ir.OpIcmpSgt:
		g.loadSlot(regEAX, v.Args[0])
		g.loadSlot(regECX, v.Args[1])
		g.emit(0x39, enc.ModRM(0b11, regECX, regEAX)) // cmp eax, ecx
		g.emit(0x0f, 0x9f, 0xc0)                      // setg al
		g.emit(0x0f, 0xb6, 0xc0)                      // movzx eax, al
		g.storeSlot(regEAX, v)

	case ir.OpJump:
		g.jumpTo(b, v.Targets[0])

	case ir.OpBrnz:
		for _, t := range v.Targets {
			for _, p := range t.Instrs {
				if p.Op == ir.OpPhi {
					return fmt.Errorf("conditional branch into a phi block")
				}
			}
		}
		g.loadSlot(regEAX, v.Args[0])
		g.emit(0x85, 0xc0)       // test eax, eax
		g.emit(0x0f, 0x85)       // jnz rel32
		g.fixups = append(g.fixups, fixup{at: len(g.buf), target: v.Targets[0]})
		g.emitU32(0)
		g.emit(0xe9) // jmp rel32
		g.fixups = append(g.fixups, fixup{at: len(g.buf), target: v.Targets[1]})
		g.emitU32(0)

	case ir.OpReturn:
		g.emit(0xc3)

	default:
		return fmt.Errorf("no lowering for %s", v.Op)
	}
	return nil
}

func (amd64Backend) compile(f *ir.Func) (unit, error) {
	n := f.NumValues()
	if n == 0 {
		n = 1
	}
	scratch := make([]uint32, n)

	g := &codeGen{blockOff: map[*ir.Block]int{}}

	// movabs r11, &scratch[0]
	g.emit(0x49, 0xbb)
	g.emitU64(uint64(uintptr(unsafe.Pointer(&scratch[0]))))

	for _, b := range f.Blocks {
		g.blockOff[b] = len(g.buf)
		for _, v := range b.Instrs {
			if err := g.emitValue(b, v); err != nil {
				return nil, err
			}
		}
	}

	for _, fx := range g.fixups {
		rel := int32(g.blockOff[fx.target] - (fx.at + 4))
		enc.PutU32(g.buf, fx.at, uint32(rel))
	}

	m, err := allocExec(g.buf)
	if err != nil {
		return nil, err
	}
	return &nativeUnit{code: m, scratch: scratch}, nil
}
