package jit

import (
	"ember/cpu"
	"ember/ir"
)

// The portable backend threads verified IR into a Go closure. It exists so
// the engine behaves identically on platforms without a native code
// generator, and it doubles as the reference the native backend is tested
// against.
type portableBackend struct{}

func (portableBackend) name() string { return "portable" }

func (portableBackend) compile(f *ir.Func) (unit, error) {
	return closureUnit{f: evalFunc(f)}, nil
}

type closureUnit struct {
	f CompiledFunc
}

func (u closureUnit) fn() CompiledFunc { return u.f }
func (u closureUnit) release() error   { return nil }

// evalFunc builds the closure. Every value is carried as its 32-bit
// pattern; the signed/unsigned split lives entirely in the ops, exactly as
// in the emitted native code.
func evalFunc(f *ir.Func) CompiledFunc {
	n := f.NumValues()
	entry := f.Blocks[0]

	return func(c *cpu.Cpu) {
		vals := make([]uint32, n)
		var prev *ir.Block

		for blk := entry; ; {
			// phis read their predecessor's incoming values as a
			// parallel copy before anything else in the block runs
			if len(blk.Preds) > 0 {
				edge := 0
				for i, p := range blk.Preds {
					if p == prev {
						edge = i
						break
					}
				}
				var incoming []uint32
				for _, v := range blk.Instrs {
					if v.Op != ir.OpPhi {
						break
					}
					incoming = append(incoming, vals[v.Args[edge].ID])
				}
				for i, v := range blk.Instrs {
					if v.Op != ir.OpPhi {
						break
					}
					vals[v.ID] = incoming[i]
				}
			}

			var next *ir.Block
			for _, v := range blk.Instrs {
				switch v.Op {
				case ir.OpParam, ir.OpPhi:
					// param carries no bits here; phis were
					// resolved on block entry
				case ir.OpFieldAddr:
					vals[v.ID] = uint32(v.Aux)
				case ir.OpLoad:
					switch v.Args[0].Aux {
					case ir.FieldAcc:
						vals[v.ID] = uint32(c.Acc)
					case ir.FieldLc:
						vals[v.ID] = uint32(c.Lc)
					case ir.FieldPc:
						vals[v.ID] = c.Pc
					case ir.FieldHalt:
						vals[v.ID] = 0
						if c.Halt {
							vals[v.ID] = 1
						}
					}
				case ir.OpStore:
					x := vals[v.Args[1].ID]
					switch v.Args[0].Aux {
					case ir.FieldAcc:
						c.Acc = int32(x)
					case ir.FieldLc:
						c.Lc = int32(x)
					case ir.FieldPc:
						c.Pc = x
					case ir.FieldHalt:
						c.Halt = x != 0
					}
				case ir.OpIconst:
					vals[v.ID] = uint32(v.Aux)
				case ir.OpIadd:
					vals[v.ID] = vals[v.Args[0].ID] + vals[v.Args[1].ID]
				case ir.OpIsub:
					vals[v.ID] = vals[v.Args[0].ID] - vals[v.Args[1].ID]
				case ir.OpIcmpSgt:
					vals[v.ID] = 0
					if int32(vals[v.Args[0].ID]) > int32(vals[v.Args[1].ID]) {
						vals[v.ID] = 1
					}
				case ir.OpJump:
					next = v.Targets[0]
				case ir.OpBrnz:
					if vals[v.Args[0].ID] != 0 {
						next = v.Targets[0]
					} else {
						next = v.Targets[1]
					}
				case ir.OpReturn:
					return
				}
			}
			prev, blk = blk, next
		}
	}
}
