// Package cpu implements the register machine: a four-register file, the
// six-opcode instruction set, and the interpreter that discovers dynamic
// basic blocks.

package cpu

import (
	"fmt"

	"ember/mem"
)

// The Cpu is a pure register file. Its layout is a published binary
// interface: the JIT addresses the fields as members 0..3 of a struct with
// exactly these widths, so fields must never be reordered, resized, or
// preceded by anything else. The jit package asserts the offsets at startup.
type Cpu struct {
	Acc  int32  // accumulator
	Lc   int32  // loop counter
	Pc   uint32 // program counter
	Halt bool   // set by HALT; ends the main loop
}

func (c *Cpu) String() string {
	return fmt.Sprintf("Cpu [ acc: %d, lc: %d, pc: %d, halt: %t ]", c.Acc, c.Lc, c.Pc, c.Halt)
}

// fetch decodes a single byte into an Op.
func (c *Cpu) fetch(b byte) (Op, error) {
	if _, legal := Opcodes[Op(b)]; !legal {
		// a byte outside {0..5} means the image is malformed; there is
		// no way to resynchronize a 1-byte ISA, so give up
		return 0, fmt.Errorf("unknown opcode byte %#02x at pc %#04x", b, c.Pc)
	}
	return Op(b), nil
}

// Step runs a single fetch/decode/execute cycle against m and reports which
// opcode ran. The program counter moves according to the opcode's semantics;
// all other state changes happen inside the instruction itself.
func (c *Cpu) Step(m *mem.Memory) (Op, error) {
	op, err := c.fetch(m.Read(c.Pc))
	if err != nil {
		return 0, err
	}
	Opcodes[op].Instruction(c)
	return op, nil
}

// Interpret executes instructions from the current Pc until a terminal
// opcode completes, returning the executed sequence: a dynamic basic block.
// The caller must ensure !c.Halt.
//
// BACK7 below pc 6 is left to wrap on uint32; the JIT performs the identical
// subtraction, which is all the ISA asks for there.
func (c *Cpu) Interpret(m *mem.Memory) ([]Op, error) {
	var dbb []Op
	for {
		op, err := c.Step(m)
		if err != nil {
			return nil, err
		}
		dbb = append(dbb, op)
		if Opcodes[op].Terminal {
			return dbb, nil
		}
	}
}
