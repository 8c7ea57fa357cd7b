// Package jit turns dynamic basic blocks into callable native functions:
// the translator lowers a block to SSA IR, and a host backend lowers the
// verified IR to machine code (or, where no native backend is registered,
// to an equivalent Go closure).

package jit

import (
	"fmt"
	"unsafe"

	"ember/cpu"
	"ember/ir"
)

// The offsets baked into emitted code. These mirror cpu.Cpu's layout; the
// struct is a published binary interface and must never drift from them.
const (
	offAcc  = 0
	offLc   = 4
	offPc   = 8
	offHalt = 12

	cpuSize = 16 // with trailing padding after the halt byte
)

// checkLayout compares the baked offsets against the live cpu.Cpu layout.
func checkLayout() error {
	var c cpu.Cpu
	for _, f := range []struct {
		name  string
		field int64
		want  uintptr
		got   uintptr
	}{
		{"acc", ir.FieldAcc, offAcc, unsafe.Offsetof(c.Acc)},
		{"lc", ir.FieldLc, offLc, unsafe.Offsetof(c.Lc)},
		{"pc", ir.FieldPc, offPc, unsafe.Offsetof(c.Pc)},
		{"halt", ir.FieldHalt, offHalt, unsafe.Offsetof(c.Halt)},
	} {
		if f.want != f.got {
			return fmt.Errorf("cpu layout drift: %s at offset %d, emitted code expects %d", f.name, f.got, f.want)
		}
		if int32(f.want) != fieldOffset(f.field) {
			return fmt.Errorf("cpu layout drift: %s maps to offset %d", f.name, fieldOffset(f.field))
		}
	}
	if unsafe.Sizeof(c) != cpuSize {
		return fmt.Errorf("cpu layout drift: struct size %d, emitted code expects %d", unsafe.Sizeof(c), cpuSize)
	}
	return nil
}

func init() {
	if err := checkLayout(); err != nil {
		panic(err)
	}
}

// fieldOffset maps an IR field index to its struct offset.
func fieldOffset(field int64) int32 {
	switch field {
	case ir.FieldAcc:
		return offAcc
	case ir.FieldLc:
		return offLc
	case ir.FieldPc:
		return offPc
	case ir.FieldHalt:
		return offHalt
	}
	panic(fmt.Sprintf("no such cpu field: %d", field))
}
