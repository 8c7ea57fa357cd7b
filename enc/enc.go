// Package enc provides byte-packing helpers for x86-64 instruction
// encoding: ModRM/SIB field assembly and little-endian immediates.
//
// Field layout reference: Intel SDM Vol. 2, ch. 2 ("Instruction Format").

package enc

// ModRM packs the mod (2 bits), reg (3 bits) and rm (3 bits) fields.
// Extension bits beyond those widths belong in a REX prefix, so arguments
// out of range panic rather than silently alias another register.
func ModRM(mod, reg, rm byte) byte {
	checkField(mod, 3)
	checkField(reg, 7)
	checkField(rm, 7)
	return mod<<6 | reg<<3 | rm
}

// SIB packs the scale (2 bits), index (3 bits) and base (3 bits) fields.
func SIB(scale, index, base byte) byte {
	checkField(scale, 3)
	checkField(index, 7)
	checkField(base, 7)
	return scale<<6 | index<<3 | base
}

func checkField(v, max byte) {
	if v > max {
		panic("encoding field out of range")
	}
}

// AppendU32 appends v in little-endian order.
func AppendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// AppendU64 appends v in little-endian order.
func AppendU64(b []byte, v uint64) []byte {
	b = AppendU32(b, uint32(v))
	return AppendU32(b, uint32(v>>32))
}

// PutU32 overwrites b[off:off+4] with v in little-endian order; used to
// patch branch displacements after their targets are placed.
func PutU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// FitsInt8 reports whether v survives a round trip through a disp8.
func FitsInt8(v int32) bool { return v == int32(int8(v)) }
