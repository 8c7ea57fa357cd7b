package enc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModRM(t *testing.T) {
	// mod=11 reg=001 rm=000: add eax, ecx operand byte
	assert.Equal(t, byte(0xc8), ModRM(0b11, 1, 0))
	// mod=01 reg=000 rm=111: [rdi+disp8]
	assert.Equal(t, byte(0x47), ModRM(0b01, 0, 0b111))
	// mod=10 reg=000 rm=011: [r11+disp32] (REX.B supplies the high bit)
	assert.Equal(t, byte(0x83), ModRM(0b10, 0, 0b011))

	assert.Panics(t, func() { ModRM(4, 0, 0) })
	assert.Panics(t, func() { ModRM(0, 8, 0) })
	assert.Panics(t, func() { ModRM(0, 0, 8) })
}

func TestSIB(t *testing.T) {
	// scale=00 index=100 (none) base=100 (rsp)
	assert.Equal(t, byte(0x24), SIB(0, 0b100, 0b100))
	assert.Panics(t, func() { SIB(4, 0, 0) })
}

func TestAppend(t *testing.T) {
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, AppendU32(nil, 0x12345678))
	assert.Equal(t,
		[]byte{0xef, 0xcd, 0xab, 0x89, 0x67, 0x45, 0x23, 0x01},
		AppendU64(nil, 0x0123456789abcdef))
}

func TestPutU32(t *testing.T) {
	b := []byte{0, 0xff, 0xff, 0xff, 0xff, 0}
	PutU32(b, 1, 0x11223344)
	assert.Equal(t, []byte{0, 0x44, 0x33, 0x22, 0x11, 0}, b)
}

func TestFitsInt8(t *testing.T) {
	assert.True(t, FitsInt8(0))
	assert.True(t, FitsInt8(127))
	assert.True(t, FitsInt8(-128))
	assert.False(t, FitsInt8(128))
	assert.False(t, FitsInt8(-129))
}
