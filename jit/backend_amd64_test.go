//go:build amd64 && (linux || darwin)

package jit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/cpu"
)

func TestNativeBackendSelected(t *testing.T) {
	h := NewHost()
	defer h.Close()
	assert.Equal(t, "amd64", h.Backend())
}

func TestNativeEquivalence(t *testing.T) {
	h := NewHost()
	defer h.Close()
	require.Equal(t, "amd64", h.Backend())
	equivalenceSuite(t, h)
}

func TestNativeEquivalenceRandom(t *testing.T) {
	h := NewHost()
	defer h.Close()
	require.Equal(t, "amd64", h.Backend())

	r := rand.New(rand.NewSource(11))
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

// The native and portable backends must agree with each other as well as
// with the interpreter; running both over one block stream catches backend
// drift directly.
func TestBackendsAgree(t *testing.T) {
	native := NewHost()
	defer native.Close()
	portable := NewPortableHost()
	defer portable.Close()

	r := rand.New(rand.NewSource(13))
	for i := 0; i < 50; i++ {
		ops := randomBlock(r)
		start := cpu.Cpu{Acc: int32(r.Uint32()), Lc: int32(r.Intn(5)), Pc: 100}

		nfn, err := NewTranslator(native).Compile(ops)
		require.NoError(t, err)
		pfn, err := NewTranslator(portable).Compile(ops)
		require.NoError(t, err)

		a, b := start, start
		nfn(&a)
		pfn(&b)
		assert.Equal(t, b, a, "backends disagree on %v", ops)
	}
}
