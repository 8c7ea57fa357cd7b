//go:build amd64 && (linux || darwin)

package jit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// An execMapping is an anonymous executable mapping holding one compiled
// block. Pages stay mapped until the owning host closes.
type execMapping struct {
	buf []byte
}

// allocExec copies code into fresh executable pages.
func allocExec(code []byte) (*execMapping, error) {
	buf, err := unix.Mmap(-1, 0, len(code),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap executable pages: %w", err)
	}
	copy(buf, code)
	return &execMapping{buf: buf}, nil
}

func (m *execMapping) close() error {
	if m.buf == nil {
		return nil
	}
	err := unix.Munmap(m.buf)
	m.buf = nil
	return err
}
