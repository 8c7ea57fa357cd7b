package jit

import (
	"fmt"
	"runtime"

	"ember/cpu"
	"ember/ir"
)

// A CompiledFunc mutates the register file exactly as interpreting its
// source block once would, including the loop branch's conditional PC
// update. On the native backend it wraps a raw code pointer behind a
// trampoline with the pointer-argument ABI; on the portable backend it is
// the function itself.
type CompiledFunc func(*cpu.Cpu)

// A backend lowers verified IR into an executable unit.
type backend interface {
	name() string
	compile(f *ir.Func) (unit, error)
}

// A unit is one compiled function plus whatever backing resources keep it
// callable. Units live until their host closes.
type unit interface {
	fn() CompiledFunc
	release() error
}

// nativeArch describes a native code generator for one GOARCH/GOOS pair,
// registered by the build-tagged backend files.
type nativeArch struct {
	arch, os string
	make     func() (backend, error)
}

var supportedNativeArchs []nativeArch

func nativeBackend() (backend, bool) {
	for _, na := range supportedNativeArchs {
		if na.arch == runtime.GOARCH && na.os == runtime.GOOS {
			be, err := na.make()
			if err != nil {
				continue
			}
			return be, true
		}
	}
	return nil, false
}

// A Host owns a backend, every unit it has compiled, and a symbol table
// mapping emitted function names to callables. It is single-threaded and
// scoped to one driver loop.
type Host struct {
	be      backend
	units   []unit
	symbols map[string]CompiledFunc
}

// NewHost picks the native backend for the running platform when one is
// registered, and the portable backend otherwise.
func NewHost() *Host {
	if be, ok := nativeBackend(); ok {
		return &Host{be: be, symbols: map[string]CompiledFunc{}}
	}
	return NewPortableHost()
}

// NewPortableHost forces the portable backend regardless of platform.
func NewPortableHost() *Host {
	return &Host{be: portableBackend{}, symbols: map[string]CompiledFunc{}}
}

// Backend names the active backend, for logs and tests.
func (h *Host) Backend() string { return h.be.name() }

// Compile lowers a verified function and installs it in the symbol table
// under its own name, replacing any previous holder of that name.
func (h *Host) Compile(f *ir.Func) (CompiledFunc, error) {
	u, err := h.be.compile(f)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", h.be.name(), err)
	}
	h.units = append(h.units, u)
	h.symbols[f.Name] = u.fn()
	return u.fn(), nil
}

// Lookup resolves a symbol installed by Compile or InstallSymbol.
func (h *Host) Lookup(name string) (CompiledFunc, error) {
	fn, ok := h.symbols[name]
	if !ok {
		return nil, fmt.Errorf("jit: no such symbol %q", name)
	}
	return fn, nil
}

// InstallSymbol maps name to a host-side function, e.g. a debug callback.
func (h *Host) InstallSymbol(name string, fn CompiledFunc) {
	h.symbols[name] = fn
}

// Close releases every compiled unit. The host must not be used after.
func (h *Host) Close() error {
	var first error
	for _, u := range h.units {
		if err := u.release(); err != nil && first == nil {
			first = err
		}
	}
	h.units = nil
	h.symbols = nil
	return first
}

// A Translator compiles dynamic basic blocks against one host.
type Translator struct {
	host *Host
}

func NewTranslator(h *Host) *Translator { return &Translator{host: h} }

// Compile translates a block, verifies the result, lowers it, and resolves
// the emitted symbol. Any failure leaves the caller free to keep
// interpreting; nothing is left half-installed.
func (t *Translator) Compile(dbb []cpu.Op) (CompiledFunc, error) {
	f, err := Translate(dbb)
	if err != nil {
		return nil, err
	}
	if err := ir.Verify(f); err != nil {
		return nil, fmt.Errorf("ir verification failed: %w", err)
	}
	if _, err := t.host.Compile(f); err != nil {
		return nil, err
	}
	return t.host.Lookup(FuncName)
}
