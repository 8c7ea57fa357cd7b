// Package emu wires the interpreter, the translator and the code cache
// into the emulation engine's dispatch loop.

package emu

import (
	"fmt"
	"log"

	arc "github.com/hashicorp/golang-lru/arc/v2"

	"ember/cpu"
	"ember/jit"
	"ember/mem"
)

const (
	// CacheSize bounds the number of resident translation records.
	// Eviction is silent and safe: a re-miss re-interprets and
	// recompiles.
	CacheSize = 32

	// MaxExecutions is the hot threshold: a block compiles on the
	// encounter that brings its counter to this value, i.e. its second
	// visit. Blocks seen once never pay for compilation.
	MaxExecutions = 1
)

// A Program is an immutable byte image plus the two initial register
// values the loader applies.
type Program struct {
	Data       []byte
	InitialAcc int32
	InitialLc  int32
}

// A TranslationRecord is one code-cache entry: the discovered block, how
// many cache hits it has had since the miss that inserted it, and, once hot
// and successfully compiled,
// the native function. A nil Native with noCompile set means translation
// failed; the record stays interpreted until evicted.
type TranslationRecord struct {
	DBB     []cpu.Op
	Counter uint64
	Native  jit.CompiledFunc

	noCompile bool
}

// An Engine owns one register file and one memory image, and runs loaded
// programs to completion.
type Engine struct {
	Cpu cpu.Cpu
	Mem mem.Memory

	// InterpretOnly disables the translator entirely; every block is
	// interpreted on every visit. Final state must not change.
	InterpretOnly bool

	// Trace logs the register file and an eight-byte window at the PC
	// before every dispatch.
	Trace bool
}

// New constructs an engine with zeroed memory and registers.
func New() *Engine { return &Engine{} }

// LoadProgram sets the initial registers and writes the image to offset 0.
func (e *Engine) LoadProgram(p Program) error {
	if err := e.Mem.WriteChunk(p.Data); err != nil {
		return fmt.Errorf("loading program in memory: %w", err)
	}
	e.Cpu = cpu.Cpu{Acc: p.InitialAcc, Lc: p.InitialLc}
	return nil
}

func (e *Engine) traceState() {
	if !e.Trace {
		return
	}
	window := ""
	for i := uint32(0); i < 8 && e.Cpu.Pc+i < mem.Size; i++ {
		window += fmt.Sprintf("%#02x ", e.Mem.Read(e.Cpu.Pc+i))
	}
	log.Printf("[debug] :: %v | %s", &e.Cpu, window)
}

// MainLoop dispatches blocks until the machine halts. The JIT host, the
// translator and the code cache live exactly as long as this call.
func (e *Engine) MainLoop() error {
	host := jit.NewHost()
	defer host.Close()
	translator := jit.NewTranslator(host)

	cache, err := arc.NewARC[uint32, *TranslationRecord](CacheSize)
	if err != nil {
		return err
	}

	for !e.Cpu.Halt {
		pc := e.Cpu.Pc
		e.traceState()

		if e.InterpretOnly {
			if _, err := e.Cpu.Interpret(&e.Mem); err != nil {
				return err
			}
			continue
		}

		rec, ok := cache.Get(pc)
		if !ok {
			// cold: discover the block and remember it
			dbb, err := e.Cpu.Interpret(&e.Mem)
			if err != nil {
				return err
			}
			cache.Add(pc, &TranslationRecord{DBB: dbb})
			continue
		}

		rec.Counter++
		if rec.Counter >= MaxExecutions && rec.Native == nil && !rec.noCompile {
			fn, err := translator.Compile(rec.DBB)
			if err != nil {
				// recoverable: this record stays interpreted
				log.Printf("[warn] :: could not compile block at pc %#04x: %v", pc, err)
				rec.noCompile = true
			} else {
				rec.Native = fn
			}
		}

		if rec.Native != nil {
			rec.Native(&e.Cpu)
			continue
		}
		// hot but not compiled: the cached block stays authoritative,
		// the interpreted sequence is discarded
		if _, err := e.Cpu.Interpret(&e.Mem); err != nil {
			return err
		}
	}

	log.Printf("[info] :: %v", &e.Cpu)
	return nil
}
