// Package ir is a small target-independent SSA IR with explicit structured
// control flow: enough to express a straight-line block of register updates
// plus the one conditional diamond the ISA's loop branch needs.
//
// The shape follows the usual SSA conventions (every value defined once,
// blocks ending in exactly one terminator, phis merging predecessor values):
// https://en.wikipedia.org/wiki/Static_single-assignment_form
package ir

import "fmt"

// A Type is the width class of a value. I32 covers both signednesses, as
// usual for a typed-but-signless IR; the ops define the semantics.
type Type uint8

const (
	TypeInvalid Type = iota
	I8               // the halt flag
	I32              // acc, lc, pc
	Ptr              // the cpu pointer and field addresses
)

func (t Type) String() string {
	switch t {
	case I8:
		return "i8"
	case I32:
		return "i32"
	case Ptr:
		return "ptr"
	}
	return "invalid"
}

// CPU struct member indices, the only addressable storage in this IR. The
// backends turn these into concrete offsets; the jit package asserts those
// offsets against the live layout.
const (
	FieldAcc = iota
	FieldLc
	FieldPc
	FieldHalt
	NumFields
)

// FieldType returns the width class of a CPU member.
func FieldType(field int64) Type {
	if field == FieldHalt {
		return I8
	}
	return I32
}

type Op uint8

const (
	OpInvalid   Op = iota
	OpParam        // the function's cpu pointer argument
	OpFieldAddr    // member address; Aux = field index, Args[0] = param
	OpLoad         // Args[0] = field address
	OpStore        // Args[0] = field address, Args[1] = value
	OpIconst       // Aux = constant
	OpIadd         // Args[0] + Args[1], two's-complement wrap
	OpIsub         // Args[0] - Args[1], two's-complement wrap
	OpIcmpSgt      // signed Args[0] > Args[1], yields 0 or 1
	OpPhi          // Args = one incoming per predecessor, in Preds order
	OpJump         // Targets[0]
	OpBrnz         // Args[0] != 0 ? Targets[0] : Targets[1]
	OpReturn
)

var opNames = [...]string{
	OpInvalid: "invalid", OpParam: "param", OpFieldAddr: "fieldaddr",
	OpLoad: "load", OpStore: "store", OpIconst: "iconst", OpIadd: "iadd",
	OpIsub: "isub", OpIcmpSgt: "icmp_sgt", OpPhi: "phi", OpJump: "jump",
	OpBrnz: "brnz", OpReturn: "return",
}

func (o Op) String() string { return opNames[o] }

// IsTerminator reports whether the op ends a block.
func (o Op) IsTerminator() bool {
	return o == OpJump || o == OpBrnz || o == OpReturn
}

// A Value is one SSA instruction and, when it produces something, the thing
// it produces.
type Value struct {
	ID      int
	Op      Op
	Type    Type // TypeInvalid for instructions with no result
	Aux     int64
	Args    []*Value
	Targets []*Block // branch targets, terminators only
}

func (v *Value) String() string {
	s := fmt.Sprintf("v%d = %s", v.ID, v.Op)
	if v.Op == OpIconst || v.Op == OpFieldAddr {
		s += fmt.Sprintf(" %d", v.Aux)
	}
	for _, a := range v.Args {
		s += fmt.Sprintf(" v%d", a.ID)
	}
	for _, t := range v.Targets {
		s += " " + t.Name
	}
	return s
}

// A Block is a sequence of instructions ending in one terminator.
type Block struct {
	Name   string
	Instrs []*Value
	Preds  []*Block
}

// Terminator returns the block's final instruction, or nil while under
// construction.
func (b *Block) Terminator() *Value {
	if len(b.Instrs) == 0 {
		return nil
	}
	if v := b.Instrs[len(b.Instrs)-1]; v.Op.IsTerminator() {
		return v
	}
	return nil
}

// A Func is a single void function over one cpu pointer. Blocks[0] is the
// entry; block layout order is expected to topologically order the CFG,
// which the builder's append-as-you-go construction gives for free.
type Func struct {
	Name   string
	Blocks []*Block

	nextID int
}

func NewFunc(name string) *Func { return &Func{Name: name} }

// NewBlock appends an empty block to the function.
func (f *Func) NewBlock(name string) *Block {
	b := &Block{Name: name}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NumValues returns an upper bound on the value IDs in f; backends size
// their per-value state with it.
func (f *Func) NumValues() int { return f.nextID }

func (f *Func) String() string {
	s := "func " + f.Name + ":\n"
	for _, b := range f.Blocks {
		s += b.Name + ":\n"
		for _, v := range b.Instrs {
			s += "  " + v.String() + "\n"
		}
	}
	return s
}

// A Builder appends instructions to a cursor block. It is plain state meant
// to be passed around explicitly by whoever drives the lowering.
type Builder struct {
	Func *Func
	cur  *Block
}

func NewBuilder(f *Func) *Builder { return &Builder{Func: f} }

// SetBlock positions the builder at the end of blk.
func (b *Builder) SetBlock(blk *Block) { b.cur = blk }

// Block returns the cursor block.
func (b *Builder) Block() *Block { return b.cur }

func (b *Builder) emit(v *Value) *Value {
	v.ID = b.Func.nextID
	b.Func.nextID++
	b.cur.Instrs = append(b.cur.Instrs, v)
	return v
}

// Param materializes the function's cpu pointer argument.
func (b *Builder) Param() *Value {
	return b.emit(&Value{Op: OpParam, Type: Ptr})
}

// FieldAddr derives the address of a CPU member from the param.
func (b *Builder) FieldAddr(param *Value, field int64) *Value {
	return b.emit(&Value{Op: OpFieldAddr, Type: Ptr, Aux: field, Args: []*Value{param}})
}

// Load reads a CPU member through its field address.
func (b *Builder) Load(addr *Value) *Value {
	return b.emit(&Value{Op: OpLoad, Type: FieldType(addr.Aux), Args: []*Value{addr}})
}

// Store writes v to a CPU member through its field address.
func (b *Builder) Store(addr, v *Value) *Value {
	return b.emit(&Value{Op: OpStore, Args: []*Value{addr, v}})
}

// Iconst materializes a constant of the given type.
func (b *Builder) Iconst(t Type, c int64) *Value {
	return b.emit(&Value{Op: OpIconst, Type: t, Aux: c})
}

func (b *Builder) Iadd(x, y *Value) *Value {
	return b.emit(&Value{Op: OpIadd, Type: x.Type, Args: []*Value{x, y}})
}

func (b *Builder) Isub(x, y *Value) *Value {
	return b.emit(&Value{Op: OpIsub, Type: x.Type, Args: []*Value{x, y}})
}

func (b *Builder) IcmpSgt(x, y *Value) *Value {
	return b.emit(&Value{Op: OpIcmpSgt, Type: I8, Args: []*Value{x, y}})
}

// Phi merges one incoming value per predecessor, in Preds order.
func (b *Builder) Phi(t Type, incoming ...*Value) *Value {
	return b.emit(&Value{Op: OpPhi, Type: t, Args: incoming})
}

// Jump ends the cursor block with an unconditional branch.
func (b *Builder) Jump(target *Block) *Value {
	target.Preds = append(target.Preds, b.cur)
	return b.emit(&Value{Op: OpJump, Targets: []*Block{target}})
}

// Brnz ends the cursor block, branching to nonzero when cond != 0.
func (b *Builder) Brnz(cond *Value, nonzero, zero *Block) *Value {
	nonzero.Preds = append(nonzero.Preds, b.cur)
	zero.Preds = append(zero.Preds, b.cur)
	return b.emit(&Value{Op: OpBrnz, Args: []*Value{cond}, Targets: []*Block{nonzero, zero}})
}

// Return ends the cursor block.
func (b *Builder) Return() *Value {
	return b.emit(&Value{Op: OpReturn})
}
