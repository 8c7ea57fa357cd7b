package ir

import "fmt"

// Verify checks a function's structural invariants before a backend is
// allowed to lower it: block termination, phi shape, operand types, and
// def-before-use in layout order (layout order must topologically order the
// CFG, which built-in-construction-order functions satisfy).
func Verify(f *Func) error {
	if len(f.Blocks) == 0 {
		return fmt.Errorf("verify %s: function has no blocks", f.Name)
	}

	inFunc := map[*Block]bool{}
	for _, b := range f.Blocks {
		inFunc[b] = true
	}

	defined := map[*Value]bool{}
	var phis []*Value // checked after all defs are known

	for bi, b := range f.Blocks {
		if len(b.Instrs) == 0 {
			return fmt.Errorf("verify %s: block %s is empty", f.Name, b.Name)
		}
		if b.Terminator() == nil {
			return fmt.Errorf("verify %s: block %s does not end in a terminator", f.Name, b.Name)
		}

		phiRun := true
		for ii, v := range b.Instrs {
			if v.Op.IsTerminator() && ii != len(b.Instrs)-1 {
				return fmt.Errorf("verify %s: %s has a terminator before its end (v%d)", f.Name, b.Name, v.ID)
			}

			switch v.Op {
			case OpPhi:
				if !phiRun {
					return fmt.Errorf("verify %s: phi v%d not at head of %s", f.Name, v.ID, b.Name)
				}
				if len(v.Args) == 0 || len(v.Args) != len(b.Preds) {
					return fmt.Errorf("verify %s: phi v%d has %d incoming for %d preds",
						f.Name, v.ID, len(v.Args), len(b.Preds))
				}
				phis = append(phis, v)
			case OpParam:
				phiRun = false
				if bi != 0 {
					return fmt.Errorf("verify %s: param v%d outside the entry block", f.Name, v.ID)
				}
			case OpFieldAddr:
				phiRun = false
				if v.Aux < 0 || v.Aux >= NumFields {
					return fmt.Errorf("verify %s: fieldaddr v%d has field index %d", f.Name, v.ID, v.Aux)
				}
				if v.Args[0].Op != OpParam {
					return fmt.Errorf("verify %s: fieldaddr v%d not derived from the param", f.Name, v.ID)
				}
			case OpLoad:
				phiRun = false
				if v.Args[0].Op != OpFieldAddr {
					return fmt.Errorf("verify %s: load v%d from a non-field address", f.Name, v.ID)
				}
				if v.Type != FieldType(v.Args[0].Aux) {
					return fmt.Errorf("verify %s: load v%d type %s does not match its field", f.Name, v.ID, v.Type)
				}
			case OpStore:
				phiRun = false
				if v.Args[0].Op != OpFieldAddr {
					return fmt.Errorf("verify %s: store v%d to a non-field address", f.Name, v.ID)
				}
				if v.Args[1].Type != FieldType(v.Args[0].Aux) {
					return fmt.Errorf("verify %s: store v%d value type %s does not match its field",
						f.Name, v.ID, v.Args[1].Type)
				}
			case OpIadd, OpIsub:
				phiRun = false
				if v.Args[0].Type != v.Args[1].Type || v.Args[0].Type != v.Type {
					return fmt.Errorf("verify %s: v%d operand types disagree", f.Name, v.ID)
				}
			case OpIcmpSgt:
				phiRun = false
				if v.Args[0].Type != I32 || v.Args[1].Type != I32 {
					return fmt.Errorf("verify %s: icmp v%d on non-i32 operands", f.Name, v.ID)
				}
			case OpBrnz:
				phiRun = false
				if v.Args[0].Type != I8 {
					return fmt.Errorf("verify %s: brnz v%d condition is not i8", f.Name, v.ID)
				}
			default:
				phiRun = false
			}

			for _, t := range v.Targets {
				if !inFunc[t] {
					return fmt.Errorf("verify %s: v%d targets a block outside the function", f.Name, v.ID)
				}
			}
			if v.Op != OpPhi { // phi incomings come from preds, checked below
				for _, a := range v.Args {
					if !defined[a] {
						return fmt.Errorf("verify %s: v%d uses v%d before its definition", f.Name, v.ID, a.ID)
					}
				}
			}
			defined[v] = true
		}
	}

	for _, v := range phis {
		for _, a := range v.Args {
			if !defined[a] {
				return fmt.Errorf("verify %s: phi v%d uses undefined v%d", f.Name, v.ID, a.ID)
			}
		}
	}

	// predecessor lists must agree with the branches that feed them
	predCount := map[*Block]int{}
	for _, b := range f.Blocks {
		for _, t := range b.Terminator().Targets {
			predCount[t]++
		}
	}
	for _, b := range f.Blocks {
		if predCount[b] != len(b.Preds) {
			return fmt.Errorf("verify %s: block %s has %d preds recorded, %d branches in",
				f.Name, b.Name, len(b.Preds), predCount[b])
		}
	}

	return nil
}
