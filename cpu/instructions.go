package cpu

// One method per mnemonic. Signed arithmetic on Acc/Lc wraps (int32
// overflow in Go is two's-complement), and Pc arithmetic is uint32; the JIT
// lowers the same widths, which is what keeps the two paths bit-identical.

// HALT - stop the machine
func (c *Cpu) HALT() {
	c.Halt = true
	c.Pc++
}

// CLRA - clear accumulator
func (c *Cpu) CLRA() {
	c.Acc = 0
	c.Pc++
}

// INC3A - add 3 to accumulator
func (c *Cpu) INC3A() {
	c.Acc += 3
	c.Pc++
}

// DECA - decrement accumulator
func (c *Cpu) DECA() {
	c.Acc--
	c.Pc++
}

// SETL - copy accumulator into loop counter
func (c *Cpu) SETL() {
	c.Lc = c.Acc
	c.Pc++
}

// BACK7 - decrement loop counter and branch back while positive. Pc still
// points at the BACK7 byte here, so -6 lands 7 bytes before the fall-through
// address, hence the name.
func (c *Cpu) BACK7() {
	c.Lc--
	if c.Lc > 0 {
		c.Pc -= 6 // unchecked; wraps below pc 6
	} else {
		c.Pc++
	}
}
