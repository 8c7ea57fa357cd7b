package cpu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"ember/mem"
)

type model struct {
	cpu     *Cpu
	mem     *mem.Memory
	program []byte

	prevPC uint32
	err    error
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (m model) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return m, tea.Quit

		case " ", "j":
			if m.cpu.Halt {
				return m, tea.Quit
			}
			m.prevPC = m.cpu.Pc
			if _, err := m.cpu.Step(m.mem); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// renderRow renders 16 bytes of memory as a line. The current PC is
// highlighted.
func (m model) renderRow(start uint32) string {
	s := fmt.Sprintf("%04x | ", start)
	for i := uint32(0); i < 16; i++ {
		b := m.mem.Read(start + i)
		if start+i == m.cpu.Pc {
			s += fmt.Sprintf("[%02x] ", b)
		} else {
			s += fmt.Sprintf(" %02x  ", b)
		}
	}
	return s
}

func (m model) status() string {
	return fmt.Sprintf(`
 PC: %d (%d)
ACC: %d
 LC: %d
HLT: %t
`,
		m.cpu.Pc,
		m.prevPC,
		m.cpu.Acc,
		m.cpu.Lc,
		m.cpu.Halt,
	)
}

func (m model) memTable() string {
	header := "addr | "
	for b := 0; b < 16; b++ {
		header += fmt.Sprintf("  %01x  ", b)
	}

	rows := []string{header}

	// the row under the PC, plus the rows around the program start
	base := m.cpu.Pc &^ 0xf
	offsets := []uint32{base, 0, 16, 32, 48, 64}
	seen := map[uint32]bool{}
	for _, i := range offsets {
		if seen[i] {
			continue
		}
		seen[i] = true
		rows = append(rows, m.renderRow(i))
	}
	return strings.Join(rows, "\n")
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (m model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.memTable(),
			m.status(),
		),
		"",
		spew.Sdump(Opcodes[Op(m.mem.Read(m.cpu.Pc))]),
	)
}

// Debug loads program at offset 0 with the given initial registers, then
// starts an interactive TUI. Space or j steps one instruction, q quits.
func Debug(program []byte, acc, lc int32) error {
	memory := &mem.Memory{}
	if err := memory.WriteChunk(program); err != nil {
		return err
	}
	c := &Cpu{Acc: acc, Lc: lc}
	res, err := tea.NewProgram(model{cpu: c, mem: memory, program: program}).Run()
	if err != nil {
		return err
	}
	if m := res.(model); m.err != nil {
		return m.err
	}
	return nil
}
