// Package progress renders the per-provider scan progress on a TTY while
// the parser workers run. It stays silent for JSON output, uploads, and
// non-interactive terminals.
package progress

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Enabled reports whether a progress display makes sense: stderr must be an
// interactive terminal.
func Enabled() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

type fileMsg struct {
	provider string
	done     int
	total    int
}

type doneMsg struct{}

type model struct {
	order  []string
	counts map[string]fileMsg
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fileMsg:
		if _, ok := m.counts[msg.provider]; !ok {
			m.order = append(m.order, msg.provider)
			sort.Strings(m.order)
		}
		m.counts[msg.provider] = msg
		return m, nil
	case doneMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	countStyle = lipgloss.NewStyle().Faint(true)
)

func (m model) View() string {
	var b strings.Builder
	for _, name := range m.order {
		c := m.counts[name]
		fmt.Fprintf(&b, "%s %s\n",
			labelStyle.Render("scanning "+name),
			countStyle.Render(fmt.Sprintf("%d/%d files", c.done, c.total)))
	}
	return b.String()
}

// Tracker feeds scan counts into the display. A nil Tracker is a no-op, so
// callers never branch on whether progress is active.
type Tracker struct {
	prog *tea.Program
	wg   sync.WaitGroup
}

// Start launches the display goroutine.
func Start() *Tracker {
	t := &Tracker{}
	t.prog = tea.NewProgram(
		model{counts: map[string]fileMsg{}},
		tea.WithOutput(os.Stderr),
		tea.WithoutSignalHandler(),
	)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_, _ = t.prog.Run()
	}()
	return t
}

// FileDone reports one parsed file. Safe from any worker goroutine.
func (t *Tracker) FileDone(provider string, done, total int) {
	if t == nil {
		return
	}
	t.prog.Send(fileMsg{provider: provider, done: done, total: total})
}

// Stop tears the display down and waits for the terminal to be restored.
func (t *Tracker) Stop() {
	if t == nil {
		return
	}
	t.prog.Send(doneMsg{})
	t.wg.Wait()
}
