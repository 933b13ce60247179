// Package viz renders live solver progress in the terminal.
package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/trajopt/internal/solver"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// IterMsg carries one committed iterate into the UI.
type IterMsg solver.Iteration

// DoneMsg signals solve termination.
type DoneMsg struct {
	Status solver.Status
}

// Model is the bubbletea model for a live solve view. The solver feeds it
// through the observer returned by Observer; Finish delivers the final status.
type Model struct {
	name    string
	ch      chan tea.Msg
	costs   []float64
	last    solver.Iteration
	status  *solver.Status
	samples int
}

func NewModel(name string) *Model {
	return &Model{name: name, ch: make(chan tea.Msg, 64)}
}

// Observer adapts the model to the solver's observer interface.
func (m *Model) Observer() solver.Observer { return chanObserver{ch: m.ch} }

// Finish must be called by the driving goroutine once the solve returns.
func (m *Model) Finish(status solver.Status) {
	m.ch <- DoneMsg{Status: status}
}

type chanObserver struct {
	ch chan tea.Msg
}

func (o chanObserver) OnIteration(it solver.Iteration) {
	select {
	case o.ch <- IterMsg(it):
	default:
	}
}

func (m *Model) Init() tea.Cmd {
	return m.wait()
}

func (m *Model) wait() tea.Cmd {
	return func() tea.Msg {
		return <-m.ch
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case IterMsg:
		m.last = solver.Iteration(msg)
		m.costs = append(m.costs, m.last.Cost)
		m.samples++
		return m, m.wait()
	case DoneMsg:
		s := msg.Status
		m.status = &s
		return m, nil
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("trajopt solve: " + m.name))
	b.WriteString("\n")

	rows := [][2]string{
		{"iteration", fmt.Sprintf("%d", m.last.Index)},
		{"outer", fmt.Sprintf("%d", m.last.Outer)},
		{"cost", fmt.Sprintf("%.6f", m.last.Cost)},
		{"c_max", fmt.Sprintf("%.3e", m.last.CMax)},
		{"rho", fmt.Sprintf("%.2e", m.last.Rho)},
		{"alpha", fmt.Sprintf("%.4f", m.last.Alpha)},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(valueStyle.Render(r[1]))
		b.WriteString("\n")
	}

	if len(m.costs) > 1 {
		data := m.costs
		if len(data) > 120 {
			data = data[len(data)-120:]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(70),
			asciigraph.Caption("cost"),
		)
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	if m.status != nil {
		b.WriteString(doneStyle.Render("finished: " + m.status.String()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("q to quit"))
	return b.String()
}
