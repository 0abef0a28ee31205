package update

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gurin-alexey/pulse-app-sub001/internal/commands"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	default:
		if msg.Type == tea.KeyRunes {
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			m.Palette.Input = m.commandInput.Value()
			return m, nil
		}
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		m.Palette.Input = m.commandInput.Value()
		return m, cmd
	}
}

func (m *Model) closePalette() {
	m.Palette = CommandPaletteState{}
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) executePaletteCommand() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		return m.fail(err), nil
	}
	master, occ, err := m.selectedMaster()
	if err != nil {
		return m.fail(err), nil
	}
	date := occ.Date

	res, err := commands.Execute(cmd, commands.Handlers{
		Edit: func(a commands.EditArgs) (commands.Result, error) {
			patch, err := a.Patch()
			if err != nil {
				return commands.Result{}, err
			}
			out, err := m.backend.Edit(m.ctx, series.Request{Task: &master, Date: &date, Mode: a.Mode, Patch: patch})
			if err != nil {
				return commands.Result{}, err
			}
			m.rememberMode(a.Mode)
			return commands.Result{Message: withWarnings(describe("edited", out), out)}, nil
		},
		Delete: func(a commands.DeleteArgs) (commands.Result, error) {
			out, err := m.backend.Delete(m.ctx, series.Request{Task: &master, Date: &date, Mode: a.Mode})
			if err != nil {
				return commands.Result{}, err
			}
			m.rememberMode(a.Mode)
			return commands.Result{Message: withWarnings(describe("deleted", out), out)}, nil
		},
		Detach: func() (commands.Result, error) {
			out, err := m.backend.Detach(m.ctx, &master, date)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: withWarnings(describe("detached", out), out)}, nil
		},
		Done: func() (commands.Result, error) {
			out, err := m.backend.Complete(m.ctx, &master, date)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: withWarnings(fmt.Sprintf("completed %s on %s", master.Title, date), out)}, nil
		},
		Skip: func() (commands.Result, error) {
			out, err := m.backend.Skip(m.ctx, &master, date)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: withWarnings(fmt.Sprintf("skipped %s on %s", master.Title, date), out)}, nil
		},
		Restore: func() (commands.Result, error) {
			if _, err := m.backend.Restore(m.ctx, &master, date); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("restored %s on %s", master.Title, date)}, nil
		},
	})
	if err != nil {
		return m.fail(err), nil
	}
	m.Status = StatusBar{Text: res.Message}
	m.Loading = true
	return m, m.loadCmd()
}

func (m *Model) rememberMode(mode series.Mode) {
	if m.State.LastMode == mode {
		return
	}
	m.State.LastMode = mode
	m.persistState()
}

func describe(verb string, out series.Outcome) string {
	parts := []string{fmt.Sprintf("%s (%s)", verb, out.Mode)}
	if out.Created != nil {
		parts = append(parts, "new task "+out.Created.ID)
	}
	if out.MovedOverrides > 0 {
		parts = append(parts, fmt.Sprintf("%d status(es) moved", out.MovedOverrides))
	}
	return strings.Join(parts, ", ")
}
