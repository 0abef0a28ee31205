package update

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gurin-alexey/pulse-app-sub001/internal/views"
)

func (m Model) Init() tea.Cmd {
	load := m.loadCmd()
	if m.Scheduler != nil {
		return tea.Batch(load, waitForReminderCmd(m.Scheduler.C()))
	}
	return load
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		return m.handleAgendaKey(typed)
	case WindowLoadedMsg:
		m.Loading = false
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			return m, nil
		}
		m.applyWindow(typed.Window)
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	case ReminderDueMsg:
		m.ReminderLog = append(m.ReminderLog, typed.Reminder)
		if len(m.ReminderLog) > 20 {
			m.ReminderLog = m.ReminderLog[len(m.ReminderLog)-20:]
		}
		m.Status = StatusBar{Text: reminderText(typed.Reminder, m.backend.Location())}
		if m.Scheduler != nil {
			return m, waitForReminderCmd(m.Scheduler.C())
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleAgendaKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.HelpVisible = !m.HelpVisible
		m.helpModel.ShowAll = m.HelpVisible
		return m, nil
	case key.Matches(msg, m.keys.Palette):
		m.Palette = CommandPaletteState{Active: true}
		m.commandInput.SetValue("")
		m.commandInput.Focus()
		m.Status = StatusBar{Text: "command palette active"}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.Cursor < len(m.Occurrences)-1 {
			m.Cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		return m.focusOn(m.State.FocusDate.AddDays(-7))
	case key.Matches(msg, m.keys.Next):
		return m.focusOn(m.State.FocusDate.AddDays(7))
	case key.Matches(msg, m.keys.Today):
		return m.focusOn(m.backend.Today())
	case key.Matches(msg, m.keys.Reload):
		m.Loading = true
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Complete):
		return m.runAction(actionComplete)
	case key.Matches(msg, m.keys.Skip):
		return m.runAction(actionSkip)
	case key.Matches(msg, m.keys.Restore):
		return m.runAction(actionRestore)
	}
	return m, nil
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	status := ""
	if m.Status.Text != "" {
		status = "status: " + m.Status.Text
	}

	left := views.RenderAgendaPanel(m.agendaPanelData())
	right := views.RenderDetail(m.detailData()) +
		views.RenderCommandPalette(m.Palette.Active, m.commandInput.Value()) +
		m.renderHelpIfVisible()

	notification := ""
	if len(m.ReminderLog) > 0 {
		notification = "last reminder: " + reminderText(m.ReminderLog[len(m.ReminderLog)-1], m.backend.Location())
	}

	header := fmt.Sprintf("pulse | %s .. %s | %d occurrence(s)", m.Start, m.End, len(m.Occurrences))
	if m.State.LastMode.IsValid() {
		header += " | last mode: " + m.State.LastMode.String()
	}
	if m.Loading {
		header += " | loading"
	}
	return views.RenderApp(views.AppData{
		Header:       header,
		LeftPane:     left,
		RightPane:    strings.TrimRight(right, "\n"),
		StatusLine:   status,
		StatusError:  m.Status.IsError,
		Notification: notification,
		Footer:       m.helpModel.ShortHelpView(m.keys.ShortHelp()),
	})
}
