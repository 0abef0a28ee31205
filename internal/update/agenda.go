package update

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
	"github.com/gurin-alexey/pulse-app-sub001/internal/views"
)

type action string

const (
	actionComplete action = "completed"
	actionSkip     action = "skipped"
	actionRestore  action = "restored"
)

func (m Model) loadCmd() tea.Cmd {
	backend, ctx := m.backend, m.ctx
	start, end := m.Start, m.End
	return func() tea.Msg {
		w, err := backend.Window(ctx, start, end)
		return WindowLoadedMsg{Window: w, Err: err}
	}
}

// focusOn moves the week to the one containing d and reloads it.
func (m Model) focusOn(d model.LocalDate) (tea.Model, tea.Cmd) {
	m.State.FocusDate = d
	m.Start, m.End = weekOf(d)
	m.Cursor = 0
	m.Loading = true
	m.persistState()
	return m, m.loadCmd()
}

// applyWindow swaps in a loaded window, keeping the cursor on the same
// occurrence when it is still visible.
func (m *Model) applyWindow(w series.Window) {
	if w.Start != m.Start || w.End != m.End {
		return
	}
	prev, hadPrev := m.Selected()
	m.Occurrences = w.Occurrences
	m.Warnings = w.Warnings
	m.Cursor = 0
	if hadPrev {
		for i, occ := range m.Occurrences {
			if occ.Key() == prev.Key() {
				m.Cursor = i
				break
			}
		}
	}
}

// selectedMaster loads the stored master of the selected occurrence.
func (m Model) selectedMaster() (model.Task, model.Occurrence, error) {
	occ, ok := m.Selected()
	if !ok {
		return model.Task{}, model.Occurrence{}, fmt.Errorf("no occurrence selected")
	}
	master, err := m.backend.Load(m.ctx, occ.MasterID)
	if err != nil {
		return model.Task{}, occ, err
	}
	return master, occ, nil
}

func (m Model) runAction(a action) (tea.Model, tea.Cmd) {
	master, occ, err := m.selectedMaster()
	if err != nil {
		return m.fail(err), nil
	}
	var out series.Outcome
	switch a {
	case actionComplete:
		out, err = m.backend.Complete(m.ctx, &master, occ.Date)
	case actionSkip:
		out, err = m.backend.Skip(m.ctx, &master, occ.Date)
	case actionRestore:
		out, err = m.backend.Restore(m.ctx, &master, occ.Date)
	}
	if err != nil {
		return m.fail(err), nil
	}
	m.Status = StatusBar{Text: withWarnings(fmt.Sprintf("%s: %s on %s", a, master.Title, occ.Date), out)}
	m.Loading = true
	return m, m.loadCmd()
}

func (m Model) fail(err error) Model {
	m.LastError = err
	m.Status = StatusBar{Text: err.Error(), IsError: true}
	return m
}

func withWarnings(text string, out series.Outcome) string {
	if msgs := out.WarningMessages(); len(msgs) > 0 {
		return text + " (warning: " + strings.Join(msgs, "; ") + ")"
	}
	return text
}

func (m Model) agendaPanelData() views.AgendaPanelData {
	loc := m.backend.Location()
	data := views.AgendaPanelData{Start: m.Start.String(), End: m.End.String()}
	if occ, ok := m.Selected(); ok {
		data.SelectedID = occ.DisplayID
	}
	for _, occ := range m.Occurrences {
		item := views.AgendaItemData{
			DisplayID: occ.DisplayID,
			Date:      occ.Date.String(),
			Weekday:   occ.Date.Weekday().String()[:3],
			Title:     occ.Task.Title,
			Status:    string(occ.Status),
			Recurring: occ.Task.IsRecurring(),
			Virtual:   occ.Virtual,
		}
		if occ.Task.StartTime != nil {
			item.Time = occ.Start(loc).Format("15:04")
		}
		if !item.Recurring && occ.Task.Completed {
			item.Status = string(model.StatusCompleted)
		}
		data.Items = append(data.Items, item)
	}
	for _, w := range m.Warnings {
		data.Warnings = append(data.Warnings, fmt.Sprintf("%s: %s", w.TaskID, w.Message))
	}
	return data
}

func (m Model) detailData() views.DetailData {
	occ, ok := m.Selected()
	if !ok {
		return views.DetailData{}
	}
	loc := m.backend.Location()
	t := occ.Task
	d := views.DetailData{
		MasterID:    occ.MasterID,
		Title:       t.Title,
		Date:        occ.Date.String(),
		Priority:    string(t.Priority),
		Project:     t.ProjectID,
		Rule:        t.RecurrenceRule,
		Status:      string(occ.Status),
		Virtual:     occ.Virtual,
		Description: t.Description,
	}
	if t.StartTime != nil {
		d.When = occ.Start(loc).Format("15:04")
		if t.EndTime != nil {
			d.When += "-" + occ.Start(loc).Add(t.Duration()).Format("15:04")
		}
	}
	return d
}
