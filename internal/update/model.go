package update

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/scheduler"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
)

// Backend is the occurrence engine the agenda drives. *series.Resolver
// satisfies it.
type Backend interface {
	Location() *time.Location
	Today() model.LocalDate
	Load(ctx context.Context, id string) (model.Task, error)
	Window(ctx context.Context, start, end model.LocalDate) (series.Window, error)
	Edit(ctx context.Context, req series.Request) (series.Outcome, error)
	Delete(ctx context.Context, req series.Request) (series.Outcome, error)
	Detach(ctx context.Context, task *model.Task, date model.LocalDate) (series.Outcome, error)
	Complete(ctx context.Context, task *model.Task, date model.LocalDate) (series.Outcome, error)
	Skip(ctx context.Context, task *model.Task, date model.LocalDate) (series.Outcome, error)
	Restore(ctx context.Context, task *model.Task, date model.LocalDate) (series.Outcome, error)
}

var _ Backend = (*series.Resolver)(nil)

type StatusBar struct {
	Text    string
	IsError bool
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type keyMap struct {
	Prev     key.Binding
	Next     key.Binding
	Down     key.Binding
	Up       key.Binding
	Today    key.Binding
	Complete key.Binding
	Skip     key.Binding
	Restore  key.Binding
	Reload   key.Binding
	Palette  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Prev:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h", "previous week")),
		Next:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "next week")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "next occurrence")),
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "previous occurrence")),
		Today:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "jump to today")),
		Complete: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "complete")),
		Skip:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		Restore:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "restore")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Palette:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command palette")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Complete, k.Skip, k.Palette, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Down, k.Up, k.Today},
		{k.Complete, k.Skip, k.Restore, k.Reload},
		{k.Palette, k.Help, k.Quit},
	}
}

type Model struct {
	State       State
	Start       model.LocalDate
	End         model.LocalDate
	Occurrences []model.Occurrence
	Warnings    []series.Warning
	Cursor      int
	Loading     bool
	Palette     CommandPaletteState
	HelpVisible bool
	Status      StatusBar
	Scheduler   *scheduler.Engine
	ReminderLog []scheduler.Reminder
	Quitting    bool
	LastError   error

	backend      Backend
	ctx          context.Context
	statePath    string
	keys         keyMap
	commandInput textinput.Model
	helpModel    help.Model
}

type Option func(*Model)

// WithStatePath loads the saved state from path and saves it back there.
func WithStatePath(path string) Option {
	return func(m *Model) {
		m.statePath = strings.TrimSpace(path)
	}
}

func WithScheduler(engine *scheduler.Engine) Option {
	return func(m *Model) {
		m.Scheduler = engine
	}
}

func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

// WindowLoadedMsg carries a freshly expanded week.
type WindowLoadedMsg struct {
	Window series.Window
	Err    error
}

type ReminderDueMsg struct {
	Reminder scheduler.Reminder
}

func NewModel(backend Backend, opts ...Option) Model {
	m := Model{
		backend:   backend,
		ctx:       context.Background(),
		keys:      defaultKeyMap(),
		helpModel: help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}

	m.State = DefaultState()
	if m.statePath != "" {
		if st, err := LoadState(m.statePath); err == nil {
			m.State = st
		} else {
			m.Status = StatusBar{Text: "state not loaded: " + err.Error(), IsError: true}
		}
	}
	if m.State.FocusDate.IsZero() {
		m.State.FocusDate = backend.Today()
	}
	m.Start, m.End = weekOf(m.State.FocusDate)

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48
	return m
}

// weekOf returns the Monday through Sunday week containing d.
func weekOf(d model.LocalDate) (model.LocalDate, model.LocalDate) {
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDays(-offset)
	return start, start.AddDays(6)
}

// Selected returns the occurrence under the cursor.
func (m Model) Selected() (model.Occurrence, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Occurrences) {
		return model.Occurrence{}, false
	}
	return m.Occurrences[m.Cursor], true
}
