package series

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/recurrence"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

// Resolver turns occurrence-level requests into writes on master tasks and
// overlay records. It holds no locks; callers serialize edits per task.
type Resolver struct {
	store          storage.Repository
	loc            *time.Location
	now            func() time.Time
	newID          func() string
	maxOccurrences int
}

type Option func(*Resolver)

// WithLocation sets the zone used to resolve calendar days.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(r *Resolver) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithMaxOccurrences caps the occurrences expanded per task per window.
func WithMaxOccurrences(n int) Option {
	return func(r *Resolver) {
		r.maxOccurrences = n
	}
}

func NewResolver(store storage.Repository, opts ...Option) *Resolver {
	r := &Resolver{
		store: store,
		loc:   time.Local,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Today is the current calendar day in the resolver's location.
func (r *Resolver) Today() model.LocalDate {
	return model.DateOf(r.now().In(r.loc))
}

// Load fetches a master task. A missing or deleted task yields
// storage.ErrNotFound.
func (r *Resolver) Load(ctx context.Context, id string) (model.Task, error) {
	task, err := r.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Task{}, fmt.Errorf("task %q: %w", id, err)
		}
		return model.Task{}, storageErr("load task", err)
	}
	return task, nil
}

// Create validates and inserts a new master task. A blank ID is assigned.
func (r *Resolver) Create(ctx context.Context, in model.Task) (model.Task, error) {
	task := in.Clone()
	if strings.TrimSpace(task.ID) == "" {
		task.ID = r.newID()
	}
	task.Title = strings.TrimSpace(task.Title)
	task.RecurrenceRule = strings.TrimSpace(task.RecurrenceRule)
	task.DeletedAt = nil
	now := r.now()
	task.CreatedAt, task.UpdatedAt = now, now
	r.normalizeSchedule(&task)

	if err := r.validate(task); err != nil {
		return model.Task{}, err
	}
	if err := r.store.CreateTask(ctx, task); err != nil {
		appLog.Error("series: create task failed", err, "task_id", task.ID)
		return model.Task{}, storageErr("create task", err)
	}
	appLog.Debug("series: task created", "task_id", task.ID, "recurring", task.IsRecurring())
	return task, nil
}

// validate checks field invariants and that a rule, when present, parses.
func (r *Resolver) validate(task model.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if task.IsRecurring() {
		if _, err := recurrence.ParseInLocation(task.RecurrenceRule, r.loc); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
		}
	}
	return nil
}

// normalizeSchedule keeps due_date on the calendar day of start_time.
func (r *Resolver) normalizeSchedule(task *model.Task) {
	if task.StartTime == nil {
		return
	}
	d := model.DateOf(task.StartTime.In(r.loc))
	task.DueDate = &d
}

// checkDate reports a warning when the rule does not generate date.
func (r *Resolver) checkDate(task model.Task, date model.LocalDate) error {
	ok, err := recurrence.Occurs(task, date, r.loc)
	if err != nil || ok {
		return nil
	}
	appLog.Warn("series: occurrence date not generated by rule", "task_id", task.ID, "date", date.String(), "rule", task.RecurrenceRule)
	return fmt.Errorf("%w: %s on %s", ErrInvalidOccurrenceDate, task.ID, date)
}

// requireRule refuses rule mutations on a rule that cannot be parsed.
func (r *Resolver) requireRule(task model.Task) error {
	if !task.IsRecurring() {
		return invalidOp("task %s is not recurring", task.ID)
	}
	if _, err := recurrence.ParseInLocation(task.RecurrenceRule, r.loc); err != nil {
		return fmt.Errorf("%w: task %s: %w", ErrInvalidOperation, task.ID, err)
	}
	return nil
}

// applyPatch applies p to task. Moving only the due date of a timed task
// moves its start and end with it.
func (r *Resolver) applyPatch(task model.Task, p model.TaskPatch) (model.Task, error) {
	out, err := p.Apply(task)
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	if p.DueDate != nil && p.StartTime == nil && out.StartTime != nil && out.DueDate != nil {
		out = out.ScheduleAt(*out.DueDate, r.loc)
	}
	r.normalizeSchedule(&out)
	return out, nil
}
