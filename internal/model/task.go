package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPriority = errors.New("model: invalid task priority")
	ErrMissingAnchor   = errors.New("model: recurring task requires due_date or start_time")
	ErrInvalidSchedule = errors.New("model: end_time must not be before start_time")
)

type Priority string

const (
	PriorityNone     Priority = ""
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Task is the stored master record of a possibly recurring task.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       Priority   `json:"priority"`
	Completed      bool       `json:"completed"`
	ProjectID      string     `json:"project_id,omitempty"`
	ParentID       string     `json:"parent_id,omitempty"`
	DueDate        *LocalDate `json:"due_date,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func (t Task) IsRecurring() bool {
	return strings.TrimSpace(t.RecurrenceRule) != ""
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if t.IsRecurring() && t.DueDate == nil && t.StartTime == nil {
		return ErrMissingAnchor
	}
	if t.StartTime != nil && t.EndTime != nil && t.EndTime.Before(*t.StartTime) {
		return ErrInvalidSchedule
	}
	return nil
}

// Anchor is the rule's dtstart: start_time when present, otherwise local
// midnight of due_date. ok is false when the task has neither.
func (t Task) Anchor(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if t.StartTime != nil {
		return t.StartTime.In(loc), true
	}
	if t.DueDate != nil {
		return t.DueDate.At(loc), true
	}
	return time.Time{}, false
}

// AnchorDate is the calendar day of Anchor.
func (t Task) AnchorDate(loc *time.Location) (LocalDate, bool) {
	if t.StartTime == nil && t.DueDate != nil {
		return *t.DueDate, true
	}
	at, ok := t.Anchor(loc)
	if !ok {
		return LocalDate{}, false
	}
	return DateOf(at), true
}

// Duration is end_time minus start_time, zero when either is missing.
func (t Task) Duration() time.Duration {
	if t.StartTime == nil || t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(*t.StartTime)
}

// ScheduleAt moves the task's schedule to date, keeping the original
// time-of-day and duration of start/end when present.
func (t Task) ScheduleAt(date LocalDate, loc *time.Location) Task {
	out := t
	d := date
	out.DueDate = &d
	if t.StartTime != nil {
		start := date.AtClock(*t.StartTime, loc)
		out.StartTime = &start
		if t.EndTime != nil {
			end := start.Add(t.Duration())
			out.EndTime = &end
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate pointer fields freely.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.StartTime != nil {
		s := *t.StartTime
		out.StartTime = &s
	}
	if t.EndTime != nil {
		e := *t.EndTime
		out.EndTime = &e
	}
	if t.DeletedAt != nil {
		del := *t.DeletedAt
		out.DeletedAt = &del
	}
	return out
}
