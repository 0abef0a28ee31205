package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

const defaultMaxOccurrences = 5000

// ExpandConfig controls one expansion call.
type ExpandConfig struct {
	// Location is the wall-clock zone for due dates. If nil, time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd are inclusive calendar days.
	RangeStart model.LocalDate
	RangeEnd   model.LocalDate

	// MaxOccurrences caps the output per task. If zero,
	// defaultMaxOccurrences is used.
	MaxOccurrences int
}

func (c ExpandConfig) normalized() ExpandConfig {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	return c
}

// bounds returns the first and last instant of the window in Location.
func (c ExpandConfig) bounds() (time.Time, time.Time) {
	return c.RangeStart.At(c.Location), c.RangeEnd.AddDays(1).At(c.Location).Add(-time.Nanosecond)
}

// ExpandResult wraps the occurrences of one task.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// RuleErr is set when the stored rule could not be used and the task
	// was emitted once instead.
	RuleErr error
	// Truncated is set when MaxOccurrences was hit.
	Truncated bool
}

// Generate expands task over the configured window.
//
//   - Non-recurring tasks yield exactly one non-virtual occurrence.
//   - Recurring tasks yield the rule's instants in the window, ascending,
//     with the master's duration carried to every occurrence.
//   - The occurrence on the master's own anchor date is not virtual.
//   - EXDATE days and overlay entries with StatusArchived are dropped.
//   - A rule that fails to parse degrades to the single master occurrence.
func Generate(task model.Task, cfg ExpandConfig, overlay model.Overlay) ExpandResult {
	cfg = cfg.normalized()
	if !task.IsRecurring() {
		return ExpandResult{Occurrences: []model.Occurrence{single(task, cfg.Location)}}
	}

	spec, err := ParseInLocation(task.RecurrenceRule, cfg.Location)
	if err != nil {
		appLog.Warn("recurrence: rule unusable, showing task once", "task_id", task.ID, "rule", task.RecurrenceRule, "err", err)
		return ExpandResult{Occurrences: []model.Occurrence{single(task, cfg.Location)}, RuleErr: err}
	}
	anchor, ok := task.Anchor(cfg.Location)
	if !ok {
		appLog.Warn("recurrence: recurring task has no anchor, showing task once", "task_id", task.ID)
		return ExpandResult{Occurrences: []model.Occurrence{single(task, cfg.Location)}, RuleErr: model.ErrMissingAnchor}
	}

	from, to := cfg.bounds()
	instants, truncated, err := between(spec, anchor, from, to, cfg.MaxOccurrences)
	if err != nil {
		appLog.Warn("recurrence: rule unusable, showing task once", "task_id", task.ID, "rule", task.RecurrenceRule, "err", err)
		return ExpandResult{Occurrences: []model.Occurrence{single(task, cfg.Location)}, RuleErr: err}
	}
	if truncated {
		appLog.Warn("recurrence: truncated occurrences for task due to cap", "task_id", task.ID, "cap", cfg.MaxOccurrences)
	}

	anchorDate := model.DateOf(anchor)
	out := make([]model.Occurrence, 0, len(instants))
	for _, at := range instants {
		date := model.DateOf(at)
		if spec.IsExcluded(date) {
			continue
		}
		status := overlay.Status(task.ID, date)
		if status == model.StatusArchived {
			continue
		}
		virtual := date != anchorDate
		out = append(out, model.Occurrence{
			MasterID:  task.ID,
			Date:      date,
			DisplayID: model.DisplayID(task.ID, at, virtual),
			Virtual:   virtual,
			Status:    status,
			Task:      occurrenceTask(task, date, at),
		})
	}
	return ExpandResult{Occurrences: out, Truncated: truncated}
}

// Occurs reports whether the task's rule produces date. Exclusions count as
// not occurring; overrides are not consulted.
func Occurs(task model.Task, date model.LocalDate, loc *time.Location) (bool, error) {
	if loc == nil {
		loc = time.Local
	}
	if !task.IsRecurring() {
		anchorDate, ok := task.AnchorDate(loc)
		return ok && anchorDate == date, nil
	}
	spec, err := ParseInLocation(task.RecurrenceRule, loc)
	if err != nil {
		return false, err
	}
	anchor, ok := task.Anchor(loc)
	if !ok {
		return false, model.ErrMissingAnchor
	}
	cfg := ExpandConfig{Location: loc, RangeStart: date, RangeEnd: date, MaxOccurrences: 1}
	from, to := cfg.bounds()
	instants, _, err := between(spec, anchor, from, to, 1)
	if err != nil {
		return false, err
	}
	return len(instants) > 0 && !spec.IsExcluded(date), nil
}

// between walks the rule from dtstart and keeps the first instant of each
// calendar day in [from, to]. Later instants on an already kept day, as
// produced by BYHOUR lists or sub-daily frequencies, are dropped.
func between(spec RuleSpec, dtstart, from, to time.Time, limit int) ([]time.Time, bool, error) {
	r, err := rrule.NewRRule(spec.Option(dtstart))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	out := make([]time.Time, 0)
	var last model.LocalDate
	next := r.Iterator()
	for {
		at, ok := next()
		if !ok || at.After(to) {
			return out, false, nil
		}
		if at.Before(from) {
			continue
		}
		day := model.DateOf(at)
		if day == last {
			continue
		}
		if len(out) >= limit {
			return out, true, nil
		}
		out = append(out, at)
		last = day
	}
}

// endsBefore reports whether the rule has no instant at or after from.
func endsBefore(spec RuleSpec, dtstart, from time.Time) (bool, error) {
	r, err := rrule.NewRRule(spec.Option(dtstart))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	next := r.Iterator()
	for {
		at, ok := next()
		if !ok {
			return true, nil
		}
		if !at.Before(from) {
			return false, nil
		}
	}
}

// countBefore counts rule instants strictly before the start of date.
func countBefore(spec RuleSpec, dtstart time.Time, date model.LocalDate, loc *time.Location) (int, error) {
	r, err := rrule.NewRRule(spec.Option(dtstart))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	limit := date.At(loc)
	n := 0
	next := r.Iterator()
	for {
		at, ok := next()
		if !ok || !at.Before(limit) {
			return n, nil
		}
		n++
	}
}

func single(task model.Task, loc *time.Location) model.Occurrence {
	date, _ := task.AnchorDate(loc)
	return model.Occurrence{
		MasterID:  task.ID,
		Date:      date,
		DisplayID: task.ID,
		Task:      task.Clone(),
	}
}

func occurrenceTask(master model.Task, date model.LocalDate, at time.Time) model.Task {
	out := master.Clone()
	d := date
	out.DueDate = &d
	if master.StartTime != nil {
		start := at
		out.StartTime = &start
		if master.EndTime != nil {
			end := at.Add(master.Duration())
			out.EndTime = &end
		}
	}
	return out
}

// IsMalformed reports whether err came from an unusable rule.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedRule)
}
