package calendar

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/recurrence"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

const (
	productID = "-//pulse//recurring tasks//EN"
	uidDomain = "pulse"

	utcLayout  = "20060102T150405Z"
	dateLayout = "20060102"
)

// Options controls one export.
type Options struct {
	// Location resolves due dates and wall-clock times. If nil, time.Local is used.
	Location *time.Location
	// Name is written as X-WR-CALNAME when set.
	Name string
	// Stamp is the DTSTAMP of every event. If zero, time.Now is used.
	Stamp time.Time
}

// Export builds a VCALENDAR with one VEVENT per task. Recurring tasks carry
// their RRULE; excluded and archived dates become EXDATE entries. Tasks
// without a date are left out.
func Export(tasks []model.Task, overrides []model.OccurrenceOverride, opts Options) *ical.Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	archived := make(map[string][]model.LocalDate)
	for _, o := range overrides {
		if o.Status == model.StatusArchived {
			archived[o.TaskID] = append(archived[o.TaskID], o.Date)
		}
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, task := range tasks {
		if task.DeletedAt != nil {
			continue
		}
		anchor, ok := task.Anchor(loc)
		if !ok {
			continue
		}
		ev := cal.AddEvent(task.ID + "@" + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetCreatedTime(task.CreatedAt)
		ev.SetModifiedAt(task.UpdatedAt)
		ev.SetSummary(task.Title)
		if task.Description != "" {
			ev.SetDescription(task.Description)
		}
		if p := priorityValue(task.Priority); p != "" {
			ev.SetProperty(ical.ComponentPropertyPriority, p)
		}
		if task.ProjectID != "" {
			ev.SetProperty(ical.ComponentPropertyCategories, task.ProjectID)
		}

		timed := task.StartTime != nil
		if timed {
			ev.SetStartAt(anchor)
			if task.EndTime != nil {
				ev.SetEndAt(anchor.Add(task.Duration()))
			}
		} else {
			ev.SetAllDayStartAt(anchor)
			ev.SetAllDayEndAt(anchor.AddDate(0, 0, 1))
		}

		if !task.IsRecurring() {
			if task.Completed {
				ev.SetStatus(ical.ObjectStatusCompleted)
			}
			continue
		}
		spec, err := recurrence.ParseInLocation(task.RecurrenceRule, loc)
		if err != nil {
			appLog.Warn("calendar: rule unusable, exporting task once", "task_id", task.ID, "err", err)
			continue
		}
		ev.AddProperty(ical.ComponentPropertyRrule, spec.RRule())

		excluded := mergeDates(spec.ExDates, archived[task.ID])
		if len(excluded) == 0 {
			continue
		}
		values := make([]string, 0, len(excluded))
		for _, d := range excluded {
			if timed {
				values = append(values, d.AtClock(anchor, loc).UTC().Format(utcLayout))
			} else {
				values = append(values, d.Compact())
			}
		}
		if timed {
			ev.AddProperty(ical.ComponentPropertyExdate, strings.Join(values, ","))
		} else {
			ev.AddProperty(ical.ComponentPropertyExdate, strings.Join(values, ","), ical.WithValue(string(ical.ValueDataTypeDate)))
		}
	}
	return cal
}

// Write loads every live task and its overlay from store and serializes the
// calendar to w.
func Write(ctx context.Context, w io.Writer, store storage.Repository, opts Options) (int, error) {
	tasks, err := store.ListTasks(ctx, storage.TaskListFilter{})
	if err != nil {
		return 0, fmt.Errorf("calendar: list tasks: %w", err)
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.IsRecurring() {
			ids = append(ids, t.ID)
		}
	}
	var overrides []model.OccurrenceOverride
	if len(ids) > 0 {
		overrides, err = store.ListOverrides(ctx, storage.OverrideFilter{TaskIDs: ids})
		if err != nil {
			return 0, fmt.Errorf("calendar: list overrides: %w", err)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	cal := Export(tasks, overrides, opts)
	if err := cal.SerializeTo(w); err != nil {
		return 0, fmt.Errorf("calendar: serialize: %w", err)
	}
	return len(cal.Events()), nil
}

// priorityValue maps to the RFC5545 1 (highest) .. 9 (lowest) scale.
func priorityValue(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return "1"
	case model.PriorityHigh:
		return "3"
	case model.PriorityMedium:
		return "5"
	case model.PriorityLow:
		return "7"
	default:
		return ""
	}
}

func mergeDates(a, b []model.LocalDate) []model.LocalDate {
	seen := make(map[model.LocalDate]bool, len(a)+len(b))
	out := make([]model.LocalDate, 0, len(a)+len(b))
	for _, d := range append(append([]model.LocalDate(nil), a...), b...) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
