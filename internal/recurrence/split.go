package recurrence

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

// Split is the pair of rules produced by ending a series at one occurrence
// and continuing it as a new series.
type Split struct {
	// Head is the original rule capped one second before the occurrence.
	Head string
	// Tail is the same pattern for a series anchored at the occurrence.
	Tail string
}

// SplitAt cuts task's rule at the occurrence on date. The head keeps every
// token of the original apart from COUNT/UNTIL. The tail keeps frequency,
// interval and BY* rules, the original UNTIL, the remaining COUNT, and the
// exclusions on or after date. A series with no instant on or after date
// cannot be split and yields ErrSeriesEnded.
func SplitAt(task model.Task, date model.LocalDate, loc *time.Location) (Split, error) {
	if loc == nil {
		loc = time.Local
	}
	if !task.IsRecurring() {
		return Split{}, ErrNoRule
	}
	spec, err := ParseInLocation(task.RecurrenceRule, loc)
	if err != nil {
		return Split{}, err
	}
	anchor, ok := task.Anchor(loc)
	if !ok {
		return Split{}, model.ErrMissingAnchor
	}

	// A COUNT or UNTIL that runs out before date leaves nothing to split.
	ended, err := endsBefore(spec, anchor, date.At(loc))
	if err != nil {
		return Split{}, err
	}
	if ended {
		return Split{}, fmt.Errorf("%w: %s", ErrSeriesEnded, date)
	}

	occurrenceStart := date.AtClock(anchor, loc)
	if task.StartTime == nil {
		occurrenceStart = date.At(loc)
	}
	head, err := AddUntilBoundInLocation(task.RecurrenceRule, occurrenceStart.Add(-time.Second), loc)
	if err != nil {
		return Split{}, err
	}

	tail := spec
	if spec.Count > 0 {
		before, err := countBefore(spec, anchor, date, loc)
		if err != nil {
			return Split{}, err
		}
		remaining := spec.Count - before
		if remaining < 1 {
			return Split{}, fmt.Errorf("%w: %s", ErrSeriesEnded, date)
		}
		tail = tail.withPart("COUNT", strconv.Itoa(remaining))
	}
	kept := make([]model.LocalDate, 0, len(spec.ExDates))
	for _, d := range spec.ExDates {
		if !d.Before(date) {
			kept = append(kept, d)
		}
	}
	tail.ExDates = normalizeDates(kept)

	return Split{Head: head, Tail: tail.String()}, nil
}
