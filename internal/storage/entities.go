package storage

import "github.com/gurin-alexey/pulse-app-sub001/internal/model"

type TaskListFilter struct {
	ProjectID      string
	RecurringOnly  bool
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// RangeQuery selects the masters that can contribute occurrences to the
// inclusive window [Start, End].
type RangeQuery struct {
	Start model.LocalDate
	End   model.LocalDate
}

// OverrideFilter selects overlay records. Zero dates leave that side open.
type OverrideFilter struct {
	TaskIDs []string
	From    model.LocalDate
	To      model.LocalDate
}

func (f OverrideFilter) matches(o model.OccurrenceOverride) bool {
	if !f.From.IsZero() && o.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.Date.After(f.To) {
		return false
	}
	if len(f.TaskIDs) == 0 {
		return true
	}
	for _, id := range f.TaskIDs {
		if id == o.TaskID {
			return true
		}
	}
	return false
}
