package series

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/recurrence"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

// Warning is a non-fatal problem found while expanding one task.
type Warning struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Window is every visible occurrence between Start and End inclusive.
type Window struct {
	Start       model.LocalDate    `json:"start"`
	End         model.LocalDate    `json:"end"`
	Occurrences []model.Occurrence `json:"occurrences"`
	Warnings    []Warning          `json:"warnings,omitempty"`
	// Truncated lists tasks whose expansion hit the occurrence cap.
	Truncated []string `json:"truncated,omitempty"`
}

// Window loads the masters and overlay for [start, end] and expands them.
// Occurrences are ordered by start instant, then by master id.
func (r *Resolver) Window(ctx context.Context, start, end model.LocalDate) (Window, error) {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return Window{}, invalidOp("window %s..%s", start, end)
	}
	tasks, err := r.store.ListTasksInRange(ctx, storage.RangeQuery{Start: start, End: end})
	if err != nil {
		appLog.Error("series: load window tasks failed", err, "start", start.String(), "end", end.String())
		return Window{}, storageErr("load window tasks", err)
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.IsRecurring() {
			ids = append(ids, t.ID)
		}
	}
	overlay := model.Overlay{}
	if len(ids) > 0 {
		records, err := r.store.ListOverrides(ctx, storage.OverrideFilter{TaskIDs: ids, From: start, To: end})
		if err != nil {
			appLog.Error("series: load overlay failed", err, "start", start.String(), "end", end.String())
			return Window{}, storageErr("load overlay", err)
		}
		overlay = model.NewOverlay(records)
	}

	out := Window{Start: start, End: end, Occurrences: make([]model.Occurrence, 0, len(tasks))}
	cfg := recurrence.ExpandConfig{Location: r.loc, RangeStart: start, RangeEnd: end, MaxOccurrences: r.maxOccurrences}
	for _, t := range tasks {
		res := recurrence.Generate(t, cfg, overlay)
		if res.RuleErr != nil {
			out.Warnings = append(out.Warnings, Warning{TaskID: t.ID, Message: res.RuleErr.Error(), Err: res.RuleErr})
		}
		if res.Truncated {
			out.Truncated = append(out.Truncated, t.ID)
		}
		for _, occ := range res.Occurrences {
			// A degraded series still shows on its anchor day only.
			if occ.Date.Before(start) || occ.Date.After(end) {
				continue
			}
			out.Occurrences = append(out.Occurrences, occ)
		}
	}

	sort.SliceStable(out.Occurrences, func(i, j int) bool {
		a, b := out.Occurrences[i], out.Occurrences[j]
		sa, sb := a.Start(r.loc), b.Start(r.loc)
		if !sa.Equal(sb) {
			return sa.Before(sb)
		}
		return a.MasterID < b.MasterID
	})
	return out, nil
}

// Stats summarizes the occurrences of a window. Archived occurrences are
// hidden and do not count.
type Stats struct {
	Start          model.LocalDate `json:"start"`
	End            model.LocalDate `json:"end"`
	Total          int             `json:"total"`
	Completed      int             `json:"completed"`
	Skipped        int             `json:"skipped"`
	Pending        int             `json:"pending"`
	Recurring      int             `json:"recurring"`
	CompletionRate decimal.Decimal `json:"completion_rate"`
}

func (r *Resolver) Stats(ctx context.Context, start, end model.LocalDate) (Stats, error) {
	w, err := r.Window(ctx, start, end)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(w), nil
}

// Summarize computes Stats from an already loaded window.
func Summarize(w Window) Stats {
	s := Stats{Start: w.Start, End: w.End, Total: len(w.Occurrences), CompletionRate: decimal.Zero}
	for _, occ := range w.Occurrences {
		if occ.Task.IsRecurring() {
			s.Recurring++
		}
		switch {
		case occ.Status == model.StatusCompleted, occ.Status == model.StatusNone && occ.Task.Completed && !occ.Task.IsRecurring():
			s.Completed++
		case occ.Status == model.StatusSkipped:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = decimal.NewFromInt(int64(s.Completed)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Round(2)
	}
	return s
}
