package series

import (
	"context"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/recurrence"
)

// Detach turns the occurrence of task on date into a standalone,
// non-recurring task and excludes date from the series rule.
func (r *Resolver) Detach(ctx context.Context, task *model.Task, date model.LocalDate) (Outcome, error) {
	if task == nil {
		return Outcome{}, ErrPreconditionFailed
	}
	master := task.Clone()
	if err := r.requireRule(master); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Mode: ModeSingle}
	if w := r.checkDate(master, date); w != nil {
		out.Warnings = append(out.Warnings, w)
	}
	return r.detach(ctx, master, date, r.standaloneCopy(master, date), out)
}

// standaloneCopy builds the independent task for one occurrence: same
// fields, scheduled on date at the master's time of day, no rule.
func (r *Resolver) standaloneCopy(master model.Task, date model.LocalDate) model.Task {
	now := r.now()
	out := master.Clone().ScheduleAt(date, r.loc)
	out.ID = r.newID()
	out.RecurrenceRule = ""
	out.Completed = false
	out.CreatedAt, out.UpdatedAt = now, now
	out.DeletedAt = nil
	return out
}

// detach writes the exclusion first and inserts the standalone task second.
// A failed insert leaves the date excluded; retrying the exclusion is a
// no-op but retrying the insert is not.
func (r *Resolver) detach(ctx context.Context, master model.Task, date model.LocalDate, standalone model.Task, out Outcome) (Outcome, error) {
	rule, err := recurrence.AddExclusionDateInLocation(master.RecurrenceRule, date, r.loc)
	if err != nil {
		return Outcome{}, invalidOp("task %s: %v", master.ID, err)
	}
	updated := master.Clone()
	updated.RecurrenceRule = rule
	updated.UpdatedAt = r.now()
	if err := r.store.UpdateTask(ctx, updated); err != nil {
		appLog.Error("series: write exclusion failed", err, "task_id", master.ID, "date", date.String())
		return Outcome{}, storageErr("write exclusion", err)
	}
	out.Updated = &updated

	if err := r.store.CreateTask(ctx, standalone); err != nil {
		appLog.Error("series: insert detached task failed", err, "task_id", master.ID, "date", date.String())
		return out, storageErr("insert detached task", err)
	}
	out.Created = &standalone
	appLog.Info("series: detached occurrence", "task_id", master.ID, "date", date.String(), "new_task_id", standalone.ID)
	return out, nil
}
