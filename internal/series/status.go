package series

import (
	"context"
	"errors"
	"fmt"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

// Complete marks one occurrence done. For a non-recurring task the task's
// own completion flag is set.
func (r *Resolver) Complete(ctx context.Context, task *model.Task, date model.LocalDate) (Outcome, error) {
	return r.SetStatus(ctx, task, date, model.StatusCompleted)
}

// Skip hides one occurrence of a series.
func (r *Resolver) Skip(ctx context.Context, task *model.Task, date model.LocalDate) (Outcome, error) {
	return r.SetStatus(ctx, task, date, model.StatusArchived)
}

// SetStatus writes the overlay status of one occurrence.
func (r *Resolver) SetStatus(ctx context.Context, task *model.Task, date model.LocalDate, status model.OverrideStatus) (Outcome, error) {
	if task == nil {
		return Outcome{}, ErrPreconditionFailed
	}
	if !status.IsValid() {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidOperation, model.ErrInvalidStatus)
	}
	master := task.Clone()
	if !master.IsRecurring() {
		if status != model.StatusCompleted {
			return Outcome{}, invalidOp("status %s needs a recurring task", status)
		}
		return r.setCompleted(ctx, master, true)
	}

	out := Outcome{Mode: ModeSingle}
	if w := r.checkDate(master, date); w != nil {
		out.Warnings = append(out.Warnings, w)
	}
	override := model.OccurrenceOverride{TaskID: master.ID, Date: date, Status: status, UpdatedAt: r.now()}
	if err := r.store.SetOverride(ctx, override); err != nil {
		appLog.Error("series: set occurrence status failed", err, "task_id", master.ID, "date", date.String(), "status", string(status))
		return Outcome{}, storageErr("set occurrence status", err)
	}
	out.Override = &override
	return out, nil
}

// Restore clears the overlay status of one occurrence. Restoring an
// occurrence without a status is a no-op.
func (r *Resolver) Restore(ctx context.Context, task *model.Task, date model.LocalDate) (Outcome, error) {
	if task == nil {
		return Outcome{}, ErrPreconditionFailed
	}
	master := task.Clone()
	if !master.IsRecurring() {
		return r.setCompleted(ctx, master, false)
	}
	key := model.OccurrenceKey{TaskID: master.ID, Date: date}
	if err := r.store.ClearOverride(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		appLog.Error("series: clear occurrence status failed", err, "occurrence", key.String())
		return Outcome{}, storageErr("clear occurrence status", err)
	}
	return Outcome{Mode: ModeSingle}, nil
}

func (r *Resolver) setCompleted(ctx context.Context, master model.Task, done bool) (Outcome, error) {
	updated := master
	updated.Completed = done
	updated.UpdatedAt = r.now()
	if err := r.store.UpdateTask(ctx, updated); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Outcome{}, fmt.Errorf("task %q: %w", master.ID, err)
		}
		appLog.Error("series: update completion failed", err, "task_id", master.ID)
		return Outcome{}, storageErr("update completion", err)
	}
	return Outcome{Mode: ModeAll, Updated: &updated}, nil
}
