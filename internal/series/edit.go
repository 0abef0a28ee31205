package series

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/recurrence"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

// Request addresses one occurrence of a master task, or the master itself
// when Date is nil.
type Request struct {
	Task  *model.Task
	Date  *model.LocalDate
	Mode  Mode
	Patch model.TaskPatch
}

// Outcome lists what a resolver call wrote. On a StorageError it still
// reports the writes that succeeded before the failure.
type Outcome struct {
	Mode           Mode                      `json:"mode"`
	Updated        *model.Task               `json:"updated,omitempty"`
	Created        *model.Task               `json:"created,omitempty"`
	Override       *model.OccurrenceOverride `json:"override,omitempty"`
	Deleted        bool                      `json:"deleted,omitempty"`
	MovedOverrides int                       `json:"moved_overrides,omitempty"`
	Warnings       []error                   `json:"-"`
}

// WarningMessages renders Warnings for transport.
func (o Outcome) WarningMessages() []string {
	out := make([]string, 0, len(o.Warnings))
	for _, w := range o.Warnings {
		out = append(out, w.Error())
	}
	return out
}

// resolveMode settles the effective mode. Requests outside an occurrence
// context, and every request on a non-recurring task, apply to the whole
// task. "Following" from the first occurrence is the whole series.
func (r *Resolver) resolveMode(task model.Task, date *model.LocalDate, mode Mode) (Mode, error) {
	if mode != ModeUnset && !mode.IsValid() {
		return ModeUnset, invalidOp("unknown mode %q", string(mode))
	}
	if !task.IsRecurring() {
		return ModeAll, nil
	}
	if date == nil {
		if mode == ModeUnset || mode == ModeAll {
			return ModeAll, nil
		}
		return ModeUnset, invalidOp("mode %s needs an occurrence date", mode)
	}
	switch mode {
	case ModeUnset:
		return ModeUnset, ErrModeRequired
	case ModeFollowing:
		if anchor, ok := task.AnchorDate(r.loc); ok && !date.After(anchor) {
			return ModeAll, nil
		}
	}
	return mode, nil
}

// Edit applies a field patch to one occurrence, to that occurrence and all
// later ones, or to the whole series.
//
//   - all: the patch is written to the master.
//   - single: the occurrence is detached into a standalone task that
//     carries the patch.
//   - following: the master is capped before the occurrence and a new
//     series with the patch starts at it.
func (r *Resolver) Edit(ctx context.Context, req Request) (Outcome, error) {
	if req.Task == nil {
		return Outcome{}, ErrPreconditionFailed
	}
	if req.Patch.IsEmpty() {
		return Outcome{}, invalidOp("empty patch")
	}
	master := req.Task.Clone()
	mode, err := r.resolveMode(master, req.Date, req.Mode)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Mode: mode}
	if mode == ModeAll {
		return r.editAll(ctx, master, req.Patch, out)
	}

	if err := r.requireRule(master); err != nil {
		return Outcome{}, err
	}
	date := *req.Date
	if w := r.checkDate(master, date); w != nil {
		out.Warnings = append(out.Warnings, w)
	}
	if mode == ModeSingle {
		return r.editSingle(ctx, master, date, req.Patch, out)
	}
	return r.editFollowing(ctx, master, date, req.Patch, out)
}

func (r *Resolver) editAll(ctx context.Context, master model.Task, patch model.TaskPatch, out Outcome) (Outcome, error) {
	updated, err := r.applyPatch(master, patch)
	if err != nil {
		return Outcome{}, err
	}
	updated.UpdatedAt = r.now()
	if err := r.validate(updated); err != nil {
		return Outcome{}, err
	}
	if err := r.store.UpdateTask(ctx, updated); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Outcome{}, fmt.Errorf("task %q: %w", master.ID, err)
		}
		appLog.Error("series: update master failed", err, "task_id", master.ID)
		return Outcome{}, storageErr("update master", err)
	}
	out.Updated = &updated
	return out, nil
}

func (r *Resolver) editSingle(ctx context.Context, master model.Task, date model.LocalDate, patch model.TaskPatch, out Outcome) (Outcome, error) {
	if patch.RecurrenceRule != nil && strings.TrimSpace(*patch.RecurrenceRule) != "" {
		return Outcome{}, invalidOp("a single occurrence cannot carry a recurrence rule")
	}
	standalone, err := r.applyPatch(r.standaloneCopy(master, date), patch)
	if err != nil {
		return Outcome{}, err
	}
	if err := r.validate(standalone); err != nil {
		return Outcome{}, err
	}
	return r.detach(ctx, master, date, standalone, out)
}

func (r *Resolver) editFollowing(ctx context.Context, master model.Task, date model.LocalDate, patch model.TaskPatch, out Outcome) (Outcome, error) {
	split, err := recurrence.SplitAt(master, date, r.loc)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}

	now := r.now()
	next := master.ScheduleAt(date, r.loc)
	next.ID = r.newID()
	next.RecurrenceRule = split.Tail
	next.CreatedAt, next.UpdatedAt = now, now
	next.DeletedAt = nil
	if next, err = r.applyPatch(next, patch); err != nil {
		return Outcome{}, err
	}
	if err := r.validate(next); err != nil {
		return Outcome{}, err
	}

	head := master.Clone()
	head.RecurrenceRule = split.Head
	head.UpdatedAt = now
	if err := r.store.UpdateTask(ctx, head); err != nil {
		appLog.Error("series: truncate series failed", err, "task_id", master.ID, "date", date.String())
		return out, storageErr("truncate series", err)
	}
	out.Updated = &head

	if err := r.store.CreateTask(ctx, next); err != nil {
		appLog.Error("series: insert new series failed", err, "task_id", master.ID, "date", date.String())
		return out, storageErr("insert new series", err)
	}
	out.Created = &next

	moved, err := r.store.MoveOverrides(ctx, master.ID, next.ID, date)
	if err != nil {
		appLog.Error("series: move overrides failed", err, "from", master.ID, "to", next.ID)
		return out, storageErr("move overrides", err)
	}
	out.MovedOverrides = moved
	appLog.Info("series: split series", "task_id", master.ID, "new_task_id", next.ID, "date", date.String(), "moved_overrides", moved)
	return out, nil
}

// Delete removes one occurrence, that occurrence and all later ones, or the
// whole series.
//
//   - all: the master is soft-deleted.
//   - single: the occurrence is archived in the overlay; the rule is untouched.
//   - following: the master is capped before the occurrence.
func (r *Resolver) Delete(ctx context.Context, req Request) (Outcome, error) {
	if req.Task == nil {
		return Outcome{}, ErrPreconditionFailed
	}
	master := req.Task.Clone()
	mode, err := r.resolveMode(master, req.Date, req.Mode)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Mode: mode}

	switch mode {
	case ModeAll:
		if err := r.store.SoftDeleteTask(ctx, master.ID, r.now()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return Outcome{}, fmt.Errorf("task %q: %w", master.ID, err)
			}
			appLog.Error("series: delete master failed", err, "task_id", master.ID)
			return Outcome{}, storageErr("delete master", err)
		}
		out.Deleted = true
		return out, nil

	case ModeSingle:
		date := *req.Date
		if w := r.checkDate(master, date); w != nil {
			out.Warnings = append(out.Warnings, w)
		}
		override := model.OccurrenceOverride{TaskID: master.ID, Date: date, Status: model.StatusArchived, UpdatedAt: r.now()}
		if err := r.store.SetOverride(ctx, override); err != nil {
			appLog.Error("series: archive occurrence failed", err, "task_id", master.ID, "date", date.String())
			return Outcome{}, storageErr("archive occurrence", err)
		}
		out.Override = &override
		return out, nil

	default:
		if err := r.requireRule(master); err != nil {
			return Outcome{}, err
		}
		date := *req.Date
		if w := r.checkDate(master, date); w != nil {
			out.Warnings = append(out.Warnings, w)
		}
		split, err := recurrence.SplitAt(master, date, r.loc)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidOperation, err)
		}
		head := master.Clone()
		head.RecurrenceRule = split.Head
		head.UpdatedAt = r.now()
		if err := r.store.UpdateTask(ctx, head); err != nil {
			appLog.Error("series: truncate series failed", err, "task_id", master.ID, "date", date.String())
			return Outcome{}, storageErr("truncate series", err)
		}
		out.Updated = &head
		return out, nil
	}
}
