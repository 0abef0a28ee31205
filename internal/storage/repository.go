package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

// Repository is the row store behind the recurrence engine. Every method is
// atomic per row; callers sequence multi-row changes themselves.
type Repository interface {
	CreateTask(ctx context.Context, in model.Task) error
	// GetTask returns ErrNotFound for soft-deleted tasks.
	GetTask(ctx context.Context, id string) (model.Task, error)
	UpdateTask(ctx context.Context, in model.Task) error
	SoftDeleteTask(ctx context.Context, id string, at time.Time) error
	ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error)
	// ListTasksInRange returns non-deleted recurring masters anchored on or
	// before q.End and non-recurring tasks due inside the window.
	ListTasksInRange(ctx context.Context, q RangeQuery) ([]model.Task, error)

	// SetOverride inserts or replaces the overlay record for one occurrence.
	SetOverride(ctx context.Context, in model.OccurrenceOverride) error
	ClearOverride(ctx context.Context, key model.OccurrenceKey) error
	ListOverrides(ctx context.Context, filter OverrideFilter) ([]model.OccurrenceOverride, error)
	// MoveOverrides re-keys fromID's records dated on or after from to toID.
	MoveOverrides(ctx context.Context, fromID, toID string, from model.LocalDate) (int, error)
}
