package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

// MemoryRepository is a Repository held in process memory. It backs tests
// and the agenda's --memory mode.
type MemoryRepository struct {
	mu        sync.RWMutex
	tasks     map[string]model.Task
	overrides map[model.OccurrenceKey]model.OccurrenceOverride
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks:     make(map[string]model.Task),
		overrides: make(map[model.OccurrenceKey]model.OccurrenceOverride),
	}
}

func (r *MemoryRepository) CreateTask(ctx context.Context, in model.Task) error {
	_ = ctx
	if strings.TrimSpace(in.ID) == "" {
		return errors.New("storage: task id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[in.ID]; exists {
		return fmt.Errorf("storage: task %q already exists", in.ID)
	}
	in.RecurrenceRule = strings.TrimSpace(in.RecurrenceRule)
	r.tasks[in.ID] = in.Clone()
	return nil
}

func (r *MemoryRepository) GetTask(ctx context.Context, id string) (model.Task, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok || t.DeletedAt != nil {
		return model.Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, in model.Task) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[in.ID]
	if !ok || cur.DeletedAt != nil {
		return ErrNotFound
	}
	in.CreatedAt = cur.CreatedAt
	in.DeletedAt = nil
	in.RecurrenceRule = strings.TrimSpace(in.RecurrenceRule)
	r.tasks[in.ID] = in.Clone()
	return nil
}

func (r *MemoryRepository) SoftDeleteTask(ctx context.Context, id string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[id]
	if !ok || cur.DeletedAt != nil {
		return ErrNotFound
	}
	cur.DeletedAt = &at
	cur.UpdatedAt = at
	r.tasks[id] = cur
	return nil
}

func (r *MemoryRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if t.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.RecurringOnly && !t.IsRecurring() {
			continue
		}
		out = append(out, t.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *MemoryRepository) ListTasksInRange(ctx context.Context, q RangeQuery) ([]model.Task, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]model.Task, 0)
	for _, t := range r.tasks {
		if t.DeletedAt != nil {
			continue
		}
		if t.IsRecurring() {
			if t.DueDate == nil || !t.DueDate.After(q.End) {
				out = append(out, t.Clone())
			}
			continue
		}
		if t.DueDate != nil && !t.DueDate.Before(q.Start) && !t.DueDate.After(q.End) {
			out = append(out, t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		di, dj := dueKey(out[i]), dueKey(out[j])
		if di != dj {
			return di < dj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) SetOverride(ctx context.Context, in model.OccurrenceOverride) error {
	_ = ctx
	if err := in.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[in.TaskID]; !ok {
		return fmt.Errorf("storage: override for unknown task %q", in.TaskID)
	}
	r.overrides[in.Key()] = in
	return nil
}

func (r *MemoryRepository) ClearOverride(ctx context.Context, key model.OccurrenceKey) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overrides[key]; !ok {
		return ErrNotFound
	}
	delete(r.overrides, key)
	return nil
}

func (r *MemoryRepository) ListOverrides(ctx context.Context, filter OverrideFilter) ([]model.OccurrenceOverride, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]model.OccurrenceOverride, 0)
	for _, o := range r.overrides {
		if filter.matches(o) {
			out = append(out, o)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

func (r *MemoryRepository) MoveOverrides(ctx context.Context, fromID, toID string, from model.LocalDate) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[toID]; !ok {
		return 0, fmt.Errorf("storage: override target %q does not exist", toID)
	}
	moved := 0
	for key, o := range r.overrides {
		if key.TaskID != fromID || key.Date.Before(from) {
			continue
		}
		delete(r.overrides, key)
		o.TaskID = toID
		r.overrides[o.Key()] = o
		moved++
	}
	return moved, nil
}

func dueKey(t model.Task) string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.String()
}

func paginate(in []model.Task, limit, offset int) []model.Task {
	if offset > 0 {
		if offset >= len(in) {
			return []model.Task{}
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
