package series

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

func TestStatusActionsOnSeries(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	task := createWeekly(t, r)

	_, err := r.Complete(ctx, &task, date("2024-01-08"))
	require.NoError(t, err)
	_, err = r.SetStatus(ctx, &task, date("2024-01-15"), model.StatusSkipped)
	require.NoError(t, err)
	_, err = r.Skip(ctx, &task, date("2024-01-22"))
	require.NoError(t, err)

	w, err := r.Window(ctx, date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	statuses := map[string]model.OverrideStatus{}
	for _, occ := range w.Occurrences {
		statuses[occ.Date.String()] = occ.Status
	}
	assert.Equal(t, map[string]model.OverrideStatus{
		"2024-01-01": model.StatusNone,
		"2024-01-08": model.StatusCompleted,
		"2024-01-15": model.StatusSkipped,
		"2024-01-29": model.StatusNone,
	}, statuses)

	stats := Summarize(w)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, "25", stats.CompletionRate.String())

	_, err = r.Restore(ctx, &task, date("2024-01-22"))
	require.NoError(t, err)
	_, err = r.Restore(ctx, &task, date("2024-01-29"))
	require.NoError(t, err)
	assert.Len(t, windowDates(t, r, "T", "2024-01-01", "2024-01-31"), 5)

	_, err = r.SetStatus(ctx, &task, date("2024-01-08"), model.OverrideStatus("done"))
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestStatusActionsOnOneOffTask(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	task, err := r.Create(ctx, model.Task{ID: "o", Title: "pay rent", DueDate: datePtr("2024-01-05")})
	require.NoError(t, err)

	out, err := r.Complete(ctx, &task, date("2024-01-05"))
	require.NoError(t, err)
	assert.True(t, out.Updated.Completed)

	_, err = r.Skip(ctx, &task, date("2024-01-05"))
	assert.ErrorIs(t, err, ErrInvalidOperation)

	stats, err := r.Stats(ctx, date("2024-01-01"), date("2024-01-07"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, "100", stats.CompletionRate.String())

	out, err = r.Restore(ctx, &task, date("2024-01-05"))
	require.NoError(t, err)
	assert.False(t, out.Updated.Completed)
}

func TestStatsRoundsCompletionRate(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	task, err := r.Create(ctx, model.Task{ID: "d", Title: "daily", DueDate: datePtr("2024-01-01"), RecurrenceRule: "FREQ=DAILY"})
	require.NoError(t, err)
	_, err = r.Complete(ctx, &task, date("2024-01-01"))
	require.NoError(t, err)
	_, err = r.Complete(ctx, &task, date("2024-01-02"))
	require.NoError(t, err)

	stats, err := r.Stats(ctx, date("2024-01-01"), date("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Recurring)
	assert.Equal(t, "66.67", stats.CompletionRate.String())

	empty, err := r.Stats(ctx, date("2023-01-01"), date("2023-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.True(t, empty.CompletionRate.IsZero())
}
