package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

var plannerNow = time.Date(2024, 1, 10, 8, 55, 0, 0, time.UTC)

func at(hour, minute int, day int) *time.Time {
	t := time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
	return &t
}

func newPlannerFixture(t *testing.T) (*series.Resolver, *Engine, *Planner) {
	t.Helper()
	resolver := series.NewResolver(storage.NewMemoryRepository(),
		series.WithLocation(time.UTC),
		series.WithClock(func() time.Time { return plannerNow }),
	)
	engine := NewEngine(8)
	planner := NewPlanner(resolver, engine, PlannerConfig{
		Lead:        10 * time.Minute,
		HorizonDays: 2,
		Refresh:     "@every 1h",
		Location:    time.UTC,
		Now:         func() time.Time { return plannerNow },
	})
	return resolver, engine, planner
}

func mustCreate(t *testing.T, r *series.Resolver, task model.Task) model.Task {
	t.Helper()
	created, err := r.Create(context.Background(), task)
	if err != nil {
		t.Fatalf("create %q: %v", task.Title, err)
	}
	return created
}

func TestPlanSelectsUpcomingTimedOccurrences(t *testing.T) {
	resolver, _, planner := newPlannerFixture(t)
	ctx := context.Background()

	standup := mustCreate(t, resolver, model.Task{
		ID: "standup", Title: "Standup", StartTime: at(9, 0, 8), EndTime: at(9, 15, 8),
		RecurrenceRule: "FREQ=DAILY",
	})
	if _, err := resolver.Complete(ctx, &standup, model.MustParseDate("2024-01-11")); err != nil {
		t.Fatalf("complete: %v", err)
	}
	mustCreate(t, resolver, model.Task{
		ID: "review", Title: "Review", DueDate: ptrDate("2024-01-08"), RecurrenceRule: "FREQ=DAILY",
	})
	mustCreate(t, resolver, model.Task{ID: "gone", Title: "Earlier call", StartTime: at(7, 0, 10)})
	lunch := mustCreate(t, resolver, model.Task{ID: "lunch", Title: "Lunch", StartTime: at(12, 0, 10)})
	if _, err := resolver.Complete(ctx, &lunch, model.MustParseDate("2024-01-10")); err != nil {
		t.Fatalf("complete one-off: %v", err)
	}
	mustCreate(t, resolver, model.Task{ID: "demo", Title: "Demo", StartTime: at(16, 30, 11)})

	reminders, err := planner.Plan(ctx)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(reminders) != 2 {
		t.Fatalf("expected 2 reminders, got %+v", reminders)
	}

	first := reminders[0]
	if first.Key != (model.OccurrenceKey{TaskID: "standup", Date: model.MustParseDate("2024-01-10")}) {
		t.Fatalf("unexpected first key %s", first.Key)
	}
	if !first.TriggerAt.Equal(plannerNow) {
		t.Fatalf("lead inside now should clamp trigger to now, got %s", first.TriggerAt)
	}
	if !first.StartAt.Equal(*at(9, 0, 10)) {
		t.Fatalf("unexpected start %s", first.StartAt)
	}

	second := reminders[1]
	if second.Key.TaskID != "demo" || !second.TriggerAt.Equal(*at(16, 20, 11)) {
		t.Fatalf("unexpected second reminder %+v", second)
	}
	if second.Title != "Demo" {
		t.Fatalf("unexpected title %q", second.Title)
	}
}

func TestRefreshReplacesEngineQueue(t *testing.T) {
	resolver, engine, planner := newPlannerFixture(t)
	ctx := context.Background()
	mustCreate(t, resolver, model.Task{ID: "demo", Title: "Demo", StartTime: at(16, 30, 11)})

	if err := engine.Schedule(Reminder{Key: model.OccurrenceKey{TaskID: "stale"}, TriggerAt: plannerNow.Add(time.Hour)}); err != nil {
		t.Fatalf("schedule stale: %v", err)
	}
	n, err := planner.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 queued reminder, got %d", n)
	}
	pending := engine.Pending()
	if len(pending) != 1 || pending[0].Key.TaskID != "demo" {
		t.Fatalf("unexpected pending %+v", pending)
	}
}

type failingSource struct{}

var errUnavailable = errors.New("store unavailable")

func (failingSource) Window(context.Context, model.LocalDate, model.LocalDate) (series.Window, error) {
	return series.Window{}, errUnavailable
}

func TestRefreshPropagatesSourceError(t *testing.T) {
	engine := NewEngine(1)
	planner := NewPlanner(failingSource{}, engine, PlannerConfig{Location: time.UTC})
	if _, err := planner.Refresh(context.Background()); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestPlannerStartStop(t *testing.T) {
	resolver, engine, planner := newPlannerFixture(t)
	mustCreate(t, resolver, model.Task{ID: "demo", Title: "Demo", StartTime: at(16, 30, 11)})

	if err := planner.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := planner.Start(context.Background()); !errors.Is(err, ErrPlannerRunning) {
		t.Fatalf("expected ErrPlannerRunning, got %v", err)
	}
	if got := len(engine.Pending()); got != 1 {
		t.Fatalf("start should refresh immediately, pending=%d", got)
	}
	planner.Stop()
	planner.Stop()
}

func TestPlannerRejectsBadRefreshSpec(t *testing.T) {
	_, engine, _ := newPlannerFixture(t)
	planner := NewPlanner(failingSource{}, engine, PlannerConfig{Refresh: "every so often", Location: time.UTC})
	if err := planner.Start(context.Background()); err == nil {
		t.Fatalf("expected refresh spec error")
	}
}

func ptrDate(s string) *model.LocalDate {
	d := model.MustParseDate(s)
	return &d
}
