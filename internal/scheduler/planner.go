package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
)

const (
	DefaultLead    = 10 * time.Minute
	DefaultHorizon = 2
	DefaultRefresh = "*/5 * * * *"
)

var ErrPlannerRunning = errors.New("scheduler: planner already running")

// OccurrenceSource expands the occurrences visible in a date window.
type OccurrenceSource interface {
	Window(ctx context.Context, start, end model.LocalDate) (series.Window, error)
}

type PlannerConfig struct {
	Lead        time.Duration
	HorizonDays int
	// Refresh is a standard five-field cron spec.
	Refresh  string
	Location *time.Location
	Now      func() time.Time
}

// Planner keeps the engine's queue in sync with upcoming timed occurrences.
type Planner struct {
	source OccurrenceSource
	engine *Engine
	cfg    PlannerConfig

	mu   sync.Mutex
	cron *cron.Cron
}

func NewPlanner(source OccurrenceSource, engine *Engine, cfg PlannerConfig) *Planner {
	if cfg.Lead < 0 {
		cfg.Lead = 0
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizon
	}
	if cfg.Refresh == "" {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Planner{source: source, engine: engine, cfg: cfg}
}

// Plan computes the reminders for the horizon starting today without
// touching the engine.
func (p *Planner) Plan(ctx context.Context) ([]Reminder, error) {
	now := p.cfg.Now().In(p.cfg.Location)
	today := model.DateOf(now)
	w, err := p.source.Window(ctx, today, today.AddDays(p.cfg.HorizonDays-1))
	if err != nil {
		return nil, fmt.Errorf("scheduler: load window: %w", err)
	}
	for _, warn := range w.Warnings {
		appLog.Warn("scheduler: occurrence expansion degraded", "task_id", warn.TaskID, "reason", warn.Message)
	}

	out := make([]Reminder, 0, len(w.Occurrences))
	for _, occ := range w.Occurrences {
		if occ.Task.StartTime == nil {
			continue
		}
		if occ.Status == model.StatusCompleted || occ.Status == model.StatusSkipped {
			continue
		}
		if !occ.Task.IsRecurring() && occ.Task.Completed {
			continue
		}
		start := occ.Start(p.cfg.Location)
		if !start.After(now) {
			continue
		}
		trigger := start.Add(-p.cfg.Lead)
		if trigger.Before(now) {
			trigger = now
		}
		out = append(out, Reminder{
			Key:       occ.Key(),
			Title:     occ.Task.Title,
			StartAt:   start,
			TriggerAt: trigger,
		})
	}
	return out, nil
}

// Refresh re-plans and replaces the engine queue. It returns the number of
// reminders queued.
func (p *Planner) Refresh(ctx context.Context) (int, error) {
	reminders, err := p.Plan(ctx)
	if err != nil {
		appLog.Error("scheduler: refresh failed", err)
		return 0, err
	}
	n, err := p.engine.Replace(reminders)
	if err != nil {
		return 0, err
	}
	appLog.Debug("scheduler: reminders refreshed", "planned", len(reminders), "queued", n)
	return n, nil
}

// Start refreshes once and then on every tick of the refresh spec. ctx
// bounds each refresh, not the schedule; call Stop to end it.
func (p *Planner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return ErrPlannerRunning
	}

	c := cron.New(cron.WithLocation(p.cfg.Location))
	if _, err := c.AddFunc(p.cfg.Refresh, func() {
		_, _ = p.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("scheduler: refresh spec %q: %w", p.cfg.Refresh, err)
	}
	// A failed first refresh is logged; the next tick retries.
	_, _ = p.Refresh(ctx)
	c.Start()
	p.cron = c
	appLog.Info("scheduler: planner started", "refresh", p.cfg.Refresh, "lead", p.cfg.Lead.String(), "horizon_days", p.cfg.HorizonDays)
	return nil
}

// Stop halts the refresh schedule and waits for a running refresh.
func (p *Planner) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
