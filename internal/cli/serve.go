package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gurin-alexey/pulse-app-sub001/internal/api"
	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/scheduler"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder planner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if listen != "" {
				a.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	engine := scheduler.NewEngine(a.cfg.SchedulerBuffer)
	engine.Start()
	defer engine.Stop()
	go logReminders(engine)

	planner := a.newPlanner(engine)
	if err := planner.Start(ctx); err != nil {
		return err
	}
	defer planner.Stop()

	handler := api.NewHandler(a.resolver, a.store)
	handler.WindowDays = a.cfg.WindowDays
	server := &http.Server{
		Addr:         a.cfg.Listen,
		Handler:      api.NewRouter(handler, a.cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("cli: server starting", "listen", a.cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			appLog.Error("cli: server failed", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	appLog.Info("cli: shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("cli: server forced to shutdown", err)
		return err
	}
	appLog.Info("cli: server stopped")
	return nil
}

func logReminders(engine *scheduler.Engine) {
	for r := range engine.C() {
		appLog.Info("reminder due", "occurrence", r.Key.String(), "title", r.Title, "start", r.StartAt.Format(time.RFC3339))
	}
}
