package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/scheduler"
	"github.com/gurin-alexey/pulse-app-sub001/internal/update"
)

func newAgendaCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agenda",
		Short: "Open the weekly agenda in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			engine := scheduler.NewEngine(a.cfg.SchedulerBuffer)
			engine.Start()
			defer engine.Stop()
			planner := a.newPlanner(engine)
			if err := planner.Start(cmd.Context()); err != nil {
				appLog.Warn("cli: reminders disabled", "reason", err.Error())
			} else {
				defer planner.Stop()
			}

			model := update.NewModel(a.resolver,
				update.WithContext(cmd.Context()),
				update.WithStatePath(a.cfg.StatePath),
				update.WithScheduler(engine),
			)
			_, err = tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
