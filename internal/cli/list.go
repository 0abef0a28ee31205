package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var startFlag, endFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the occurrences of a date window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			start := a.resolver.Today()
			if startFlag != "" {
				if start, err = model.ParseDate(startFlag); err != nil {
					return err
				}
			}
			end := start.AddDays(a.cfg.WindowDays - 1)
			if endFlag != "" {
				if end, err = model.ParseDate(endFlag); err != nil {
					return err
				}
			}

			w, err := a.resolver.Window(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			printWindow(cmd.OutOrStdout(), w, a.loc)
			return nil
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "first day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&endFlag, "end", "", "last day, YYYY-MM-DD (default start + window_days - 1)")
	return cmd
}

func printWindow(out io.Writer, w series.Window, loc *time.Location) {
	for _, occ := range w.Occurrences {
		when := "all-day"
		if occ.Task.StartTime != nil {
			when = occ.Start(loc).Format("15:04")
		}
		status := string(occ.Status)
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(out, "%s  %-7s  %-9s  %s  [%s]\n", occ.Date, when, status, occ.Task.Title, occ.DisplayID)
	}
	for _, warn := range w.Warnings {
		fmt.Fprintf(out, "warning: %s: %s\n", warn.TaskID, warn.Message)
	}
	if len(w.Truncated) > 0 {
		fmt.Fprintf(out, "truncated: %v\n", w.Truncated)
	}
}
