package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gurin-alexey/pulse-app-sub001/internal/calendar"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var out, name string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every task as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := calendar.Write(cmd.Context(), w, a.store, calendar.Options{Location: a.loc, Name: name})
			if err != nil {
				return err
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d task(s) to %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&name, "name", "Pulse", "calendar name")
	return cmd
}
