package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) newRunsCommand() *cobra.Command {
	var (
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("runs: %w", err)
			}
			if format != "text" {
				return printStructured(a.stdout, format, map[string]any{"runs": runs, "count": len(runs)})
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "no runs")
				return nil
			}
			for _, r := range runs {
				status := "unfinished"
				if r.FinishedAt != nil {
					status = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(a.stdout, "%s  %s  actors=%d iterations=%d  %s\n",
					r.ID, r.StartedAt.Format(time.RFC3339), r.Actors, r.Iterations, status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json|yaml)")
	return cmd
}
