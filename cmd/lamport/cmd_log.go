package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/lamportpair/pkg/audit"
	"github.com/daviddao/lamportpair/pkg/model"
	"github.com/daviddao/lamportpair/pkg/sink"
)

func (a *app) newLogCommand() *cobra.Command {
	var (
		runID  string
		order  string
		kind   string
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the notifications of a journaled run",
		Long: `Print every send and receive notification of a run (the latest run
unless --run is given).

--order journal keeps the order notifications were recorded in, which
reflects real time only loosely under concurrency. --order lamport sorts
them by the Lamport total order: timestamp, then origin process, with each
send ahead of its receive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if order != "journal" && order != "lamport" {
				return fmt.Errorf("invalid order %q: must be journal or lamport", order)
			}
			if kind != "" && !model.NotificationKind(kind).Valid() {
				return fmt.Errorf("invalid kind %q: must be sent or received", kind)
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := resolveRun(st, runID)
			if err != nil {
				return err
			}
			notes, err := st.ListNotifications(run.ID, 0)
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}
			if order == "lamport" {
				notes = audit.Sorted(notes)
			}
			if kind != "" {
				filtered := notes[:0]
				for _, n := range notes {
					if string(n.Kind) == kind {
						filtered = append(filtered, n)
					}
				}
				notes = filtered
			}
			if limit > 0 && len(notes) > limit {
				notes = notes[:limit]
			}

			if format != "text" {
				return printStructured(a.stdout, format, map[string]any{
					"run": run, "notifications": notes, "count": len(notes),
				})
			}
			if len(notes) == 0 {
				fmt.Fprintln(a.stdout, "no notifications")
				return nil
			}
			for _, n := range notes {
				line, err := sink.FormatLine(n)
				if err != nil {
					return err
				}
				fmt.Fprint(a.stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id (default: latest)")
	cmd.Flags().StringVar(&order, "order", "journal", "journal|lamport")
	cmd.Flags().StringVar(&kind, "kind", "", "only sent or received")
	cmd.Flags().IntVar(&limit, "limit", 0, "max notifications (0 = all)")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json|yaml)")
	return cmd
}
