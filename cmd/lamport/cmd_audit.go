package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/lamportpair/pkg/audit"
)

var errViolations = errors.New("audit failed")

func (a *app) newAuditCommand() *cobra.Command {
	var (
		runID  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check a journaled run for lost updates and unpaired events",
		Long: `Check a run (the latest unless --run is given): no process stamped two
events with the same timestamp, and every sent event was received exactly
once by its target with the same payload and timestamp.

Exits 2 when the run has violations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
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
				return fmt.Errorf("audit: %w", err)
			}
			report := audit.Check(notes)

			if format != "text" {
				if err := printStructured(a.stdout, format, map[string]any{"run_id": run.ID, "report": report}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(a.stdout, "run %s: sent=%d received=%d\n", run.ID, report.Sent, report.Received)
				for _, v := range report.Violations {
					fmt.Fprintf(a.stdout, "  %s: %s\n", v.Kind, v.Detail)
				}
				if report.OK {
					fmt.Fprintln(a.stdout, "ok")
				}
			}
			if !report.OK {
				return &codedError{
					code: exitViolations,
					err:  fmt.Errorf("%w: %d violation(s) in run %s", errViolations, len(report.Violations), run.ID),
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id (default: latest)")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json|yaml)")
	return cmd
}
