package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/lamportpair/pkg/driver"
	"github.com/daviddao/lamportpair/pkg/model"
	"github.com/daviddao/lamportpair/pkg/process"
	"github.com/daviddao/lamportpair/pkg/sink"
)

type runOptions struct {
	actors     int
	iterations int
	maxDelay   time.Duration
	seed       uint64
	noJournal  bool
	quiet      bool
	format     string
}

// runSummary is what run prints once the driver finishes.
type runSummary struct {
	RunID  string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Result driver.Result `json:"result" yaml:"result"`
	Run    *model.Run    `json:"run,omitempty" yaml:"run,omitempty"`
}

func (a *app) newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run two processes exchanging events",
		Long: `Start processes 0 and 1 and let concurrent actors make them send
events to each other. Even-numbered actors send from 0 to 1, odd ones from
1 to 0, pausing a random time before each send. Every send and receive is
printed and journaled.

Example:
  lamport run
  lamport run --actors 8 --iterations 1000 --max-delay 0 --quiet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("actors") {
				opts.actors = a.cfg.Actors
			}
			if !flags.Changed("iterations") {
				opts.iterations = a.cfg.Iterations
			}
			if !flags.Changed("max-delay") {
				opts.maxDelay = a.cfg.MaxDelay
			}
			return a.runExchange(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.actors, "actors", 0, "concurrent senders (env LAMPORT_ACTORS)")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "sends per actor (env LAMPORT_ITERATIONS)")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", 0, "max pause before each send (env LAMPORT_MAX_DELAY)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "delay seed (0 = random)")
	cmd.Flags().BoolVar(&opts.noJournal, "no-journal", false, "do not record the run in the journal")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print events")
	cmd.Flags().StringVar(&opts.format, "format", "text", "summary format (text|json|yaml)")
	return cmd
}

func (a *app) runExchange(cmd *cobra.Command, opts *runOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	driverOpts := driver.Options{
		Actors:     opts.actors,
		Iterations: opts.iterations,
		MaxDelay:   opts.maxDelay,
		Seed:       opts.seed,
	}
	if err := driverOpts.Validate(); err != nil {
		return err
	}

	sinks := sink.Multi{sink.NewLogger(a.logger)}
	if !opts.quiet && opts.format == "text" {
		sinks = append(sinks, sink.NewConsole(a.stdout))
	}

	var summary runSummary
	finish := func() error { return nil }
	if !opts.noJournal {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		run, err := st.CreateRun(opts.actors, opts.iterations)
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		summary.RunID = run.ID
		sinks = append(sinks, sink.NewJournal(st, run.ID))
		finish = func() error {
			if err := st.FinishRun(run.ID); err != nil {
				return err
			}
			summary.Run, err = st.GetRun(run.ID)
			return err
		}
	}

	logger := a.logger
	if summary.RunID != "" {
		logger = logger.With("run_id", summary.RunID)
	}
	p0, err := process.New(0, process.WithSink(sinks), process.WithLogger(logger))
	if err != nil {
		return err
	}
	p1, err := process.New(1, process.WithSink(sinks), process.WithLogger(logger))
	if err != nil {
		return err
	}

	driverOpts.Logger = logger
	res, runErr := driver.Run(cmd.Context(), driverOpts, p0, p1)
	summary.Result = res

	// A cancelled run is still journaled as finished: its prefix is complete.
	if err := finish(); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if err := a.printSummary(opts.format, summary); err != nil {
		return err
	}
	return runErr
}

func (a *app) printSummary(format string, s runSummary) error {
	if format != "text" {
		return printStructured(a.stdout, format, s)
	}
	writeTextSummary(a.stderr, s)
	return nil
}

func writeTextSummary(w io.Writer, s runSummary) {
	if s.RunID != "" {
		fmt.Fprintf(w, "run %s: ", s.RunID)
	}
	fmt.Fprintf(w, "%d events sent\n", s.Result.Sent)
	for _, c := range s.Result.Clocks {
		fmt.Fprintf(w, "  process %d: clock=%d updates=%d\n", c.ProcessID, c.Time, c.Updates)
	}
}
