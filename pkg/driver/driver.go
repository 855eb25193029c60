// Package driver generates the stimulus for an exchange: concurrent actors
// that repeatedly make one process send to the other, with a random pause
// before each send.
//
// Actor i always sends in the same direction: even actors from the first
// process to the second, odd actors back. The payload is the iteration
// index. Nothing here coordinates the actors, so sends and receives on the
// two clocks interleave arbitrarily.
package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daviddao/lamportpair/pkg/process"
)

// Options configures a run.
type Options struct {
	Actors     int
	Iterations int
	// MaxDelay bounds the pause before each send; each pause is drawn
	// uniformly from [0, MaxDelay]. Zero disables pausing.
	MaxDelay time.Duration
	// Seed makes the delays reproducible. Zero picks a random seed.
	Seed   uint64
	Logger *slog.Logger
}

// Validate reports whether opts describe a runnable exchange.
func (o Options) Validate() error {
	if o.Actors < 1 {
		return fmt.Errorf("%w: actors must be at least 1", process.ErrInvalidArgument)
	}
	if o.Iterations < 0 || o.MaxDelay < 0 {
		return fmt.Errorf("%w: negative iterations or delay", process.ErrInvalidArgument)
	}
	return nil
}

// Reading is a process's clock at the end of a run.
type Reading struct {
	ProcessID int64  `json:"process_id" yaml:"process_id"`
	Time      int64  `json:"time" yaml:"time"`
	Updates   uint64 `json:"updates" yaml:"updates"`
}

// Result summarizes a run.
type Result struct {
	Sent   int64      `json:"sent" yaml:"sent"`
	Clocks [2]Reading `json:"clocks" yaml:"clocks"`
}

// Run drives a and b until every actor has made opts.Iterations sends or
// ctx is done. On cancellation it returns ctx's error together with the
// partial result.
func Run(ctx context.Context, opts Options, a, b *process.Process) (Result, error) {
	if a == nil || b == nil {
		return Result{}, fmt.Errorf("%w: driver needs two processes", process.ErrInvalidArgument)
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	logger.Info("run starting",
		"actors", opts.Actors,
		"iterations", opts.Iterations,
		"max_delay", opts.MaxDelay,
		"seed", seed,
	)

	var sent atomic.Int64
	procs := [2]*process.Process{a, b}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Actors; i++ {
		from, to := procs[i%2], procs[(i+1)%2]
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		g.Go(func() error {
			for j := 0; j < opts.Iterations; j++ {
				if err := pause(ctx, rng, opts.MaxDelay); err != nil {
					return err
				}
				if _, err := from.SendEvent(int64(j), to); err != nil {
					return fmt.Errorf("actor %d iteration %d: %w", i, j, err)
				}
				sent.Add(1)
			}
			logger.Debug("actor done", "actor", i, "from", from.ID(), "to", to.ID())
			return nil
		})
	}
	err := g.Wait()

	res := Result{Sent: sent.Load()}
	for i, p := range procs {
		res.Clocks[i] = Reading{ProcessID: p.ID(), Time: p.Time(), Updates: p.Updates()}
	}
	if err != nil {
		logger.Warn("run stopped early", "sent", res.Sent, "error", err)
		return res, err
	}
	logger.Info("run finished",
		"sent", res.Sent,
		"clock_a", res.Clocks[0].Time,
		"clock_b", res.Clocks[1].Time,
	)
	return res, nil
}

func pause(ctx context.Context, rng *rand.Rand, maxDelay time.Duration) error {
	if maxDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(rng.Int64N(int64(maxDelay) + 1)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
