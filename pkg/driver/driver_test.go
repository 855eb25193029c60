package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/lamportpair/pkg/audit"
	"github.com/daviddao/lamportpair/pkg/model"
	"github.com/daviddao/lamportpair/pkg/process"
	"github.com/daviddao/lamportpair/pkg/sink"
)

type collector struct {
	notes chan model.Notification
}

func (c collector) Notify(n model.Notification) error {
	c.notes <- n
	return nil
}

func newPair(t *testing.T, s process.Sink) (*process.Process, *process.Process) {
	t.Helper()
	var opts []process.Option
	if s != nil {
		opts = append(opts, process.WithSink(s))
	}
	a, err := process.New(0, opts...)
	require.NoError(t, err)
	b, err := process.New(1, opts...)
	require.NoError(t, err)
	return a, b
}

func TestRun_NoLostUpdates(t *testing.T) {
	counter := &sink.Counter{}
	a, b := newPair(t, counter)

	const actors, iterations = 8, 200
	res, err := Run(context.Background(), Options{Actors: actors, Iterations: iterations}, a, b)
	require.NoError(t, err)

	total := int64(actors * iterations)
	assert.Equal(t, total, res.Sent)
	assert.Equal(t, total, counter.Sent())
	assert.Equal(t, total, counter.Received())

	// Half the actors send from each side, so every process sends total/2
	// events and receives total/2.
	for _, r := range res.Clocks {
		assert.Equal(t, uint64(total), r.Updates, "process %d", r.ProcessID)
		assert.GreaterOrEqual(t, r.Time, total, "process %d", r.ProcessID)
	}
	assert.Equal(t, int64(0), res.Clocks[0].ProcessID)
	assert.Equal(t, int64(1), res.Clocks[1].ProcessID)
}

func TestRun_SingleActorOneDirection(t *testing.T) {
	a, b := newPair(t, nil)
	res, err := Run(context.Background(), Options{Actors: 1, Iterations: 5}, a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Sent)
	assert.Equal(t, int64(5), a.Time(), "a only sends")
	assert.Equal(t, int64(5), b.Time(), "b receives 0..4, ending at max(4,4)+1")
}

func TestRun_WithDelaysAuditsClean(t *testing.T) {
	c := collector{notes: make(chan model.Notification, 1000)}
	a, b := newPair(t, c)

	opts := Options{Actors: 2, Iterations: 10, MaxDelay: 2 * time.Millisecond, Seed: 42}
	_, err := Run(context.Background(), opts, a, b)
	require.NoError(t, err)
	close(c.notes)

	var notes []model.Notification
	for n := range c.notes {
		notes = append(notes, n)
	}
	r := audit.Check(notes)
	assert.True(t, r.OK, "violations: %v", r.Violations)
	assert.Equal(t, 20, r.Sent)
	assert.Equal(t, 20, r.Received)
}

func TestRun_ZeroIterations(t *testing.T) {
	a, b := newPair(t, nil)
	res, err := Run(context.Background(), Options{Actors: 3}, a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Sent)
	assert.Equal(t, int64(0), a.Time())
}

func TestRun_Cancelled(t *testing.T) {
	a, b := newPair(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := Run(ctx, Options{Actors: 2, Iterations: 10, MaxDelay: time.Hour, Seed: 1}, a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.LessOrEqual(t, res.Sent, int64(20))
}

func TestRun_InvalidArguments(t *testing.T) {
	a, b := newPair(t, nil)
	cases := map[string]struct {
		opts Options
		a, b *process.Process
	}{
		"nil process":       {Options{Actors: 1}, a, nil},
		"no actors":         {Options{}, a, b},
		"negative loop":     {Options{Actors: 1, Iterations: -1}, a, b},
		"negative max wait": {Options{Actors: 1, MaxDelay: -time.Second}, a, b},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Run(context.Background(), tc.opts, tc.a, tc.b)
			require.ErrorIs(t, err, process.ErrInvalidArgument)
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, Options{Actors: 1}.Validate())
	assert.NoError(t, Options{Actors: 2, Iterations: 10, MaxDelay: time.Second}.Validate())
	assert.ErrorIs(t, Options{}.Validate(), process.ErrInvalidArgument)
	assert.ErrorIs(t, Options{Actors: 1, Iterations: -1}.Validate(), process.ErrInvalidArgument)
	assert.ErrorIs(t, Options{Actors: 1, MaxDelay: -time.Millisecond}.Validate(), process.ErrInvalidArgument)
}

func TestPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pause(ctx, nil, 0), context.Canceled)
	assert.NoError(t, pause(context.Background(), nil, 0))
}
