// Package process implements a participant in the event exchange.
//
// A Process owns exactly one Lamport clock and mediates every access to it
// through SendEvent and ReceiveEvent. A *Process is meant to be shared by
// any number of goroutines for the lifetime of the program: its id never
// changes and its clock is the only mutable state, updated exclusively
// through the clock's atomic operations. There is no broader lock.
//
// Delivery is synchronous. SendEvent returns only after the target's
// ReceiveEvent has completed. ReceiveEvent never calls back into SendEvent,
// so two processes exchanging events concurrently cannot deadlock.
package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/daviddao/lamportpair/pkg/clock"
	"github.com/daviddao/lamportpair/pkg/model"
)

// ErrInvalidArgument reports caller errors: a negative id, a nil target, or
// an event carrying a negative timestamp.
var ErrInvalidArgument = errors.New("invalid argument")

// Sink receives the observability notifications a Process emits. A failing
// sink is logged and otherwise ignored.
type Sink interface {
	Notify(n model.Notification) error
}

// Process is one participant in the exchange.
type Process struct {
	id     int64
	clock  clock.Clock
	sink   Sink
	logger *slog.Logger
}

// Option configures a Process.
type Option func(*Process)

// WithSink routes notifications to s.
func WithSink(s Sink) Option {
	return func(p *Process) { p.sink = s }
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Process) { p.logger = l }
}

// New returns a Process with the given id and its clock at 0.
func New(id int64, opts ...Option) (*Process, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: process id %d is negative", ErrInvalidArgument, id)
	}
	p := &Process{id: id}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p.logger = p.logger.With("process_id", id)
	return p, nil
}

// ID returns the immutable process id.
func (p *Process) ID() int64 { return p.id }

// Time returns the current clock value.
func (p *Process) Time() int64 { return p.clock.Value() }

// Updates returns how many clock updates this process has applied.
func (p *Process) Updates() uint64 { return p.clock.Updates() }

// SendEvent stamps a new event with this process's clock (IR1), reports it,
// and delivers it synchronously to target. Sending to p itself is allowed
// and produces a send/receive pair on the same clock. The returned event is
// the one that was delivered.
func (p *Process) SendEvent(payload int64, target *Process) (model.Event, error) {
	if target == nil {
		return model.Event{}, fmt.Errorf("%w: nil target", ErrInvalidArgument)
	}

	e := model.Event{
		OriginID:  p.id,
		Timestamp: p.clock.BumpForSend(),
		Payload:   payload,
	}
	p.notify(model.SentBy(e, target.id))

	if _, err := target.ReceiveEvent(e); err != nil {
		return e, fmt.Errorf("deliver to process %d: %w", target.id, err)
	}
	return e, nil
}

// ReceiveEvent reports e and advances this process's clock past the
// event's timestamp (IR2). It returns the new clock value.
func (p *Process) ReceiveEvent(e model.Event) (int64, error) {
	if e.Timestamp < 0 {
		return 0, fmt.Errorf("%w: event from process %d has timestamp %d",
			ErrInvalidArgument, e.OriginID, e.Timestamp)
	}

	p.notify(model.ReceivedBy(e, p.id))

	ts, err := p.clock.BumpForReceive(e.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return ts, nil
}

func (p *Process) notify(n model.Notification) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Notify(n); err != nil {
		p.logger.Warn("notification sink failed",
			"kind", n.Kind,
			"peer_id", n.PeerID,
			"timestamp", n.Timestamp,
			"error", err,
		)
	}
}
