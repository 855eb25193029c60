// Package sink provides the observability sinks a process reports its
// send and receive notifications to.
//
// Sinks are called concurrently from every goroutine acting on a process,
// so each implementation here is safe for concurrent use. A sink error is
// reported back to the process, which logs it and carries on.
package sink

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/daviddao/lamportpair/pkg/model"
	"github.com/daviddao/lamportpair/pkg/store"
)

// Sink receives notifications.
type Sink interface {
	Notify(n model.Notification) error
}

// Console writes one human-readable line per notification.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console { return &Console{w: w} }

// Notify writes n as a single line. Lines from concurrent callers never
// interleave.
func (c *Console) Notify(n model.Notification) error {
	line, err := FormatLine(n)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = io.WriteString(c.w, line)
	return err
}

// FormatLine renders n in the console format, newline included.
func FormatLine(n model.Notification) (string, error) {
	switch n.Kind {
	case model.NotifySent:
		return fmt.Sprintf("send event:: sender_process_id=%d receiver_process_id=%d value=%d time=%d\n",
			n.ProcessID, n.PeerID, n.Payload, n.Timestamp), nil
	case model.NotifyReceived:
		return fmt.Sprintf("event received: receiver_process_id=%d sender_process_id=%d value=%d time=%d\n",
			n.ProcessID, n.PeerID, n.Payload, n.Timestamp), nil
	default:
		return "", fmt.Errorf("format notification: unknown kind %q", n.Kind)
	}
}

// Logger emits each notification as a structured log record at debug level.
type Logger struct {
	l *slog.Logger
}

// NewLogger returns a Logger sink backed by l.
func NewLogger(l *slog.Logger) *Logger { return &Logger{l: l} }

func (s *Logger) Notify(n model.Notification) error {
	msg := "event sent"
	if n.Kind == model.NotifyReceived {
		msg = "event received"
	}
	s.l.Debug(msg,
		"process_id", n.ProcessID,
		"peer_id", n.PeerID,
		"payload", n.Payload,
		"timestamp", n.Timestamp,
	)
	return nil
}

// Journal appends notifications to a run in the SQLite journal.
type Journal struct {
	j     store.Journaler
	runID string
}

// NewJournal returns a Journal sink recording under runID.
func NewJournal(j store.Journaler, runID string) *Journal {
	return &Journal{j: j, runID: runID}
}

func (s *Journal) Notify(n model.Notification) error {
	n.RunID = s.runID
	if _, err := s.j.InsertNotification(&n); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

// Multi fans a notification out to every sink. All sinks are tried even
// when one fails; their errors are joined.
type Multi []Sink

func (m Multi) Notify(n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Counter counts notifications by kind.
type Counter struct {
	sent     atomic.Int64
	received atomic.Int64
}

func (c *Counter) Notify(n model.Notification) error {
	switch n.Kind {
	case model.NotifySent:
		c.sent.Add(1)
	case model.NotifyReceived:
		c.received.Add(1)
	}
	return nil
}

// Sent returns the number of send notifications seen.
func (c *Counter) Sent() int64 { return c.sent.Load() }

// Received returns the number of receive notifications seen.
func (c *Counter) Received() int64 { return c.received.Load() }
