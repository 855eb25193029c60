// Package model defines the core domain types for lamportpair.
//
// Lamportpair models two independent processes exchanging events, each
// keeping a Lamport logical clock (1978). Every event carries the sender's
// clock value at the moment it was created; on receipt the receiver's clock
// advances to max(own, received) + 1. No wall-clock time takes part in the
// ordering.
package model

import "time"

// Event is what a process hands to its peer. It is created exactly once,
// inside Process.SendEvent, and never mutated afterwards.
type Event struct {
	OriginID  int64 `json:"origin_process_id" yaml:"origin_process_id"`
	Timestamp int64 `json:"timestamp" yaml:"timestamp"`
	Payload   int64 `json:"payload" yaml:"payload"`
}

// NotificationKind enumerates the observable steps of an exchange.
type NotificationKind string

const (
	NotifySent     NotificationKind = "sent"
	NotifyReceived NotificationKind = "received"
)

// Valid reports whether k is one of the known kinds.
func (k NotificationKind) Valid() bool {
	return k == NotifySent || k == NotifyReceived
}

// Notification is the observability record emitted on every send and
// every receive. ProcessID is the process that emitted it; PeerID is the
// other end (the receiver for a send, the origin for a receive). Timestamp
// is always the one carried by the event.
type Notification struct {
	ID        int64            `json:"id,omitempty" yaml:"id,omitempty"`
	RunID     string           `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Kind      NotificationKind `json:"kind" yaml:"kind"`
	ProcessID int64            `json:"process_id" yaml:"process_id"`
	PeerID    int64            `json:"peer_id" yaml:"peer_id"`
	Payload   int64            `json:"payload" yaml:"payload"`
	Timestamp int64            `json:"timestamp" yaml:"timestamp"`
	At        time.Time        `json:"at" yaml:"at"`
}

// SentBy returns the notification a sender emits for e.
func SentBy(e Event, receiverID int64) Notification {
	return Notification{
		Kind:      NotifySent,
		ProcessID: e.OriginID,
		PeerID:    receiverID,
		Payload:   e.Payload,
		Timestamp: e.Timestamp,
		At:        time.Now().UTC(),
	}
}

// ReceivedBy returns the notification a receiver emits for e.
func ReceivedBy(e Event, receiverID int64) Notification {
	return Notification{
		Kind:      NotifyReceived,
		ProcessID: receiverID,
		PeerID:    e.OriginID,
		Payload:   e.Payload,
		Timestamp: e.Timestamp,
		At:        time.Now().UTC(),
	}
}

// Event reconstructs the event a notification describes.
func (n Notification) Event() Event {
	origin := n.ProcessID
	if n.Kind == NotifyReceived {
		origin = n.PeerID
	}
	return Event{OriginID: origin, Timestamp: n.Timestamp, Payload: n.Payload}
}

// Run describes one driver execution recorded in the journal.
type Run struct {
	ID         string     `json:"id" yaml:"id"`
	Actors     int        `json:"actors" yaml:"actors"`
	Iterations int        `json:"iterations" yaml:"iterations"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}
