// Package audit checks a journaled run for the guarantees the exchange
// makes, after the fact.
//
// The journal records notifications, not clock readings, and concurrent
// notifications may be journaled in any order. The checks therefore avoid
// relying on journal order and look only at properties every correct run
// has regardless of interleaving:
//
//   - no process stamps two events with the same timestamp
//     (two equal stamps mean a lost update on the sender's clock),
//   - every sent event is received exactly once by the process it was
//     sent to, with the same payload and timestamp, and nothing is
//     received that was never sent,
//   - no timestamp is negative.
package audit

import (
	"fmt"
	"slices"

	"github.com/daviddao/lamportpair/pkg/clock"
	"github.com/daviddao/lamportpair/pkg/model"
)

// ViolationKind classifies a failed check.
type ViolationKind string

const (
	DuplicateTimestamp ViolationKind = "duplicate_timestamp"
	UnmatchedReceive   ViolationKind = "unmatched_receive"
	UndeliveredSend    ViolationKind = "undelivered_send"
	NegativeTimestamp  ViolationKind = "negative_timestamp"
	UnknownKind        ViolationKind = "unknown_kind"
)

// Violation is one failed check, tied to the notification that exposed it.
type Violation struct {
	Kind         ViolationKind      `json:"kind" yaml:"kind"`
	Detail       string             `json:"detail" yaml:"detail"`
	Notification model.Notification `json:"notification" yaml:"notification"`
}

// Report is the outcome of Check.
type Report struct {
	OK         bool        `json:"ok" yaml:"ok"`
	Sent       int         `json:"sent" yaml:"sent"`
	Received   int         `json:"received" yaml:"received"`
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
}

type delivery struct {
	origin, receiver, ts, payload int64
}

// Check audits the notifications of a single run.
func Check(notes []model.Notification) Report {
	var r Report
	stamped := map[[2]int64]model.Notification{}
	pending := map[delivery][]model.Notification{}

	flag := func(kind ViolationKind, n model.Notification, format string, args ...any) {
		r.Violations = append(r.Violations, Violation{
			Kind:         kind,
			Detail:       fmt.Sprintf(format, args...),
			Notification: n,
		})
	}

	for _, n := range notes {
		if !n.Kind.Valid() {
			flag(UnknownKind, n, "notification %d has kind %q", n.ID, n.Kind)
			continue
		}
		if n.Timestamp < 0 {
			flag(NegativeTimestamp, n, "process %d reported timestamp %d", n.ProcessID, n.Timestamp)
		}
		if n.Kind != model.NotifySent {
			continue
		}
		r.Sent++
		key := [2]int64{n.ProcessID, n.Timestamp}
		if prev, ok := stamped[key]; ok {
			flag(DuplicateTimestamp, n,
				"process %d stamped timestamp %d twice (payloads %d and %d)",
				n.ProcessID, n.Timestamp, prev.Payload, n.Payload)
		}
		stamped[key] = n
		d := delivery{n.ProcessID, n.PeerID, n.Timestamp, n.Payload}
		pending[d] = append(pending[d], n)
	}

	for _, n := range notes {
		if n.Kind != model.NotifyReceived {
			continue
		}
		r.Received++
		d := delivery{n.PeerID, n.ProcessID, n.Timestamp, n.Payload}
		sends := pending[d]
		if len(sends) == 0 {
			flag(UnmatchedReceive, n,
				"process %d received timestamp %d from process %d with no matching send",
				n.ProcessID, n.Timestamp, n.PeerID)
			continue
		}
		pending[d] = sends[1:]
	}

	for _, n := range notes {
		if n.Kind != model.NotifySent {
			continue
		}
		d := delivery{n.ProcessID, n.PeerID, n.Timestamp, n.Payload}
		if len(pending[d]) > 0 {
			flag(UndeliveredSend, n,
				"event stamped %d by process %d was never received by process %d",
				n.Timestamp, n.ProcessID, n.PeerID)
			pending[d] = pending[d][1:]
		}
	}

	r.OK = len(r.Violations) == 0
	return r
}

// Sorted returns a copy of notes in Lamport total order: by timestamp, then
// by the event's origin process, with a send ahead of its receive.
func Sorted(notes []model.Notification) []model.Notification {
	out := slices.Clone(notes)
	slices.SortStableFunc(out, func(a, b model.Notification) int {
		ea, eb := a.Event(), b.Event()
		switch {
		case clock.TotalOrderLess(ea.Timestamp, ea.OriginID, eb.Timestamp, eb.OriginID):
			return -1
		case clock.TotalOrderLess(eb.Timestamp, eb.OriginID, ea.Timestamp, ea.OriginID):
			return 1
		case a.Kind == b.Kind:
			return 0
		case a.Kind == model.NotifySent:
			return -1
		default:
			return 1
		}
	})
	return out
}
