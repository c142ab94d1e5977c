// Package notify carries change notifications between writers and
// interested sessions. A write publishes an Event; subscribers react by
// re-fetching the affected list, never by applying the event payload.
package notify

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"
)

const (
	ListServices    ListKind = "services"
	ListWithdrawals ListKind = "withdrawals"
)

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

type (
	// ListKind names one of the two owner-scoped record lists.
	ListKind string

	// Op is the kind of mutation that happened.
	Op string

	// Event describes one mutation of an owner's list. Seq is monotonic
	// within the publishing process and lets consumers discard stale
	// observations.
	Event struct {
		Owner string    `json:"owner"`
		List  ListKind  `json:"list"`
		Op    Op        `json:"op"`
		ID    string    `json:"id"`
		Seq   uint64    `json:"seq"`
		At    time.Time `json:"at"`
	}

	// Subscription is a cancelable registration.
	Subscription interface {
		Cancel() error
	}

	// Notifier is the change-notification port. Subscribe with an empty
	// owner to observe every owner's events.
	Notifier interface {
		Publish(ctx context.Context, ev Event) error
		Subscribe(ctx context.Context, owner string, fn func(Event)) (Subscription, error)
		Close() error
	}
)

var seqCounter atomic.Uint64

// NewEvent stamps an event with the next process-local sequence number.
func NewEvent(owner string, list ListKind, op Op, id string) Event {
	return Event{
		Owner: owner,
		List:  list,
		Op:    op,
		ID:    id,
		Seq:   seqCounter.Add(1),
		At:    time.Now().UTC(),
	}
}

// Marshal encodes an event for transport.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes an event from transport bytes.
func UnmarshalEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
