package notify

import (
	"context"
	"sync"
)

// Broker is the in-process Notifier used by the local backend and by
// tests. Dispatch is synchronous; callbacks must be quick and must not
// publish from within themselves.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]*brokerSub
	nextID int
	closed bool
}

type brokerSub struct {
	broker *Broker
	id     int
	owner  string
	fn     func(Event)
}

// NewBroker creates an in-process notifier.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*brokerSub)}
}

// Publish delivers the event to every matching subscriber.
func (b *Broker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	targets := make([]func(Event), 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.owner == "" || sub.owner == ev.Owner {
			targets = append(targets, sub.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
	return nil
}

// Subscribe registers fn for the owner's events; empty owner matches all.
func (b *Broker) Subscribe(_ context.Context, owner string, fn func(Event)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, context.Canceled
	}
	b.nextID++
	sub := &brokerSub{broker: b, id: b.nextID, owner: owner, fn: fn}
	b.subs[sub.id] = sub
	return sub, nil
}

// Close drops all subscriptions.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[int]*brokerSub)
	b.closed = true
	return nil
}

func (s *brokerSub) Cancel() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	delete(s.broker.subs, s.id)
	return nil
}
