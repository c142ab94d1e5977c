package auth

import (
	"context"
	"errors"
	"sync"

	"fincontrol/internal/notify"
)

// Session is the explicit lifecycle object behind one live client
// connection. Init subscribes it to the owner's change events; Dispose
// tears the subscription down. A disposed session is never reused.
//
// Events are delivered on the Changes channel. The channel is buffered
// and lossy: when the consumer lags, older events are dropped, which is
// safe because consumers react by re-fetching state, not by replaying
// events.
type Session struct {
	UserID string

	notifier notify.Notifier
	changes  chan notify.Event

	mu       sync.Mutex
	sub      notify.Subscription
	disposed bool
}

const sessionBuffer = 16

var ErrSessionDisposed = errors.New("session already disposed")

// NewSession creates a session for the user. Call Init before reading
// Changes.
func NewSession(userID string, notifier notify.Notifier) *Session {
	return &Session{
		UserID:   userID,
		notifier: notifier,
		changes:  make(chan notify.Event, sessionBuffer),
	}
}

// Init subscribes the session to its owner's change events.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrSessionDisposed
	}
	if s.sub != nil {
		return nil
	}
	sub, err := s.notifier.Subscribe(ctx, s.UserID, s.deliver)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// CurrentUser returns the owner this session acts for.
func (s *Session) CurrentUser() string {
	return s.UserID
}

// Changes is the session's event stream. It is closed by Dispose.
func (s *Session) Changes() <-chan notify.Event {
	return s.changes
}

// Dispose cancels the subscription and closes the Changes channel.
// Safe to call more than once.
func (s *Session) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	close(s.changes)
	if s.sub != nil {
		return s.sub.Cancel()
	}
	return nil
}

func (s *Session) deliver(ev notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	select {
	case s.changes <- ev:
	default:
		// Consumer is behind; drop the oldest and queue the newest.
		select {
		case <-s.changes:
		default:
		}
		select {
		case s.changes <- ev:
		default:
		}
	}
}
