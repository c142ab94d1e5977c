package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fincontrol/internal/log"
	"fincontrol/internal/notify"
)

// Channel is the single NOTIFY channel all change events ride on. Owner
// filtering happens in the dispatcher, not in the database.
const Channel = "fincontrol_changes"

// Listener is a notify.Notifier backed by Postgres LISTEN/NOTIFY.
// Publishes from any process connected to the same database reach every
// listening process, including the publisher itself.
type Listener struct {
	pool   *pgxpool.Pool
	logger *log.Logger

	mu     sync.Mutex
	subs   map[int]*pgSub
	nextID int
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

type pgSub struct {
	listener *Listener
	id       int
	owner    string
	fn       func(notify.Event)
}

// NewListener starts the background LISTEN loop on a dedicated
// connection from the pool. The loop reconnects with backoff if the
// connection drops.
func NewListener(pool *pgxpool.Pool, logger *log.Logger) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		pool:   pool,
		logger: logger.WithComponent(log.ComponentNotify),
		subs:   make(map[int]*pgSub),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

// Publish sends the event through pg_notify. Delivery to local
// subscribers happens via the listen loop, the same path remote events
// take.
func (l *Listener) Publish(ctx context.Context, ev notify.Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := l.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Subscribe registers fn for the owner's events; empty owner matches all.
func (l *Listener) Subscribe(ctx context.Context, owner string, fn func(notify.Event)) (notify.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, context.Canceled
	}
	l.nextID++
	sub := &pgSub{listener: l, id: l.nextID, owner: owner, fn: fn}
	l.subs[sub.id] = sub

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub, nil
}

// Close stops the listen loop and drops all subscriptions. The pool is
// owned by the repository and is not closed here.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.subs = make(map[int]*pgSub)
	l.mu.Unlock()

	l.cancel()
	<-l.done
	return nil
}

func (s *pgSub) Cancel() error {
	s.listener.mu.Lock()
	defer s.listener.mu.Unlock()
	delete(s.listener.subs, s.id)
	return nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	backoff := time.Second
	for {
		if err := l.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("listen connection lost, reconnecting",
				log.FieldError, err, "backoff", backoff.String())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

// listenOnce holds one connection, LISTENs and dispatches notifications
// until the connection fails or ctx is canceled.
func (l *Listener) listenOnce(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Debug("listening for changes", "channel", Channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		ev, err := notify.UnmarshalEvent([]byte(n.Payload))
		if err != nil {
			l.logger.Warn("dropping malformed notification", log.FieldError, err)
			continue
		}
		l.dispatch(ev)
	}
}

func (l *Listener) dispatch(ev notify.Event) {
	l.mu.Lock()
	targets := make([]func(notify.Event), 0, len(l.subs))
	for _, sub := range l.subs {
		if sub.owner == "" || sub.owner == ev.Owner {
			targets = append(targets, sub.fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}
