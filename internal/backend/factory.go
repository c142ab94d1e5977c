// Package backend assembles a storage adapter and a change notifier from
// configuration. The rest of the application only ever sees the ports.
package backend

import (
	"context"
	"fmt"

	"fincontrol/internal/config"
	"fincontrol/internal/log"
	"fincontrol/internal/notify"
	"fincontrol/internal/storage/localfile"
	"fincontrol/internal/storage/postgres"
	"fincontrol/internal/storage/sqlite"
	"fincontrol/internal/store"
)

// Type identifies a storage backend.
type Type string

const (
	TypeLocalFile Type = "localfile"
	TypeSQLite    Type = "sqlite"
	TypePostgres  Type = "postgres"
)

// Result is an assembled backend. Users is nil for the local file
// backend, which runs as a single unauthenticated profile. Cleanup must
// be called on shutdown and is safe to call once.
type Result struct {
	Type     Type
	Store    store.Store
	Users    store.UserStore
	Notifier notify.Notifier
	Cleanup  func()
}

// Factory builds backends from configuration.
type Factory struct {
	cfg    *config.Config
	logger *log.Logger
}

func NewFactory(cfg *config.Config, logger *log.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger.WithComponent(log.ComponentBackend)}
}

// Create assembles the configured backend.
func (f *Factory) Create(ctx context.Context) (*Result, error) {
	switch Type(f.cfg.DataBackend) {
	case TypeLocalFile:
		return f.createLocalFile()
	case TypeSQLite:
		return f.createSQLite()
	case TypePostgres:
		return f.createPostgres(ctx)
	default:
		return nil, fmt.Errorf("unknown data backend %q", f.cfg.DataBackend)
	}
}

func (f *Factory) createLocalFile() (*Result, error) {
	st, err := localfile.Open(f.cfg.LocalDataDir)
	if err != nil {
		return nil, fmt.Errorf("open local file store: %w", err)
	}
	broker := notify.NewBroker()
	f.logger.Info("backend ready", log.FieldBackend, string(TypeLocalFile),
		"data_dir", f.cfg.LocalDataDir)
	return &Result{
		Type:     TypeLocalFile,
		Store:    st,
		Notifier: broker,
		Cleanup: func() {
			broker.Close()
			st.Close()
		},
	}, nil
}

func (f *Factory) createSQLite() (*Result, error) {
	repo, err := sqlite.New(f.cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	notifier := f.amqpOrBroker()
	f.logger.Info("backend ready", log.FieldBackend, string(TypeSQLite),
		"db_path", f.cfg.SQLiteDBPath)
	return &Result{
		Type:     TypeSQLite,
		Store:    repo,
		Users:    repo,
		Notifier: notifier,
		Cleanup: func() {
			notifier.Close()
			repo.Close()
		},
	}, nil
}

func (f *Factory) createPostgres(ctx context.Context) (*Result, error) {
	repo, err := postgres.New(ctx, f.cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}

	// Change events ride AMQP when a broker is configured, otherwise the
	// database's own LISTEN/NOTIFY channel.
	var notifier notify.Notifier
	if f.cfg.AMQPURL != "" {
		notifier = f.amqpOrBroker()
	} else {
		notifier = postgres.NewListener(repo.Pool(), f.logger)
	}

	f.logger.Info("backend ready", log.FieldBackend, string(TypePostgres))
	return &Result{
		Type:     TypePostgres,
		Store:    repo,
		Users:    repo,
		Notifier: notifier,
		Cleanup: func() {
			notifier.Close()
			repo.Close()
		},
	}, nil
}

// amqpOrBroker connects to AMQP when configured and degrades to the
// in-process broker otherwise. Notifications are an enhancement, so a
// broker outage must not stop the service from starting.
func (f *Factory) amqpOrBroker() notify.Notifier {
	if f.cfg.AMQPURL == "" {
		return notify.NewBroker()
	}
	n, err := notify.NewAMQPNotifier(f.cfg.AMQPURL, f.cfg.AMQPExchange)
	if err != nil {
		f.logger.Warn("AMQP unavailable, falling back to in-process notifications",
			log.FieldError, err)
		return notify.NewBroker()
	}
	f.logger.Info("AMQP change notifications enabled", "exchange", f.cfg.AMQPExchange)
	return n
}
