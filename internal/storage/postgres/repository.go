// Package postgres is the remote-backend adapter, backed by a hosted
// Postgres instance through pgx. Change notifications ride the database's
// own LISTEN/NOTIFY channel, so concurrent sessions against the same
// database observe each other without extra infrastructure.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fincontrol/internal/core"
	"fincontrol/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS services (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    client TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    value_cents BIGINT NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_services_owner ON services(owner_id);

CREATE TABLE IF NOT EXISTS withdrawals (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    description TEXT NOT NULL,
    value_cents BIGINT NOT NULL,
    date DATE NOT NULL,
    category TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_withdrawals_owner ON withdrawals(owner_id);
`

// Repository implements store.Store and store.UserStore over pgx.
type Repository struct {
	pool *pgxpool.Pool
}

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Pool exposes the underlying pool for the LISTEN/NOTIFY notifier.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// ListServices returns the owner's income records, newest start date first.
func (r *Repository) ListServices(ctx context.Context, owner string) ([]core.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client, description, value_cents,
		       to_char(start_date, 'YYYY-MM-DD'),
		       to_char(end_date, 'YYYY-MM-DD'),
		       status
		FROM services
		WHERE owner_id = $1
		ORDER BY start_date DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var services []core.Service
	for rows.Next() {
		var (
			svc       core.Service
			cents     int64
			startDate string
			endDate   *string
			status    string
		)
		if err := rows.Scan(&svc.ID, &svc.Client, &svc.Description, &cents, &startDate, &endDate, &status); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		svc.Value = core.Money{Cents: cents}
		svc.Status = core.ServiceStatus(status)
		if svc.StartDate, err = core.ParseDate(startDate); err != nil {
			return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
		}
		if endDate != nil {
			if svc.EndDate, err = core.ParseDate(*endDate); err != nil {
				return nil, fmt.Errorf("parse end date %q: %w", *endDate, err)
			}
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// SaveService upserts by record ID.
func (r *Repository) SaveService(ctx context.Context, owner string, svc core.Service) error {
	var endDate *string
	if !svc.EndDate.IsEmpty() {
		s := svc.EndDate.String()
		endDate = &s
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, owner_id, client, description, value_cents, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8)
		ON CONFLICT (id) DO UPDATE SET
			client = EXCLUDED.client,
			description = EXCLUDED.description,
			value_cents = EXCLUDED.value_cents,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			status = EXCLUDED.status`,
		svc.ID, owner, svc.Client, svc.Description, svc.Value.Cents,
		svc.StartDate.String(), endDate, string(svc.Status))
	if err != nil {
		return fmt.Errorf("save service: %w", err)
	}
	return nil
}

func (r *Repository) DeleteService(ctx context.Context, owner, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM services WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListWithdrawals returns the owner's expense records, newest first.
func (r *Repository) ListWithdrawals(ctx context.Context, owner string) ([]core.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, value_cents, to_char(date, 'YYYY-MM-DD'), category
		FROM withdrawals
		WHERE owner_id = $1
		ORDER BY date DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []core.Withdrawal
	for rows.Next() {
		var (
			wd       core.Withdrawal
			cents    int64
			date     string
			category string
		)
		if err := rows.Scan(&wd.ID, &wd.Description, &cents, &date, &category); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		wd.Value = core.Money{Cents: cents}
		wd.Category = core.WithdrawalCategory(category)
		if wd.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		withdrawals = append(withdrawals, wd)
	}
	return withdrawals, rows.Err()
}

// AddWithdrawal inserts the record. Withdrawals are never edited.
func (r *Repository) AddWithdrawal(ctx context.Context, owner string, wd core.Withdrawal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO withdrawals (id, owner_id, description, value_cents, date, category)
		VALUES ($1, $2, $3, $4, $5::date, $6)`,
		wd.ID, owner, wd.Description, wd.Value.Cents, wd.Date.String(), string(wd.Category))
	if err != nil {
		return fmt.Errorf("add withdrawal: %w", err)
	}
	return nil
}

func (r *Repository) DeleteWithdrawal(ctx context.Context, owner, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM withdrawals WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateUser implements store.UserStore.
func (r *Repository) CreateUser(ctx context.Context, u store.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		u.ID, u.Email, u.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByEmail implements store.UserStore.
func (r *Repository) UserByEmail(ctx context.Context, email string) (store.User, error) {
	var u store.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}
