// Package sqlite is the embedded-database backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fincontrol/internal/core"
	"fincontrol/internal/store"

	_ "modernc.org/sqlite"
)

// Repository implements store.Store and store.UserStore over a local
// SQLite database.
type Repository struct {
	db *sql.DB
}

// New opens (and if needed creates) the database and applies migrations.
func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListServices returns the owner's income records, newest start date
// first. Ties fall back to creation time so the order is stable.
func (r *Repository) ListServices(ctx context.Context, owner string) ([]core.Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client, description, value_cents, start_date, end_date, status
		FROM services
		WHERE owner_id = ?
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
			endDate   sql.NullString
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
		if endDate.Valid && endDate.String != "" {
			if svc.EndDate, err = core.ParseDate(endDate.String); err != nil {
				return nil, fmt.Errorf("parse end date %q: %w", endDate.String, err)
			}
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// SaveService upserts by record ID.
func (r *Repository) SaveService(ctx context.Context, owner string, svc core.Service) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (id, owner_id, client, description, value_cents, start_date, end_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client = excluded.client,
			description = excluded.description,
			value_cents = excluded.value_cents,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status`,
		svc.ID, owner, svc.Client, svc.Description, svc.Value.Cents,
		svc.StartDate.String(), nullableDate(svc.EndDate), string(svc.Status))
	if err != nil {
		return fmt.Errorf("save service: %w", err)
	}
	return nil
}

func (r *Repository) DeleteService(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM services WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return requireAffected(res)
}

// ListWithdrawals returns the owner's expense records, newest first.
func (r *Repository) ListWithdrawals(ctx context.Context, owner string) ([]core.Withdrawal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, value_cents, date, category
		FROM withdrawals
		WHERE owner_id = ?
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

// AddWithdrawal inserts the record. No upsert: withdrawals are never
// edited.
func (r *Repository) AddWithdrawal(ctx context.Context, owner string, wd core.Withdrawal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO withdrawals (id, owner_id, description, value_cents, date, category)
		VALUES (?, ?, ?, ?, ?, ?)`,
		wd.ID, owner, wd.Description, wd.Value.Cents, wd.Date.String(), string(wd.Category))
	if err != nil {
		return fmt.Errorf("add withdrawal: %w", err)
	}
	return nil
}

func (r *Repository) DeleteWithdrawal(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM withdrawals WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete withdrawal: %w", err)
	}
	return requireAffected(res)
}

// CreateUser implements store.UserStore.
func (r *Repository) CreateUser(ctx context.Context, u store.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByEmail implements store.UserStore.
func (r *Repository) UserByEmail(ctx context.Context, email string) (store.User, error) {
	var u store.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
