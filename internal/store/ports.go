// Package store defines the canonical persistence ports. Every backend
// adapter implements these interfaces; backend column names and ordering
// quirks stay behind them and never reach the domain types.
package store

import (
	"context"
	"errors"
	"time"

	"fincontrol/internal/core"
)

var (
	// ErrNotFound is returned when a record or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when signing up an already-registered
	// email address.
	ErrDuplicateEmail = errors.New("email already registered")
)

// User is an account that owns one pair of record lists.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type (
	// ServiceStore persists income records. SaveService is an upsert
	// keyed by record ID.
	ServiceStore interface {
		ListServices(ctx context.Context, owner string) ([]core.Service, error)
		SaveService(ctx context.Context, owner string, svc core.Service) error
		DeleteService(ctx context.Context, owner, id string) error
	}

	// WithdrawalStore persists expense records. Withdrawals are
	// insert-only; there is no update operation by design.
	WithdrawalStore interface {
		ListWithdrawals(ctx context.Context, owner string) ([]core.Withdrawal, error)
		AddWithdrawal(ctx context.Context, owner string, wd core.Withdrawal) error
		DeleteWithdrawal(ctx context.Context, owner, id string) error
	}

	// UserStore persists accounts for the backends that support
	// authentication.
	UserStore interface {
		CreateUser(ctx context.Context, u User) error
		UserByEmail(ctx context.Context, email string) (User, error)
	}

	// Store is the full persistence surface of one backend.
	Store interface {
		ServiceStore
		WithdrawalStore
		Close() error
	}
)
