package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"fincontrol/internal/core"
	"fincontrol/internal/store"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestServiceCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	svc := core.Service{
		ID:          "svc-1",
		Client:      "Acme",
		Description: "site",
		Value:       core.Money{Cents: 123456},
		StartDate:   core.NewDate(2026, 2, 10),
		EndDate:     core.NewDate(2026, 3, 10),
		Status:      core.StatusInProgress,
	}
	if err := repo.SaveService(ctx, "alice", svc); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Upsert replaces in place.
	svc.Status = core.StatusCompleted
	if err := repo.SaveService(ctx, "alice", svc); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	services, err := repo.ListServices(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(services))
	}
	got := services[0]
	if got.Status != core.StatusCompleted || got.Value.Cents != 123456 {
		t.Fatalf("round trip: %+v", got)
	}
	if got.StartDate.String() != "2026-02-10" || got.EndDate.String() != "2026-03-10" {
		t.Fatalf("dates: %s / %s", got.StartDate, got.EndDate)
	}

	// Other owners see nothing.
	other, err := repo.ListServices(ctx, "bob")
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("owner isolation broken: %+v", other)
	}

	if err := repo.DeleteService(ctx, "bob", "svc-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-owner delete should be not found, got %v", err)
	}
	if err := repo.DeleteService(ctx, "alice", "svc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteService(ctx, "alice", "svc-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestServiceOptionalEndDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	svc := core.Service{
		ID:        "svc-open",
		Client:    "Globex",
		Value:     core.Money{Cents: 500},
		StartDate: core.NewDate(2026, 1, 1),
		Status:    core.StatusPending,
	}
	if err := repo.SaveService(ctx, "alice", svc); err != nil {
		t.Fatalf("save: %v", err)
	}
	services, err := repo.ListServices(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !services[0].EndDate.IsEmpty() {
		t.Fatalf("absent end date came back as %s", services[0].EndDate)
	}
}

func TestWithdrawalsOrderedByDateDesc(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	dates := []core.Date{
		core.NewDate(2026, 1, 5),
		core.NewDate(2026, 3, 1),
		core.NewDate(2026, 2, 14),
	}
	for i, d := range dates {
		wd := core.Withdrawal{
			ID:          string(rune('a' + i)),
			Description: "x",
			Value:       core.Money{Cents: 100},
			Date:        d,
			Category:    core.CategoryOther,
		}
		if err := repo.AddWithdrawal(ctx, "alice", wd); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	withdrawals, err := repo.ListWithdrawals(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(withdrawals) != 3 {
		t.Fatalf("expected 3, got %d", len(withdrawals))
	}
	want := []string{"2026-03-01", "2026-02-14", "2026-01-05"}
	for i, w := range withdrawals {
		if w.Date.String() != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], w.Date)
		}
	}
}

func TestUserStore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := store.User{ID: "u-1", Email: "ana@example.com", PasswordHash: "hash"}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.CreateUser(ctx, store.User{ID: "u-2", Email: "ana@example.com", PasswordHash: "x"}); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	got, err := repo.UserByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != "u-1" || got.PasswordHash != "hash" {
		t.Fatalf("user round trip: %+v", got)
	}

	if _, err := repo.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
