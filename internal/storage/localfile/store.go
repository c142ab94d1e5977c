// Package localfile persists the two record lists as JSON arrays under two
// fixed file names in a data directory. It is the single-profile fallback
// backend: no authentication, one owner, insertion order preserved.
package localfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fincontrol/internal/core"
	"fincontrol/internal/store"
)

// Fixed storage keys, one per record type.
const (
	servicesFile    = "fincontrol.services.json"
	withdrawalsFile = "fincontrol.withdrawals.json"
)

// Store keeps both lists in memory and rewrites the backing file on every
// mutation. Files are read once, at open time.
type Store struct {
	mu          sync.Mutex
	dir         string
	services    []core.Service
	withdrawals []core.Withdrawal
}

// Open loads the data directory, creating it if needed. Missing files mean
// empty lists.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := &Store{dir: dir}
	if err := readJSON(filepath.Join(dir, servicesFile), &s.services); err != nil {
		return nil, fmt.Errorf("read services: %w", err)
	}
	if err := readJSON(filepath.Join(dir, withdrawalsFile), &s.withdrawals); err != nil {
		return nil, fmt.Errorf("read withdrawals: %w", err)
	}
	return s, nil
}

// ListServices returns the income records in insertion order. The owner is
// ignored: this backend holds exactly one profile.
func (s *Store) ListServices(_ context.Context, _ string) ([]core.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Service(nil), s.services...), nil
}

// SaveService upserts by ID.
func (s *Store) SaveService(_ context.Context, _ string, svc core.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i := range s.services {
		if s.services[i].ID == svc.ID {
			s.services[i] = svc
			replaced = true
			break
		}
	}
	if !replaced {
		s.services = append(s.services, svc)
	}
	return s.persistServices()
}

// DeleteService removes exactly the record with the given ID.
func (s *Store) DeleteService(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.services {
		if s.services[i].ID == id {
			s.services = append(s.services[:i], s.services[i+1:]...)
			return s.persistServices()
		}
	}
	return store.ErrNotFound
}

// ListWithdrawals returns the expense records in insertion order.
func (s *Store) ListWithdrawals(_ context.Context, _ string) ([]core.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Withdrawal(nil), s.withdrawals...), nil
}

// AddWithdrawal appends the record. Withdrawals have no update path.
func (s *Store) AddWithdrawal(_ context.Context, _ string, wd core.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawals = append(s.withdrawals, wd)
	return s.persistWithdrawals()
}

// DeleteWithdrawal removes exactly the record with the given ID.
func (s *Store) DeleteWithdrawal(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.withdrawals {
		if s.withdrawals[i].ID == id {
			s.withdrawals = append(s.withdrawals[:i], s.withdrawals[i+1:]...)
			return s.persistWithdrawals()
		}
	}
	return store.ErrNotFound
}

// Close is a no-op; every mutation is already on disk.
func (s *Store) Close() error {
	return nil
}

func (s *Store) persistServices() error {
	return writeJSON(filepath.Join(s.dir, servicesFile), s.services)
}

func (s *Store) persistWithdrawals() error {
	return writeJSON(filepath.Join(s.dir, withdrawalsFile), s.withdrawals)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// writeJSON writes via a temp file and rename so a crash mid-write never
// leaves a truncated list behind.
func writeJSON(path string, in any) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
