// Package services holds the application's orchestration layer: the
// Ledger validates records, assigns identity, writes through the storage
// port and announces changes on the notifier.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/notify"
	"fincontrol/internal/store"
)

// Ledger is the write/read facade over one owner-scoped record store.
type Ledger struct {
	store    store.Store
	notifier notify.Notifier
	logger   *log.Logger
}

func NewLedger(st store.Store, notifier notify.Notifier, logger *log.Logger) *Ledger {
	return &Ledger{
		store:    st,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentLedger),
	}
}

// Services returns the owner's income records in storage order.
func (l *Ledger) Services(ctx context.Context, owner string) ([]core.Service, error) {
	return l.store.ListServices(ctx, owner)
}

// Withdrawals returns the owner's expense records in storage order.
func (l *Ledger) Withdrawals(ctx context.Context, owner string) ([]core.Withdrawal, error) {
	return l.store.ListWithdrawals(ctx, owner)
}

// Summary computes the owner's dashboard totals from both lists.
func (l *Ledger) Summary(ctx context.Context, owner string) (core.Totals, error) {
	services, err := l.store.ListServices(ctx, owner)
	if err != nil {
		return core.Totals{}, fmt.Errorf("list services: %w", err)
	}
	withdrawals, err := l.store.ListWithdrawals(ctx, owner)
	if err != nil {
		return core.Totals{}, fmt.Errorf("list withdrawals: %w", err)
	}
	return core.ComputeTotals(services, withdrawals), nil
}

// AddService validates the record, assigns it an ID and persists it.
func (l *Ledger) AddService(ctx context.Context, owner string, svc core.Service) (core.Service, error) {
	svc.ID = uuid.New().String()
	if err := svc.Validate(); err != nil {
		return core.Service{}, err
	}
	if err := l.store.SaveService(ctx, owner, svc); err != nil {
		return core.Service{}, fmt.Errorf("save service: %w", err)
	}
	l.logger.InfoContext(ctx, "service created",
		log.FieldOperation, log.OpCreate, log.FieldOwner, owner,
		log.FieldRecordID, svc.ID, log.FieldAmount, svc.Value.Cents)
	l.publish(ctx, notify.NewEvent(owner, notify.ListServices, notify.OpCreated, svc.ID))
	return svc, nil
}

// UpdateService replaces an existing record in full. The ID must refer
// to a record the owner already has.
func (l *Ledger) UpdateService(ctx context.Context, owner string, svc core.Service) (core.Service, error) {
	if err := svc.Validate(); err != nil {
		return core.Service{}, err
	}
	existing, err := l.store.ListServices(ctx, owner)
	if err != nil {
		return core.Service{}, fmt.Errorf("list services: %w", err)
	}
	found := false
	for _, s := range existing {
		if s.ID == svc.ID {
			found = true
			break
		}
	}
	if !found {
		return core.Service{}, store.ErrNotFound
	}
	if err := l.store.SaveService(ctx, owner, svc); err != nil {
		return core.Service{}, fmt.Errorf("save service: %w", err)
	}
	l.logger.InfoContext(ctx, "service updated",
		log.FieldOperation, log.OpUpdate, log.FieldOwner, owner,
		log.FieldRecordID, svc.ID)
	l.publish(ctx, notify.NewEvent(owner, notify.ListServices, notify.OpUpdated, svc.ID))
	return svc, nil
}

func (l *Ledger) DeleteService(ctx context.Context, owner, id string) error {
	if err := l.store.DeleteService(ctx, owner, id); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "service deleted",
		log.FieldOperation, log.OpDelete, log.FieldOwner, owner, log.FieldRecordID, id)
	l.publish(ctx, notify.NewEvent(owner, notify.ListServices, notify.OpDeleted, id))
	return nil
}

// AddWithdrawal validates the record, assigns it an ID and persists it.
// Withdrawals have no update path: a wrong entry is deleted and re-added.
func (l *Ledger) AddWithdrawal(ctx context.Context, owner string, wd core.Withdrawal) (core.Withdrawal, error) {
	wd.ID = uuid.New().String()
	if err := wd.Validate(); err != nil {
		return core.Withdrawal{}, err
	}
	if err := l.store.AddWithdrawal(ctx, owner, wd); err != nil {
		return core.Withdrawal{}, fmt.Errorf("add withdrawal: %w", err)
	}
	l.logger.InfoContext(ctx, "withdrawal created",
		log.FieldOperation, log.OpCreate, log.FieldOwner, owner,
		log.FieldRecordID, wd.ID, log.FieldAmount, wd.Value.Cents)
	l.publish(ctx, notify.NewEvent(owner, notify.ListWithdrawals, notify.OpCreated, wd.ID))
	return wd, nil
}

func (l *Ledger) DeleteWithdrawal(ctx context.Context, owner, id string) error {
	if err := l.store.DeleteWithdrawal(ctx, owner, id); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "withdrawal deleted",
		log.FieldOperation, log.OpDelete, log.FieldOwner, owner, log.FieldRecordID, id)
	l.publish(ctx, notify.NewEvent(owner, notify.ListWithdrawals, notify.OpDeleted, id))
	return nil
}

// publish announces a committed write. Notification failure never fails
// the write itself; subscribers recover by re-fetching on reconnect.
func (l *Ledger) publish(ctx context.Context, ev notify.Event) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Publish(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "change notification failed",
			log.FieldError, err, log.FieldList, string(ev.List),
			log.FieldOwner, ev.Owner, log.FieldSeq, ev.Seq)
	}
}
