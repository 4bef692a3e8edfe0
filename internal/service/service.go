package service

import (
	"context"
	"errors"

	"github.com/rookgm/kopisort/internal/models"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/rookgm/kopisort/internal/service Transactor,Notifier,OrderCache,OrderRepository,BatchRepository,SortingRepository,PaymentRepository,NotificationRepository,Classifier,ProofStore,Recorder

// Transactor runs fn in one storage transaction with retry on transient faults
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers best-effort notifications. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, notice models.Notice)
}

// OrderCache keeps order snapshots for reads
type OrderCache interface {
	// Get returns cached order or error on miss
	Get(ctx context.Context, id string) (*models.Order, error)
	// Set stores order snapshot
	Set(ctx context.Context, order *models.Order) error
	// Invalidate drops cached orders
	Invalidate(ctx context.Context, ids ...string) error
}

// orNotFound translates storage miss into NotFoundError
func orNotFound(err error, entity, id string) error {
	if errors.Is(err, models.ErrDataNotFound) {
		return models.NewNotFoundError(entity, id)
	}
	return err
}

// orConflict translates unique violation into ConflictError
func orConflict(err error, reason string) error {
	if errors.Is(err, models.ErrConflictData) {
		return models.NewConflictError(reason)
	}
	return err
}

func orderLink(orderID string) string {
	return "/orders/" + orderID
}
