package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rookgm/kopisort/internal/models"
	"go.uber.org/zap"
)

// SortingRepository is interface for interacting with sorting result data
type SortingRepository interface {
	// UpsertResult replaces current sorting result of the order
	UpsertResult(ctx context.Context, res *models.SortingResult) (*models.SortingResult, error)
	// AppendHistory inserts ledger row
	AppendHistory(ctx context.Context, h *models.SortingResultHistory) (*models.SortingResultHistory, error)
	// GetResult returns current sorting result of the order
	GetResult(ctx context.Context, orderID string) (*models.SortingResult, error)
	// GetHistory returns ledger rows of the order, oldest first
	GetHistory(ctx context.Context, orderID string) ([]models.SortingResultHistory, error)
	// GetResults returns current results of one user's orders or, for nil userID, of every order
	GetResults(ctx context.Context, userID *uint64) ([]models.SortingResult, error)
	// GetTotals sums bean counts and averages accuracy of results matching filter
	GetTotals(ctx context.Context, f models.StatsFilter) (models.SortingTotals, error)
}

// SortingService implements SortingService interface
type SortingService struct {
	repo   SortingRepository
	orders OrderRepository
	tx     Transactor
	logger *zap.Logger
	now    func() time.Time
}

// NewSortingService creates new SortingService instance
func NewSortingService(repo SortingRepository, orders OrderRepository, tx Transactor, logger *zap.Logger) *SortingService {
	return &SortingService{
		repo:   repo,
		orders: orders,
		tx:     tx,
		logger: logger,
		now:    time.Now,
	}
}

// RecordResult derives percentages and weights from raw counts, replaces current
// result and appends a history row in the same transaction
func (ss *SortingService) RecordResult(ctx context.Context, in models.SortingInput) (*models.SortingResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var result *models.SortingResult
	err := ss.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := ss.orders.GetOrderByID(ctx, in.OrderID); err != nil {
			return orNotFound(err, "order", in.OrderID)
		}

		res := in.Derive(ss.now())
		res.ID = "SORT-" + uuid.NewString()

		var err error
		result, err = ss.repo.UpsertResult(ctx, &res)
		if err != nil {
			return err
		}

		entry := result.HistoryEntry()
		_, err = ss.repo.AppendHistory(ctx, &entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	ss.logger.Info("sorting result recorded",
		zap.String("order_id", result.OrderID),
		zap.Int("total_beans", result.TotalBeans),
		zap.Float64("healthy_percentage", result.HealthyPercentage))

	return result, nil
}

// Current returns current sorting result of an order visible to principal
func (ss *SortingService) Current(ctx context.Context, principal *models.TokenPayload, orderID string) (*models.SortingResult, error) {
	var result *models.SortingResult
	err := ss.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := ss.checkAccess(ctx, principal, orderID); err != nil {
			return err
		}

		var err error
		result, err = ss.repo.GetResult(ctx, orderID)
		return orNotFound(err, "sorting result of order", orderID)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// History returns sorting history of an order visible to principal, oldest first
func (ss *SortingService) History(ctx context.Context, principal *models.TokenPayload, orderID string) ([]models.SortingResultHistory, error) {
	var history []models.SortingResultHistory
	err := ss.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := ss.checkAccess(ctx, principal, orderID); err != nil {
			return err
		}

		var err error
		history, err = ss.repo.GetHistory(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return history, nil
}

// List returns current results of every order for operator and of own orders for customer
func (ss *SortingService) List(ctx context.Context, principal *models.TokenPayload) ([]models.SortingResult, error) {
	var userID *uint64
	if !principal.IsAdmin() {
		userID = &principal.UserID
	}

	var results []models.SortingResult
	err := ss.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		results, err = ss.repo.GetResults(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Dashboard rolls sorting results and orders of the period up into statistics
func (ss *SortingService) Dashboard(ctx context.Context, principal *models.TokenPayload, period models.Period, year, month int) (*models.Dashboard, error) {
	f, err := models.NewStatsFilter(principal, period, year, month, ss.now())
	if err != nil {
		return nil, err
	}

	var (
		totals models.SortingTotals
		orders []models.Order
	)
	err = ss.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if totals, err = ss.repo.GetTotals(ctx, f); err != nil {
			return err
		}
		orders, err = ss.orders.GetOrdersForStats(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	d := models.NewDashboard(totals, orders)
	return &d, nil
}

func (ss *SortingService) checkAccess(ctx context.Context, principal *models.TokenPayload, orderID string) error {
	order, err := ss.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return orNotFound(err, "order", orderID)
	}
	if !principal.CanAccess(order.UserID) {
		return models.NewAccessDeniedError("order belongs to another user")
	}
	return nil
}
