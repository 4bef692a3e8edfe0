package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rookgm/kopisort/internal/classifier"
	"github.com/rookgm/kopisort/internal/models"
	"go.uber.org/zap"
)

// BatchRepository is interface for interacting with batch-related data
type BatchRepository interface {
	// CreateBatch inserts batch
	CreateBatch(ctx context.Context, batch *models.Batch) (*models.Batch, error)
	// CreateBatches inserts all batches
	CreateBatches(ctx context.Context, batches []models.Batch) ([]models.Batch, error)
	// GetBatchByID returns batch by id
	GetBatchByID(ctx context.Context, id string) (*models.Batch, error)
	// GetBatchesByOrderID returns order batches ordered by number
	GetBatchesByOrderID(ctx context.Context, orderID string) ([]models.Batch, error)
	// GetBatchHistory returns batches matching filter, newest first
	GetBatchHistory(ctx context.Context, f models.StatsFilter) ([]models.Batch, error)
	// GetBatchStats returns count, highest number and weight sum of order batches
	GetBatchStats(ctx context.Context, orderID string) (models.BatchStats, error)
	// UpdateBatch writes mutable batch fields
	UpdateBatch(ctx context.Context, batch *models.Batch) error
}

// Classifier labels a bean sample image
type Classifier interface {
	Classify(ctx context.Context, imageRef string) (*classifier.Prediction, error)
}

// BatchService implements BatchService interface
type BatchService struct {
	repo       BatchRepository
	orders     OrderRepository
	tx         Transactor
	notifier   Notifier
	classifier Classifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewBatchService creates new BatchService instance
func NewBatchService(repo BatchRepository, orders OrderRepository, tx Transactor, notifier Notifier, classifier Classifier, logger *zap.Logger) *BatchService {
	return &BatchService{
		repo:       repo,
		orders:     orders,
		tx:         tx,
		notifier:   notifier,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// AutoGenerate splits order weight into batches of at most 10 kg. Runs once per order.
func (bs *BatchService) AutoGenerate(ctx context.Context, orderID string) ([]models.Batch, error) {
	var batches []models.Batch
	err := bs.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := bs.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return orNotFound(err, "order", orderID)
		}
		if order.Status == models.OrderStatusCancelled {
			return models.NewConflictError("can not create batches for cancelled order")
		}

		stats, err := bs.repo.GetBatchStats(ctx, orderID)
		if err != nil {
			return err
		}
		if stats.Count > 0 {
			return models.NewConflictError(fmt.Sprintf("batches already exist for order %s", orderID))
		}

		// a concurrent generation loses on the (order_id, batch_number) constraint
		batches, err = bs.repo.CreateBatches(ctx, models.Decompose(orderID, order.Weight))
		return orConflict(err, fmt.Sprintf("batches already exist for order %s", orderID))
	})
	if err != nil {
		return nil, err
	}

	bs.logger.Info("batches generated",
		zap.String("order_id", orderID),
		zap.Int("count", len(batches)))

	return batches, nil
}

// CreateManual creates next batch of an order, up to 20 kg
func (bs *BatchService) CreateManual(ctx context.Context, in models.BatchInput) (*models.Batch, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var batch *models.Batch
	err := bs.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := bs.orders.GetOrderByID(ctx, in.OrderID)
		if err != nil {
			return orNotFound(err, "order", in.OrderID)
		}
		if order.Status == models.OrderStatusCancelled {
			return models.NewConflictError("can not create batches for cancelled order")
		}

		stats, err := bs.repo.GetBatchStats(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if in.BatchNumber != stats.MaxNumber+1 {
			return models.NewConflictError(fmt.Sprintf("next batch number for order %s is %d", in.OrderID, stats.MaxNumber+1))
		}
		if !stats.Fits(in.TotalWeight, order.Weight) {
			return models.NewConflictError(fmt.Sprintf("batches would exceed order weight of %v kg", order.Weight))
		}

		batch, err = bs.repo.CreateBatch(ctx, &models.Batch{
			ID:                models.FormatBatchID(in.OrderID, in.BatchNumber),
			OrderID:           in.OrderID,
			BatchNumber:       in.BatchNumber,
			TotalWeight:       in.TotalWeight,
			Status:            models.BatchStatusPending,
			TotalBeans:        in.TotalBeans,
			HealthyBeans:      in.HealthyBeans,
			DefectiveBeans:    in.DefectiveBeans,
			Accuracy:          in.Accuracy,
			ImageURL:          in.ImageURL,
			ProcessedImageURL: in.ProcessedImageURL,
		})
		return orConflict(err, fmt.Sprintf("batch %d already exists for order %s", in.BatchNumber, in.OrderID))
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

// Update merges patch onto batch. Derived statistics are not recomputed here.
func (bs *BatchService) Update(ctx context.Context, id string, patch models.BatchPatch) (*models.Batch, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var (
		batch     *models.Batch
		owner     uint64
		completed bool
	)
	err := bs.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		batch, err = bs.repo.GetBatchByID(ctx, id)
		if err != nil {
			return orNotFound(err, "batch", id)
		}

		order, err := bs.orders.GetOrderByID(ctx, batch.OrderID)
		if err != nil {
			return orNotFound(err, "order", batch.OrderID)
		}
		owner = order.UserID

		if patch.TotalWeight != nil {
			stats, err := bs.repo.GetBatchStats(ctx, batch.OrderID)
			if err != nil {
				return err
			}
			stats.TotalWeight -= batch.TotalWeight
			if !stats.Fits(*patch.TotalWeight, order.Weight) {
				return models.NewConflictError(fmt.Sprintf("batches would exceed order weight of %v kg", order.Weight))
			}
		}

		wasCompleted := batch.Status == models.BatchStatusCompleted
		batch.Apply(patch)
		completed = !wasCompleted && batch.Status == models.BatchStatusCompleted
		switch {
		case completed:
			now := bs.now()
			batch.CompletedAt = &now
		case batch.Status != models.BatchStatusCompleted:
			batch.CompletedAt = nil
		}

		return orNotFound(bs.repo.UpdateBatch(ctx, batch), "batch", id)
	})
	if err != nil {
		return nil, err
	}

	if completed {
		bs.notifier.Notify(ctx, completedNotice(batch, owner))
	}

	return batch, nil
}

// Complete marks batch completed and notifies order owner once
func (bs *BatchService) Complete(ctx context.Context, id string) (*models.Batch, error) {
	var (
		batch     *models.Batch
		owner     uint64
		completed bool
	)
	err := bs.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		batch, err = bs.repo.GetBatchByID(ctx, id)
		if err != nil {
			return orNotFound(err, "batch", id)
		}
		if batch.Status == models.BatchStatusCompleted {
			return nil
		}

		order, err := bs.orders.GetOrderByID(ctx, batch.OrderID)
		if err != nil {
			return orNotFound(err, "order", batch.OrderID)
		}
		owner = order.UserID

		now := bs.now()
		batch.Status = models.BatchStatusCompleted
		batch.CompletedAt = &now
		completed = true

		return orNotFound(bs.repo.UpdateBatch(ctx, batch), "batch", id)
	})
	if err != nil {
		return nil, err
	}

	if completed {
		bs.notifier.Notify(ctx, completedNotice(batch, owner))
	}

	return batch, nil
}

// List returns batches of an order visible to principal
func (bs *BatchService) List(ctx context.Context, principal *models.TokenPayload, orderID string) ([]models.Batch, error) {
	var batches []models.Batch
	err := bs.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := bs.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return orNotFound(err, "order", orderID)
		}
		if !principal.CanAccess(order.UserID) {
			return models.NewAccessDeniedError("order belongs to another user")
		}

		batches, err = bs.repo.GetBatchesByOrderID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// History returns batches created in period, newest first.
// Customers see batches of their own orders, operators see every batch.
func (bs *BatchService) History(ctx context.Context, principal *models.TokenPayload, period models.Period, year, month int) ([]models.Batch, error) {
	f, err := models.NewStatsFilter(principal, period, year, month, bs.now())
	if err != nil {
		return nil, err
	}

	var batches []models.Batch
	err = bs.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		batches, err = bs.repo.GetBatchHistory(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// ClassifySample labels one sample image and adds it to batch counts
func (bs *BatchService) ClassifySample(ctx context.Context, id, imageRef string) (*models.Batch, *classifier.Prediction, error) {
	if strings.TrimSpace(imageRef) == "" {
		return nil, nil, models.NewValidationError("imageRef", "is required")
	}

	// classifier runs outside the transaction
	prediction, err := bs.classifier.Classify(ctx, imageRef)
	if err != nil {
		return nil, nil, fmt.Errorf("classify sample: %w", err)
	}

	var batch *models.Batch
	err = bs.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		batch, err = bs.repo.GetBatchByID(ctx, id)
		if err != nil {
			return orNotFound(err, "batch", id)
		}
		if batch.Status == models.BatchStatusCompleted {
			return models.NewConflictError(fmt.Sprintf("batch %s is already completed", id))
		}

		if batch.Status == models.BatchStatusPending {
			batch.Status = models.BatchStatusProcessing
		}
		batch.RecordSample(prediction.IsDefective(), prediction.Confidence)

		return orNotFound(bs.repo.UpdateBatch(ctx, batch), "batch", id)
	})
	if err != nil {
		return nil, nil, err
	}

	bs.logger.Debug("sample classified",
		zap.String("batch_id", id),
		zap.String("label", prediction.Label),
		zap.Float64("confidence", prediction.Confidence))

	return batch, prediction, nil
}

func completedNotice(batch *models.Batch, owner uint64) models.Notice {
	return models.Notice{
		UserID:  owner,
		Title:   "Batch completed",
		Message: fmt.Sprintf("Batch %d of order %s has been sorted.", batch.BatchNumber, batch.OrderID),
		Type:    "batch_completed",
		Link:    orderLink(batch.OrderID),
		Event:   models.EventBatchCompleted,
		OrderID: batch.OrderID,
	}
}
