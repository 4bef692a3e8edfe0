package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/repository/postgres"
)

const (
	batchColumns = `id, order_id, batch_number, total_weight, status, total_beans, healthy_beans, defective_beans,
						accuracy, image_url, processed_image_url, created_at, completed_at`

	insertBatchQuery = `
						INSERT INTO sorting_batches (id, order_id, batch_number, total_weight, status, total_beans,
						                             healthy_beans, defective_beans, accuracy, image_url, processed_image_url)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
						RETURNING ` + batchColumns

	selectBatchByIDQuery = `
						SELECT ` + batchColumns + ` FROM sorting_batches
						WHERE id = $1
`
	selectBatchesByOrderIDQuery = `
						SELECT ` + batchColumns + ` FROM sorting_batches
						WHERE order_id = $1
						ORDER BY batch_number
`
	selectBatchHistoryQuery = `
						SELECT ` + batchColumns + ` FROM sorting_batches
						WHERE ($1::bigint IS NULL OR order_id IN (SELECT id FROM orders WHERE user_id = $1))
						  AND ($2::int = 0 OR EXTRACT(YEAR FROM created_at) = $2)
						  AND ($3::int = 0 OR EXTRACT(MONTH FROM created_at) = $3)
						ORDER BY created_at DESC
`
	selectBatchStatsQuery = `
						SELECT count(*), COALESCE(max(batch_number), 0), COALESCE(sum(total_weight), 0)
						FROM sorting_batches
						WHERE order_id = $1
`
	updateBatchQuery = `
						UPDATE sorting_batches
						SET total_weight = $1, status = $2, total_beans = $3, healthy_beans = $4,
						    defective_beans = $5, accuracy = $6, completed_at = $7
						WHERE id = $8
`
)

// BatchRepository implements BatchRepository interface
type BatchRepository struct {
	db *postgres.DB
}

// NewBatchRepository creates new BatchRepository instance
func NewBatchRepository(db *postgres.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func scanBatch(row pgx.Row) (*models.Batch, error) {
	b := models.Batch{}
	err := row.Scan(&b.ID, &b.OrderID, &b.BatchNumber, &b.TotalWeight, &b.Status, &b.TotalBeans, &b.HealthyBeans,
		&b.DefectiveBeans, &b.Accuracy, &b.ImageURL, &b.ProcessedImageURL, &b.CreatedAt, &b.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBatch inserts batch. Duplicate batch number returns ErrConflictData.
func (br *BatchRepository) CreateBatch(ctx context.Context, batch *models.Batch) (*models.Batch, error) {
	created, err := scanBatch(br.db.QueryRow(ctx, insertBatchQuery,
		batch.ID, batch.OrderID, batch.BatchNumber, batch.TotalWeight, batch.Status, batch.TotalBeans,
		batch.HealthyBeans, batch.DefectiveBeans, batch.Accuracy, batch.ImageURL, batch.ProcessedImageURL))
	if err != nil {
		if errCode := br.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return created, nil
}

// CreateBatches inserts all batches, stopping at the first failure
func (br *BatchRepository) CreateBatches(ctx context.Context, batches []models.Batch) ([]models.Batch, error) {
	created := make([]models.Batch, 0, len(batches))
	for i := range batches {
		b, err := br.CreateBatch(ctx, &batches[i])
		if err != nil {
			return nil, err
		}
		created = append(created, *b)
	}

	return created, nil
}

// GetBatchByID returns batch by id
func (br *BatchRepository) GetBatchByID(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := scanBatch(br.db.QueryRow(ctx, selectBatchByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return batch, nil
}

// GetBatchesByOrderID returns order batches ordered by number
func (br *BatchRepository) GetBatchesByOrderID(ctx context.Context, orderID string) ([]models.Batch, error) {
	return br.list(ctx, selectBatchesByOrderIDQuery, orderID)
}

// GetBatchHistory returns batches matching filter, newest first
func (br *BatchRepository) GetBatchHistory(ctx context.Context, f models.StatsFilter) ([]models.Batch, error) {
	return br.list(ctx, selectBatchHistoryQuery, f.UserID, f.Year, f.Month)
}

func (br *BatchRepository) list(ctx context.Context, query string, args ...any) ([]models.Batch, error) {
	rows, err := br.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := []models.Batch{}

	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return batches, nil
}

// GetBatchStats returns count, highest number and weight sum of order batches
func (br *BatchRepository) GetBatchStats(ctx context.Context, orderID string) (models.BatchStats, error) {
	stats := models.BatchStats{}
	err := br.db.QueryRow(ctx, selectBatchStatsQuery, orderID).Scan(&stats.Count, &stats.MaxNumber, &stats.TotalWeight)
	return stats, err
}

// UpdateBatch writes mutable batch fields
func (br *BatchRepository) UpdateBatch(ctx context.Context, batch *models.Batch) error {
	cmd, err := br.db.Exec(ctx, updateBatchQuery, batch.TotalWeight, batch.Status, batch.TotalBeans, batch.HealthyBeans,
		batch.DefectiveBeans, batch.Accuracy, batch.CompletedAt, batch.ID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}
