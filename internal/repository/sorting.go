package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/repository/postgres"
)

const (
	sortingColumns = `id, order_id, total_beans, healthy_beans, defective_beans, healthy_percentage,
						defective_percentage, total_weight, healthy_weight, defective_weight, accuracy, sorted_at`

	upsertSortingResultQuery = `
						INSERT INTO sorting_results (id, order_id, total_beans, healthy_beans, defective_beans,
						                             healthy_percentage, defective_percentage, total_weight,
						                             healthy_weight, defective_weight, accuracy, sorted_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
						ON CONFLICT (order_id) DO UPDATE
						SET total_beans = EXCLUDED.total_beans,
						    healthy_beans = EXCLUDED.healthy_beans,
						    defective_beans = EXCLUDED.defective_beans,
						    healthy_percentage = EXCLUDED.healthy_percentage,
						    defective_percentage = EXCLUDED.defective_percentage,
						    total_weight = EXCLUDED.total_weight,
						    healthy_weight = EXCLUDED.healthy_weight,
						    defective_weight = EXCLUDED.defective_weight,
						    accuracy = EXCLUDED.accuracy,
						    sorted_at = EXCLUDED.sorted_at
						RETURNING ` + sortingColumns

	selectSortingResultQuery = `
						SELECT ` + sortingColumns + ` FROM sorting_results
						WHERE order_id = $1
`
	selectSortingResultsQuery = `
						SELECT ` + sortingColumns + ` FROM sorting_results
						WHERE ($1::bigint IS NULL OR order_id IN (SELECT id FROM orders WHERE user_id = $1))
						ORDER BY sorted_at DESC
`
	selectSortingTotalsQuery = `
						SELECT COALESCE(sum(total_beans), 0), COALESCE(sum(healthy_beans), 0),
						       COALESCE(sum(defective_beans), 0), avg(accuracy)
						FROM sorting_results
						WHERE ($1::bigint IS NULL OR order_id IN (SELECT id FROM orders WHERE user_id = $1))
						  AND ($2::int = 0 OR EXTRACT(YEAR FROM sorted_at) = $2)
						  AND ($3::int = 0 OR EXTRACT(MONTH FROM sorted_at) = $3)
`
	insertSortingHistoryQuery = `
						INSERT INTO sorting_results_history (order_id, total_beans, healthy_beans, defective_beans,
						                                     healthy_percentage, defective_percentage, total_weight,
						                                     healthy_weight, defective_weight, accuracy, created_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
						RETURNING id
`
	selectSortingHistoryQuery = `
						SELECT id, order_id, total_beans, healthy_beans, defective_beans, healthy_percentage,
						       defective_percentage, total_weight, healthy_weight, defective_weight, accuracy, created_at
						FROM sorting_results_history
						WHERE order_id = $1
						ORDER BY created_at, id
`
)

// SortingRepository implements SortingRepository interface
type SortingRepository struct {
	db *postgres.DB
}

// NewSortingRepository creates new SortingRepository instance
func NewSortingRepository(db *postgres.DB) *SortingRepository {
	return &SortingRepository{db: db}
}

func scanSortingResult(row pgx.Row) (*models.SortingResult, error) {
	r := models.SortingResult{}
	err := row.Scan(&r.ID, &r.OrderID, &r.TotalBeans, &r.HealthyBeans, &r.DefectiveBeans, &r.HealthyPercentage,
		&r.DefectivePercentage, &r.TotalWeight, &r.HealthyWeight, &r.DefectiveWeight, &r.Accuracy, &r.SortedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertResult replaces current sorting result of the order
func (sr *SortingRepository) UpsertResult(ctx context.Context, res *models.SortingResult) (*models.SortingResult, error) {
	return scanSortingResult(sr.db.QueryRow(ctx, upsertSortingResultQuery,
		res.ID, res.OrderID, res.TotalBeans, res.HealthyBeans, res.DefectiveBeans, res.HealthyPercentage,
		res.DefectivePercentage, res.TotalWeight, res.HealthyWeight, res.DefectiveWeight, res.Accuracy, res.SortedAt))
}

// AppendHistory inserts ledger row
func (sr *SortingRepository) AppendHistory(ctx context.Context, h *models.SortingResultHistory) (*models.SortingResultHistory, error) {
	err := sr.db.QueryRow(ctx, insertSortingHistoryQuery,
		h.OrderID, h.TotalBeans, h.HealthyBeans, h.DefectiveBeans, h.HealthyPercentage, h.DefectivePercentage,
		h.TotalWeight, h.HealthyWeight, h.DefectiveWeight, h.Accuracy, h.CreatedAt).Scan(&h.ID)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// GetResult returns current sorting result of the order
func (sr *SortingRepository) GetResult(ctx context.Context, orderID string) (*models.SortingResult, error) {
	res, err := scanSortingResult(sr.db.QueryRow(ctx, selectSortingResultQuery, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return res, nil
}

// GetResults returns current results of one user's orders or, for nil userID, of every order, newest first
func (sr *SortingRepository) GetResults(ctx context.Context, userID *uint64) ([]models.SortingResult, error) {
	rows, err := sr.db.Query(ctx, selectSortingResultsQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.SortingResult{}

	for rows.Next() {
		res, err := scanSortingResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// GetTotals sums bean counts and averages accuracy of results matching filter
func (sr *SortingRepository) GetTotals(ctx context.Context, f models.StatsFilter) (models.SortingTotals, error) {
	t := models.SortingTotals{}
	err := sr.db.QueryRow(ctx, selectSortingTotalsQuery, f.UserID, f.Year, f.Month).
		Scan(&t.TotalBeans, &t.HealthyBeans, &t.DefectiveBeans, &t.AvgAccuracy)
	return t, err
}

// GetHistory returns ledger rows of the order, oldest first
func (sr *SortingRepository) GetHistory(ctx context.Context, orderID string) ([]models.SortingResultHistory, error) {
	rows, err := sr.db.Query(ctx, selectSortingHistoryQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.SortingResultHistory{}

	for rows.Next() {
		h := models.SortingResultHistory{}
		err = rows.Scan(&h.ID, &h.OrderID, &h.TotalBeans, &h.HealthyBeans, &h.DefectiveBeans, &h.HealthyPercentage,
			&h.DefectivePercentage, &h.TotalWeight, &h.HealthyWeight, &h.DefectiveWeight, &h.Accuracy, &h.CreatedAt)
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}
