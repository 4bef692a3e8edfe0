package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/repository/postgres"
)

const (
	paymentColumns = `id, order_id, user_id, method, account_name, amount, proof_ref, status, rejection_reason,
						verified_by, verified_at, created_at`

	nextPaymentSeqQuery = `SELECT nextval('payment_id_seq')`

	insertPaymentQuery = `
						INSERT INTO payments (id, order_id, user_id, method, account_name, amount, proof_ref, status)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
						RETURNING ` + paymentColumns

	selectPaymentByIDQuery = `
						SELECT ` + paymentColumns + ` FROM payments
						WHERE id = $1
`
	selectPaymentsByOrderIDQuery = `
						SELECT ` + paymentColumns + ` FROM payments
						WHERE order_id = $1
						ORDER BY created_at DESC
`
	selectPaymentsQuery = `
						SELECT ` + paymentColumns + ` FROM payments
						WHERE ($1::bigint IS NULL OR user_id = $1)
						ORDER BY created_at DESC
`
	updatePaymentStatusQuery = `
						UPDATE payments
						SET status = $1, rejection_reason = $2, verified_by = $3, verified_at = $4
						WHERE id = $5
`
	deleteRejectedPaymentsQuery = `
						DELETE FROM payments
						WHERE order_id = $1 AND status = 'rejected'
`
)

// PaymentRepository implements PaymentRepository interface
type PaymentRepository struct {
	db *postgres.DB
}

// NewPaymentRepository creates new PaymentRepository instance
func NewPaymentRepository(db *postgres.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := models.Payment{}
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Method, &p.AccountName, &p.Amount, &p.ProofRef, &p.Status,
		&p.RejectionReason, &p.VerifiedBy, &p.VerifiedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment assigns sequential id and inserts payment.
// A second active payment for the same order returns ErrConflictData.
func (pr *PaymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	var seq int64
	if err := pr.db.QueryRow(ctx, nextPaymentSeqQuery).Scan(&seq); err != nil {
		return nil, err
	}

	created, err := scanPayment(pr.db.QueryRow(ctx, insertPaymentQuery,
		models.FormatPaymentID(seq), payment.OrderID, payment.UserID, payment.Method, payment.AccountName,
		payment.Amount, payment.ProofRef, payment.Status))
	if err != nil {
		if errCode := pr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return created, nil
}

// GetPaymentByID returns payment by id
func (pr *PaymentRepository) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := scanPayment(pr.db.QueryRow(ctx, selectPaymentByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return payment, nil
}

// GetPaymentsByOrderID returns order payments, newest first
func (pr *PaymentRepository) GetPaymentsByOrderID(ctx context.Context, orderID string) ([]models.Payment, error) {
	return pr.list(ctx, selectPaymentsByOrderIDQuery, orderID)
}

// GetPayments returns payments of one user or, for nil userID, of every user, newest first
func (pr *PaymentRepository) GetPayments(ctx context.Context, userID *uint64) ([]models.Payment, error) {
	return pr.list(ctx, selectPaymentsQuery, userID)
}

func (pr *PaymentRepository) list(ctx context.Context, query string, args ...any) ([]models.Payment, error) {
	rows, err := pr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.Payment{}

	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// UpdatePaymentStatus writes review outcome of payment
func (pr *PaymentRepository) UpdatePaymentStatus(ctx context.Context, payment *models.Payment) error {
	cmd, err := pr.db.Exec(ctx, updatePaymentStatusQuery, payment.Status, payment.RejectionReason,
		payment.VerifiedBy, payment.VerifiedAt, payment.ID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// DeleteRejectedPayments removes rejected payments of the order
func (pr *PaymentRepository) DeleteRejectedPayments(ctx context.Context, orderID string) error {
	_, err := pr.db.Exec(ctx, deleteRejectedPaymentsQuery, orderID)
	return err
}
