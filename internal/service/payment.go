package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rookgm/kopisort/internal/models"
	"go.uber.org/zap"
)

// PaymentRepository is interface for interacting with payment-related data
type PaymentRepository interface {
	// CreatePayment assigns sequential id and inserts payment
	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	// GetPaymentByID returns payment by id
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	// GetPaymentsByOrderID returns order payments, newest first
	GetPaymentsByOrderID(ctx context.Context, orderID string) ([]models.Payment, error)
	// GetPayments returns payments of one user or, for nil userID, of every user, newest first
	GetPayments(ctx context.Context, userID *uint64) ([]models.Payment, error)
	// UpdatePaymentStatus writes review outcome of payment
	UpdatePaymentStatus(ctx context.Context, payment *models.Payment) error
	// DeleteRejectedPayments removes rejected payments of the order
	DeleteRejectedPayments(ctx context.Context, orderID string) error
}

// ProofStore resolves proof references into links
type ProofStore interface {
	ProofURL(ctx context.Context, ref string) (string, error)
}

// PaymentService implements PaymentService interface
type PaymentService struct {
	repo     PaymentRepository
	orders   OrderRepository
	tx       Transactor
	notifier Notifier
	cache    OrderCache
	proofs   ProofStore
	logger   *zap.Logger
}

// NewPaymentService creates new PaymentService instance
func NewPaymentService(repo PaymentRepository, orders OrderRepository, tx Transactor, notifier Notifier, cache OrderCache, proofs ProofStore, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		repo:     repo,
		orders:   orders,
		tx:       tx,
		notifier: notifier,
		cache:    cache,
		proofs:   proofs,
		logger:   logger,
	}
}

// Submit records payment proof for an order. A rejected payment is replaced,
// an active one makes submission fail.
func (ps *PaymentService) Submit(ctx context.Context, principal *models.TokenPayload, in models.PaymentInput) (*models.Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err := ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := ps.orders.GetOrderByID(ctx, in.OrderID)
		if err != nil {
			return orNotFound(err, "order", in.OrderID)
		}
		if order.UserID != principal.UserID {
			return models.NewAccessDeniedError("order belongs to another user")
		}
		if order.Status == models.OrderStatusCancelled {
			return models.NewConflictError("can not pay for cancelled order")
		}

		existing, err := ps.repo.GetPaymentsByOrderID(ctx, in.OrderID)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.IsActive() {
				return models.NewConflictError(fmt.Sprintf("order %s already has payment %s", in.OrderID, p.ID))
			}
		}

		if err := ps.repo.DeleteRejectedPayments(ctx, in.OrderID); err != nil {
			return err
		}

		payment, err = ps.repo.CreatePayment(ctx, &models.Payment{
			OrderID:     in.OrderID,
			UserID:      principal.UserID,
			Method:      strings.TrimSpace(in.Method),
			AccountName: strings.TrimSpace(in.AccountName),
			Amount:      in.Amount,
			ProofRef:    strings.TrimSpace(in.ProofRef),
			Status:      models.PaymentStatusPending,
		})
		if err != nil {
			return orConflict(err, fmt.Sprintf("order %s already has active payment", in.OrderID))
		}

		return orNotFound(ps.orders.UpdatePaymentStatus(ctx, in.OrderID, models.PaymentStatusPending), "order", in.OrderID)
	})
	if err != nil {
		return nil, err
	}

	ps.invalidate(ctx, in.OrderID)
	ps.logger.Info("payment submitted",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID))

	return payment, nil
}

// Get returns payment visible to principal with resolved proof link
func (ps *PaymentService) Get(ctx context.Context, principal *models.TokenPayload, id string) (*models.Payment, error) {
	var payment *models.Payment
	err := ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = ps.repo.GetPaymentByID(ctx, id)
		return orNotFound(err, "payment", id)
	})
	if err != nil {
		return nil, err
	}

	if !principal.CanAccess(payment.UserID) {
		return nil, models.NewAccessDeniedError("payment belongs to another user")
	}

	ps.resolveProof(ctx, payment)

	return payment, nil
}

// List returns every payment for operator and own payments for customer, newest first
func (ps *PaymentService) List(ctx context.Context, principal *models.TokenPayload) ([]models.Payment, error) {
	var userID *uint64
	if !principal.IsAdmin() {
		userID = &principal.UserID
	}

	var payments []models.Payment
	err := ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		payments, err = ps.repo.GetPayments(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range payments {
		ps.resolveProof(ctx, &payments[i])
	}

	return payments, nil
}

// GetByOrder returns latest payment of an order visible to principal
func (ps *PaymentService) GetByOrder(ctx context.Context, principal *models.TokenPayload, orderID string) (*models.Payment, error) {
	var payment *models.Payment
	err := ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := ps.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return orNotFound(err, "order", orderID)
		}
		if !principal.CanAccess(order.UserID) {
			return models.NewAccessDeniedError("order belongs to another user")
		}

		payments, err := ps.repo.GetPaymentsByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if len(payments) == 0 {
			return models.NewNotFoundError("payment of order", orderID)
		}
		payment = &payments[0]

		return nil
	})
	if err != nil {
		return nil, err
	}

	ps.resolveProof(ctx, payment)

	return payment, nil
}

// resolveProof fills proof link, a failed lookup leaves it empty
func (ps *PaymentService) resolveProof(ctx context.Context, payment *models.Payment) {
	link, err := ps.proofs.ProofURL(ctx, payment.ProofRef)
	if err != nil {
		ps.logger.Warn("failed to resolve payment proof", zap.String("payment_id", payment.ID), zap.Error(err))
	}
	payment.ProofURL = link
}

// Verify accepts pending payment. The owner is notified after commit.
func (ps *PaymentService) Verify(ctx context.Context, verifier *models.TokenPayload, id string) (*models.Payment, error) {
	payment, err := ps.review(ctx, id, func(p *models.Payment) {
		now := time.Now()
		p.Status = models.PaymentStatusVerified
		p.VerifiedBy = &verifier.UserID
		p.VerifiedAt = &now
	})
	if err != nil {
		return nil, err
	}

	ps.notifier.Notify(ctx, models.Notice{
		UserID:  payment.UserID,
		Title:   "Payment verified",
		Message: fmt.Sprintf("Payment %s for order %s has been verified.", payment.ID, payment.OrderID),
		Type:    string(models.NotificationSuccess),
		Link:    orderLink(payment.OrderID),
		Event:   models.EventPaymentVerified,
		OrderID: payment.OrderID,
	})

	return payment, nil
}

// Reject rejects pending payment with reason. The owner is notified after commit.
func (ps *PaymentService) Reject(ctx context.Context, verifier *models.TokenPayload, id, reason string) (*models.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("reason", "is required")
	}

	payment, err := ps.review(ctx, id, func(p *models.Payment) {
		now := time.Now()
		p.Status = models.PaymentStatusRejected
		p.RejectionReason = reason
		p.VerifiedBy = &verifier.UserID
		p.VerifiedAt = &now
	})
	if err != nil {
		return nil, err
	}

	ps.notifier.Notify(ctx, models.Notice{
		UserID:  payment.UserID,
		Title:   "Payment rejected",
		Message: fmt.Sprintf("Payment %s for order %s was rejected: %s", payment.ID, payment.OrderID, reason),
		Type:    string(models.NotificationError),
		Link:    orderLink(payment.OrderID),
		Event:   models.EventPaymentRejected,
		OrderID: payment.OrderID,
	})

	return payment, nil
}

// review applies decision to pending payment and mirrors its status onto the order
func (ps *PaymentService) review(ctx context.Context, id string, decide func(p *models.Payment)) (*models.Payment, error) {
	var payment *models.Payment
	err := ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = ps.repo.GetPaymentByID(ctx, id)
		if err != nil {
			return orNotFound(err, "payment", id)
		}
		if payment.Status != models.PaymentStatusPending {
			return models.NewConflictError(fmt.Sprintf("payment %s is already %s", id, payment.Status))
		}

		decide(payment)

		if err := ps.repo.UpdatePaymentStatus(ctx, payment); err != nil {
			return orNotFound(err, "payment", id)
		}

		return orNotFound(ps.orders.UpdatePaymentStatus(ctx, payment.OrderID, payment.Status), "order", payment.OrderID)
	})
	if err != nil {
		return nil, err
	}

	ps.invalidate(ctx, payment.OrderID)
	ps.logger.Info("payment reviewed",
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)))

	return payment, nil
}

func (ps *PaymentService) invalidate(ctx context.Context, orderID string) {
	if err := ps.cache.Invalidate(ctx, orderID); err != nil {
		ps.logger.Warn("failed to invalidate cached order", zap.String("order_id", orderID), zap.Error(err))
	}
}
