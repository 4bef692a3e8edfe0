package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is proof of payment submitted for an order
type Payment struct {
	ID              string
	OrderID         string
	UserID          uint64
	Method          string
	AccountName     string
	Amount          decimal.Decimal
	ProofRef        string
	Status          PaymentStatus
	RejectionReason string
	VerifiedBy      *uint64
	VerifiedAt      *time.Time
	CreatedAt       time.Time

	// ProofURL is resolved download link of ProofRef, not stored
	ProofURL string
}

// IsActive reports whether payment blocks new submissions for its order
func (p *Payment) IsActive() bool {
	return p.Status != PaymentStatusRejected
}

// FormatPaymentID builds human-readable payment id from sequence value
func FormatPaymentID(seq int64) string {
	return fmt.Sprintf("PAY-%03d", seq)
}

// PaymentInput is the data accepted on payment submission
type PaymentInput struct {
	OrderID     string
	Method      string
	AccountName string
	Amount      decimal.Decimal
	ProofRef    string
}

// Validate checks required payment fields
func (in PaymentInput) Validate() error {
	switch {
	case in.OrderID == "":
		return NewValidationError("orderId", "is required")
	case strings.TrimSpace(in.Method) == "":
		return NewValidationError("method", "is required")
	case strings.TrimSpace(in.AccountName) == "":
		return NewValidationError("accountName", "is required")
	case !in.Amount.IsPositive():
		return NewValidationError("amount", "must be greater than zero")
	case strings.TrimSpace(in.ProofRef) == "":
		return NewValidationError("proofRef", "is required")
	}
	return nil
}
