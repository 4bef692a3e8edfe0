package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order
type OrderStatus string

// order status
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists allowed moves between distinct statuses
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition out of s is defined
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether s may move to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is shared by orders and payments. Payments never hold unpaid.
type PaymentStatus string

// payment status
const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusVerified PaymentStatus = "verified"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusVerified, PaymentStatusRejected:
		return true
	}
	return false
}

// Customer holds optional contact and delivery details of an order
type Customer struct {
	Name         string
	Phone        string
	Email        string
	Address      string
	CoffeeType   string
	DeliveryDate *time.Time
	Notes        string
}

// Order is order entity
type Order struct {
	ID            string
	UserID        uint64
	UserName      string
	PackageName   string
	Weight        float64
	Price         decimal.Decimal
	Status        OrderStatus
	PaymentStatus PaymentStatus
	MachineID     string
	MachineName   string
	Customer      Customer
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FormatOrderID builds human-readable order id from sequence value
func FormatOrderID(seq int64) string {
	return fmt.Sprintf("ORD-%03d", seq)
}

// OrderInput is the data accepted on order creation
type OrderInput struct {
	PackageName string
	Weight      float64
	Price       *decimal.Decimal
	Customer    Customer
}

// Validate checks required fields of new order
func (in OrderInput) Validate() error {
	if strings.TrimSpace(in.PackageName) == "" {
		return NewValidationError("packageName", "is required")
	}
	if in.Weight <= 0 {
		return NewValidationError("weight", "must be greater than zero")
	}
	if in.Price == nil {
		return NewValidationError("price", "is required")
	}
	if in.Price.IsNegative() {
		return NewValidationError("price", "must not be negative")
	}
	return nil
}

// CheckCancel returns ConflictError when the order can not be cancelled
func (o *Order) CheckCancel() error {
	switch {
	case o.Status == OrderStatusCancelled:
		return NewConflictError("order is already cancelled")
	case o.Status == OrderStatusCompleted:
		return NewConflictError("completed order can not be cancelled")
	case o.PaymentStatus == PaymentStatusPending:
		return NewConflictError("order with payment awaiting verification can not be cancelled")
	case o.PaymentStatus == PaymentStatusVerified:
		return NewConflictError("paid order can not be cancelled")
	}
	return nil
}

// CheckTransition returns error when status can not be set to next.
// Setting the current status again is allowed.
func (o *Order) CheckTransition(next OrderStatus) error {
	if !next.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", next))
	}
	if o.Status == next {
		return nil
	}
	if next == OrderStatusCancelled {
		return o.CheckCancel()
	}
	if !o.Status.CanTransitionTo(next) {
		return NewConflictError(fmt.Sprintf("order can not move from %s to %s", o.Status, next))
	}
	return nil
}
