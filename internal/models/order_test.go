package models

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrder_CheckCancel(t *testing.T) {
	tests := []struct {
		name          string
		status        OrderStatus
		paymentStatus PaymentStatus
		wantConflict  bool
	}{
		{name: "pending_unpaid", status: OrderStatusPending, paymentStatus: PaymentStatusUnpaid},
		{name: "processing_unpaid", status: OrderStatusProcessing, paymentStatus: PaymentStatusUnpaid},
		{name: "pending_rejected_payment", status: OrderStatusPending, paymentStatus: PaymentStatusRejected},
		{name: "payment_pending", status: OrderStatusPending, paymentStatus: PaymentStatusPending, wantConflict: true},
		{name: "payment_verified", status: OrderStatusProcessing, paymentStatus: PaymentStatusVerified, wantConflict: true},
		{name: "completed", status: OrderStatusCompleted, paymentStatus: PaymentStatusUnpaid, wantConflict: true},
		{name: "already_cancelled", status: OrderStatusCancelled, paymentStatus: PaymentStatusUnpaid, wantConflict: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{Status: tt.status, PaymentStatus: tt.paymentStatus}
			err := o.CheckCancel()
			if tt.wantConflict {
				assert.True(t, IsConflict(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOrder_CheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		wantErr func(error) bool
	}{
		{name: "pending_to_processing", from: OrderStatusPending, to: OrderStatusProcessing},
		{name: "processing_to_completed", from: OrderStatusProcessing, to: OrderStatusCompleted},
		{name: "pending_to_cancelled", from: OrderStatusPending, to: OrderStatusCancelled},
		{name: "same_status", from: OrderStatusCompleted, to: OrderStatusCompleted},
		{name: "completed_to_pending", from: OrderStatusCompleted, to: OrderStatusPending, wantErr: IsConflict},
		{name: "pending_to_completed", from: OrderStatusPending, to: OrderStatusCompleted, wantErr: IsConflict},
		{name: "cancelled_to_processing", from: OrderStatusCancelled, to: OrderStatusProcessing, wantErr: IsConflict},
		{name: "unknown_status", from: OrderStatusPending, to: "shipped", wantErr: IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{Status: tt.from, PaymentStatus: PaymentStatusUnpaid}
			err := o.CheckTransition(tt.to)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOrderInput_Validate(t *testing.T) {
	price := decimal.NewFromInt(150000)
	zero := decimal.Zero
	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name    string
		in      OrderInput
		wantErr bool
	}{
		{name: "valid_input", in: OrderInput{PackageName: "Premium", Weight: 25, Price: &price}},
		{name: "free_order", in: OrderInput{PackageName: "Trial", Weight: 1, Price: &zero}},
		{name: "missing_package", in: OrderInput{Weight: 25, Price: &price}, wantErr: true},
		{name: "zero_weight", in: OrderInput{PackageName: "Premium", Price: &price}, wantErr: true},
		{name: "negative_weight", in: OrderInput{PackageName: "Premium", Weight: -3, Price: &price}, wantErr: true},
		{name: "missing_price", in: OrderInput{PackageName: "Premium", Weight: 25}, wantErr: true},
		{name: "negative_price", in: OrderInput{PackageName: "Premium", Weight: 25, Price: &negative}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				assert.True(t, IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFormatIDs(t *testing.T) {
	assert.Equal(t, "ORD-001", FormatOrderID(1))
	assert.Equal(t, "ORD-1234", FormatOrderID(1234))
	assert.Equal(t, "PAY-042", FormatPaymentID(42))
	assert.Equal(t, "BATCH-ORD-001-3", FormatBatchID("ORD-001", 3))
}

func TestNotifications(t *testing.T) {
	assert.Equal(t, NotificationSuccess, NormalizeNotificationType("batch_completed"))
	assert.Equal(t, NotificationWarning, NormalizeNotificationType("WARNING"))
	assert.Equal(t, NotificationInfo, NormalizeNotificationType("forum_reply"))

	re := regexp.MustCompile(`^NOTIF-[0-9A-F]{12}$`)
	a, b := NewNotificationID(), NewNotificationID()
	assert.Regexp(t, re, a)
	assert.NotEqual(t, a, b)
}

func TestTokenPayload_CanAccess(t *testing.T) {
	owner := &TokenPayload{UserID: 7, Role: RoleUser}
	other := &TokenPayload{UserID: 8, Role: RoleUser}
	admin := &TokenPayload{UserID: 1, Role: RoleAdmin}

	assert.True(t, owner.CanAccess(7))
	assert.False(t, other.CanAccess(7))
	assert.True(t, admin.CanAccess(7))

	var anonymous *TokenPayload
	assert.False(t, anonymous.CanAccess(7))
}
