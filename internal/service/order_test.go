package service

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/service/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrderService_Create(t *testing.T) {
	price := decimal.NewFromInt(150000)

	tests := []struct {
		name    string
		in      models.OrderInput
		setup   func(repo *mocks.MockOrderRepository)
		wantErr func(error) bool
	}{
		{
			name: "valid_order_is_pending_and_unpaid",
			in:   models.OrderInput{PackageName: "Premium", Weight: 25, Price: &price},
			setup: func(repo *mocks.MockOrderRepository) {
				repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, o *models.Order) (*models.Order, error) {
						assert.Equal(t, models.OrderStatusPending, o.Status)
						assert.Equal(t, models.PaymentStatusUnpaid, o.PaymentStatus)
						assert.Equal(t, customer.UserID, o.UserID)
						created := *o
						created.ID = "ORD-001"
						return &created, nil
					}).Times(1)
			},
		},
		{
			name: "zero_weight_return_validation_error",
			in:   models.OrderInput{PackageName: "Premium", Weight: 0, Price: &price},
			setup: func(repo *mocks.MockOrderRepository) {
				repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: models.IsValidation,
		},
		{
			name: "missing_price_return_validation_error",
			in:   models.OrderInput{PackageName: "Premium", Weight: 25},
			setup: func(repo *mocks.MockOrderRepository) {
				repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: models.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mocks.NewMockOrderRepository(ctrl)
			tt.setup(repo)

			svc := NewOrderService(repo, passThroughTx(t, ctrl), mocks.NewMockNotifier(ctrl), noopCache(ctrl), zap.NewNop())
			order, err := svc.Create(context.Background(), customer, tt.in)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ORD-001", order.ID)
		})
	}
}

func TestOrderService_Cancel(t *testing.T) {
	tests := []struct {
		name          string
		principal     *models.TokenPayload
		order         *models.Order
		wantErr       func(error) bool
		wantCancelled bool
	}{
		{
			name:          "unpaid_pending_order_cancelled",
			principal:     customer,
			order:         testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid),
			wantCancelled: true,
		},
		{
			name:          "operator_cancels_rejected_payment_order",
			principal:     operator,
			order:         testOrder(models.OrderStatusProcessing, models.PaymentStatusRejected),
			wantCancelled: true,
		},
		{
			name:      "payment_pending_return_conflict",
			principal: customer,
			order:     testOrder(models.OrderStatusPending, models.PaymentStatusPending),
			wantErr:   models.IsConflict,
		},
		{
			name:      "payment_verified_return_conflict",
			principal: customer,
			order:     testOrder(models.OrderStatusProcessing, models.PaymentStatusVerified),
			wantErr:   models.IsConflict,
		},
		{
			name:      "completed_return_conflict",
			principal: customer,
			order:     testOrder(models.OrderStatusCompleted, models.PaymentStatusUnpaid),
			wantErr:   models.IsConflict,
		},
		{
			name:      "other_user_return_access_denied",
			principal: stranger,
			order:     testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid),
			wantErr:   models.IsAccessDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mocks.NewMockOrderRepository(ctrl)
			repo.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(tt.order, nil)

			notifier := mocks.NewMockNotifier(ctrl)
			if tt.wantCancelled {
				repo.EXPECT().UpdateOrderStatus(gomock.Any(), "ORD-001", models.OrderStatusCancelled).Return(nil)
				notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, n models.Notice) {
					assert.Equal(t, customer.UserID, n.UserID)
					assert.Equal(t, models.EventOrderStatusChanged, n.Event)
				}).Times(1)
			} else {
				repo.EXPECT().UpdateOrderStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)
			}

			svc := NewOrderService(repo, passThroughTx(t, ctrl), notifier, noopCache(ctrl), zap.NewNop())
			order, err := svc.Cancel(context.Background(), tt.principal, "ORD-001")
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCancelled, order.Status)
		})
	}
}

func TestOrderService_AssignMachine(t *testing.T) {
	tests := []struct {
		name        string
		machineID   string
		machineName string
		order       *models.Order
		getErr      error
		wantStatus  models.OrderStatus
		wantErr     func(error) bool
	}{
		{
			name:        "pending_order_promoted_to_processing",
			machineID:   "M-01",
			machineName: "Optical Sorter A",
			order:       testOrder(models.OrderStatusPending, models.PaymentStatusVerified),
			wantStatus:  models.OrderStatusProcessing,
		},
		{
			name:        "processing_order_keeps_status",
			machineID:   "M-02",
			machineName: "Optical Sorter B",
			order:       testOrder(models.OrderStatusProcessing, models.PaymentStatusVerified),
			wantStatus:  models.OrderStatusProcessing,
		},
		{
			name:        "missing_machine_name_return_validation_error",
			machineID:   "M-01",
			machineName: " ",
			wantErr:     models.IsValidation,
		},
		{
			name:        "unknown_order_return_not_found",
			machineID:   "M-01",
			machineName: "Optical Sorter A",
			getErr:      models.ErrDataNotFound,
			wantErr:     models.IsNotFound,
		},
		{
			name:        "completed_order_return_conflict",
			machineID:   "M-01",
			machineName: "Optical Sorter A",
			order:       testOrder(models.OrderStatusCompleted, models.PaymentStatusVerified),
			wantErr:     models.IsConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mocks.NewMockOrderRepository(ctrl)
			notifier := mocks.NewMockNotifier(ctrl)

			if tt.order != nil || tt.getErr != nil {
				repo.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(tt.order, tt.getErr)
			}
			if tt.wantErr == nil {
				repo.EXPECT().AssignMachine(gomock.Any(), "ORD-001", tt.machineID, tt.machineName, tt.wantStatus).Return(nil)
				notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, n models.Notice) {
					assert.Equal(t, models.EventMachineAssigned, n.Event)
				}).Times(1)
			} else {
				repo.EXPECT().AssignMachine(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)
			}

			svc := NewOrderService(repo, passThroughTx(t, ctrl), notifier, noopCache(ctrl), zap.NewNop())
			order, err := svc.AssignMachine(context.Background(), "ORD-001", tt.machineID, tt.machineName)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, order.Status)
			assert.Equal(t, tt.machineID, order.MachineID)
		})
	}
}

func TestOrderService_Transition(t *testing.T) {
	verified := models.PaymentStatusVerified
	unknown := models.PaymentStatus("refunded")

	tests := []struct {
		name          string
		from          models.OrderStatus
		to            models.OrderStatus
		paymentStatus *models.PaymentStatus
		wantUpdate    bool
		wantNotify    bool
		wantErr       func(error) bool
	}{
		{
			name:       "processing_to_completed",
			from:       models.OrderStatusProcessing,
			to:         models.OrderStatusCompleted,
			wantUpdate: true,
			wantNotify: true,
		},
		{
			name:       "same_status_is_silent_overwrite",
			from:       models.OrderStatusProcessing,
			to:         models.OrderStatusProcessing,
			wantUpdate: true,
		},
		{
			name:          "payment_status_override",
			from:          models.OrderStatusPending,
			to:            models.OrderStatusProcessing,
			paymentStatus: &verified,
			wantUpdate:    true,
			wantNotify:    true,
		},
		{
			name:    "completed_to_pending_return_conflict",
			from:    models.OrderStatusCompleted,
			to:      models.OrderStatusPending,
			wantErr: models.IsConflict,
		},
		{
			name:          "unknown_payment_status_return_validation_error",
			from:          models.OrderStatusPending,
			to:            models.OrderStatusProcessing,
			paymentStatus: &unknown,
			wantErr:       models.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mocks.NewMockOrderRepository(ctrl)
			notifier := mocks.NewMockNotifier(ctrl)

			repo.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(tt.from, models.PaymentStatusPending), nil).AnyTimes()
			if tt.wantUpdate {
				repo.EXPECT().UpdateOrderStatus(gomock.Any(), "ORD-001", tt.to).Return(nil)
			}
			if tt.paymentStatus != nil && tt.wantErr == nil {
				repo.EXPECT().UpdatePaymentStatus(gomock.Any(), "ORD-001", *tt.paymentStatus).Return(nil)
			}
			if tt.wantNotify {
				notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(1)
			} else {
				notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)
			}

			svc := NewOrderService(repo, passThroughTx(t, ctrl), notifier, noopCache(ctrl), zap.NewNop())
			order, err := svc.Transition(context.Background(), "ORD-001", tt.to, tt.paymentStatus)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, order.Status)
		})
	}
}

func TestOrderService_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOrderRepository(ctrl)
	cache := mocks.NewMockOrderCache(ctrl)

	cached := testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid)
	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), "ORD-001").Return(nil, errors.New("cache miss")),
		repo.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(cached, nil),
		cache.EXPECT().Set(gomock.Any(), cached).Return(nil),
		cache.EXPECT().Get(gomock.Any(), "ORD-001").Return(cached, nil),
	)

	svc := NewOrderService(repo, passThroughTx(t, ctrl), mocks.NewMockNotifier(ctrl), cache, zap.NewNop())

	order, err := svc.Get(context.Background(), customer, "ORD-001")
	require.NoError(t, err)
	assert.Equal(t, cached, order)

	_, err = svc.Get(context.Background(), stranger, "ORD-001")
	assert.True(t, models.IsAccessDenied(err))
}

func TestOrderService_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOrderRepository(ctrl)
	repo.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid), nil).Times(2)
	repo.EXPECT().DeleteOrder(gomock.Any(), "ORD-001").Return(nil).Times(1)

	svc := NewOrderService(repo, passThroughTx(t, ctrl), mocks.NewMockNotifier(ctrl), noopCache(ctrl), zap.NewNop())

	err := svc.Delete(context.Background(), stranger, "ORD-001")
	assert.True(t, models.IsAccessDenied(err))

	err = svc.Delete(context.Background(), customer, "ORD-001")
	assert.NoError(t, err)
}
