package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/service/mocks"
)

var (
	customer = &models.TokenPayload{UserID: 7, UserName: "budi", Role: models.RoleUser}
	stranger = &models.TokenPayload{UserID: 8, UserName: "sari", Role: models.RoleUser}
	operator = &models.TokenPayload{UserID: 1, UserName: "admin", Role: models.RoleAdmin}
)

// passThroughTx runs the unit of work directly
func passThroughTx(t *testing.T, ctrl *gomock.Controller) *mocks.MockTransactor {
	t.Helper()
	tx := mocks.NewMockTransactor(ctrl)
	tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
	return tx
}

func noopCache(ctrl *gomock.Controller) *mocks.MockOrderCache {
	cache := mocks.NewMockOrderCache(ctrl)
	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, models.ErrDataNotFound).AnyTimes()
	cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Invalidate(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return cache
}

func testOrder(status models.OrderStatus, paymentStatus models.PaymentStatus) *models.Order {
	return &models.Order{
		ID:            "ORD-001",
		UserID:        customer.UserID,
		PackageName:   "Premium",
		Weight:        25,
		Status:        status,
		PaymentStatus: paymentStatus,
	}
}
