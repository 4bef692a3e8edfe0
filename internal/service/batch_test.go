package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rookgm/kopisort/internal/classifier"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type batchMocks struct {
	batches    *mocks.MockBatchRepository
	orders     *mocks.MockOrderRepository
	notifier   *mocks.MockNotifier
	classifier *mocks.MockClassifier
}

func newBatchService(t *testing.T, ctrl *gomock.Controller) (*BatchService, batchMocks) {
	m := batchMocks{
		batches:    mocks.NewMockBatchRepository(ctrl),
		orders:     mocks.NewMockOrderRepository(ctrl),
		notifier:   mocks.NewMockNotifier(ctrl),
		classifier: mocks.NewMockClassifier(ctrl),
	}
	svc := NewBatchService(m.batches, m.orders, passThroughTx(t, ctrl), m.notifier, m.classifier, zap.NewNop())
	return svc, m
}

func TestBatchService_AutoGenerate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m batchMocks)
		wantLen int
		wantErr func(error) bool
	}{
		{
			name: "weight_25_gives_three_batches",
			setup: func(m batchMocks) {
				m.orders.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid), nil)
				m.batches.EXPECT().GetBatchStats(gomock.Any(), "ORD-001").Return(models.BatchStats{}, nil)
				m.batches.EXPECT().CreateBatches(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, batches []models.Batch) ([]models.Batch, error) {
						require.Len(t, batches, 3)
						assert.Equal(t, []float64{10, 10, 5}, []float64{batches[0].TotalWeight, batches[1].TotalWeight, batches[2].TotalWeight})
						assert.Equal(t, []int{1, 2, 3}, []int{batches[0].BatchNumber, batches[1].BatchNumber, batches[2].BatchNumber})
						return batches, nil
					})
			},
			wantLen: 3,
		},
		{
			name: "second_call_return_conflict",
			setup: func(m batchMocks) {
				m.orders.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid), nil)
				m.batches.EXPECT().GetBatchStats(gomock.Any(), "ORD-001").Return(models.BatchStats{Count: 3, MaxNumber: 3, TotalWeight: 25}, nil)
				m.batches.EXPECT().CreateBatches(gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: models.IsConflict,
		},
		{
			name: "concurrent_generation_return_conflict",
			setup: func(m batchMocks) {
				m.orders.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid), nil)
				m.batches.EXPECT().GetBatchStats(gomock.Any(), "ORD-001").Return(models.BatchStats{}, nil)
				m.batches.EXPECT().CreateBatches(gomock.Any(), gomock.Any()).Return(nil, models.ErrConflictData)
			},
			wantErr: models.IsConflict,
		},
		{
			name: "unknown_order_return_not_found",
			setup: func(m batchMocks) {
				m.orders.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(nil, models.ErrDataNotFound)
			},
			wantErr: models.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newBatchService(t, ctrl)
			tt.setup(m)

			batches, err := svc.AutoGenerate(context.Background(), "ORD-001")
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, batches, tt.wantLen)
		})
	}
}

func TestBatchService_CreateManual(t *testing.T) {
	tests := []struct {
		name    string
		in      models.BatchInput
		stats   models.BatchStats
		wantErr func(error) bool
	}{
		{
			name:  "next_batch_created",
			in:    models.BatchInput{OrderID: "ORD-001", BatchNumber: 2, TotalWeight: 15},
			stats: models.BatchStats{Count: 1, MaxNumber: 1, TotalWeight: 10},
		},
		{
			name:    "over_ceiling_return_validation_error",
			in:      models.BatchInput{OrderID: "ORD-001", BatchNumber: 1, TotalWeight: 21},
			wantErr: models.IsValidation,
		},
		{
			name:    "gap_in_numbers_return_conflict",
			in:      models.BatchInput{OrderID: "ORD-001", BatchNumber: 3, TotalWeight: 5},
			stats:   models.BatchStats{Count: 1, MaxNumber: 1, TotalWeight: 10},
			wantErr: models.IsConflict,
		},
		{
			name:    "exceeds_order_weight_return_conflict",
			in:      models.BatchInput{OrderID: "ORD-001", BatchNumber: 3, TotalWeight: 6},
			stats:   models.BatchStats{Count: 2, MaxNumber: 2, TotalWeight: 20},
			wantErr: models.IsConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newBatchService(t, ctrl)
			if !models.IsValidation(tt.in.Validate()) {
				m.orders.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(models.OrderStatusPending, models.PaymentStatusUnpaid), nil)
				m.batches.EXPECT().GetBatchStats(gomock.Any(), "ORD-001").Return(tt.stats, nil)
			}
			if tt.wantErr == nil {
				m.batches.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, b *models.Batch) (*models.Batch, error) {
						assert.Equal(t, "BATCH-ORD-001-2", b.ID)
						assert.Equal(t, models.BatchStatusPending, b.Status)
						return b, nil
					})
			} else {
				m.batches.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Times(0)
			}

			batch, err := svc.CreateManual(context.Background(), tt.in)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, batch.BatchNumber)
		})
	}
}

func TestBatchService_Update(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, m := newBatchService(t, ctrl)

	weight := 12.0
	completed := models.BatchStatusCompleted
	batch := &models.Batch{ID: "BATCH-ORD-001-2", OrderID: "ORD-001", BatchNumber: 2, TotalWeight: 10, Status: models.BatchStatusProcessing}

	m.batches.EXPECT().GetBatchByID(gomock.Any(), batch.ID).Return(batch, nil)
	m.orders.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(models.OrderStatusProcessing, models.PaymentStatusVerified), nil)
	m.batches.EXPECT().GetBatchStats(gomock.Any(), "ORD-001").Return(models.BatchStats{Count: 3, MaxNumber: 3, TotalWeight: 25}, nil)
	m.batches.EXPECT().UpdateBatch(gomock.Any(), gomock.Any()).Times(0)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	// 25 - 10 + 12 exceeds the 25 kg order
	_, err := svc.Update(context.Background(), batch.ID, models.BatchPatch{TotalWeight: &weight, Status: &completed})
	assert.True(t, models.IsConflict(err), "unexpected error %v", err)
}

func TestBatchService_Complete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, m := newBatchService(t, ctrl)

	batch := &models.Batch{ID: "BATCH-ORD-001-1", OrderID: "ORD-001", BatchNumber: 1, TotalWeight: 10, Status: models.BatchStatusProcessing}
	done := &models.Batch{ID: "BATCH-ORD-001-2", OrderID: "ORD-001", BatchNumber: 2, TotalWeight: 10, Status: models.BatchStatusCompleted}

	m.batches.EXPECT().GetBatchByID(gomock.Any(), batch.ID).Return(batch, nil)
	m.batches.EXPECT().GetBatchByID(gomock.Any(), done.ID).Return(done, nil)
	m.orders.EXPECT().GetOrderByID(gomock.Any(), "ORD-001").Return(testOrder(models.OrderStatusProcessing, models.PaymentStatusVerified), nil).Times(1)
	m.batches.EXPECT().UpdateBatch(gomock.Any(), batch).Return(nil).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, n models.Notice) {
		assert.Equal(t, customer.UserID, n.UserID)
		assert.Equal(t, models.NotificationSuccess, models.NormalizeNotificationType(n.Type))
	}).Times(1)

	got, err := svc.Complete(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// completing twice does not notify again
	_, err = svc.Complete(context.Background(), done.ID)
	require.NoError(t, err)
}

func TestBatchService_ClassifySample(t *testing.T) {
	tests := []struct {
		name          string
		prediction    *classifier.Prediction
		classifyErr   error
		wantHealthy   int
		wantDefective int
		wantErr       bool
	}{
		{
			name:        "healthy_label",
			prediction:  &classifier.Prediction{Label: "biji bagus", Confidence: 0.93},
			wantHealthy: 1,
		},
		{
			name:          "defect_label",
			prediction:    &classifier.Prediction{Label: "biji rusak", Confidence: 0.88},
			wantDefective: 1,
		},
		{
			name:        "classifier_unavailable",
			classifyErr: errors.New("connection refused"),
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newBatchService(t, ctrl)

			m.classifier.EXPECT().Classify(gomock.Any(), "samples/1.jpg").Return(tt.prediction, tt.classifyErr)
			if !tt.wantErr {
				m.batches.EXPECT().GetBatchByID(gomock.Any(), "BATCH-ORD-001-1").Return(&models.Batch{
					ID: "BATCH-ORD-001-1", OrderID: "ORD-001", BatchNumber: 1, TotalWeight: 10, Status: models.BatchStatusPending,
				}, nil)
				m.batches.EXPECT().UpdateBatch(gomock.Any(), gomock.Any()).Return(nil)
			}

			batch, prediction, err := svc.ClassifySample(context.Background(), "BATCH-ORD-001-1", "samples/1.jpg")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.prediction, prediction)
			assert.Equal(t, models.BatchStatusProcessing, batch.Status)
			assert.Equal(t, tt.wantHealthy, batch.HealthyBeans)
			assert.Equal(t, tt.wantDefective, batch.DefectiveBeans)
			assert.Equal(t, 1, batch.TotalBeans)
		})
	}
}

func TestBatchService_History(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	uid := customer.UserID

	tests := []struct {
		name       string
		principal  *models.TokenPayload
		period     models.Period
		year       int
		month      int
		wantFilter *models.StatsFilter
		wantErr    func(error) bool
	}{
		{
			name:       "customer_month_defaults_to_now",
			principal:  customer,
			period:     models.PeriodMonth,
			wantFilter: &models.StatsFilter{UserID: &uid, Year: 2025, Month: 3},
		},
		{
			name:       "operator_whole_year",
			principal:  operator,
			period:     models.PeriodYear,
			year:       2024,
			wantFilter: &models.StatsFilter{Year: 2024},
		},
		{
			name:      "bad_month_return_validation_error",
			principal: customer,
			period:    models.PeriodMonth,
			month:     13,
			wantErr:   models.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, m := newBatchService(t, ctrl)
			svc.now = func() time.Time { return now }

			batches := []models.Batch{{ID: "BATCH-ORD-001-1", OrderID: "ORD-001", BatchNumber: 1}}
			if tt.wantFilter != nil {
				m.batches.EXPECT().GetBatchHistory(gomock.Any(), *tt.wantFilter).Return(batches, nil).Times(1)
			}

			got, err := svc.History(context.Background(), tt.principal, tt.period, tt.year, tt.month)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, batches, got)
		})
	}
}
