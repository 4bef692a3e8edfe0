package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/rookgm/kopisort/internal/handler/http/mocks"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSortingHandler_RecordResult(t *testing.T) {
	sortedAt := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           string
		setup          func(m *mocks.MockSortingService)
		wantStatusCode int
		wantBody       *sortingResultResponse
	}{
		{
			// 201 — результат сохранён
			name: "valid_request_return_201",
			body: `{"orderId":"ORD-001","totalBeans":65,"healthyBeans":50,"defectiveBeans":15,"totalWeight":65}`,
			setup: func(m *mocks.MockSortingService) {
				in := models.SortingInput{OrderID: "ORD-001", TotalBeans: 65, HealthyBeans: 50, DefectiveBeans: 15, TotalWeight: 65}
				res := in.Derive(sortedAt)
				res.ID = "SORT-1"
				m.EXPECT().RecordResult(gomock.Any(), in).Return(&res, nil)
			},
			wantStatusCode: http.StatusCreated,
			wantBody: &sortingResultResponse{
				ID:                  "SORT-1",
				OrderID:             "ORD-001",
				TotalBeans:          65,
				HealthyBeans:        50,
				DefectiveBeans:      15,
				HealthyPercentage:   76.92,
				DefectivePercentage: 23.08,
				TotalWeight:         65,
				HealthyWeight:       50,
				DefectiveWeight:     15,
				Accuracy:            95,
				SortedAt:            sortedAt.Format(time.RFC3339),
			},
		},
		{
			// 400 — не хватает обязательных полей
			name: "missing_order_return_400",
			body: `{"totalBeans":1,"healthyBeans":1,"defectiveBeans":0,"totalWeight":1}`,
			setup: func(m *mocks.MockSortingService) {
				m.EXPECT().RecordResult(gomock.Any(), gomock.Any()).Return(nil, models.NewValidationError("orderId", "is required"))
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "unknown_order_return_404",
			body: `{"orderId":"ORD-404","totalBeans":1,"healthyBeans":1,"defectiveBeans":0,"totalWeight":1}`,
			setup: func(m *mocks.MockSortingService) {
				m.EXPECT().RecordResult(gomock.Any(), gomock.Any()).Return(nil, models.NewNotFoundError("order", "ORD-404"))
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svcMock := mocks.NewMockSortingService(ctrl)
			tt.setup(svcMock)

			w := httptest.NewRecorder()
			NewSortingHandler(svcMock, zap.NewNop()).RecordResult()(w, newRequest(t, http.MethodPost, "/api/sorting/results", tt.body, operator, ""))

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantBody != nil {
				var got sortingResultResponse
				require.NoError(t, json.Unmarshal(decodeEnvelope(t, res).Data, &got))

				if diff := cmp.Diff(*tt.wantBody, got); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestSortingHandler_GetHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	svcMock := mocks.NewMockSortingService(ctrl)
	svcMock.EXPECT().History(gomock.Any(), customer, "ORD-001").Return([]models.SortingResultHistory{
		{ID: 1, OrderID: "ORD-001", TotalBeans: 10, HealthyBeans: 9, DefectiveBeans: 1, HealthyPercentage: 90, DefectivePercentage: 10, CreatedAt: first},
		{ID: 2, OrderID: "ORD-001", TotalBeans: 20, HealthyBeans: 19, DefectiveBeans: 1, HealthyPercentage: 95, DefectivePercentage: 5, CreatedAt: first.Add(time.Hour)},
	}, nil)

	w := httptest.NewRecorder()
	NewSortingHandler(svcMock, zap.NewNop()).GetHistory()(w, newRequest(t, http.MethodGet, "/api/orders/ORD-001/sorting-history", "", customer, "ORD-001"))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []sortingResultResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, res).Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, 90.0, got[0].HealthyPercentage)
	assert.Equal(t, first.Add(time.Hour).Format(time.RFC3339), got[1].SortedAt)
}

func TestSortingHandler_ListResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sortedAt := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	svcMock := mocks.NewMockSortingService(ctrl)
	svcMock.EXPECT().List(gomock.Any(), operator).Return([]models.SortingResult{
		{ID: "SORT-2", OrderID: "ORD-002", TotalBeans: 10, HealthyBeans: 8, DefectiveBeans: 2, HealthyPercentage: 80, DefectivePercentage: 20, SortedAt: sortedAt},
		{ID: "SORT-1", OrderID: "ORD-001", TotalBeans: 4, HealthyBeans: 4, HealthyPercentage: 100, SortedAt: sortedAt},
	}, nil)

	w := httptest.NewRecorder()
	NewSortingHandler(svcMock, zap.NewNop()).ListResults()(w, newRequest(t, http.MethodGet, "/api/sorting/results", "", operator, ""))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []sortingResultResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, res).Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "SORT-2", got[0].ID)
	assert.Equal(t, 80.0, got[0].HealthyPercentage)
}

func TestSortingHandler_GetDashboard(t *testing.T) {
	dashboard := &models.Dashboard{
		TotalBeans:          40,
		HealthyBeans:        30,
		DefectiveBeans:      10,
		HealthyPercentage:   75,
		DefectivePercentage: 25,
		Accuracy:            92,
		TotalOrders:         1,
		TotalCost:           decimal.RequireFromString("150000"),
		OrderStats: []models.OrderStat{
			{OrderID: "ORD-001", Weight: 10, TotalCost: decimal.RequireFromString("150000")},
		},
	}

	tests := []struct {
		name           string
		target         string
		setup          func(m *mocks.MockSortingService)
		wantStatusCode int
		wantBody       *dashboardResponse
	}{
		{
			// 200 — по умолчанию за всё время
			name:   "defaults_to_all_return_200",
			target: "/api/sorting/dashboard",
			setup: func(m *mocks.MockSortingService) {
				m.EXPECT().Dashboard(gomock.Any(), customer, models.PeriodAll, 0, 0).Return(dashboard, nil)
			},
			wantStatusCode: http.StatusOK,
			wantBody: &dashboardResponse{
				TotalBeans:          40,
				HealthyBeans:        30,
				DefectiveBeans:      10,
				HealthyPercentage:   75,
				DefectivePercentage: 25,
				Accuracy:            92,
				TotalOrders:         1,
				TotalCost:           decimal.RequireFromString("150000"),
				OrderStats: []orderStatResponse{
					{OrderID: "ORD-001", Weight: 10, TotalCost: decimal.RequireFromString("150000")},
				},
			},
		},
		{
			name:   "month_period_passed_through",
			target: "/api/sorting/dashboard?period=month&year=2025&month=3",
			setup: func(m *mocks.MockSortingService) {
				m.EXPECT().Dashboard(gomock.Any(), customer, models.PeriodMonth, 2025, 3).Return(&models.Dashboard{Accuracy: models.DefaultAccuracy}, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// 400 — месяц не число
			name:           "non_numeric_month_return_400",
			target:         "/api/sorting/dashboard?period=month&month=march",
			setup:          func(m *mocks.MockSortingService) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			// 503 — хранилище недоступно
			name:   "storage_unavailable_return_503",
			target: "/api/sorting/dashboard",
			setup: func(m *mocks.MockSortingService) {
				m.EXPECT().Dashboard(gomock.Any(), customer, models.PeriodAll, 0, 0).
					Return(nil, &models.TransientStorageError{Attempts: 3, Err: context.DeadlineExceeded})
			},
			wantStatusCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svcMock := mocks.NewMockSortingService(ctrl)
			tt.setup(svcMock)

			w := httptest.NewRecorder()
			NewSortingHandler(svcMock, zap.NewNop()).GetDashboard()(w, newRequest(t, http.MethodGet, tt.target, "", customer, ""))

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantBody != nil {
				var got dashboardResponse
				require.NoError(t, json.Unmarshal(decodeEnvelope(t, res).Data, &got))

				if diff := cmp.Diff(*tt.wantBody, got, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}
