package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rookgm/kopisort/internal/handler/http/mocks"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPaymentHandler_SubmitPayment(t *testing.T) {
	body := `{"orderId":"ORD-001","method":"bank_transfer","accountName":"Budi","amount":"350000","proofRef":"proofs/1.jpg"}`

	tests := []struct {
		name           string
		token          *models.TokenPayload
		setup          func(m *mocks.MockPaymentService)
		wantStatusCode int
	}{
		{
			// 201 — платёж принят на проверку
			name:  "valid_request_return_201",
			token: customer,
			setup: func(m *mocks.MockPaymentService) {
				m.EXPECT().Submit(gomock.Any(), customer, models.PaymentInput{
					OrderID:     "ORD-001",
					Method:      "bank_transfer",
					AccountName: "Budi",
					Amount:      decimal.RequireFromString("350000"),
					ProofRef:    "proofs/1.jpg",
				}).Return(&models.Payment{ID: "PAY-001", OrderID: "ORD-001", Status: models.PaymentStatusPending}, nil)
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			// 400 — платёж уже существует
			name:  "active_payment_return_400",
			token: customer,
			setup: func(m *mocks.MockPaymentService) {
				m.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.NewConflictError("order ORD-001 already has payment PAY-001"))
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			// 403 — заказ принадлежит другому пользователю
			name:  "other_user_return_403",
			token: customer,
			setup: func(m *mocks.MockPaymentService) {
				m.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.NewAccessDeniedError("order belongs to another user"))
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name: "unauthorized_request_return_401",
			setup: func(m *mocks.MockPaymentService) {
				m.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svcMock := mocks.NewMockPaymentService(ctrl)
			tt.setup(svcMock)

			w := httptest.NewRecorder()
			NewPaymentHandler(svcMock, zap.NewNop()).SubmitPayment()(w, newRequest(t, http.MethodPost, "/api/payments", body, tt.token, ""))

			assert.Equal(t, tt.wantStatusCode, w.Code)
		})
	}
}

func TestPaymentHandler_RejectPayment(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		wantStatusCode int
	}{
		{
			name:           "rejected_return_200",
			body:           `{"reason":"amount does not match"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			// 400 — пустая причина
			name:           "empty_reason_return_400",
			body:           `{"reason":""}`,
			err:            models.NewValidationError("reason", "is required"),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "already_reviewed_return_409",
			body:           `{"reason":"duplicate"}`,
			err:            models.NewConflictError("payment PAY-001 is already verified"),
			wantStatusCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svcMock := mocks.NewMockPaymentService(ctrl)
			if tt.err != nil {
				svcMock.EXPECT().Reject(gomock.Any(), operator, "PAY-001", gomock.Any()).Return(nil, tt.err)
			} else {
				svcMock.EXPECT().Reject(gomock.Any(), operator, "PAY-001", "amount does not match").
					Return(&models.Payment{ID: "PAY-001", Status: models.PaymentStatusRejected, RejectionReason: "amount does not match"}, nil)
			}

			w := httptest.NewRecorder()
			req := newRequest(t, http.MethodPost, "/api/payments/PAY-001/reject", tt.body, operator, "PAY-001")
			NewPaymentHandler(svcMock, zap.NewNop()).RejectPayment()(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
		})
	}
}

func TestPaymentHandler_VerifyPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svcMock := mocks.NewMockPaymentService(ctrl)
	svcMock.EXPECT().Verify(gomock.Any(), operator, "PAY-404").Return(nil, models.NewNotFoundError("payment", "PAY-404"))

	w := httptest.NewRecorder()
	NewPaymentHandler(svcMock, zap.NewNop()).VerifyPayment()(w, newRequest(t, http.MethodPost, "/api/payments/PAY-404/verify", "", operator, "PAY-404"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandler_ListPayments(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	created := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	svcMock := mocks.NewMockPaymentService(ctrl)
	svcMock.EXPECT().List(gomock.Any(), customer).Return([]models.Payment{
		{ID: "PAY-002", OrderID: "ORD-002", UserID: 7, Status: models.PaymentStatusPending, ProofURL: "https://proofs/2.jpg", CreatedAt: created},
		{ID: "PAY-001", OrderID: "ORD-001", UserID: 7, Status: models.PaymentStatusVerified, CreatedAt: created},
	}, nil)

	w := httptest.NewRecorder()
	NewPaymentHandler(svcMock, zap.NewNop()).ListPayments()(w, newRequest(t, http.MethodGet, "/api/payments", "", customer, ""))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []paymentResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, res).Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "PAY-002", got[0].ID)
	assert.Equal(t, "https://proofs/2.jpg", got[0].ProofURL)
	assert.Equal(t, string(models.PaymentStatusVerified), got[1].Status)
}

func TestPaymentHandler_GetOrderPayment(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(m *mocks.MockPaymentService)
		wantStatusCode int
		wantID         string
	}{
		{
			// 200 — последний платёж заказа
			name: "latest_payment_return_200",
			setup: func(m *mocks.MockPaymentService) {
				m.EXPECT().GetByOrder(gomock.Any(), customer, "ORD-001").
					Return(&models.Payment{ID: "PAY-002", OrderID: "ORD-001", Status: models.PaymentStatusPending}, nil)
			},
			wantStatusCode: http.StatusOK,
			wantID:         "PAY-002",
		},
		{
			// 403 — чужой заказ
			name: "foreign_order_return_403",
			setup: func(m *mocks.MockPaymentService) {
				m.EXPECT().GetByOrder(gomock.Any(), customer, "ORD-001").Return(nil, models.NewAccessDeniedError("order belongs to another user"))
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			// 404 — платежей нет
			name: "no_payment_return_404",
			setup: func(m *mocks.MockPaymentService) {
				m.EXPECT().GetByOrder(gomock.Any(), customer, "ORD-001").Return(nil, models.NewNotFoundError("payment of order", "ORD-001"))
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svcMock := mocks.NewMockPaymentService(ctrl)
			tt.setup(svcMock)

			w := httptest.NewRecorder()
			NewPaymentHandler(svcMock, zap.NewNop()).GetOrderPayment()(w, newRequest(t, http.MethodGet, "/api/payments/order/ORD-001", "", customer, "ORD-001"))

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantID != "" {
				var got paymentResponse
				require.NoError(t, json.Unmarshal(decodeEnvelope(t, res).Data, &got))
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}
