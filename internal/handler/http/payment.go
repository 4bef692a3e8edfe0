package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentService interface {
	// Submit records payment proof for order
	Submit(ctx context.Context, principal *models.TokenPayload, in models.PaymentInput) (*models.Payment, error)
	// Get returns payment with proof link
	Get(ctx context.Context, principal *models.TokenPayload, id string) (*models.Payment, error)
	// List returns payments visible to principal, newest first
	List(ctx context.Context, principal *models.TokenPayload) ([]models.Payment, error)
	// GetByOrder returns latest payment of order
	GetByOrder(ctx context.Context, principal *models.TokenPayload, orderID string) (*models.Payment, error)
	// Verify accepts pending payment
	Verify(ctx context.Context, verifier *models.TokenPayload, id string) (*models.Payment, error)
	// Reject rejects pending payment
	Reject(ctx context.Context, verifier *models.TokenPayload, id, reason string) (*models.Payment, error)
}

// PaymentHandler represents HTTP handler for payment-related requests
type PaymentHandler struct {
	svc    PaymentService
	logger *zap.Logger
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(svc PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

type submitPaymentRequest struct {
	OrderID     string          `json:"orderId"`
	Method      string          `json:"method"`
	AccountName string          `json:"accountName"`
	Amount      decimal.Decimal `json:"amount"`
	ProofRef    string          `json:"proofRef"`
}

type paymentResponse struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	UserID          uint64          `json:"userId"`
	Method          string          `json:"method"`
	AccountName     string          `json:"accountName"`
	Amount          decimal.Decimal `json:"amount"`
	ProofURL        string          `json:"proofUrl,omitempty"`
	Status          string          `json:"status"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	VerifiedBy      *uint64         `json:"verifiedBy,omitempty"`
	VerifiedAt      string          `json:"verifiedAt,omitempty"`
	CreatedAt       string          `json:"createdAt"`
}

func newPaymentResponse(p *models.Payment) paymentResponse {
	resp := paymentResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		UserID:          p.UserID,
		Method:          p.Method,
		AccountName:     p.AccountName,
		Amount:          p.Amount,
		ProofURL:        p.ProofURL,
		Status:          string(p.Status),
		RejectionReason: p.RejectionReason,
		VerifiedBy:      p.VerifiedBy,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	if p.VerifiedAt != nil {
		resp.VerifiedAt = p.VerifiedAt.Format(time.RFC3339)
	}
	return resp
}

// SubmitPayment submits payment proof for user order
// 201 — платёж принят на проверку;
// 400 — неверные данные или платёж уже существует;
// 403 — заказ принадлежит другому пользователю;
// 404 — заказ не найден.
func (ph *PaymentHandler) SubmitPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req submitPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, ph.logger, err, http.StatusBadRequest)
			return
		}

		payment, err := ph.svc.Submit(r.Context(), payload, models.PaymentInput{
			OrderID:     req.OrderID,
			Method:      req.Method,
			AccountName: req.AccountName,
			Amount:      req.Amount,
			ProofRef:    req.ProofRef,
		})
		if err != nil {
			respondError(w, ph.logger, err, http.StatusBadRequest)
			return
		}

		respondOK(w, http.StatusCreated, "payment submitted", newPaymentResponse(payment))
	}
}

// GetPayment returns payment by id
func (ph *PaymentHandler) GetPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		payment, err := ph.svc.Get(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, ph.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "", newPaymentResponse(payment))
	}
}

// ListPayments returns payments of user, all payments for operator
func (ph *PaymentHandler) ListPayments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		payments, err := ph.svc.List(r.Context(), payload)
		if err != nil {
			respondError(w, ph.logger, err, http.StatusConflict)
			return
		}

		resp := make([]paymentResponse, 0, len(payments))
		for i := range payments {
			resp = append(resp, newPaymentResponse(&payments[i]))
		}

		respondOK(w, http.StatusOK, "", resp)
	}
}

// GetOrderPayment returns latest payment of order
// 200 — платёж найден;
// 403 — чужой заказ;
// 404 — заказ или платёж не найден.
func (ph *PaymentHandler) GetOrderPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		payment, err := ph.svc.GetByOrder(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, ph.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "", newPaymentResponse(payment))
	}
}

// VerifyPayment verifies pending payment
func (ph *PaymentHandler) VerifyPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		payment, err := ph.svc.Verify(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, ph.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "payment verified", newPaymentResponse(payment))
	}
}

type rejectPaymentRequest struct {
	Reason string `json:"reason"`
}

// RejectPayment rejects pending payment with reason
func (ph *PaymentHandler) RejectPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req rejectPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, ph.logger, err, http.StatusConflict)
			return
		}

		payment, err := ph.svc.Reject(r.Context(), payload, chi.URLParam(r, "id"), req.Reason)
		if err != nil {
			respondError(w, ph.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "payment rejected", newPaymentResponse(payment))
	}
}
