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

type SortingService interface {
	// RecordResult derives and stores sorting result
	RecordResult(ctx context.Context, in models.SortingInput) (*models.SortingResult, error)
	// Current returns current sorting result of order
	Current(ctx context.Context, principal *models.TokenPayload, orderID string) (*models.SortingResult, error)
	// History returns sorting history of order
	History(ctx context.Context, principal *models.TokenPayload, orderID string) ([]models.SortingResultHistory, error)
	// List returns current sorting results visible to principal
	List(ctx context.Context, principal *models.TokenPayload) ([]models.SortingResult, error)
	// Dashboard rolls up results and orders of calendar period
	Dashboard(ctx context.Context, principal *models.TokenPayload, period models.Period, year, month int) (*models.Dashboard, error)
}

// SortingHandler represents HTTP handler for sorting result requests
type SortingHandler struct {
	svc    SortingService
	logger *zap.Logger
}

// NewSortingHandler creates new SortingHandler instance
func NewSortingHandler(svc SortingService, logger *zap.Logger) *SortingHandler {
	return &SortingHandler{svc: svc, logger: logger}
}

type recordResultRequest struct {
	OrderID        string   `json:"orderId"`
	TotalBeans     int      `json:"totalBeans"`
	HealthyBeans   int      `json:"healthyBeans"`
	DefectiveBeans int      `json:"defectiveBeans"`
	TotalWeight    float64  `json:"totalWeight"`
	Accuracy       *float64 `json:"accuracy"`
}

type sortingResultResponse struct {
	ID                  string  `json:"id,omitempty"`
	OrderID             string  `json:"orderId"`
	TotalBeans          int     `json:"totalBeans"`
	HealthyBeans        int     `json:"healthyBeans"`
	DefectiveBeans      int     `json:"defectiveBeans"`
	HealthyPercentage   float64 `json:"healthyPercentage"`
	DefectivePercentage float64 `json:"defectivePercentage"`
	TotalWeight         float64 `json:"totalWeight"`
	HealthyWeight       float64 `json:"healthyWeight"`
	DefectiveWeight     float64 `json:"defectiveWeight"`
	Accuracy            float64 `json:"accuracy"`
	SortedAt            string  `json:"sortedAt"`
}

func newSortingResultResponse(res *models.SortingResult) sortingResultResponse {
	return sortingResultResponse{
		ID:                  res.ID,
		OrderID:             res.OrderID,
		TotalBeans:          res.TotalBeans,
		HealthyBeans:        res.HealthyBeans,
		DefectiveBeans:      res.DefectiveBeans,
		HealthyPercentage:   res.HealthyPercentage,
		DefectivePercentage: res.DefectivePercentage,
		TotalWeight:         res.TotalWeight,
		HealthyWeight:       res.HealthyWeight,
		DefectiveWeight:     res.DefectiveWeight,
		Accuracy:            res.Accuracy,
		SortedAt:            res.SortedAt.Format(time.RFC3339),
	}
}

// RecordResult records sorting counts of order
// 201 — результат сохранён;
// 400 — неверные данные;
// 404 — заказ не найден.
func (sh *SortingHandler) RecordResult() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordResultRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, sh.logger, err, http.StatusConflict)
			return
		}

		res, err := sh.svc.RecordResult(r.Context(), models.SortingInput{
			OrderID:        req.OrderID,
			TotalBeans:     req.TotalBeans,
			HealthyBeans:   req.HealthyBeans,
			DefectiveBeans: req.DefectiveBeans,
			TotalWeight:    req.TotalWeight,
			Accuracy:       req.Accuracy,
		})
		if err != nil {
			respondError(w, sh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusCreated, "sorting result recorded", newSortingResultResponse(res))
	}
}

// GetResult returns current sorting result of order
func (sh *SortingHandler) GetResult() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		res, err := sh.svc.Current(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, sh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "", newSortingResultResponse(res))
	}
}

// GetHistory returns sorting history of order, oldest first
func (sh *SortingHandler) GetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		history, err := sh.svc.History(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, sh.logger, err, http.StatusConflict)
			return
		}

		resp := make([]sortingResultResponse, 0, len(history))
		for _, h := range history {
			resp = append(resp, sortingResultResponse{
				OrderID:             h.OrderID,
				TotalBeans:          h.TotalBeans,
				HealthyBeans:        h.HealthyBeans,
				DefectiveBeans:      h.DefectiveBeans,
				HealthyPercentage:   h.HealthyPercentage,
				DefectivePercentage: h.DefectivePercentage,
				TotalWeight:         h.TotalWeight,
				HealthyWeight:       h.HealthyWeight,
				DefectiveWeight:     h.DefectiveWeight,
				Accuracy:            h.Accuracy,
				SortedAt:            h.CreatedAt.Format(time.RFC3339),
			})
		}

		respondOK(w, http.StatusOK, "", resp)
	}
}

// ListResults returns current sorting results, newest first
func (sh *SortingHandler) ListResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		results, err := sh.svc.List(r.Context(), payload)
		if err != nil {
			respondError(w, sh.logger, err, http.StatusConflict)
			return
		}

		resp := make([]sortingResultResponse, 0, len(results))
		for i := range results {
			resp = append(resp, newSortingResultResponse(&results[i]))
		}

		respondOK(w, http.StatusOK, "", resp)
	}
}

type orderStatResponse struct {
	OrderID   string          `json:"orderId"`
	Weight    float64         `json:"weight"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

type dashboardResponse struct {
	TotalBeans          int                 `json:"totalBeans"`
	HealthyBeans        int                 `json:"healthyBeans"`
	DefectiveBeans      int                 `json:"defectiveBeans"`
	HealthyPercentage   float64             `json:"healthyPercentage"`
	DefectivePercentage float64             `json:"defectivePercentage"`
	Accuracy            float64             `json:"accuracy"`
	TotalOrders         int                 `json:"totalOrders"`
	TotalCost           decimal.Decimal     `json:"totalCost"`
	OrderStats          []orderStatResponse `json:"orderStats"`
}

// GetDashboard returns sorting statistics of period
// 200 — статистика;
// 400 — неверный период.
func (sh *SortingHandler) GetDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		period, year, month, err := periodQuery(r, models.PeriodAll)
		if err != nil {
			respondError(w, sh.logger, err, http.StatusConflict)
			return
		}

		d, err := sh.svc.Dashboard(r.Context(), payload, period, year, month)
		if err != nil {
			respondError(w, sh.logger, err, http.StatusConflict)
			return
		}

		resp := dashboardResponse{
			TotalBeans:          d.TotalBeans,
			HealthyBeans:        d.HealthyBeans,
			DefectiveBeans:      d.DefectiveBeans,
			HealthyPercentage:   d.HealthyPercentage,
			DefectivePercentage: d.DefectivePercentage,
			Accuracy:            d.Accuracy,
			TotalOrders:         d.TotalOrders,
			TotalCost:           d.TotalCost,
			OrderStats:          make([]orderStatResponse, 0, len(d.OrderStats)),
		}
		for _, s := range d.OrderStats {
			resp.OrderStats = append(resp.OrderStats, orderStatResponse{
				OrderID:   s.OrderID,
				Weight:    s.Weight,
				TotalCost: s.TotalCost,
			})
		}

		respondOK(w, http.StatusOK, "", resp)
	}
}
