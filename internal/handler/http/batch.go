package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rookgm/kopisort/internal/classifier"
	"github.com/rookgm/kopisort/internal/models"
	"go.uber.org/zap"
)

type BatchService interface {
	// AutoGenerate splits order into batches of at most 10 kg
	AutoGenerate(ctx context.Context, orderID string) ([]models.Batch, error)
	// CreateManual creates next batch of order
	CreateManual(ctx context.Context, in models.BatchInput) (*models.Batch, error)
	// Update applies patch to batch
	Update(ctx context.Context, id string, patch models.BatchPatch) (*models.Batch, error)
	// Complete marks batch completed
	Complete(ctx context.Context, id string) (*models.Batch, error)
	// List returns order batches
	List(ctx context.Context, principal *models.TokenPayload, orderID string) ([]models.Batch, error)
	// History returns batches of calendar period
	History(ctx context.Context, principal *models.TokenPayload, period models.Period, year, month int) ([]models.Batch, error)
	// ClassifySample labels sample image and records it on batch
	ClassifySample(ctx context.Context, id, imageRef string) (*models.Batch, *classifier.Prediction, error)
}

// BatchHandler represents HTTP handler for batch-related requests
type BatchHandler struct {
	svc    BatchService
	logger *zap.Logger
}

// NewBatchHandler creates new BatchHandler instance
func NewBatchHandler(svc BatchService, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{svc: svc, logger: logger}
}

type batchResponse struct {
	ID                string   `json:"id"`
	OrderID           string   `json:"orderId"`
	BatchNumber       int      `json:"batchNumber"`
	TotalWeight       float64  `json:"totalWeight"`
	Status            string   `json:"status"`
	TotalBeans        int      `json:"totalBeans"`
	HealthyBeans      int      `json:"healthyBeans"`
	DefectiveBeans    int      `json:"defectiveBeans"`
	Accuracy          *float64 `json:"accuracy,omitempty"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	ProcessedImageURL string   `json:"processedImageUrl,omitempty"`
	CreatedAt         string   `json:"createdAt"`
	CompletedAt       string   `json:"completedAt,omitempty"`
}

func newBatchResponse(b *models.Batch) batchResponse {
	resp := batchResponse{
		ID:                b.ID,
		OrderID:           b.OrderID,
		BatchNumber:       b.BatchNumber,
		TotalWeight:       b.TotalWeight,
		Status:            string(b.Status),
		TotalBeans:        b.TotalBeans,
		HealthyBeans:      b.HealthyBeans,
		DefectiveBeans:    b.DefectiveBeans,
		Accuracy:          b.Accuracy,
		ImageURL:          b.ImageURL,
		ProcessedImageURL: b.ProcessedImageURL,
		CreatedAt:         b.CreatedAt.Format(time.RFC3339),
	}
	if b.CompletedAt != nil {
		resp.CompletedAt = b.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func newBatchesResponse(batches []models.Batch) []batchResponse {
	resp := make([]batchResponse, 0, len(batches))
	for i := range batches {
		resp = append(resp, newBatchResponse(&batches[i]))
	}
	return resp
}

// AutoGenerate generates batches for order
// 201 — партии созданы;
// 400 — партии уже существуют;
// 404 — заказ не найден.
func (bh *BatchHandler) AutoGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batches, err := bh.svc.AutoGenerate(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, bh.logger, err, http.StatusBadRequest)
			return
		}

		respondOK(w, http.StatusCreated, "batches generated", newBatchesResponse(batches))
	}
}

// ListBatches returns order batches ordered by number
func (bh *BatchHandler) ListBatches() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		batches, err := bh.svc.List(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "", newBatchesResponse(batches))
	}
}

// BatchHistory returns batches created in period, newest first
// 200 — список партий;
// 400 — неверный период.
func (bh *BatchHandler) BatchHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		period, year, month, err := periodQuery(r, models.PeriodMonth)
		if err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		batches, err := bh.svc.History(r.Context(), payload, period, year, month)
		if err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "", newBatchesResponse(batches))
	}
}

type createBatchRequest struct {
	OrderID           string   `json:"orderId"`
	BatchNumber       int      `json:"batchNumber"`
	TotalWeight       float64  `json:"totalWeight"`
	TotalBeans        int      `json:"totalBeans"`
	HealthyBeans      int      `json:"healthyBeans"`
	DefectiveBeans    int      `json:"defectiveBeans"`
	Accuracy          *float64 `json:"accuracy"`
	ImageURL          string   `json:"imageUrl"`
	ProcessedImageURL string   `json:"processedImageUrl"`
}

// CreateBatch creates batch manually
func (bh *BatchHandler) CreateBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBatchRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		batch, err := bh.svc.CreateManual(r.Context(), models.BatchInput{
			OrderID:           req.OrderID,
			BatchNumber:       req.BatchNumber,
			TotalWeight:       req.TotalWeight,
			TotalBeans:        req.TotalBeans,
			HealthyBeans:      req.HealthyBeans,
			DefectiveBeans:    req.DefectiveBeans,
			Accuracy:          req.Accuracy,
			ImageURL:          req.ImageURL,
			ProcessedImageURL: req.ProcessedImageURL,
		})
		if err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusCreated, "batch created", newBatchResponse(batch))
	}
}

type updateBatchRequest struct {
	TotalWeight    *float64 `json:"totalWeight"`
	Status         *string  `json:"status"`
	TotalBeans     *int     `json:"totalBeans"`
	HealthyBeans   *int     `json:"healthyBeans"`
	DefectiveBeans *int     `json:"defectiveBeans"`
	Accuracy       *float64 `json:"accuracy"`
}

// UpdateBatch updates listed batch fields
func (bh *BatchHandler) UpdateBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateBatchRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		patch := models.BatchPatch{
			TotalWeight:    req.TotalWeight,
			TotalBeans:     req.TotalBeans,
			HealthyBeans:   req.HealthyBeans,
			DefectiveBeans: req.DefectiveBeans,
			Accuracy:       req.Accuracy,
		}
		if req.Status != nil {
			status := models.BatchStatus(*req.Status)
			patch.Status = &status
		}

		batch, err := bh.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "batch updated", newBatchResponse(batch))
	}
}

// CompleteBatch marks batch completed
func (bh *BatchHandler) CompleteBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batch, err := bh.svc.Complete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "batch completed", newBatchResponse(batch))
	}
}

type classifyRequest struct {
	ImageRef string `json:"imageRef"`
}

type classifyResponse struct {
	Batch      batchResponse `json:"batch"`
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Defective  bool          `json:"defective"`
}

// ClassifySample sends sample image to classifier and records outcome on batch
// 200 — образец обработан;
// 409 — партия уже завершена;
// 503 — классификатор недоступен.
func (bh *BatchHandler) ClassifySample() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		batch, prediction, err := bh.svc.ClassifySample(r.Context(), chi.URLParam(r, "id"), req.ImageRef)
		if err != nil {
			respondError(w, bh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "", classifyResponse{
			Batch:      newBatchResponse(batch),
			Label:      prediction.Label,
			Confidence: prediction.Confidence,
			Defective:  prediction.IsDefective(),
		})
	}
}
