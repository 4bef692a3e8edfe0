package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/rookgm/kopisort/internal/models"
	"go.uber.org/zap"
)

// envelope is the body of every API response
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		return
	}
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// respondError maps service error onto status code. Conflicts use conflictStatus.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, conflictStatus int) {
	var tooMany models.TooManyRequestsError

	switch {
	case models.IsValidation(err):
		respondFail(w, http.StatusBadRequest, err.Error())
	case models.IsNotFound(err):
		respondFail(w, http.StatusNotFound, err.Error())
	case models.IsConflict(err):
		respondFail(w, conflictStatus, err.Error())
	case models.IsAccessDenied(err):
		respondFail(w, http.StatusForbidden, err.Error())
	case models.IsTransient(err):
		logger.Warn("storage unavailable", zap.Error(err))
		respondFail(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	case errors.As(err, &tooMany):
		w.Header().Set("Retry-After", fmt.Sprint(int(math.Ceil(tooMany.RetryAfter.Seconds()))))
		respondFail(w, http.StatusServiceUnavailable, "classifier is busy, retry later")
	default:
		logger.Error("unexpected error", zap.Error(err))
		respondFail(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads request body into v
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("", "invalid request body")
	}
	return nil
}

// periodQuery reads period, year and month query parameters.
// Missing period falls back to def, missing year and month to zero.
func periodQuery(r *http.Request, def models.Period) (models.Period, int, int, error) {
	q := r.URL.Query()

	period := def
	if v := q.Get("period"); v != "" {
		period = models.Period(v)
	}

	year, err := intQuery(q.Get("year"), "year")
	if err != nil {
		return "", 0, 0, err
	}
	month, err := intQuery(q.Get("month"), "month")
	if err != nil {
		return "", 0, 0, err
	}

	return period, year, month, nil
}

func intQuery(v, field string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, models.NewValidationError(field, "must be an integer")
	}
	return n, nil
}
