package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// batch weight ceilings, kg
const (
	AutoBatchCeiling   = 10
	ManualBatchCeiling = 20
)

// BatchStatus is processing state of a batch
type BatchStatus string

// batch status
const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

// IsValid reports whether s is a known batch status
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusCompleted:
		return true
	}
	return false
}

// Batch is a weight-bounded part of an order
type Batch struct {
	ID                string
	OrderID           string
	BatchNumber       int
	TotalWeight       float64
	Status            BatchStatus
	TotalBeans        int
	HealthyBeans      int
	DefectiveBeans    int
	Accuracy          *float64
	ImageURL          string
	ProcessedImageURL string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// FormatBatchID builds batch id from order id and batch number
func FormatBatchID(orderID string, number int) string {
	return fmt.Sprintf("BATCH-%s-%d", orderID, number)
}

// Decompose splits weight into full batches of AutoBatchCeiling
// followed by one remainder batch, numbered from 1.
// The remainder is rounded to 2 decimals and dropped when it rounds to zero.
func Decompose(orderID string, weight float64) []Batch {
	w := decimal.NewFromFloat(weight)
	ceiling := decimal.NewFromInt(AutoBatchCeiling)

	full := w.Div(ceiling).Floor().IntPart()
	remainder := w.Sub(ceiling.Mul(decimal.NewFromInt(full))).Round(2)

	batches := make([]Batch, 0, full+1)
	for i := 1; i <= int(full); i++ {
		batches = append(batches, newPendingBatch(orderID, i, AutoBatchCeiling))
	}
	if remainder.IsPositive() {
		batches = append(batches, newPendingBatch(orderID, int(full)+1, remainder.InexactFloat64()))
	}

	return batches
}

func newPendingBatch(orderID string, number int, weight float64) Batch {
	return Batch{
		ID:          FormatBatchID(orderID, number),
		OrderID:     orderID,
		BatchNumber: number,
		TotalWeight: weight,
		Status:      BatchStatusPending,
	}
}

// BatchStats summarises existing batches of an order
type BatchStats struct {
	Count       int
	MaxNumber   int
	TotalWeight float64
}

// Fits reports whether adding weight keeps batches within order weight
func (s BatchStats) Fits(weight, orderWeight float64) bool {
	sum := decimal.NewFromFloat(s.TotalWeight).Add(decimal.NewFromFloat(weight)).Round(6)
	return sum.LessThanOrEqual(decimal.NewFromFloat(orderWeight))
}

// BatchInput is the data accepted on manual batch creation
type BatchInput struct {
	OrderID           string
	BatchNumber       int
	TotalWeight       float64
	TotalBeans        int
	HealthyBeans      int
	DefectiveBeans    int
	Accuracy          *float64
	ImageURL          string
	ProcessedImageURL string
}

// Validate checks manual batch input
func (in BatchInput) Validate() error {
	if in.OrderID == "" {
		return NewValidationError("orderId", "is required")
	}
	if in.BatchNumber < 1 {
		return NewValidationError("batchNumber", "must start at 1")
	}
	if err := validateBatchWeight(in.TotalWeight); err != nil {
		return err
	}
	if in.TotalBeans < 0 || in.HealthyBeans < 0 || in.DefectiveBeans < 0 {
		return NewValidationError("beans", "must not be negative")
	}
	return validateAccuracy(in.Accuracy)
}

// BatchPatch enumerates updatable batch fields, nil means unchanged
type BatchPatch struct {
	TotalWeight    *float64
	Status         *BatchStatus
	TotalBeans     *int
	HealthyBeans   *int
	DefectiveBeans *int
	Accuracy       *float64
}

// IsEmpty reports whether patch changes nothing
func (p BatchPatch) IsEmpty() bool {
	return p.TotalWeight == nil && p.Status == nil && p.TotalBeans == nil &&
		p.HealthyBeans == nil && p.DefectiveBeans == nil && p.Accuracy == nil
}

// Validate checks every present field
func (p BatchPatch) Validate() error {
	if p.IsEmpty() {
		return NewValidationError("", "no fields to update")
	}
	if p.TotalWeight != nil {
		if err := validateBatchWeight(*p.TotalWeight); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", *p.Status))
	}
	for name, v := range map[string]*int{
		"totalBeans":     p.TotalBeans,
		"healthyBeans":   p.HealthyBeans,
		"defectiveBeans": p.DefectiveBeans,
	} {
		if v != nil && *v < 0 {
			return NewValidationError(name, "must not be negative")
		}
	}
	return validateAccuracy(p.Accuracy)
}

// Apply merges patch onto batch
func (b *Batch) Apply(p BatchPatch) {
	if p.TotalWeight != nil {
		b.TotalWeight = *p.TotalWeight
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.TotalBeans != nil {
		b.TotalBeans = *p.TotalBeans
	}
	if p.HealthyBeans != nil {
		b.HealthyBeans = *p.HealthyBeans
	}
	if p.DefectiveBeans != nil {
		b.DefectiveBeans = *p.DefectiveBeans
	}
	if p.Accuracy != nil {
		acc := *p.Accuracy
		b.Accuracy = &acc
	}
}

// RecordSample adds one classified bean and folds confidence into running accuracy
func (b *Batch) RecordSample(defective bool, confidence float64) {
	n := b.TotalBeans
	b.TotalBeans++
	if defective {
		b.DefectiveBeans++
	} else {
		b.HealthyBeans++
	}

	pct := confidence * 100
	if b.Accuracy == nil || n == 0 {
		b.Accuracy = &pct
		return
	}
	mean := decimal.NewFromFloat(*b.Accuracy).Mul(decimal.NewFromInt(int64(n))).
		Add(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(int64(b.TotalBeans))).
		Round(2).InexactFloat64()
	b.Accuracy = &mean
}

func validateBatchWeight(w float64) error {
	if w <= 0 {
		return NewValidationError("totalWeight", "must be greater than zero")
	}
	if w > ManualBatchCeiling {
		return NewValidationError("totalWeight", fmt.Sprintf("must not exceed %d kg", ManualBatchCeiling))
	}
	return nil
}

func validateAccuracy(acc *float64) error {
	if acc != nil && (*acc < 0 || *acc > 100) {
		return NewValidationError("accuracy", "must be between 0 and 100")
	}
	return nil
}
