package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAccuracy is used when the caller does not report accuracy
const DefaultAccuracy = 95.0

var hundred = decimal.NewFromInt(100)

// SortingResult is the current aggregated outcome of an order
type SortingResult struct {
	ID                  string
	OrderID             string
	TotalBeans          int
	HealthyBeans        int
	DefectiveBeans      int
	HealthyPercentage   float64
	DefectivePercentage float64
	TotalWeight         float64
	HealthyWeight       float64
	DefectiveWeight     float64
	Accuracy            float64
	SortedAt            time.Time
}

// SortingResultHistory is an immutable ledger row written on every result update
type SortingResultHistory struct {
	ID                  int64
	OrderID             string
	TotalBeans          int
	HealthyBeans        int
	DefectiveBeans      int
	HealthyPercentage   float64
	DefectivePercentage float64
	TotalWeight         float64
	HealthyWeight       float64
	DefectiveWeight     float64
	Accuracy            float64
	CreatedAt           time.Time
}

// SortingInput holds raw counts reported by the sorting line
type SortingInput struct {
	OrderID        string
	TotalBeans     int
	HealthyBeans   int
	DefectiveBeans int
	TotalWeight    float64
	Accuracy       *float64
}

// Validate checks raw counts
func (in SortingInput) Validate() error {
	if in.OrderID == "" {
		return NewValidationError("orderId", "is required")
	}
	if in.TotalBeans < 0 || in.HealthyBeans < 0 || in.DefectiveBeans < 0 {
		return NewValidationError("beans", "must not be negative")
	}
	if in.TotalWeight < 0 {
		return NewValidationError("totalWeight", "must not be negative")
	}
	if in.HealthyBeans+in.DefectiveBeans != in.TotalBeans {
		return NewValidationError("beans", "healthy and defective beans must add up to total beans")
	}
	return validateAccuracy(in.Accuracy)
}

// Derive computes percentages and weight split from raw counts.
// Values are rounded to 2 decimals.
func (in SortingInput) Derive(sortedAt time.Time) SortingResult {
	res := SortingResult{
		OrderID:        in.OrderID,
		TotalBeans:     in.TotalBeans,
		HealthyBeans:   in.HealthyBeans,
		DefectiveBeans: in.DefectiveBeans,
		TotalWeight:    in.TotalWeight,
		Accuracy:       DefaultAccuracy,
		SortedAt:       sortedAt,
	}
	if in.Accuracy != nil {
		res.Accuracy = *in.Accuracy
	}

	totalWeight := decimal.NewFromFloat(in.TotalWeight)
	healthyWeight := decimal.Zero

	if in.TotalBeans > 0 {
		total := decimal.NewFromInt(int64(in.TotalBeans))
		healthyShare := decimal.NewFromInt(int64(in.HealthyBeans)).Div(total)

		healthyPct := healthyShare.Mul(hundred).Round(2)
		res.HealthyPercentage = healthyPct.InexactFloat64()
		// complement keeps the pair summing to exactly 100
		res.DefectivePercentage = hundred.Sub(healthyPct).InexactFloat64()

		healthyWeight = healthyShare.Mul(totalWeight).Round(2)
	}

	res.HealthyWeight = healthyWeight.InexactFloat64()
	res.DefectiveWeight = totalWeight.Sub(healthyWeight).Round(2).InexactFloat64()

	return res
}

// HistoryEntry returns ledger row for r
func (r SortingResult) HistoryEntry() SortingResultHistory {
	return SortingResultHistory{
		OrderID:             r.OrderID,
		TotalBeans:          r.TotalBeans,
		HealthyBeans:        r.HealthyBeans,
		DefectiveBeans:      r.DefectiveBeans,
		HealthyPercentage:   r.HealthyPercentage,
		DefectivePercentage: r.DefectivePercentage,
		TotalWeight:         r.TotalWeight,
		HealthyWeight:       r.HealthyWeight,
		DefectiveWeight:     r.DefectiveWeight,
		Accuracy:            r.Accuracy,
		CreatedAt:           r.SortedAt,
	}
}
