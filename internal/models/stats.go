package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period selects calendar window of history and dashboard reads
type Period string

// periods
const (
	PeriodAll   Period = "all"
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
)

// StatsFilter scopes history and dashboard reads. Zero Year or Month means no bound.
type StatsFilter struct {
	// UserID limits rows to one owner, nil covers every owner
	UserID *uint64
	Year   int
	Month  int
}

// NewStatsFilter scopes reads to the principal's own rows unless it is an operator.
// Missing year and month of a bounded period default to now.
func NewStatsFilter(principal *TokenPayload, period Period, year, month int, now time.Time) (StatsFilter, error) {
	if year < 0 {
		return StatsFilter{}, NewValidationError("year", "must not be negative")
	}
	if month < 0 || month > 12 {
		return StatsFilter{}, NewValidationError("month", "must be between 1 and 12")
	}

	f := StatsFilter{}
	if !principal.IsAdmin() {
		uid := principal.UserID
		f.UserID = &uid
	}

	switch period {
	case PeriodAll:
		return f, nil
	case PeriodYear, PeriodMonth:
	default:
		return StatsFilter{}, NewValidationError("period", fmt.Sprintf("unknown period %q", period))
	}

	f.Year = year
	if f.Year == 0 {
		f.Year = now.Year()
	}
	if period == PeriodMonth {
		f.Month = month
		if f.Month == 0 {
			f.Month = int(now.Month())
		}
	}

	return f, nil
}

// SortingTotals sums sorting results of a window
type SortingTotals struct {
	TotalBeans     int
	HealthyBeans   int
	DefectiveBeans int
	// AvgAccuracy is nil when the window holds no results
	AvgAccuracy *float64
}

// OrderStat is one order line of the dashboard
type OrderStat struct {
	OrderID   string
	Weight    float64
	TotalCost decimal.Decimal
}

// Dashboard rolls sorting results and orders of a window up into statistics
type Dashboard struct {
	TotalBeans          int
	HealthyBeans        int
	DefectiveBeans      int
	HealthyPercentage   float64
	DefectivePercentage float64
	Accuracy            float64
	TotalOrders         int
	TotalCost           decimal.Decimal
	OrderStats          []OrderStat
}

// NewDashboard derives percentages and accuracy rounded to 1 decimal.
// Empty window reports zero percentages and DefaultAccuracy.
func NewDashboard(totals SortingTotals, orders []Order) Dashboard {
	d := Dashboard{
		TotalBeans:     totals.TotalBeans,
		HealthyBeans:   totals.HealthyBeans,
		DefectiveBeans: totals.DefectiveBeans,
		Accuracy:       DefaultAccuracy,
		TotalOrders:    len(orders),
		TotalCost:      decimal.Zero,
		OrderStats:     make([]OrderStat, 0, len(orders)),
	}

	if totals.TotalBeans > 0 {
		total := decimal.NewFromInt(int64(totals.TotalBeans))
		healthyPct := decimal.NewFromInt(int64(totals.HealthyBeans)).Div(total).Mul(hundred).Round(1)
		d.HealthyPercentage = healthyPct.InexactFloat64()
		d.DefectivePercentage = hundred.Sub(healthyPct).InexactFloat64()
	}
	if totals.AvgAccuracy != nil {
		d.Accuracy = decimal.NewFromFloat(*totals.AvgAccuracy).Round(1).InexactFloat64()
	}

	for _, o := range orders {
		d.TotalCost = d.TotalCost.Add(o.Price)
		d.OrderStats = append(d.OrderStats, OrderStat{
			OrderID:   o.ID,
			Weight:    o.Weight,
			TotalCost: o.Price,
		})
	}

	return d
}
