package models

import (
	"math"
	"time"
)

// Measurement and field names written to the time-series store
const (
	MeasurementPositions = "positions"
	MeasurementPortfolio = "portfolio"
	FieldTotalValue      = "total_value"
)

// StoreCompat tags the store protocol generation the engine speaks
const StoreCompat = "influxdb-v1"

// SheetData is the raw tabular payload from the sheet source. Headers are
// already normalized (lowercased, trimmed) by the fetcher.
type SheetData struct {
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Point is one time-series record in measurement/tags/fields form
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
	Time        time.Time
}

// Sample is one aggregated value from a store query
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Trend label vocabulary
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"

	TrendStrong   = "strong"
	TrendModerate = "moderate"
	TrendWeak     = "weak"

	VolatilityHigh = "high"
	VolatilityLow  = "low"
)

// TrendSummary labels the window's movement
type TrendSummary struct {
	Direction       string `json:"direction"`
	Strength        string `json:"strength"`
	VolatilityLevel string `json:"volatility_level"`
}

// AnalyticsReport aggregates the stored portfolio series over a trailing
// window. Complete is false when fewer than two daily values exist, in which
// case the statistics are zero and no error is raised.
type AnalyticsReport struct {
	Days          int          `json:"days"`
	DataPoints    int          `json:"data_points"`
	StartValue    float64      `json:"start_value"`
	EndValue      float64      `json:"end_value"`
	MinValue      float64      `json:"min_value"`
	MaxValue      float64      `json:"max_value"`
	TotalChange   float64      `json:"total_change"`
	PercentChange float64      `json:"percent_change"`
	Volatility    float64      `json:"volatility"`
	Trend         TrendSummary `json:"trend"`
	Complete      bool         `json:"complete"`
}

// NewAnalyticsReport computes window statistics from daily samples. The
// samples are ordered oldest first. Volatility is the population standard
// deviation of the daily values.
func NewAnalyticsReport(days int, samples []Sample) *AnalyticsReport {
	report := &AnalyticsReport{Days: days, DataPoints: len(samples)}
	if len(samples) < 2 {
		return report
	}

	values := make([]float64, len(samples))
	sum := 0.0
	report.MinValue = samples[0].Value
	report.MaxValue = samples[0].Value
	for i, s := range samples {
		values[i] = s.Value
		sum += s.Value
		if s.Value < report.MinValue {
			report.MinValue = s.Value
		}
		if s.Value > report.MaxValue {
			report.MaxValue = s.Value
		}
	}

	report.StartValue = values[0]
	report.EndValue = values[len(values)-1]
	report.TotalChange = report.EndValue - report.StartValue
	if report.StartValue != 0 {
		report.PercentChange = report.TotalChange / report.StartValue * 100
	}

	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	report.Volatility = math.Sqrt(variance / float64(len(values)))

	report.Trend = trendOf(report.TotalChange, report.PercentChange, report.Volatility, mean)
	report.Complete = true
	return report
}

func trendOf(totalChange, percentChange, volatility, mean float64) TrendSummary {
	t := TrendSummary{Direction: TrendFlat, Strength: TrendWeak, VolatilityLevel: VolatilityLow}
	if totalChange > 0 {
		t.Direction = TrendUp
	} else if totalChange < 0 {
		t.Direction = TrendDown
	}

	switch abs := math.Abs(percentChange); {
	case abs > 10:
		t.Strength = TrendStrong
	case abs > 5:
		t.Strength = TrendModerate
	}

	if mean != 0 && volatility > 0.1*mean {
		t.VolatilityLevel = VolatilityHigh
	}
	return t
}
