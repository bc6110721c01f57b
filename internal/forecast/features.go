package forecast

import (
	"math"

	"github.com/richxcame/ridedemand/internal/dataset"
)

// NumFeatures is the arity the model is trained on
const NumFeatures = 12

// FeatureNames lists the model inputs in vector order
var FeatureNames = [NumFeatures]string{
	"temperature",
	"rain",
	"holiday",
	"hour",
	"day",
	"month",
	"day_of_week",
	"is_weekend",
	"lag_1",
	"lag_24",
	"rolling_mean_24",
	"rolling_std_24",
}

// FeatureInput holds the eleven values a user controls. The binding tags
// mirror the ranges of the dashboard widgets.
type FeatureInput struct {
	Temperature   float64 `json:"temperature" binding:"min=0,max=50"`
	Rain          int     `json:"rain" binding:"oneof=0 1"`
	Holiday       int     `json:"holiday" binding:"oneof=0 1"`
	Hour          int     `json:"hour" binding:"min=0,max=23"`
	Day           int     `json:"day" binding:"min=1,max=31"`
	Month         int     `json:"month" binding:"min=1,max=12"`
	DayOfWeek     int     `json:"day_of_week" binding:"min=0,max=6"`
	Lag1          float64 `json:"lag_1"`
	Lag24         float64 `json:"lag_24"`
	RollingMean24 float64 `json:"rolling_mean_24"`
	RollingStd24  float64 `json:"rolling_std_24"`
}

// DefaultInput returns the values the widgets start at
func DefaultInput() FeatureInput {
	return FeatureInput{
		Temperature:   30,
		Rain:          0,
		Holiday:       0,
		Hour:          18,
		Day:           12,
		Month:         6,
		DayOfWeek:     2,
		Lag1:          100,
		Lag24:         90,
		RollingMean24: 95,
		RollingStd24:  10,
	}
}

// SuggestInput derives inputs for the hour after the newest record. It falls
// back to DefaultInput when the history is shorter than one day.
func SuggestInput(ds *dataset.Dataset) (FeatureInput, bool) {
	lags, ok := ds.LatestLagFeatures()
	if !ok {
		return DefaultInput(), false
	}

	next := lags.Next
	return FeatureInput{
		Temperature:   math.Max(0, math.Min(50, math.Round(lags.Temperature))),
		Rain:          lags.Rain,
		Holiday:       lags.Holiday,
		Hour:          next.Hour(),
		Day:           next.Day(),
		Month:         int(next.Month()),
		DayOfWeek:     dataset.MondayIndex(next.Weekday()),
		Lag1:          lags.Lag1,
		Lag24:         lags.Lag24,
		RollingMean24: Round2(lags.RollingMean24),
		RollingStd24:  Round2(lags.RollingStd24),
	}, true
}

// FeatureVector is the model input with every position named
type FeatureVector struct {
	Temperature   float64 `json:"temperature"`
	Rain          float64 `json:"rain"`
	Holiday       float64 `json:"holiday"`
	Hour          float64 `json:"hour"`
	Day           float64 `json:"day"`
	Month         float64 `json:"month"`
	DayOfWeek     float64 `json:"day_of_week"`
	IsWeekend     float64 `json:"is_weekend"`
	Lag1          float64 `json:"lag_1"`
	Lag24         float64 `json:"lag_24"`
	RollingMean24 float64 `json:"rolling_mean_24"`
	RollingStd24  float64 `json:"rolling_std_24"`
}

// IsWeekend reports whether a Monday-based day index is Saturday or Sunday
func IsWeekend(dayOfWeek int) bool {
	return dayOfWeek >= 5
}

// Build assembles the vector from user input, deriving is_weekend
func Build(in FeatureInput) FeatureVector {
	var weekend float64
	if IsWeekend(in.DayOfWeek) {
		weekend = 1
	}
	return FeatureVector{
		Temperature:   in.Temperature,
		Rain:          float64(in.Rain),
		Holiday:       float64(in.Holiday),
		Hour:          float64(in.Hour),
		Day:           float64(in.Day),
		Month:         float64(in.Month),
		DayOfWeek:     float64(in.DayOfWeek),
		IsWeekend:     weekend,
		Lag1:          in.Lag1,
		Lag24:         in.Lag24,
		RollingMean24: in.RollingMean24,
		RollingStd24:  in.RollingStd24,
	}
}

// Values flattens the vector in FeatureNames order
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.Temperature,
		v.Rain,
		v.Holiday,
		v.Hour,
		v.Day,
		v.Month,
		v.DayOfWeek,
		v.IsWeekend,
		v.Lag1,
		v.Lag24,
		v.RollingMean24,
		v.RollingStd24,
	}
}

// Round2 rounds half away from zero to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
