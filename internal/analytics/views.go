package analytics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/richxcame/ridedemand/internal/dataset"
	"github.com/richxcame/ridedemand/pkg/common"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var errNoRecords = errors.New("no historical records")

// TimeSeries returns (timestamp, count) pairs in dataset order
func TimeSeries(records []dataset.HistoricalRecord) ([]TimePoint, error) {
	if len(records) == 0 {
		return nil, common.NewRenderError(ViewTimeSeries, errNoRecords)
	}
	points := make([]TimePoint, len(records))
	for i, r := range records {
		points[i] = TimePoint{Timestamp: r.Timestamp, Count: r.Count}
	}
	return points, nil
}

// DailyTotals sums counts per calendar day (UTC), in date order
func DailyTotals(records []dataset.HistoricalRecord) ([]TimePoint, error) {
	if len(records) == 0 {
		return nil, common.NewRenderError(ViewTimeSeries, errNoRecords)
	}
	var points []TimePoint
	for _, r := range records {
		day := r.Timestamp.UTC().Truncate(24 * time.Hour)
		if n := len(points); n > 0 && points[n-1].Timestamp.Equal(day) {
			points[n-1].Count += r.Count
			continue
		}
		points = append(points, TimePoint{Timestamp: day, Count: r.Count})
	}
	return points, nil
}

// Hourly returns the mean count for each hour 0-23
func Hourly(records []dataset.HistoricalRecord) ([]Bucket, error) {
	if len(records) == 0 {
		return nil, common.NewRenderError(ViewHourly, errNoRecords)
	}
	groups := make([][]float64, HoursPerDay)
	for _, r := range records {
		groups[r.Hour] = append(groups[r.Hour], r.Count)
	}

	buckets := make([]Bucket, HoursPerDay)
	for h, values := range groups {
		buckets[h] = bucket(h, hourLabel(h), values)
	}
	return buckets, nil
}

// Weekly returns the mean count for each day of week, Monday first
func Weekly(records []dataset.HistoricalRecord) ([]Bucket, error) {
	if len(records) == 0 {
		return nil, common.NewRenderError(ViewWeekly, errNoRecords)
	}
	groups := make([][]float64, DaysPerWeek)
	for _, r := range records {
		groups[r.DayOfWeek] = append(groups[r.DayOfWeek], r.Count)
	}

	buckets := make([]Bucket, DaysPerWeek)
	for d, values := range groups {
		buckets[d] = bucket(d, DayNames[d], values)
	}
	return buckets, nil
}

// BuildHeatmap returns mean counts for every (day of week, hour) cell
func BuildHeatmap(records []dataset.HistoricalRecord) (*Heatmap, error) {
	if len(records) == 0 {
		return nil, common.NewRenderError(ViewHeatmap, errNoRecords)
	}

	var sums [DaysPerWeek][HoursPerDay]float64
	hm := &Heatmap{Days: DayNames}
	for _, r := range records {
		sums[r.DayOfWeek][r.Hour] += r.Count
		hm.Samples[r.DayOfWeek][r.Hour]++
	}

	defined := make([]float64, 0, DaysPerWeek*HoursPerDay)
	for d := 0; d < DaysPerWeek; d++ {
		for h := 0; h < HoursPerDay; h++ {
			if n := hm.Samples[d][h]; n > 0 {
				mean := sums[d][h] / float64(n)
				hm.Cells[d][h] = &mean
				defined = append(defined, mean)
			}
		}
	}
	hm.Min = floats.Min(defined)
	hm.Max = floats.Max(defined)
	return hm, nil
}

// Value returns the cell mean, or NaN when the cell is undefined
func (h *Heatmap) Value(day, hour int) float64 {
	if v := h.Cells[day][hour]; v != nil {
		return *v
	}
	return math.NaN()
}

// BuildSummary computes the headline figures
func BuildSummary(records []dataset.HistoricalRecord) (*Summary, error) {
	if len(records) == 0 {
		return nil, common.NewRenderError(ViewSummary, errNoRecords)
	}

	counts := make([]float64, len(records))
	for i, r := range records {
		counts[i] = r.Count
	}

	hourly, _ := Hourly(records)
	weekly, _ := Weekly(records)
	peak := busiest(hourly)
	day := busiest(weekly)

	return &Summary{
		Records:     len(records),
		TotalRides:  floats.Sum(counts),
		MeanCount:   stat.Mean(counts, nil),
		PeakHour:    peak.Index,
		PeakHourAvg: *peak.Mean,
		BusiestDay:  day.Label,
		BusiestAvg:  *day.Mean,
		From:        records[0].Timestamp,
		To:          records[len(records)-1].Timestamp,
	}, nil
}

func bucket(index int, label string, values []float64) Bucket {
	b := Bucket{Index: index, Label: label, Samples: len(values)}
	if len(values) > 0 {
		mean := stat.Mean(values, nil)
		b.Mean = &mean
	}
	return b
}

// busiest returns the defined bucket with the highest mean, first on ties.
// At least one bucket is defined whenever records exist.
func busiest(buckets []Bucket) Bucket {
	var best Bucket
	for _, b := range buckets {
		if b.Mean == nil {
			continue
		}
		if best.Mean == nil || *b.Mean > *best.Mean {
			best = b
		}
	}
	return best
}

func hourLabel(h int) string {
	return fmt.Sprintf("%02d", h)
}
