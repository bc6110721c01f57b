package analytics

import "time"

// View names used in errors, logs and chart keys
const (
	ViewTimeSeries = "timeseries"
	ViewHourly     = "hourly"
	ViewWeekly     = "weekly"
	ViewHeatmap    = "heatmap"
	ViewSummary    = "summary"
)

const (
	HoursPerDay = 24
	DaysPerWeek = 7
)

// DayNames labels day-of-week indices, Monday first
var DayNames = [DaysPerWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// TimePoint is one observation on the demand timeline
type TimePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     float64   `json:"count"`
}

// Bucket is the mean count for one hour or weekday. Mean is nil when no
// record falls in the bucket.
type Bucket struct {
	Index   int      `json:"index"`
	Label   string   `json:"label"`
	Mean    *float64 `json:"mean"`
	Samples int      `json:"samples"`
}

// Heatmap holds mean counts by day of week (rows) and hour (columns).
// Nil cells had no observations.
type Heatmap struct {
	Days    [DaysPerWeek]string                `json:"days"`
	Cells   [DaysPerWeek][HoursPerDay]*float64 `json:"cells"`
	Samples [DaysPerWeek][HoursPerDay]int      `json:"samples"`
	Min     float64                            `json:"min"`
	Max     float64                            `json:"max"`
}

// Summary is the headline strip above the charts
type Summary struct {
	Records     int       `json:"records"`
	TotalRides  float64   `json:"total_rides"`
	MeanCount   float64   `json:"mean_count"`
	PeakHour    int       `json:"peak_hour"`
	PeakHourAvg float64   `json:"peak_hour_avg"`
	BusiestDay  string    `json:"busiest_day"`
	BusiestAvg  float64   `json:"busiest_day_avg"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}
