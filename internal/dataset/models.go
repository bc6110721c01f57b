package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// HistoricalRecord is one observation of ride demand
type HistoricalRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Rain        int       `json:"rain"`
	Holiday     int       `json:"holiday"`
	Count       float64   `json:"count"`

	// Derived once at load time
	Hour      int `json:"hour"`
	DayOfWeek int `json:"day_of_week"` // 0 = Monday
}

// Dataset is the loaded, time-ordered history. It is read-only after load.
type Dataset struct {
	Records     []HistoricalRecord
	Source      string
	Fingerprint string
	LoadedAt    time.Time
}

// LagFeatures are demand features for the hour after the last record
type LagFeatures struct {
	Next          time.Time
	Lag1          float64
	Lag24         float64
	RollingMean24 float64
	RollingStd24  float64
	Temperature   float64
	Rain          int
	Holiday       int
}

// lagWindow is the number of hourly observations used for lag and rolling features
const lagWindow = 24

// MondayIndex maps a weekday onto 0 = Monday ... 6 = Sunday
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Len returns the number of records
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Ready reports whether the dataset finished loading
func (d *Dataset) Ready() error {
	if d == nil {
		return errors.New("dataset not loaded")
	}
	return nil
}

// Span returns the first and last timestamps
func (d *Dataset) Span() (time.Time, time.Time, bool) {
	if d.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.Records[0].Timestamp, d.Records[len(d.Records)-1].Timestamp, true
}

// LatestLagFeatures derives lag and rolling features from the newest records.
// It needs a full 24-record window and reports false otherwise.
func (d *Dataset) LatestLagFeatures() (LagFeatures, bool) {
	n := d.Len()
	if n < lagWindow {
		return LagFeatures{}, false
	}

	window := make([]float64, lagWindow)
	for i, r := range d.Records[n-lagWindow:] {
		window[i] = r.Count
	}
	mean, std := stat.MeanStdDev(window, nil)

	last := d.Records[n-1]
	return LagFeatures{
		Next:          last.Timestamp.Add(time.Hour),
		Lag1:          last.Count,
		Lag24:         d.Records[n-lagWindow].Count,
		RollingMean24: mean,
		RollingStd24:  std,
		Temperature:   last.Temperature,
		Rain:          last.Rain,
		Holiday:       last.Holiday,
	}, true
}

// prepare derives hour and day-of-week and sorts ascending by timestamp.
// Records with equal timestamps keep their input order.
func prepare(records []HistoricalRecord) {
	for i := range records {
		ts := records[i].Timestamp
		records[i].Hour = ts.Hour()
		records[i].DayOfWeek = MondayIndex(ts.Weekday())
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}

// fingerprint identifies the dataset contents; charts are cached per fingerprint
func fingerprint(records []HistoricalRecord) string {
	h := sha256.New()
	buf := make([]byte, 8)
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}
	for _, r := range records {
		put(uint64(r.Timestamp.UnixNano()))
		put(math.Float64bits(r.Count))
		put(math.Float64bits(r.Temperature))
		put(uint64(r.Rain))
		put(uint64(r.Holiday))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
