package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `datetime,temperature,rain,holiday,count,season
2024-01-02 01:00:00,21.5,0,0,20,winter
2024-01-01 00:00:00,20.0,1,0,10,winter
2024-01-06 13:00:00,25.0,0,1,40,winter
`

func TestParseCSV_SortsAndDerives(t *testing.T) {
	records, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	// 2024-01-01 was a Monday
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Timestamp)
	assert.Equal(t, 0, records[0].Hour)
	assert.Equal(t, 0, records[0].DayOfWeek)
	assert.Equal(t, 1, records[0].Rain)
	assert.Equal(t, 10.0, records[0].Count)

	assert.Equal(t, 1, records[1].Hour)
	assert.Equal(t, 1, records[1].DayOfWeek)
	assert.Equal(t, 21.5, records[1].Temperature)

	assert.Equal(t, 13, records[2].Hour)
	assert.Equal(t, 5, records[2].DayOfWeek)
	assert.Equal(t, 1, records[2].Holiday)

	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Timestamp.Before(records[i-1].Timestamp))
	}
}

func TestParseCSV_MinimalColumns(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("\ufeffDatetime,Count\n2024-03-10T08:30,7\n\n2024-03-10T09:30,9\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0.0, records[0].Temperature)
	assert.Equal(t, 0, records[0].Rain)
	assert.Equal(t, 8, records[0].Hour)
	assert.Equal(t, 6, records[0].DayOfWeek)
}

func TestParseCSV_StableForEqualTimestamps(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("datetime,count\n2024-01-01 00:00,1\n2024-01-01 00:00,2\n2023-12-31 23:00,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, []float64{records[0].Count, records[1].Count, records[2].Count})
}

func TestParseCSV_HeaderOnlyIsEmpty(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("datetime,count\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"empty file", "", "file is empty"},
		{"no datetime", "when,count\n2024-01-01,1\n", `missing required column "datetime"`},
		{"no count", "datetime,rides\n2024-01-01,1\n", `missing required column "count"`},
		{"bad timestamp", "datetime,count\nyesterday,1\n", "line 2"},
		{"bad count", "datetime,count\n2024-01-01 00:00,many\n", `invalid count "many"`},
		{"missing count", "datetime,count\n2024-01-01 00:00\n", "invalid count"},
		{"bad rain", "datetime,count,rain\n2024-01-01 00:00,1,maybe\n", `invalid rain "maybe"`},
		{"unterminated quote", "datetime,count\n\"2024-01-01,1\n", "extraneous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseTimestamp_Layouts(t *testing.T) {
	want := time.Date(2024, 2, 29, 17, 45, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-02-29 17:45:00",
		"2024-02-29 17:45",
		"2024-02-29T17:45:00",
		"2024-02-29T17:45",
		"2024-02-29T17:45:00Z",
		"02/29/2024 17:45",
	} {
		ts, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(ts), in)
	}
}

func TestMondayIndex(t *testing.T) {
	assert.Equal(t, 0, MondayIndex(time.Monday))
	assert.Equal(t, 4, MondayIndex(time.Friday))
	assert.Equal(t, 5, MondayIndex(time.Saturday))
	assert.Equal(t, 6, MondayIndex(time.Sunday))
}

type countingSource struct {
	reads   int32
	records []HistoricalRecord
	err     error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Records(ctx context.Context) ([]HistoricalRecord, error) {
	atomic.AddInt32(&s.reads, 1)
	return s.records, s.err
}

func TestLoader_ReadsOnce(t *testing.T) {
	src := &countingSource{records: []HistoricalRecord{{Timestamp: time.Unix(0, 0).UTC(), Count: 3}}}
	loader := NewLoader(src)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*Dataset, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := loader.Load(ctx)
			assert.NoError(t, err)
			results[i] = ds
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.reads))
	for _, ds := range results {
		assert.Same(t, results[0], ds)
	}
	assert.Equal(t, "counting", results[0].Source)
	assert.NotEmpty(t, results[0].Fingerprint)
}

func TestLoader_FailureIsLoadErrorAndRemembered(t *testing.T) {
	src := &countingSource{err: errors.New("disk on fire")}
	loader := NewLoader(src)

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsLoadError(err))

	_, err = loader.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), src.reads)
}

func TestStorageSource_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ola.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	loc, err := storage.ParseLocation(path)
	require.NoError(t, err)
	loader := NewLoader(NewStorageSource(storage.NewLocalStorage(""), loc))

	ds, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, path, ds.Source)
}

func TestStorageSource_MissingFile(t *testing.T) {
	loc, err := storage.ParseLocation(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)

	_, err = NewLoader(NewStorageSource(storage.NewLocalStorage(""), loc)).Load(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsLoadError(err))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorageSource_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("datetime,count\nnot-a-date,1\n"), 0o600))
	loc, _ := storage.ParseLocation(path)

	_, err := NewLoader(NewStorageSource(storage.NewLocalStorage(""), loc)).Load(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsLoadError(err))
}

func TestSQLSource_WithSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts1 := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"datetime", "count", "temperature", "rain", "holiday"}).
		AddRow(ts1.Add(time.Hour), int64(12), 21.0, int64(0), int64(0)).
		AddRow(ts1, int64(9), nil, int64(1), int64(0))
	mock.ExpectQuery("SELECT datetime, count").WillReturnRows(rows)

	src := NewSQLSource(db, "pgx", "SELECT datetime, count, temperature, rain, holiday FROM rides")
	records, err := src.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, ts1, records[0].Timestamp)
	assert.Equal(t, 9.0, records[0].Count)
	assert.Equal(t, 1, records[0].Rain)
	assert.Equal(t, 0.0, records[0].Temperature)
	assert.Equal(t, 5, records[0].Hour)
	assert.Equal(t, 21.0, records[1].Temperature)
	assert.Equal(t, "sql:pgx", src.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))

	_, err = NewLoader(NewSQLSource(db, "pgx", "SELECT * FROM rides")).Load(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsLoadError(err))
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestSQLSource_SQLite(t *testing.T) {
	db, err := OpenSQL("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE rides (datetime TEXT, count INTEGER, temperature REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO rides VALUES ('2024-01-01 02:00:00', 4, 18.5), ('2024-01-01 01:00:00', 2, 18.0)`)
	require.NoError(t, err)

	records, err := NewSQLSource(db, "sqlite", "SELECT datetime, count, temperature FROM rides").Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Hour)
	assert.Equal(t, 2.0, records[0].Count)
	assert.Equal(t, 18.5, records[1].Temperature)
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL("mysql", "dsn")
	assert.Error(t, err)
}

func hourly(n int, start time.Time) []HistoricalRecord {
	records := make([]HistoricalRecord, n)
	for i := range records {
		records[i] = HistoricalRecord{Timestamp: start.Add(time.Duration(i) * time.Hour), Count: float64(i + 1), Temperature: 28}
	}
	prepare(records)
	return records
}

func TestLatestLagFeatures(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ds := &Dataset{Records: hourly(30, start)}

	lags, ok := ds.LatestLagFeatures()
	require.True(t, ok)
	assert.Equal(t, 30.0, lags.Lag1)
	assert.Equal(t, 7.0, lags.Lag24)
	assert.InDelta(t, 18.5, lags.RollingMean24, 1e-9)
	assert.InDelta(t, math.Sqrt(50), lags.RollingStd24, 1e-9)
	assert.Equal(t, start.Add(30*time.Hour), lags.Next)
	assert.Equal(t, 28.0, lags.Temperature)
}

func TestLatestLagFeatures_ShortHistory(t *testing.T) {
	ds := &Dataset{Records: hourly(23, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))}
	_, ok := ds.LatestLagFeatures()
	assert.False(t, ok)

	var empty *Dataset
	_, ok = empty.LatestLagFeatures()
	assert.False(t, ok)
	assert.Error(t, empty.Ready())
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	a := hourly(5, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	b := hourly(5, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, fingerprint(a), fingerprint(b))

	b[2].Count++
	assert.NotEqual(t, fingerprint(a), fingerprint(b), fmt.Sprint(b[2]))
}
