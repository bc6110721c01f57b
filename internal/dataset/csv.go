package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column names recognised in the history table. Extra columns are ignored.
const (
	ColumnDatetime    = "datetime"
	ColumnCount       = "count"
	ColumnTemperature = "temperature"
	ColumnRain        = "rain"
	ColumnHoliday     = "holiday"
)

var columnAliases = map[string]string{
	"timestamp": ColumnDatetime,
	"temp":      ColumnTemperature,
}

// Accepted timestamp layouts. Values without a zone are read as UTC.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
}

// ParseTimestamp parses value using the accepted layouts
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// ParseCSV reads the history table. The header must name the datetime and
// count columns; temperature, rain and holiday are optional. The result is
// sorted ascending by timestamp with hour and day of week derived.
func ParseCSV(r io.Reader) ([]HistoricalRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var records []HistoricalRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}

		rec, err := buildRecord(func(name string) (string, bool) {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return "", false
			}
			return row[idx], true
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	prepare(records)
	return records, nil
}

type columnIndex map[string]int

func indexColumns(header []string) (columnIndex, error) {
	cols := columnIndex{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{ColumnDatetime, ColumnCount} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return cols, nil
}

// record builds one HistoricalRecord from named cell lookups
func buildRecord(cell func(name string) (string, bool)) (HistoricalRecord, error) {
	var rec HistoricalRecord

	raw, _ := cell(ColumnDatetime)
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return rec, err
	}
	rec.Timestamp = ts

	raw, _ = cell(ColumnCount)
	if rec.Count, err = parseNumber(ColumnCount, raw); err != nil {
		return rec, err
	}

	if raw, ok := cell(ColumnTemperature); ok && strings.TrimSpace(raw) != "" {
		if rec.Temperature, err = parseNumber(ColumnTemperature, raw); err != nil {
			return rec, err
		}
	}
	if rec.Rain, err = parseFlag(cell, ColumnRain); err != nil {
		return rec, err
	}
	if rec.Holiday, err = parseFlag(cell, ColumnHoliday); err != nil {
		return rec, err
	}
	return rec, nil
}

func parseNumber(column, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q", column, raw)
	}
	return v, nil
}

func parseFlag(cell func(string) (string, bool), column string) (int, error) {
	raw, ok := cell(column)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	v, err := parseNumber(column, raw)
	if err != nil {
		return 0, err
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
