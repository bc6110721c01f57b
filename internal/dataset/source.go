package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/richxcame/ridedemand/pkg/storage"
	_ "modernc.org/sqlite"
)

// Source produces the raw history table
type Source interface {
	// Name identifies the source in logs and errors
	Name() string
	// Records reads every row, sorted with derived fields populated
	Records(ctx context.Context) ([]HistoricalRecord, error)
}

// StorageSource reads a CSV object from local disk or S3
type StorageSource struct {
	store storage.Storage
	loc   storage.Location
}

// NewStorageSource creates a CSV source at loc
func NewStorageSource(store storage.Storage, loc storage.Location) *StorageSource {
	return &StorageSource{store: store, loc: loc}
}

// Name returns the object location
func (s *StorageSource) Name() string {
	return s.loc.String()
}

// Records downloads and parses the CSV object
func (s *StorageSource) Records(ctx context.Context) ([]HistoricalRecord, error) {
	rc, err := s.store.Download(ctx, s.loc.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ParseCSV(rc)
}

// SQLSource reads the history table from a database query. The query's
// column names follow the CSV header convention.
type SQLSource struct {
	db     *sql.DB
	driver string
	query  string
}

// NewSQLSource creates a source that runs query against db
func NewSQLSource(db *sql.DB, driver, query string) *SQLSource {
	return &SQLSource{db: db, driver: driver, query: query}
}

// OpenSQL opens a database handle for the pgx or sqlite driver
func OpenSQL(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "pgx", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// Name returns the driver name
func (s *SQLSource) Name() string {
	return "sql:" + s.driver
}

// Records runs the query and converts each row
func (s *SQLSource) Records(ctx context.Context) ([]HistoricalRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	cols, err := indexColumns(names)
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(names))
	ptrs := make([]interface{}, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var records []HistoricalRecord
	for row := 1; rows.Next(); row++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		rec, err := buildRecord(func(name string) (string, bool) {
			idx, ok := cols[name]
			if !ok {
				return "", false
			}
			return sqlString(values[idx]), true
		})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prepare(records)
	return records, nil
}

func sqlString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
