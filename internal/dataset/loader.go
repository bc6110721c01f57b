package dataset

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	datasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ridedemand_dataset_records",
		Help: "Number of historical records loaded",
	})

	datasetLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ridedemand_dataset_load_duration_seconds",
		Help:    "Time spent reading and parsing the history table",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

// Loader reads a Source once and serves the same Dataset afterwards.
// A failed load is remembered too; there is no retry.
type Loader struct {
	source Source

	once sync.Once
	ds   *Dataset
	err  error
}

// NewLoader creates a memoising loader for source
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// Load returns the dataset, reading the source on the first call only
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	l.once.Do(func() {
		l.ds, l.err = l.load(ctx)
	})
	return l.ds, l.err
}

func (l *Loader) load(ctx context.Context) (*Dataset, error) {
	ctx, span := tracing.Tracer("dataset").Start(ctx, "dataset.load")
	defer span.End()

	start := time.Now()
	name := l.source.Name()

	records, err := l.source.Records(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		logger.Error("Failed to load dataset", zap.String("source", name), zap.Error(err))
		return nil, common.NewLoadError("dataset", name, err)
	}

	elapsed := time.Since(start)
	datasetLoadDuration.Observe(elapsed.Seconds())
	datasetRecords.Set(float64(len(records)))
	span.SetAttributes(attribute.Int("dataset.records", len(records)))

	ds := &Dataset{
		Records:     records,
		Source:      name,
		Fingerprint: fingerprint(records),
		LoadedAt:    time.Now(),
	}

	if len(records) == 0 {
		logger.Warn("Dataset loaded with no records", zap.String("source", name))
	} else {
		first, last, _ := ds.Span()
		logger.Info("Dataset loaded",
			zap.String("source", name),
			zap.Int("records", len(records)),
			zap.Time("from", first),
			zap.Time("to", last),
			zap.String("fingerprint", ds.Fingerprint),
			zap.Duration("duration", elapsed),
		)
	}

	return ds, nil
}
