package charts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/ridedemand/internal/analytics"
	"github.com/richxcame/ridedemand/internal/dataset"
	"github.com/richxcame/ridedemand/internal/forecast"
	"github.com/richxcame/ridedemand/internal/gbm"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Chart names served under /charts/<name>.png
const (
	ChartTimeSeries = "timeseries"
	ChartHourly     = "hourly"
	ChartWeekly     = "weekly"
	ChartHeatmap    = "heatmap"
	ChartImportance = "importance"
)

// Names lists every chart in page order
var Names = []string{ChartTimeSeries, ChartHourly, ChartWeekly, ChartHeatmap, ChartImportance}

// ErrUnknownChart is returned for a chart name not in Names
var ErrUnknownChart = errors.New("unknown chart")

var renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ridedemand_chart_render_duration_seconds",
	Help:    "Time spent rendering a chart",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"chart", "outcome"})

// Options wires a chart service
type Options struct {
	Dataset      *dataset.Dataset
	Predictor    *forecast.Predictor
	Importance   gbm.ImportanceType
	ModelVersion string
	Renderer     *Renderer
	Cache        *Cache
}

// Service renders the dashboard charts, once per dataset or model version.
// A key that failed to render keeps failing with the same RenderError, since
// the dataset and model behind it never change.
type Service struct {
	ds           *dataset.Dataset
	predictor    *forecast.Predictor
	importance   gbm.ImportanceType
	modelVersion string
	renderer     *Renderer
	cache        *Cache

	mu     sync.RWMutex
	failed map[string]error
}

// NewService creates a chart service
func NewService(opts Options) *Service {
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer(900, 450)
	}
	if opts.Cache == nil {
		opts.Cache = NewCache(nil, nil, 0)
	}
	return &Service{
		ds:           opts.Dataset,
		predictor:    opts.Predictor,
		importance:   opts.Importance,
		modelVersion: opts.ModelVersion,
		renderer:     opts.Renderer,
		cache:        opts.Cache,
		failed:       make(map[string]error),
	}
}

// Key returns the cache key for a chart. Data charts follow the dataset
// fingerprint; the importance chart follows the model version.
func (s *Service) Key(name string) (string, error) {
	switch name {
	case ChartTimeSeries, ChartHourly, ChartWeekly, ChartHeatmap:
		var fp string
		if s.ds != nil {
			fp = s.ds.Fingerprint
		}
		return fmt.Sprintf("ridedemand:chart:%s:%s", name, fp), nil
	case ChartImportance:
		return fmt.Sprintf("ridedemand:chart:%s:%s:%s", name, s.modelVersion, s.importance), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
}

// Render returns the PNG for name, from cache when possible
func (s *Service) Render(ctx context.Context, name string) ([]byte, error) {
	key, err := s.Key(name)
	if err != nil {
		return nil, err
	}
	if err := s.failure(key); err != nil {
		return nil, err
	}

	data, err := s.cache.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
		return s.render(ctx, name)
	})
	if err != nil && common.IsRenderError(err) {
		s.mu.Lock()
		s.failed[key] = err
		s.mu.Unlock()
	}
	return data, err
}

func (s *Service) failure(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed[key]
}

// Warm renders every chart so the first page view is served from cache.
// Failures are logged and returned per chart; they do not affect other charts.
func (s *Service) Warm(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for _, name := range Names {
		if _, err := s.Render(ctx, name); err != nil {
			failed[name] = err
		}
	}
	return failed
}

func (s *Service) render(ctx context.Context, name string) ([]byte, error) {
	ctx, span := tracing.Tracer("charts").Start(ctx, "charts.render")
	defer span.End()
	span.SetAttributes(attribute.String("chart.name", name))

	start := time.Now()
	data, err := s.draw(name)
	elapsed := time.Since(start)

	if err != nil {
		renderDuration.WithLabelValues(name, "error").Observe(elapsed.Seconds())
		if !common.IsRenderError(err) {
			err = common.NewRenderError(name, err)
		}
		tracing.RecordError(span, err)
		logger.WithContext(ctx).Error("Chart render failed", zap.String("chart", name), zap.Error(err))
		return nil, err
	}

	renderDuration.WithLabelValues(name, "success").Observe(elapsed.Seconds())
	logger.WithContext(ctx).Info("Chart rendered",
		zap.String("chart", name),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", elapsed),
	)
	return data, nil
}

func (s *Service) draw(name string) ([]byte, error) {
	var records []dataset.HistoricalRecord
	if s.ds != nil {
		records = s.ds.Records
	}

	switch name {
	case ChartTimeSeries:
		points, err := analytics.TimeSeries(records)
		if err != nil {
			return nil, err
		}
		return s.renderer.TimeSeries(points)
	case ChartHourly:
		buckets, err := analytics.Hourly(records)
		if err != nil {
			return nil, err
		}
		return s.renderer.Hourly(buckets)
	case ChartWeekly:
		buckets, err := analytics.Weekly(records)
		if err != nil {
			return nil, err
		}
		return s.renderer.Weekly(buckets)
	case ChartHeatmap:
		hm, err := analytics.BuildHeatmap(records)
		if err != nil {
			return nil, err
		}
		return s.renderer.Heatmap(hm)
	case ChartImportance:
		if s.predictor == nil {
			return nil, common.NewRenderError(forecast.ViewImportance, errors.New("no model loaded"))
		}
		rows, err := s.predictor.Importance(s.importance)
		if err != nil {
			return nil, err
		}
		return s.renderer.Importance(rows)
	default:
		return nil, ErrUnknownChart
	}
}
