package dashboard

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/ridedemand/internal/forecast"
	"github.com/richxcame/ridedemand/internal/gbm"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/storage"
	"github.com/richxcame/ridedemand/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	modelFeatures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ridedemand_model_features",
		Help: "Number of input features the loaded model expects",
	})

	modelTrees = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ridedemand_model_trees",
		Help: "Number of trees in the loaded model",
	})
)

// ModelStore reads the model artifact once and serves it afterwards.
// Like the dataset loader it remembers a failure.
type ModelStore struct {
	store  storage.Storage
	loc    storage.Location
	format gbm.Format

	once    sync.Once
	model   *gbm.Model
	version string
	err     error
}

// NewModelStore creates a memoising model store for the artifact at loc
func NewModelStore(store storage.Storage, loc storage.Location, format gbm.Format) *ModelStore {
	return &ModelStore{store: store, loc: loc, format: format}
}

// Load returns the model and its version, reading the artifact on the first call only.
// The version is a short content hash, used to key the importance chart.
func (s *ModelStore) Load(ctx context.Context) (*gbm.Model, string, error) {
	s.once.Do(func() {
		s.model, s.version, s.err = s.load(ctx)
	})
	return s.model, s.version, s.err
}

func (s *ModelStore) load(ctx context.Context) (*gbm.Model, string, error) {
	ctx, span := tracing.Tracer("dashboard").Start(ctx, "model.load")
	defer span.End()

	name := s.loc.String()
	start := time.Now()

	model, version, err := s.read(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		logger.Error("Failed to load model", zap.String("source", name), zap.Error(err))
		return nil, "", common.NewLoadError("model", name, err)
	}

	modelFeatures.Set(float64(model.NumFeatures()))
	modelTrees.Set(float64(len(model.Trees)))
	span.SetAttributes(
		attribute.Int("model.features", model.NumFeatures()),
		attribute.Int("model.trees", len(model.Trees)),
	)

	logger.Info("Model loaded",
		zap.String("source", name),
		zap.String("objective", model.Objective),
		zap.Int("features", model.NumFeatures()),
		zap.Int("trees", len(model.Trees)),
		zap.String("version", version),
		zap.Duration("duration", time.Since(start)),
	)

	if model.NumFeatures() != forecast.NumFeatures {
		logger.Warn("Model feature count differs from the dashboard inputs; every prediction will fail",
			zap.Int("model_features", model.NumFeatures()),
			zap.Int("dashboard_features", forecast.NumFeatures),
		)
	}

	return model, version, nil
}

func (s *ModelStore) read(ctx context.Context) (*gbm.Model, string, error) {
	rc, err := s.store.Download(ctx, s.loc.Key)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", err
	}

	model, err := gbm.Load(bytes.NewReader(raw), s.format)
	if err != nil {
		return nil, "", err
	}

	sum := sha256.Sum256(raw)
	return model, hex.EncodeToString(sum[:6]), nil
}
