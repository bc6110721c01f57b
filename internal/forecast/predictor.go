package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/ridedemand/internal/gbm"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ridedemand_predictions_total",
		Help: "Predictions by outcome",
	}, []string{"outcome"})

	predictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ridedemand_prediction_duration_seconds",
		Help:    "Model inference latency",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
)

// Regressor is the model contract the predictor depends on. *gbm.Model satisfies it.
type Regressor interface {
	Predict(features []float64) (float64, error)
	NumFeatures() int
	FeatureImportances(kind gbm.ImportanceType) ([]float64, error)
}

// PredictionResult is one rounded model output. It is never stored.
type PredictionResult struct {
	Value   float64       `json:"value"`
	Display string        `json:"display"`
	Vector  FeatureVector `json:"vector"`
}

// Predictor runs single, synchronous inferences against a loaded model
type Predictor struct {
	model Regressor
}

// NewPredictor creates a predictor for model
func NewPredictor(model Regressor) *Predictor {
	return &Predictor{model: model}
}

// Model returns the underlying regressor
func (p *Predictor) Model() Regressor {
	return p.model
}

// Predict runs the model on vec and rounds the result to two decimals.
// A model whose arity is not NumFeatures fails here, per request.
func (p *Predictor) Predict(ctx context.Context, vec FeatureVector) (PredictionResult, error) {
	ctx, span := tracing.Tracer("forecast").Start(ctx, "forecast.predict")
	defer span.End()

	start := time.Now()
	raw, err := p.infer(vec)
	predictionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		predictionsTotal.WithLabelValues("error").Inc()
		tracing.RecordError(span, err)
		logger.WithContext(ctx).Warn("Prediction failed", zap.Error(err))
		return PredictionResult{}, err
	}

	value := Round2(raw)
	predictionsTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Float64("forecast.value", value))
	logger.WithContext(ctx).Debug("Prediction computed",
		zap.Float64("value", value),
		zap.Duration("latency", time.Since(start)),
	)

	return PredictionResult{
		Value:   value,
		Display: fmt.Sprintf("%.2f", value),
		Vector:  vec,
	}, nil
}

func (p *Predictor) infer(vec FeatureVector) (float64, error) {
	if p.model == nil {
		return 0, common.NewPredictionError("infer", fmt.Errorf("no model loaded"))
	}
	if n := p.model.NumFeatures(); n != NumFeatures {
		return 0, common.NewPredictionError("infer", &gbm.DimensionError{Expected: n, Got: NumFeatures})
	}

	raw, err := p.model.Predict(vec.Values())
	if err != nil {
		return 0, common.NewPredictionError("infer", err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, common.NewPredictionError("infer", fmt.Errorf("model returned non-finite value %v", raw))
	}
	return raw, nil
}
