package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/richxcame/ridedemand/internal/analytics"
	"github.com/richxcame/ridedemand/internal/charts"
	"github.com/richxcame/ridedemand/internal/dataset"
	"github.com/richxcame/ridedemand/internal/forecast"
	"github.com/richxcame/ridedemand/internal/gbm"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/config"
	"github.com/richxcame/ridedemand/pkg/database"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/redis"
	"github.com/richxcame/ridedemand/pkg/resilience"
	"github.com/richxcame/ridedemand/pkg/storage"
	"go.uber.org/zap"
)

// Deps are optional collaborators. Zero values are resolved from config.
type Deps struct {
	// DB replaces the handle opened from DATASET_SQL_DSN
	DB *sql.DB
	// Storage replaces the storage resolved from each artifact path
	Storage storage.Storage
	// Redis enables the shared chart cache
	Redis *redis.Client
}

// App owns everything loaded at startup. It is read-only once Load returns.
type App struct {
	Config       *config.Config
	Dataset      *dataset.Dataset
	Model        *gbm.Model
	ModelVersion string
	Importance   gbm.ImportanceType

	Predictor *forecast.Predictor
	Suggested *forecast.FeatureInput
	Analytics *analytics.Service
	Charts    *charts.Service
}

// Load reads the dataset and the model, then wires the services built on them.
// Any failure is a LoadError and the dashboard should not start.
func Load(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	source, release, err := datasetSource(ctx, cfg, deps)
	if err != nil {
		return nil, common.NewLoadError("dataset", cfg.Dataset.Path, err)
	}
	ds, err := dataset.NewLoader(source).Load(ctx)
	// the history is read once, so connections opened for it are not kept
	release()
	if err != nil {
		return nil, err
	}

	store, loc, err := resolve(ctx, cfg.Model.Path, cfg, deps)
	if err != nil {
		return nil, common.NewLoadError("model", cfg.Model.Path, err)
	}
	model, version, err := NewModelStore(store, loc, gbm.Format(cfg.Model.Format)).Load(ctx)
	if err != nil {
		return nil, err
	}

	return build(cfg, deps, ds, model, version), nil
}

func build(cfg *config.Config, deps Deps, ds *dataset.Dataset, model *gbm.Model, version string) *App {
	app := &App{
		Config:       cfg,
		Dataset:      ds,
		Model:        model,
		ModelVersion: version,
		Importance:   gbm.ImportanceType(cfg.Model.ImportanceType),
		Predictor:    forecast.NewPredictor(model),
		Analytics:    analytics.NewService(ds),
	}

	if suggested, ok := forecast.SuggestInput(ds); ok {
		app.Suggested = &suggested
	}

	var breaker *resilience.CircuitBreaker
	if deps.Redis != nil {
		breaker = resilience.NewCircuitBreaker(resilience.BuildSettings("chart-cache",
			cfg.Breaker.IntervalSeconds,
			cfg.Breaker.TimeoutSeconds,
			cfg.Breaker.FailureThreshold,
			1,
		))
	}

	app.Charts = charts.NewService(charts.Options{
		Dataset:      ds,
		Predictor:    app.Predictor,
		Importance:   app.Importance,
		ModelVersion: version,
		Renderer:     charts.NewRenderer(cfg.Charts.Width, cfg.Charts.Height),
		Cache:        charts.NewCache(deps.Redis, breaker, cfg.Charts.CacheTTL()),
	})

	return app
}

// Ready reports whether both artifacts are loaded
func (a *App) Ready() error {
	if a == nil || a.Dataset == nil {
		return errors.New("dataset not loaded")
	}
	if a.Model == nil {
		return errors.New("model not loaded")
	}
	return nil
}

// Warm renders every chart ahead of the first page view
func (a *App) Warm(ctx context.Context) {
	for name, err := range a.Charts.Warm(ctx) {
		logger.Warn("Chart unavailable", zap.String("chart", name), zap.Error(err))
	}
}

func datasetSource(ctx context.Context, cfg *config.Config, deps Deps) (dataset.Source, func(), error) {
	noop := func() {}

	if cfg.Dataset.SQLDriver != "" {
		if deps.DB != nil {
			return dataset.NewSQLSource(deps.DB, cfg.Dataset.SQLDriver, cfg.Dataset.SQLQuery), noop, nil
		}
		db, release, err := openSQL(ctx, cfg.Dataset)
		if err != nil {
			return nil, noop, err
		}
		return dataset.NewSQLSource(db, cfg.Dataset.SQLDriver, cfg.Dataset.SQLQuery), release, nil
	}

	store, loc, err := resolve(ctx, cfg.Dataset.Path, cfg, deps)
	if err != nil {
		return nil, noop, err
	}
	return dataset.NewStorageSource(store, loc), noop, nil
}

// openSQL connects pgx through a bounded pool and everything else through database/sql
func openSQL(ctx context.Context, cfg config.DatasetConfig) (*sql.DB, func(), error) {
	if cfg.SQLDriver == "pgx" {
		pool, err := database.NewPostgresPool(ctx, database.PoolConfig{DSN: cfg.SQLDSN, MaxConns: 2})
		if err != nil {
			return nil, nil, err
		}
		db := database.OpenDB(pool)
		return db, func() {
			_ = db.Close()
			database.Close(pool)
		}, nil
	}

	db, err := dataset.OpenSQL(cfg.SQLDriver, cfg.SQLDSN)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

func resolve(ctx context.Context, path string, cfg *config.Config, deps Deps) (storage.Storage, storage.Location, error) {
	loc, err := storage.ParseLocation(path)
	if err != nil {
		return nil, storage.Location{}, err
	}
	if deps.Storage != nil {
		return deps.Storage, loc, nil
	}

	store, err := storage.ForLocation(ctx, loc, storage.S3Config{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})
	if err != nil {
		return nil, storage.Location{}, fmt.Errorf("resolve %s: %w", loc, err)
	}
	return store, loc, nil
}
