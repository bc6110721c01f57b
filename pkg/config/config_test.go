package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("dashboard")
	require.NoError(t, err)

	assert.Equal(t, "dashboard", cfg.Server.ServiceName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "ola.csv", cfg.Dataset.Path)
	assert.Equal(t, "ola_model.txt", cfg.Model.Path)
	assert.Equal(t, "auto", cfg.Model.Format)
	assert.Equal(t, "gain", cfg.Model.ImportanceType)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Charts.CacheTTL())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATASET_PATH", "s3://rides/ola.csv")
	t.Setenv("MODEL_FORMAT", "JSON")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CHART_CACHE_TTL_MINUTES", "5")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load("dashboard")
	require.NoError(t, err)

	assert.Equal(t, "s3://rides/ola.csv", cfg.Dataset.Path)
	assert.Equal(t, "json", cfg.Model.Format)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Charts.CacheTTL())
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins())
}

func TestLoad_XGBoostFormat(t *testing.T) {
	t.Setenv("MODEL_PATH", "ola_xgboost_model.json")
	t.Setenv("MODEL_FORMAT", "XGBoost")

	cfg, err := Load("dashboard")
	require.NoError(t, err)
	assert.Equal(t, "xgboost", cfg.Model.Format)
	assert.Equal(t, "ola_xgboost_model.json", cfg.Model.Path)
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"model format", "MODEL_FORMAT", "pickle"},
		{"importance type", "MODEL_IMPORTANCE_TYPE", "cover"},
		{"sql driver", "DATASET_SQL_DRIVER", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load("dashboard")
			assert.Error(t, err)
		})
	}
}

func TestValidate_SQLDriverNeedsDSN(t *testing.T) {
	t.Setenv("DATASET_SQL_DRIVER", "sqlite")
	_, err := Load("dashboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATASET_SQL_DSN")

	t.Setenv("DATASET_SQL_DSN", "file:rides.db")
	cfg, err := Load("dashboard")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dataset.SQLDriver)
}

func TestRequestTimeout(t *testing.T) {
	s := ServerConfig{RequestTimeoutMS: 1500}
	assert.Equal(t, 1500*time.Millisecond, s.RequestTimeout())
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "redis.internal", Port: "6380"}
	assert.Equal(t, "redis.internal:6380", r.RedisAddr())
}
