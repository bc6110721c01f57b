package errortracking

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/ridedemand/pkg/config"
	"github.com/richxcame/ridedemand/pkg/logger"
	"go.uber.org/zap"
)

var enabled bool

// Init configures the Sentry client. An empty DSN leaves error tracking off.
func Init(cfg config.SentryConfig, environment, release string) error {
	if cfg.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          release,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return err
	}

	enabled = true
	logger.Info("Sentry error tracking enabled", zap.String("environment", environment))
	return nil
}

// Enabled reports whether Init configured a client
func Enabled() bool {
	return enabled
}

// Middleware returns the gin integration, or a pass-through when disabled
func Middleware() gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// CaptureError reports err against the request's hub when one exists
func CaptureError(c *gin.Context, err error) {
	if !enabled || err == nil {
		return
	}
	if c != nil {
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
			return
		}
	}
	sentry.CaptureException(err)
}

// Flush waits for buffered events to be sent
func Flush(timeout time.Duration) {
	if enabled {
		sentry.Flush(timeout)
	}
}
