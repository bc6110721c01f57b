package dashboard

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/ridedemand/internal/analytics"
	"github.com/richxcame/ridedemand/internal/charts"
	"github.com/richxcame/ridedemand/internal/forecast"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/errortracking"
	"github.com/richxcame/ridedemand/pkg/health"
	"github.com/richxcame/ridedemand/pkg/middleware"
	ws "github.com/richxcame/ridedemand/pkg/websocket"
)

// RouterOptions carries the pieces of the router that live outside App
type RouterOptions struct {
	Hub *ws.Hub
	// Checks are extra readiness checks, e.g. redis
	Checks map[string]func() error
}

// NewRouter builds the HTTP router serving the page, its JSON API, the
// WebSocket session, the chart images and the operational endpoints
func NewRouter(app *App, opts RouterOptions) *gin.Engine {
	cfg := app.Config.Server

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(cfg.ServiceName))
	router.Use(middleware.SecurityHeaders())
	router.Use(errortracking.Middleware())

	router.SetHTMLTemplate(parseTemplates())
	router.StaticFS("/static", staticFiles())

	checks := map[string]func() error{"state": health.ReadyChecker(app)}
	for name, check := range opts.Checks {
		checks[name] = check
	}
	router.GET("/healthz", common.HealthCheck(cfg.ServiceName, cfg.Version))
	router.GET("/readyz", common.HealthCheckWithDeps(cfg.ServiceName, cfg.Version, checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", app.Index)

	forecastHandler := forecast.NewHandler(app.Predictor, app.Importance, app.Suggested, opts.Hub)
	analyticsHandler := analytics.NewHandler(app.Analytics)
	chartHandler := charts.NewHandler(app.Charts)

	// long-lived connection, kept outside the request timeout
	router.GET("/ws/forecast", forecastHandler.HandleWebSocket)

	corsConfig := cors.DefaultConfig()
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.CorrelationIDHeader}

	api := router.Group("/api/v1")
	api.Use(cors.New(corsConfig))
	api.Use(middleware.MaxBodySize(1 << 20))
	api.Use(middleware.Timeout(cfg.RequestTimeout()))
	{
		forecastHandler.RegisterRoutes(api)
		analyticsHandler.RegisterRoutes(api)
	}
	chartHandler.RegisterRoutes(router, api)

	return router
}
