package analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/errortracking"
)

// Handler handles HTTP requests for the aggregation views
type Handler struct {
	service *Service
}

// NewHandler creates a new analytics handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetSummary returns the headline figures
// GET /api/v1/analytics/summary
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.service.GetSummary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, summary)
}

// GetTimeSeries returns the demand timeline
// GET /api/v1/analytics/timeseries?bucket=hour|day
func (h *Handler) GetTimeSeries(c *gin.Context) {
	bucket := c.DefaultQuery("bucket", "hour")
	if bucket != "hour" && bucket != "day" {
		common.ErrorResponse(c, http.StatusBadRequest, "bucket must be hour or day")
		return
	}

	points, err := h.service.GetTimeSeries(c.Request.Context(), bucket == "day")
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{
		"bucket": bucket,
		"points": points,
		"count":  len(points),
	})
}

// GetHourly returns the average demand by hour
// GET /api/v1/analytics/hourly
func (h *Handler) GetHourly(c *gin.Context) {
	buckets, err := h.service.GetHourly(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, buckets)
}

// GetWeekly returns the average demand by day of week
// GET /api/v1/analytics/weekly
func (h *Handler) GetWeekly(c *gin.Context) {
	buckets, err := h.service.GetWeekly(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, buckets)
}

// GetHeatmap returns the day by hour grid
// GET /api/v1/analytics/heatmap
func (h *Handler) GetHeatmap(c *gin.Context) {
	hm, err := h.service.GetHeatmap(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, hm)
}

func (h *Handler) fail(c *gin.Context, err error) {
	errortracking.CaptureError(c, err)
	common.HandleError(c, err)
}

// RegisterRoutes registers the analytics routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	analytics := rg.Group("/analytics")
	{
		analytics.GET("/summary", h.GetSummary)
		analytics.GET("/timeseries", h.GetTimeSeries)
		analytics.GET("/hourly", h.GetHourly)
		analytics.GET("/weekly", h.GetWeekly)
		analytics.GET("/heatmap", h.GetHeatmap)
	}
}
