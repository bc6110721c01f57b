package charts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/errortracking"
)

// Handler serves rendered chart images
type Handler struct {
	service *Service
}

// NewHandler creates a new chart handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetChart returns one chart as PNG
// GET /charts/:name
func (h *Handler) GetChart(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("name"), ".png")

	key, err := h.service.Key(name)
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("chart not found", err))
		return
	}

	etag := `"` + etagFor(key) + `"`
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	data, err := h.service.Render(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, ErrUnknownChart) {
			common.ErrorResponse(c, http.StatusNotFound, "chart not found")
			return
		}
		errortracking.CaptureError(c, err)
		common.HandleError(c, err)
		return
	}

	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", data)
}

// ListCharts returns the chart names and their URLs
// GET /api/v1/charts
func (h *Handler) ListCharts(c *gin.Context) {
	charts := make([]gin.H, 0, len(Names))
	for _, name := range Names {
		charts = append(charts, gin.H{"name": name, "url": "/charts/" + name + ".png"})
	}
	common.SuccessResponse(c, charts)
}

func etagFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// RegisterRoutes registers the image route on r and the listing on api
func (h *Handler) RegisterRoutes(r gin.IRouter, api *gin.RouterGroup) {
	r.GET("/charts/:name", h.GetChart)
	api.GET("/charts", h.ListCharts)
}
