package errortracking

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ridedemand/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestInit_EmptyDSNDisables(t *testing.T) {
	assert.NoError(t, Init(config.SentryConfig{}, "test", "1.0.0"))
	assert.False(t, Enabled())
}

func TestMiddleware_PassThroughWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		CaptureError(c, errors.New("ignored"))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
