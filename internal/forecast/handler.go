package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/richxcame/ridedemand/internal/gbm"
	"github.com/richxcame/ridedemand/pkg/common"
	"github.com/richxcame/ridedemand/pkg/errortracking"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/middleware"
	"github.com/richxcame/ridedemand/pkg/validation"
	ws "github.com/richxcame/ridedemand/pkg/websocket"
	"go.uber.org/zap"
)

// WebSocket message types
const (
	MsgInputsChanged = "inputs_changed"
	MsgSubmit        = "submit"
	MsgVector        = "vector"
	MsgPrediction    = "prediction"
)

// Handler serves the prediction side of the dashboard
type Handler struct {
	predictor  *Predictor
	importance gbm.ImportanceType
	suggested  *FeatureInput

	hub      *ws.Hub
	sessions sync.Map
	upgrader gorillaws.Upgrader
}

// NewHandler creates a forecast handler and registers its session handlers on hub.
// suggested may be nil when the history is too short to derive inputs.
func NewHandler(predictor *Predictor, importance gbm.ImportanceType, suggested *FeatureInput, hub *ws.Hub) *Handler {
	h := &Handler{
		predictor:  predictor,
		importance: importance,
		suggested:  suggested,
		hub:        hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	hub.RegisterHandler(MsgInputsChanged, h.onInputsChanged)
	hub.RegisterHandler(MsgSubmit, h.onSubmit)
	hub.OnUnregister(func(c *ws.Client) { h.sessions.Delete(c.ID) })
	return h
}

// ========================================
// HTTP ENDPOINTS
// ========================================

// GetDefaults returns the initial widget values
// GET /api/v1/forecast/defaults
func (h *Handler) GetDefaults(c *gin.Context) {
	defaults := DefaultInput()
	common.SuccessResponse(c, gin.H{
		"defaults":      defaults,
		"vector":        Build(defaults),
		"suggested":     h.suggested,
		"feature_names": FeatureNames,
	})
}

// BuildVector returns the vector for the posted inputs without predicting.
// Omitted fields keep their default values.
// POST /api/v1/forecast/vector
func (h *Handler) BuildVector(c *gin.Context) {
	in := DefaultInput()
	if !middleware.ValidateAndBind(c, &in) {
		return
	}

	vec := Build(in)
	common.SuccessResponse(c, gin.H{
		"vector": vec,
		"values": vec.Values(),
	})
}

// Predict runs one prediction on the posted inputs
// POST /api/v1/forecast/predict
func (h *Handler) Predict(c *gin.Context) {
	in := DefaultInput()
	if !middleware.ValidateAndBind(c, &in) {
		return
	}

	result, err := h.predictor.Predict(c.Request.Context(), Build(in))
	if err != nil {
		errortracking.CaptureError(c, err)
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, result)
}

// GetImportance returns the ranked feature importance view
// GET /api/v1/forecast/importance
func (h *Handler) GetImportance(c *gin.Context) {
	rows, err := h.predictor.Importance(h.importance)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Importance view failed", zap.Error(err))
		errortracking.CaptureError(c, err)
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{
		"type":     h.importance,
		"features": rows,
	})
}

// ========================================
// WEBSOCKET SESSION
// ========================================

// HandleWebSocket upgrades the request and starts a dashboard session
// GET /ws/forecast
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.New().String()
	session := NewSession(id, h.predictor, DefaultInput())
	h.sessions.Store(id, session)

	client := ws.NewClient(id, conn, h.hub, logger.WithContext(c.Request.Context()))
	h.hub.Register <- client

	vec := session.Vector()
	client.SendMessage(&ws.Message{
		Type: MsgVector,
		Data: map[string]interface{}{
			"session_id": id,
			"input":      session.Input(),
			"vector":     vec,
			"values":     vec.Values(),
		},
	})

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) session(client *ws.Client) (*Session, bool) {
	v, ok := h.sessions.Load(client.ID)
	if !ok {
		client.SendMessage(ws.ErrorMessage("session expired"))
		return nil, false
	}
	return v.(*Session), true
}

func (h *Handler) onInputsChanged(client *ws.Client, msg *ws.Message) {
	session, ok := h.session(client)
	if !ok {
		return
	}

	in := session.Input()
	if err := decodeData(msg.Data, &in); err != nil {
		client.SendMessage(ws.ErrorMessage("invalid inputs: " + err.Error()))
		return
	}

	vec, err := session.InputsChanged(in)
	if err != nil {
		client.SendMessage(validationMessage(err))
		return
	}

	client.SendMessage(&ws.Message{
		Type: MsgVector,
		Data: map[string]interface{}{
			"input":  in,
			"vector": vec,
			"values": vec.Values(),
		},
	})
}

func (h *Handler) onSubmit(client *ws.Client, msg *ws.Message) {
	session, ok := h.session(client)
	if !ok {
		return
	}

	result, err := session.Submit(context.Background())
	if err != nil {
		errortracking.CaptureError(nil, err)
		appErr := common.ToAppError(err)
		client.SendMessage(&ws.Message{
			Type: ws.MessageTypeError,
			Data: map[string]interface{}{
				"message": appErr.Message,
				"kind":    appErr.Kind,
			},
		})
		return
	}

	client.SendMessage(&ws.Message{
		Type: MsgPrediction,
		Data: map[string]interface{}{
			"value":   result.Value,
			"display": result.Display,
			"vector":  result.Vector,
		},
	})
}

// decodeData overlays a message payload onto dst
func decodeData(data map[string]interface{}, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func validationMessage(err error) *ws.Message {
	var valErr *validation.ValidationError
	if errors.As(err, &valErr) {
		return &ws.Message{
			Type: ws.MessageTypeError,
			Data: map[string]interface{}{
				"message": "validation failed",
				"fields":  valErr.Errors,
				"code":    http.StatusBadRequest,
			},
		}
	}
	return ws.ErrorMessage(err.Error())
}

// RegisterRoutes registers the forecast JSON routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	forecast := rg.Group("/forecast")
	{
		forecast.GET("/defaults", h.GetDefaults)
		forecast.POST("/vector", h.BuildVector)
		forecast.POST("/predict", h.Predict)
		forecast.GET("/importance", h.GetImportance)
	}
}
