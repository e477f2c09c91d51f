package notification

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/handler"
	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/service/notification"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
	"github.com/meucuidador/care-api/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Handler struct {
	svc      notification.Service
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc notification.Service, m *metrics.Metrics, logger zerolog.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		svc:     svc,
		metrics: m,
		logger:  logger.With().Str("handler", "notification").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.POST("", h.Create)
		notifications.GET("/stream", h.Stream)
		// static segment first so it is never read as an id
		notifications.DELETE("/clear-read", h.ClearRead)
		notifications.PUT("/:id/read", h.MarkRead)
		notifications.DELETE("/:id", h.Delete)
	}
}

// List returns the notifications of the patient currently in view, which
// is the viewer unless a patient context is selected.
func (h *Handler) List(c *gin.Context) {
	if _, ok := handler.GetViewer(c); !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid pagination", err))
		return
	}

	result, err := h.svc.List(c.Request.Context(), handler.GetEffectivePatientID(c), page)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

type createRequest struct {
	Type     string                     `json:"type" binding:"required,max=64"`
	Title    string                     `json:"title" binding:"required,max=200"`
	Message  string                     `json:"message" binding:"required"`
	Priority model.NotificationPriority `json:"priority"`
}

// Create notifies the patient currently in view. When a caregiver writes
// for someone else, the note carries both names.
func (h *Handler) Create(c *gin.Context) {
	viewer, ok := handler.GetViewer(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid notification", err))
		return
	}

	create := &model.CreateNotificationRequest{
		UserID:   handler.GetEffectivePatientID(c),
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Priority: req.Priority,
	}
	if create.UserID != viewer.ID {
		editor := viewer.Name
		create.EditorName = &editor
		if name, ok := c.Get(handler.ContextKeyEffectivePatientName); ok {
			if s, ok := name.(string); ok && s != "" {
				create.PatientName = &s
			}
		}
	}

	n, err := h.svc.Create(c.Request.Context(), create)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(n))
}

func (h *Handler) MarkRead(c *gin.Context) {
	if _, ok := handler.GetViewer(c); !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}
	id, err := parseID(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), handler.GetEffectivePatientID(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("notification marked as read"))
}

func (h *Handler) Delete(c *gin.Context) {
	if _, ok := handler.GetViewer(c); !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}
	id, err := parseID(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), handler.GetEffectivePatientID(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("notification deleted"))
}

func (h *Handler) ClearRead(c *gin.Context) {
	if _, ok := handler.GetViewer(c); !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	n, err := h.svc.ClearRead(c.Request.Context(), handler.GetEffectivePatientID(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": n}))
}

// Stream pushes new notifications for the patient in view when the
// connection opens, until the client goes away. Clients reconnect after a
// context switch.
func (h *Handler) Stream(c *gin.Context) {
	if _, ok := handler.GetViewer(c); !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}
	patientID := handler.GetEffectivePatientID(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates, err := h.svc.Subscribe(ctx, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Int64("user_id", patientID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.metrics.StreamConnections.Inc()
	defer h.metrics.StreamConnections.Dec()
	h.logger.Debug().Int64("user_id", patientID).Msg("notification stream opened")

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case n, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				h.logger.Debug().Err(err).Int64("user_id", patientID).Msg("notification stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequest("invalid notification id", nil)
	}
	return id, nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
