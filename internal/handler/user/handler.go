package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meucuidador/care-api/internal/handler"
	"github.com/meucuidador/care-api/internal/model"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
)

type Service interface {
	SearchPatients(ctx context.Context, viewer model.Viewer, query string) ([]*model.Patient, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("/search-patients", h.SearchPatients)
	}
}

func (h *Handler) SearchPatients(c *gin.Context) {
	viewer, ok := handler.GetViewer(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.SearchPatientsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid search query", err))
		return
	}

	patients, err := h.svc.SearchPatients(c.Request.Context(), viewer, req.Query)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}
