package caregiver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meucuidador/care-api/internal/handler"
	"github.com/meucuidador/care-api/internal/model"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
)

type Service interface {
	ListPatients(ctx context.Context, viewer model.Viewer) ([]*model.Patient, error)
	ListPatientsBasic(ctx context.Context, viewer model.Viewer) ([]model.PatientBasic, error)
	SwitchPatient(ctx context.Context, viewer model.Viewer, patientID int64) (*model.Patient, error)
	ClearContext(ctx context.Context, viewer model.Viewer) error
	CurrentContext(ctx context.Context, viewer model.Viewer) (*model.ContextResponse, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	caregiver := r.Group("/caregiver")
	{
		caregiver.GET("/patients", h.ListPatients)
		caregiver.GET("/patients/basic", h.ListPatientsBasic)
		caregiver.POST("/switch-patient", h.SwitchPatient)
		caregiver.DELETE("/clear-patient-context", h.ClearPatientContext)
		caregiver.GET("/context", h.GetContext)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	viewer, ok := handler.GetViewer(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	patients, err := h.svc.ListPatients(c.Request.Context(), viewer)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) ListPatientsBasic(c *gin.Context) {
	viewer, ok := handler.GetViewer(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	patients, err := h.svc.ListPatientsBasic(c.Request.Context(), viewer)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) SwitchPatient(c *gin.Context) {
	viewer, ok := handler.GetViewer(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.SwitchPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.BadRequest("patientId must be a positive integer", err))
		return
	}

	patient, err := h.svc.SwitchPatient(c.Request.Context(), viewer, req.PatientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.SwitchPatientResponse{Patient: patient}))
}

func (h *Handler) ClearPatientContext(c *gin.Context) {
	viewer, ok := handler.GetViewer(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	if err := h.svc.ClearContext(c.Request.Context(), viewer); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("patient context cleared"))
}

func (h *Handler) GetContext(c *gin.Context) {
	viewer, ok := handler.GetViewer(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized(nil))
		return
	}

	resp, err := h.svc.CurrentContext(c.Request.Context(), viewer)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}
