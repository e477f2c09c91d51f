package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/meucuidador/care-api/internal/handler"
	"github.com/meucuidador/care-api/internal/model"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
)

type ContextResolver interface {
	CurrentContext(ctx context.Context, viewer model.Viewer) (*model.ContextResponse, error)
}

// PatientContext resolves whose records the request is about. It must run
// after Authenticate.
func PatientContext(resolver ContextResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer, ok := handler.GetViewer(c)
		if !ok {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}

		resp, err := resolver.CurrentContext(c.Request.Context(), viewer)
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		handler.SetEffectivePatientID(c, resp.EffectivePatientID)
		if resp.SelectedPatient != nil {
			c.Set(handler.ContextKeyEffectivePatientName, resp.SelectedPatient.Name)
		}
		c.Next()
	}
}
