package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/meucuidador/care-api/internal/model"
)

const (
	ContextKeyViewer             = "viewer"
	ContextKeyEffectivePatientID = "effective_patient_id"
)

func SetViewer(c *gin.Context, v model.Viewer) {
	c.Set(ContextKeyViewer, v)
}

// GetViewer returns the authenticated viewer set by the auth middleware.
func GetViewer(c *gin.Context) (model.Viewer, bool) {
	v, exists := c.Get(ContextKeyViewer)
	if !exists {
		return model.Viewer{}, false
	}
	viewer, ok := v.(model.Viewer)
	return viewer, ok
}

func SetEffectivePatientID(c *gin.Context, id int64) {
	c.Set(ContextKeyEffectivePatientID, id)
}

// GetEffectivePatientID falls back to the viewer's own id when the patient
// context middleware did not run.
func GetEffectivePatientID(c *gin.Context) int64 {
	if id, ok := c.Get(ContextKeyEffectivePatientID); ok {
		if v, ok := id.(int64); ok {
			return v
		}
	}
	viewer, _ := GetViewer(c)
	return viewer.ID
}

// ContextKeyEffectivePatientName holds the selected patient's name when the
// viewer is looking at someone else's records.
const ContextKeyEffectivePatientName = "effective_patient_name"
