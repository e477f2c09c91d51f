package model

import (
	"time"
)

// ViewingContext records whose records a viewer is currently looking at.
// A missing context means the viewer is looking at their own records.
type ViewingContext struct {
	ViewerID  int64     `json:"viewerId"`
	PatientID int64     `json:"patientId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContextResponse is returned by GET /api/caregiver/context.
type ContextResponse struct {
	Viewer             Viewer   `json:"viewer"`
	SelectedPatient    *Patient `json:"selectedPatient"`
	EffectivePatientID int64    `json:"effectivePatientId"`
}

// SwitchPatientResponse is returned by POST /api/caregiver/switch-patient.
type SwitchPatientResponse struct {
	Patient *Patient `json:"patient"`
}
