package model

import (
	"time"
)

// Patient is the read-only projection of a user that a viewer can select.
type Patient struct {
	ID          int64       `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Email       string      `json:"email" db:"email"`
	Age         *int        `json:"age,omitempty" db:"age"`
	Photo       *string     `json:"photo,omitempty" db:"photo"`
	ProfileType ProfileType `json:"profileType" db:"profile_type"`
	Weight      *float64    `json:"weight,omitempty" db:"weight"`
	Whatsapp    *string     `json:"whatsapp,omitempty" db:"whatsapp"`
}

// PatientBasic is the slim listing used by the selector.
type PatientBasic struct {
	ID          int64       `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Email       string      `json:"email" db:"email"`
	ProfileType ProfileType `json:"profileType" db:"profile_type"`
}

func (p *Patient) Basic() PatientBasic {
	return PatientBasic{
		ID:          p.ID,
		Name:        p.Name,
		Email:       p.Email,
		ProfileType: p.ProfileType,
	}
}

// CaregiverPatient links a viewer to a patient whose records they may access.
type CaregiverPatient struct {
	CaregiverID int64     `json:"caregiverId" db:"caregiver_id"`
	PatientID   int64     `json:"patientId" db:"patient_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type SwitchPatientRequest struct {
	PatientID int64 `json:"patientId" binding:"required,gt=0"`
}

type SearchPatientsRequest struct {
	Query string `form:"q" binding:"max=100"`
}
