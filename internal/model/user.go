package model

import (
	"fmt"
	"strings"
)

// ProfileType is the role a user plays in the care network.
type ProfileType string

const (
	ProfileTypePatient   ProfileType = "patient"
	ProfileTypeCaregiver ProfileType = "caregiver"
	ProfileTypeDoctor    ProfileType = "doctor"
	ProfileTypeFamily    ProfileType = "family"
	ProfileTypeNurse     ProfileType = "nurse"
)

var profileTypes = []ProfileType{
	ProfileTypePatient,
	ProfileTypeCaregiver,
	ProfileTypeDoctor,
	ProfileTypeFamily,
	ProfileTypeNurse,
}

func ParseProfileType(s string) (ProfileType, error) {
	pt := ProfileType(strings.ToLower(strings.TrimSpace(s)))
	if !pt.Valid() {
		return "", fmt.Errorf("unknown profile type %q", s)
	}
	return pt, nil
}

func (p ProfileType) Valid() bool {
	for _, pt := range profileTypes {
		if p == pt {
			return true
		}
	}
	return false
}

// CanSelectPatients reports whether this profile may view another patient's
// records. Patients never select other patients.
func (p ProfileType) CanSelectPatients() bool {
	switch p {
	case ProfileTypeCaregiver, ProfileTypeDoctor, ProfileTypeFamily, ProfileTypeNurse:
		return true
	default:
		return false
	}
}

// User represents a row of the users table
type User struct {
	Base
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	PasswordHash string      `json:"-" db:"password_hash"`
	ProfileType  ProfileType `json:"profileType" db:"profile_type"`
	Age          *int        `json:"age,omitempty" db:"age"`
	Photo        *string     `json:"photo,omitempty" db:"photo"`
	Weight       *float64    `json:"weight,omitempty" db:"weight"`
	Whatsapp     *string     `json:"whatsapp,omitempty" db:"whatsapp"`
}

// Viewer is the authenticated identity behind a request.
type Viewer struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	ProfileType ProfileType `json:"profileType"`
}

func (u *User) Viewer() Viewer {
	return Viewer{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		ProfileType: u.ProfileType,
	}
}

func (u *User) Patient() *Patient {
	return &Patient{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Age:         u.Age,
		Photo:       u.Photo,
		ProfileType: u.ProfileType,
		Weight:      u.Weight,
		Whatsapp:    u.Whatsapp,
	}
}
