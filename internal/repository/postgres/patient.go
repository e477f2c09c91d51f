package postgres

import (
	"context"
	"strings"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
)

const patientColumns = `u.id, u.name, u.email, u.age, u.photo, u.profile_type, u.weight, u.whatsapp`

const (
	queryPatientByID = `SELECT ` + patientColumns + ` FROM users u WHERE u.id = $1`

	queryAccessiblePatients = `
		SELECT ` + patientColumns + `
		FROM caregiver_patients cp
		JOIN users u ON u.id = cp.patient_id
		WHERE cp.caregiver_id = $1
		ORDER BY u.name, u.id`

	querySearchAccessiblePatients = `
		SELECT ` + patientColumns + `
		FROM caregiver_patients cp
		JOIN users u ON u.id = cp.patient_id
		WHERE cp.caregiver_id = $1
		  AND (u.name ILIKE $2 OR u.email ILIKE $2)
		ORDER BY u.name, u.id
		LIMIT $3`

	queryHasAccess = `
		SELECT EXISTS (
			SELECT 1 FROM caregiver_patients
			WHERE caregiver_id = $1 AND patient_id = $2
		)`
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, queryPatientByID, id); err != nil {
		return nil, wrapErr("failed to get patient", err)
	}
	return &patient, nil
}

func (r *patientRepository) ListAccessible(ctx context.Context, caregiverID int64) ([]*model.Patient, error) {
	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, queryAccessiblePatients, caregiverID); err != nil {
		return nil, wrapErr("failed to list accessible patients", err)
	}
	return patients, nil
}

func (r *patientRepository) SearchAccessible(ctx context.Context, caregiverID int64, query string, limit int) ([]*model.Patient, error) {
	patients := []*model.Patient{}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	if err := r.db.SelectContext(ctx, &patients, querySearchAccessiblePatients, caregiverID, pattern, limit); err != nil {
		return nil, wrapErr("failed to search patients", err)
	}
	return patients, nil
}

func (r *patientRepository) HasAccess(ctx context.Context, caregiverID, patientID int64) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, queryHasAccess, caregiverID, patientID); err != nil {
		return false, wrapErr("failed to check patient access", err)
	}
	return ok, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
