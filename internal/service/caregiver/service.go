// Package caregiver resolves which patient a viewer is looking at and which
// patients they may switch to.
package caregiver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
	"github.com/meucuidador/care-api/pkg/messaging"
	"github.com/meucuidador/care-api/pkg/metrics"
)

const (
	SearchLimit    = 20
	maxQueryLength = 100
)

const msgPatientProfile = "patient profiles cannot view other patients"

type Service struct {
	patientRepo repository.PatientRepository
	ctxRepo     repository.ContextRepository
	broker      messaging.Broker
	metrics     *metrics.Metrics
	patients    *cache.Cache
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(
	patientRepo repository.PatientRepository,
	ctxRepo repository.ContextRepository,
	broker messaging.Broker,
	m *metrics.Metrics,
	listTTL time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		patientRepo: patientRepo,
		ctxRepo:     ctxRepo,
		broker:      broker,
		metrics:     m,
		patients:    cache.New(listTTL, 2*listTTL),
		logger:      logger.With().Str("service", "caregiver").Logger(),
		now:         time.Now,
	}
}

// ContextEvent is published on messaging.ChannelPatientContext.
type ContextEvent struct {
	ViewerID  int64     `json:"viewerId"`
	PatientID int64     `json:"patientId,omitempty"`
	At        time.Time `json:"at"`
}

func (s *Service) ListPatients(ctx context.Context, viewer model.Viewer) ([]*model.Patient, error) {
	if !viewer.ProfileType.CanSelectPatients() {
		return nil, apperrors.Forbidden(msgPatientProfile)
	}

	cacheKey := strconv.FormatInt(viewer.ID, 10)
	if x, found := s.patients.Get(cacheKey); found {
		return x.([]*model.Patient), nil
	}

	patients, err := s.patientRepo.ListAccessible(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	s.patients.Set(cacheKey, patients, cache.DefaultExpiration)
	return patients, nil
}

func (s *Service) ListPatientsBasic(ctx context.Context, viewer model.Viewer) ([]model.PatientBasic, error) {
	patients, err := s.ListPatients(ctx, viewer)
	if err != nil {
		return nil, err
	}
	basic := make([]model.PatientBasic, 0, len(patients))
	for _, p := range patients {
		basic = append(basic, p.Basic())
	}
	return basic, nil
}

// SearchPatients matches name or email among the viewer's accessible
// patients. A blank query matches nothing.
func (s *Service) SearchPatients(ctx context.Context, viewer model.Viewer, query string) ([]*model.Patient, error) {
	if !viewer.ProfileType.CanSelectPatients() {
		return nil, apperrors.Forbidden(msgPatientProfile)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.Patient{}, nil
	}
	if len(query) > maxQueryLength {
		return nil, apperrors.BadRequest("search query too long", nil)
	}

	patients, err := s.patientRepo.SearchAccessible(ctx, viewer.ID, query, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return patients, nil
}

func (s *Service) SwitchPatient(ctx context.Context, viewer model.Viewer, patientID int64) (*model.Patient, error) {
	patient, err := s.switchPatient(ctx, viewer, patientID)
	s.metrics.ContextSwitches.WithLabelValues(switchResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("viewer_id", viewer.ID).
		Int64("patient_id", patient.ID).
		Msg("patient context switched")
	s.publish(ctx, messaging.EventPatientContextSwitched, ContextEvent{
		ViewerID:  viewer.ID,
		PatientID: patient.ID,
		At:        s.now(),
	})
	return patient, nil
}

func (s *Service) switchPatient(ctx context.Context, viewer model.Viewer, patientID int64) (*model.Patient, error) {
	if patientID <= 0 {
		return nil, apperrors.BadRequest("invalid patient id", nil)
	}
	if !viewer.ProfileType.CanSelectPatients() {
		return nil, apperrors.Forbidden(msgPatientProfile)
	}

	patient, err := s.patientRepo.Get(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	ok, err := s.patientRepo.HasAccess(ctx, viewer.ID, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check patient access: %w", err)
	}
	if !ok {
		return nil, apperrors.Forbidden("no access to this patient")
	}

	if err := s.ctxRepo.Set(ctx, &model.ViewingContext{
		ViewerID:  viewer.ID,
		PatientID: patientID,
		UpdatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to persist viewing context: %w", err)
	}
	return patient, nil
}

// ClearContext returns the viewer to their own records. Clearing an empty
// context is not an error.
func (s *Service) ClearContext(ctx context.Context, viewer model.Viewer) error {
	if err := s.ctxRepo.Clear(ctx, viewer.ID); err != nil {
		return fmt.Errorf("failed to clear viewing context: %w", err)
	}
	s.metrics.ContextClears.Inc()
	s.logger.Info().Int64("viewer_id", viewer.ID).Msg("patient context cleared")
	s.publish(ctx, messaging.EventPatientContextCleared, ContextEvent{
		ViewerID: viewer.ID,
		At:       s.now(),
	})
	return nil
}

// CurrentContext resolves the patient in view for a request. The effective
// patient is the selected one, or the viewer itself when nothing is selected.
func (s *Service) CurrentContext(ctx context.Context, viewer model.Viewer) (*model.ContextResponse, error) {
	selected, err := s.selectedPatient(ctx, viewer)
	if err != nil {
		return nil, err
	}
	resp := &model.ContextResponse{
		Viewer:             viewer,
		SelectedPatient:    selected,
		EffectivePatientID: viewer.ID,
	}
	if selected != nil {
		resp.EffectivePatientID = selected.ID
		s.metrics.ContextLookups.WithLabelValues("context").Inc()
	} else {
		s.metrics.ContextLookups.WithLabelValues("self").Inc()
	}
	return resp, nil
}

// selectedPatient loads the stored selection. A selection whose patient is
// gone or whose access link was revoked is dropped.
func (s *Service) selectedPatient(ctx context.Context, viewer model.Viewer) (*model.Patient, error) {
	if !viewer.ProfileType.CanSelectPatients() {
		return nil, nil
	}

	vc, err := s.ctxRepo.Get(ctx, viewer.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get viewing context: %w", err)
	}

	patient, err := s.patientRepo.Get(ctx, vc.PatientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	ok := err == nil
	if ok {
		if ok, err = s.patientRepo.HasAccess(ctx, viewer.ID, vc.PatientID); err != nil {
			return nil, fmt.Errorf("failed to check patient access: %w", err)
		}
	}
	if !ok {
		s.logger.Warn().
			Int64("viewer_id", viewer.ID).
			Int64("patient_id", vc.PatientID).
			Msg("dropping stale viewing context")
		if err := s.ctxRepo.Clear(ctx, viewer.ID); err != nil {
			return nil, fmt.Errorf("failed to clear viewing context: %w", err)
		}
		return nil, nil
	}
	return patient, nil
}

func (s *Service) publish(ctx context.Context, eventType string, payload ContextEvent) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{Type: eventType, Payload: payload}
	if err := s.broker.Publish(ctx, messaging.ChannelPatientContext, msg); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish context event")
	}
}

func switchResult(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrBadRequest:
			return "invalid"
		case apperrors.ErrForbidden:
			return "forbidden"
		case apperrors.ErrNotFound:
			return "not_found"
		}
	}
	return "error"
}
