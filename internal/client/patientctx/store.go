// Package patientctx tracks whose records the viewer is looking at.
package patientctx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/client/querycache"
	"github.com/meucuidador/care-api/internal/model"
)

var (
	ErrInvalidPatientID = errors.New("patient id must be a positive integer")
	ErrSwitchInProgress = errors.New("a patient switch is already in progress")
	ErrSwitchSuperseded = errors.New("patient switch superseded by a newer context change")
)

// Remote is the server side of the patient context.
type Remote interface {
	SwitchPatient(ctx context.Context, patientID int64) (*model.Patient, error)
	ClearPatientContext(ctx context.Context) error
	CurrentContext(ctx context.Context) (*model.ContextResponse, error)
}

// Invalidator drops cached query results by category.
type Invalidator interface {
	Invalidate(categories ...querycache.Category) int
}

// Store holds the selected patient and keeps the query cache in step with it.
type Store struct {
	remote Remote
	cache  Invalidator
	logger zerolog.Logger

	mu         sync.Mutex
	viewer     model.Viewer
	selected   *model.Patient
	switching  bool
	generation uint64
}

// NewStore returns a Store with no patient selected.
func NewStore(viewer model.Viewer, remote Remote, cache Invalidator, logger zerolog.Logger) *Store {
	return &Store{
		remote: remote,
		cache:  cache,
		logger: logger.With().Str("component", "patient_context").Logger(),
		viewer: viewer,
	}
}

func (s *Store) Viewer() model.Viewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewer
}

// Selected returns a copy of the selected patient, or nil when the viewer
// is looking at their own records.
func (s *Store) Selected() *model.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePatient(s.selected)
}

// EffectivePatientID is the id whose records patient-scoped queries target.
func (s *Store) EffectivePatientID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != nil {
		return s.selected.ID
	}
	return s.viewer.ID
}

func (s *Store) IsSwitching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switching
}

// Switch persists the new context remotely, then commits it locally and
// purges every patient-scoped cache category. On failure nothing changes.
func (s *Store) Switch(ctx context.Context, patientID int64) (*model.Patient, error) {
	if patientID <= 0 {
		return nil, ErrInvalidPatientID
	}

	s.mu.Lock()
	if s.switching {
		s.mu.Unlock()
		return nil, ErrSwitchInProgress
	}
	s.switching = true
	gen := s.generation
	s.mu.Unlock()

	patient, err := s.remote.SwitchPatient(ctx, patientID)

	s.mu.Lock()
	s.switching = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug().Err(err).Int64("patient_id", patientID).Msg("switch rejected")
		return nil, fmt.Errorf("failed to switch patient: %w", err)
	}
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug().Int64("patient_id", patientID).Msg("switch superseded")
		return nil, ErrSwitchSuperseded
	}
	if patient == nil {
		patient = &model.Patient{ID: patientID}
	}
	s.selected = clonePatient(patient)
	s.generation++
	s.mu.Unlock()

	removed := s.cache.Invalidate(querycache.PatientScoped...)
	s.logger.Debug().Int64("patient_id", patientID).Int("purged", removed).Msg("switched patient")
	return clonePatient(patient), nil
}

// Clear returns the viewer to their own records. The remote clear is best
// effort and never fails the call.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.selected = nil
	s.generation++
	s.mu.Unlock()

	if err := s.remote.ClearPatientContext(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear remote patient context")
	}

	removed := s.cache.Invalidate(querycache.PatientScoped...)
	s.logger.Debug().Int("purged", removed).Msg("cleared patient context")
}

// Sync adopts the context the server currently holds for this viewer.
func (s *Store) Sync(ctx context.Context) error {
	resp, err := s.remote.CurrentContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to load patient context: %w", err)
	}

	s.mu.Lock()
	before := int64(0)
	if s.selected != nil {
		before = s.selected.ID
	}
	after := int64(0)
	if resp.SelectedPatient != nil {
		after = resp.SelectedPatient.ID
	}
	s.selected = clonePatient(resp.SelectedPatient)
	if before != after {
		s.generation++
	}
	s.mu.Unlock()

	if before != after {
		s.cache.Invalidate(querycache.PatientScoped...)
	}
	s.logger.Debug().Int64("patient_id", after).Msg("synced patient context")
	return nil
}

// Reset drops the selection on logout without remote calls.
func (s *Store) Reset() {
	s.mu.Lock()
	s.selected = nil
	s.generation++
	s.mu.Unlock()
	s.logger.Debug().Msg("patient context reset")
}

func clonePatient(p *model.Patient) *model.Patient {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
