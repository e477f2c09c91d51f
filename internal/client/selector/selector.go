// Package selector drives patient search and selection for viewers who may
// look at other patients' records.
package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/model"
)

var (
	ErrNotAllowed = errors.New("this profile cannot select patients")
	ErrSuperseded = errors.New("search superseded by a newer query")
)

const DefaultDebounce = 300 * time.Millisecond

type Route string

const (
	RoutePatientOverview Route = "/patient-overview"
	RouteHome            Route = "/"
)

type Navigation struct {
	Route     Route
	PatientID int64
}

type Remote interface {
	SearchPatients(ctx context.Context, query string) ([]*model.Patient, error)
	ListPatientsBasic(ctx context.Context) ([]model.PatientBasic, error)
}

type Switcher interface {
	Switch(ctx context.Context, patientID int64) (*model.Patient, error)
	Clear(ctx context.Context)
}

type Option func(*Selector)

func WithDebounce(d time.Duration) Option {
	return func(s *Selector) { s.debounce = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Selector) { s.logger = logger }
}

type Selector struct {
	remote   Remote
	store    Switcher
	debounce time.Duration
	logger   zerolog.Logger

	mu  sync.Mutex
	seq uint64

	loadMu     sync.Mutex
	accessible []model.PatientBasic
	loaded     bool
}

func New(viewer model.Viewer, remote Remote, store Switcher, opts ...Option) (*Selector, error) {
	if !viewer.ProfileType.CanSelectPatients() {
		return nil, ErrNotAllowed
	}
	s := &Selector{
		remote:   remote,
		store:    store,
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search waits out the debounce window and queries the server. A newer
// Search makes older ones return ErrSuperseded, even after their request
// has completed.
func (s *Selector) Search(ctx context.Context, query string) ([]*model.Patient, error) {
	s.mu.Lock()
	s.seq++
	mine := s.seq
	s.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.Patient{}, nil
	}

	if s.debounce > 0 {
		timer := time.NewTimer(s.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if !s.current(mine) {
		return nil, ErrSuperseded
	}

	results, err := s.remote.SearchPatients(ctx, query)
	if err != nil {
		s.logger.Debug().Err(err).Str("query", query).Msg("patient search failed")
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	if !s.current(mine) {
		return nil, ErrSuperseded
	}
	if results == nil {
		results = []*model.Patient{}
	}
	return results, nil
}

func (s *Selector) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq == seq
}

// Accessible loads the viewer's accessible patients on first use and keeps
// them. Failed loads are retried on the next call.
func (s *Selector) Accessible(ctx context.Context) ([]model.PatientBasic, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if !s.loaded {
		patients, err := s.remote.ListPatientsBasic(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load accessible patients: %w", err)
		}
		s.accessible = patients
		s.loaded = true
	}

	out := make([]model.PatientBasic, len(s.accessible))
	copy(out, s.accessible)
	return out, nil
}

// Select blocks until the switch settles. On failure the previous context
// stays in place.
func (s *Selector) Select(ctx context.Context, patientID int64) (Navigation, error) {
	patient, err := s.store.Switch(ctx, patientID)
	if err != nil {
		return Navigation{}, err
	}
	return Navigation{Route: RoutePatientOverview, PatientID: patient.ID}, nil
}

func (s *Selector) Dismiss(ctx context.Context) Navigation {
	s.store.Clear(ctx)
	return Navigation{Route: RouteHome}
}
