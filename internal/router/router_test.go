package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meucuidador/care-api/internal/client/api"
	"github.com/meucuidador/care-api/internal/client/patientctx"
	"github.com/meucuidador/care-api/internal/client/querycache"
	authHandler "github.com/meucuidador/care-api/internal/handler/auth"
	caregiverHandler "github.com/meucuidador/care-api/internal/handler/caregiver"
	"github.com/meucuidador/care-api/internal/handler/health"
	notificationHandler "github.com/meucuidador/care-api/internal/handler/notification"
	"github.com/meucuidador/care-api/internal/handler/prometheus"
	userHandler "github.com/meucuidador/care-api/internal/handler/user"
	"github.com/meucuidador/care-api/internal/middleware"
	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
	"github.com/meucuidador/care-api/internal/repository/memory"
	authService "github.com/meucuidador/care-api/internal/service/auth"
	caregiverService "github.com/meucuidador/care-api/internal/service/caregiver"
	notificationService "github.com/meucuidador/care-api/internal/service/notification"
	"github.com/meucuidador/care-api/pkg/auth"
	membroker "github.com/meucuidador/care-api/pkg/messaging/memory"
	"github.com/meucuidador/care-api/pkg/metrics"
	"github.com/meucuidador/care-api/pkg/security"
	"github.com/meucuidador/care-api/pkg/validator"
)

type userRepo struct {
	users map[string]*model.User
}

func (r *userRepo) Get(_ context.Context, id int64) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

type patientRepo struct {
	patients map[int64]*model.Patient
	links    map[int64][]int64
}

func (r *patientRepo) Get(_ context.Context, id int64) (*model.Patient, error) {
	if p, ok := r.patients[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (r *patientRepo) ListAccessible(_ context.Context, caregiverID int64) ([]*model.Patient, error) {
	var out []*model.Patient
	for _, id := range r.links[caregiverID] {
		out = append(out, r.patients[id])
	}
	return out, nil
}

func (r *patientRepo) SearchAccessible(ctx context.Context, caregiverID int64, query string, _ int) ([]*model.Patient, error) {
	all, _ := r.ListAccessible(ctx, caregiverID)
	var out []*model.Patient
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *patientRepo) HasAccess(_ context.Context, caregiverID, patientID int64) (bool, error) {
	for _, id := range r.links[caregiverID] {
		if id == patientID {
			return true, nil
		}
	}
	return false, nil
}

type notificationRepo struct {
	repository.NotificationRepository
}

func (notificationRepo) List(context.Context, int64, model.Pagination) ([]*model.Notification, error) {
	return []*model.Notification{}, nil
}

func (notificationRepo) Summary(context.Context, int64) (*model.NotificationSummary, error) {
	return &model.NotificationSummary{}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)

	users := &userRepo{users: map[string]*model.User{
		"carla@example.com": {
			Base:         model.Base{ID: 10},
			Name:         "Carla",
			Email:        "carla@example.com",
			PasswordHash: hash,
			ProfileType:  model.ProfileTypeCaregiver,
		},
	}}
	patients := &patientRepo{
		patients: map[int64]*model.Patient{
			1: {ID: 1, Name: "Maria", ProfileType: model.ProfileTypePatient},
			2: {ID: 2, Name: "João", ProfileType: model.ProfileTypePatient},
			3: {ID: 3, Name: "Pedro", ProfileType: model.ProfileTypePatient},
		},
		links: map[int64][]int64{10: {1, 2}},
	}

	promH := prometheus.New("test")
	m := metrics.New("test", promH.Registry())
	broker := membroker.NewBroker()

	authSvc := authService.NewService(users, auth.NewJWTService("test-secret", "test", time.Hour), hasher, logger)
	caregiverSvc := caregiverService.NewService(patients, memory.NewContextRepository(time.Hour, time.Minute), broker, m, time.Minute, logger)
	notifSvc := notificationService.NewService(notificationRepo{}, broker, validator.New(), m, logger)

	r := NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		caregiverSvc,
		Handlers{
			Auth:         authHandler.NewHandler(authSvc),
			Caregiver:    caregiverHandler.NewHandler(caregiverSvc),
			User:         userHandler.NewHandler(caregiverSvc),
			Notification: notificationHandler.NewHandler(notifSvc, m, logger, nil),
			Health:       health.NewHandler(map[string]health.Checker{}),
			Prometheus:   promH,
		},
		RouterConfig{
			Mode:           gin.TestMode,
			CORSConfig:     middleware.DefaultCORSConfig([]string{"http://localhost:3000"}),
			MetricsEnabled: true,
		},
		logger,
	)

	srv := httptest.NewServer(r.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func TestPublicEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	client := api.New(srv.URL)

	_, err := client.ListPatients(context.Background())
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestPatientScopedResponsesAreNotCached(t *testing.T) {
	srv := newTestServer(t)
	client := api.New(srv.URL)
	_, err := client.Login(context.Background(), "carla@example.com", "secret123")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/caregiver/patients", nil)
	req.Header.Set("Authorization", "Bearer "+client.Token())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
	assert.Contains(t, resp.Header.Get("Vary"), "Authorization")
}

func TestSwitchAndClearRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := api.New(srv.URL)

	login, err := client.Login(ctx, "carla@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, int64(10), login.User.ID)

	cache := querycache.New(time.Minute, zerolog.Nop())
	store := patientctx.NewStore(login.User, client, cache, zerolog.Nop())

	p, err := store.Switch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "João", p.Name)

	current, err := client.CurrentContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.EffectivePatientID)

	_, err = store.Switch(ctx, 3)
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, int64(2), store.EffectivePatientID())

	_, err = store.Switch(ctx, 99)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	store.Clear(ctx)
	current, err = client.CurrentContext(ctx)
	require.NoError(t, err)
	assert.Nil(t, current.SelectedPatient)
	assert.Equal(t, int64(10), current.EffectivePatientID)
}

func TestSearchAndNotifications(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := api.New(srv.URL)
	_, err := client.Login(ctx, "carla@example.com", "secret123")
	require.NoError(t, err)

	found, err := client.SearchPatients(ctx, "mar")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(1), found[0].ID)

	page, err := client.ListNotifications(ctx, model.Pagination{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, page.Notifications)
	assert.Equal(t, 20, page.Pagination.Limit)
}
