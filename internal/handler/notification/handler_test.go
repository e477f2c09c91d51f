package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meucuidador/care-api/internal/handler"
	"github.com/meucuidador/care-api/internal/model"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
	"github.com/meucuidador/care-api/pkg/metrics"
)

type mockService struct {
	mu          sync.Mutex
	lastPage    model.Pagination
	lastCreate  *model.CreateNotificationRequest
	markCalls   atomic.Int32
	deleteCalls atomic.Int32
	clearCalls  atomic.Int32
	stream      chan *model.Notification
	userIDs     []int64
}

func (m *mockService) record(userID int64) {
	m.mu.Lock()
	m.userIDs = append(m.userIDs, userID)
	m.mu.Unlock()
}

func (m *mockService) List(_ context.Context, userID int64, page model.Pagination) (*model.NotificationPage, error) {
	m.record(userID)
	m.mu.Lock()
	m.lastPage = page
	m.mu.Unlock()
	return &model.NotificationPage{
		Notifications: []*model.Notification{{ID: 1, UserID: userID, Type: "medication", Title: "Dose", Priority: model.NotificationPriorityHigh}},
		Summary:       model.NotificationSummary{Total: 1, Unread: 1},
		Pagination:    model.NotificationPagination{Limit: 20, Total: 1},
	}, nil
}

func (m *mockService) MarkRead(_ context.Context, userID, id int64) error {
	m.markCalls.Add(1)
	m.record(userID)
	if id != 1 {
		return apperrors.NotFound("notification", nil)
	}
	return nil
}

func (m *mockService) Delete(_ context.Context, userID, _ int64) error {
	m.deleteCalls.Add(1)
	m.record(userID)
	return nil
}

func (m *mockService) ClearRead(_ context.Context, userID int64) (int64, error) {
	m.clearCalls.Add(1)
	m.record(userID)
	return 3, nil
}

func (m *mockService) Create(_ context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	m.mu.Lock()
	m.lastCreate = req
	m.mu.Unlock()
	return &model.Notification{ID: 9, UserID: req.UserID, Title: req.Title}, nil
}

func (m *mockService) Subscribe(_ context.Context, userID int64) (<-chan *model.Notification, error) {
	m.record(userID)
	return m.stream, nil
}

var viewer = model.Viewer{ID: 10, Name: "Carla", ProfileType: model.ProfileTypeCaregiver}

func newRouter(svc *mockService, m *metrics.Metrics, effective int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		handler.SetViewer(c, viewer)
		handler.SetEffectivePatientID(c, effective)
		if effective != viewer.ID {
			c.Set(handler.ContextKeyEffectivePatientName, "Maria")
		}
	})
	NewHandler(svc, m, zerolog.Nop(), nil).RegisterRoutes(api)
	return r
}

func TestList(t *testing.T) {
	svc := &mockService{}
	r := newRouter(svc, metrics.New("test", nil), viewer.ID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications?limit=5&offset=10", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.Pagination{Limit: 5, Offset: 10}, svc.lastPage)
	assert.Contains(t, w.Body.String(), `"summary":{"total":1,"unread":1}`)
	assert.Contains(t, w.Body.String(), `"priority":"high"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkRead(t *testing.T) {
	svc := &mockService{}
	r := newRouter(svc, metrics.New("test", nil), viewer.ID)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/notifications/1/read", http.StatusOK},
		{"/api/notifications/2/read", http.StatusNotFound},
		{"/api/notifications/abc/read", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, tt.path)
	}
	assert.Equal(t, int32(2), svc.markCalls.Load())
}

func TestClearReadIsNotTreatedAsID(t *testing.T) {
	svc := &mockService{}
	r := newRouter(svc, metrics.New("test", nil), viewer.ID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/notifications/clear-read", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","data":{"deleted":3}}`, w.Body.String())
	assert.Equal(t, int32(1), svc.clearCalls.Load())
	assert.Equal(t, int32(0), svc.deleteCalls.Load())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/notifications/5", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), svc.deleteCalls.Load())
}

func TestCreateTargetsEffectivePatient(t *testing.T) {
	svc := &mockService{}
	r := newRouter(svc, metrics.New("test", nil), 2)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications",
		strings.NewReader(`{"type":"medication_update","title":"Dose alterada","message":"Nova dose de losartana","priority":"high"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.lastCreate)
	assert.Equal(t, int64(2), svc.lastCreate.UserID)
	require.NotNil(t, svc.lastCreate.EditorName)
	assert.Equal(t, "Carla", *svc.lastCreate.EditorName)
	require.NotNil(t, svc.lastCreate.PatientName)
	assert.Equal(t, "Maria", *svc.lastCreate.PatientName)
}

func TestNotificationsFollowPatientInView(t *testing.T) {
	svc := &mockService{}
	r := newRouter(svc, metrics.New("test", nil), 2)

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/notifications"},
		{http.MethodPut, "/api/notifications/1/read"},
		{http.MethodDelete, "/api/notifications/1"},
		{http.MethodDelete, "/api/notifications/clear-read"},
	}
	for _, rq := range requests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(rq.method, rq.path, nil))
		require.Equal(t, http.StatusOK, w.Code, rq.path)
	}

	assert.Equal(t, []int64{2, 2, 2, 2}, svc.userIDs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	assert.Contains(t, w.Body.String(), `"userId":2`)
	assert.NotContains(t, w.Body.String(), `"userId":10`)
}

func TestStream(t *testing.T) {
	svc := &mockService{stream: make(chan *model.Notification, 1)}
	m := metrics.New("test", nil)
	srv := httptest.NewServer(newRouter(svc, m, viewer.ID))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	svc.stream <- &model.Notification{ID: 42, UserID: viewer.ID, Title: "Exame pronto"}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "Exame pronto", got.Title)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.meucuidador.com"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.meucuidador.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
