package notifpanel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meucuidador/care-api/internal/client/querycache"
	"github.com/meucuidador/care-api/internal/model"
)

type mockRemote struct {
	listCalls atomic.Int32
	page      *model.NotificationPage
	markFn    func(ctx context.Context, id int64) error
	deleteErr error
	clearErr  error
}

func (m *mockRemote) ListNotifications(_ context.Context, page model.Pagination) (*model.NotificationPage, error) {
	m.listCalls.Add(1)
	if page.Limit != DefaultLimit {
		return nil, errors.New("unexpected limit")
	}
	return m.page, nil
}

func (m *mockRemote) MarkNotificationRead(ctx context.Context, id int64) error {
	if m.markFn != nil {
		return m.markFn(ctx, id)
	}
	return nil
}

func (m *mockRemote) DeleteNotification(context.Context, int64) error { return m.deleteErr }

func (m *mockRemote) ClearReadNotifications(context.Context) error { return m.clearErr }

type fixedPatient int64

func (f fixedPatient) EffectivePatientID() int64 { return int64(f) }

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func samplePage() *model.NotificationPage {
	return &model.NotificationPage{
		Notifications: []*model.Notification{
			{ID: 1, Type: "medication_edited", Priority: model.NotificationPriorityLow, CreatedAt: base},
			{ID: 2, Type: "test.completed", Priority: model.NotificationPriorityHigh, CreatedAt: base.Add(-time.Hour)},
			{ID: 3, Type: "appointment_reminder", Priority: model.NotificationPriorityNormal, CreatedAt: base.Add(time.Hour), IsRead: true},
			{ID: 4, Type: "vital_alert", Priority: model.NotificationPriorityHigh, CreatedAt: base},
		},
		Summary: model.NotificationSummary{Total: 4, Unread: 3},
	}
}

func newPanel(remote *mockRemote) (*Panel, *querycache.Cache) {
	cache := querycache.New(time.Minute, zerolog.Nop())
	return New(remote, cache, fixedPatient(10), zerolog.Nop()), cache
}

func TestRefreshUsesCache(t *testing.T) {
	remote := &mockRemote{page: samplePage()}
	p, cache := newPanel(remote)

	require.NoError(t, p.Refresh(context.Background()))
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, int32(1), remote.listCalls.Load())
	assert.Len(t, p.Notifications(), 4)

	cache.Invalidate(querycache.PatientScoped...)
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, int32(2), remote.listCalls.Load())
}

func TestNotificationsOrderedByPriorityThenNewest(t *testing.T) {
	p, _ := newPanel(&mockRemote{page: samplePage()})
	require.NoError(t, p.Refresh(context.Background()))

	var ids []int64
	for _, n := range p.Notifications() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int64{4, 2, 3, 1}, ids)
}

func TestUnreadCountIsAtLeastLocal(t *testing.T) {
	page := samplePage()
	page.Summary.Unread = 0
	p, _ := newPanel(&mockRemote{page: page})
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 3, p.UnreadCount())

	page2 := samplePage()
	page2.Summary.Unread = 12
	p2, _ := newPanel(&mockRemote{page: page2})
	require.NoError(t, p2.Refresh(context.Background()))
	assert.Equal(t, 12, p2.UnreadCount())
}

func TestCategory(t *testing.T) {
	tests := map[string]string{
		"medication_edited":    CategoryMedication,
		"medications.added":    CategoryMedication,
		"test_completed":       CategoryTest,
		"appointment.reminder": CategoryAppointment,
		"vital_alert":          CategoryVital,
		"prescription_expired": CategoryPrescription,
		"system":               CategoryGeneral,
		"":                     CategoryGeneral,
	}
	for typ, want := range tests {
		assert.Equal(t, want, Category(model.Notification{Type: typ}), typ)
	}
}

func TestMarkReadUpdatesStateAndInvalidates(t *testing.T) {
	remote := &mockRemote{page: samplePage()}
	p, _ := newPanel(remote)
	require.NoError(t, p.Refresh(context.Background()))

	require.NoError(t, p.MarkRead(context.Background(), 1))
	assert.Equal(t, 2, p.UnreadCount())
	assert.Equal(t, 2, p.Summary().Unread)

	// Already read: no further decrement.
	require.NoError(t, p.MarkRead(context.Background(), 1))
	assert.Equal(t, 2, p.Summary().Unread)

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, int32(2), remote.listCalls.Load())
}

func TestMarkReadPendingGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	remote := &mockRemote{page: samplePage(), markFn: func(_ context.Context, id int64) error {
		if id == 1 {
			close(entered)
			<-release
		}
		return nil
	}}
	p, _ := newPanel(remote)
	require.NoError(t, p.Refresh(context.Background()))

	done := make(chan error, 1)
	go func() { done <- p.MarkRead(context.Background(), 1) }()
	<-entered

	assert.True(t, p.IsPending(1))
	assert.ErrorIs(t, p.MarkRead(context.Background(), 1), ErrMarkInProgress)
	assert.NoError(t, p.MarkRead(context.Background(), 2))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, p.IsPending(1))
}

func TestMarkReadFailureLeavesItemUnread(t *testing.T) {
	remote := &mockRemote{page: samplePage(), markFn: func(context.Context, int64) error {
		return errors.New("offline")
	}}
	p, _ := newPanel(remote)
	require.NoError(t, p.Refresh(context.Background()))

	assert.Error(t, p.MarkRead(context.Background(), 1))
	assert.False(t, p.IsPending(1))
	assert.Equal(t, 3, p.UnreadCount())
}

func TestMarkAllReadStopsAtFirstError(t *testing.T) {
	remote := &mockRemote{page: samplePage()}
	p, _ := newPanel(remote)
	require.NoError(t, p.Refresh(context.Background()))

	calls := 0
	remote.markFn = func(context.Context, int64) error {
		calls++
		if calls == 2 {
			return errors.New("offline")
		}
		return nil
	}
	marked, err := p.MarkAllRead(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, marked)
	assert.Equal(t, 2, p.UnreadCount())

	remote.markFn = nil
	marked, err = p.MarkAllRead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	assert.Equal(t, 0, p.UnreadCount())
}

func TestDeleteAndClearRead(t *testing.T) {
	remote := &mockRemote{page: samplePage()}
	p, _ := newPanel(remote)
	require.NoError(t, p.Refresh(context.Background()))

	require.NoError(t, p.Delete(context.Background(), 2))
	assert.Len(t, p.Notifications(), 3)
	assert.Equal(t, model.NotificationSummary{Total: 3, Unread: 2}, p.Summary())

	require.NoError(t, p.ClearRead(context.Background()))
	assert.Len(t, p.Notifications(), 2)
	assert.Equal(t, 2, p.Summary().Total)

	remote.deleteErr = errors.New("gone")
	assert.Error(t, p.Delete(context.Background(), 1))
	assert.Len(t, p.Notifications(), 2)
}

func TestListenAppliesPushedNotifications(t *testing.T) {
	p, _ := newPanel(&mockRemote{page: samplePage()})
	require.NoError(t, p.Refresh(context.Background()))

	updates := make(chan *model.Notification, 3)
	updates <- &model.Notification{ID: 9, Type: "medication_added", CreatedAt: base.Add(2 * time.Hour)}
	updates <- &model.Notification{ID: 9, Type: "medication_added"}
	updates <- &model.Notification{ID: 1}
	close(updates)

	p.Listen(context.Background(), updates)
	assert.Len(t, p.Notifications(), 5)
	assert.Equal(t, 4, p.UnreadCount())
}

func TestWatchRefreshesOnInvalidation(t *testing.T) {
	remote := &mockRemote{page: samplePage()}
	p, cache := newPanel(remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Watch(ctx)
	time.Sleep(20 * time.Millisecond)

	cache.Invalidate(querycache.Profile)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), remote.listCalls.Load())
	cache.Invalidate(querycache.Notifications)

	assert.Eventually(t, func() bool {
		return remote.listCalls.Load() == 1 && len(p.Notifications()) == 4
	}, time.Second, 10*time.Millisecond)
}
