// Package notifpanel keeps the viewer's notification list, unread badge and
// read bookkeeping.
package notifpanel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/client/querycache"
	"github.com/meucuidador/care-api/internal/model"
)

var ErrMarkInProgress = errors.New("notification is already being marked as read")

const DefaultLimit = 20

const (
	CategoryMedication   = "medication"
	CategoryTest         = "test"
	CategoryAppointment  = "appointment"
	CategoryVital        = "vital"
	CategoryPrescription = "prescription"
	CategoryGeneral      = "general"
)

type Remote interface {
	ListNotifications(ctx context.Context, page model.Pagination) (*model.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	DeleteNotification(ctx context.Context, id int64) error
	ClearReadNotifications(ctx context.Context) error
}

type PatientResolver interface {
	EffectivePatientID() int64
}

type Panel struct {
	remote  Remote
	cache   *querycache.Cache
	patient PatientResolver
	limit   int
	logger  zerolog.Logger

	mu      sync.Mutex
	items   []*model.Notification
	summary model.NotificationSummary
	pending map[int64]bool
}

func New(remote Remote, cache *querycache.Cache, patient PatientResolver, logger zerolog.Logger) *Panel {
	return &Panel{
		remote:  remote,
		cache:   cache,
		patient: patient,
		limit:   DefaultLimit,
		logger:  logger.With().Str("component", "notification_panel").Logger(),
		pending: make(map[int64]bool),
	}
}

// Refresh loads the first page through the query cache, keyed by the
// effective patient.
func (p *Panel) Refresh(ctx context.Context) error {
	key := querycache.Key{
		Category:  querycache.Notifications,
		PatientID: p.patient.EffectivePatientID(),
		Params:    "limit=" + strconv.Itoa(p.limit),
	}
	page, err := querycache.Fetch(ctx, p.cache, key, func(ctx context.Context) (*model.NotificationPage, error) {
		return p.remote.ListNotifications(ctx, model.Pagination{Limit: p.limit})
	})
	if err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}

	// Cached pages are shared, so the panel works on its own copies.
	items := make([]*model.Notification, 0, len(page.Notifications))
	for _, n := range page.Notifications {
		if n == nil {
			continue
		}
		cp := *n
		items = append(items, &cp)
	}

	p.mu.Lock()
	p.items = items
	p.summary = page.Summary
	p.mu.Unlock()
	return nil
}

// Watch refreshes whenever the notifications category is invalidated, until
// ctx is done.
func (p *Panel) Watch(ctx context.Context) {
	ch, cancel := p.cache.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case cats := <-ch:
			if !containsCategory(cats, querycache.Notifications) {
				continue
			}
			if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn().Err(err).Msg("notification refresh failed")
			}
		}
	}
}

func containsCategory(cats []querycache.Category, want querycache.Category) bool {
	for _, c := range cats {
		if c == want {
			return true
		}
	}
	return false
}

// UnreadCount never reports fewer than the unread items actually loaded.
func (p *Panel) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	local := 0
	for _, n := range p.items {
		if !n.IsRead {
			local++
		}
	}
	if p.summary.Unread > local {
		return p.summary.Unread
	}
	return local
}

func (p *Panel) Summary() model.NotificationSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// Notifications returns copies ordered by priority, newest first within a
// priority.
func (p *Panel) Notifications() []model.Notification {
	p.mu.Lock()
	out := make([]model.Notification, 0, len(p.items))
	for _, n := range p.items {
		out = append(out, *n)
	}
	p.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Category groups a notification by the first segment of its type.
func Category(n model.Notification) string {
	t := strings.ToLower(strings.TrimSpace(n.Type))
	if i := strings.IndexAny(t, "._"); i >= 0 {
		t = t[:i]
	}
	switch strings.TrimSuffix(t, "s") {
	case CategoryMedication:
		return CategoryMedication
	case CategoryTest:
		return CategoryTest
	case CategoryAppointment:
		return CategoryAppointment
	case CategoryVital:
		return CategoryVital
	case CategoryPrescription:
		return CategoryPrescription
	default:
		return CategoryGeneral
	}
}

func (p *Panel) IsPending(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[id]
}

// MarkRead marks one notification read. Marking never flips a read item
// back to unread.
func (p *Panel) MarkRead(ctx context.Context, id int64) error {
	p.mu.Lock()
	if p.pending[id] {
		p.mu.Unlock()
		return ErrMarkInProgress
	}
	p.pending[id] = true
	p.mu.Unlock()

	err := p.remote.MarkNotificationRead(ctx, id)

	p.mu.Lock()
	delete(p.pending, id)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to mark notification %d read: %w", id, err)
	}
	for _, n := range p.items {
		if n.ID == id && !n.IsRead {
			n.IsRead = true
			if p.summary.Unread > 0 {
				p.summary.Unread--
			}
			break
		}
	}
	p.mu.Unlock()

	p.cache.Invalidate(querycache.Notifications)
	return nil
}

// MarkAllRead marks the loaded unread notifications one at a time and stops
// at the first failure.
func (p *Panel) MarkAllRead(ctx context.Context) (int, error) {
	p.mu.Lock()
	var ids []int64
	for _, n := range p.items {
		if !n.IsRead {
			ids = append(ids, n.ID)
		}
	}
	p.mu.Unlock()

	marked := 0
	for _, id := range ids {
		if err := p.MarkRead(ctx, id); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

func (p *Panel) Delete(ctx context.Context, id int64) error {
	if err := p.remote.DeleteNotification(ctx, id); err != nil {
		return fmt.Errorf("failed to delete notification %d: %w", id, err)
	}

	p.mu.Lock()
	for i, n := range p.items {
		if n.ID != id {
			continue
		}
		if !n.IsRead && p.summary.Unread > 0 {
			p.summary.Unread--
		}
		if p.summary.Total > 0 {
			p.summary.Total--
		}
		p.items = append(p.items[:i], p.items[i+1:]...)
		break
	}
	p.mu.Unlock()

	p.cache.Invalidate(querycache.Notifications)
	return nil
}

func (p *Panel) ClearRead(ctx context.Context) error {
	if err := p.remote.ClearReadNotifications(ctx); err != nil {
		return fmt.Errorf("failed to clear read notifications: %w", err)
	}

	p.mu.Lock()
	kept := p.items[:0]
	for _, n := range p.items {
		if n.IsRead {
			if p.summary.Total > 0 {
				p.summary.Total--
			}
			continue
		}
		kept = append(kept, n)
	}
	p.items = kept
	p.mu.Unlock()

	p.cache.Invalidate(querycache.Notifications)
	return nil
}

// Listen applies pushed notifications until the channel closes or ctx is
// done. Already known ids are ignored.
func (p *Panel) Listen(ctx context.Context, updates <-chan *model.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-updates:
			if !ok {
				return
			}
			if n != nil {
				p.apply(*n)
			}
		}
	}
}

func (p *Panel) apply(n model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.items {
		if existing.ID == n.ID {
			return
		}
	}
	p.items = append([]*model.Notification{&n}, p.items...)
	p.summary.Total++
	if !n.IsRead {
		p.summary.Unread++
	}
	p.logger.Debug().Int64("id", n.ID).Str("type", n.Type).Msg("notification received")
}
