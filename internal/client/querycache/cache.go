// Package querycache holds viewer-side query results keyed by data category
// and effective patient, and purges whole categories when the viewing
// context changes.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type Category string

const (
	Medications       Category = "medications"
	MedicationLogs    Category = "medication-logs"
	MedicationToday   Category = "medication-logs/today"
	MedicationHistory Category = "medication-history"
	Tests             Category = "tests"
	Appointments      Category = "appointments"
	Notifications     Category = "notifications"
	Prescriptions     Category = "prescriptions"
	BloodPressure     Category = "vital-signs/blood-pressure"
	Glucose           Category = "vital-signs/glucose"
	HeartRate         Category = "vital-signs/heart-rate"
	Temperature       Category = "vital-signs/temperature"
	Weight            Category = "vital-signs/weight"

	// Profile is viewer-owned and never purged on a context change.
	Profile Category = "profile"
)

// PatientScoped lists every category whose data belongs to the viewed
// patient. Categories are matched exactly, never by prefix.
var PatientScoped = []Category{
	Medications,
	MedicationLogs,
	MedicationToday,
	MedicationHistory,
	Tests,
	Appointments,
	Notifications,
	Prescriptions,
	BloodPressure,
	Glucose,
	HeartRate,
	Temperature,
	Weight,
}

const DefaultTTL = 5 * time.Minute

// Key identifies one cached query. PatientID is always the effective
// patient the data was fetched for.
type Key struct {
	Category  Category
	PatientID int64
	Params    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%s", k.Category, k.PatientID, k.Params)
}

func categoryOf(key string) Category {
	if i := strings.IndexByte(key, '|'); i >= 0 {
		return Category(key[:i])
	}
	return Category(key)
}

type FetchFunc func(ctx context.Context) (interface{}, error)

// Cache memoizes query results per Key and collapses concurrent fetches.
type Cache struct {
	store  *gocache.Cache
	group  singleflight.Group
	logger zerolog.Logger

	mu     sync.Mutex
	epochs map[Category]uint64
	subs   map[int]chan []Category
	nextID int
}

// New returns an empty Cache whose entries expire after ttl.
func New(ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:  gocache.New(ttl, 2*ttl),
		logger: logger,
		epochs: make(map[Category]uint64),
		subs:   make(map[int]chan []Category),
	}
}

// Get returns the cached value for key or runs fetch. Concurrent fetches of
// the same key share one call. A result whose category was invalidated
// while the fetch was running is returned to the caller but not stored.
func (c *Cache) Get(ctx context.Context, key Key, fetch FetchFunc) (interface{}, error) {
	k := key.String()
	if v, ok := c.store.Get(k); ok {
		return v, nil
	}

	c.mu.Lock()
	epoch := c.epochs[key.Category]
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%s#%d", k, epoch), func() (interface{}, error) {
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epochs[key.Category] == epoch {
			c.store.Set(k, val, gocache.DefaultExpiration)
		} else {
			c.logger.Debug().Str("key", k).Msg("discarding result fetched before invalidation")
		}
		return val, nil
	})
	return v, err
}

// Fetch is the typed form of Get.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cached value for %s has type %T", key, v)
	}
	return t, nil
}

// Invalidate removes every entry in the given categories for all patients,
// bumps their epochs and notifies subscribers. It returns the number of
// entries removed.
func (c *Cache) Invalidate(categories ...Category) int {
	if len(categories) == 0 {
		return 0
	}
	set := make(map[Category]struct{}, len(categories))
	for _, cat := range categories {
		set[cat] = struct{}{}
	}

	c.mu.Lock()
	removed := 0
	for k := range c.store.Items() {
		if _, ok := set[categoryOf(k)]; ok {
			c.store.Delete(k)
			removed++
		}
	}
	for cat := range set {
		c.epochs[cat]++
	}
	subs := make([]chan []Category, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	notice := append([]Category(nil), categories...)
	for _, ch := range subs {
		select {
		case ch <- notice:
		default:
		}
	}

	c.logger.Debug().Int("removed", removed).Int("categories", len(set)).Msg("cache invalidated")
	return removed
}

// Subscribe returns a channel that receives the category list of each
// invalidation. Slow readers miss notices rather than block Invalidate.
func (c *Cache) Subscribe() (<-chan []Category, func()) {
	ch := make(chan []Category, 1)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Flush drops every entry, patient-scoped or not.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.store.Flush()
	for cat := range c.epochs {
		c.epochs[cat]++
	}
	c.mu.Unlock()
}
