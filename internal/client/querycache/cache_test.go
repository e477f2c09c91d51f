package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(v string) FetchFunc {
	return func(context.Context) (interface{}, error) { return v, nil }
}

func seed(t *testing.T, c *Cache, keys ...Key) {
	t.Helper()
	for _, k := range keys {
		_, err := c.Get(context.Background(), k, value(k.String()))
		require.NoError(t, err)
	}
}

func TestGetCachesPerPatient(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	var calls atomic.Int32
	fetch := func(context.Context) (interface{}, error) {
		calls.Add(1)
		return "meds", nil
	}

	ctx := context.Background()
	_, err := c.Get(ctx, Key{Category: Medications, PatientID: 1}, fetch)
	require.NoError(t, err)
	_, err = c.Get(ctx, Key{Category: Medications, PatientID: 1}, fetch)
	require.NoError(t, err)
	_, err = c.Get(ctx, Key{Category: Medications, PatientID: 2}, fetch)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	boom := errors.New("boom")

	_, err := c.Get(context.Background(), Key{Category: Tests}, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestInvalidatePurgesOnlyListedCategories(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	seed(t, c,
		Key{Category: Medications, PatientID: 1},
		Key{Category: Medications, PatientID: 2},
		Key{Category: MedicationToday, PatientID: 1},
		Key{Category: BloodPressure, PatientID: 1, Params: "days=7"},
		Key{Category: Profile, PatientID: 10},
	)

	removed := c.Invalidate(PatientScoped...)
	assert.Equal(t, 4, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.store.Get(Key{Category: Profile, PatientID: 10}.String())
	assert.True(t, ok)
}

func TestInvalidateMatchesExactly(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	seed(t, c,
		Key{Category: MedicationLogs, PatientID: 1},
		Key{Category: MedicationToday, PatientID: 1},
	)

	assert.Equal(t, 1, c.Invalidate(MedicationLogs))
	_, ok := c.store.Get(Key{Category: MedicationToday, PatientID: 1}.String())
	assert.True(t, ok)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	seed(t, c, Key{Category: Notifications, PatientID: 1}, Key{Category: Profile, PatientID: 1})

	assert.Equal(t, 1, c.Invalidate(PatientScoped...))
	assert.Equal(t, 0, c.Invalidate(PatientScoped...))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Invalidate())
}

func TestSubscribeReceivesInvalidations(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	ch, cancel := c.Subscribe()
	defer cancel()

	c.Invalidate(Notifications)

	select {
	case got := <-ch:
		assert.Equal(t, []Category{Notifications}, got)
	case <-time.After(time.Second):
		t.Fatal("no invalidation notice")
	}

	// A full buffer drops the notice instead of blocking.
	c.Invalidate(Tests)
	c.Invalidate(Appointments)

	cancel()
	c.Invalidate(Weight)
	assert.Len(t, ch, 1)
}

func TestFetchStartedBeforeInvalidationIsNotStored(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	key := Key{Category: Appointments, PatientID: 1}
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := c.Get(context.Background(), key, func(context.Context) (interface{}, error) {
			close(started)
			<-release
			return "stale", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "stale", v)
	}()

	<-started
	c.Invalidate(Appointments)
	close(release)
	wg.Wait()

	assert.Equal(t, 0, c.Len())
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	key := Key{Category: Prescriptions, PatientID: 3}
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), key, func(context.Context) (interface{}, error) {
				calls.Add(1)
				<-release
				return "rx", nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchTyped(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	key := Key{Category: Glucose, PatientID: 1}

	got, err := Fetch(context.Background(), c, key, func(context.Context) ([]int, error) {
		return []int{98, 110}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{98, 110}, got)

	_, err = Fetch(context.Background(), c, key, func(context.Context) (string, error) {
		return "", nil
	})
	assert.Error(t, err)
}

func TestFlushDropsEverything(t *testing.T) {
	c := New(time.Minute, zerolog.Nop())
	seed(t, c, Key{Category: Profile, PatientID: 1}, Key{Category: Tests, PatientID: 1})

	c.Flush()
	assert.Equal(t, 0, c.Len())
}
