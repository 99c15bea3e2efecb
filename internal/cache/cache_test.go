package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
	"github.com/i474232898/agri-evidence-aggregation/internal/observability"
)

var andong = evidence.Identity{Lat: 36.568, Lon: 128.729, AreaCode: "11H10000", CropCode: "FT010601"}

func newTestCache(t *testing.T, clock clockwork.Clock) *Cache {
	t.Helper()
	c, err := New(Config{
		TTL: map[evidence.SourceName]time.Duration{
			evidence.SourceWeatherAgency:   2 * time.Hour,
			evidence.SourceNumericForecast: 3 * time.Hour,
			evidence.SourcePestBulletin:    12 * time.Hour,
		},
		MaxEntries: 16,
	}, clock, observability.NewMetricsForTesting())
	require.NoError(t, err)
	return c
}

type countingFetch struct {
	calls   atomic.Int32
	payload evidence.SourcePayload
	err     error
}

func (f *countingFetch) fetch(context.Context) (evidence.SourcePayload, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func TestGetOrFetch_HitWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 29, 9, 0, 0, 0, evidence.KST))
	c := newTestCache(t, clock)
	f := &countingFetch{payload: evidence.OpenMeteoPayload{IssuedAt: clock.Now()}}

	_, outcome, err := c.GetOrFetch(context.Background(), evidence.SourceNumericForecast, andong, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, evidence.FetchOK, outcome)

	clock.Advance(2*time.Hour + 59*time.Minute)
	p, outcome, err := c.GetOrFetch(context.Background(), evidence.SourceNumericForecast, andong, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, evidence.FetchCacheHit, outcome)
	assert.Equal(t, f.payload, p)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestGetOrFetch_ExpiredEntryRefetches(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 29, 9, 0, 0, 0, evidence.KST))
	c := newTestCache(t, clock)
	f := &countingFetch{payload: evidence.KMAPayload{IssuedAt: clock.Now()}}

	_, _, err := c.GetOrFetch(context.Background(), evidence.SourceWeatherAgency, andong, f.fetch)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, outcome, err := c.GetOrFetch(context.Background(), evidence.SourceWeatherAgency, andong, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, evidence.FetchOK, outcome)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestGetOrFetch_StaleEntryNotServedOnFailure(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 29, 9, 0, 0, 0, evidence.KST))
	c := newTestCache(t, clock)
	good := &countingFetch{payload: evidence.NPMSPayload{IssuedAt: clock.Now(), ModelsOK: true}}
	_, _, err := c.GetOrFetch(context.Background(), evidence.SourcePestBulletin, andong, good.fetch)
	require.NoError(t, err)

	clock.Advance(13 * time.Hour)
	bad := &countingFetch{err: errors.New("connection reset")}
	p, outcome, err := c.GetOrFetch(context.Background(), evidence.SourcePestBulletin, andong, bad.fetch)

	require.Error(t, err)
	assert.Nil(t, p)
	assert.Equal(t, evidence.FetchUnavailable, outcome)
	var sue *evidence.SourceUnavailableError
	require.ErrorAs(t, err, &sue)
	assert.Equal(t, evidence.SourcePestBulletin, sue.Source)
	assert.Equal(t, 0, c.Len())
}

func TestGetOrFetch_FailureIsNotCached(t *testing.T) {
	c := newTestCache(t, clockwork.NewFakeClock())
	bad := &countingFetch{err: errors.New("timeout")}

	_, _, err := c.GetOrFetch(context.Background(), evidence.SourceWeatherAgency, andong, bad.fetch)
	require.Error(t, err)
	_, _, err = c.GetOrFetch(context.Background(), evidence.SourceWeatherAgency, andong, bad.fetch)
	require.Error(t, err)
	assert.Equal(t, int32(2), bad.calls.Load())
}

func TestGetOrFetch_KeysAreSourceScoped(t *testing.T) {
	c := newTestCache(t, clockwork.NewFakeClock())
	kma := &countingFetch{payload: evidence.KMAPayload{}}
	om := &countingFetch{payload: evidence.OpenMeteoPayload{}}

	_, _, err := c.GetOrFetch(context.Background(), evidence.SourceWeatherAgency, andong, kma.fetch)
	require.NoError(t, err)
	_, outcome, err := c.GetOrFetch(context.Background(), evidence.SourceNumericForecast, andong, om.fetch)
	require.NoError(t, err)
	assert.Equal(t, evidence.FetchOK, outcome)

	other := andong
	other.CropCode = "VC011205"
	_, outcome, err = c.GetOrFetch(context.Background(), evidence.SourceWeatherAgency, other, kma.fetch)
	require.NoError(t, err)
	assert.Equal(t, evidence.FetchOK, outcome)
	assert.Equal(t, int32(2), kma.calls.Load())
}

func TestGetOrFetch_SingleFlight(t *testing.T) {
	c := newTestCache(t, clockwork.NewFakeClock())
	release := make(chan struct{})
	var calls atomic.Int32
	payload := evidence.OpenMeteoPayload{Timezone: "Asia/Seoul"}
	fetch := func(context.Context) (evidence.SourcePayload, error) {
		calls.Add(1)
		<-release
		return payload, nil
	}

	const callers = 20
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make([]evidence.SourcePayload, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], _, errs[i] = c.GetOrFetch(context.Background(), evidence.SourceNumericForecast, andong, fetch)
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, payload, results[i])
	}
}

func TestGetOrFetch_CallerCancelLetsFetchFinish(t *testing.T) {
	c := newTestCache(t, clockwork.NewFakeClock())
	release := make(chan struct{})
	done := make(chan struct{})
	fetch := func(ctx context.Context) (evidence.SourcePayload, error) {
		defer close(done)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return evidence.KMAPayload{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrFetch(ctx, evidence.SourceWeatherAgency, andong, fetch)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	_, outcome, err := c.GetOrFetch(context.Background(), evidence.SourceWeatherAgency, andong, fetch)
	require.NoError(t, err)
	assert.Equal(t, evidence.FetchCacheHit, outcome)
}

func TestNew_RejectsNonPositiveTTL(t *testing.T) {
	_, err := New(Config{TTL: map[evidence.SourceName]time.Duration{evidence.SourcePestBulletin: 0}}, nil, nil)
	require.ErrorIs(t, err, ErrNoTTL)
}

func TestExpiry_KeepsEntryStoredByConcurrentFlight(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 29, 9, 0, 0, 0, evidence.KST))
	c := newTestCache(t, clock)
	k := key(evidence.SourceWeatherAgency, andong)

	c.store(k, evidence.KMAPayload{IssuedAt: clock.Now()})
	old, ok := c.entries.Peek(k)
	require.True(t, ok)

	clock.Advance(2 * time.Hour)
	fresh := evidence.KMAPayload{IssuedAt: clock.Now()}
	c.store(k, fresh)
	c.removeIfUnchanged(k, old.storedAt)

	p, ok := c.peek(k, evidence.SourceWeatherAgency)
	require.True(t, ok)
	assert.Equal(t, fresh, p)
}

func TestExpiry_RemovesUnchangedEntry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 29, 9, 0, 0, 0, evidence.KST))
	c := newTestCache(t, clock)
	k := key(evidence.SourceWeatherAgency, andong)
	c.store(k, evidence.KMAPayload{IssuedAt: clock.Now()})

	clock.Advance(2 * time.Hour)
	_, ok := c.peek(k, evidence.SourceWeatherAgency)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
