package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramwatch/internal/models"
	"ramwatch/internal/transport"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// fakeTransport counts calls and fails a configurable number of times per
// page before succeeding.
type fakeTransport struct {
	failures  int32
	fetches   int32
	rotations int32
}

func (f *fakeTransport) FetchPage(ctx context.Context, page int) ([]models.RawListing, error) {
	n := atomic.AddInt32(&f.fetches, 1)
	if n <= atomic.LoadInt32(&f.failures) {
		return nil, errors.New("blocked")
	}
	return []models.RawListing{{AdID: "1"}}, nil
}

func (f *fakeTransport) RotateSession() {
	atomic.AddInt32(&f.rotations, 1)
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
	}
}

func TestResilientTransport_RetriesUntilSuccess(t *testing.T) {
	inner := &fakeTransport{failures: 2}
	rt := NewResilientTransport(inner, fastRetryConfig(), testLogger())

	listings, err := rt.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, int32(3), inner.fetches)
	// Each retry starts from a fresh session.
	assert.Equal(t, int32(2), inner.rotations)
}

func TestResilientTransport_ExhaustsRetries(t *testing.T) {
	inner := &fakeTransport{failures: 100}
	rt := NewResilientTransport(inner, fastRetryConfig(), testLogger())

	_, err := rt.FetchPage(context.Background(), 4)
	require.Error(t, err)

	var fetchErr *transport.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 4, fetchErr.Page)
	// MaxRetries is the total attempt budget.
	assert.Equal(t, int32(3), inner.fetches)
}

// Exactly MaxRetries consecutive failures must exhaust the budget: the page
// is given up, not granted an extra attempt that would have succeeded.
func TestResilientTransport_NoExtraAttemptAfterBudget(t *testing.T) {
	inner := &fakeTransport{failures: 3}
	rt := NewResilientTransport(inner, fastRetryConfig(), testLogger())

	_, err := rt.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(3), inner.fetches)
}

func TestResilientTransport_RotatesEveryN(t *testing.T) {
	inner := &fakeTransport{}
	cfg := fastRetryConfig()
	cfg.RotateEvery = 3
	rt := NewResilientTransport(inner, cfg, testLogger())

	for i := 0; i < 7; i++ {
		_, err := rt.FetchPage(context.Background(), 1)
		require.NoError(t, err)
	}

	// Rotations at request 3 and 6.
	assert.Equal(t, int32(2), inner.rotations)
}

func TestResilientTransport_CancelledDuringBackoff(t *testing.T) {
	inner := &fakeTransport{failures: 100}
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}
	rt := NewResilientTransport(inner, cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := rt.FetchPage(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

// hookedTransport reports on a channel from inside FetchPage so a test can
// observe the loop state mid-fetch.
type hookedTransport struct {
	inFetch chan struct{}
	release chan struct{}
}

func (h *hookedTransport) FetchPage(ctx context.Context, page int) ([]models.RawListing, error) {
	h.inFetch <- struct{}{}
	<-h.release
	return nil, nil
}

func (h *hookedTransport) RotateSession() {}

type transportCycler struct {
	rt *ResilientTransport
}

func (c *transportCycler) RunCycle(ctx context.Context) models.ScanStats {
	c.rt.FetchPage(ctx, 1)
	return models.NewScanStats()
}

// During a page fetch the loop reports Fetching; once the fetch returns the
// rest of the cycle reports Processing.
func TestRunner_StateTracksFetchPhase(t *testing.T) {
	inner := &hookedTransport{
		inFetch: make(chan struct{}),
		release: make(chan struct{}),
	}
	rt := NewResilientTransport(inner, RetryConfig{MaxRetries: 1}, testLogger())
	r := NewRunner(&transportCycler{rt: rt}, time.Hour, testLogger())
	rt.AttachRunner(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	<-inner.inFetch
	assert.Equal(t, StateFetching, r.State())
	close(inner.release)

	assert.Eventually(t, func() bool {
		return r.State() == StateSleeping
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

// fakeCycler runs a fixed stats result and counts cycles.
type fakeCycler struct {
	cycles int32
}

func (f *fakeCycler) RunCycle(ctx context.Context) models.ScanStats {
	atomic.AddInt32(&f.cycles, 1)
	stats := models.NewScanStats()
	stats.Fetched = 5
	stats.NewStored = 1
	return stats
}

func TestRunner_RunsCyclesAndAccumulates(t *testing.T) {
	cycler := &fakeCycler{}
	r := NewRunner(cycler, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&cycler.cycles) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancellation")
	}

	assert.Equal(t, StateIdle, r.State())
	totals := r.Totals()
	assert.GreaterOrEqual(t, totals.Fetched, 15)
	assert.GreaterOrEqual(t, totals.NewStored, 3)
}

// Cancellation during the inter-cycle sleep must not wait out the interval.
func TestRunner_PromptShutdownDuringSleep(t *testing.T) {
	cycler := &fakeCycler{}
	r := NewRunner(cycler, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return r.State() == StateSleeping
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop promptly while sleeping")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&cycler.cycles))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "processing", StateProcessing.String())
	assert.Equal(t, "sleeping", StateSleeping.String())
}
