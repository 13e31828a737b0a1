// Package runner drives the scan loop: one cycle per interval with jittered
// pacing, retry with exponential backoff around the transport, periodic
// session rotation and a clean shutdown on context cancellation.
package runner

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ramwatch/internal/models"
	"ramwatch/internal/transport"
)

// State is the runner's externally visible phase.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// RetryConfig controls the per-page retry behaviour of ResilientTransport.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration

	// Jittered pause before each request, drawn from [DelayMin, DelayMax].
	DelayMin time.Duration
	DelayMax time.Duration

	// RotateEvery forces a fresh session identity after this many requests.
	// Zero disables rotation.
	RotateEvery int
}

// ResilientTransport wraps a Transport with retry, request pacing and
// periodic session rotation. It satisfies transport.Transport itself, so the
// scan cycle stays unaware of the resilience layer.
type ResilientTransport struct {
	logger *logrus.Logger
	inner  transport.Transport
	cfg    RetryConfig

	mu       sync.Mutex
	requests int
	loop     *Runner
}

func NewResilientTransport(inner transport.Transport, cfg RetryConfig, logger *logrus.Logger) *ResilientTransport {
	return &ResilientTransport{
		logger: logger,
		inner:  inner,
		cfg:    cfg,
	}
}

// FetchPage paces, rotates when due and retries transient failures with
// exponential backoff. MaxRetries is the total attempt budget; once the last
// attempt fails the error is returned and the page is skipped.
func (r *ResilientTransport) FetchPage(ctx context.Context, page int) ([]models.RawListing, error) {
	if err := r.pace(ctx); err != nil {
		return nil, err
	}
	r.countRequest()

	r.mu.Lock()
	loop := r.loop
	r.mu.Unlock()
	if loop != nil {
		loop.setState(StateFetching)
		defer loop.setState(StateProcessing)
	}

	attempts := r.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			// 1x, 2x, 4x base delay between attempts.
			backoff := r.cfg.BaseDelay * time.Duration(1<<(attempt-1))
			r.logger.WithFields(logrus.Fields{
				"page":    page,
				"attempt": attempt,
				"backoff": backoff.String(),
			}).Warn("Retrying page fetch")
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			// A fresh identity often clears anti-bot blocks.
			r.inner.RotateSession()
		}

		listings, err := r.inner.FetchPage(ctx, page)
		if err == nil {
			return listings, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, &transport.FetchError{Page: page, Err: lastErr}
}

// RotateSession forwards to the wrapped transport.
func (r *ResilientTransport) RotateSession() {
	r.inner.RotateSession()
}

// AttachRunner lets the transport report fetch-phase transitions to the
// loop, so State distinguishes page fetches from listing processing.
func (r *ResilientTransport) AttachRunner(loop *Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loop = loop
}

// pace sleeps a random duration within the configured delay window.
func (r *ResilientTransport) pace(ctx context.Context) error {
	if r.cfg.DelayMax <= 0 {
		return nil
	}
	delay := r.cfg.DelayMin
	if spread := r.cfg.DelayMax - r.cfg.DelayMin; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	return sleepCtx(ctx, delay)
}

func (r *ResilientTransport) countRequest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	if r.cfg.RotateEvery > 0 && r.requests%r.cfg.RotateEvery == 0 {
		r.logger.WithField("requests", r.requests).Info("Rotating session identity")
		r.inner.RotateSession()
	}
}

// Cycler runs one scan cycle. Implemented by scanner.Scanner.
type Cycler interface {
	RunCycle(ctx context.Context) models.ScanStats
}

// Runner repeats scan cycles at a fixed interval until the context is
// cancelled. It keeps running totals and exposes its current state.
type Runner struct {
	logger   *logrus.Logger
	cycler   Cycler
	interval time.Duration

	mu    sync.Mutex
	state State
	total models.ScanStats
}

func NewRunner(cycler Cycler, interval time.Duration, logger *logrus.Logger) *Runner {
	return &Runner{
		logger:   logger,
		cycler:   cycler,
		interval: interval,
		state:    StateIdle,
		total:    models.NewScanStats(),
	}
}

// State returns the current loop phase.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Totals returns a copy of the accumulated counters across all cycles.
func (r *Runner) Totals() models.ScanStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.total
	total.FieldHits = make(map[string]int, len(r.total.FieldHits))
	for k, v := range r.total.FieldHits {
		total.FieldHits[k] = v
	}
	return total
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run loops until ctx is cancelled. The sleep between cycles aborts
// promptly on cancellation, never waiting out the interval.
func (r *Runner) Run(ctx context.Context) {
	r.logger.WithField("interval", r.interval.String()).Info("Scan loop started")

	for {
		if ctx.Err() != nil {
			break
		}

		// The attached transport flips to Fetching for the duration of
		// each page fetch; everything else in the cycle is processing.
		r.setState(StateProcessing)
		stats := r.cycler.RunCycle(ctx)

		r.mu.Lock()
		r.total.Add(stats)
		r.mu.Unlock()

		if ctx.Err() != nil {
			break
		}

		r.setState(StateSleeping)
		if err := sleepCtx(ctx, r.interval); err != nil {
			break
		}
	}

	r.setState(StateIdle)
	r.logger.Info("Scan loop stopped")
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
