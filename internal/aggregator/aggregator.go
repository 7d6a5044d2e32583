// Package aggregator de-duplicates concurrent identical outbound requests.
// Callers that ask for a key already in flight share the pending request
// and observe its result or its error. Failed requests are retried once.
package aggregator

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"golang.org/x/sync/singleflight"

	"github.com/paveg/adxql/internal/errors"
	"github.com/paveg/adxql/internal/monitoring"
)

// Poster issues a single outbound request.
type Poster interface {
	Post(ctx context.Context, url string, payload any) ([]byte, error)
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(ctx context.Context, url string, payload any) ([]byte, error)

// Post calls f.
func (f PosterFunc) Post(ctx context.Context, url string, payload any) ([]byte, error) {
	return f(ctx, url, payload)
}

// Config controls the retry behaviour.
type Config struct {
	Retries    int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// DefaultConfig retries exactly once after a short pause.
func DefaultConfig() Config {
	return Config{
		Retries:    1,
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: time.Second,
	}
}

// Aggregator guarantees at most one in-flight request per key.
type Aggregator struct {
	poster  Poster
	cfg     Config
	logger  log.Logger
	metrics *monitoring.Metrics

	group singleflight.Group

	mu      sync.Mutex
	waiters map[string]int
	peak    int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithConfig overrides the retry configuration.
func WithConfig(cfg Config) Option {
	return func(a *Aggregator) {
		a.cfg = cfg
	}
}

// New creates an Aggregator sending requests through poster.
func New(poster Poster, opts ...Option) *Aggregator {
	a := &Aggregator{
		poster:  poster,
		cfg:     DefaultConfig(),
		logger:  log.NewNopLogger(),
		waiters: make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = monitoring.NewMetrics(nil)
	}
	return a
}

// DSPost sends payload to url unless a request with the same key is already
// in flight, in which case the caller waits for that request instead.
func (a *Aggregator) DSPost(ctx context.Context, key, url string, payload any) ([]byte, error) {
	// The shared request outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (any, error) {
		return a.doRequest(shared, key, url, payload)
	})

	a.enter(key)
	defer a.leave(key)

	select {
	case res := <-ch:
		if res.Shared {
			a.metrics.AggregatorDeduplicated.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InFlight returns the number of distinct keys with waiting callers.
func (a *Aggregator) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.waiters)
}

// Waiters returns the number of callers currently waiting on any key.
func (a *Aggregator) Waiters() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, c := range a.waiters {
		n += c
	}
	return n
}

// PeakInFlight returns the largest InFlight value observed.
func (a *Aggregator) PeakInFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

func (a *Aggregator) enter(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.waiters[key]++
	if len(a.waiters) > a.peak {
		a.peak = len(a.waiters)
	}
	a.metrics.AggregatorInFlight.Set(float64(len(a.waiters)))
}

func (a *Aggregator) leave(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.waiters[key]--
	if a.waiters[key] <= 0 {
		delete(a.waiters, key)
	}
	a.metrics.AggregatorInFlight.Set(float64(len(a.waiters)))
}

func (a *Aggregator) doRequest(ctx context.Context, key, url string, payload any) ([]byte, error) {
	b := backoff.New(ctx, backoff.Config{
		MinBackoff: a.cfg.MinBackoff,
		MaxBackoff: a.cfg.MaxBackoff,
		MaxRetries: a.cfg.Retries + 1,
	})

	var lastErr error
	for b.Ongoing() {
		a.metrics.AggregatorRequests.Inc()
		body, err := a.poster.Post(ctx, url, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if b.NumRetries() >= a.cfg.Retries {
			break
		}
		level.Warn(a.logger).Log("msg", "request failed, retrying", "key", key, "url", url, "err", err)
		a.metrics.AggregatorRetries.Inc()
		b.Wait()
	}
	if lastErr == nil {
		lastErr = b.Err()
	}

	a.metrics.AggregatorFailures.Inc()
	level.Error(a.logger).Log("msg", "request failed", "key", key, "url", url, "err", lastErr)

	var fe *errors.FetchError
	if stderrors.As(lastErr, &fe) {
		return nil, fe
	}
	return nil, errors.NewFetchError(0, lastErr)
}
