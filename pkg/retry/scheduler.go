// Package retry computes error-type-aware exponential backoff delays.
//
// Delays grow exponentially with the attempt index and are scaled per error
// kind: rate-limit and quota failures back off harder because hammering an
// already-limited credential only extends the limit, while timeouts back off
// lighter since the next attempt usually lands on a different credential.
// A uniform jitter factor keeps concurrent callers from retrying in
// lockstep.
package retry

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"wander-hq/sherpa/pkg/classify"
)

// Jitter bounds: each delay is scaled by a uniform draw from this range.
const (
	jitterMin = 0.85
	jitterMax = 1.15
)

// Config contains the base backoff parameters.
type Config struct {
	// BaseDelay is the delay for attempt 0 before type scaling and jitter.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor per attempt.
	Multiplier float64
}

// typeScale adjusts base delay and multiplier per error kind.
type typeScale struct {
	base       float64
	multiplier float64
}

var typeScales = map[classify.ErrorType]typeScale{
	classify.TypeRateLimit: {base: 2, multiplier: 1.5},
	classify.TypeAPIQuota:  {base: 3, multiplier: 2},
	classify.TypeNetwork:   {base: 1.5, multiplier: 1},
	classify.TypeTimeout:   {base: 0.5, multiplier: 1},
}

// Scheduler computes retry delays. Safe for concurrent use.
type Scheduler struct {
	mu  sync.RWMutex
	cfg Config

	// randFloat returns a uniform draw from [0, 1). Overridable for tests.
	randFloat func() float64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand overrides the jitter source. The function must return uniform
// draws from [0, 1).
func WithRand(randFloat func() float64) Option {
	return func(s *Scheduler) {
		s.randFloat = randFloat
	}
}

// NewScheduler creates a Scheduler with the given backoff parameters.
func NewScheduler(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DelayFor computes the backoff delay before retrying after the given
// attempt (0-based) failed with the given error kind.
func (s *Scheduler) DelayFor(attempt int, errType classify.ErrorType) time.Duration {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	scale, ok := typeScales[errType]
	if !ok {
		scale = typeScale{base: 1, multiplier: 1}
	}

	adjustedBase := float64(cfg.BaseDelay) * scale.base
	adjustedMultiplier := cfg.Multiplier * scale.multiplier

	jitter := jitterMin + s.randFloat()*(jitterMax-jitterMin)

	delay := adjustedBase * math.Pow(adjustedMultiplier, float64(attempt)) * jitter
	if max := float64(cfg.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// UpdateConfig replaces the backoff parameters at runtime.
func (s *Scheduler) UpdateConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Config returns the current backoff parameters.
func (s *Scheduler) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}
