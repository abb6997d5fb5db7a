package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/model"
)

// CircuitState is the state of a Breaker.
type CircuitState int

const (
	// CircuitClosed passes fetches through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects fetches without contacting upstream.
	CircuitOpen
	// CircuitHalfOpen lets one probe fetch through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Breaker opens and how long it stays open.
type BreakerConfig struct {
	// Threshold is the number of consecutive upstream failures that opens
	// the circuit. Default: 5.
	Threshold int
	// ResetTimeout is how long the circuit stays open before a probe is
	// allowed. Default: 5m.
	ResetTimeout time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Breaker wraps a Source and stops calling it after repeated upstream
// failures. A rejected fetch still fails with ErrUpstreamUnavailable, so
// callers see the same error either way. Fetches are never retried.
type Breaker struct {
	src Source
	cfg BreakerConfig
	log *zap.Logger

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// NewBreaker wraps src.
func NewBreaker(src Source, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Breaker{
		src: src,
		cfg: cfg,
		log: zap.L().With(zap.String("component", "feed.breaker")),
	}
}

// Fetch calls the wrapped source unless the circuit is open.
func (b *Breaker) Fetch(ctx context.Context, date string) ([]model.FeedRecord, error) {
	if !b.allow() {
		return nil, eris.Wrapf(ErrUpstreamUnavailable, "feed: circuit open, not fetching %s", date)
	}

	records, err := b.src.Fetch(ctx, date)
	b.record(ctx, err)
	return records, err
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.cfg.Clock.Since(b.lastFailure) >= b.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitOpen {
		return true
	}
	if b.cfg.Clock.Since(b.lastFailure) >= b.cfg.ResetTimeout {
		b.transition(CircuitHalfOpen)
		return true
	}
	return false
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Cancellation says nothing about upstream health.
	if err != nil && (ctx.Err() != nil || !errors.Is(err, ErrUpstreamUnavailable)) {
		return
	}

	if err == nil {
		b.failures = 0
		if b.state != CircuitClosed {
			b.transition(CircuitClosed)
		}
		return
	}

	b.failures++
	b.lastFailure = b.cfg.Clock.Now()
	if b.state == CircuitHalfOpen || b.failures >= b.cfg.Threshold {
		b.transition(CircuitOpen)
	}
}

func (b *Breaker) transition(to CircuitState) {
	if b.state == to {
		return
	}
	b.log.Warn("feed circuit state change",
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
		zap.Int("consecutive_failures", b.failures),
	)
	b.state = to
}
