package collaborator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts time for the breaker so cooldown transitions are testable
// without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock.
func SystemClock() Clock { return systemClock{} }

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen short-circuits a call while the breaker cooldown runs.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// Breaker is an explicit Closed/Open/HalfOpen state machine held per
// collaborator. Threshold consecutive failures open it; after the cooldown
// a single probe is let through, and its result decides between closing
// again and another cooldown.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	clock     Clock
	logger    *slog.Logger

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	probeBusy bool
}

func NewBreaker(name string, threshold int, cooldown time.Duration, clock Clock, logger *slog.Logger) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		clock:     clock,
		logger:    logger,
		state:     StateClosed,
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn under the breaker. While open it returns ErrBreakerOpen without
// invoking fn; when half-open only one probe runs at a time.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err == nil)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", b.name, err)
	}
	return nil
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probeBusy = true
		b.logger.Info("circuit breaker half-open, probing", "collaborator", b.name)
		return nil
	case StateHalfOpen:
		if b.probeBusy {
			return ErrBreakerOpen
		}
		b.probeBusy = true
		return nil
	}
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeBusy = false
		if success {
			b.state = StateClosed
			b.failures = 0
			b.logger.Info("circuit breaker closed after successful probe", "collaborator", b.name)
		} else {
			b.state = StateOpen
			b.openedAt = b.clock.Now()
			b.logger.Warn("circuit breaker re-opened after failed probe", "collaborator", b.name)
		}
		return
	}

	if success {
		b.failures = 0
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.clock.Now()
		b.logger.Warn("circuit breaker opened",
			"collaborator", b.name,
			"consecutive_failures", b.failures,
			"cooldown", b.cooldown.String())
	}
}
