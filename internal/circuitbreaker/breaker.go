package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker settings
type Config struct {
	MaxFailures  int           // consecutive failures before opening. Default: 5
	ResetTimeout time.Duration // time spent open before a probe. Default: 30s

	// OnStateChange is called, outside the lock, after every transition
	OnStateChange func(from, to State)

	// IsFailure decides which errors count against the provider.
	// Default: any error except caller cancellation.
	IsFailure func(err error) bool

	now func() time.Time
}

// CircuitBreaker stops calling a provider that keeps failing
type CircuitBreaker struct {
	maxFailures   int
	resetTimeout  time.Duration
	onStateChange func(from, to State)
	isFailure     func(err error) bool
	now           func() time.Time

	mu              sync.RWMutex
	state           State
	failures        int
	probing         bool
	lastFailureTime time.Time
	lastStateChange time.Time
}

// New creates a circuit breaker from config
func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = DefaultIsFailure
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	return &CircuitBreaker{
		maxFailures:     cfg.MaxFailures,
		resetTimeout:    cfg.ResetTimeout,
		onStateChange:   cfg.OnStateChange,
		isFailure:       cfg.IsFailure,
		now:             cfg.now,
		state:           StateClosed,
		lastStateChange: cfg.now(),
	}
}

// NewCircuitBreaker creates a circuit breaker with default hooks
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return New(Config{MaxFailures: maxFailures, ResetTimeout: resetTimeout})
}

// DefaultIsFailure treats everything but context.Canceled as a failure.
// A caller hanging up says nothing about the provider's health.
func DefaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute runs fn with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterCall(err)

	return err
}

// Call executes a function with circuit breaker protection
func (cb *CircuitBreaker) Call(fn func() error) error {
	return cb.Execute(context.Background(), func(context.Context) error {
		return fn()
	})
}

// beforeCall checks if call is allowed
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) <= cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		// Let exactly one probe through
		from := cb.setStateLocked(StateHalfOpen)
		cb.probing = true
		cb.mu.Unlock()
		cb.notify(from, StateHalfOpen)
		return nil

	case StateHalfOpen:
		defer cb.mu.Unlock()
		if cb.probing {
			return ErrTooManyRequests
		}
		cb.probing = true
		return nil
	}

	cb.mu.Unlock()
	return nil
}

// afterCall updates circuit breaker state after call
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()

	from, to := cb.state, cb.state
	wasProbe := cb.state == StateHalfOpen
	if wasProbe {
		cb.probing = false
	}

	switch {
	case cb.isFailure(err):
		cb.failures++
		cb.lastFailureTime = cb.now()
		if wasProbe || cb.failures >= cb.maxFailures {
			to = StateOpen
		}

	case err != nil:
		// Not the provider's fault; a probe stays half-open for the next caller

	default:
		cb.failures = 0
		if wasProbe {
			to = StateClosed
		}
	}

	if to != from {
		cb.setStateLocked(to)
	}
	cb.mu.Unlock()

	if to != from {
		cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) setStateLocked(to State) State {
	from := cb.state
	cb.state = to
	cb.lastStateChange = cb.now()
	if to == StateClosed {
		cb.failures = 0
	}
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State returns current circuit breaker state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() (state State, failures int, since time.Time) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state, cb.failures, cb.lastStateChange
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.setStateLocked(StateClosed)
	cb.probing = false
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify(from, StateClosed)
	}
}
