// Package propagation reconciles the gap between a claims mutation landing
// at the authority and that mutation becoming visible in the principal's
// locally-held token.
//
// Claims changes are a read-your-own-write problem across two independent
// systems: the authority's store and the provider's token issuance. After a
// sign-in (or an admin mutation), the current token may still carry the
// pending placeholder role until the provider refreshes. An Episode polls
// the current claims on a short fixed interval, bounded by an attempt
// ceiling, with an independent single-shot fallback check that shortens the
// worst case when the polling cadence itself is delayed by the host
// environment. Exactly one continuation fires per episode.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lumina-lms/lumina-authz/internal/authz"
	"github.com/lumina-lms/lumina-authz/internal/claims"
)

// Tuning defaults: 50ms x 50 attempts bounds the polling path at ~2.5s, and
// the 3s fallback bounds the case where ticks are starved.
const (
	DefaultInterval      = 50 * time.Millisecond
	DefaultMaxAttempts   = 50
	DefaultFallbackAfter = 3 * time.Second
)

// State is the synchronization episode state.
type State int

const (
	StatePending State = iota
	StateResolved
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TimeoutError reports that authentication succeeded but the authorization
// state did not stabilize within the bounded window. It is deliberately
// worded to not imply a credential failure: the usual cause is the token
// provider not having refreshed yet, and retrying the login forces a fresh
// token fetch.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"sign-in succeeded but your account permissions have not finished syncing after %d checks over %s; please sign in again",
		e.Attempts, e.Elapsed.Round(time.Millisecond),
	)
}

// ErrPropagationTimeout lets callers match timeouts without naming the
// concrete type.
var ErrPropagationTimeout = errors.New("claims propagation timed out")

func (e *TimeoutError) Is(target error) bool {
	return target == ErrPropagationTimeout
}

// Config tunes an episode. Zero values fall back to the defaults.
type Config struct {
	Interval      time.Duration
	MaxAttempts   int
	FallbackAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.FallbackAfter <= 0 {
		c.FallbackAfter = DefaultFallbackAfter
	}
	return c
}

// Episode is one synchronization attempt. The caller that began it owns its
// lifecycle: Cancel abandons it without firing either continuation.
type Episode struct {
	mu    sync.Mutex
	state State
	done  chan struct{}
}

// Begin starts polling the claims source until the current record is
// non-nil, active, and past the placeholder role, then invokes onResolved
// with it. If the attempt ceiling is reached first, onTimedOut receives a
// *TimeoutError. Exactly one of the two continuations fires, exactly once;
// cancelling the context or the episode before a terminal state fires
// neither. Continuations run on the episode's own goroutine.
func Begin(ctx context.Context, source authz.ClaimsSource, cfg Config, onResolved func(*claims.Record), onTimedOut func(error)) *Episode {
	cfg = cfg.withDefaults()
	ep := &Episode{state: StatePending, done: make(chan struct{})}
	go ep.run(ctx, source, cfg, onResolved, onTimedOut)
	return ep
}

// Cancel abandons the episode. After Cancel neither continuation will fire.
// Cancelling an already-terminal episode is a no-op.
func (e *Episode) Cancel() {
	e.transition(StateCancelled)
}

// State returns the episode's current state.
func (e *Episode) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Done is closed once the episode reaches any terminal state, including
// cancellation.
func (e *Episode) Done() <-chan struct{} {
	return e.done
}

func (e *Episode) run(ctx context.Context, source authz.ClaimsSource, cfg Config, onResolved func(*claims.Record), onTimedOut func(error)) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	fallback := time.NewTimer(cfg.FallbackAfter)
	defer fallback.Stop()

	start := time.Now()
	attempts := 0

	// Both timers feed a single goroutine, so the race between the polling
	// path and the fallback path reduces to whichever case the select picks;
	// transition still guards against a Cancel racing either one.
	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			e.transition(StateCancelled)
			return
		case <-ticker.C:
			attempts++
			if rec := resolvedRecord(ctx, source); rec != nil {
				if e.transition(StateResolved) {
					onResolved(rec)
				}
				return
			}
			if attempts >= cfg.MaxAttempts {
				if e.transition(StateTimedOut) {
					onTimedOut(&TimeoutError{Attempts: attempts, Elapsed: time.Since(start)})
				}
				return
			}
		case <-fallback.C:
			// Single-shot re-check; if still unresolved the polling loop
			// keeps going until its own ceiling.
			if rec := resolvedRecord(ctx, source); rec != nil {
				if e.transition(StateResolved) {
					onResolved(rec)
				}
				return
			}
		}
	}
}

// transition moves the episode out of pending. The first writer wins; all
// later attempts report false, which is what makes the continuations
// single-fire.
func (e *Episode) transition(to State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePending {
		return false
	}
	e.state = to
	close(e.done)
	return true
}

// resolvedRecord performs one fresh read and returns the record only when it
// is usable: present, active, and carrying a real role.
func resolvedRecord(ctx context.Context, source authz.ClaimsSource) *claims.Record {
	rec, err := source.CurrentPrincipalClaims(ctx)
	if err != nil || rec == nil || !rec.IsActive || rec.Pending() {
		return nil
	}
	return rec
}
