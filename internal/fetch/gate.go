package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/danielolaszy/weave/internal/logging"
)

// RateLimit is the remote budget reported with a response.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Gate owns the rate-limit budget of one remote source and applies the
// retry policy to every call made against it.
type Gate struct {
	name  string
	clock Clock
	opts  Options

	mu     sync.Mutex
	budget *RateLimit
}

// NewGate creates a gate for the named source. A nil clock uses the wall clock.
func NewGate(name string, clock Clock, opts Options) *Gate {
	if clock == nil {
		clock = RealClock()
	}
	return &Gate{
		name:  name,
		clock: clock,
		opts:  opts.withDefaults(),
	}
}

// Options returns the effective options of the gate.
func (g *Gate) Options() Options {
	return g.opts
}

// Observe records the budget reported by the latest response.
func (g *Gate) Observe(rate *RateLimit) {
	if rate == nil || rate.Reset.IsZero() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r := *rate
	g.budget = &r
}

func (g *Gate) exhaust(reset time.Time) {
	if now := g.clock.Now(); reset.Before(now) {
		reset = now
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.budget = &RateLimit{Remaining: 0, Reset: reset}
}

// Wait suspends until the budget allows another request.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	budget := g.budget
	g.mu.Unlock()

	if budget == nil || budget.Remaining > 0 {
		return ctx.Err()
	}

	resume := budget.Reset.Add(g.opts.RateLimitMargin)
	if d := resume.Sub(g.clock.Now()); d > 0 {
		logging.Warn("Rate limit exhausted, waiting for reset",
			"source", g.name,
			"reset", budget.Reset.Format(time.RFC3339),
			"wait", d.String())
		if err := g.clock.Sleep(ctx, d); err != nil {
			return err
		}
	}

	g.mu.Lock()
	if g.budget == budget {
		g.budget = nil
	}
	g.mu.Unlock()
	return nil
}

// Do runs call under the gate. Transient failures are retried with a fixed
// delay, rate-limit refusals are waited out without consuming an attempt,
// and not-found or terminal failures are returned immediately.
func (g *Gate) Do(ctx context.Context, call func(ctx context.Context) (*RateLimit, error)) error {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(g.opts.RetryDelay), uint64(g.opts.MaxAttempts-1))
	policy.Reset()

	attempts, waits := 0, 0
	for {
		if err := g.Wait(ctx); err != nil {
			return err
		}

		attempts++
		rate, err := call(ctx)
		g.Observe(rate)

		switch Classify(err) {
		case OutcomeOK:
			return nil
		case OutcomeNotFound, OutcomeTerminal:
			return err
		case OutcomeRateLimited:
			var rl *RateLimitedError
			errors.As(err, &rl)
			waits++
			if waits <= g.opts.MaxRateLimitWaits {
				g.exhaust(rl.Reset)
				attempts--
				continue
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			return fmt.Errorf("%s: %w after %d attempts: %w", g.name, ErrRetriesExhausted, attempts, err)
		}

		logging.Warn("Request failed, retrying",
			"source", g.name,
			"attempt", attempts,
			"max_attempts", g.opts.MaxAttempts,
			"delay", next.String(),
			"error", err)
		if err := g.clock.Sleep(ctx, next); err != nil {
			return err
		}
	}
}
