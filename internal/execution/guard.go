package execution

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/metrics"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/types"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerHalfOpen
	breakerOpen
)

func (b breakerState) String() string {
	switch b {
	case breakerHalfOpen:
		return "half_open"
	case breakerOpen:
		return "open"
	default:
		return "closed"
	}
}

type GuardParams struct {
	PerMinuteCap     int
	MaxRetries       int
	RetryBackoff     time.Duration
	DuplicateWindow  time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	HalfOpenProbes   int
}

func GuardParamsFromConfig(cfg *store.Config) GuardParams {
	g := cfg.Execution.Guard
	return GuardParams{
		PerMinuteCap:     g.PerMinuteCap,
		MaxRetries:       g.MaxRetries,
		RetryBackoff:     g.RetryBackoff,
		DuplicateWindow:  g.DuplicateWindow,
		BreakerThreshold: g.BreakerThreshold,
		BreakerCooldown:  g.BreakerCooldown,
		HalfOpenProbes:   g.HalfOpenProbes,
	}
}

// Guard wraps an executor with a per-minute order cap, retries, duplicate
// suppression and a circuit breaker. Suppressed orders fail with ErrSuppressed
// and never reach the venue.
type Guard struct {
	inner interfaces.Executor
	p     GuardParams
	now   func() time.Time

	rateMu     sync.Mutex
	orderTimes []time.Time

	dupMu   sync.Mutex
	lastKey string
	lastAt  time.Time

	bMu        sync.Mutex
	state      breakerState
	failStreak int
	openedAt   time.Time
	halfProbes int
}

var _ interfaces.Executor = (*Guard)(nil)

func NewGuard(inner interfaces.Executor, p GuardParams) *Guard {
	if p.BreakerThreshold < 1 {
		p.BreakerThreshold = 3
	}
	if p.HalfOpenProbes < 1 {
		p.HalfOpenProbes = 1
	}
	metrics.BreakerState.Set(0)
	return &Guard{inner: inner, p: p, now: time.Now}
}

func (g *Guard) Name() string { return g.inner.Name() }

func (g *Guard) PlaceOrder(ctx context.Context, symbol string, d types.Decision) (types.ExecutionResult, error) {
	return g.run(ctx, symbol, orderKey(symbol, d), func(ctx context.Context) (types.ExecutionResult, error) {
		return g.inner.PlaceOrder(ctx, symbol, d)
	})
}

// orderKey identifies an order for duplicate suppression. Ladder levels share
// side and size, so the reason is part of the key.
func orderKey(symbol string, d types.Decision) string {
	key := symbol + "|" + string(d.Side) + "|" + strconv.Itoa(d.Quantity) + "|" + string(d.OrderType) + "|" + d.Reason
	if d.LimitPrice != nil {
		key += "|" + strconv.FormatFloat(*d.LimitPrice, 'f', -1, 64)
	}
	return key
}

func (g *Guard) FlattenPosition(ctx context.Context, symbol string) (types.ExecutionResult, error) {
	return g.run(ctx, symbol, symbol+"|flatten", func(ctx context.Context) (types.ExecutionResult, error) {
		return g.inner.FlattenPosition(ctx, symbol)
	})
}

func (g *Guard) CancelOrder(ctx context.Context, orderID string) (types.ExecutionResult, error) {
	return g.inner.CancelOrder(ctx, orderID)
}

func (g *Guard) GetPosition(ctx context.Context, symbol string) (int, error) {
	return g.inner.GetPosition(ctx, symbol)
}

func (g *Guard) suppress(ctx context.Context, symbol, reason string) (types.ExecutionResult, error) {
	metrics.OrdersSuppressed.WithLabelValues(reason).Inc()
	logger.Warn(ctx, "Order suppressed", "symbol", symbol, "reason", reason, "executor", g.inner.Name())
	err := fmt.Errorf("%w: %s", ErrSuppressed, reason)
	return types.Failed(err.Error()), err
}

func (g *Guard) run(ctx context.Context, symbol, key string, send func(context.Context) (types.ExecutionResult, error)) (types.ExecutionResult, error) {
	now := g.now()

	if !g.allowBreaker(now) {
		return g.suppress(ctx, symbol, "breaker_open")
	}
	if g.rateExceeded(now) {
		return g.suppress(ctx, symbol, "rate_limit")
	}
	if g.duplicate(key, now) {
		return g.suppress(ctx, symbol, "duplicate")
	}

	var (
		res types.ExecutionResult
		err error
	)
	for attempt := 0; attempt <= g.p.MaxRetries; attempt++ {
		res, err = send(ctx)
		if err == nil && res.Success {
			g.noteSuccess(now, key)
			return res, nil
		}
		if attempt == g.p.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			g.noteFailure(ctx, now)
			return types.Failed(ctx.Err().Error()), ctx.Err()
		case <-time.After(time.Duration(attempt+1) * g.p.RetryBackoff):
		}
	}
	g.noteFailure(ctx, now)
	return res, err
}

func (g *Guard) duplicate(key string, now time.Time) bool {
	g.dupMu.Lock()
	defer g.dupMu.Unlock()
	return g.p.DuplicateWindow > 0 && key == g.lastKey && now.Sub(g.lastAt) < g.p.DuplicateWindow
}

func (g *Guard) rateExceeded(now time.Time) bool {
	g.rateMu.Lock()
	defer g.rateMu.Unlock()
	cutoff := now.Add(-time.Minute)
	j := 0
	for _, t := range g.orderTimes {
		if t.After(cutoff) {
			g.orderTimes[j] = t
			j++
		}
	}
	g.orderTimes = g.orderTimes[:j]
	metrics.OrdersInLastMinute.Set(float64(len(g.orderTimes)))
	return g.p.PerMinuteCap > 0 && len(g.orderTimes) >= g.p.PerMinuteCap
}

func (g *Guard) allowBreaker(now time.Time) bool {
	g.bMu.Lock()
	defer g.bMu.Unlock()

	switch g.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.Sub(g.openedAt) < g.p.BreakerCooldown {
			return false
		}
		g.setState(breakerHalfOpen)
		g.halfProbes = 1
		return true
	case breakerHalfOpen:
		if g.halfProbes < g.p.HalfOpenProbes {
			g.halfProbes++
			return true
		}
		return false
	}
	return false
}

func (g *Guard) setState(s breakerState) {
	g.state = s
	metrics.BreakerState.Set(float64(s))
}

func (g *Guard) noteSuccess(now time.Time, key string) {
	g.rateMu.Lock()
	g.orderTimes = append(g.orderTimes, now)
	metrics.OrdersInLastMinute.Set(float64(len(g.orderTimes)))
	g.rateMu.Unlock()

	g.dupMu.Lock()
	g.lastKey, g.lastAt = key, now
	g.dupMu.Unlock()

	g.bMu.Lock()
	defer g.bMu.Unlock()
	g.failStreak = 0
	if g.state == breakerHalfOpen {
		g.setState(breakerClosed)
	}
}

func (g *Guard) noteFailure(ctx context.Context, now time.Time) {
	g.bMu.Lock()
	defer g.bMu.Unlock()

	switch g.state {
	case breakerClosed:
		g.failStreak++
		if g.failStreak >= g.p.BreakerThreshold {
			g.openedAt = now
			g.setState(breakerOpen)
			logger.Warn(ctx, "Execution breaker opened",
				"executor", g.inner.Name(), "failures", g.failStreak, "cooldown", g.p.BreakerCooldown)
		}
	case breakerHalfOpen:
		g.openedAt = now
		g.setState(breakerOpen)
		logger.Warn(ctx, "Execution breaker reopened after failed probe", "executor", g.inner.Name())
	case breakerOpen:
		g.openedAt = now
	}
}

// State is the breaker state name, for diagnostics.
func (g *Guard) State() string {
	g.bMu.Lock()
	defer g.bMu.Unlock()
	return g.state.String()
}
