package engine

import (
	"context"
	"time"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/metrics"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/tradelog"
	"vwap-reversion-bot/internal/types"
)

type engine struct {
	cfg       *store.Config
	states    *state.Store
	strategy  interfaces.Strategy
	loc       *time.Location
	journal   *tradelog.Journal
	publisher interfaces.DecisionPublisher
	orders    *orderExecutor
	now       func() time.Time
}

type Option func(*engine)

// WithJournal records every decision and execution.
func WithJournal(j *tradelog.Journal) Option {
	return func(e *engine) { e.journal = j }
}

// WithPublisher streams every decision to p.
func WithPublisher(p interfaces.DecisionPublisher) Option {
	return func(e *engine) { e.publisher = p }
}

// WithExecutor turns on direct execution: non-hold decisions are forwarded
// to ex after the symbol's state has been updated.
func WithExecutor(ex interfaces.Executor) Option {
	return func(e *engine) {
		e.orders = newOrderExecutor(ex, e.cfg.Execution.Timeout)
	}
}

// WithClock replaces time.Now for ticks without a usable timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *engine) { e.now = now }
}

func newEngine(cfg *store.Config, states *state.Store, strat interfaces.Strategy, loc *time.Location, opts ...Option) *engine {
	e := &engine{
		cfg:      cfg,
		states:   states,
		strategy: strat,
		loc:      loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.orders != nil {
		e.orders.journal = e.journal
	}
	return e
}

// Decide runs one tick through rollover, position reconciliation and the
// strategy under the symbol's lock, then journals, publishes and optionally
// executes the result outside it. It never fails; bad input becomes a hold.
func (e *engine) Decide(ctx context.Context, tick types.Tick) types.Decision {
	if err := tick.Validate(); err != nil {
		logger.Anomaly(ctx, tick.SymbolName, "invalid_tick", "error", err.Error())
		metrics.Anomalies.WithLabelValues("invalid_tick").Inc()
		return types.Hold("invalid_tick")
	}
	sym := tick.SymbolName
	now := e.tickTime(ctx, tick)
	metrics.TicksTotal.WithLabelValues(sym).Inc()

	var ev types.DecisionEvent
	e.states.With(sym, func(st *state.SymbolState) {
		e.rollover(ctx, tick, st)
		e.reconcilePosition(ctx, tick, st)

		d := e.strategy.Decide(ctx, tick, now, st)
		ev = types.DecisionEvent{
			Time:         now.Format(time.RFC3339Nano),
			Symbol:       sym,
			SessionDate:  st.CurrentSessionDate,
			Session:      st.SessionName,
			LastPrice:    tick.LastPrice,
			VWAP:         tick.VWAP,
			ZScore:       st.LastZScore,
			Position:     st.PositionQty,
			Observations: st.ObservationCount,
			Decision:     d,
		}
	})

	d := ev.Decision
	if d.Action == types.ActionHold {
		logger.Debug(ctx, "Holding", "symbol", sym, "reason", d.Reason, "z_score", ev.ZScore,
			"observations", ev.Observations)
	} else {
		logger.Decision(ctx, sym, string(d.Action), ev.ZScore, d.Reason,
			"side", d.Side,
			"quantity", d.Quantity,
			"order_type", d.OrderType,
			"session", ev.Session,
			"position", ev.Position,
		)
	}
	metrics.DecisionsTotal.WithLabelValues(sym, string(d.Action), d.Reason).Inc()
	metrics.ZScore.WithLabelValues(sym).Set(ev.ZScore)
	metrics.Position.WithLabelValues(sym).Set(float64(ev.Position))

	if e.journal != nil {
		if err := e.journal.AppendDecision(now, ev); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal decision", err, "symbol", sym)
		}
	}
	if e.publisher != nil {
		e.publisher.Publish(ev)
	}
	if e.orders != nil && d.Action != types.ActionHold {
		e.orders.execute(ctx, now, tick, d)
	}
	return d
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// tickTime parses the tick timestamp. A timestamp without a zone is read in
// the exchange timezone; a missing or unusable one falls back to the engine clock.
func (e *engine) tickTime(ctx context.Context, tick types.Tick) time.Time {
	s := tick.TimestampISO
	if s == "" {
		return e.now()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, e.loc); err == nil {
			return t
		}
	}
	logger.Anomaly(ctx, tick.SymbolName, "invalid_timestamp", "timestamp", s)
	metrics.Anomalies.WithLabelValues("invalid_timestamp").Inc()
	return e.now()
}
