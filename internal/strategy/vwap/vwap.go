// Package vwap is the layered VWAP mean-reversion strategy: an EWMA z-score
// of the price's distance from VWAP, gated by session and trend, fed to the
// entry ladder in package policy.
package vwap

import (
	"context"
	"time"

	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/metrics"
	"vwap-reversion-bot/internal/policy"
	"vwap-reversion-bot/internal/session"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/ta"
	"vwap-reversion-bot/internal/trend"
	"vwap-reversion-bot/internal/types"
)

const Name = "vwap_reversion"

type Strategy struct {
	resolver         *session.Resolver
	trend            *trend.Filter
	ewma             ta.EWMAParams
	params           policy.Params
	tickSize         float64
	initialVariance  float64
	fillConfirmTicks int
}

func New(cfg *store.Config, resolver *session.Resolver) *Strategy {
	sc := cfg.Strategy
	s := &Strategy{
		resolver: resolver,
		ewma: ta.EWMAParams{
			Alpha:                sc.EWMAAlpha,
			MinVariance:          sc.MinVariance,
			BiasCorrectionPeriod: sc.BiasCorrectionPeriod,
		},
		params: policy.Params{
			WarmupObservations: sc.WarmupObservations,
			MinVariance:        sc.MinVariance,
			MinStdTicks:        sc.MinStdTicks,
			MaxSpreadTicks:     sc.MaxSpreadTicks,
			FirstEntryLimit:    sc.FirstEntryLimit,
		},
		tickSize:         sc.TickSize,
		initialVariance:  sc.InitialEMAVariance,
		fillConfirmTicks: sc.FillConfirmTicks,
	}
	if cfg.TrendFilter.Enabled {
		s.trend = trend.New(trend.ParamsFromConfig(cfg))
	}
	return s
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) ResetSession(st *state.SymbolState) {
	st.Reset(s.initialVariance)
}

func (s *Strategy) Decide(ctx context.Context, tick types.Tick, now time.Time, st *state.SymbolState) types.Decision {
	st.ObservationCount++
	deviation := tick.LastPrice - tick.VWAP
	var z float64
	st.EmaDeviation, st.EmaVariance, z = ta.UpdateEWMAZ(st.ObservationCount, st.EmaDeviation, st.EmaVariance, deviation, s.ewma)
	st.LastZScore = z

	res := s.resolver.Resolve(now)
	if res.Name != st.SessionName {
		logger.Info(ctx, "Session changed",
			"symbol", tick.SymbolName,
			"session", res.Name,
			"previous", st.SessionName,
			"z_exit", res.Config.ZExit,
			"z_entry_levels", res.Config.ZEntryLevels,
			"entry_quantities", res.Config.EntryQuantities,
			"max_total_position", res.Config.MaxTotalPosition,
		)
		st.SessionName = res.Name
		st.Triggered = policy.NewFlags(res.Config.Levels())
	}

	s.confirmFill(ctx, tick.SymbolName, st)

	trending := false
	if s.trend != nil && s.trend.Applies(res.Name) {
		sig := s.trend.Update(&st.Trend, z, tick.AskPrice, tick.BidPrice, tick.LastPrice, now)
		trending = sig.Detected
		if trending {
			logger.Debug(ctx, "Trend detected",
				"symbol", tick.SymbolName,
				"adx", sig.ADX,
				"momentum", sig.Momentum,
				"persistent", sig.Persistent,
				"high_velocity", sig.HighVelocity,
				"divergence", sig.Divergence,
			)
		}
	}

	tickSize := tick.TickSize
	if tickSize <= 0 {
		tickSize = s.tickSize
	}

	in := policy.Input{
		ZScore:         z,
		Position:       st.PositionQty,
		Pending:        st.Pending,
		Expected:       st.ExpectedPosition,
		Spread:         tick.Spread(),
		Mid:            tick.Mid(),
		Observations:   st.ObservationCount,
		EmaVariance:    st.EmaVariance,
		TickSize:       tickSize,
		TradingAllowed: res.TradingAllowed,
		ShouldFlatten:  res.ShouldFlatten,
		TrendDetected:  trending,
	}
	r := policy.Evaluate(s.params, res.Config, in, st.Triggered)
	st.Triggered = r.Flags

	switch r.Decision.Action {
	case types.ActionPlace:
		st.ExpectedPosition = in.Projected() + r.Decision.SignedQuantity()
		st.Pending, st.PendingAt = true, st.ObservationCount
	case types.ActionFlatten:
		st.ExpectedPosition = 0
		st.Pending, st.PendingAt = true, st.ObservationCount
	}

	if r.Reason == "flags_reconciled" {
		logger.Anomaly(ctx, tick.SymbolName, "flags_reconciled",
			"position", st.PositionQty, "expected", in.Projected())
		metrics.Anomalies.WithLabelValues("flags_reconciled").Inc()
	}

	d := r.Decision
	d.Strategy = Name
	return d
}

// confirmFill settles the expected position against the venue. A pending
// order that the venue has not reflected within fillConfirmTicks ticks is
// given up on and the venue position wins.
func (s *Strategy) confirmFill(ctx context.Context, symbol string, st *state.SymbolState) {
	if !st.Pending {
		if st.ExpectedPosition != st.PositionQty {
			logger.Debug(ctx, "Resyncing expected position",
				"symbol", symbol, "expected", st.ExpectedPosition, "venue", st.PositionQty)
			st.ExpectedPosition = st.PositionQty
		}
		return
	}

	if st.PositionQty == st.ExpectedPosition {
		st.Pending = false
		return
	}
	if st.ObservationCount-st.PendingAt >= s.fillConfirmTicks {
		logger.Anomaly(ctx, symbol, "unconfirmed_fill",
			"expected", st.ExpectedPosition, "venue", st.PositionQty,
			"ticks", st.ObservationCount-st.PendingAt)
		metrics.Anomalies.WithLabelValues("unconfirmed_fill").Inc()
		st.Pending = false
		st.ExpectedPosition = st.PositionQty
	}
}
