package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/metrics"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/types"
)

// rollover starts a fresh statistics window when the trading day changes.
// The first tick ever seen for a symbol only records its date.
func (e *engine) rollover(ctx context.Context, tick types.Tick, st *state.SymbolState) {
	next := tick.SessionDate
	prev := st.CurrentSessionDate
	if next == prev {
		return
	}
	if prev != "" {
		if err := validateSessionTransition(prev, next); err != nil {
			logger.Anomaly(ctx, tick.SymbolName, "session_transition",
				"from", prev, "to", next, "error", err.Error())
			metrics.Anomalies.WithLabelValues("session_transition").Inc()
		}
		logger.Info(ctx, "Session reset",
			"symbol", tick.SymbolName,
			"from", prev,
			"to", next,
			"observations", st.ObservationCount,
			"position", st.PositionQty,
		)
		e.strategy.ResetSession(st)
		metrics.SessionResets.WithLabelValues(tick.SymbolName).Inc()
	}
	st.CurrentSessionDate = next
}

// validateSessionTransition flags date changes that look like a feed error.
// It never blocks the reset.
func validateSessionTransition(prev, next string) error {
	if len(prev) != 10 || len(next) != 10 {
		return fmt.Errorf("session dates must be YYYY-MM-DD, got %q -> %q", prev, next)
	}
	p, err := time.Parse("2006-01-02", prev)
	if err != nil {
		return fmt.Errorf("previous session date: %w", err)
	}
	n, err := time.Parse("2006-01-02", next)
	if err != nil {
		return fmt.Errorf("next session date: %w", err)
	}
	if d := n.Year() - p.Year(); d > 1 || d < -1 {
		return errors.New("session year jumped by more than one")
	}
	return nil
}

// reconcilePosition adopts the venue's position. A change the strategy was
// waiting for is expected; anything else once the symbol is live is a mismatch.
func (e *engine) reconcilePosition(ctx context.Context, tick types.Tick, st *state.SymbolState) {
	venue := tick.PositionQty
	if st.PositionQty == venue {
		return
	}
	switch {
	case st.Pending && venue == st.ExpectedPosition:
		logger.Debug(ctx, "Venue position caught up",
			"symbol", tick.SymbolName, "position", venue)
	case st.ObservationCount > 0:
		logger.Warn(ctx, "Position mismatch, using venue value",
			"symbol", tick.SymbolName,
			"engine", st.PositionQty,
			"venue", venue,
		)
		metrics.Anomalies.WithLabelValues("position_mismatch").Inc()
	}
	st.PositionQty = venue
}
