package vwap

import (
	"context"
	"testing"
	"time"

	"vwap-reversion-bot/internal/session"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/types"
)

// 09:00 in Chicago, inside the ny session.
var nyMorning = time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC)

func testConfig() *store.Config {
	cfg := store.Default()
	cfg.TrendFilter.Enabled = false
	cfg.Strategy.WarmupObservations = 3
	cfg.Strategy.FillConfirmTicks = 2
	cfg.Sessions[0].ZEntryLevels = []float64{2.0, 6.0}
	return cfg
}

func newTestStrategy(t *testing.T, cfg *store.Config) *Strategy {
	t.Helper()
	r, err := session.NewResolver(cfg, nil)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return New(cfg, r)
}

func tickAt(deviation float64, pos int) types.Tick {
	return types.Tick{
		SymbolName:  "NQ",
		LastPrice:   20000 + deviation,
		VWAP:        20000,
		BidPrice:    20000 + deviation - 0.25,
		AskPrice:    20000 + deviation,
		PositionQty: pos,
		SessionDate: "2026-10-14",
	}
}

// decide mirrors the engine: the venue position is applied before the strategy runs.
func decide(s *Strategy, st *state.SymbolState, deviation float64, pos int, now time.Time) types.Decision {
	tick := tickAt(deviation, pos)
	st.PositionQty = tick.PositionQty
	return s.Decide(context.Background(), tick, now, st)
}

func TestFirstTickSeedsStatistics(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	st := state.New(16)

	d := decide(s, st, 3, 0, nyMorning)
	if d.Action != types.ActionHold || d.Reason != "warmup" {
		t.Errorf("Expected warmup hold, got %s %s", d.Action, d.Reason)
	}
	if d.Strategy != Name {
		t.Errorf("Expected strategy %s, got %s", Name, d.Strategy)
	}
	if st.ObservationCount != 1 || st.EmaDeviation != 3 || st.EmaVariance != 6 {
		t.Errorf("Expected count 1, ema 3, variance 6, got %d, %v, %v",
			st.ObservationCount, st.EmaDeviation, st.EmaVariance)
	}
	if st.SessionName != "ny" || len(st.Triggered.Long) != 2 {
		t.Errorf("Expected ny session with 2 levels, got %s / %d", st.SessionName, len(st.Triggered.Long))
	}
}

func TestEntryWaitsForFill(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	st := state.New(16)
	for i := 0; i < 3; i++ {
		decide(s, st, 0, 0, nyMorning)
	}

	d := decide(s, st, -10, 0, nyMorning)
	if d.Action != types.ActionPlace || d.Side != types.SideBuy || d.Reason != "entry_long_L1" {
		t.Fatalf("Expected entry_long_L1 buy, got %+v (z=%v)", d, st.LastZScore)
	}
	if !st.Pending || st.ExpectedPosition != 1 {
		t.Errorf("Expected pending fill to 1, got %v / %d", st.Pending, st.ExpectedPosition)
	}

	// Venue has not reported the fill yet; the level must not fire again.
	d = decide(s, st, -10, 0, nyMorning)
	if d.Action != types.ActionHold {
		t.Fatalf("Expected hold while the fill is pending, got %+v", d)
	}
	if !st.Triggered.Long[0] {
		t.Error("Expected level 1 to stay triggered")
	}

	d = decide(s, st, -10, 1, nyMorning)
	if d.Action != types.ActionHold {
		t.Errorf("Expected hold once filled, got %+v", d)
	}
	if st.Pending {
		t.Error("Expected fill to be confirmed")
	}
}

func TestUnconfirmedFillFallsBackToVenue(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	st := state.New(16)
	for i := 0; i < 3; i++ {
		decide(s, st, 0, 0, nyMorning)
	}
	if d := decide(s, st, -10, 0, nyMorning); d.Action != types.ActionPlace {
		t.Fatalf("Expected entry, got %+v", d)
	}
	decide(s, st, -10, 0, nyMorning)

	// Two ticks without the fill: the venue's flat position wins and the
	// level is re-armed.
	d := decide(s, st, -10, 0, nyMorning)
	if d.Action != types.ActionPlace || d.Reason != "entry_long_L1" {
		t.Fatalf("Expected level 1 to fire again, got %+v", d)
	}
	if st.ExpectedPosition != 1 || st.PendingAt != st.ObservationCount {
		t.Errorf("Expected a fresh pending entry, got expected=%d pendingAt=%d", st.ExpectedPosition, st.PendingAt)
	}
}

func TestExitInsideBandFlattens(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	st := state.New(16)
	var d types.Decision
	for i := 0; i < 3; i++ {
		d = decide(s, st, 0, 1, nyMorning)
	}
	// z is 0 with a long position on.
	if d.Action != types.ActionFlatten || d.Reason != "exit" {
		t.Fatalf("Expected exit flatten, got %+v", d)
	}
	if st.ExpectedPosition != 0 || !st.Pending {
		t.Errorf("Expected flatten to leave a pending flat expectation, got %d / %v", st.ExpectedPosition, st.Pending)
	}
}

func TestTradingRestrictionHolds(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	st := state.New(16)
	restricted := time.Date(2026, 10, 14, 12, 40, 0, 0, time.UTC) // 07:40 CT
	for i := 0; i < 5; i++ {
		d := decide(s, st, -50, 0, restricted)
		if d.Action != types.ActionHold || d.Reason != "trading_not_allowed" {
			t.Fatalf("Expected trading_not_allowed hold, got %+v", d)
		}
	}
}

func TestResetSessionKeepsPosition(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	st := state.New(16)
	for i := 0; i < 5; i++ {
		decide(s, st, 1, 2, nyMorning)
	}
	s.ResetSession(st)
	if st.ObservationCount != 0 || st.EmaVariance != 16 {
		t.Errorf("Expected reset statistics, got count=%d variance=%v", st.ObservationCount, st.EmaVariance)
	}
	if st.PositionQty != 2 {
		t.Errorf("Expected position 2 kept, got %d", st.PositionQty)
	}
}

func TestTrendFilterBlocksEntries(t *testing.T) {
	cfg := testConfig()
	cfg.TrendFilter.Enabled = true
	s := newTestStrategy(t, cfg)
	st := state.New(16)

	// A 3% jump over three ticks is strong momentum.
	prices := []float64{0, 0, 0, 0, -600}
	var d types.Decision
	for _, dev := range prices {
		d = decide(s, st, dev, 0, nyMorning)
	}
	if d.Action != types.ActionHold || d.Reason != "trend_filter" {
		t.Errorf("Expected trend_filter hold, got %+v", d)
	}
}

func TestSessionChangeClearsTriggers(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy.WarmupObservations = 10
	s := newTestStrategy(t, cfg)
	st := state.New(16)

	decide(s, st, 0, 1, nyMorning)
	st.Triggered.Long[0] = true

	// Same session: flags carry over.
	decide(s, st, 0, 1, nyMorning.Add(time.Minute))
	if !st.Triggered.Long[0] {
		t.Fatal("Expected level 1 to stay triggered within the ny session")
	}

	// 18:00 in Chicago, inside the overnight session.
	overnight := time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)
	decide(s, st, 0, 1, overnight)
	if st.SessionName != "overnight" {
		t.Fatalf("Expected overnight session, got %s", st.SessionName)
	}
	for i := range st.Triggered.Long {
		if st.Triggered.Long[i] || st.Triggered.Short[i] {
			t.Errorf("Expected all flags cleared after session change, got %+v", st.Triggered)
			break
		}
	}
	if st.PositionQty != 1 {
		t.Errorf("Expected position 1 to survive the session change, got %d", st.PositionQty)
	}
}
