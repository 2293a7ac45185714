package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"vwap-reversion-bot/internal/session"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/strategy/vwap"
	"vwap-reversion-bot/internal/tradelog"
	"vwap-reversion-bot/internal/types"
)

var chicago, _ = time.LoadLocation("America/Chicago")

type fakeExecutor struct {
	mu       sync.Mutex
	placed   []types.Decision
	flattens int
	fail     bool
}

func (f *fakeExecutor) Name() string { return "fake" }

func (f *fakeExecutor) PlaceOrder(ctx context.Context, symbol string, d types.Decision) (types.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return types.ExecutionResult{}, errors.New("venue rejected order")
	}
	f.placed = append(f.placed, d)
	return types.ExecutionResult{Success: true, OrderID: fmt.Sprintf("ord-%d", len(f.placed)), ExecutedPrice: 19990}, nil
}

func (f *fakeExecutor) FlattenPosition(ctx context.Context, symbol string) (types.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flattens++
	return types.ExecutionResult{Success: true, OrderID: "flat"}, nil
}

func (f *fakeExecutor) CancelOrder(ctx context.Context, orderID string) (types.ExecutionResult, error) {
	return types.ExecutionResult{Success: true, OrderID: orderID}, nil
}

func (f *fakeExecutor) GetPosition(ctx context.Context, symbol string) (int, error) { return 0, nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.DecisionEvent
}

func (p *recordingPublisher) Publish(ev types.DecisionEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func testConfig() *store.Config {
	cfg := store.Default()
	cfg.TrendFilter.Enabled = false
	cfg.Strategy.WarmupObservations = 3
	cfg.Sessions[0].ZEntryLevels = []float64{2.0, 6.0}
	cfg.Execution.Timeout = time.Second
	return cfg
}

func newTestEngine(t *testing.T, cfg *store.Config, opts ...Option) (*engine, *state.Store) {
	t.Helper()
	r, err := session.NewResolver(cfg, nil)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	states := state.NewStore(cfg.Strategy.InitialEMAVariance)
	return newEngine(cfg, states, vwap.New(cfg, r), chicago, opts...), states
}

func tick(symbol string, deviation float64, pos int, date string) types.Tick {
	return types.Tick{
		SymbolName:   symbol,
		TimestampISO: date + "T09:00:00",
		LastPrice:    20000 + deviation,
		VWAP:         20000,
		BidPrice:     20000 + deviation - 0.25,
		AskPrice:     20000 + deviation,
		PositionQty:  pos,
		SessionDate:  date,
	}
}

func TestInvalidTickHolds(t *testing.T) {
	e, states := newTestEngine(t, testConfig())

	cases := []types.Tick{
		{},
		{SymbolName: "NQ", LastPrice: math.NaN()},
		{SymbolName: "NQ", VWAP: math.Inf(1)},
		{SymbolName: "NQ", TickSize: -1},
	}
	for i, tk := range cases {
		d := e.Decide(context.Background(), tk)
		if d.Action != types.ActionHold || d.Reason != "invalid_tick" {
			t.Errorf("case %d: Expected invalid_tick hold, got %+v", i, d)
		}
	}
	if len(states.Symbols()) != 0 {
		t.Errorf("Expected no state for invalid ticks, got %v", states.Symbols())
	}
}

func TestWarmupThenEntry(t *testing.T) {
	e, states := newTestEngine(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if d := e.Decide(ctx, tick("NQ", 0, 0, "2026-10-14")); d.Action != types.ActionHold {
			t.Fatalf("Expected hold during warmup, got %+v", d)
		}
	}
	d := e.Decide(ctx, tick("NQ", -10, 0, "2026-10-14"))
	if d.Action != types.ActionPlace || d.Side != types.SideBuy || d.Quantity != 1 {
		t.Fatalf("Expected buy 1, got %+v", d)
	}

	st, ok := states.Snapshot("NQ")
	if !ok {
		t.Fatal("Expected state for NQ")
	}
	if st.ObservationCount != 4 || st.CurrentSessionDate != "2026-10-14" {
		t.Errorf("Expected 4 observations on 2026-10-14, got %d on %s", st.ObservationCount, st.CurrentSessionDate)
	}
	if !st.Triggered.Long[0] {
		t.Error("Expected level 1 flag set")
	}
}

func TestSessionRolloverResetsStatistics(t *testing.T) {
	e, states := newTestEngine(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e.Decide(ctx, tick("ES", 1, 0, "2026-10-14"))
	}
	d := e.Decide(ctx, tick("ES", 1, 0, "2026-10-15"))
	if d.Action != types.ActionHold || d.Reason != "warmup" {
		t.Errorf("Expected warmup hold after rollover, got %+v", d)
	}
	st, _ := states.Snapshot("ES")
	if st.ObservationCount != 1 || st.CurrentSessionDate != "2026-10-15" {
		t.Errorf("Expected a fresh window on 2026-10-15, got %d on %s", st.ObservationCount, st.CurrentSessionDate)
	}
}

func TestRolloverKeepsPosition(t *testing.T) {
	e, states := newTestEngine(t, testConfig())
	ctx := context.Background()

	e.Decide(ctx, tick("NQ", 0, 2, "2026-10-14"))
	e.Decide(ctx, tick("NQ", 0, 2, "2026-10-15"))

	st, _ := states.Snapshot("NQ")
	if st.PositionQty != 2 {
		t.Errorf("Expected position 2 to survive rollover, got %d", st.PositionQty)
	}
}

func TestVenuePositionWins(t *testing.T) {
	e, states := newTestEngine(t, testConfig())
	ctx := context.Background()

	e.Decide(ctx, tick("NQ", 0, 0, "2026-10-14"))
	e.Decide(ctx, tick("NQ", 0, -3, "2026-10-14"))

	st, _ := states.Snapshot("NQ")
	if st.PositionQty != -3 {
		t.Errorf("Expected venue position -3, got %d", st.PositionQty)
	}
}

func TestValidateSessionTransition(t *testing.T) {
	tests := []struct {
		prev, next string
		wantErr    bool
	}{
		{"2026-10-14", "2026-10-15", false},
		{"2026-12-31", "2027-01-02", false},
		{"2026-10-15", "2026-10-14", false},
		{"2026-10-14", "2029-10-14", true},
		{"2026-10-14", "20261015", true},
		{"2026-10-14", "2026-13-01", true},
	}
	for _, tt := range tests {
		err := validateSessionTransition(tt.prev, tt.next)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s -> %s: Expected error %v, got %v", tt.prev, tt.next, tt.wantErr, err)
		}
	}
}

func TestTickTime(t *testing.T) {
	fixed := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, testConfig(), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-10-14T14:00:00Z", time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC)},
		{"2026-10-14T09:00:00.250-05:00", time.Date(2026, 10, 14, 14, 0, 0, 250e6, time.UTC)},
		{"2026-10-14T09:00:00", time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC)},
		{"2026-10-14 09:00:00", time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC)},
		{"", fixed},
		{"yesterday", fixed},
	}
	for _, tt := range tests {
		got := e.tickTime(ctx, types.Tick{SymbolName: "NQ", TimestampISO: tt.in})
		if !got.Equal(tt.want) {
			t.Errorf("%q: Expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestDirectExecution(t *testing.T) {
	cfg := testConfig()
	ex := &fakeExecutor{}
	journal := tradelog.New(t.TempDir(), chicago)
	defer journal.Close()
	pub := &recordingPublisher{}

	e, _ := newTestEngine(t, cfg, WithJournal(journal), WithPublisher(pub), WithExecutor(ex))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e.Decide(ctx, tick("NQ", 0, 0, "2026-10-14"))
	}
	if d := e.Decide(ctx, tick("NQ", -10, 0, "2026-10-14")); d.Action != types.ActionPlace {
		t.Fatalf("Expected entry, got %+v", d)
	}

	if len(ex.placed) != 1 || ex.placed[0].Side != types.SideBuy {
		t.Fatalf("Expected one buy sent to the executor, got %+v", ex.placed)
	}
	if len(pub.events) != 4 {
		t.Errorf("Expected 4 published decisions, got %d", len(pub.events))
	}
	if last := pub.events[3]; last.Symbol != "NQ" || last.Observations != 4 || last.Decision.Action != types.ActionPlace {
		t.Errorf("Unexpected published event %+v", last)
	}

	day := time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC)
	execs, err := journal.ReadExecutions(day)
	if err != nil {
		t.Fatalf("ReadExecutions failed: %v", err)
	}
	if len(execs) != 1 || execs[0].OrderID != "ord-1" || execs[0].FillPrice() != 19990 {
		t.Errorf("Unexpected journaled executions %+v", execs)
	}
	decisions, err := journal.ReadDecisions(day)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 4 {
		t.Errorf("Expected 4 journaled decisions, got %d", len(decisions))
	}
}

func TestDirectExecutionFailureIsJournaled(t *testing.T) {
	ex := &fakeExecutor{fail: true}
	journal := tradelog.New(t.TempDir(), chicago)
	defer journal.Close()

	e, states := newTestEngine(t, testConfig(), WithJournal(journal), WithExecutor(ex))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e.Decide(ctx, tick("NQ", 0, 0, "2026-10-14"))
	}
	e.Decide(ctx, tick("NQ", -10, 0, "2026-10-14"))

	execs, _ := journal.ReadExecutions(time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC))
	if len(execs) != 1 || execs[0].Success || execs[0].Error != "venue rejected order" {
		t.Errorf("Expected one failed execution, got %+v", execs)
	}
	// A failed order is not rolled back; the fill check settles it.
	st, _ := states.Snapshot("NQ")
	if !st.Triggered.Long[0] || !st.Pending {
		t.Errorf("Expected the level to stay triggered and pending, got %+v", st.Triggered)
	}
}

func TestFlattenOrder(t *testing.T) {
	if side, qty := flattenOrder(3); side != types.SideSell || qty != 3 {
		t.Errorf("Expected sell 3, got %s %d", side, qty)
	}
	if side, qty := flattenOrder(-2); side != types.SideBuy || qty != 2 {
		t.Errorf("Expected buy 2, got %s %d", side, qty)
	}
}

func TestConcurrentSymbols(t *testing.T) {
	e, states := newTestEngine(t, testConfig())
	ctx := context.Background()
	symbols := []string{"NQ", "ES", "YM", "RTY"}

	var wg sync.WaitGroup
	for _, sym := range symbols {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					e.Decide(ctx, tick(sym, 0.5, 0, "2026-10-14"))
				}
			}(sym)
		}
	}
	wg.Wait()

	for _, sym := range symbols {
		st, ok := states.Snapshot(sym)
		if !ok {
			t.Fatalf("Expected state for %s", sym)
		}
		if st.ObservationCount != 200 {
			t.Errorf("%s: Expected 200 observations, got %d", sym, st.ObservationCount)
		}
	}
}
