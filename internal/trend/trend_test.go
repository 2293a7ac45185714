package trend

import (
	"testing"
	"time"

	"vwap-reversion-bot/internal/store"
)

var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func newTestFilter() *Filter {
	return New(ParamsFromConfig(store.Default()))
}

func feed(f *Filter, st *State, prices []float64, z float64) Signals {
	var sig Signals
	for _, p := range prices {
		sig = f.Update(st, z, p+0.25, p-0.25, p, t0)
	}
	return sig
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestQuietTapeIsNotTrending(t *testing.T) {
	f := newTestFilter()
	var st State
	sig := feed(f, &st, repeat(4300, 30), 0.4)
	if sig.Detected {
		t.Errorf("Expected no trend on a flat tape, got %+v", sig)
	}
	if len(st.Prices) != priceHistory {
		t.Errorf("Expected price history capped at %d, got %d", priceHistory, len(st.Prices))
	}
}

func TestMomentum(t *testing.T) {
	f := newTestFilter()
	var st State
	sig := feed(f, &st, []float64{100, 100, 100, 100, 103}, 0)
	if sig.Momentum < 2.09 || sig.Momentum > 2.11 {
		t.Errorf("Expected momentum 2.1, got %v", sig.Momentum)
	}
	if !sig.Detected {
		t.Error("Expected strong momentum to count as a trend")
	}
}

func TestMomentumNeedsFivePrices(t *testing.T) {
	f := newTestFilter()
	var st State
	sig := feed(f, &st, []float64{100, 100, 100, 110}, 0)
	if sig.Momentum != 0 || sig.Detected {
		t.Errorf("Expected no momentum before five prices, got %+v", sig)
	}
}

func TestHighVelocity(t *testing.T) {
	f := newTestFilter()
	var st State
	prices := []float64{}
	for i := 0; i < 10; i++ {
		prices = append(prices, 10000+float64(i%2)*5)
	}
	sig := feed(f, &st, prices, 0)
	if !sig.HighVelocity {
		t.Errorf("Expected high velocity, got %+v", sig)
	}
}

func TestPersistence(t *testing.T) {
	f := newTestFilter()
	var st State

	if f.Update(&st, 2.0, 100, 99, 100, t0).Persistent {
		t.Fatal("Expected first crossing to only start the clock")
	}
	if f.Update(&st, -2.0, 100, 99, 100, t0.Add(30*time.Minute)).Persistent {
		t.Error("Expected exactly 30 minutes not to be persistent")
	}
	if !f.Update(&st, 2.0, 100, 99, 100, t0.Add(31*time.Minute)).Persistent {
		t.Error("Expected 31 minutes above threshold to be persistent")
	}

	f.Update(&st, 1.0, 100, 99, 100, t0.Add(32*time.Minute))
	if !st.AboveSince.IsZero() {
		t.Error("Expected dropping below threshold to reset the clock")
	}
	if f.Update(&st, 2.0, 100, 99, 100, t0.Add(70*time.Minute)).Persistent {
		t.Error("Expected a fresh crossing to restart the clock")
	}
}

func TestADXTrend(t *testing.T) {
	f := newTestFilter()
	var st State
	var sig Signals
	for i := 0; i < 15; i++ {
		step := float64(i)
		sig = f.Update(&st, 0, 101+step, 99+step, 100, t0)
		if i < 14 && sig.ADXReady {
			t.Fatalf("Expected ADX not ready after %d bars", i+1)
		}
	}
	if !sig.ADXReady || sig.ADX <= 25 {
		t.Errorf("Expected ADX above 25 on a one-way market, got %v", sig.ADX)
	}
	if !sig.Detected {
		t.Error("Expected ADX trend to be detected")
	}
}

func TestDivergence(t *testing.T) {
	f := newTestFilter()
	var st State
	feed(f, &st, repeat(10000, 9), 0)

	zs := []float64{2.6, 2.8, 3.0, 3.2, 3.4}
	var sig Signals
	for i, z := range zs {
		p := 10000.5 + 0.5*float64(i)
		sig = f.Update(&st, z, p+0.25, p-0.25, p, t0)
		if i < 4 && sig.Divergence {
			t.Fatalf("Expected no divergence with %d z values", i+1)
		}
	}
	if !sig.Divergence {
		t.Errorf("Expected divergence, got %+v", sig)
	}
	if sig.HighVelocity || sig.Persistent {
		t.Errorf("Expected divergence to be the only signal, got %+v", sig)
	}
}

func TestApplies(t *testing.T) {
	f := newTestFilter()
	if !f.Applies("ny") {
		t.Error("Expected filter to apply in ny")
	}
	if f.Applies("overnight") {
		t.Error("Expected filter not to apply overnight")
	}
}

func TestResetAndClone(t *testing.T) {
	f := newTestFilter()
	var st State
	feed(f, &st, repeat(100, 12), 3.0)

	c := st.Clone()
	st.Prices[0] = -1
	if c.Prices[0] != 100 {
		t.Error("Expected clone not to alias prices")
	}

	st.Reset()
	if len(st.Prices) != 0 || len(st.AbsZ) != 0 || len(st.ADX.Highs) != 0 || !st.AboveSince.IsZero() {
		t.Errorf("Expected empty state after reset, got %+v", st)
	}
}
