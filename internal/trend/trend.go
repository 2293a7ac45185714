// Package trend detects trending tape so the mean-reversion ladder can stand
// aside. Any one of five signals is enough: ADX strength, a z-score stuck
// beyond a threshold, high tick velocity, strong momentum, or price running
// away while the z-score keeps stretching.
package trend

import (
	"math"
	"time"

	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/ta"
)

const (
	priceHistory = 20
	zHistory     = 10
)

type Params struct {
	Session             string
	ADXPeriod           int
	ADXThreshold        float64
	PersistenceMinutes  float64
	PersistenceZ        float64
	MomentumThreshold   float64
	VelocityThreshold   float64
	DivergenceThreshold float64
}

func ParamsFromConfig(cfg *store.Config) Params {
	tf := cfg.TrendFilter
	return Params{
		Session:             tf.Session,
		ADXPeriod:           tf.ADXPeriod,
		ADXThreshold:        tf.ADXThreshold,
		PersistenceMinutes:  tf.PersistenceMinutes,
		PersistenceZ:        tf.PersistenceZ,
		MomentumThreshold:   tf.MomentumThreshold,
		VelocityThreshold:   tf.VelocityThreshold,
		DivergenceThreshold: tf.MomentumDivergenceThreshold,
	}
}

// State is the per-symbol scratch the filter keeps between ticks.
type State struct {
	Prices     []float64 `json:"prices,omitempty"`
	AbsZ       []float64 `json:"absZ,omitempty"`
	ADX        ta.ADX    `json:"-"`
	AboveSince time.Time `json:"aboveSince,omitempty"`
}

func (s *State) Reset() {
	s.Prices = nil
	s.AbsZ = nil
	s.ADX.Reset()
	s.AboveSince = time.Time{}
}

// Clone deep-copies the slices so snapshots do not alias live state.
func (s State) Clone() State {
	c := s
	c.Prices = append([]float64(nil), s.Prices...)
	c.AbsZ = append([]float64(nil), s.AbsZ...)
	c.ADX.Highs = append([]float64(nil), s.ADX.Highs...)
	c.ADX.Lows = append([]float64(nil), s.ADX.Lows...)
	c.ADX.DX = append([]float64(nil), s.ADX.DX...)
	return c
}

// Signals is the breakdown behind one trend verdict.
type Signals struct {
	ADX          float64
	ADXReady     bool
	Momentum     float64
	Persistent   bool
	HighVelocity bool
	Divergence   bool
	Detected     bool
}

type Filter struct {
	p Params
}

func New(p Params) *Filter {
	return &Filter{p: p}
}

// Applies reports whether the filter runs in the named session.
func (f *Filter) Applies(session string) bool {
	return f.p.Session == "" || f.p.Session == session
}

// Update feeds one tick into st and returns the signals. high and low are the
// ask and bid of the tick.
func (f *Filter) Update(st *State, z, high, low, price float64, now time.Time) Signals {
	var sig Signals

	st.Prices = ta.Tail(append(st.Prices, price), priceHistory)
	if len(st.Prices) >= 5 {
		sig.Momentum = 0.7*ta.PctChange(st.Prices, 3) + 0.3*ta.PctChange(st.Prices, 6)
	}

	st.ADX.Period = f.p.ADXPeriod
	sig.ADX, sig.ADXReady = st.ADX.Update(high, low)

	sig.Persistent = f.persistent(st, z, now)

	if len(st.Prices) >= 10 {
		sig.HighVelocity = ta.MeanAbsChange(st.Prices, 5) > f.p.VelocityThreshold
		sig.Divergence = f.divergence(st, z)
	}

	sig.Detected = (sig.ADXReady && sig.ADX > f.p.ADXThreshold) ||
		sig.Persistent ||
		sig.HighVelocity ||
		math.Abs(sig.Momentum) > f.p.MomentumThreshold ||
		sig.Divergence
	return sig
}

func (f *Filter) persistent(st *State, z float64, now time.Time) bool {
	if math.Abs(z) <= f.p.PersistenceZ {
		st.AboveSince = time.Time{}
		return false
	}
	if st.AboveSince.IsZero() {
		st.AboveSince = now
		return false
	}
	return now.Sub(st.AboveSince).Minutes() > f.p.PersistenceMinutes
}

// divergence fires when price has moved hard over the last five ticks while
// an already extreme z-score keeps changing.
func (f *Filter) divergence(st *State, z float64) bool {
	st.AbsZ = ta.Tail(append(st.AbsZ, math.Abs(z)), zHistory)
	if len(st.AbsZ) < 5 {
		return false
	}
	prices := ta.Tail(st.Prices, 5)
	zs := ta.Tail(st.AbsZ, 5)
	priceTrend := prices[len(prices)-1] - prices[0]
	zTrend := zs[len(zs)-1] - zs[0]
	return math.Abs(priceTrend) > f.p.DivergenceThreshold &&
		math.Abs(zTrend) > 0.5 &&
		math.Abs(z) > 2.5
}
