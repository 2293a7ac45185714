// Package policy is the layered mean-reversion state machine. Evaluate is a
// pure function: it returns the next entry-level flags with the decision
// instead of mutating the caller's state.
package policy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"vwap-reversion-bot/internal/session"
	"vwap-reversion-bot/internal/types"
)

// Flags records which entry levels have fired since the last exit or reset,
// one slot per configured level and direction.
type Flags struct {
	Long  []bool `json:"long"`
	Short []bool `json:"short"`
}

func NewFlags(levels int) Flags {
	return Flags{Long: make([]bool, levels), Short: make([]bool, levels)}
}

func (f Flags) Clone() Flags {
	return Flags{
		Long:  append([]bool(nil), f.Long...),
		Short: append([]bool(nil), f.Short...),
	}
}

// Resized returns cleared flags when the level count differs, otherwise f.
func (f Flags) Resized(levels int) Flags {
	if len(f.Long) == levels && len(f.Short) == levels {
		return f
	}
	return NewFlags(levels)
}

func (f Flags) Any() bool {
	for i := range f.Long {
		if f.Long[i] {
			return true
		}
	}
	for i := range f.Short {
		if f.Short[i] {
			return true
		}
	}
	return false
}

// ImpliedPosition is the position the triggered levels would add up to if every order filled.
func (f Flags) ImpliedPosition(quantities []int) int {
	pos := 0
	for i, q := range quantities {
		if i < len(f.Long) && f.Long[i] {
			pos += q
		}
		if i < len(f.Short) && f.Short[i] {
			pos -= q
		}
	}
	return pos
}

// Params are the session-independent guards.
type Params struct {
	WarmupObservations int
	MinVariance        float64
	MinStdTicks        float64
	MaxSpreadTicks     float64 // 0 disables the spread guard
	FirstEntryLimit    bool
}

// Input is everything the policy needs to know about the current tick.
// Pending is set while an entry has been sent but the venue position has not
// caught up yet.
type Input struct {
	ZScore         float64
	Position       int // venue reported
	Pending        bool
	Expected       int // projected position while Pending
	Spread         float64
	Mid            float64
	Observations   int
	EmaVariance    float64
	TickSize       float64
	TradingAllowed bool
	ShouldFlatten  bool
	TrendDetected  bool
}

// Projected is the position entries are sized against.
func (in Input) Projected() int {
	if in.Pending {
		return in.Expected
	}
	return in.Position
}

type Result struct {
	Decision types.Decision
	Flags    Flags
	Reason   string
}

func hold(flags Flags, reason string) Result {
	return Result{Decision: types.Hold(reason), Flags: flags, Reason: reason}
}

func flatten(levels int, reason string) Result {
	return Result{Decision: types.Flatten(reason), Flags: NewFlags(levels), Reason: reason}
}

// Evaluate runs one tick through the guards, the exit rule, the position cap,
// trigger reconciliation and finally the layered entry ladder. At most one
// order is produced per call; every rejected path is a hold.
func Evaluate(p Params, sess session.Config, in Input, flags Flags) Result {
	levels := sess.Levels()
	flags = flags.Resized(levels).Clone()
	absZ := math.Abs(in.ZScore)

	if !in.TradingAllowed {
		return hold(flags, "trading_not_allowed")
	}
	if in.ShouldFlatten && in.Position != 0 {
		return flatten(levels, "session_flatten")
	}
	if in.Observations < p.WarmupObservations {
		return hold(flags, "warmup")
	}
	if in.TrendDetected {
		if absZ < sess.ZExit && in.Position != 0 {
			return flatten(levels, "exit_trend")
		}
		return hold(flags, "trend_filter")
	}
	if math.Sqrt(math.Max(in.EmaVariance, p.MinVariance)) < p.MinStdTicks*in.TickSize {
		return hold(flags, "low_volatility")
	}
	if p.MaxSpreadTicks > 0 && in.Spread > p.MaxSpreadTicks*in.TickSize {
		return hold(flags, "spread_guard")
	}

	if absZ < sess.ZExit && in.Position != 0 {
		return flatten(levels, "exit")
	}

	if max(abs(in.Position), abs(in.Projected())) >= sess.MaxTotalPosition {
		return hold(flags, "position_cap")
	}

	reconciled := false
	if flags.ImpliedPosition(sess.EntryQuantities) != in.Projected() {
		reconciled = flags.Any()
		flags = NewFlags(levels)
	}

	var res Result
	switch {
	case in.ZScore < 0:
		res = enter(p, sess, in, flags, types.SideBuy)
	case in.ZScore > 0:
		res = enter(p, sess, in, flags, types.SideSell)
	default:
		res = hold(flags, "no_signal")
	}
	if reconciled && res.Decision.Action == types.ActionHold {
		res.Reason = "flags_reconciled"
		res.Decision.Reason = res.Reason
	}
	return res
}

// enter walks the levels low to high and acts on the first untriggered level
// whose threshold is crossed. A level that would breach the cap stops the walk.
func enter(p Params, sess session.Config, in Input, flags Flags, side types.Side) Result {
	triggered := flags.Long
	if side == types.SideSell {
		triggered = flags.Short
	}

	absZ := math.Abs(in.ZScore)
	for i, thr := range sess.ZEntryLevels {
		if triggered[i] || absZ <= thr {
			continue
		}
		qty := sess.EntryQuantities[i]
		pos := in.Projected()
		if side == types.SideBuy && pos+qty > sess.MaxTotalPosition ||
			side == types.SideSell && pos-qty < -sess.MaxTotalPosition {
			return hold(flags, "position_cap")
		}

		triggered[i] = true
		reason := fmt.Sprintf("entry_%s_L%d", direction(side), i+1)
		d := types.Market(side, qty, reason)
		if i == 0 && p.FirstEntryLimit {
			px := RoundToTick(in.Mid, in.TickSize)
			d.OrderType = types.OrderLimit
			d.LimitPrice = &px
		}
		return Result{Decision: d, Flags: flags, Reason: reason}
	}
	return hold(flags, "no_signal")
}

// RoundToTick rounds price to the nearest multiple of tick in decimal arithmetic,
// so 4321.37 on a 0.25 tick gives exactly 4321.25.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	rounded := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t)
	f, _ := rounded.Float64()
	return f
}

func direction(side types.Side) string {
	if side == types.SideBuy {
		return "long"
	}
	return "short"
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
