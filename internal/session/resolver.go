package session

import (
	"context"
	"fmt"
	"time"

	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/metrics"
	"vwap-reversion-bot/internal/store"
)

// Clock is a wall-clock time of day in minutes after midnight.
type Clock int

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is an inclusive time-of-day range. End before Start wraps past midnight.
type Window struct {
	Start, End Clock
}

func (w Window) Contains(c Clock) bool {
	if w.End < w.Start {
		return c >= w.Start || c <= w.End
	}
	return c >= w.Start && c <= w.End
}

// Config is the policy regime of one named session.
type Config struct {
	Name             string
	Window           Window
	FlattenAt        *Clock
	ZExit            float64
	ZEntryLevels     []float64
	EntryQuantities  []int
	MaxTotalPosition int
}

// Levels is the number of layered entry levels.
func (c Config) Levels() int { return len(c.ZEntryLevels) }

// Resolution is what the resolver knows about one instant.
type Resolution struct {
	Name           string
	Config         Config
	TradingAllowed bool
	ShouldFlatten  bool
	Fallback       bool
	Holiday        bool
}

// HolidayChecker reports exchange holidays by reference-timezone date.
type HolidayChecker interface {
	IsHoliday(date string) bool
}

type Resolver struct {
	loc         *time.Location
	sessions    []Config
	noTrading   []Window
	defaultName string
	holidays    HolidayChecker
}

// NewResolver compiles the session table. Any malformed entry or an unknown
// default session is a configuration error.
func NewResolver(cfg *store.Config, holidays HolidayChecker) (*Resolver, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	r := &Resolver{loc: loc, defaultName: cfg.DefaultSession, holidays: holidays}
	for _, sc := range cfg.Sessions {
		c, err := compile(sc)
		if err != nil {
			return nil, err
		}
		r.sessions = append(r.sessions, c)
	}
	if _, ok := r.lookup(cfg.DefaultSession); !ok {
		return nil, fmt.Errorf("unknown default session %q", cfg.DefaultSession)
	}

	for _, p := range cfg.NoTradingPeriods {
		start, err := ParseClock(p.Start)
		if err != nil {
			return nil, fmt.Errorf("no-trading period: %w", err)
		}
		end, err := ParseClock(p.End)
		if err != nil {
			return nil, fmt.Errorf("no-trading period: %w", err)
		}
		r.noTrading = append(r.noTrading, Window{Start: start, End: end})
	}
	return r, nil
}

func compile(sc store.SessionConfig) (Config, error) {
	start, err := ParseClock(sc.StartTime)
	if err != nil {
		return Config{}, fmt.Errorf("session %s: %w", sc.Name, err)
	}
	end, err := ParseClock(sc.EndTime)
	if err != nil {
		return Config{}, fmt.Errorf("session %s: %w", sc.Name, err)
	}
	if len(sc.ZEntryLevels) != len(sc.EntryQuantities) {
		return Config{}, fmt.Errorf("session %s: %d entry levels but %d quantities",
			sc.Name, len(sc.ZEntryLevels), len(sc.EntryQuantities))
	}

	c := Config{
		Name:             sc.Name,
		Window:           Window{Start: start, End: end},
		ZExit:            sc.ZExit,
		ZEntryLevels:     append([]float64(nil), sc.ZEntryLevels...),
		EntryQuantities:  append([]int(nil), sc.EntryQuantities...),
		MaxTotalPosition: sc.MaxTotalPosition,
	}
	if sc.FlattenTime != "" {
		f, err := ParseClock(sc.FlattenTime)
		if err != nil {
			return Config{}, fmt.Errorf("session %s: %w", sc.Name, err)
		}
		c.FlattenAt = &f
	}
	return c, nil
}

func (r *Resolver) lookup(name string) (Config, bool) {
	for _, c := range r.sessions {
		if c.Name == name {
			return c, true
		}
	}
	return Config{}, false
}

// Location is the reference timezone all windows are expressed in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Session returns the named session's configuration.
func (r *Resolver) Session(name string) (Config, bool) { return r.lookup(name) }

// Resolve classifies now. It never fails: an instant outside every session
// resolves to the default session.
func (r *Resolver) Resolve(now time.Time) Resolution {
	local := now.In(r.loc)
	clock := ClockOf(local)

	res := Resolution{TradingAllowed: true}
	for _, c := range r.sessions {
		if c.Window.Contains(clock) {
			res.Name, res.Config = c.Name, c
			break
		}
	}
	if res.Name == "" {
		res.Config, _ = r.lookup(r.defaultName)
		res.Name = r.defaultName
		res.Fallback = true
		logger.Warn(context.Background(), "No session matches time, using default",
			"time", clock.String(), "default_session", r.defaultName)
		metrics.Anomalies.WithLabelValues("session_fallback").Inc()
	}

	for _, w := range r.noTrading {
		if w.Contains(clock) {
			res.TradingAllowed = false
			break
		}
	}
	if r.holidays != nil && r.holidays.IsHoliday(local.Format("2006-01-02")) {
		res.TradingAllowed = false
		res.Holiday = true
	}

	if f := res.Config.FlattenAt; f != nil && clock >= *f {
		res.ShouldFlatten = true
	}
	return res
}
