// Package state holds the per-symbol statistics and trigger flags the engine
// mutates once per tick.
package state

import (
	"sort"
	"sync"

	"vwap-reversion-bot/internal/policy"
	"vwap-reversion-bot/internal/trend"
)

type SymbolState struct {
	ObservationCount   int          `json:"observationCount"`
	EmaDeviation       float64      `json:"emaDeviation"`
	EmaVariance        float64      `json:"emaVariance"`
	CurrentSessionDate string       `json:"currentSessionDate"`
	PositionQty        int          `json:"positionQty"`
	Triggered          policy.Flags `json:"triggered"`
	SessionName        string       `json:"sessionName"`

	// ExpectedPosition is where the venue position should land once the last
	// entry fills. Pending stays set until it does, or until FillConfirmTicks
	// ticks have passed since PendingAt.
	ExpectedPosition int  `json:"expectedPosition"`
	Pending          bool `json:"pending"`
	PendingAt        int  `json:"pendingAt"`

	LastZScore float64     `json:"lastZScore"`
	Trend      trend.State `json:"trend"`
}

// New returns a symbol state primed with the initial variance prior.
func New(initialVariance float64) *SymbolState {
	return &SymbolState{EmaVariance: initialVariance}
}

// Reset starts a new trading day. The venue position survives; everything
// derived from the previous day does not.
func (s *SymbolState) Reset(initialVariance float64) {
	s.ObservationCount = 0
	s.EmaDeviation = 0
	s.EmaVariance = initialVariance
	s.Triggered = policy.NewFlags(len(s.Triggered.Long))
	s.ExpectedPosition = s.PositionQty
	s.Pending = false
	s.PendingAt = 0
	s.LastZScore = 0
	s.Trend.Reset()
}

// Clone returns a deep copy.
func (s *SymbolState) Clone() SymbolState {
	c := *s
	c.Triggered = s.Triggered.Clone()
	c.Trend = s.Trend.Clone()
	return c
}

type entry struct {
	mu sync.Mutex
	st *SymbolState
}

// Store maps symbols to their state. Entries are created on first use and
// never evicted.
type Store struct {
	mu              sync.RWMutex
	entries         map[string]*entry
	initialVariance float64
}

func NewStore(initialVariance float64) *Store {
	return &Store{
		entries:         make(map[string]*entry),
		initialVariance: initialVariance,
	}
}

func (s *Store) get(symbol string) *entry {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[symbol]; ok {
		return e
	}
	e = &entry{st: New(s.initialVariance)}
	s.entries[symbol] = e
	return e
}

// With runs fn holding the symbol's lock, creating the state if needed.
// Ticks for one symbol are therefore applied one at a time.
func (s *Store) With(symbol string, fn func(st *SymbolState)) {
	e := s.get(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.st)
}

// Snapshot returns a copy of the symbol's state, or false if it has never been seen.
func (s *Store) Snapshot(symbol string) (SymbolState, bool) {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()
	if !ok {
		return SymbolState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.Clone(), true
}

// Symbols lists known symbols in sorted order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
