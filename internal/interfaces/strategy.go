package interfaces

import (
	"context"
	"time"

	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/types"
)

// Strategy turns a tick plus the symbol's running state into a decision.
// Decide is called with exclusive access to st and may mutate it.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, tick types.Tick, now time.Time, st *state.SymbolState) types.Decision
	ResetSession(st *state.SymbolState)
}
