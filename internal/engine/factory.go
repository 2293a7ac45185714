package engine

import (
	"time"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/store"
)

func New(cfg *store.Config, states *state.Store, strat interfaces.Strategy, loc *time.Location, opts ...Option) interfaces.Engine {
	return newEngine(cfg, states, strat, loc, opts...)
}
