package interfaces

import (
	"context"

	"vwap-reversion-bot/internal/types"
)

type Engine interface {
	Decide(ctx context.Context, tick types.Tick) types.Decision
}
