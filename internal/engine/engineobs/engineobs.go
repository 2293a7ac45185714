package engineobs

import (
	"context"
	"time"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/trace"
	"vwap-reversion-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Decide(ctx context.Context, tick types.Tick) types.Decision {
	ctx, span := trace.StartSpan(ctx, "engine.Decide")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Tick received",
		"symbol", tick.SymbolName,
		"last_price", tick.LastPrice,
		"bid", tick.BidPrice,
		"ask", tick.AskPrice,
		"vwap", tick.VWAP,
		"position", tick.PositionQty,
		"session_date", tick.SessionDate,
	)

	d := oe.engine.Decide(ctx, tick)

	logger.DebugSkip(ctx, 1, "Tick decided",
		"symbol", tick.SymbolName,
		"action", d.Action,
		"side", d.Side,
		"quantity", d.Quantity,
		"reason", d.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return d
}
