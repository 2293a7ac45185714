package execution

import (
	"context"

	"github.com/google/uuid"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/types"
)

const NinjaTraderName = "ninjatrader"

// NinjaTrader is the passthrough executor: the platform that sent the tick
// executes the returned decision itself, so every call only logs and succeeds.
type NinjaTrader struct{}

var _ interfaces.Executor = (*NinjaTrader)(nil)

func NewNinjaTrader() *NinjaTrader { return &NinjaTrader{} }

func (n *NinjaTrader) Name() string { return NinjaTraderName }

func (n *NinjaTrader) PlaceOrder(ctx context.Context, symbol string, d types.Decision) (types.ExecutionResult, error) {
	id := uuid.NewString()
	logger.Info(ctx, "Decision passed through to NinjaTrader",
		"symbol", symbol,
		"action", d.Action,
		"side", d.Side,
		"quantity", d.Quantity,
		"order_id", id,
	)
	return types.ExecutionResult{Success: true, OrderID: id}, nil
}

func (n *NinjaTrader) FlattenPosition(ctx context.Context, symbol string) (types.ExecutionResult, error) {
	logger.Info(ctx, "Flatten passed through to NinjaTrader", "symbol", symbol)
	return types.ExecutionResult{Success: true}, nil
}

func (n *NinjaTrader) CancelOrder(ctx context.Context, orderID string) (types.ExecutionResult, error) {
	return types.ExecutionResult{Success: true, OrderID: orderID}, nil
}

// GetPosition is always zero; positions arrive with each tick.
func (n *NinjaTrader) GetPosition(ctx context.Context, symbol string) (int, error) {
	return 0, nil
}
