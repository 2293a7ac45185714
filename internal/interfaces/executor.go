package interfaces

import (
	"context"

	"vwap-reversion-bot/internal/types"
)

type Executor interface {
	Name() string
	PlaceOrder(ctx context.Context, symbol string, d types.Decision) (types.ExecutionResult, error)
	FlattenPosition(ctx context.Context, symbol string) (types.ExecutionResult, error)
	CancelOrder(ctx context.Context, orderID string) (types.ExecutionResult, error)
	GetPosition(ctx context.Context, symbol string) (int, error)
}
