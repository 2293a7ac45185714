package executionobs

import (
	"context"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/trace"
	"vwap-reversion-bot/internal/types"
)

// observableExecutor wraps an Executor with logging and tracing.
type observableExecutor struct {
	executor interfaces.Executor
}

var _ interfaces.Executor = (*observableExecutor)(nil)

func Wrap(executor interfaces.Executor) interfaces.Executor {
	return &observableExecutor{
		executor: executor,
	}
}

func (oe *observableExecutor) Name() string { return oe.executor.Name() }

func (oe *observableExecutor) PlaceOrder(ctx context.Context, symbol string, d types.Decision) (types.ExecutionResult, error) {
	ctx, span := trace.StartSpan(ctx, "executor.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"executor", oe.executor.Name(),
		"symbol", symbol,
		"side", d.Side,
		"quantity", d.Quantity,
		"order_type", d.OrderType,
	)

	res, err := oe.executor.PlaceOrder(ctx, symbol, d)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"executor", oe.executor.Name(),
			"symbol", symbol,
			"side", d.Side,
			"quantity", d.Quantity,
		)
		return res, err
	}

	logger.InfoSkip(ctx, 1, "Order placed",
		"executor", oe.executor.Name(),
		"symbol", symbol,
		"order_id", res.OrderID,
		"success", res.Success,
		"error", res.ErrorMessage,
	)
	return res, nil
}

func (oe *observableExecutor) FlattenPosition(ctx context.Context, symbol string) (types.ExecutionResult, error) {
	ctx, span := trace.StartSpan(ctx, "executor.FlattenPosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Flattening position", "executor", oe.executor.Name(), "symbol", symbol)

	res, err := oe.executor.FlattenPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to flatten position", err,
			"executor", oe.executor.Name(), "symbol", symbol)
		return res, err
	}

	logger.InfoSkip(ctx, 1, "Position flattened",
		"executor", oe.executor.Name(),
		"symbol", symbol,
		"order_id", res.OrderID,
		"success", res.Success,
	)
	return res, nil
}

func (oe *observableExecutor) CancelOrder(ctx context.Context, orderID string) (types.ExecutionResult, error) {
	ctx, span := trace.StartSpan(ctx, "executor.CancelOrder")
	defer span.End()

	res, err := oe.executor.CancelOrder(ctx, orderID)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err,
			"executor", oe.executor.Name(), "order_id", orderID)
		return res, err
	}
	logger.InfoSkip(ctx, 1, "Order cancelled", "executor", oe.executor.Name(), "order_id", orderID)
	return res, nil
}

func (oe *observableExecutor) GetPosition(ctx context.Context, symbol string) (int, error) {
	ctx, span := trace.StartSpan(ctx, "executor.GetPosition")
	defer span.End()

	qty, err := oe.executor.GetPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch position", err,
			"executor", oe.executor.Name(), "symbol", symbol)
		return 0, err
	}
	logger.DebugSkip(ctx, 1, "Position fetched", "executor", oe.executor.Name(), "symbol", symbol, "quantity", qty)
	return qty, nil
}
