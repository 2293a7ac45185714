package engine

import (
	"context"
	"errors"
	"time"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/metrics"
	"vwap-reversion-bot/internal/tradelog"
	"vwap-reversion-bot/internal/types"
)

// orderExecutor forwards decisions to the configured executor and journals
// the outcome. A failure is recorded and never unwound.
type orderExecutor struct {
	executor interfaces.Executor
	journal  *tradelog.Journal
	timeout  time.Duration
}

func newOrderExecutor(ex interfaces.Executor, timeout time.Duration) *orderExecutor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &orderExecutor{executor: ex, timeout: timeout}
}

func (oe *orderExecutor) execute(ctx context.Context, at time.Time, tick types.Tick, d types.Decision) types.ExecutionResult {
	ctx, cancel := context.WithTimeout(ctx, oe.timeout)
	defer cancel()

	sym := tick.SymbolName
	side, qty := d.Side, d.Quantity

	op := logger.StartOperation(ctx, "engine.execute",
		"symbol", sym,
		"action", string(d.Action),
		"executor", oe.executor.Name(),
	)
	ctx = op.Context()

	var (
		res types.ExecutionResult
		err error
	)
	switch d.Action {
	case types.ActionPlace:
		res, err = oe.executor.PlaceOrder(ctx, sym, d)
	case types.ActionFlatten:
		side, qty = flattenOrder(tick.PositionQty)
		res, err = oe.executor.FlattenPosition(ctx, sym)
	default:
		op.Finish(nil)
		return types.ExecutionResult{Success: true}
	}
	if err != nil && res.ErrorMessage == "" {
		res = types.Failed(err.Error())
	}
	if !res.Success {
		op.Finish(errors.New(res.ErrorMessage), "order_id", res.OrderID)
	} else {
		op.Finish(nil, "order_id", res.OrderID)
	}

	result := "success"
	if !res.Success {
		result = "failed"
	}
	metrics.OrdersTotal.WithLabelValues(oe.executor.Name(), string(side), result).Inc()
	logger.Order(ctx, sym, string(side), qty, res.OrderID, res.Success,
		"executor", oe.executor.Name(),
		"action", d.Action,
		"reason", d.Reason,
		"error", res.ErrorMessage,
	)

	if oe.journal != nil {
		entry := tradelog.ExecutionEntry{
			Time:          at.Format(time.RFC3339Nano),
			Symbol:        sym,
			Executor:      oe.executor.Name(),
			Action:        string(d.Action),
			Side:          string(side),
			Quantity:      qty,
			Price:         tick.LastPrice,
			OrderID:       res.OrderID,
			Success:       res.Success,
			Error:         res.ErrorMessage,
			ExecutedPrice: res.ExecutedPrice,
			ExecutedQty:   res.ExecutedQuantity,
			Reason:        d.Reason,
		}
		if err := oe.journal.AppendExecution(at, entry); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal execution", err, "symbol", sym)
		}
	}
	return res
}

// flattenOrder is the side and size that closes pos.
func flattenOrder(pos int) (types.Side, int) {
	if pos < 0 {
		return types.SideBuy, -pos
	}
	return types.SideSell, pos
}
