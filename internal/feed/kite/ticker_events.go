package kite

import (
	"context"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/types"
)

func (tm *tickerManager) setupEventHandlers() {
	tm.ticker.OnConnect(tm.onConnect)
	tm.ticker.OnError(tm.onError)
	tm.ticker.OnClose(tm.onClose)
	tm.ticker.OnReconnect(tm.onReconnect)
	tm.ticker.OnNoReconnect(tm.onNoReconnect)
	tm.ticker.OnTick(tm.onTick)
	tm.ticker.OnOrderUpdate(tm.onOrderUpdate)
}

func (tm *tickerManager) context() context.Context {
	if tm.ctx != nil {
		return tm.ctx
	}
	return context.Background()
}

// onConnect (re)subscribes every mapped instrument.
func (tm *tickerManager) onConnect() {
	ctx := tm.context()
	logger.Info(ctx, "Kite ticker connected")

	tm.connMu.Lock()
	tm.connected = true
	tm.connMu.Unlock()

	if err := tm.subscribeTokens(ctx, tm.mapper.getAllTokens()); err != nil {
		logger.ErrorWithErr(ctx, "Failed to subscribe after connect", err)
	}
}

func (tm *tickerManager) onError(err error) {
	logger.ErrorWithErr(tm.context(), "Kite ticker error", err)
}

func (tm *tickerManager) onClose(code int, reason string) {
	tm.connMu.Lock()
	tm.connected = false
	tm.connMu.Unlock()
	logger.Warn(tm.context(), "Kite ticker connection closed",
		"code", code,
		"reason", reason,
	)
}

func (tm *tickerManager) onReconnect(attempt int, delay time.Duration) {
	logger.Info(tm.context(), "Kite ticker reconnecting",
		"attempt", attempt,
		"delay", delay,
	)
}

func (tm *tickerManager) onNoReconnect(attempt int) {
	logger.Warn(tm.context(), "Kite ticker gave up reconnecting",
		"attempts", attempt,
	)
}

func (tm *tickerManager) onTick(tick models.Tick) {
	symbol := tm.mapper.getSymbol(tick.InstrumentToken)
	if symbol == "" {
		return
	}
	ctx := tm.context()
	if tick.AverageTradePrice <= 0 {
		logger.Debug(ctx, "Skipping tick without average trade price", "symbol", symbol)
		return
	}
	tm.engine.Decide(ctx, toTick(symbol, tick, tm.positionOf(symbol), tm.loc))
}

// onOrderUpdate refreshes the cached position once an order for a mapped
// instrument completes.
func (tm *tickerManager) onOrderUpdate(order kiteconnect.Order) {
	ctx := tm.context()
	logger.Debug(ctx, "Order update received",
		"order_id", order.OrderID,
		"status", order.Status,
		"symbol", order.TradingSymbol,
	)
	if order.Status != "COMPLETE" {
		return
	}
	if _, ok := tm.mapper.getToken(order.TradingSymbol); ok {
		tm.refreshPosition(ctx, order.TradingSymbol)
	}
}

// toTick maps a full-mode Kite tick to an engine tick. The exchange's average
// trade price is the session VWAP; missing depth falls back to the last price.
func toTick(symbol string, t models.Tick, position int, loc *time.Location) types.Tick {
	ts := t.Timestamp.Time
	if ts.IsZero() {
		ts = t.LastTradeTime.Time
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	bid, ask := t.Depth.Buy[0].Price, t.Depth.Sell[0].Price
	if bid <= 0 {
		bid = t.LastPrice
	}
	if ask <= 0 {
		ask = t.LastPrice
	}

	return types.Tick{
		SymbolName:   symbol,
		TimestampISO: ts.Format(time.RFC3339Nano),
		LastPrice:    t.LastPrice,
		LastSize:     float64(t.LastTradedQuantity),
		BidPrice:     bid,
		AskPrice:     ask,
		PositionQty:  position,
		SessionDate:  ts.In(loc).Format("2006-01-02"),
		VWAP:         t.AverageTradePrice,
	}
}
