package types

import (
	"errors"
	"fmt"
	"math"
)

type Action string

const (
	ActionHold    Action = "hold"
	ActionPlace   Action = "place"
	ActionFlatten Action = "flatten"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// Tick is one market observation for a symbol as delivered by the trading platform.
type Tick struct {
	SymbolName   string  `json:"symbolName"`
	TimestampISO string  `json:"timestampIso"`
	LastPrice    float64 `json:"lastPrice"`
	LastSize     float64 `json:"lastSize"`
	BidPrice     float64 `json:"bidPrice"`
	AskPrice     float64 `json:"askPrice"`
	PositionQty  int     `json:"positionQty"`
	SessionDate  string  `json:"sessionDate"`
	VWAP         float64 `json:"vwap"`
	TickSize     float64 `json:"tickSize,omitempty"`
}

// Spread returns ask minus bid.
func (t Tick) Spread() float64 { return t.AskPrice - t.BidPrice }

// Mid returns the bid/ask midpoint.
func (t Tick) Mid() float64 { return 0.5 * (t.BidPrice + t.AskPrice) }

// Validate rejects ticks the engine cannot reason about at all.
func (t Tick) Validate() error {
	if t.SymbolName == "" {
		return errors.New("symbolName is required")
	}
	for name, v := range map[string]float64{
		"lastPrice": t.LastPrice,
		"bidPrice":  t.BidPrice,
		"askPrice":  t.AskPrice,
		"vwap":      t.VWAP,
		"tickSize":  t.TickSize,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if t.TickSize < 0 {
		return fmt.Errorf("tickSize must not be negative, got %v", t.TickSize)
	}
	return nil
}

// Decision is the engine's answer to one tick.
type Decision struct {
	Action     Action    `json:"action"`
	Side       Side      `json:"side,omitempty"`
	OrderType  OrderType `json:"orderType,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	LimitPrice *float64  `json:"limitPrice,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

func Hold(reason string) Decision {
	return Decision{Action: ActionHold, Reason: reason}
}

func Flatten(reason string) Decision {
	return Decision{Action: ActionFlatten, Reason: reason}
}

func Market(side Side, qty int, reason string) Decision {
	return Decision{Action: ActionPlace, Side: side, OrderType: OrderMarket, Quantity: qty, Reason: reason}
}

// SignedQuantity is the position change a filled place decision would cause.
func (d Decision) SignedQuantity() int {
	if d.Action != ActionPlace {
		return 0
	}
	if d.Side == SideSell {
		return -d.Quantity
	}
	return d.Quantity
}

// ExecutionResult is what an executor reports back for one order request.
type ExecutionResult struct {
	Success          bool    `json:"success"`
	OrderID          string  `json:"orderId,omitempty"`
	ErrorMessage     string  `json:"errorMessage,omitempty"`
	ExecutedPrice    float64 `json:"executedPrice,omitempty"`
	ExecutedQuantity int     `json:"executedQuantity,omitempty"`
}

func Failed(msg string) ExecutionResult {
	return ExecutionResult{Success: false, ErrorMessage: msg}
}

// DecisionEvent is one engine decision with the context it was made in, as
// journaled and streamed to observers.
type DecisionEvent struct {
	Time         string   `json:"time"`
	Symbol       string   `json:"symbol"`
	SessionDate  string   `json:"sessionDate"`
	Session      string   `json:"session"`
	LastPrice    float64  `json:"lastPrice"`
	VWAP         float64  `json:"vwap"`
	ZScore       float64  `json:"zScore"`
	Position     int      `json:"position"`
	Observations int      `json:"observations"`
	Decision     Decision `json:"decision"`
}
