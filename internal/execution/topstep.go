package execution

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vwap-reversion-bot/internal/api"
	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/types"
)

const TopStepName = "topstep"

// TopStep order type and side codes.
const (
	topStepLimit  = 1
	topStepMarket = 2
	topStepBuy    = 0
	topStepSell   = 1
)

type TopStepParams struct {
	BaseURL    string
	Token      string
	AccountID  string
	ContractID string
	Timeout    time.Duration
}

// TopStep places orders through the TopStep REST API for one account and contract.
type TopStep struct {
	client     *api.Client
	accountID  int64
	contractID string
}

var _ interfaces.Executor = (*TopStep)(nil)

type topStepOrder struct {
	AccountID  int64    `json:"accountId"`
	ContractID string   `json:"contractId"`
	Type       int      `json:"type"`
	Side       int      `json:"side"`
	Size       int      `json:"size"`
	LimitPrice *float64 `json:"limitPrice,omitempty"`
	CustomTag  string   `json:"customTag,omitempty"`
}

type topStepResponse struct {
	Success      bool   `json:"success"`
	OrderID      int64  `json:"orderId"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type topStepPosition struct {
	Quantity int `json:"quantity"`
}

func NewTopStep(p TopStepParams, opts ...api.ClientOption) (*TopStep, error) {
	if p.Token == "" {
		return nil, errors.New("TOPSTEP_API_TOKEN is required")
	}
	if p.AccountID == "" {
		return nil, errors.New("topstep account id is required")
	}
	accountID, err := strconv.ParseInt(p.AccountID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("topstep account id %q: %w", p.AccountID, err)
	}
	if p.ContractID == "" {
		return nil, errors.New("topstep contract id is required")
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}

	base := []api.ClientOption{
		api.WithBaseURL(p.BaseURL),
		api.WithTimeout(p.Timeout),
		api.WithHeaders(api.BearerHeaders(p.Token)),
		api.WithLogging(true),
	}
	return &TopStep{
		client:     api.NewClient(append(base, opts...)...),
		accountID:  accountID,
		contractID: p.ContractID,
	}, nil
}

func (t *TopStep) Name() string { return TopStepName }

func (t *TopStep) order(d types.Decision) topStepOrder {
	o := topStepOrder{
		AccountID:  t.accountID,
		ContractID: t.contractID,
		Type:       topStepMarket,
		Side:       topStepBuy,
		Size:       d.Quantity,
	}
	if d.Side == types.SideSell {
		o.Side = topStepSell
	}
	if o.Size <= 0 {
		o.Size = 1
	}
	if d.OrderType == types.OrderLimit && d.LimitPrice != nil {
		o.Type = topStepLimit
		o.LimitPrice = d.LimitPrice
	}
	// TopStep rejects a customTag it has already seen on the account.
	tag := d.Strategy
	if tag == "" {
		tag = "manual"
	}
	o.CustomTag = "strategy_" + tag + "_" + uuid.NewString()[:8]
	return o
}

func (t *TopStep) PlaceOrder(ctx context.Context, symbol string, d types.Decision) (types.ExecutionResult, error) {
	resp, err := t.client.POST(ctx, "/api/Order/place", t.order(d))
	if err != nil {
		return types.Failed(err.Error()), err
	}
	var out topStepResponse
	if err := resp.ParseJSON(&out); err != nil {
		return types.Failed(err.Error()), err
	}
	if !out.Success {
		msg := out.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("order rejected (code %d)", out.ErrorCode)
		}
		logger.Warn(ctx, "TopStep order rejected", "symbol", symbol, "error", msg)
		return types.Failed(msg), nil
	}
	return types.ExecutionResult{
		Success:          true,
		OrderID:          strconv.FormatInt(out.OrderID, 10),
		ExecutedQuantity: d.Quantity,
	}, nil
}

func (t *TopStep) CancelOrder(ctx context.Context, orderID string) (types.ExecutionResult, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return types.Failed("invalid order id " + orderID), fmt.Errorf("topstep order id %q: %w", orderID, err)
	}
	resp, err := t.client.POST(ctx, "/api/Order/cancel", map[string]int64{
		"accountId": t.accountID,
		"orderId":   id,
	})
	if err != nil {
		return types.Failed(err.Error()), err
	}
	var out topStepResponse
	if err := resp.ParseJSON(&out); err != nil {
		return types.Failed(err.Error()), err
	}
	if !out.Success {
		return types.Failed(out.ErrorMessage), nil
	}
	return types.ExecutionResult{Success: true, OrderID: orderID}, nil
}

func (t *TopStep) GetPosition(ctx context.Context, symbol string) (int, error) {
	resp, err := t.client.GET(ctx, "/api/Position/current", map[string]string{
		"accountId":  strconv.FormatInt(t.accountID, 10),
		"contractId": t.contractID,
	})
	if err != nil {
		return 0, fmt.Errorf("topstep position: %w", err)
	}
	var pos topStepPosition
	if err := resp.ParseJSON(&pos); err != nil {
		return 0, err
	}
	return pos.Quantity, nil
}

// FlattenPosition closes the current position with an opposite market order.
func (t *TopStep) FlattenPosition(ctx context.Context, symbol string) (types.ExecutionResult, error) {
	pos, err := t.GetPosition(ctx, symbol)
	if err != nil {
		return types.Failed(err.Error()), err
	}
	if pos == 0 {
		return types.ExecutionResult{Success: true}, nil
	}
	side := types.SideSell
	if pos < 0 {
		side, pos = types.SideBuy, -pos
	}
	d := types.Market(side, pos, "flatten")
	d.Strategy = "flatten"
	return t.PlaceOrder(ctx, symbol, d)
}
