package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/types"
)

const KiteName = "kite"

// kiteAPI is the part of the Kite Connect client the executor calls.
type kiteAPI interface {
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	CancelOrder(variety string, orderID string, parentOrderID *string) (kiteconnect.OrderResponse, error)
	GetPositions() (kiteconnect.Positions, error)
}

type KiteParams struct {
	APIKey      string
	AccessToken string
	Exchange    string
	Product     string
}

// Kite places regular-variety orders on Zerodha. The symbol is the exchange
// trading symbol.
type Kite struct {
	kc       kiteAPI
	exchange string
	product  string
}

var _ interfaces.Executor = (*Kite)(nil)

func NewKite(p KiteParams) (*Kite, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("KITE_API_KEY and KITE_ACCESS_TOKEN are required")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newKite(kc, p.Exchange, p.Product), nil
}

func newKite(kc kiteAPI, exchange, product string) *Kite {
	if exchange == "" {
		exchange = "NFO"
	}
	if product == "" {
		product = kiteconnect.ProductMIS
	}
	return &Kite{kc: kc, exchange: exchange, product: product}
}

func (k *Kite) Name() string { return KiteName }

func (k *Kite) params(symbol string, d types.Decision) kiteconnect.OrderParams {
	p := kiteconnect.OrderParams{
		Exchange:        k.exchange,
		Tradingsymbol:   symbol,
		Validity:        kiteconnect.ValidityDay,
		Product:         k.product,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: kiteconnect.TransactionTypeBuy,
		Quantity:        d.Quantity,
		Tag:             orderTag(),
	}
	if d.Side == types.SideSell {
		p.TransactionType = kiteconnect.TransactionTypeSell
	}
	if d.OrderType == types.OrderLimit && d.LimitPrice != nil {
		p.OrderType = kiteconnect.OrderTypeLimit
		p.Price = *d.LimitPrice
	}
	return p
}

// orderTag is a unique alphanumeric tag within Kite's 20 character limit.
func orderTag() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func (k *Kite) PlaceOrder(ctx context.Context, symbol string, d types.Decision) (types.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return types.Failed(err.Error()), err
	}
	resp, err := k.kc.PlaceOrder(kiteconnect.VarietyRegular, k.params(symbol, d))
	if err != nil {
		logger.ErrorWithErr(ctx, "Kite order failed", err, "symbol", symbol)
		return types.Failed(err.Error()), fmt.Errorf("kite place order: %w", err)
	}
	return types.ExecutionResult{Success: true, OrderID: resp.OrderID}, nil
}

func (k *Kite) CancelOrder(ctx context.Context, orderID string) (types.ExecutionResult, error) {
	resp, err := k.kc.CancelOrder(kiteconnect.VarietyRegular, orderID, nil)
	if err != nil {
		return types.Failed(err.Error()), fmt.Errorf("kite cancel order: %w", err)
	}
	return types.ExecutionResult{Success: true, OrderID: resp.OrderID}, nil
}

// GetPosition is the net quantity for symbol on the configured exchange and product.
func (k *Kite) GetPosition(ctx context.Context, symbol string) (int, error) {
	positions, err := k.kc.GetPositions()
	if err != nil {
		return 0, fmt.Errorf("kite positions: %w", err)
	}
	qty := 0
	for _, p := range positions.Net {
		if p.Tradingsymbol == symbol && p.Exchange == k.exchange && p.Product == k.product {
			qty += p.Quantity
		}
	}
	return qty, nil
}

func (k *Kite) FlattenPosition(ctx context.Context, symbol string) (types.ExecutionResult, error) {
	pos, err := k.GetPosition(ctx, symbol)
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
	return k.PlaceOrder(ctx, symbol, types.Market(side, pos, "flatten"))
}
