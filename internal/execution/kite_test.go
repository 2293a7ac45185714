package execution

import (
	"context"
	"errors"
	"testing"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"vwap-reversion-bot/internal/types"
)

type fakeKite struct {
	placed    []kiteconnect.OrderParams
	positions kiteconnect.Positions
	err       error
}

func (f *fakeKite) PlaceOrder(variety string, p kiteconnect.OrderParams) (kiteconnect.OrderResponse, error) {
	if f.err != nil {
		return kiteconnect.OrderResponse{}, f.err
	}
	f.placed = append(f.placed, p)
	return kiteconnect.OrderResponse{OrderID: "K1"}, nil
}

func (f *fakeKite) CancelOrder(variety, orderID string, parentOrderID *string) (kiteconnect.OrderResponse, error) {
	return kiteconnect.OrderResponse{OrderID: orderID}, f.err
}

func (f *fakeKite) GetPositions() (kiteconnect.Positions, error) {
	return f.positions, f.err
}

func TestKitePlaceOrder(t *testing.T) {
	fk := &fakeKite{}
	k := newKite(fk, "", "")

	res, err := k.PlaceOrder(context.Background(), "NIFTY26OCTFUT", types.Market(types.SideSell, 75, "entry_short_L1"))
	if err != nil || !res.Success || res.OrderID != "K1" {
		t.Fatalf("Expected order K1, got %+v %v", res, err)
	}
	p := fk.placed[0]
	if p.Exchange != "NFO" || p.Product != kiteconnect.ProductMIS {
		t.Errorf("Expected NFO/MIS defaults, got %s/%s", p.Exchange, p.Product)
	}
	if p.TransactionType != kiteconnect.TransactionTypeSell || p.OrderType != kiteconnect.OrderTypeMarket || p.Quantity != 75 {
		t.Errorf("Unexpected order params %+v", p)
	}
	if len(p.Tag) != 20 {
		t.Errorf("Expected 20 character tag, got %q", p.Tag)
	}
}

func TestKiteLimitOrder(t *testing.T) {
	fk := &fakeKite{}
	k := newKite(fk, "NFO", "NRML")
	px := 24500.05
	d := types.Decision{Action: types.ActionPlace, Side: types.SideBuy, OrderType: types.OrderLimit, Quantity: 75, LimitPrice: &px}

	if _, err := k.PlaceOrder(context.Background(), "NIFTY26OCTFUT", d); err != nil {
		t.Fatal(err)
	}
	if p := fk.placed[0]; p.OrderType != kiteconnect.OrderTypeLimit || p.Price != px || p.Product != "NRML" {
		t.Errorf("Expected NRML limit at %v, got %+v", px, p)
	}
}

func TestKiteFailure(t *testing.T) {
	k := newKite(&fakeKite{err: errors.New("Insufficient funds")}, "", "")
	res, err := k.PlaceOrder(context.Background(), "X", types.Market(types.SideBuy, 1, "entry_long_L1"))
	if err == nil || res.Success || res.ErrorMessage != "Insufficient funds" {
		t.Errorf("Expected failed result, got %+v %v", res, err)
	}
}

func TestKitePositionAndFlatten(t *testing.T) {
	fk := &fakeKite{positions: kiteconnect.Positions{Net: []kiteconnect.Position{
		{Tradingsymbol: "NIFTY26OCTFUT", Exchange: "NFO", Product: "MIS", Quantity: 150},
		{Tradingsymbol: "NIFTY26OCTFUT", Exchange: "NFO", Product: "NRML", Quantity: 75},
		{Tradingsymbol: "BANKNIFTY26OCTFUT", Exchange: "NFO", Product: "MIS", Quantity: -30},
	}}}
	k := newKite(fk, "NFO", "MIS")

	qty, err := k.GetPosition(context.Background(), "NIFTY26OCTFUT")
	if err != nil || qty != 150 {
		t.Fatalf("Expected position 150, got %d %v", qty, err)
	}

	res, err := k.FlattenPosition(context.Background(), "BANKNIFTY26OCTFUT")
	if err != nil || !res.Success {
		t.Fatalf("FlattenPosition failed: %+v %v", res, err)
	}
	if p := fk.placed[0]; p.TransactionType != kiteconnect.TransactionTypeBuy || p.Quantity != 30 {
		t.Errorf("Expected buy 30 to flatten, got %+v", p)
	}
}
