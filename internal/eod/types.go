package eod

import "github.com/shopspring/decimal"

// aggRow is one symbol's trading for the day.
type aggRow struct {
	Symbol    string
	BuyQty    int
	BuyValue  decimal.Decimal
	SellQty   int
	SellValue decimal.Decimal
	Orders    int
	Failed    int
	Decisions int
}

func (r *aggRow) buyAvg() decimal.Decimal {
	if r.BuyQty == 0 {
		return decimal.Zero
	}
	return r.BuyValue.Div(decimal.NewFromInt(int64(r.BuyQty)))
}

func (r *aggRow) sellAvg() decimal.Decimal {
	if r.SellQty == 0 {
		return decimal.Zero
	}
	return r.SellValue.Div(decimal.NewFromInt(int64(r.SellQty)))
}

// realizedPnL prices the matched quantity at the difference of the average
// sell and buy prices. Open quantity is not marked.
func (r *aggRow) realizedPnL() decimal.Decimal {
	matched := r.BuyQty
	if r.SellQty < matched {
		matched = r.SellQty
	}
	return r.sellAvg().Sub(r.buyAvg()).Mul(decimal.NewFromInt(int64(matched)))
}
