// Package eod writes the end-of-day CSV summary of the execution journal.
package eod

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/tradelog"
)

type eodSummarizer struct {
	journal      *tradelog.Journal
	loc          *time.Location
	hour, minute int
	now          func() time.Time
}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

var csvHeader = []string{
	"symbol", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl",
	"gross_buy_value", "gross_sell_value", "orders", "failed_orders", "decisions",
}

// SummarizeDay aggregates the executions journaled on the trading day of t.
// A day without executions produces no file and an empty path.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	execs, err := s.journal.ReadExecutions(t)
	if err != nil {
		return "", fmt.Errorf("read executions: %w", err)
	}
	if len(execs) == 0 {
		return "", nil
	}
	decisions, err := s.journal.ReadDecisions(t)
	if err != nil {
		return "", fmt.Errorf("read decisions: %w", err)
	}

	aggs := map[string]*aggRow{}
	row := func(sym string) *aggRow {
		r := aggs[sym]
		if r == nil {
			r = &aggRow{Symbol: sym}
			aggs[sym] = r
		}
		return r
	}
	for _, e := range execs {
		r := row(e.Symbol)
		r.Orders++
		if !e.Success {
			r.Failed++
			continue
		}
		qty := e.FillQuantity()
		value := decimal.NewFromFloat(e.FillPrice()).Mul(decimal.NewFromInt(int64(qty)))
		switch strings.ToLower(e.Side) {
		case "buy":
			r.BuyQty += qty
			r.BuyValue = r.BuyValue.Add(value)
		case "sell":
			r.SellQty += qty
			r.SellValue = r.SellValue.Add(value)
		}
	}
	for _, d := range decisions {
		if r, ok := aggs[d.Symbol]; ok && d.Action != "hold" {
			r.Decisions++
		}
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := s.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	totalBuy, totalSell, totalPnL := decimal.Zero, decimal.Zero, decimal.Zero
	for _, k := range keys {
		r := aggs[k]
		pnl := r.realizedPnL()
		rec := []string{
			r.Symbol,
			strconv.Itoa(r.BuyQty), r.buyAvg().StringFixed(4),
			strconv.Itoa(r.SellQty), r.sellAvg().StringFixed(4),
			pnl.StringFixed(2),
			r.BuyValue.StringFixed(2), r.SellValue.StringFixed(2),
			strconv.Itoa(r.Orders), strconv.Itoa(r.Failed), strconv.Itoa(r.Decisions),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy = totalBuy.Add(r.BuyValue)
		totalSell = totalSell.Add(r.SellValue)
		totalPnL = totalPnL.Add(pnl)
	}
	if err := w.Write([]string{"TOTAL", "", "", "", "", totalPnL.StringFixed(2),
		totalBuy.StringFixed(2), totalSell.StringFixed(2), "", "", ""}); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func (s *eodSummarizer) SummarizeToday() (string, error) {
	return s.SummarizeDay(s.now())
}

// ShouldRunNow is true once the day's cutoff has passed and no summary
// exists yet.
func (s *eodSummarizer) ShouldRunNow() (bool, string) {
	now := s.now()
	outPath := s.csvPath(now)
	if now.Before(s.cutoff(now)) {
		return false, outPath
	}
	if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
		return true, outPath
	}
	return false, outPath
}
