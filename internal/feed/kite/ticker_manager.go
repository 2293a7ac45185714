// Package kite turns the Zerodha Kite ticker stream into engine ticks.
package kite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/store"
)

// PositionSource reports the venue position for a symbol.
type PositionSource interface {
	GetPosition(ctx context.Context, symbol string) (int, error)
}

type Params struct {
	APIKey      string
	AccessToken string
	// Symbols maps trading symbols to Kite instrument tokens.
	Symbols  map[string]uint32
	Location *time.Location
}

type tickerManager struct {
	ticker      *kiteticker.Ticker
	apiKey      string
	accessToken string
	loc         *time.Location

	engine    interfaces.Engine
	positions PositionSource
	mapper    *instrumentMapper

	posMu    sync.RWMutex
	position map[string]int

	connMu    sync.Mutex
	connected bool

	ctx    context.Context
	cancel context.CancelFunc
}

var _ interfaces.TickSource = (*tickerManager)(nil)

// New builds a tick source that feeds eng. positions may be nil, in which
// case every tick reports a flat position.
func New(p Params, eng interfaces.Engine, positions PositionSource) (interfaces.TickSource, error) {
	return newTickerManager(p, eng, positions)
}

func newTickerManager(p Params, eng interfaces.Engine, positions PositionSource) (*tickerManager, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("KITE_API_KEY and KITE_ACCESS_TOKEN are required for the kite feed")
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	tm := &tickerManager{
		apiKey:      p.APIKey,
		accessToken: p.AccessToken,
		loc:         loc,
		engine:      eng,
		positions:   positions,
		mapper:      newInstrumentMapper(),
		position:    make(map[string]int),
	}
	for sym, token := range p.Symbols {
		tm.mapper.addMapping(sym, token)
	}
	return tm, nil
}

// ParamsFromConfig reads the feed block; credentials come from the caller.
func ParamsFromConfig(cfg *store.Config, apiKey, accessToken string, loc *time.Location) Params {
	return Params{
		APIKey:      apiKey,
		AccessToken: accessToken,
		Symbols:     cfg.Feed.Symbols,
		Location:    loc,
	}
}

// Start connects the ticker. Ticks are decided on the ticker goroutine, one at
// a time, until ctx is cancelled or Stop is called.
func (tm *tickerManager) Start(ctx context.Context) error {
	tm.ctx, tm.cancel = context.WithCancel(ctx)

	for _, sym := range tm.mapper.symbols() {
		tm.refreshPosition(tm.ctx, sym)
	}

	tm.ticker = kiteticker.New(tm.apiKey, tm.accessToken)
	tm.setupEventHandlers()

	go func() {
		logger.Info(tm.ctx, "Starting Kite ticker", "symbols", tm.mapper.symbols())
		tm.ticker.Serve()
	}()
	go func() {
		<-tm.ctx.Done()
		tm.ticker.Stop()
	}()
	return nil
}

func (tm *tickerManager) Stop(ctx context.Context) {
	if tm.cancel != nil {
		logger.Info(ctx, "Stopping Kite ticker")
		tm.cancel()
	}
}

// Subscribe adds symbols that are already mapped to tokens. When the ticker is
// connected the subscription is sent immediately, otherwise on connect.
func (tm *tickerManager) Subscribe(ctx context.Context, symbols []string) error {
	tokens := make([]uint32, 0, len(symbols))
	for _, sym := range symbols {
		token, ok := tm.mapper.getToken(sym)
		if !ok {
			return fmt.Errorf("no instrument token configured for %s", sym)
		}
		tokens = append(tokens, token)
	}

	tm.connMu.Lock()
	connected := tm.connected
	tm.connMu.Unlock()
	if !connected {
		return nil
	}
	return tm.subscribeTokens(ctx, tokens)
}

func (tm *tickerManager) subscribeTokens(ctx context.Context, tokens []uint32) error {
	if len(tokens) == 0 {
		return nil
	}
	if err := tm.ticker.Subscribe(tokens); err != nil {
		return fmt.Errorf("failed to subscribe to symbols: %w", err)
	}
	// Full mode carries market depth and the average trade price.
	if err := tm.ticker.SetMode(kiteticker.ModeFull, tokens); err != nil {
		return fmt.Errorf("failed to set ticker mode: %w", err)
	}
	logger.Info(ctx, "Subscribed to live ticks", "count", len(tokens))
	return nil
}

func (tm *tickerManager) refreshPosition(ctx context.Context, symbol string) {
	if tm.positions == nil {
		return
	}
	qty, err := tm.positions.GetPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to refresh position", err, "symbol", symbol)
		return
	}
	tm.posMu.Lock()
	tm.position[symbol] = qty
	tm.posMu.Unlock()
}

func (tm *tickerManager) positionOf(symbol string) int {
	tm.posMu.RLock()
	defer tm.posMu.RUnlock()
	return tm.position[symbol]
}
