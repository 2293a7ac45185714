package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"

	"vwap-reversion-bot/internal/calendar"
	"vwap-reversion-bot/internal/engine"
	"vwap-reversion-bot/internal/engine/engineobs"
	"vwap-reversion-bot/internal/eod"
	"vwap-reversion-bot/internal/eod/eodobs"
	"vwap-reversion-bot/internal/execution"
	"vwap-reversion-bot/internal/execution/executionobs"
	"vwap-reversion-bot/internal/feed/kite"
	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/server"
	"vwap-reversion-bot/internal/session"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/trace"
	"vwap-reversion-bot/internal/tradelog"
)

// initializeSystem loads the environment and sets up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	path := configPath()
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeResolver builds the holiday calendar and the session table. A
// failed holiday fetch is logged and the static dates are kept.
func initializeResolver(ctx context.Context, cfg *store.Config) (*session.Resolver, error) {
	cal, err := calendar.FromConfig(ctx, cfg)
	if err != nil {
		logger.Warn(ctx, "Holiday calendar incomplete, using configured dates", "error", err)
	}
	logger.Info(ctx, "Holiday calendar loaded", "dates", len(cal.Dates()))
	return session.NewResolver(cfg, cal)
}

// initializeExecutor returns nil when direct execution is off.
func initializeExecutor(ctx context.Context, cfg *store.Config) (interfaces.Executor, error) {
	if !slices.Contains(execution.Names(), cfg.Execution.Executor) {
		return nil, fmt.Errorf("%w: %q", execution.ErrUnknownExecutor, cfg.Execution.Executor)
	}
	if !cfg.Execution.Direct {
		logger.Info(ctx, "Direct execution disabled - decisions are returned to the caller only")
		return nil, nil
	}

	name := cfg.Execution.Executor
	ex, err := execution.New(name, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Execution.Guard.Enabled && execution.IsRemote(name) {
		ex = execution.NewGuard(ex, execution.GuardParamsFromConfig(cfg))
		logger.Info(ctx, "Execution guard enabled", "executor", name)
	}

	return executionobs.Wrap(ex), nil
}

func initializeJournal(ctx context.Context, cfg *store.Config, loc *time.Location) *tradelog.Journal {
	j := tradelog.New(cfg.Journal.Dir, loc)
	if err := j.CompressOlder(cfg.Journal.RetentionDays, time.Now()); err != nil {
		logger.Warn(ctx, "Failed to compress old journal files", "error", err)
	}
	return j
}

func initializeEngine(cfg *store.Config, states *state.Store, strat interfaces.Strategy, loc *time.Location,
	journal *tradelog.Journal, hub *server.Hub, ex interfaces.Executor) interfaces.Engine {
	opts := []engine.Option{
		engine.WithJournal(journal),
		engine.WithPublisher(hub),
	}
	if ex != nil {
		opts = append(opts, engine.WithExecutor(ex))
	}
	return engineobs.Wrap(engine.New(cfg, states, strat, loc, opts...))
}

func initializeEOD(cfg *store.Config, journal *tradelog.Journal, loc *time.Location) (interfaces.EodSummarizer, error) {
	s, err := eod.NewSummarizer(journal, loc, cfg.Journal.EODTime)
	if err != nil {
		return nil, err
	}
	return eodobs.Wrap(s), nil
}

// initializeFeed returns nil when ticks only arrive over HTTP.
func initializeFeed(ctx context.Context, cfg *store.Config, eng interfaces.Engine, ex interfaces.Executor,
	loc *time.Location) (interfaces.TickSource, error) {
	switch cfg.Feed.Provider {
	case "":
		return nil, nil
	case "kite":
		var positions kite.PositionSource
		if ex != nil {
			positions = ex
		}
		p := kite.ParamsFromConfig(cfg, os.Getenv("KITE_API_KEY"), os.Getenv("KITE_ACCESS_TOKEN"), loc)
		logger.Info(ctx, "Using Kite live feed", "symbols", len(p.Symbols))
		return kite.New(p, eng, positions)
	default:
		return nil, fmt.Errorf("unknown feed provider %q", cfg.Feed.Provider)
	}
}
