package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/server"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/strategy"
	"vwap-reversion-bot/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	must(err)

	resolver, err := initializeResolver(ctx, cfg)
	must(err)
	loc := resolver.Location()

	strat, err := strategy.New(cfg.Strategy.Name, cfg, resolver)
	must(err)

	ex, err := initializeExecutor(ctx, cfg)
	must(err)

	journal := initializeJournal(ctx, cfg, loc)
	defer journal.Close()

	states := state.NewStore(cfg.Strategy.InitialEMAVariance)
	hub := server.NewHub()
	eng := initializeEngine(cfg, states, strat, loc, journal, hub, ex)

	summarizer, err := initializeEOD(cfg, journal, loc)
	must(err)

	srv := server.New(cfg, eng, states, hub)
	must(srv.Start(ctx))

	feed, err := initializeFeed(ctx, cfg, eng, ex, loc)
	must(err)
	if feed != nil {
		must(feed.Start(ctx))
		must(feed.Subscribe(ctx, symbolsOf(cfg.Feed.Symbols)))
	}

	logger.Info(ctx, "Engine started",
		"strategy", strat.Name(),
		"timezone", loc.String(),
		"direct_execution", ex != nil,
		"addr", cfg.Server.Addr,
	)

	var wg conc.WaitGroup
	wg.Go(func() { runEOD(ctx, summarizer) })

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if feed != nil {
		feed.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr(shutdownCtx, "HTTP server shutdown failed", err)
	}
	wg.Wait()

	if p, err := summarizer.SummarizeToday(); err == nil && p != "" {
		logger.Info(shutdownCtx, "EOD CSV written", "path", p)
	}
	_ = trace.Shutdown(shutdownCtx)
}

// runEOD writes the daily summary once the configured time has passed.
func runEOD(ctx context.Context, summarizer interfaces.EodSummarizer) {
	tick := time.NewTicker(60 * time.Second)
	defer tick.Stop()

	// Days without executions produce no file, so remember the attempt.
	var lastPath string
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			ok, path := summarizer.ShouldRunNow()
			if !ok || path == lastPath {
				continue
			}
			if p, err := summarizer.SummarizeToday(); err != nil {
				logger.ErrorWithErr(ctx, "EOD summary failed", err)
			} else {
				lastPath = path
				if p != "" {
					logger.Info(ctx, "EOD CSV written", "path", p)
				}
			}
		}
	}
}

func symbolsOf(m map[string]uint32) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	return out
}
