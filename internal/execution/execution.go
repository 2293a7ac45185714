// Package execution sends engine decisions to a trading venue. Executors are
// selected by name from config; remote ones are usually wrapped in a Guard.
package execution

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/store"
)

var (
	ErrUnknownExecutor = errors.New("unknown executor")
	// ErrSuppressed is returned when the guard refuses to forward an order.
	ErrSuppressed = errors.New("order suppressed")
)

type constructor func(cfg *store.Config) (interfaces.Executor, error)

var registry = map[string]constructor{
	NinjaTraderName: func(*store.Config) (interfaces.Executor, error) {
		return NewNinjaTrader(), nil
	},
	TopStepName: func(cfg *store.Config) (interfaces.Executor, error) {
		ts := cfg.Execution.TopStep
		accountID := ts.AccountID
		if env := os.Getenv("TOPSTEP_ACCOUNT_ID"); env != "" {
			accountID = env
		}
		return NewTopStep(TopStepParams{
			BaseURL:    ts.BaseURL,
			Token:      os.Getenv("TOPSTEP_API_TOKEN"),
			AccountID:  accountID,
			ContractID: ts.ContractID,
			Timeout:    cfg.Execution.Timeout,
		})
	},
	KiteName: func(cfg *store.Config) (interfaces.Executor, error) {
		return NewKite(KiteParams{
			APIKey:      os.Getenv("KITE_API_KEY"),
			AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
			Exchange:    cfg.Execution.Kite.Exchange,
			Product:     cfg.Execution.Kite.Product,
		})
	},
}

// New builds the executor registered under name.
func New(name string, cfg *store.Config) (interfaces.Executor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w '%s' (available: %s)", ErrUnknownExecutor, name, strings.Join(Names(), ", "))
	}
	ex, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s executor: %w", name, err)
	}
	return ex, nil
}

// Names lists registered executors in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsRemote reports whether the executor talks to a venue itself rather than
// leaving execution to the calling platform.
func IsRemote(name string) bool {
	return name != NinjaTraderName
}
