package strategy

import (
	"errors"
	"fmt"
	"sort"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/session"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/strategy/vwap"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

type constructor func(cfg *store.Config, resolver *session.Resolver) interfaces.Strategy

var registry = map[string]constructor{
	vwap.Name: func(cfg *store.Config, resolver *session.Resolver) interfaces.Strategy {
		return vwap.New(cfg, resolver)
	},
}

// New builds the strategy registered under name.
func New(name string, cfg *store.Config, resolver *session.Resolver) (interfaces.Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownStrategy, name, Names())
	}
	return ctor(cfg, resolver), nil
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
