package execution

import (
	"context"
	"errors"
	"testing"

	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/types"
)

func TestNewUnknownExecutor(t *testing.T) {
	_, err := New("ib", store.Default())
	if !errors.Is(err, ErrUnknownExecutor) {
		t.Errorf("Expected ErrUnknownExecutor, got %v", err)
	}
}

func TestNewNinjaTrader(t *testing.T) {
	ex, err := New(NinjaTraderName, store.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := ex.PlaceOrder(context.Background(), "NQ", types.Market(types.SideBuy, 1, "entry_long_L1"))
	if err != nil || !res.Success || res.OrderID == "" {
		t.Errorf("Expected passthrough success with an id, got %+v %v", res, err)
	}
	if IsRemote(NinjaTraderName) {
		t.Error("Expected ninjatrader to be local")
	}
}

func TestNewTopStepFromEnv(t *testing.T) {
	cfg := store.Default()
	cfg.Execution.TopStep.ContractID = "CON.F.US.NQ"

	t.Setenv("TOPSTEP_API_TOKEN", "")
	t.Setenv("TOPSTEP_ACCOUNT_ID", "42")
	if _, err := New(TopStepName, cfg); err == nil {
		t.Error("Expected error without TOPSTEP_API_TOKEN")
	}

	t.Setenv("TOPSTEP_API_TOKEN", "tok")
	ex, err := New(TopStepName, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if ts := ex.(*TopStep); ts.accountID != 42 {
		t.Errorf("Expected account 42 from env, got %d", ts.accountID)
	}
}

func TestNewKiteRequiresCredentials(t *testing.T) {
	t.Setenv("KITE_API_KEY", "")
	t.Setenv("KITE_ACCESS_TOKEN", "")
	if _, err := New(KiteName, store.Default()); err == nil {
		t.Error("Expected error without Kite credentials")
	}
}

func TestNames(t *testing.T) {
	names := Names()
	want := []string{KiteName, NinjaTraderName, TopStepName}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, names)
		}
	}
}
