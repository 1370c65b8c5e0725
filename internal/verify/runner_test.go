package verify

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"PoolOracle/internal/chains"
	"PoolOracle/internal/common"
	"PoolOracle/internal/core"
	"PoolOracle/internal/liveclient"
	"PoolOracle/internal/observability"
)

// engineSnaps reports the engine's own state as the live snapshots, so a
// correctly settled run compares clean.
type engineSnaps struct {
	engine *core.Engine
}

func (s engineSnaps) GetPools(context.Context) ([]liveclient.PoolSnapshot, error) {
	var out []liveclient.PoolSnapshot
	for _, p := range s.engine.Pools() {
		out = append(out, liveclient.PoolSnapshot{
			Asset:        p.Asset.String(),
			BalanceRune:  p.RuneBalance,
			BalanceAsset: p.AssetBalance,
			LPUnits:      p.LPUnits,
			SynthUnits:   p.SynthUnits(),
			PoolUnits:    p.PoolUnits(),
		})
	}
	return out, nil
}

func (s engineSnaps) GetVaultData(context.Context, int64) (liveclient.VaultData, error) {
	return liveclient.VaultData{
		TotalReserve:   s.engine.Vault().Reserve,
		BondRewardRune: s.engine.Vault().BondReward,
	}, nil
}

func TestRunnerSettlesFixtureSequence(t *testing.T) {
	book := chains.DefaultAliases()
	sim := chains.NewSim("BNB", chains.AccountFee{Singleton: 37500}, book)

	fixtures := []common.Transaction{
		common.NewTransaction("BNB", "MASTER", "PROVIDER-1",
			common.Coins{
				common.NewCoin("BNB.BNB", 200000000),
				common.NewCoin("BNB.RUNE-A1F", 60000000000),
			}, "SEED"),
		common.NewTransaction("BNB", "PROVIDER-1", "VAULT",
			common.Coins{
				common.NewCoin("BNB.BNB", 150000000),
				common.NewCoin("BNB.RUNE-A1F", 50000000000),
			}, "STAKE:BNB.BNB"),
	}

	local := core.New(core.Config{Logger: zerolog.Nop()})
	mirror := core.New(core.Config{Logger: zerolog.Nop()})

	// the mirror precomputes what the live node will emit for the stake
	feed := &timedFeed{}
	mirror.Handle(fixtures[1])
	feed.appendAfter(20*time.Millisecond, mirror.Events()...)

	verifier := New(local, feed, stubDispatcher{}, stubFees{"BNB": 37500}, fastConfig(500))
	checker := NewChecker(local, engineSnaps{engine: local}, false, zerolog.Nop())
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())

	runner := NewRunner(RunnerConfig{
		Engine:   local,
		Verifier: verifier,
		Checker:  checker,
		Nodes:    map[string]chains.Client{"BNB": sim},
		Expected: map[string]chains.Client{"BNB": sim},
		Sims:     map[string]*chains.Sim{"BNB": sim},
		Aliases:  book,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	})

	results, err := runner.Run(context.Background(), fixtures)
	if err != nil {
		t.Fatal(err)
	}
	// the seed transaction funds accounts and produces no result
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	res := results[0]
	if res.State != StateSettled.String() {
		t.Fatalf("state = %s, want settled", res.State)
	}
	if res.Diverged() {
		t.Fatalf("clean run diverged: %v", res.Mismatch)
	}
	if res.StateHash == "" {
		t.Error("state hash missing")
	}

	// the stake landed in the local ledger
	pool := local.GetPool(common.NewAsset("BNB.BNB"))
	if pool == nil || pool.LPUnits != 25075000000 {
		t.Errorf("pool = %v", pool)
	}

	// the chain sim debited the provider for coins plus gas
	bal, _ := sim.GetBalance(context.Background(), "PROVIDER-1", common.NewAsset("BNB.BNB"))
	if want := int64(200000000 - 150000000 - 37500); bal != want {
		t.Errorf("provider balance = %d, want %d", bal, want)
	}

	// instrumentation tracked the run
	if got := promtestutil.ToFloat64(metrics.TxsHandled.WithLabelValues("add")); got != 1 {
		t.Errorf("txs handled = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.EventsEmitted.WithLabelValues("add")); got != 1 {
		t.Errorf("add events emitted = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.OutboundsEmitted); got != 0 {
		t.Errorf("outbounds emitted = %v, want 0", got)
	}
	if got := promtestutil.ToFloat64(metrics.EngineSequence); got < 1 {
		t.Errorf("engine sequence = %v, want >= 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.ReconcileSettled); got != 1 {
		t.Errorf("settled counter = %v, want 1", got)
	}
}

func TestRunnerFastFailStopsOnDivergence(t *testing.T) {
	book := chains.DefaultAliases()
	sim := chains.NewSim("BNB", chains.AccountFee{Singleton: 37500}, book)

	fixtures := []common.Transaction{
		common.NewTransaction("BNB", "MASTER", "PROVIDER-1",
			common.Coins{
				common.NewCoin("BNB.BNB", 1000000),
				common.NewCoin("BNB.RUNE-A1F", 60000000000),
			}, "SEED"),
		common.NewTransaction("BNB", "PROVIDER-1", "VAULT",
			common.Coins{common.NewCoin("BNB.RUNE-A1F", 50000000000)}, "STAKE:BNB.BNB"),
	}

	local := core.New(core.Config{Logger: zerolog.Nop()})
	// the live node never emits anything: reconciliation must exhaust its
	// budget and fast-fail must stop the run
	verifier := New(local, &timedFeed{}, stubDispatcher{}, stubFees{}, fastConfig(5))
	checker := NewChecker(local, engineSnaps{engine: local}, true, zerolog.Nop())

	runner := NewRunner(RunnerConfig{
		Engine:   local,
		Verifier: verifier,
		Checker:  checker,
		Nodes:    map[string]chains.Client{"BNB": sim},
		Expected: map[string]chains.Client{"BNB": sim},
		Sims:     map[string]*chains.Sim{"BNB": sim},
		Aliases:  book,
		FastFail: true,
		Logger:   zerolog.Nop(),
	})

	results, err := runner.Run(context.Background(), fixtures)
	if err == nil {
		t.Fatal("divergent run returned nil error in fast-fail mode")
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].State != StateFailed.String() {
		t.Errorf("state = %s, want failed", results[0].State)
	}
}
