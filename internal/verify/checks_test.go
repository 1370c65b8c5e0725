package verify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"PoolOracle/internal/chains"
	"PoolOracle/internal/common"
	"PoolOracle/internal/core"
	"PoolOracle/internal/event"
	"PoolOracle/internal/liveclient"
	"PoolOracle/internal/state"
)

type fakeSnaps struct {
	pools []liveclient.PoolSnapshot
	vault liveclient.VaultData
}

func (f fakeSnaps) GetPools(context.Context) ([]liveclient.PoolSnapshot, error) {
	return f.pools, nil
}

func (f fakeSnaps) GetVaultData(context.Context, int64) (liveclient.VaultData, error) {
	return f.vault, nil
}

func TestCheckEvents(t *testing.T) {
	c := NewChecker(nil, nil, false, zerolog.Nop())

	live := event.Events{
		event.New(event.TypeSwap, "pool", "BNB.BNB", "emit_asset", "694444444 BNB.BNB"),
		event.New(event.TypeOutbound, "chain", "BNB"),
	}
	local := event.Events{
		event.New(event.TypeOutbound, "chain", "BNB"),
		event.New(event.TypeSwap, "pool", "BNB.BNB", "emit_asset", "694444444 BNB.BNB"),
	}

	// order-insensitive: same records in different order match
	if got := c.CheckEvents(live, local); got != nil {
		t.Fatalf("reordered logs flagged: %v", got)
	}

	local[1] = event.New(event.TypeSwap, "pool", "BNB.BNB", "emit_asset", "694444443 BNB.BNB")
	findings := c.CheckEvents(live, local)
	if len(findings) == 0 {
		t.Fatal("diverging logs not flagged")
	}
	if findings[0].Check != "events" {
		t.Errorf("check = %q, want events", findings[0].Check)
	}

	// extra local record is reported as local-only
	local = append(local, event.New(event.TypeGas, "asset", "BNB.BNB"))
	if findings = c.CheckEvents(live, local); len(findings) < 2 {
		t.Errorf("findings = %v, want divergence plus local-only", findings)
	}
}

func TestCheckEventsFastFail(t *testing.T) {
	c := NewChecker(nil, nil, true, zerolog.Nop())
	live := event.Events{
		event.New(event.TypeSwap, "pool", "A"),
		event.New(event.TypeSwap, "pool", "B"),
	}
	local := event.Events{
		event.New(event.TypeSwap, "pool", "X"),
		event.New(event.TypeSwap, "pool", "Y"),
	}
	if findings := c.CheckEvents(live, local); len(findings) != 1 {
		t.Errorf("fast-fail findings = %d, want 1", len(findings))
	}
}

func TestCheckPools(t *testing.T) {
	e := core.New(core.Config{Logger: zerolog.Nop()})
	pool := state.NewPoolWithBalances(common.NewAsset("BNB.BNB"), 50000000000, 150000000)
	pool.LPUnits = 25075000000
	e.SetPool(pool)

	snaps := fakeSnaps{pools: []liveclient.PoolSnapshot{{
		Asset:        "BNB.BNB",
		BalanceRune:  50000000000,
		BalanceAsset: 150000000,
		LPUnits:      25075000000,
		PoolUnits:    25075000000,
	}}}
	c := NewChecker(e, snaps, false, zerolog.Nop())

	findings, err := c.CheckPools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if findings != nil {
		t.Fatalf("matching pools flagged: %v", findings)
	}

	snaps.pools[0].BalanceRune = 50000000001
	c = NewChecker(e, snaps, false, zerolog.Nop())
	findings, err = c.CheckPools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 || findings[0].Check != "pools" {
		t.Errorf("findings = %v", findings)
	}

	// a live pool missing locally is itself a finding
	snaps.pools = append(snaps.pools, liveclient.PoolSnapshot{Asset: "BNB.LOK-3C0"})
	c = NewChecker(e, snaps, false, zerolog.Nop())
	findings, _ = c.CheckPools(context.Background())
	if len(findings) != 2 {
		t.Errorf("findings = %v, want 2", findings)
	}
}

func TestCheckVault(t *testing.T) {
	e := core.New(core.Config{Reserve: 22000000000000000, Logger: zerolog.Nop()})
	c := NewChecker(e, fakeSnaps{vault: liveclient.VaultData{TotalReserve: 22000000000000000}}, false, zerolog.Nop())
	findings, err := c.CheckVault(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if findings != nil {
		t.Fatalf("matching vault flagged: %v", findings)
	}

	c = NewChecker(e, fakeSnaps{vault: liveclient.VaultData{TotalReserve: 1, BondRewardRune: 2}}, false, zerolog.Nop())
	findings, _ = c.CheckVault(context.Background(), 0)
	if len(findings) != 2 {
		t.Errorf("findings = %v, want reserve and bond reward", findings)
	}
}

func TestCheckChainBalances(t *testing.T) {
	ctx := context.Background()
	book := chains.DefaultAliases()
	expected := chains.NewSim("BNB", chains.AccountFee{Singleton: 37500}, book)
	node := chains.NewSim("BNB", chains.AccountFee{Singleton: 37500}, book)

	expected.Seed("USER-1", common.NewCoin("BNB.BNB", 100000000))
	node.Seed("USER-1", common.NewCoin("BNB.BNB", 100000000))
	// faucet balances never compare
	expected.Seed("MASTER", common.NewCoin("BNB.BNB", 1))

	c := NewChecker(nil, nil, false, zerolog.Nop())
	findings, err := c.CheckChainBalances(ctx, expected, node, book, false)
	if err != nil {
		t.Fatal(err)
	}
	if findings != nil {
		t.Fatalf("matching balances flagged: %v", findings)
	}

	node.Seed("USER-1", common.NewCoin("BNB.BNB", 5))
	findings, _ = c.CheckChainBalances(ctx, expected, node, book, false)
	if len(findings) != 1 || findings[0].Check != "balances" {
		t.Errorf("findings = %v", findings)
	}

	// a zeroed balance is tolerated after a reorg
	zeroed := chains.NewSim("BNB", chains.AccountFee{Singleton: 37500}, book)
	findings, _ = c.CheckChainBalances(ctx, expected, zeroed, book, true)
	if findings != nil {
		t.Errorf("reorg-zeroed balance flagged: %v", findings)
	}
}
