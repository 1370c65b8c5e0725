package chains_test

import (
	"context"
	"testing"

	"PoolOracle/internal/chains"
	"PoolOracle/internal/common"
)

func newBNBSim() *chains.Sim {
	return chains.NewSim("BNB", chains.AccountFee{Singleton: 37500}, chains.DefaultAliases())
}

func TestSimTransfer(t *testing.T) {
	ctx := context.Background()
	sim := newBNBSim()

	// faucet sends without holding a balance
	seed := common.NewTransaction("BNB", "MASTER", "USER-1",
		common.Coins{common.NewCoin("BNB.BNB", 100000000)}, "SEED")
	gas, err := sim.Transfer(ctx, seed)
	if err != nil {
		t.Fatalf("seed transfer: %v", err)
	}
	if len(gas) != 1 || gas[0].Amount != 37500 {
		t.Fatalf("gas = %v, want one 37500 BNB coin", gas)
	}

	bal, err := sim.GetBalance(ctx, "USER-1", common.NewAsset("BNB.BNB"))
	if err != nil {
		t.Fatal(err)
	}
	if bal != 100000000 {
		t.Errorf("balance = %d, want 100000000", bal)
	}

	// a funded sender pays coins plus gas
	tx := common.NewTransaction("BNB", "USER-1", "VAULT",
		common.Coins{common.NewCoin("BNB.BNB", 50000000)}, "SWAP:BNB.LOK-3C0")
	if _, err := sim.Transfer(ctx, tx); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	bal, _ = sim.GetBalance(ctx, "USER-1", common.NewAsset("BNB.BNB"))
	if want := int64(100000000 - 50000000 - 37500); bal != want {
		t.Errorf("sender balance = %d, want %d", bal, want)
	}
	bal, _ = sim.GetBalance(ctx, "VAULT", common.NewAsset("BNB.BNB"))
	if bal != 50000000 {
		t.Errorf("vault balance = %d, want 50000000", bal)
	}

	// overdraft is rejected without mutating anything
	tx = common.NewTransaction("BNB", "USER-1", "VAULT",
		common.Coins{common.NewCoin("BNB.BNB", 10*100000000)}, "SWAP:BNB.LOK-3C0")
	if _, err := sim.Transfer(ctx, tx); err == nil {
		t.Fatal("overdraft accepted")
	}
	bal, _ = sim.GetBalance(ctx, "USER-1", common.NewAsset("BNB.BNB"))
	if want := int64(100000000 - 50000000 - 37500); bal != want {
		t.Errorf("balance after rejected transfer = %d, want %d", bal, want)
	}

	height, _ := sim.GetBlockHeight(ctx)
	if height != 2 {
		t.Errorf("height = %d, want 2", height)
	}
}

func TestSimReorg(t *testing.T) {
	ctx := context.Background()
	sim := newBNBSim()

	for i := 0; i < 3; i++ {
		tx := common.NewTransaction("BNB", "MASTER", "USER-1",
			common.Coins{common.NewCoin("BNB.BNB", 100000000)}, "SEED")
		if _, err := sim.Transfer(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}
	bal, _ := sim.GetBalance(ctx, "USER-1", common.NewAsset("BNB.BNB"))
	if bal != 300000000 {
		t.Fatalf("balance = %d, want 300000000", bal)
	}

	// invalidating block 2 undoes it and everything after
	hash, err := sim.GetBlockHash(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.InvalidateBlock(ctx, hash); err != nil {
		t.Fatal(err)
	}

	bal, _ = sim.GetBalance(ctx, "USER-1", common.NewAsset("BNB.BNB"))
	if bal != 100000000 {
		t.Errorf("balance after reorg = %d, want 100000000", bal)
	}
	height, _ := sim.GetBlockHeight(ctx)
	if height != 1 {
		t.Errorf("height after reorg = %d, want 1", height)
	}
	if err := sim.InvalidateBlock(ctx, "deadbeef"); err == nil {
		t.Error("unknown hash accepted")
	}
}

func TestAliasResolution(t *testing.T) {
	book := chains.DefaultAliases()

	addr := book.Address("BNB", "USER-1")
	if addr == "USER-1" {
		t.Fatal("USER-1 did not resolve on BNB")
	}
	if got := book.Alias("BNB", addr); got != "USER-1" {
		t.Errorf("reverse lookup = %q, want USER-1", got)
	}
	// concrete addresses pass through
	if got := book.Address("BNB", addr); got != addr {
		t.Errorf("address lookup mutated a concrete address: %q", got)
	}

	memo := book.ResolveMemo("BNB", "SWAP:BNB.BNB:USER-1")
	if memo != "SWAP:BNB.BNB:"+addr {
		t.Errorf("resolved memo = %q", memo)
	}
}

func TestFeeModels(t *testing.T) {
	cases := []struct {
		name  string
		model chains.FeeModel
		want  int64
	}{
		{"utxo", chains.UTXOFee{TxSize: 1000, TxRate: 10}, 10000},
		{"account", chains.AccountFee{Singleton: 37500}, 37500},
		{"evm", chains.EVMFee{GasPrice: 2, DefaultGas: 80000, GasPerByte: 68}, 160000},
	}
	for _, tc := range cases {
		if got := tc.model.Fee(); got != tc.want {
			t.Errorf("%s fee = %d, want %d", tc.name, got, tc.want)
		}
	}

	// EVM gas grows with memo length
	evm := chains.EVMFee{GasPrice: 2, DefaultGas: 80000, GasPerByte: 68}
	tx := common.Transaction{Memo: "0123456789"}
	if got := evm.GasFor(tx); got != 2*(80000+68*10) {
		t.Errorf("evm gas = %d, want %d", got, 2*(80000+68*10))
	}
}

func TestDecimalAdapter(t *testing.T) {
	ctx := context.Background()
	sim := chains.NewSim("ETH", chains.EVMFee{GasPrice: 1, DefaultGas: 21000}, chains.DefaultAliases())
	adapter := chains.NewDecimalAdapter(sim)

	// engine-unit transfer lands on chain in wei-style units
	tx := common.NewTransaction("ETH", "MASTER", "USER-1",
		common.Coins{common.NewCoin("ETH.ETH", 100000000)}, "SEED")
	if _, err := adapter.Transfer(ctx, tx); err != nil {
		t.Fatal(err)
	}

	raw, _ := sim.GetBalance(ctx, "USER-1", common.NewAsset("ETH.ETH"))
	if raw != 100000000*1e10 {
		t.Errorf("native balance = %d, want %d", raw, int64(100000000)*1e10)
	}
	scaled, _ := adapter.GetBalance(ctx, "USER-1", common.NewAsset("ETH.ETH"))
	if scaled != 100000000 {
		t.Errorf("engine balance = %d, want 100000000", scaled)
	}
}
