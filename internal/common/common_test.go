package common_test

import (
	"encoding/json"
	"testing"

	"PoolOracle/internal/common"
)

func TestNewAsset(t *testing.T) {
	a := common.NewAsset("BNB.LOK-3C0")
	if a.Chain != "BNB" || a.Symbol != "LOK-3C0" || a.Ticker != "LOK" {
		t.Errorf("got %+v", a)
	}

	// bare symbol defaults the chain
	b := common.NewAsset("RUNE-A1F")
	if b.Chain != common.DefaultChain {
		t.Errorf("got chain %q, want %q", b.Chain, common.DefaultChain)
	}
	if !b.IsNative() {
		t.Error("RUNE-A1F should be native")
	}

	if common.NewAsset("BNB.BNB").IsNative() {
		t.Error("BNB.BNB should not be native")
	}
}

func TestAssetEquality(t *testing.T) {
	if !common.NewAsset("BNB.BNB").Equals(common.NewAsset("BNB.BNB")) {
		t.Error("structural equality failed")
	}
	if common.NewAsset("BNB.BNB").Equals(common.NewAsset("ETH.BNB")) {
		t.Error("chain must participate in equality")
	}
	if !common.NewAsset("BNB.LOK-3C0").SymbolEquals("LOK-3C0") {
		t.Error("symbol-exact match failed")
	}
	if common.NewAsset("BNB.LOK-3C0").SymbolEquals("LOK") {
		t.Error("ticker must not satisfy symbol-exact match")
	}
}

func TestCoinString(t *testing.T) {
	c := common.NewCoin("BNB.BNB", 694444444)
	if got, want := c.String(), "694444444 BNB.BNB"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	cs := common.Coins{common.NewCoin("BNB.BNB", 1), common.NewCoin("RUNE-A1F", 2)}
	if got, want := cs.String(), "1 BNB.BNB, 2 BNB.RUNE-A1F"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCoinsNonZero(t *testing.T) {
	cs := common.Coins{
		common.NewCoin("BNB.BNB", 49730000),
		common.NewCoin("BNB.LOK-3C0", 0),
	}
	nz := cs.NonZero()
	if len(nz) != 1 || nz[0].Asset.Symbol != "BNB" {
		t.Errorf("got %v", nz)
	}
}

func TestTransactionJSONRoundTrip(t *testing.T) {
	raw := `{
		"chain": "BNB",
		"from_address": "PROVIDER-1",
		"to_address": "VAULT",
		"coins": [{"asset": "BNB.BNB", "amount": 150000000}],
		"memo": "STAKE:BNB.BNB"
	}`
	var tx common.Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.Chain != "BNB" || tx.Memo != "STAKE:BNB.BNB" {
		t.Errorf("got %+v", tx)
	}
	if len(tx.Coins) != 1 || tx.Coins[0].Amount != 150000000 {
		t.Errorf("got coins %v", tx.Coins)
	}
	if tx.Coins[0].Asset.String() != "BNB.BNB" {
		t.Errorf("got asset %s", tx.Coins[0].Asset)
	}
}

func TestCoinAmountAsString(t *testing.T) {
	// live node snapshots stringify integers
	var c common.Coin
	if err := json.Unmarshal([]byte(`{"asset":"BNB.BNB","amount":"12345"}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Amount != 12345 {
		t.Errorf("got %d", c.Amount)
	}
}
