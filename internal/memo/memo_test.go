package memo_test

import (
	"math"
	"testing"

	"PoolOracle/internal/memo"
)

func TestParseSwap(t *testing.T) {
	in := memo.Parse("SWAP:BNB.BNB")
	if in.Kind != memo.KindSwap || in.Asset.String() != "BNB.BNB" {
		t.Errorf("got %+v", in)
	}
	if in.Destination != "" || in.Limit != 0 {
		t.Errorf("unexpected overrides: %+v", in)
	}

	in = memo.Parse("SWAP:BNB.BNB:NOMNOM:")
	if in.Destination != "NOMNOM" || in.Limit != 0 {
		t.Errorf("got %+v", in)
	}

	in = memo.Parse("SWAP:BNB.BNB:PROVIDER-1:23853375")
	if in.Destination != "PROVIDER-1" || in.Limit != 23853375 {
		t.Errorf("got %+v", in)
	}
}

func TestParseSwapLimitOverflow(t *testing.T) {
	// an overflowing limit must not raise; it folds to an unmeetable target
	in := memo.Parse("SWAP:BNB.BNB::999999999999999999999")
	if in.Kind != memo.KindSwap {
		t.Fatalf("got kind %v", in.Kind)
	}
	if in.Limit != math.MaxInt64 {
		t.Errorf("got limit %d, want MaxInt64", in.Limit)
	}
}

func TestParseAddAndStake(t *testing.T) {
	for _, raw := range []string{"ADD:BNB.BNB", "STAKE:BNB.BNB"} {
		in := memo.Parse(raw)
		if in.Kind != memo.KindAdd || in.Asset.String() != "BNB.BNB" {
			t.Errorf("%s: got %+v", raw, in)
		}
	}

	// missing asset field degrades to noop
	if in := memo.Parse("STAKE:"); in.Kind != memo.KindNoop {
		t.Errorf("got %+v", in)
	}
}

func TestParseWithdraw(t *testing.T) {
	in := memo.Parse("WITHDRAW:BNB.BNB:5000")
	if in.Kind != memo.KindWithdraw || in.BasisPoints != 5000 {
		t.Errorf("got %+v", in)
	}

	// no basis points means withdraw everything
	in = memo.Parse("WITHDRAW:BNB.LOK-3C0")
	if in.BasisPoints != memo.MaxBasisPoints {
		t.Errorf("got %d", in.BasisPoints)
	}

	// empty asset stays empty so the engine refunds on pool lookup
	in = memo.Parse("WITHDRAW:")
	if in.Kind != memo.KindWithdraw || !in.Asset.IsEmpty() {
		t.Errorf("got %+v", in)
	}

	// negative and out-of-range values pass through for range validation
	if in := memo.Parse("WITHDRAW::-4"); in.BasisPoints != -4 {
		t.Errorf("got %d", in.BasisPoints)
	}
	if in := memo.Parse("WITHDRAW::1000000000"); in.BasisPoints != 1000000000 {
		t.Errorf("got %d", in.BasisPoints)
	}

	// malformed digits fold to a refund-triggering value
	if in := memo.Parse("WITHDRAW:BNB.BNB:abc"); in.BasisPoints >= 0 {
		t.Errorf("got %d", in.BasisPoints)
	}
}

func TestParseNoop(t *testing.T) {
	for _, raw := range []string{"", " ", "ABDG?", "withdraw:BNB.BNB", "SWAP:"} {
		if in := memo.Parse(raw); in.Kind != memo.KindNoop {
			t.Errorf("%q: got kind %v, want noop", raw, in.Kind)
		}
	}
	if in := memo.Parse("SEED"); in.Kind != memo.KindSeed {
		t.Errorf("got %+v", in)
	}
}
