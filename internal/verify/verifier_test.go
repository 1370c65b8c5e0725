package verify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"PoolOracle/internal/common"
	"PoolOracle/internal/core"
	"PoolOracle/internal/event"
	"PoolOracle/internal/observability"
	"PoolOracle/internal/state"
)

// timedFeed is a live event stream the test appends to on its own schedule.
type timedFeed struct {
	mu     sync.Mutex
	events event.Events
}

func (f *timedFeed) Events() event.Events {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(event.Events, len(f.events))
	copy(out, f.events)
	return out
}

func (f *timedFeed) append(evs ...event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evs...)
}

func (f *timedFeed) appendAfter(d time.Duration, evs ...event.Event) {
	time.AfterFunc(d, func() { f.append(evs...) })
}

type stubDispatcher struct {
	gas common.Coins
}

func (d stubDispatcher) DispatchOutbound(ctx context.Context, tx common.Transaction) (common.Coins, error) {
	return d.gas, nil
}

type stubFees map[string]int64

func (s stubFees) FeeEstimates() map[string]int64 { return s }

func newEngineWithPool() *core.Engine {
	e := core.New(core.Config{Reserve: 100000000000, Logger: zerolog.Nop()})
	e.SetPool(state.NewPoolWithBalances(common.NewAsset("BNB.BNB"), 5000000000, 5000000000))
	return e
}

func fastConfig(attempts int) Config {
	return Config{PollInterval: 2 * time.Millisecond, MaxAttempts: attempts, Logger: zerolog.Nop()}
}

func TestReconcileSettlesSwap(t *testing.T) {
	gas := common.Coins{common.NewCoin("BNB.BNB", 37500)}
	fees := stubFees{"BNB": 37500}
	tx := common.NewTransaction("BNB", "USER-1", "VAULT",
		common.Coins{common.NewCoin("RUNE-A1F", 1000000000)}, "SWAP:BNB.BNB")

	// the mirror engine plays the part of the live node
	mirror := newEngineWithPool()
	mirror.SetNetworkFees(fees)
	mirrorOuts := mirror.HandleFee(mirror.Handle(tx))
	batch1 := mirror.Events()
	for i := range mirrorOuts {
		mirrorOuts[i].Gas = gas
	}
	mirror.GenerateOutboundEvents(tx, mirrorOuts)
	mirror.HandleGas(mirrorOuts)
	batch2 := mirror.Events()[len(batch1):]

	feed := &timedFeed{}
	feed.append(batch1...)
	feed.appendAfter(30*time.Millisecond, batch2...)

	local := newEngineWithPool()
	cfg := fastConfig(500)
	cfg.Metrics = observability.NewMetricsWith(prometheus.NewRegistry())
	v := New(local, feed, stubDispatcher{gas: gas}, fees, cfg)

	st, err := v.Reconcile(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateSettled {
		t.Fatalf("state = %s, want settled", st.State)
	}
	if st.Pending != 0 {
		t.Errorf("pending = %d, want 0", st.Pending)
	}
	if len(st.LocalEvents) != len(st.LiveEvents) {
		t.Errorf("event logs diverge: local %d, live %d", len(st.LocalEvents), len(st.LiveEvents))
	}

	// the mirror minted its outbound events independently; attribute-level
	// comparison still passes because outbound ids are deterministic
	var sawOutbound bool
	for _, ev := range st.LiveEvents {
		if ev.Type == event.TypeOutbound {
			sawOutbound = true
		}
	}
	if !sawOutbound {
		t.Fatal("settled run recorded no outbound events")
	}
	checker := NewChecker(local, nil, false, zerolog.Nop())
	if findings := checker.CheckEvents(st.LiveEvents, st.LocalEvents); findings != nil {
		t.Errorf("independently produced logs flagged: %v", findings)
	}

	// gas correlation left both ledgers at the same depths
	lp := local.GetPool(common.NewAsset("BNB.BNB"))
	mp := mirror.GetPool(common.NewAsset("BNB.BNB"))
	if lp.RuneBalance != mp.RuneBalance || lp.AssetBalance != mp.AssetBalance {
		t.Errorf("pool diverged: local %d/%d, mirror %d/%d",
			lp.RuneBalance, lp.AssetBalance, mp.RuneBalance, mp.AssetBalance)
	}
	if local.Vault().Reserve != mirror.Vault().Reserve {
		t.Errorf("reserve diverged: local %d, mirror %d", local.Vault().Reserve, mirror.Vault().Reserve)
	}

	m := cfg.Metrics
	if got := promtestutil.ToFloat64(m.EventsCorrelated.WithLabelValues(event.TypeOutbound)); got != 1 {
		t.Errorf("outbound correlations = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(m.EventsCorrelated.WithLabelValues(event.TypeGas)); got != 1 {
		t.Errorf("gas correlations = %v, want 1", got)
	}
}

func TestReconcileFailsOnMissingOutbound(t *testing.T) {
	gas := common.Coins{common.NewCoin("BNB.BNB", 37500)}
	fees := stubFees{"BNB": 37500}

	stake := common.NewTransaction("BNB", "PROVIDER-1", "VAULT",
		common.Coins{common.NewCoin("BNB.BNB", 150000000), common.NewCoin("RUNE-A1F", 50000000000)},
		"STAKE:BNB.BNB")
	withdraw := common.NewTransaction("BNB", "PROVIDER-1", "VAULT",
		common.Coins{common.NewCoin("RUNE-A1F", 1)}, "WITHDRAW:BNB.BNB:100")

	mirror := core.New(core.Config{Logger: zerolog.Nop()})
	local := core.New(core.Config{Logger: zerolog.Nop()})
	mirror.SetNetworkFees(fees)
	local.SetNetworkFees(fees)
	mirror.Handle(stake)
	local.Handle(stake)

	feed := &timedFeed{}
	feed.append(mirror.Events()...) // already consumed: local log is the same length

	mirrorOuts := mirror.HandleFee(mirror.Handle(withdraw))
	if len(mirrorOuts) != 2 {
		t.Fatalf("mirror outbounds = %d, want 2", len(mirrorOuts))
	}
	feed.append(mirror.Events()[1:]...)
	// the live node only ever sends one of the two predicted outbounds
	mirror.GenerateOutboundEvents(withdraw, mirrorOuts[:1])
	feed.append(mirror.Events()[len(mirror.Events())-1])

	v := New(local, feed, stubDispatcher{gas: gas}, fees, fastConfig(10))
	st, err := v.Reconcile(context.Background(), withdraw)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	if st.Pending != 1 {
		t.Errorf("pending = %d, want 1", st.Pending)
	}
	if len(st.Outbounds) != 2 {
		t.Errorf("outbounds = %d, want 2", len(st.Outbounds))
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDispatched:     "dispatched",
		StateAwaitingEvents: "awaiting_events",
		StateCorrelating:    "correlating",
		StateSettled:        "settled",
		StateFailed:         "failed",
	}
	for st, want := range cases {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", st, got, want)
		}
	}
}
