// Package verify reconciles the deterministic engine against a live node:
// each inbound transaction is dispatched, the live event stream is polled
// under a bounded budget, live events are correlated back into the local
// state, and the resulting states are compared.
package verify

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"PoolOracle/internal/common"
	"PoolOracle/internal/core"
	"PoolOracle/internal/event"
	"PoolOracle/internal/observability"
)

// State is the reconciliation lifecycle of one transaction. Transitions are
// strictly forward: Dispatched → AwaitingEvents → Correlating → Settled,
// with Failed terminal from anywhere once the budget is exhausted.
type State int

const (
	StateDispatched State = iota
	StateAwaitingEvents
	StateCorrelating
	StateSettled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDispatched:
		return "dispatched"
	case StateAwaitingEvents:
		return "awaiting_events"
	case StateCorrelating:
		return "correlating"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LiveFeed is the verifier's read-only view of the live node's event log.
// The log only ever grows; the verifier tracks its own cursor.
type LiveFeed interface {
	Events() event.Events
}

// Dispatcher sends an engine-predicted outbound to its chain and returns
// the realized gas.
type Dispatcher interface {
	DispatchOutbound(ctx context.Context, tx common.Transaction) (common.Coins, error)
}

// FeeSource supplies the per-chain fee estimates current at dispatch time.
type FeeSource interface {
	FeeEstimates() map[string]int64
}

// Config bounds the polling loop.
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
}

// DefaultPollInterval and DefaultMaxAttempts give roughly a one minute
// wall-clock budget per transaction.
const (
	DefaultPollInterval = 300 * time.Millisecond
	DefaultMaxAttempts  = 200
)

// Verifier replays transactions through the local engine in lock-step with
// the live node's stream. One transaction is reconciled at a time; the
// engine is single-writer and the verifier is its only caller during a run.
type Verifier struct {
	log      zerolog.Logger
	engine   *core.Engine
	feed     LiveFeed
	dispatch Dispatcher
	fees     FeeSource
	metrics  *observability.Metrics

	interval time.Duration
	budget   int
}

// New creates a verifier over an engine and a live feed.
func New(engine *core.Engine, feed LiveFeed, dispatch Dispatcher, fees FeeSource, cfg Config) *Verifier {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Verifier{
		log:      cfg.Logger.With().Str("component", "verifier").Logger(),
		engine:   engine,
		feed:     feed,
		dispatch: dispatch,
		fees:     fees,
		metrics:  cfg.Metrics,
		interval: cfg.PollInterval,
		budget:   cfg.MaxAttempts,
	}
}

// Settlement is the outcome of reconciling one transaction.
type Settlement struct {
	State        State
	Outbounds    []common.Transaction
	Pending      int   // predicted outbounds never observed live
	RewardHeight int64 // block height of the rewards event, when one fired
	Attempts     int
	LiveEvents   event.Events
	LocalEvents  event.Events
}

// Reconcile drives one transaction through the state machine. The
// transaction is assumed to be already broadcast to its chain and accepted
// by the live node; Reconcile catches the local state up to what the node
// did with it. A Failed settlement is a result, not an error: the error
// return covers only infrastructure faults.
func (v *Verifier) Reconcile(ctx context.Context, tx common.Transaction) (*Settlement, error) {
	st := &Settlement{State: StateDispatched}

	// live events correlated so far equal the local log length: the two
	// streams advance one for one across settled transactions
	cursor := len(v.engine.Events())
	processed := false
	seenQuiet := false

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for st.Attempts = 1; st.Attempts <= v.budget; st.Attempts++ {
		live := v.feed.Events()

		fresh := event.Events{}
		if len(live) > cursor {
			fresh = live[cursor:]
			cursor = len(live)
		}
		if len(fresh) == 0 && st.State == StateDispatched {
			st.State = StateAwaitingEvents
		}
		if len(fresh) > 0 {
			st.State = StateCorrelating
		}
		if processed && len(fresh) == 0 {
			seenQuiet = true
		}

		for _, ev := range fresh {
			switch {
			case ev.Type == event.TypeGas:
				v.correlateGas(ev, st.Outbounds)
			case ev.Type == event.TypeRewards:
				v.engine.ApplyRewardCycle()
				st.RewardHeight = ev.Height
				v.countCorrelated(event.TypeRewards)
			case ev.Type == event.TypeOutbound && st.Pending > 0:
				v.correlateOutbound(ev, tx, st)
			case !processed:
				// the node recorded the transaction's own event; apply it
				// locally now so the logs stay aligned
				outs, err := v.trigger(ctx, tx)
				if err != nil {
					return nil, err
				}
				st.Outbounds = outs
				st.Pending = len(outs)
				processed = true
			}
		}

		local := v.engine.Events()
		if processed && st.Pending <= 0 && len(v.feed.Events()) == len(local) && seenQuiet {
			st.State = StateSettled
			st.LiveEvents = v.feed.Events()
			st.LocalEvents = local
			return st, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	st.State = StateFailed
	st.LiveEvents = v.feed.Events()
	st.LocalEvents = v.engine.Events()
	v.log.Error().
		Str("tx", tx.ID).
		Int("pending", st.Pending).
		Int("attempts", st.Attempts-1).
		Msg("reconciliation budget exhausted")
	return st, nil
}

// trigger applies the transaction to the local engine and dispatches the
// predicted outbounds to their chains, recording realized gas on each.
func (v *Verifier) trigger(ctx context.Context, tx common.Transaction) ([]common.Transaction, error) {
	if v.fees != nil {
		v.engine.SetNetworkFees(v.fees.FeeEstimates())
	}
	outs := v.engine.Handle(tx)
	outs = v.engine.HandleFee(outs)

	for i := range outs {
		gas, err := v.dispatch.DispatchOutbound(ctx, outs[i])
		if err != nil {
			return nil, err
		}
		outs[i].Gas = gas
	}
	return outs, nil
}

// correlateGas applies a live gas event to the outbounds it covers: the
// event names a chain's gas asset and how many transactions it aggregates.
func (v *Verifier) correlateGas(ev event.Event, outbounds []common.Transaction) {
	gasChain := common.NewAsset(ev.Get("asset")).Chain
	count64, _ := strconv.ParseInt(ev.Get("transaction_count"), 10, 64)

	var covered []common.Transaction
	for _, out := range outbounds {
		if len(out.Coins) == 0 {
			continue
		}
		if out.Coins[0].Asset.Chain == gasChain {
			covered = append(covered, out)
			if int64(len(covered)) >= count64 {
				break
			}
		}
	}
	v.engine.HandleGas(covered)
	v.countCorrelated(event.TypeGas)
}

// correlateOutbound matches a live outbound event to a predicted transfer
// by exact coin equality and records the local outbound event for it.
func (v *Verifier) correlateOutbound(ev event.Event, inTx common.Transaction, st *Settlement) {
	liveCoin := ev.Get("coin")
	for _, out := range st.Outbounds {
		if out.Coins.String() == liveCoin {
			v.engine.GenerateOutboundEvents(inTx, []common.Transaction{out})
			st.Pending--
			v.countCorrelated(event.TypeOutbound)
			return
		}
	}
	v.log.Warn().Str("coin", liveCoin).Msg("live outbound matched no prediction")
}

func (v *Verifier) countCorrelated(typ string) {
	if v.metrics != nil {
		v.metrics.EventsCorrelated.WithLabelValues(typ).Inc()
	}
}
