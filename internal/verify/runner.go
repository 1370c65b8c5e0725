package verify

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"PoolOracle/internal/chains"
	"PoolOracle/internal/common"
	"PoolOracle/internal/core"
	"PoolOracle/internal/event"
	"PoolOracle/internal/memo"
	"PoolOracle/internal/observability"
)

// Reorg capture and trigger points within a fixture sequence. Captures grab
// the chain tip hash; triggers invalidate the captured block a few
// transactions later, while its transfers are still load-bearing.
var (
	reorgCapturePoints = map[int]bool{14: true, 24: true}
	reorgTriggerPoints = map[int]bool{18: true, 28: true}
)

// RunnerConfig wires one reconciliation run.
type RunnerConfig struct {
	Engine   *core.Engine
	Verifier *Verifier
	Checker  *Checker

	// Nodes are the chain endpoints transactions are broadcast to; Expected
	// are the local ledgers tracking what balances should result. In a fully
	// simulated run both can be the same Sim.
	Nodes    map[string]chains.Client
	Expected map[string]chains.Client
	Sims     map[string]*chains.Sim
	Aliases  *chains.AliasBook

	FastFail      bool
	NoVerify      bool
	BitcoinReorg  bool
	EthereumReorg bool

	Metrics   *observability.Metrics
	Sink      ResultSink
	Publisher ReportPublisher
	Logger    zerolog.Logger
}

// Runner drives a fixture sequence end to end: broadcast, reconcile, check,
// report. Transactions are strictly sequential; the engine never sees two at
// once.
type Runner struct {
	cfg RunnerConfig
	log zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "runner").Logger(),
	}
}

// ChainRouter gives the verifier its chain-facing half: outbound dispatch
// and fee estimates, routed by chain. It is built from the same maps the
// runner holds so both sides see one ledger.
type ChainRouter struct {
	Expected map[string]chains.Client
	Sims     map[string]*chains.Sim
}

// DispatchOutbound routes an engine-predicted outbound to its chain's
// expected ledger and returns the realized gas.
func (r ChainRouter) DispatchOutbound(ctx context.Context, out common.Transaction) (common.Coins, error) {
	client, ok := r.Expected[out.Chain]
	if !ok {
		return nil, fmt.Errorf("no chain client for %s", out.Chain)
	}
	return client.Transfer(ctx, out)
}

// FeeEstimates collects the current flat outbound fee per chain.
func (r ChainRouter) FeeEstimates() map[string]int64 {
	out := make(map[string]int64, len(r.Sims))
	for chain, sim := range r.Sims {
		out[chain] = sim.FeeEstimate()
	}
	return out
}

// Run processes the whole fixture sequence and returns every result. The
// error return is nil unless infrastructure fails or fast-fail mode stops
// the run on its first divergence.
func (r *Runner) Run(ctx context.Context, fixtures []common.Transaction) ([]ReconcileResult, error) {
	var results []ReconcileResult
	var btcReorgHash, ethReorgHash string

	for i, tx := range fixtures {
		if r.cfg.BitcoinReorg {
			if err := r.reorgHook(ctx, i, "BTC", &btcReorgHash); err != nil {
				return results, err
			}
		}
		if r.cfg.EthereumReorg {
			if err := r.reorgHook(ctx, i, "ETH", &ethReorgHash); err != nil {
				return results, err
			}
		}

		r.log.Info().Int("index", i).Str("tx", tx.String()).Msg("dispatch")
		if err := r.broadcast(ctx, tx); err != nil {
			return results, err
		}

		if memo.Parse(tx.Memo).Kind == memo.KindSeed {
			continue
		}

		res, err := r.reconcileOne(ctx, i, tx)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		r.report(ctx, res)

		if r.cfg.FastFail && res.Diverged() {
			return results, fmt.Errorf("tx %d (%s) diverged: %d findings, state %s",
				i, tx.Memo, len(res.Mismatch), res.State)
		}
	}
	return results, nil
}

func (r *Runner) broadcast(ctx context.Context, tx common.Transaction) error {
	node, ok := r.cfg.Nodes[tx.Chain]
	if !ok {
		return fmt.Errorf("no chain client for %s", tx.Chain)
	}
	start := time.Now()
	if _, err := node.Transfer(ctx, tx); err != nil {
		return fmt.Errorf("broadcast to %s: %w", tx.Chain, err)
	}
	if m := r.cfg.Metrics; m != nil {
		m.ChainTransferDur.WithLabelValues(tx.Chain).Observe(time.Since(start).Seconds())
	}
	if expected := r.cfg.Expected[tx.Chain]; expected != nil && expected != node {
		if _, err := expected.Transfer(ctx, tx); err != nil {
			return fmt.Errorf("apply to expected %s ledger: %w", tx.Chain, err)
		}
	}
	return nil
}

func (r *Runner) reconcileOne(ctx context.Context, index int, tx common.Transaction) (ReconcileResult, error) {
	start := time.Now()
	logMark := len(r.cfg.Engine.Events())
	st, err := r.cfg.Verifier.Reconcile(ctx, tx)
	if err != nil {
		return ReconcileResult{}, err
	}

	hash := r.cfg.Engine.StateHash()
	res := ReconcileResult{
		Index:     index,
		TxID:      tx.ID,
		Chain:     tx.Chain,
		Memo:      tx.Memo,
		State:     st.State.String(),
		Attempts:  st.Attempts,
		Pending:   st.Pending,
		Duration:  time.Since(start),
		StateHash: hex.EncodeToString(hash[:]),
	}

	if m := r.cfg.Metrics; m != nil {
		m.TxsHandled.WithLabelValues(memo.Parse(tx.Memo).Kind.String()).Inc()
		m.OutboundsEmitted.Add(float64(len(st.Outbounds)))
		for _, ev := range r.cfg.Engine.Events()[logMark:] {
			m.EventsEmitted.WithLabelValues(ev.Type).Inc()
			if ev.Type == event.TypeRefund {
				m.Refunds.WithLabelValues(ev.Get("reason")).Inc()
			}
		}
		m.EngineSequence.Set(float64(r.cfg.Engine.Sequence()))
		m.PollAttempts.Observe(float64(st.Attempts))
		m.ReconcileDuration.Observe(res.Duration.Seconds())
		m.PendingOutbounds.Set(float64(st.Pending))
		if st.State == StateSettled {
			m.ReconcileSettled.Inc()
		} else {
			m.ReconcileFailed.Inc()
		}
	}

	if !r.cfg.NoVerify {
		findings, err := r.check(ctx, st)
		if err != nil {
			return ReconcileResult{}, err
		}
		res.Mismatch = findings
		if m := r.cfg.Metrics; m != nil {
			for _, f := range findings {
				m.Mismatches.WithLabelValues(f.Check).Inc()
			}
		}
	}

	r.logResult(res, st)
	return res, nil
}

func (r *Runner) check(ctx context.Context, st *Settlement) ([]Mismatch, error) {
	checker := r.cfg.Checker
	findings := checker.CheckEvents(st.LiveEvents, st.LocalEvents)
	if r.cfg.FastFail && len(findings) > 0 {
		return findings, nil
	}

	pools, err := checker.CheckPools(ctx)
	if err != nil {
		return nil, err
	}
	findings = append(findings, pools...)
	if r.cfg.FastFail && len(findings) > 0 {
		return findings, nil
	}

	vault, err := checker.CheckVault(ctx, st.RewardHeight)
	if err != nil {
		return nil, err
	}
	findings = append(findings, vault...)
	if r.cfg.FastFail && len(findings) > 0 {
		return findings, nil
	}

	for chain, sim := range r.cfg.Sims {
		node, ok := r.cfg.Nodes[chain]
		if !ok {
			continue
		}
		reorged := (chain == "BTC" && r.cfg.BitcoinReorg) || (chain == "ETH" && r.cfg.EthereumReorg)
		bals, err := checker.CheckChainBalances(ctx, sim, node, r.cfg.Aliases, reorged)
		if err != nil {
			return nil, err
		}
		findings = append(findings, bals...)
		if r.cfg.FastFail && len(findings) > 0 {
			return findings, nil
		}
	}
	return findings, nil
}

// reorgHook captures the chain tip hash at the capture points and
// invalidates the captured block at the trigger points.
func (r *Runner) reorgHook(ctx context.Context, index int, chain string, hash *string) error {
	node, ok := r.cfg.Nodes[chain]
	if !ok {
		return nil
	}
	reorger, ok := node.(chains.Reorger)
	if !ok {
		return fmt.Errorf("%s client does not support reorgs", chain)
	}

	if reorgCapturePoints[index] {
		height, err := node.GetBlockHeight(ctx)
		if err != nil {
			return err
		}
		h, err := reorger.GetBlockHash(ctx, height)
		if err != nil {
			return err
		}
		*hash = h
		r.log.Info().Str("chain", chain).Int64("height", height).Str("hash", h).Msg("reorg block captured")
	}
	if reorgTriggerPoints[index] && *hash != "" {
		if err := reorger.InvalidateBlock(ctx, *hash); err != nil {
			return err
		}
		if m := r.cfg.Metrics; m != nil {
			m.ChainReorgs.Inc()
		}
		r.log.Info().Str("chain", chain).Str("hash", *hash).Msg("reorg triggered")
	}
	return nil
}

func (r *Runner) report(ctx context.Context, res ReconcileResult) {
	if r.cfg.Sink != nil {
		if err := r.cfg.Sink.WriteResult(ctx, res); err != nil {
			r.log.Error().Err(err).Msg("result sink write failed")
			if m := r.cfg.Metrics; m != nil {
				m.PersistErrors.WithLabelValues("postgres").Inc()
			}
		} else if m := r.cfg.Metrics; m != nil {
			m.ResultsWritten.Inc()
		}
	}
	if r.cfg.Publisher != nil && res.Diverged() {
		if err := r.cfg.Publisher.PublishReport(ctx, res); err != nil {
			r.log.Error().Err(err).Msg("report publish failed")
			if m := r.cfg.Metrics; m != nil {
				m.PersistErrors.WithLabelValues("nats").Inc()
			}
		} else if m := r.cfg.Metrics; m != nil {
			m.ReportsPublished.Inc()
		}
	}
}

func (r *Runner) logResult(res ReconcileResult, st *Settlement) {
	marker := "[+]"
	if res.Diverged() {
		marker = "[!]"
	} else if len(st.Outbounds) > 0 && strings.Contains(st.Outbounds[0].Memo, "REFUND") {
		marker = "[-]"
	}
	for _, out := range st.Outbounds {
		r.log.Info().Str("result", marker).Msg(out.Short())
	}
	if res.Diverged() {
		for _, m := range res.Mismatch {
			r.log.Error().Str("check", m.Check).Msg(m.Detail)
		}
	}
}
