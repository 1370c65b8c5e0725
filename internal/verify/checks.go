package verify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsf/jsondiff"
	"github.com/rs/zerolog"

	"PoolOracle/internal/chains"
	"PoolOracle/internal/common"
	"PoolOracle/internal/core"
	"PoolOracle/internal/event"
	"PoolOracle/internal/liveclient"
)

// Mismatch is one divergence between the local prediction and the live
// node. A run can carry many; they are findings, not errors.
type Mismatch struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

func (m Mismatch) String() string {
	return m.Check + ": " + m.Detail
}

// Snapshotter is the slice of the live client the checker reads.
type Snapshotter interface {
	GetPools(ctx context.Context) ([]liveclient.PoolSnapshot, error)
	GetVaultData(ctx context.Context, height int64) (liveclient.VaultData, error)
}

// Checker compares settled local state against the live node. In fast-fail
// mode the first mismatch stops the comparison; otherwise every check runs
// and all findings are collected.
type Checker struct {
	log      zerolog.Logger
	engine   *core.Engine
	snaps    Snapshotter
	fastFail bool
}

// NewChecker creates a checker over an engine and a live snapshot source.
func NewChecker(engine *core.Engine, snaps Snapshotter, fastFail bool, logger zerolog.Logger) *Checker {
	return &Checker{
		log:      logger.With().Str("component", "checker").Logger(),
		engine:   engine,
		snaps:    snaps,
		fastFail: fastFail,
	}
}

// CheckEvents compares the two logs in canonical structural order. On any
// divergence, each differing pair is rendered as a JSON diff.
func (c *Checker) CheckEvents(live, local event.Events) []Mismatch {
	liveSorted, localSorted := live.Sorted(), local.Sorted()
	if liveSorted.Equals(localSorted) {
		return nil
	}

	var out []Mismatch
	n := len(liveSorted)
	if len(localSorted) > n {
		n = len(localSorted)
	}
	opts := jsondiff.DefaultConsoleOptions()
	for i := 0; i < n; i++ {
		switch {
		case i >= len(liveSorted):
			out = append(out, Mismatch{Check: "events", Detail: fmt.Sprintf("local-only event: %s", localSorted[i])})
		case i >= len(localSorted):
			out = append(out, Mismatch{Check: "events", Detail: fmt.Sprintf("live-only event: %s", liveSorted[i])})
		case !liveSorted[i].Equals(localSorted[i]):
			liveJSON, _ := json.Marshal(liveSorted[i])
			localJSON, _ := json.Marshal(localSorted[i])
			_, diff := jsondiff.Compare(liveJSON, localJSON, &opts)
			out = append(out, Mismatch{Check: "events", Detail: diff})
		}
		if c.fastFail && len(out) > 0 {
			return out
		}
	}
	return out
}

// CheckPools compares every live pool snapshot against the local ledger.
func (c *Checker) CheckPools(ctx context.Context) ([]Mismatch, error) {
	snapshots, err := c.snaps.GetPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch pools: %w", err)
	}

	var out []Mismatch
	for _, snap := range snapshots {
		pool := c.engine.GetPool(common.NewAsset(snap.Asset))
		if pool == nil {
			out = append(out, Mismatch{Check: "pools", Detail: fmt.Sprintf("%s: pool exists live but not locally", snap.Asset)})
			if c.fastFail {
				return out, nil
			}
			continue
		}
		fields := []struct {
			name  string
			local int64
			live  int64
		}{
			{"rune balance", pool.RuneBalance, snap.BalanceRune},
			{"asset balance", pool.AssetBalance, snap.BalanceAsset},
			{"LP units", pool.LPUnits, snap.LPUnits},
			{"synth units", pool.SynthUnits(), snap.SynthUnits},
			{"pool units", pool.PoolUnits(), snap.PoolUnits},
		}
		for _, f := range fields {
			if f.local != f.live {
				out = append(out, Mismatch{
					Check:  "pools",
					Detail: fmt.Sprintf("%s %s: local %d != live %d", snap.Asset, f.name, f.local, f.live),
				})
				if c.fastFail {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

// CheckVault compares the reserve and bond-reward counters at a height.
func (c *Checker) CheckVault(ctx context.Context, height int64) ([]Mismatch, error) {
	vd, err := c.snaps.GetVaultData(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("fetch vault data: %w", err)
	}

	var out []Mismatch
	vault := c.engine.Vault()
	if vault.Reserve != vd.TotalReserve {
		out = append(out, Mismatch{
			Check:  "vault",
			Detail: fmt.Sprintf("reserve: local %d != live %d", vault.Reserve, vd.TotalReserve),
		})
		if c.fastFail {
			return out, nil
		}
	}
	if vault.BondReward != vd.BondRewardRune {
		out = append(out, Mismatch{
			Check:  "vault",
			Detail: fmt.Sprintf("bond reward: local %d != live %d", vault.BondReward, vd.BondRewardRune),
		})
	}
	return out, nil
}

// CheckChainBalances compares a chain sim's expected balances against what
// the chain client reports. The faucet account is skipped; after a reorg a
// zeroed live balance is tolerated because the expected ledger does not
// model rolled-back transfers.
func (c *Checker) CheckChainBalances(ctx context.Context, sim *chains.Sim, client chains.Client, book *chains.AliasBook, reorged bool) ([]Mismatch, error) {
	var out []Mismatch
	for _, addr := range sim.Addresses() {
		name := book.Alias(sim.Chain(), addr)
		if name == chains.Faucet {
			continue
		}
		for assetKey, want := range sim.Accounts()[addr] {
			asset := common.NewAsset(assetKey)
			got, err := client.GetBalance(ctx, addr, asset)
			if err != nil {
				return nil, fmt.Errorf("%s balance of %s: %w", sim.Chain(), name, err)
			}
			if got == 0 && reorged {
				continue
			}
			if got != want {
				out = append(out, Mismatch{
					Check:  "balances",
					Detail: fmt.Sprintf("%s %s %s: expected %d, chain reports %d", sim.Chain(), name, assetKey, want, got),
				})
				if c.fastFail {
					return out, nil
				}
			}
		}
	}
	return out, nil
}
