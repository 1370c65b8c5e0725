package core

import (
	"strconv"

	"PoolOracle/internal/common"
	"PoolOracle/internal/event"
	"PoolOracle/internal/state"
)

// Reward emission constants; the live network tunes these through
// governance, the oracle pins the launch values.
const (
	emissionCurve = 6
	blocksPerYear = 6311390

	// bondShareNum/Den is the fraction of each cycle's emission paid to
	// node bonds; the remainder goes to pools pro-rata to rune depth.
	bondShareNum = 2
	bondShareDen = 3
)

// HandleFee debits the network fee from each outbound and returns the
// adjusted set. Native fees accrue straight to the reserve; pool-asset fees
// are credited to the pool in asset terms while the rune equivalent moves
// from the pool to the reserve. Outbounds worth nothing after the fee are
// dropped.
func (e *Engine) HandleFee(outs []common.Transaction) []common.Transaction {
	kept := make([]common.Transaction, 0, len(outs))
	for _, out := range outs {
		coin := out.Coins[0]
		if coin.IsNative() {
			fee := e.fees.NativeFee()
			if fee > coin.Amount {
				fee = coin.Amount
			}
			coin.Amount -= fee
			e.vault.Reserve += fee
			e.append(event.NewFee(out.ID, common.Coins{{Asset: coin.Asset, Amount: fee}}, 0))
		} else {
			pool := e.GetPool(coin.Asset)
			if pool == nil || !pool.IsActive() {
				kept = append(kept, out)
				continue
			}
			fee := e.assetFee(pool, coin, out.Chain)
			if fee > coin.Amount {
				fee = coin.Amount
			}
			poolDeduct := mulDiv(fee, pool.RuneBalance, pool.AssetBalance)
			if poolDeduct > pool.RuneBalance {
				poolDeduct = pool.RuneBalance
			}
			coin.Amount -= fee
			pool.AssetBalance += fee
			pool.RuneBalance -= poolDeduct
			e.vault.Reserve += poolDeduct
			e.append(event.NewFee(out.ID, common.Coins{{Asset: coin.Asset, Amount: fee}}, poolDeduct))
		}
		if coin.Amount > 0 {
			out.Coins = common.Coins{coin}
			kept = append(kept, out)
		}
	}
	e.advanceHash()
	return kept
}

// assetFee restates the chain's fee estimate in the outbound coin's asset.
// The estimate is denominated in the chain's gas asset; for other assets it
// converts the flat native fee through the pool's current price.
func (e *Engine) assetFee(pool *state.Pool, coin common.Coin, chain string) int64 {
	if coin.Asset.Equals(common.GasAsset(chain)) {
		return e.fees.Fee(chain)
	}
	return mulDiv(e.fees.NativeFee(), pool.AssetBalance, pool.RuneBalance)
}

// HandleGas applies realized gas from sent outbounds. Gas on the same chain
// within one settlement cycle is aggregated and debited once: the pool of
// the gas asset loses the spent asset and is reimbursed in rune from the
// reserve at the pool's current price.
func (e *Engine) HandleGas(outs []common.Transaction) {
	type agg struct {
		asset common.Asset
		amt   int64
		count int
	}
	var order []string
	sums := make(map[string]*agg)
	for _, out := range outs {
		for _, g := range out.Gas {
			key := g.Asset.String()
			a, ok := sums[key]
			if !ok {
				a = &agg{asset: g.Asset}
				sums[key] = a
				order = append(order, key)
			}
			a.amt += g.Amount
			a.count++
		}
	}

	for _, key := range order {
		a := sums[key]
		pool := e.GetPool(a.asset)
		if pool == nil {
			continue
		}
		runeAmt := mulDiv(a.amt, pool.RuneBalance, pool.AssetBalance)
		pool.AssetBalance -= a.amt
		runeAmt = e.vault.DebitReserve(runeAmt)
		pool.RuneBalance += runeAmt
		e.append(event.NewGas(a.asset, a.amt, runeAmt, a.count))
	}
	if len(order) > 0 {
		e.advanceHash()
	}
}

// ApplyRewardCycle runs exactly one reward emission: a fixed curve over the
// reserve, split between the bond-reward counter and the pools pro-rata to
// rune depth. Scheduling is the caller's concern; the verifier triggers a
// cycle only when the live stream reports one.
func (e *Engine) ApplyRewardCycle() {
	emission := e.vault.Reserve / emissionCurve / blocksPerYear
	emission = e.vault.DebitReserve(emission)

	bondReward := emission * bondShareNum / bondShareDen
	e.vault.BondReward += bondReward
	poolBudget := emission - bondReward

	var totalRune int64
	for _, p := range e.Pools() {
		totalRune += p.RuneBalance
	}

	var poolAttrs []event.Attribute
	if totalRune > 0 && poolBudget > 0 {
		for _, p := range e.Pools() {
			share := mulDiv(poolBudget, p.RuneBalance, totalRune)
			if share == 0 {
				continue
			}
			p.RuneBalance += share
			poolAttrs = append(poolAttrs, event.Attribute{Key: p.Asset.String(), Value: strconv.FormatInt(share, 10)})
		}
	} else {
		// nothing pooled yet; the whole emission backs bonds
		e.vault.BondReward += poolBudget
		bondReward += poolBudget
	}

	e.append(event.NewRewards(bondReward, poolAttrs))
	e.advanceHash()
}

// GenerateOutboundEvents records outbound events for predicted transfers
// once the live stream confirms them; the verifier calls this as matches
// land so the local log mirrors the live ordering.
func (e *Engine) GenerateOutboundEvents(inTx common.Transaction, outs []common.Transaction) {
	for _, out := range outs {
		e.append(event.NewOutbound(inTx, out))
	}
	if len(outs) > 0 {
		e.advanceHash()
	}
}
