package event

import (
	"strconv"

	"PoolOracle/internal/common"
)

// Constructors for each record type. Attribute names and order follow the
// live node's wire encoding so logs compare field-for-field.

func NewSwap(pool common.Asset, priceTarget, tradeSlip, liquidityFee, liquidityFeeInRune int64, inTx common.Transaction, emit common.Coin) Event {
	return New(TypeSwap,
		"pool", pool.String(),
		"price_target", itoa(priceTarget),
		"trade_slip", itoa(tradeSlip),
		"liquidity_fee", itoa(liquidityFee),
		"liquidity_fee_in_rune", itoa(liquidityFeeInRune),
		"emit_asset", emit.String(),
		"id", inTx.ID,
		"chain", inTx.Chain,
		"from", inTx.FromAddress,
		"to", inTx.ToAddress,
		"coin", inTx.Coins.String(),
		"memo", inTx.Memo,
	)
}

func NewAdd(pool common.Asset, units int64, provider string, runeAmt, assetAmt int64, inTx common.Transaction) Event {
	return New(TypeAdd,
		"pool", pool.String(),
		"liquidity_provider_units", itoa(units),
		"rune_address", provider,
		"rune_amount", itoa(runeAmt),
		"asset_amount", itoa(assetAmt),
		"id", inTx.ID,
		"chain", inTx.Chain,
	)
}

func NewWithdraw(pool common.Asset, unitsBurned, basisPoints int64, emitRune, emitAsset int64, inTx common.Transaction) Event {
	return New(TypeWithdraw,
		"pool", pool.String(),
		"liquidity_provider_units", itoa(unitsBurned),
		"basis_points", itoa(basisPoints),
		"asymmetry", "0",
		"emit_rune", itoa(emitRune),
		"emit_asset", itoa(emitAsset),
		"id", inTx.ID,
		"chain", inTx.Chain,
		"from", inTx.FromAddress,
	)
}

func NewRefund(code int, reason string, inTx common.Transaction) Event {
	return New(TypeRefund,
		"code", strconv.Itoa(code),
		"reason", reason,
		"id", inTx.ID,
		"chain", inTx.Chain,
		"from", inTx.FromAddress,
		"to", inTx.ToAddress,
		"coin", inTx.Coins.String(),
		"memo", inTx.Memo,
	)
}

func NewOutbound(inTx, outTx common.Transaction) Event {
	return New(TypeOutbound,
		"in_tx_id", inTx.ID,
		"id", outTx.ID,
		"chain", outTx.Chain,
		"from", outTx.FromAddress,
		"to", outTx.ToAddress,
		"coin", outTx.Coins.String(),
		"memo", outTx.Memo,
	)
}

func NewGas(asset common.Asset, assetAmt, runeAmt int64, txCount int) Event {
	return New(TypeGas,
		"asset", asset.String(),
		"asset_amt", itoa(assetAmt),
		"rune_amt", itoa(runeAmt),
		"transaction_count", strconv.Itoa(txCount),
	)
}

func NewFee(txID string, coins common.Coins, poolDeduct int64) Event {
	return New(TypeFee,
		"tx_id", txID,
		"coins", coins.String(),
		"pool_deduct", itoa(poolDeduct),
	)
}

// NewRewards carries the bond-reward emission followed by one attribute per
// pool credited this cycle, in pool registration order.
func NewRewards(bondReward int64, poolRewards []Attribute) Event {
	attrs := append([]Attribute{{Key: "bond_reward", Value: itoa(bondReward)}}, poolRewards...)
	return Event{Type: TypeRewards, Attributes: attrs}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
