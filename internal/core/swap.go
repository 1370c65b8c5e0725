package core

import (
	"math/big"

	"PoolOracle/internal/state"
)

// Constant-product pricing. All intermediates go through big.Int so a full
// reserve times a full input cannot overflow; division truncates everywhere.

// calcSwapOutput prices x units against input-side reserve X and output-side
// reserve Y: floor(x*X*Y / (x+X)^2).
func calcSwapOutput(x, X, Y int64) int64 {
	if x <= 0 || X <= 0 || Y <= 0 {
		return 0
	}
	bx, bX, bY := big.NewInt(x), big.NewInt(X), big.NewInt(Y)
	num := new(big.Int).Mul(bx, bX)
	num.Mul(num, bY)
	den := new(big.Int).Add(bx, bX)
	den.Mul(den, den)
	return num.Div(num, den).Int64()
}

// calcTradeSlip is the quoted slip in basis points: 10000 * x*(2X+x) / X^2.
func calcTradeSlip(x, X int64) int64 {
	if x <= 0 || X <= 0 {
		return 0
	}
	bx, bX := big.NewInt(x), big.NewInt(X)
	num := new(big.Int).Lsh(bX, 1)
	num.Add(num, bx)
	num.Mul(num, bx)
	num.Mul(num, big.NewInt(10000))
	den := new(big.Int).Mul(bX, bX)
	return num.Div(num, den).Int64()
}

// calcLiquidityFee is the output-side value ceded to the pool by slippage:
// floor(x^2 * Y / (x+X)^2).
func calcLiquidityFee(x, X, Y int64) int64 {
	if x <= 0 || X <= 0 || Y <= 0 {
		return 0
	}
	bx, bX, bY := big.NewInt(x), big.NewInt(X), big.NewInt(Y)
	num := new(big.Int).Mul(bx, bx)
	num.Mul(num, bY)
	den := new(big.Int).Add(bx, bX)
	den.Mul(den, den)
	return num.Div(num, den).Int64()
}

// swapQuote is one priced (not yet applied) leg.
type swapQuote struct {
	pool       *state.Pool
	runeIn     bool // input side is the native asset
	input      int64
	output     int64
	tradeSlip  int64
	fee        int64
	feeInRune  int64
}

// quoteSwap prices one leg against the pool without mutating it.
func quoteSwap(pool *state.Pool, input int64, runeIn bool) swapQuote {
	X, Y := pool.RuneBalance, pool.AssetBalance
	if !runeIn {
		X, Y = pool.AssetBalance, pool.RuneBalance
	}
	q := swapQuote{
		pool:      pool,
		runeIn:    runeIn,
		input:     input,
		output:    calcSwapOutput(input, X, Y),
		tradeSlip: calcTradeSlip(input, X),
		fee:       calcLiquidityFee(input, X, Y),
	}
	if runeIn {
		// output side is the pool asset; restate the fee in rune terms
		q.feeInRune = mulDiv(q.fee, pool.RuneBalance, pool.AssetBalance)
	} else {
		q.feeInRune = q.fee
	}
	return q
}

// commit applies the priced leg to its pool: input reserve up, output
// reserve down, atomically.
func (q swapQuote) commit() {
	if q.runeIn {
		q.pool.RuneBalance += q.input
		q.pool.AssetBalance -= q.output
	} else {
		q.pool.AssetBalance += q.input
		q.pool.RuneBalance -= q.output
	}
}

// uncommit reverses a committed leg; only the double-swap refund path uses
// it, before any event for the leg has been recorded.
func (q swapQuote) uncommit() {
	if q.runeIn {
		q.pool.RuneBalance -= q.input
		q.pool.AssetBalance += q.output
	} else {
		q.pool.AssetBalance -= q.input
		q.pool.RuneBalance += q.output
	}
}

func mulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return n.Div(n, big.NewInt(c)).Int64()
}
