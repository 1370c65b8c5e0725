// Package state holds the mutable economic state the engine drives: the
// pool ledger, the process-wide vault counters, and the per-chain network
// fee registry. All of it is single-writer; mutation order is part of the
// protocol because unit minting and pricing are non-commutative.
package state

import (
	"fmt"
	"math/big"

	"PoolOracle/internal/common"
)

// Pool is the reserve pair for one non-native asset plus its liquidity-unit
// accounting. A pool with a zero balance on either side is inactive: it
// cannot price a swap and the engine must refund instead.
type Pool struct {
	Asset        common.Asset
	RuneBalance  int64
	AssetBalance int64
	LPUnits      int64
	SynthBalance int64

	providers     map[string]int64
	providerOrder []string
}

// NewPool creates an empty pool for the given asset.
func NewPool(asset common.Asset) *Pool {
	return &Pool{
		Asset:     asset,
		providers: make(map[string]int64),
	}
}

// NewPoolWithBalances seeds a pool directly; tests and snapshot restores use
// this, live state only ever grows balances through Add.
func NewPoolWithBalances(asset common.Asset, runeBalance, assetBalance int64) *Pool {
	p := NewPool(asset)
	p.RuneBalance = runeBalance
	p.AssetBalance = assetBalance
	return p
}

// IsActive reports whether the pool can price a swap.
func (p *Pool) IsActive() bool {
	return p.RuneBalance > 0 && p.AssetBalance > 0
}

// SynthUnits derives the unit share attributable to outstanding synthetic
// supply: lpUnits * synthBalance / (2*assetBalance - synthBalance).
func (p *Pool) SynthUnits() int64 {
	if p.SynthBalance == 0 {
		return 0
	}
	denom := 2*p.AssetBalance - p.SynthBalance
	if denom <= 0 {
		return 0
	}
	return mulDiv(p.LPUnits, p.SynthBalance, denom)
}

// PoolUnits is the total unit supply: provider units plus synth units.
func (p *Pool) PoolUnits() int64 {
	return p.LPUnits + p.SynthUnits()
}

// ProviderUnits returns the unit balance held by a provider address.
func (p *Pool) ProviderUnits(addr string) int64 {
	return p.providers[addr]
}

// Providers returns provider addresses in first-add order.
func (p *Pool) Providers() []string {
	return p.providerOrder
}

// MintUnits prices the units for contributing runeAmt/assetAmt on top of the
// current reserves, without applying anything. The first add into an empty
// pool mints the simple average of the two amounts; afterwards units derive
// from the post-add depth (R'+A')(r*A' + R'*a)/(4*R'*A'), which discounts
// one-sided adds and mints at the undiscounted rate for ratio-preserving
// ones. Calibrated against the reference fixtures; truncating division.
func (p *Pool) MintUnits(runeAmt, assetAmt int64) int64 {
	if p.RuneBalance == 0 && p.AssetBalance == 0 {
		return (runeAmt + assetAmt) / 2
	}
	R := new(big.Int).SetInt64(p.RuneBalance + runeAmt)
	A := new(big.Int).SetInt64(p.AssetBalance + assetAmt)
	r := new(big.Int).SetInt64(runeAmt)
	a := new(big.Int).SetInt64(assetAmt)

	// (R+A) * (r*A + R*a)
	num := new(big.Int).Add(new(big.Int).Mul(r, A), new(big.Int).Mul(R, a))
	num.Mul(num, new(big.Int).Add(R, A))

	// 4*R*A
	den := new(big.Int).Mul(R, A)
	den.Mul(den, big.NewInt(4))

	return num.Div(num, den).Int64()
}

// Add applies a liquidity contribution and credits the minted units to the
// provider. Total units only ever increase here.
func (p *Pool) Add(provider string, runeAmt, assetAmt int64) int64 {
	units := p.MintUnits(runeAmt, assetAmt)
	p.RuneBalance += runeAmt
	p.AssetBalance += assetAmt
	p.LPUnits += units
	if _, ok := p.providers[provider]; !ok {
		p.providerOrder = append(p.providerOrder, provider)
	}
	p.providers[provider] += units
	return units
}

// CalcWithdraw prices a pro-rata redemption of basisPoints/10000 of the
// given unit balance without mutating the pool. No imbalance penalty applies
// on the way out.
func (p *Pool) CalcWithdraw(units, basisPoints int64) (remaining, runeOut, assetOut int64) {
	burn := mulDiv(units, basisPoints, 10000)
	total := p.PoolUnits()
	if total == 0 {
		return units, 0, 0
	}
	runeOut = mulDiv(p.RuneBalance, burn, total)
	assetOut = mulDiv(p.AssetBalance, burn, total)
	return units - burn, runeOut, assetOut
}

// Withdraw burns basisPoints/10000 of the provider's units and debits the
// redeemed reserves. The provider record is removed once its balance reaches
// zero; the pool itself persists even fully drained.
func (p *Pool) Withdraw(provider string, basisPoints int64) (runeOut, assetOut, burned int64, err error) {
	units, ok := p.providers[provider]
	if !ok || units == 0 {
		return 0, 0, 0, fmt.Errorf("pool %s: no liquidity units for %s", p.Asset, provider)
	}
	remaining, runeOut, assetOut := p.CalcWithdraw(units, basisPoints)
	burned = units - remaining

	p.RuneBalance -= runeOut
	p.AssetBalance -= assetOut
	p.LPUnits -= burned
	if remaining == 0 {
		delete(p.providers, provider)
		for i, addr := range p.providerOrder {
			if addr == provider {
				p.providerOrder = append(p.providerOrder[:i], p.providerOrder[i+1:]...)
				break
			}
		}
	} else {
		p.providers[provider] = remaining
	}
	return runeOut, assetOut, burned, nil
}

// SumProviderUnits is the invariant-side of the unit ledger: it must equal
// LPUnits after every transition.
func (p *Pool) SumProviderUnits() int64 {
	var sum int64
	for _, u := range p.providers {
		sum += u
	}
	return sum
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool %s: %d rune / %d asset (units %d)", p.Asset, p.RuneBalance, p.AssetBalance, p.PoolUnits())
}

// mulDiv computes a*b/c with an overflow-safe intermediate, truncating.
func mulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return n.Div(n, big.NewInt(c)).Int64()
}
