package chains

import (
	"context"
	"fmt"

	"PoolOracle/internal/common"
)

// evmRescale converts between the engine's 1e8 fixed point and the 1e18
// wei-style denomination EVM chains use natively.
const evmRescale = int64(1e10)

// DecimalAdapter wraps a chain client that speaks native EVM units and
// exposes it in engine units: amounts sent are scaled up, balances and
// realized gas coming back are scaled down, truncating.
type DecimalAdapter struct {
	inner Client
}

// NewDecimalAdapter wraps an EVM-denominated client.
func NewDecimalAdapter(inner Client) *DecimalAdapter {
	return &DecimalAdapter{inner: inner}
}

func (d *DecimalAdapter) Transfer(ctx context.Context, tx common.Transaction) (common.Coins, error) {
	scaled := tx
	scaled.Coins = scaleCoins(tx.Coins, evmRescale)
	scaled.Gas = scaleCoins(tx.Gas, evmRescale)
	gas, err := d.inner.Transfer(ctx, scaled)
	if err != nil {
		return nil, err
	}
	return downscaleCoins(gas), nil
}

func (d *DecimalAdapter) GetBalance(ctx context.Context, address string, asset common.Asset) (int64, error) {
	bal, err := d.inner.GetBalance(ctx, address, asset)
	if err != nil {
		return 0, err
	}
	return bal / evmRescale, nil
}

func (d *DecimalAdapter) GetBlockHeight(ctx context.Context) (int64, error) {
	return d.inner.GetBlockHeight(ctx)
}

// GetBlockHash forwards to the wrapped client when it supports reorgs.
func (d *DecimalAdapter) GetBlockHash(ctx context.Context, height int64) (string, error) {
	r, ok := d.inner.(Reorger)
	if !ok {
		return "", fmt.Errorf("chain client does not support reorgs")
	}
	return r.GetBlockHash(ctx, height)
}

// InvalidateBlock forwards to the wrapped client when it supports reorgs.
func (d *DecimalAdapter) InvalidateBlock(ctx context.Context, hash string) error {
	r, ok := d.inner.(Reorger)
	if !ok {
		return fmt.Errorf("chain client does not support reorgs")
	}
	return r.InvalidateBlock(ctx, hash)
}

func scaleCoins(coins common.Coins, factor int64) common.Coins {
	out := make(common.Coins, len(coins))
	for i, c := range coins {
		out[i] = common.Coin{Asset: c.Asset, Amount: c.Amount * factor}
	}
	return out
}

func downscaleCoins(coins common.Coins) common.Coins {
	out := make(common.Coins, len(coins))
	for i, c := range coins {
		out[i] = common.Coin{Asset: c.Asset, Amount: c.Amount / evmRescale}
	}
	return out
}
