// Package chains provides the chain-side halves of a reconciliation run: the
// capability contract every chain client satisfies, deterministic in-memory
// simulations of the supported chain families, and the alias book naming the
// actors a fixture sequence moves funds between.
package chains

import (
	"context"

	"PoolOracle/internal/common"
)

// Client is the minimal capability contract the verifier depends on. Real
// node clients and the in-memory sims both satisfy it.
type Client interface {
	// Transfer executes a transfer and returns the realized gas.
	Transfer(ctx context.Context, tx common.Transaction) (common.Coins, error)

	// GetBalance returns the confirmed balance of an address in one asset.
	GetBalance(ctx context.Context, address string, asset common.Asset) (int64, error)

	// GetBlockHeight returns the current chain tip height.
	GetBlockHeight(ctx context.Context) (int64, error)
}

// Reorger is the optional reorg-testing surface: capturing a block hash and
// later invalidating it rolls the chain back past that block.
type Reorger interface {
	GetBlockHash(ctx context.Context, height int64) (string, error)
	InvalidateBlock(ctx context.Context, hash string) error
}

// FeeModel prices the gas one transfer spends, in the chain's gas asset.
type FeeModel interface {
	// Fee is the flat outbound estimate pushed into the engine's registry.
	Fee() int64
	// GasFor prices a specific transfer.
	GasFor(tx common.Transaction) int64
}

// UTXOFee models bitcoin-family fees from block stats: size times rate.
type UTXOFee struct {
	TxSize int64
	TxRate int64
}

func (f UTXOFee) Fee() int64 { return f.TxSize * f.TxRate }

func (f UTXOFee) GasFor(common.Transaction) int64 { return f.Fee() }

// AccountFee models account-family chains with one fixed fee per transfer.
type AccountFee struct {
	Singleton int64
}

func (f AccountFee) Fee() int64 { return f.Singleton }

func (f AccountFee) GasFor(common.Transaction) int64 { return f.Singleton }

// EVMFee models gas-metered chains: a base allowance priced at the current
// gas price, plus a per-byte charge for the memo carried in calldata.
type EVMFee struct {
	GasPrice   int64
	DefaultGas int64
	GasPerByte int64
}

func (f EVMFee) Fee() int64 { return f.GasPrice * f.DefaultGas }

func (f EVMFee) GasFor(tx common.Transaction) int64 {
	return f.GasPrice * (f.DefaultGas + f.GasPerByte*int64(len(tx.Memo)))
}
