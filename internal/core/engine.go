// Package core is the deterministic AMM state engine: it consumes inbound
// transactions one at a time, mutates the pool ledger, and emits outbound
// transactions plus a strictly ordered event log. Everything here runs on a
// single logical writer; callers serialize transactions the way the live
// network serializes them into blocks.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"PoolOracle/internal/common"
	"PoolOracle/internal/event"
	"PoolOracle/internal/memo"
	"PoolOracle/internal/state"
)

// Engine recomputes the economic state the live network is expected to
// produce.
type Engine struct {
	log    zerolog.Logger
	vault  *state.Vault
	fees   *state.NetworkFees
	hasher *StateHasher

	pools     map[string]*state.Pool
	poolOrder []string

	events event.Events
	height int64
	seq    int64
	leg    int
}

// Config carries construction-time parameters; ambient registries from the
// upstream system became explicit fields here.
type Config struct {
	Reserve int64
	Logger  zerolog.Logger
}

// New builds an engine with an empty pool ledger.
func New(cfg Config) *Engine {
	return &Engine{
		log:    cfg.Logger.With().Str("component", "engine").Logger(),
		vault:  state.NewVault(cfg.Reserve),
		fees:   state.NewNetworkFees(),
		hasher: NewStateHasher(),
		pools:  make(map[string]*state.Pool),
	}
}

// GetPool returns the pool for an asset, nil when none exists.
func (e *Engine) GetPool(asset common.Asset) *state.Pool {
	return e.pools[asset.String()]
}

// SetPool registers a pool, preserving registration order. Tests and
// snapshot restores use this; live pools appear through liquidity adds.
func (e *Engine) SetPool(p *state.Pool) {
	key := p.Asset.String()
	if _, ok := e.pools[key]; !ok {
		e.poolOrder = append(e.poolOrder, key)
	}
	e.pools[key] = p
}

// Pools returns all pools in registration order.
func (e *Engine) Pools() []*state.Pool {
	out := make([]*state.Pool, 0, len(e.poolOrder))
	for _, key := range e.poolOrder {
		out = append(out, e.pools[key])
	}
	return out
}

// Vault exposes the reserve/bond counters for reconciliation.
func (e *Engine) Vault() *state.Vault {
	return e.vault
}

// SetNetworkFees pushes the chains' current fee estimates in before a
// transaction is applied.
func (e *Engine) SetNetworkFees(fees map[string]int64) {
	e.fees.SetAll(fees)
}

// SetHeight records the live block height observed by the caller; events
// appended afterwards carry it.
func (e *Engine) SetHeight(h int64) {
	e.height = h
}

// Events returns the full event log. The slice is the engine's own; callers
// must not mutate it.
func (e *Engine) Events() event.Events {
	return e.events
}

// StateHash is the chained hash over every transition applied so far;
// replaying the same inputs from the same initial state reproduces it
// byte for byte.
func (e *Engine) StateHash() [32]byte {
	return e.hasher.Current()
}

// Sequence is the number of transitions folded into the hash chain.
func (e *Engine) Sequence() int64 {
	return e.seq
}

// Handle applies one inbound transaction and returns the outbound
// transactions it produces. Acceptance is final: the engine never retries
// or rolls back a handled transaction.
func (e *Engine) Handle(tx common.Transaction) []common.Transaction {
	e.leg = 0
	in := memo.Parse(tx.Memo)
	var outs []common.Transaction
	switch in.Kind {
	case memo.KindSeed:
		// test-only funding bypasses the engine entirely
		return nil
	case memo.KindSwap:
		outs = e.handleSwap(tx, in)
	case memo.KindAdd:
		outs = e.handleAdd(tx, in)
	case memo.KindWithdraw:
		outs = e.handleWithdraw(tx, in)
	default:
		outs = e.refund(tx, ParseFault)
	}
	e.advanceHash()
	return outs
}

func (e *Engine) handleSwap(tx common.Transaction, in memo.Intent) []common.Transaction {
	coins := tx.Coins.NonZero()
	if len(coins) != 1 {
		return e.refund(tx, ImbalanceRefund)
	}
	source := coins[0]
	target := in.Asset

	if source.Asset.Equals(target) {
		return e.refund(tx, ParseFault)
	}

	dest := in.Destination
	if dest == "" {
		dest = tx.FromAddress
	}
	// An explicit destination carrying the raw chain identifier as its
	// prefix belongs to the foreign network of the same family; executing
	// would strand the funds, so refund instead.
	if in.Destination != "" && strings.HasPrefix(strings.ToUpper(dest), strings.ToUpper(tx.Chain)) {
		return e.refund(tx, InsufficientOutput)
	}

	if !source.IsNative() && !target.IsNative() {
		return e.doubleSwap(tx, source, target, dest, in.Limit)
	}
	return e.singleSwap(tx, source, target, dest, in.Limit)
}

func (e *Engine) singleSwap(tx common.Transaction, source common.Coin, target common.Asset, dest string, limit int64) []common.Transaction {
	poolAsset := target
	if !source.IsNative() {
		poolAsset = source.Asset
	}
	pool := e.GetPool(poolAsset)
	if pool == nil || !pool.IsActive() {
		return e.refund(tx, PoolNotFound)
	}

	q := quoteSwap(pool, source.Amount, source.IsNative())
	if q.output == 0 {
		return e.refund(tx, InsufficientOutput)
	}
	if limit > 0 && q.output < limit {
		return e.refund(tx, InsufficientOutput)
	}
	q.commit()

	emit := common.Coin{Asset: target, Amount: q.output}
	e.append(event.NewSwap(pool.Asset, limit, q.tradeSlip, q.fee, q.feeInRune, tx, emit))

	out := e.newOutbound(tx, dest, emit)
	e.log.Debug().Str("pool", pool.Asset.String()).Int64("in", source.Amount).Int64("out", q.output).Msg("swap")
	return []common.Transaction{out}
}

// doubleSwap routes asset->native->asset. The first leg's pool update is
// committed before the second leg executes; a second-leg refund reverses
// the first leg before anything is recorded.
func (e *Engine) doubleSwap(tx common.Transaction, source common.Coin, target common.Asset, dest string, limit int64) []common.Transaction {
	sourcePool := e.GetPool(source.Asset)
	targetPool := e.GetPool(target)
	if sourcePool == nil || !sourcePool.IsActive() || targetPool == nil || !targetPool.IsActive() {
		return e.refund(tx, PoolNotFound)
	}

	leg1 := quoteSwap(sourcePool, source.Amount, false)
	if leg1.output == 0 {
		return e.refund(tx, InsufficientOutput)
	}
	leg1.commit()

	leg2 := quoteSwap(targetPool, leg1.output, true)
	if leg2.output == 0 || (limit > 0 && leg2.output < limit) {
		leg1.uncommit()
		return e.refund(tx, InsufficientOutput)
	}
	leg2.commit()

	native := common.Coin{Asset: common.RuneAsset(), Amount: leg1.output}
	e.append(event.NewSwap(sourcePool.Asset, 0, leg1.tradeSlip, leg1.fee, leg1.feeInRune, tx, native))
	emit := common.Coin{Asset: target, Amount: leg2.output}
	e.append(event.NewSwap(targetPool.Asset, limit, leg2.tradeSlip, leg2.fee, leg2.feeInRune, tx, emit))

	out := e.newOutbound(tx, dest, emit)
	e.log.Debug().
		Str("source", sourcePool.Asset.String()).
		Str("target", targetPool.Asset.String()).
		Int64("in", source.Amount).Int64("bridge", leg1.output).Int64("out", leg2.output).
		Msg("double swap")
	return []common.Transaction{out}
}

func (e *Engine) handleAdd(tx common.Transaction, in memo.Intent) []common.Transaction {
	if in.Asset.IsNative() {
		return e.refund(tx, ImbalanceRefund)
	}

	var runeAmt, assetAmt int64
	for _, c := range tx.Coins {
		switch {
		case c.IsNative():
			runeAmt += c.Amount
		case c.Asset.SymbolEquals(in.Asset.Symbol):
			assetAmt += c.Amount
		case c.Amount > 0:
			// a non-native coin contradicting the memo invalidates the add
			return e.refund(tx, ImbalanceRefund)
		}
	}
	if runeAmt == 0 && assetAmt == 0 {
		return e.refund(tx, ImbalanceRefund)
	}

	pool := e.GetPool(in.Asset)
	if pool == nil {
		pool = state.NewPool(in.Asset)
		e.SetPool(pool)
	}
	units := pool.Add(tx.FromAddress, runeAmt, assetAmt)
	e.append(event.NewAdd(pool.Asset, units, tx.FromAddress, runeAmt, assetAmt, tx))
	e.log.Debug().Str("pool", pool.Asset.String()).Int64("units", units).Msg("liquidity added")
	return nil
}

func (e *Engine) handleWithdraw(tx common.Transaction, in memo.Intent) []common.Transaction {
	if in.BasisPoints < 0 || in.BasisPoints > memo.MaxBasisPoints {
		return e.refund(tx, RangeFault)
	}
	pool := e.GetPool(in.Asset)
	if pool == nil {
		return e.refund(tx, PoolNotFound)
	}

	runeOut, assetOut, burned, err := pool.Withdraw(tx.FromAddress, in.BasisPoints)
	if err != nil {
		return e.refund(tx, PoolNotFound)
	}
	e.append(event.NewWithdraw(pool.Asset, burned, in.BasisPoints, runeOut, assetOut, tx))

	var outs []common.Transaction
	if runeOut > 0 {
		coin := common.Coin{Asset: common.RuneAsset(), Amount: runeOut}
		outs = append(outs, e.newOutbound(tx, tx.FromAddress, coin))
	}
	if assetOut > 0 {
		outs = append(outs, e.newOutbound(tx, tx.FromAddress, common.Coin{Asset: pool.Asset, Amount: assetOut}))
	}
	e.log.Debug().Str("pool", pool.Asset.String()).Int64("burned", burned).Msg("liquidity withdrawn")
	return outs
}

// refund returns every non-zero inbound coin to the sender, one outbound
// per coin, and records a single refund event. Pool-level faults always end
// here; they are never hard failures.
func (e *Engine) refund(tx common.Transaction, kind ErrorKind) []common.Transaction {
	e.append(event.NewRefund(kind.Code(), kind.String(), tx))
	coins := tx.Coins.NonZero()
	outs := make([]common.Transaction, 0, len(coins))
	for _, c := range coins {
		outs = append(outs, e.outboundTx(tx, tx.Chain, tx.FromAddress, common.Coins{c}, RefundMemo))
	}
	e.log.Debug().Str("reason", kind.String()).Str("memo", tx.Memo).Msg("refund")
	return outs
}

// newOutbound builds the outbound transfer for an engine result. The chain
// is taken from the coin's asset; the vault address it leaves from is the
// inbound destination.
func (e *Engine) newOutbound(inTx common.Transaction, to string, coin common.Coin) common.Transaction {
	chain := coin.Asset.Chain
	if coin.IsNative() {
		chain = inTx.Chain
	}
	return e.outboundTx(inTx, chain, to, common.Coins{coin}, OutboundMemo)
}

// outboundTx mints one outbound transfer. Ids derive from the inbound id
// and the leg index, so engines replaying the same history mint identical
// ids and their event logs stay comparable.
func (e *Engine) outboundTx(inTx common.Transaction, chain, to string, coins common.Coins, memoStr string) common.Transaction {
	out := common.Transaction{
		ID:          outboundID(inTx.ID, e.leg),
		Chain:       chain,
		FromAddress: inTx.ToAddress,
		ToAddress:   to,
		Coins:       coins,
		Memo:        memoStr,
	}
	e.leg++
	return out
}

func outboundID(inTxID string, leg int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", inTxID, leg)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (e *Engine) append(ev event.Event) {
	e.events = append(e.events, ev.WithHeight(e.height))
}

// advanceHash folds the current ledger into the hash chain after a
// transition completes.
func (e *Engine) advanceHash() {
	e.seq++
	e.hasher.Advance(e.seq, e.digest())
}
