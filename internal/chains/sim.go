package chains

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"PoolOracle/internal/common"
	"PoolOracle/internal/memo"
)

// Sim is a deterministic in-memory chain: an account book, a fee model, and
// a block list growing one block per transfer. It stands in for a real node
// so a whole reconciliation run can execute with no network at all, and it
// doubles as the expected-balance ledger the verifier compares mock nodes
// against.
type Sim struct {
	mu       sync.Mutex
	chain    string
	gasAsset common.Asset
	model    FeeModel
	aliases  *AliasBook

	accounts map[string]map[string]int64
	blocks   []simBlock
}

type simBlock struct {
	hash      string
	transfers []appliedTransfer
}

type appliedTransfer struct {
	from, to string
	coins    common.Coins
	gas      common.Coin
}

// Faucet is the actor exempt from balance checks: it mints what it sends.
// Comparisons skip it for the same reason.
const Faucet = "MASTER"

// NewSim creates an empty chain simulation.
func NewSim(chain string, model FeeModel, aliases *AliasBook) *Sim {
	return &Sim{
		chain:    chain,
		gasAsset: common.GasAsset(chain),
		model:    model,
		aliases:  aliases,
		accounts: make(map[string]map[string]int64),
	}
}

// Chain returns the chain identifier.
func (s *Sim) Chain() string { return s.chain }

// GasAsset returns the asset fees are paid in.
func (s *Sim) GasAsset() common.Asset { return s.gasAsset }

// FeeEstimate is the flat outbound fee to push into the engine's registry.
func (s *Sim) FeeEstimate() int64 { return s.model.Fee() }

// Seed credits an account directly, bypassing transfers and fees. Test
// funding only.
func (s *Sim) Seed(address string, coin common.Coin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit(s.aliases.Address(s.chain, address), coin.Asset, coin.Amount)
}

// Transfer applies one transfer: aliases resolve to addresses, the sender
// pays the coins plus gas, the recipient receives the coins, and one block
// is appended. Returns the realized gas.
func (s *Sim) Transfer(ctx context.Context, tx common.Transaction) (common.Coins, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fromAlias := tx.FromAddress
	from := s.aliases.Address(s.chain, tx.FromAddress)
	to := s.aliases.Address(s.chain, tx.ToAddress)
	tx.Memo = s.aliases.ResolveMemo(s.memoChain(tx.Memo), tx.Memo)

	gas := common.Coin{Asset: s.gasAsset, Amount: s.model.GasFor(tx)}
	if fromAlias != Faucet {
		need := make(map[string]int64)
		for _, c := range tx.Coins.NonZero() {
			need[c.Asset.String()] += c.Amount
		}
		need[gas.Asset.String()] += gas.Amount
		for assetKey, amt := range need {
			if s.accounts[from][assetKey] < amt {
				return nil, fmt.Errorf("%s: %s has insufficient %s for %d", s.chain, fromAlias, assetKey, amt)
			}
		}
		for _, c := range tx.Coins.NonZero() {
			s.credit(from, c.Asset, -c.Amount)
		}
		s.credit(from, gas.Asset, -gas.Amount)
	}
	for _, c := range tx.Coins.NonZero() {
		s.credit(to, c.Asset, c.Amount)
	}

	height := int64(len(s.blocks)) + 1
	s.blocks = append(s.blocks, simBlock{
		hash:      blockHash(s.chain, height),
		transfers: []appliedTransfer{{from: fromAlias, to: to, coins: tx.Coins.NonZero(), gas: gas}},
	})

	return common.Coins{gas}, nil
}

// GetBalance returns the confirmed balance for one address and asset.
func (s *Sim) GetBalance(ctx context.Context, address string, asset common.Asset) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[s.aliases.Address(s.chain, address)][asset.String()], nil
}

// GetBlockHeight returns the chain tip height.
func (s *Sim) GetBlockHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.blocks)), nil
}

// GetBlockHash returns the hash of the block at a height.
func (s *Sim) GetBlockHash(ctx context.Context, height int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if height < 1 || height > int64(len(s.blocks)) {
		return "", fmt.Errorf("%s: no block at height %d", s.chain, height)
	}
	return s.blocks[height-1].hash, nil
}

// InvalidateBlock rolls the chain back past the named block: it and every
// later block are undone, transfers reversed, gas refunded.
func (s *Sim) InvalidateBlock(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	at := -1
	for i, b := range s.blocks {
		if b.hash == hash {
			at = i
			break
		}
	}
	if at < 0 {
		return fmt.Errorf("%s: unknown block hash %s", s.chain, hash)
	}

	for i := len(s.blocks) - 1; i >= at; i-- {
		for _, t := range s.blocks[i].transfers {
			for _, c := range t.coins {
				s.credit(t.to, c.Asset, -c.Amount)
				if t.from != Faucet {
					s.credit(s.aliases.Address(s.chain, t.from), c.Asset, c.Amount)
				}
			}
			if t.from != Faucet {
				s.credit(s.aliases.Address(s.chain, t.from), t.gas.Asset, t.gas.Amount)
			}
		}
	}
	s.blocks = s.blocks[:at]
	return nil
}

// Accounts returns every address holding a balance, sorted, with a copy of
// its balances. Balance comparison walks this.
func (s *Sim) Accounts() map[string]map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]int64, len(s.accounts))
	for addr, balances := range s.accounts {
		cp := make(map[string]int64, len(balances))
		for asset, amt := range balances {
			cp[asset] = amt
		}
		out[addr] = cp
	}
	return out
}

// Addresses returns the known addresses in sorted order.
func (s *Sim) Addresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.accounts))
	for addr := range s.accounts {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (s *Sim) credit(address string, asset common.Asset, amount int64) {
	if s.accounts[address] == nil {
		s.accounts[address] = make(map[string]int64)
	}
	s.accounts[address][asset.String()] += amount
}

// memoChain picks the chain aliases in a memo resolve against: liquidity
// memos name the provider's address on the native-asset chain, swap memos
// name a destination on the target asset's chain.
func (s *Sim) memoChain(raw string) string {
	in := memo.Parse(raw)
	switch in.Kind {
	case memo.KindAdd:
		return common.RuneAsset().Chain
	case memo.KindSwap:
		if !in.Asset.IsEmpty() {
			return in.Asset.Chain
		}
	}
	return s.chain
}

func blockHash(chain string, height int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", chain, height)))
	return hex.EncodeToString(sum[:])
}
