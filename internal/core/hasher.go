package core

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "PoolOracle:genesis:v1"

// StateHasher chains a deterministic hash over every applied transition:
// hash[N] = SHA-256(hash[N-1] || sequence || digest). Two engines fed the
// same transactions from the same initial state agree on every link.
type StateHasher struct {
	prevHash [32]byte
}

// NewStateHasher starts the chain at the genesis hash.
func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(genesisHashSeed))}
}

// Advance folds one transition's state digest into the chain and returns
// the new tip.
func (h *StateHasher) Advance(sequence int64, stateDigest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(stateDigest)

	copy(h.prevHash[:], hasher.Sum(nil))
	return h.prevHash
}

// Current returns the chain tip.
func (h *StateHasher) Current() [32]byte {
	return h.prevHash
}

// digest serializes the ledger for hashing: every pool in registration
// order (asset, reserves, unit counters, per-provider units in insertion
// order) followed by the vault counters. Field order is part of the format;
// changing it invalidates recorded hashes.
func (e *Engine) digest() []byte {
	buf := make([]byte, 0, 256)
	appendInt := func(v int64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		buf = append(buf, b[:]...)
	}
	appendStr := func(s string) {
		appendInt(int64(len(s)))
		buf = append(buf, s...)
	}

	appendInt(int64(len(e.poolOrder)))
	for _, p := range e.Pools() {
		appendStr(p.Asset.String())
		appendInt(p.RuneBalance)
		appendInt(p.AssetBalance)
		appendInt(p.LPUnits)
		appendInt(p.SynthBalance)
		for _, provider := range p.Providers() {
			appendStr(provider)
			appendInt(p.ProviderUnits(provider))
		}
	}
	appendInt(e.vault.Reserve)
	appendInt(e.vault.BondReward)
	return buf
}
