package common

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
)

// DefaultChain is assumed when an asset string carries no chain qualifier,
// e.g. "RUNE-A1F" on a chain whose memo writer omitted the prefix.
const DefaultChain = "BNB"

// NativeTicker identifies the protocol settlement asset. Any symbol whose
// ticker is RUNE is treated as the native asset regardless of issuing chain.
const NativeTicker = "RUNE"

var (
	runeOnce  sync.Once
	runeAsset Asset
)

// RuneAsset returns the configured native settlement asset. Defaults to the
// chain-issued form used by the reference fixtures; override with
// ORACLE_NATIVE_ASSET for networks settling in THOR.RUNE.
func RuneAsset() Asset {
	runeOnce.Do(func() {
		s := os.Getenv("ORACLE_NATIVE_ASSET")
		if s == "" {
			s = "BNB.RUNE-A1F"
		}
		runeAsset = NewAsset(s)
	})
	return runeAsset
}

// Asset identifies a tradable asset as CHAIN.SYMBOL, where SYMBOL may carry
// a dash-separated issuance id (e.g. "BNB.LOK-3C0"). Equality is structural.
type Asset struct {
	Chain  string `json:"chain"`
	Symbol string `json:"symbol"`
	Ticker string `json:"ticker"`
}

// NewAsset parses an asset string of the form "CHAIN.SYMBOL" or bare
// "SYMBOL" (chain defaults to DefaultChain). The ticker is the symbol with
// any issuance id stripped.
func NewAsset(s string) Asset {
	chain := DefaultChain
	symbol := s
	if idx := strings.Index(s, "."); idx >= 0 {
		chain = s[:idx]
		symbol = s[idx+1:]
	}
	ticker := symbol
	if idx := strings.Index(symbol, "-"); idx >= 0 {
		ticker = symbol[:idx]
	}
	return Asset{Chain: chain, Symbol: symbol, Ticker: ticker}
}

// IsEmpty reports whether the asset carries no symbol.
func (a Asset) IsEmpty() bool {
	return a.Symbol == ""
}

// IsNative reports whether this is the protocol settlement asset.
func (a Asset) IsNative() bool {
	return a.Ticker == NativeTicker
}

// Equals compares assets structurally.
func (a Asset) Equals(b Asset) bool {
	return a.Chain == b.Chain && a.Symbol == b.Symbol
}

// SymbolEquals reports whether the asset's symbol matches s exactly.
// Used by the liquidity engine's memo/coin match rule.
func (a Asset) SymbolEquals(s string) bool {
	return a.Symbol != "" && a.Symbol == s
}

func (a Asset) String() string {
	if a.IsEmpty() {
		return ""
	}
	return a.Chain + "." + a.Symbol
}

// MarshalJSON renders the asset in its wire form "CHAIN.SYMBOL".
func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either the wire string form or the structured form
// used by pool snapshots ({"chain":...,"symbol":...}).
func (a *Asset) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = NewAsset(s)
		return nil
	}
	var obj struct {
		Chain  string `json:"chain"`
		Symbol string `json:"symbol"`
		Ticker string `json:"ticker"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = Asset{Chain: obj.Chain, Symbol: obj.Symbol, Ticker: obj.Ticker}
	if a.Ticker == "" {
		if idx := strings.Index(a.Symbol, "-"); idx >= 0 {
			a.Ticker = a.Symbol[:idx]
		} else {
			a.Ticker = a.Symbol
		}
	}
	return nil
}
