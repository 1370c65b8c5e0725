package common

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Coin is an asset plus an amount in the smallest unit (1e8 fixed point).
// All balance-affecting arithmetic stays in integers; division truncates.
type Coin struct {
	Asset  Asset `json:"asset"`
	Amount int64 `json:"amount"`
}

// NewCoin builds a coin from an asset string and amount.
func NewCoin(asset string, amount int64) Coin {
	return Coin{Asset: NewAsset(asset), Amount: amount}
}

// IsZero reports whether the coin carries no value.
func (c Coin) IsZero() bool {
	return c.Amount == 0
}

// IsNative reports whether the coin is denominated in the settlement asset.
func (c Coin) IsNative() bool {
	return c.Asset.IsNative()
}

// Equals compares asset and amount.
func (c Coin) Equals(o Coin) bool {
	return c.Asset.Equals(o.Asset) && c.Amount == o.Amount
}

// String renders the event wire form "<amount> <asset>".
func (c Coin) String() string {
	return fmt.Sprintf("%d %s", c.Amount, c.Asset)
}

// Coins is an ordered list of coins.
type Coins []Coin

// Equals compares element-wise in order.
func (cs Coins) Equals(o Coins) bool {
	if len(cs) != len(o) {
		return false
	}
	for i := range cs {
		if !cs[i].Equals(o[i]) {
			return false
		}
	}
	return true
}

// NonZero returns the coins with a positive amount, preserving order.
func (cs Coins) NonZero() Coins {
	out := make(Coins, 0, len(cs))
	for _, c := range cs {
		if c.Amount > 0 {
			out = append(out, c)
		}
	}
	return out
}

// String joins the coin wire forms with ", ", matching the event encoding
// the live node uses for multi-coin fields.
func (cs Coins) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// UnmarshalJSON accepts amounts encoded as JSON numbers or strings; the live
// node emits stringified integers in snapshots.
func (c *Coin) UnmarshalJSON(data []byte) error {
	var raw struct {
		Asset  Asset           `json:"asset"`
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Asset = raw.Asset
	if len(raw.Amount) == 0 {
		c.Amount = 0
		return nil
	}
	s := strings.Trim(string(raw.Amount), `"`)
	if s == "" || s == "null" {
		c.Amount = 0
		return nil
	}
	amt, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse coin amount %q: %w", s, err)
	}
	c.Amount = amt
	return nil
}
