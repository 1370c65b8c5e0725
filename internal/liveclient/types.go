package liveclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexInt decodes the node's habit of stringifying large integers in some
// responses and leaving them bare in others.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse int field %q: %w", s, err)
	}
	*f = flexInt(v)
	return nil
}

// PoolSnapshot is one pool's balances as the live node reports them.
type PoolSnapshot struct {
	Asset        string `json:"asset"`
	BalanceRune  int64  `json:"-"`
	BalanceAsset int64  `json:"-"`
	LPUnits      int64  `json:"-"`
	SynthUnits   int64  `json:"-"`
	PoolUnits    int64  `json:"-"`
}

func (p *PoolSnapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Asset        string  `json:"asset"`
		BalanceRune  flexInt `json:"balance_rune"`
		BalanceAsset flexInt `json:"balance_asset"`
		LPUnits      flexInt `json:"LP_units"`
		SynthUnits   flexInt `json:"synth_units"`
		PoolUnits    flexInt `json:"pool_units"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PoolSnapshot{
		Asset:        raw.Asset,
		BalanceRune:  int64(raw.BalanceRune),
		BalanceAsset: int64(raw.BalanceAsset),
		LPUnits:      int64(raw.LPUnits),
		SynthUnits:   int64(raw.SynthUnits),
		PoolUnits:    int64(raw.PoolUnits),
	}
	return nil
}

// VaultData is the node's reserve and bond-reward counters at a height.
type VaultData struct {
	TotalReserve   int64 `json:"-"`
	BondRewardRune int64 `json:"-"`
}

func (v *VaultData) UnmarshalJSON(data []byte) error {
	var raw struct {
		TotalReserve   flexInt `json:"total_reserve"`
		BondRewardRune flexInt `json:"bond_reward_rune"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.TotalReserve = int64(raw.TotalReserve)
	v.BondRewardRune = int64(raw.BondRewardRune)
	return nil
}
