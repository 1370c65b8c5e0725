package state

// Vault holds the process-wide scalar counters moved by reward distribution.
// They belong to no pool.
type Vault struct {
	Reserve    int64
	BondReward int64
	PubKey     string
}

// NewVault seeds the reserve; the live network funds it at genesis.
func NewVault(reserve int64) *Vault {
	return &Vault{Reserve: reserve}
}

// DebitReserve removes up to amt from the reserve and returns what was
// actually taken; the reserve never goes negative.
func (v *Vault) DebitReserve(amt int64) int64 {
	if amt > v.Reserve {
		amt = v.Reserve
	}
	v.Reserve -= amt
	return amt
}
