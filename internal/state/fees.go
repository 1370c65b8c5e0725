package state

// DefaultNativeFee is the flat network fee charged on native-asset
// outbounds, in 1e8 units.
const DefaultNativeFee = 2000000

// NetworkFees is the per-chain outbound fee registry. The upstream system
// kept these in ambient globals; here they are explicit state pushed in
// before each transaction from the chain mocks' current estimates.
type NetworkFees struct {
	fees      map[string]int64
	nativeFee int64
}

func NewNetworkFees() *NetworkFees {
	return &NetworkFees{
		fees:      make(map[string]int64),
		nativeFee: DefaultNativeFee,
	}
}

// Set replaces the estimate for one chain.
func (n *NetworkFees) Set(chain string, fee int64) {
	n.fees[chain] = fee
}

// SetAll replaces estimates for every chain in the map.
func (n *NetworkFees) SetAll(fees map[string]int64) {
	for chain, fee := range fees {
		n.fees[chain] = fee
	}
}

// Fee returns the current estimate for a chain, 0 when unknown.
func (n *NetworkFees) Fee(chain string) int64 {
	return n.fees[chain]
}

// NativeFee is the flat fee for native-asset outbounds.
func (n *NetworkFees) NativeFee() int64 {
	return n.nativeFee
}
