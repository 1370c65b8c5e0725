package common

// gasAssets maps each supported chain to the asset its fees are paid in.
var gasAssets = map[string]string{
	"BNB":   "BNB.BNB",
	"BTC":   "BTC.BTC",
	"BCH":   "BCH.BCH",
	"LTC":   "LTC.LTC",
	"ETH":   "ETH.ETH",
	"AVAX":  "AVAX.AVAX",
	"TERRA": "TERRA.LUNA",
	"THOR":  "THOR.RUNE",
}

// GasAsset returns the fee asset for a chain, or an empty asset for an
// unknown chain.
func GasAsset(chain string) Asset {
	s, ok := gasAssets[chain]
	if !ok {
		return Asset{}
	}
	return NewAsset(s)
}
