// Package memo classifies inbound transaction memos into engine intents.
//
// The grammar is colon-delimited with a case-sensitive prefix:
//
//	SWAP:<asset>[:<dest-address>][:<price-limit>]
//	ADD:<asset> | STAKE:<asset>
//	WITHDRAW:<asset>[:<basis-points>]
//	SEED
//
// Anything else, including an empty memo, is a Noop: funds arrived with no
// actionable instruction and the engine must refund them in full. Malformed
// numeric fields never raise; they fold into refund-triggering defaults.
package memo

import (
	"math"
	"strconv"
	"strings"

	"PoolOracle/internal/common"
)

// Kind discriminates parsed intents.
type Kind int

const (
	KindNoop Kind = iota
	KindSwap
	KindAdd
	KindWithdraw
	KindSeed
)

func (k Kind) String() string {
	switch k {
	case KindSwap:
		return "swap"
	case KindAdd:
		return "add"
	case KindWithdraw:
		return "withdraw"
	case KindSeed:
		return "seed"
	default:
		return "noop"
	}
}

// MaxBasisPoints is the full-withdrawal fraction.
const MaxBasisPoints = 10000

// Intent is the parsed instruction carried by a memo.
type Intent struct {
	Kind        Kind
	Asset       common.Asset
	Destination string // swap only: overrides the refund-to/sender address
	Limit       int64  // swap only: minimum acceptable output, 0 = none
	BasisPoints int64  // withdraw only: fraction to redeem; <0 or >10000 refunds
}

// Parse classifies a memo. It never fails: unrecognized or malformed memos
// come back as Noop and the caller refunds.
func Parse(raw string) Intent {
	parts := strings.Split(raw, ":")
	switch parts[0] {
	case "SEED":
		return Intent{Kind: KindSeed}
	case "SWAP":
		return parseSwap(parts)
	case "ADD", "STAKE":
		return parseAdd(parts)
	case "WITHDRAW":
		return parseWithdraw(parts)
	default:
		return Intent{Kind: KindNoop}
	}
}

func parseSwap(parts []string) Intent {
	if len(parts) < 2 || parts[1] == "" {
		return Intent{Kind: KindNoop}
	}
	in := Intent{Kind: KindSwap, Asset: common.NewAsset(parts[1])}
	if len(parts) > 2 {
		in.Destination = parts[2]
	}
	if len(parts) > 3 && parts[3] != "" {
		limit, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil || limit < 0 {
			// Unparseable or overflowing limits become an unmeetable target so
			// the swap refunds rather than executing at an unknown price.
			limit = math.MaxInt64
		}
		in.Limit = limit
	}
	return in
}

func parseAdd(parts []string) Intent {
	if len(parts) < 2 || parts[1] == "" {
		return Intent{Kind: KindNoop}
	}
	return Intent{Kind: KindAdd, Asset: common.NewAsset(parts[1])}
}

func parseWithdraw(parts []string) Intent {
	in := Intent{Kind: KindWithdraw, BasisPoints: MaxBasisPoints}
	if len(parts) > 1 && parts[1] != "" {
		in.Asset = common.NewAsset(parts[1])
	}
	if len(parts) > 2 && parts[2] != "" {
		bp, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			bp = -1
		}
		in.BasisPoints = bp
	}
	return in
}
