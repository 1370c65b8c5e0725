package core

// Wire-compatible memo markers. The live network emits these fixed literals
// on outbound and refund transactions; they are protocol constants, not
// templates.
const (
	RefundMemo   = "REFUND:TODO"
	OutboundMemo = "OUTBOUND:TODO"
)

// ErrorKind classifies why the engine degraded a transaction to a refund.
// These never surface as hard failures; they ride alongside the fixed wire
// marker for diagnostics.
type ErrorKind int

const (
	// ParseFault: the memo was empty, unknown, or malformed.
	ParseFault ErrorKind = iota
	// PoolNotFound: the referenced pool does not exist or cannot price.
	PoolNotFound
	// InsufficientOutput: the priced swap output was zero or under the
	// caller's limit.
	InsufficientOutput
	// ImbalanceRefund: a liquidity add whose coins contradict the memo.
	ImbalanceRefund
	// RangeFault: withdraw basis points outside [0, 10000].
	RangeFault
)

// Code is the numeric refund code carried in refund events; the live node
// uses a single code for all user-caused refunds.
func (k ErrorKind) Code() int {
	return 105
}

func (k ErrorKind) String() string {
	switch k {
	case ParseFault:
		return "memo can't be parsed"
	case PoolNotFound:
		return "pool doesn't exist"
	case InsufficientOutput:
		return "emit asset is zero or below price limit"
	case ImbalanceRefund:
		return "coins sent don't match the memo"
	case RangeFault:
		return "withdraw basis points out of range"
	default:
		return "refund"
	}
}
