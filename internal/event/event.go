// Package event defines the typed, append-only records the engine emits for
// every state transition. The log's total order is the comparison contract
// against the live node: ordering, not just membership, must match.
package event

import (
	"fmt"
	"sort"
	"strings"
)

// Event types emitted by the engine.
const (
	TypeSwap     = "swap"
	TypeAdd      = "add"
	TypeWithdraw = "withdraw"
	TypeRefund   = "refund"
	TypeFee      = "fee"
	TypeGas      = "gas"
	TypeRewards  = "rewards"
	TypeOutbound = "outbound"
)

// Attribute is one key/value field of an event. Attribute order within an
// event is fixed at emission time.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one immutable record. Height is the block the live node reported
// it at; the oracle's own log fills it in only when known, and equality
// deliberately ignores it.
type Event struct {
	Type       string      `json:"type"`
	Height     int64       `json:"height,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

// New builds an event from alternating key/value pairs.
func New(typ string, kv ...string) Event {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("event %s: odd attribute list", typ))
	}
	attrs := make([]Attribute, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		attrs = append(attrs, Attribute{Key: kv[i], Value: kv[i+1]})
	}
	return Event{Type: typ, Attributes: attrs}
}

// Get returns the value of the named attribute, or "" when absent.
func (e Event) Get(key string) string {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// WithHeight returns a copy carrying the given block height.
func (e Event) WithHeight(h int64) Event {
	e.Height = h
	return e
}

// Equals compares type and attributes, ignoring height: the oracle cannot
// predict which block the live node lands a record in.
func (e Event) Equals(o Event) bool {
	if e.Type != o.Type || len(e.Attributes) != len(o.Attributes) {
		return false
	}
	for i := range e.Attributes {
		if e.Attributes[i] != o.Attributes[i] {
			return false
		}
	}
	return true
}

// sortKey is a stable total order over type and attributes, used when two
// logs are compared structurally rather than positionally.
func (e Event) sortKey() string {
	var b strings.Builder
	b.WriteString(e.Type)
	for _, a := range e.Attributes {
		b.WriteString("|")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value)
	}
	return b.String()
}

func (e Event) String() string {
	parts := make([]string, len(e.Attributes))
	for i, a := range e.Attributes {
		parts[i] = a.Key + ": " + a.Value
	}
	return fmt.Sprintf("%s [%s]", e.Type, strings.Join(parts, ", "))
}

// Events is an ordered event log slice.
type Events []Event

// Equals compares positionally.
func (es Events) Equals(o Events) bool {
	if len(es) != len(o) {
		return false
	}
	for i := range es {
		if !es[i].Equals(o[i]) {
			return false
		}
	}
	return true
}

// Sorted returns a copy in canonical structural order.
func (es Events) Sorted() Events {
	out := make(Events, len(es))
	copy(out, es)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].sortKey() < out[j].sortKey()
	})
	return out
}
