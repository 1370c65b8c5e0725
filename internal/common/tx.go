package common

import (
	"fmt"

	"github.com/google/uuid"
)

// Transaction is one transfer observed on (or destined for) a chain.
// Inbound transactions are consumed exactly once by the engine; outbound
// transactions additionally carry realized gas once a chain accepts them.
type Transaction struct {
	ID          string `json:"id,omitempty"`
	Chain       string `json:"chain"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Coins       Coins  `json:"coins"`
	Memo        string `json:"memo"`
	Gas         Coins  `json:"gas,omitempty"`
}

// NewTransaction builds a transaction with a fresh id.
func NewTransaction(chain, from, to string, coins Coins, memo string) Transaction {
	return Transaction{
		ID:          uuid.NewString(),
		Chain:       chain,
		FromAddress: from,
		ToAddress:   to,
		Coins:       coins,
		Memo:        memo,
	}
}

// String renders a compact one-line form for logs.
func (t Transaction) String() string {
	return fmt.Sprintf("%s %s => %s | %s | %s", t.Chain, t.FromAddress, t.ToAddress, t.Memo, t.Coins)
}

// Short renders the post-processing result line form.
func (t Transaction) Short() string {
	return fmt.Sprintf("%s => %s | %s", t.ToAddress, t.Coins, t.Memo)
}
