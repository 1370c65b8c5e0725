// Package ingestion supplies the transaction streams a run consumes: the
// JSON fixture list shipped with the repo, and a NATS JetStream surface for
// feeding transactions in and publishing divergence reports out.
package ingestion

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"PoolOracle/internal/common"
)

// LoadFixtures reads a transaction sequence from a JSON file. Entries
// without an id get a fresh one so every result row is addressable.
func LoadFixtures(path string) ([]common.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var txs []common.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	for i := range txs {
		if txs[i].ID == "" {
			txs[i].ID = uuid.NewString()
		}
		if txs[i].Chain == "" {
			return nil, fmt.Errorf("fixture %d: missing chain", i)
		}
	}
	return txs, nil
}
