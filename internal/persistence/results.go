// Package persistence stores reconciliation results in Postgres so runs can
// be queried and compared after the fact.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"PoolOracle/internal/verify"
)

// ResultsWriter writes per-transaction reconciliation results to the
// oracle.results table. One row per fixture transaction per run.
type ResultsWriter struct {
	db    *sql.DB
	runID string
}

// Open connects to Postgres and ensures the results schema exists.
func Open(ctx context.Context, dsn, runID string) (*ResultsWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	w := &ResultsWriter{db: db, runID: runID}
	if err := w.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// NewResultsWriter wraps an existing connection, for tests that manage
// their own database lifecycle.
func NewResultsWriter(db *sql.DB, runID string) *ResultsWriter {
	return &ResultsWriter{db: db, runID: runID}
}

func (w *ResultsWriter) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS oracle`,
		`CREATE TABLE IF NOT EXISTS oracle.results (
			run_id      TEXT        NOT NULL,
			tx_index    INTEGER     NOT NULL,
			tx_id       TEXT        NOT NULL,
			chain       TEXT        NOT NULL,
			memo        TEXT        NOT NULL,
			state       TEXT        NOT NULL,
			attempts    INTEGER     NOT NULL,
			pending     INTEGER     NOT NULL,
			duration_ns BIGINT      NOT NULL,
			state_hash  TEXT        NOT NULL,
			mismatches  JSONB,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, tx_index)
		)`,
		`CREATE INDEX IF NOT EXISTS results_diverged_idx
			ON oracle.results (run_id) WHERE state = 'failed' OR mismatches IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure results schema: %w", err)
		}
	}
	return nil
}

// WriteResult inserts one result row. Re-runs of the same transaction index
// within a run overwrite the earlier row.
func (w *ResultsWriter) WriteResult(ctx context.Context, res verify.ReconcileResult) error {
	mismatches, err := marshalMismatches(res.Mismatch)
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx, `
		INSERT INTO oracle.results
			(run_id, tx_index, tx_id, chain, memo, state, attempts, pending, duration_ns, state_hash, mismatches)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, tx_index) DO UPDATE SET
			state = EXCLUDED.state, attempts = EXCLUDED.attempts,
			pending = EXCLUDED.pending, duration_ns = EXCLUDED.duration_ns,
			state_hash = EXCLUDED.state_hash, mismatches = EXCLUDED.mismatches,
			recorded_at = NOW()`,
		w.runID, res.Index, res.TxID, res.Chain, res.Memo, res.State,
		res.Attempts, res.Pending, int64(res.Duration), res.StateHash, mismatches,
	)
	if err != nil {
		return fmt.Errorf("insert result %d: %w", res.Index, err)
	}
	return nil
}

// WriteBatch inserts a run's results in one multi-row statement.
func (w *ResultsWriter) WriteBatch(ctx context.Context, results []verify.ReconcileResult) error {
	if len(results) == 0 {
		return nil
	}

	query := `INSERT INTO oracle.results
		(run_id, tx_index, tx_id, chain, memo, state, attempts, pending, duration_ns, state_hash, mismatches)
		VALUES `

	values := make([]string, 0, len(results))
	args := make([]interface{}, 0, len(results)*11)

	for i, res := range results {
		base := i * 11
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11,
		))
		mismatches, err := marshalMismatches(res.Mismatch)
		if err != nil {
			return err
		}
		args = append(args,
			w.runID, res.Index, res.TxID, res.Chain, res.Memo, res.State,
			res.Attempts, res.Pending, int64(res.Duration), res.StateHash, mismatches,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (run_id, tx_index) DO NOTHING"

	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result batch: %w", err)
	}
	return nil
}

// DivergedResults returns the divergent rows of a run, oldest first.
func (w *ResultsWriter) DivergedResults(ctx context.Context, runID string) ([]verify.ReconcileResult, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT tx_index, tx_id, chain, memo, state, attempts, pending, duration_ns, state_hash, mismatches
		FROM oracle.results
		WHERE run_id = $1 AND (state = 'failed' OR mismatches IS NOT NULL)
		ORDER BY tx_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diverged results: %w", err)
	}
	defer rows.Close()

	var out []verify.ReconcileResult
	for rows.Next() {
		var res verify.ReconcileResult
		var durationNs int64
		var mismatches []byte
		if err := rows.Scan(
			&res.Index, &res.TxID, &res.Chain, &res.Memo, &res.State,
			&res.Attempts, &res.Pending, &durationNs, &res.StateHash, &mismatches,
		); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		res.Duration = time.Duration(durationNs)
		if len(mismatches) > 0 {
			if err := json.Unmarshal(mismatches, &res.Mismatch); err != nil {
				return nil, fmt.Errorf("decode mismatches for %s: %w", res.TxID, err)
			}
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (w *ResultsWriter) Close() error {
	return w.db.Close()
}

func marshalMismatches(ms []verify.Mismatch) (interface{}, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return nil, fmt.Errorf("marshal mismatches: %w", err)
	}
	return data, nil
}
