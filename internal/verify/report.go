package verify

import (
	"context"
	"time"
)

// ReconcileResult is the per-transaction record a run produces, regardless
// of outcome. Failed settlements still carry partial results: the mismatches
// found and the outbounds never observed.
type ReconcileResult struct {
	Index     int           `json:"index"`
	TxID      string        `json:"tx_id"`
	Chain     string        `json:"chain"`
	Memo      string        `json:"memo"`
	State     string        `json:"state"`
	Attempts  int           `json:"attempts"`
	Pending   int           `json:"pending"`
	Duration  time.Duration `json:"duration_ns"`
	StateHash string        `json:"state_hash"`
	Mismatch  []Mismatch    `json:"mismatches,omitempty"`
}

// Diverged reports whether the result carries any finding.
func (r ReconcileResult) Diverged() bool {
	return r.State == StateFailed.String() || len(r.Mismatch) > 0
}

// ResultSink persists per-transaction results.
type ResultSink interface {
	WriteResult(ctx context.Context, res ReconcileResult) error
}

// ReportPublisher pushes divergent results to whoever is watching the run.
type ReportPublisher interface {
	PublishReport(ctx context.Context, res ReconcileResult) error
}
