package dto

import (
	"time"

	"astock_backend/internal/feature/ingest/domain/entity"
)

// RunReport は実行レポートのレスポンスDTOです。
type RunReport struct {
	ID                string      `json:"id"`
	Kind              string      `json:"kind"`
	Year              int         `json:"year,omitempty"`
	Quarter           int         `json:"quarter,omitempty"`
	Status            string      `json:"status"`
	Cancelled         bool        `json:"cancelled"`
	Counts            RunCounts   `json:"counts"`
	Failures          []RunFailed `json:"failures"`
	FailuresTruncated int         `json:"failures_truncated,omitempty"`
	Error             string      `json:"error,omitempty"`
	StartedAt         string      `json:"started_at,omitempty"` // RFC3339
	EndedAt           string      `json:"ended_at,omitempty"`   // RFC3339
}

// RunCounts はレコード単位の集計です。
type RunCounts struct {
	Attempted       int `json:"attempted"`
	SkippedExisting int `json:"skipped_existing"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
}

// RunFailed は永続化されなかった銘柄とその理由です。
type RunFailed struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// RunAccepted は非同期起動時のレスポンスです。
type RunAccepted struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// NewRunReport はエンティティをレスポンスDTOに変換します。
func NewRunReport(r *entity.IngestRunReport) RunReport {
	out := RunReport{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Year:      r.Params.Year,
		Quarter:   r.Params.Quarter,
		Status:    string(r.Status),
		Cancelled: r.Cancelled,
		Counts: RunCounts{
			Attempted:       r.Counts.Attempted,
			SkippedExisting: r.Counts.SkippedExisting,
			Succeeded:       r.Counts.Succeeded,
			Failed:          r.Counts.Failed,
		},
		Failures:          make([]RunFailed, 0, len(r.Failures)),
		FailuresTruncated: r.FailuresTruncated,
		Error:             r.Error,
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, RunFailed{Symbol: f.Symbol, Reason: f.Reason, Detail: f.Detail})
	}
	if !r.StartedAt.IsZero() {
		out.StartedAt = r.StartedAt.Format(time.RFC3339)
	}
	if r.EndedAt != nil {
		out.EndedAt = r.EndedAt.Format(time.RFC3339)
	}
	return out
}
