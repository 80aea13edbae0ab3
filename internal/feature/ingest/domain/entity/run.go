package entity

import "time"

// RunKind identifies which ingest pipeline a run executes.
type RunKind string

const (
	RunKindReference RunKind = "reference"
	RunKindQuarterly RunKind = "quarterly"
)

// RunStatus is the state of an ingest run.
// Pending -> Running -> (Completed | CompletedWithFailures | Aborted)
type RunStatus string

const (
	RunStatusPending               RunStatus = "pending"
	RunStatusRunning               RunStatus = "running"
	RunStatusCompleted             RunStatus = "completed"
	RunStatusCompletedWithFailures RunStatus = "completed_with_failures"
	RunStatusAborted               RunStatus = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusCompletedWithFailures, RunStatusAborted:
		return true
	}
	return false
}

// MaxReportedFailures bounds the failure list kept in a report.
const MaxReportedFailures = 200

// RunParams are the trigger parameters of a run. Year and Quarter are zero for reference runs.
type RunParams struct {
	Year    int `json:"year,omitempty"`
	Quarter int `json:"quarter,omitempty"`
}

// RunCounts aggregates per-record outcomes.
type RunCounts struct {
	Attempted       int `json:"attempted"`
	SkippedExisting int `json:"skipped_existing"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
}

// Failure records why a symbol was not persisted. Reason is an error kind name.
type Failure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// IngestRunReport is the live and final account of one ingest run.
type IngestRunReport struct {
	ID                string
	Kind              RunKind
	Params            RunParams
	Counts            RunCounts
	Failures          []Failure
	FailuresTruncated int
	Status            RunStatus
	Cancelled         bool
	Error             string
	StartedAt         time.Time
	EndedAt           *time.Time
}

// NewIngestRunReport returns a pending report.
func NewIngestRunReport(id string, kind RunKind, params RunParams) *IngestRunReport {
	return &IngestRunReport{ID: id, Kind: kind, Params: params, Status: RunStatusPending}
}

// Start moves a pending run to running.
func (r *IngestRunReport) Start(now time.Time) {
	if r.Status != RunStatusPending {
		return
	}
	r.Status = RunStatusRunning
	r.StartedAt = now
}

// AddFailure counts one failed record and keeps the first MaxReportedFailures entries.
func (r *IngestRunReport) AddFailure(symbol, reason, detail string) {
	r.Counts.Failed++
	if len(r.Failures) >= MaxReportedFailures {
		r.FailuresTruncated++
		return
	}
	r.Failures = append(r.Failures, Failure{Symbol: symbol, Reason: reason, Detail: detail})
}

// Finish moves a running run to its terminal state. A non-nil abortErr aborts the run.
func (r *IngestRunReport) Finish(now time.Time, abortErr error) {
	if r.Status.Terminal() {
		return
	}
	r.EndedAt = &now
	switch {
	case abortErr != nil:
		r.Status = RunStatusAborted
		r.Error = abortErr.Error()
	case r.Counts.Failed > 0:
		r.Status = RunStatusCompletedWithFailures
	default:
		r.Status = RunStatusCompleted
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *IngestRunReport) Clone() *IngestRunReport {
	c := *r
	c.Failures = append([]Failure(nil), r.Failures...)
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}
