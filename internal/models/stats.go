package models

import "time"

// ExtractionStats summarises the extraction phase of a run.
type ExtractionStats struct {
	Processed    int
	Succeeded    int
	Failed       int
	Collisions   int // files whose key replaced an earlier file's record
	MethodCounts map[Method]int
	Duration     time.Duration
}

// ReconcileStats summarises the join of metadata rows against extracted records.
type ReconcileStats struct {
	Total     int
	Exact     int
	Fuzzy     int
	Unmatched int
	RowErrors int
	Duration  time.Duration
}

// Matched is the number of rows that found a document by either rule.
func (s ReconcileStats) Matched() int {
	return s.Exact + s.Fuzzy
}

// SuccessRate is the matched share of rows, in [0, 1].
func (s ReconcileStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched()) / float64(s.Total)
}

// RunResult is everything a text-base run produces.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	Records    []ReconciledRecord
	Extracted  []ExtractedRecord // index contents, sorted by key
	Extraction ExtractionStats
	Reconcile  ReconcileStats
	Outputs    []string // written artifact locations, backup first
}

// WithText counts reconciled rows carrying usable text.
func (r *RunResult) WithText() int {
	n := 0
	for _, rec := range r.Records {
		if !rec.HasError {
			n++
		}
	}
	return n
}

// MethodDistribution counts reconciled rows with usable text per extraction method.
func (r *RunResult) MethodDistribution() map[Method]int {
	out := make(map[Method]int)
	for _, rec := range r.Records {
		if !rec.HasError {
			out[rec.ExtractionMethod]++
		}
	}
	return out
}
