package domain

import (
	"encoding/json"
	"time"
)

// SkippedFile records a file left out of an ingestion run.
type SkippedFile struct {
	URI    string `json:"uri"`
	Reason string `json:"reason"`
}

// BatchFailure records a batch that could not be embedded or stored.
// Index counts batches from zero across the whole run.
type BatchFailure struct {
	Index int    `json:"index"`
	Size  int    `json:"size"`
	Stage string `json:"stage"`
	Err   error  `json:"-"`
}

// MarshalJSON includes the error message.
func (f BatchFailure) MarshalJSON() ([]byte, error) {
	type alias BatchFailure
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		alias
		Error string `json:"error"`
	}{alias(f), msg})
}

// IngestReport summarises an ingestion run so reruns can target gaps.
type IngestReport struct {
	FilesSeen      int            `json:"files_seen"`
	FilesProcessed int            `json:"files_processed"`
	Skipped        []SkippedFile  `json:"skipped"`
	Failed         []SkippedFile  `json:"failed"`
	ChunksProduced int            `json:"chunks_produced"`
	ChunksDropped  int            `json:"chunks_dropped"`
	ChunksStored   int            `json:"chunks_stored"`
	Tokens         int            `json:"tokens"`
	Batches        int            `json:"batches"`
	BatchFailures  []BatchFailure `json:"batch_failures"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Partial reports whether any batch or file failed.
func (r *IngestReport) Partial() bool {
	return len(r.BatchFailures) > 0 || len(r.Failed) > 0
}

// FailedBatchIndices returns the indices of failed batches in order.
func (r *IngestReport) FailedBatchIndices() []int {
	out := make([]int, len(r.BatchFailures))
	for i, f := range r.BatchFailures {
		out[i] = f.Index
	}
	return out
}
