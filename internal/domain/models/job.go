package models

import (
	"sort"
	"time"
)

// JobStatus is the lifecycle state of a batch-scoring job.
type JobStatus string

const (
	StatusPending  JobStatus = "pending"
	StatusRunning  JobStatus = "running"
	StatusComplete JobStatus = "complete"
	StatusFailed   JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool { return s == StatusComplete || s == StatusFailed }

// CanTransitionTo enforces pending -> running -> {complete, failed}.
// A pending job may also fail directly.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusComplete || next == StatusFailed
	default:
		return false
	}
}

// Job is one asynchronous batch-scoring request.
type Job struct {
	ID          string        `json:"job_id"`
	Chain       Chain         `json:"chain"`
	Addresses   []string      `json:"addresses"`
	Status      JobStatus     `json:"status"`
	Total       int           `json:"total"`
	Completed   int           `json:"completed"`
	Progress    float64       `json:"progress"`
	Results     []ScoreResult `json:"results"`
	Summary     Summary       `json:"summary"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at"`
}

// NewJob builds a pending job over canonical addresses.
func NewJob(id string, chain Chain, addresses []string, now time.Time) *Job {
	addrs := make([]string, len(addresses))
	copy(addrs, addresses)
	return &Job{
		ID:        id,
		Chain:     chain,
		Addresses: addrs,
		Status:    StatusPending,
		Total:     len(addrs),
		Results:   make([]ScoreResult, 0, len(addrs)),
		CreatedAt: now.UTC(),
	}
}

// ProgressOf returns completed/total, defined as 0 when total is 0.
func ProgressOf(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(completed) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

// Clone returns a deep copy with results ordered by submission index.
func (j *Job) Clone() Job {
	out := *j
	out.Addresses = append([]string(nil), j.Addresses...)
	out.Results = append([]ScoreResult(nil), j.Results...)
	sort.SliceStable(out.Results, func(a, b int) bool { return out.Results[a].Index < out.Results[b].Index })
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Record appends a result and advances completed, progress and summary together.
func (j *Job) Record(r ScoreResult) error {
	if j.Status.Terminal() || j.Completed >= j.Total {
		return ErrJobClosed
	}
	j.Results = append(j.Results, r)
	j.Completed++
	j.Progress = ProgressOf(j.Completed, j.Total)
	j.Summary.Add(r.Risk)
	return nil
}

// Transition moves the job to next, stamping completed_at on terminal states.
func (j *Job) Transition(next JobStatus, reason string, now time.Time) error {
	if !j.Status.CanTransitionTo(next) {
		return &TransitionError{From: j.Status, To: next}
	}
	if next == StatusComplete && j.Completed != j.Total {
		return &TransitionError{From: j.Status, To: next}
	}
	j.Status = next
	if reason != "" {
		j.Error = reason
	}
	if next.Terminal() {
		t := now.UTC()
		j.CompletedAt = &t
	}
	return nil
}
