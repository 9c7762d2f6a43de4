package repository

import (
	"context"

	"SybilScan/internal/domain/models"
)

// ActivitySource fetches raw on-chain activity for one address.
type ActivitySource interface {
	FetchActivity(ctx context.Context, address string, chain models.Chain) (models.Activity, error)
}

// JobStore holds all jobs by id. Reads return consistent snapshots; writes
// for a single job are serialized by the implementation.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (models.Job, error)
	Transition(ctx context.Context, id string, to models.JobStatus, reason string) (models.Job, error)
	AppendResult(ctx context.Context, id string, result models.ScoreResult) (models.Job, error)
	List(ctx context.Context, limit int) ([]models.Job, error)
	Close() error
}

// ResultSink receives every job once it reaches a terminal state.
type ResultSink interface {
	Name() string
	Deliver(ctx context.Context, job models.Job) error
	Close() error
}

// KeyStore issues and validates API keys.
type KeyStore interface {
	Create(ctx context.Context, key models.APIKey) error
	Get(ctx context.Context, key string) (models.APIKey, bool, error)
	TrackUsage(ctx context.Context, key string) error
	Close() error
}

// Metrics records operational counters.
type Metrics interface {
	RecordJobSubmitted(chain string, size int)
	RecordJobFinished(status string)
	RecordResult(risk string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
