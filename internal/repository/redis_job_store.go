package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SybilScan/internal/domain/models"
	domrepo "SybilScan/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

const redisTxRetries = 50

// RedisJobStore keeps one JSON snapshot per job so several API replicas can
// serve the same jobs. Mutations are optimistic WATCH/MULTI transactions.
type RedisJobStore struct {
	cli    redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisStoreOption configures RedisJobStore.
type RedisStoreOption func(*RedisJobStore)

// WithRedisPrefix namespaces keys.
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisJobStore) { s.prefix = prefix }
}

// WithRedisTTL sets the expiry applied on every write.
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisJobStore) { s.ttl = ttl }
}

// NewRedisJobStore creates a store on an existing client.
func NewRedisJobStore(cli redis.UniversalClient, opts ...RedisStoreOption) *RedisJobStore {
	s := &RedisJobStore{cli: cli, prefix: "sybilscan", ttl: 24 * time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisJobStore) jobKey(id string) string { return s.prefix + ":job:" + id }
func (s *RedisJobStore) indexKey() string        { return s.prefix + ":jobs" }

func (s *RedisJobStore) Create(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("create job: missing id")
	}
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	ok, err := s.cli.SetNX(ctx, s.jobKey(job.ID), b, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if !ok {
		return fmt.Errorf("create job %s: already exists", job.ID)
	}
	if err := s.cli.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID}).Err(); err != nil {
		return fmt.Errorf("index job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (models.Job, error) {
	b, err := s.cli.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Job{}, models.ErrJobNotFound
		}
		return models.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return decodeJob(b)
}

func (s *RedisJobStore) Transition(ctx context.Context, id string, to models.JobStatus, reason string) (models.Job, error) {
	return s.update(ctx, id, func(j *models.Job) error {
		return j.Transition(to, reason, s.now())
	})
}

func (s *RedisJobStore) AppendResult(ctx context.Context, id string, r models.ScoreResult) (models.Job, error) {
	return s.update(ctx, id, func(j *models.Job) error {
		return j.Record(r)
	})
}

// List returns up to limit jobs, newest first. Expired ids are pruned from
// the index as they are found.
func (s *RedisJobStore) List(ctx context.Context, limit int) ([]models.Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.cli.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]models.Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if errors.Is(err, models.ErrJobNotFound) {
			s.cli.ZRem(ctx, s.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *RedisJobStore) Close() error { return nil }

func (s *RedisJobStore) update(ctx context.Context, id string, mutate func(*models.Job) error) (models.Job, error) {
	key := s.jobKey(id)
	var out models.Job

	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return models.ErrJobNotFound
			}
			return err
		}
		j, err := decodeJob(b)
		if err != nil {
			return err
		}
		if err := mutate(&j); err != nil {
			out = j.Clone()
			return err
		}
		nb, err := json.Marshal(&j)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, nb, s.ttl)
			return nil
		})
		if err == nil {
			out = j.Clone()
		}
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err := s.cli.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			time.Sleep(time.Duration(i+1) * time.Millisecond)
			continue
		}
		return out, err
	}
	return out, fmt.Errorf("update job %s: too much contention", id)
}

func decodeJob(b []byte) (models.Job, error) {
	var j models.Job
	if err := json.Unmarshal(b, &j); err != nil {
		return models.Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j.Clone(), nil
}

var _ domrepo.JobStore = (*RedisJobStore)(nil)
