package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SybilScan/internal/domain/models"
	drepo "SybilScan/internal/domain/repository"
	"SybilScan/internal/service/cache"
	applogger "SybilScan/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Failure reasons recorded on jobs that did not complete.
const (
	ReasonTimedOut  = "job timed out"
	ReasonCancelled = "job cancelled"
	ReasonShutdown  = "service shutting down"
)

var (
	errTimedOut  = errors.New(ReasonTimedOut)
	errCancelled = errors.New(ReasonCancelled)
	errShutdown  = errors.New(ReasonShutdown)
)

// JobManager accepts batch submissions and runs them in the background.
type JobManager struct {
	store   drepo.JobStore
	scorer  *AddressScorer
	sinks   []drepo.ResultSink
	metrics drepo.Metrics
	l       *applogger.Logger

	workers      int
	maxAddresses int
	maxLifetime  time.Duration
	sinkTimeout  time.Duration
	newID        func() string

	verifyCache cache.BytesCache
	verifyTTL   time.Duration

	mu   sync.Mutex
	runs map[string]*run

	base     context.Context
	shutdown context.CancelCauseFunc
	wg       sync.WaitGroup
}

type run struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// ManagerOption configures JobManager.
type ManagerOption func(*JobManager)

// WithWorkers bounds concurrent addresses per job.
func WithWorkers(n int) ManagerOption {
	return func(m *JobManager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithMaxAddresses caps submission size.
func WithMaxAddresses(n int) ManagerOption {
	return func(m *JobManager) {
		if n > 0 {
			m.maxAddresses = n
		}
	}
}

// WithMaxLifetime fails jobs still running after d. Zero disables the limit.
func WithMaxLifetime(d time.Duration) ManagerOption {
	return func(m *JobManager) { m.maxLifetime = d }
}

// WithSinks forwards finished jobs to the given sinks.
func WithSinks(sinks ...drepo.ResultSink) ManagerOption {
	return func(m *JobManager) { m.sinks = append(m.sinks, sinks...) }
}

// WithVerifyCache caches single-address results for ttl.
func WithVerifyCache(c cache.BytesCache, ttl time.Duration) ManagerOption {
	return func(m *JobManager) {
		m.verifyCache = c
		m.verifyTTL = ttl
	}
}

// WithManagerLogger injects a structured logger.
func WithManagerLogger(l *applogger.Logger) ManagerOption {
	return func(m *JobManager) { m.l = l }
}

// WithIDGenerator overrides uuid job ids.
func WithIDGenerator(f func() string) ManagerOption {
	return func(m *JobManager) { m.newID = f }
}

// NewJobManager creates a JobManager.
func NewJobManager(store drepo.JobStore, scorer *AddressScorer, metrics drepo.Metrics, opts ...ManagerOption) *JobManager {
	base, shutdown := context.WithCancelCause(context.Background())
	m := &JobManager{
		store:        store,
		scorer:       scorer,
		metrics:      metrics,
		l:            applogger.Nop(),
		workers:      4,
		maxAddresses: 10000,
		sinkTimeout:  10 * time.Second,
		newID:        uuid.NewString,
		runs:         make(map[string]*run),
		base:         base,
		shutdown:     shutdown,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ModelName reports the risk model in use.
func (m *JobManager) ModelName() string { return m.scorer.ModelName() }

// Submit validates the batch, stores a new job, marks it running and starts
// scoring in the background. The returned snapshot is taken after the
// transition to running.
func (m *JobManager) Submit(ctx context.Context, addresses []string, chain string) (models.Job, error) {
	c, err := models.ParseChain(chain)
	if err != nil {
		return models.Job{}, err
	}
	addrs, err := m.normalize(addresses)
	if err != nil {
		return models.Job{}, err
	}

	job := models.NewJob(m.newID(), c, addrs, time.Now())
	if err := m.store.Create(ctx, job); err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}
	snap, err := m.store.Transition(ctx, job.ID, models.StatusRunning, "")
	if err != nil {
		return models.Job{}, fmt.Errorf("start job: %w", err)
	}

	m.metrics.RecordJobSubmitted(string(c), len(addrs))
	m.l.Info("job submitted",
		applogger.String("job_id", job.ID),
		applogger.String("chain", string(c)),
		applogger.Int("addresses", len(addrs)),
	)

	m.start(snap)
	return snap, nil
}

func (m *JobManager) normalize(addresses []string) ([]string, error) {
	if len(addresses) == 0 {
		return nil, &models.ValidationError{Field: "addresses", Reason: "must not be empty"}
	}
	if len(addresses) > m.maxAddresses {
		return nil, &models.ValidationError{
			Field:  "addresses",
			Reason: fmt.Sprintf("at most %d addresses per job, got %d", m.maxAddresses, len(addresses)),
		}
	}
	out := make([]string, len(addresses))
	for i, a := range addresses {
		n, err := models.NormalizeAddress(a)
		if err != nil {
			var ve *models.ValidationError
			if errors.As(err, &ve) {
				ve.Index = i
			}
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (m *JobManager) start(job models.Job) {
	ctx, cancel := context.WithCancelCause(m.base)
	r := &run{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.runs[job.ID] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(r.done)
		defer func() {
			m.mu.Lock()
			delete(m.runs, job.ID)
			m.mu.Unlock()
			cancel(nil)
		}()
		if m.maxLifetime > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeoutCause(ctx, m.maxLifetime, errTimedOut)
			defer stop()
		}
		m.run(ctx, job)
	}()
}

func (m *JobManager) run(ctx context.Context, job models.Job) {
	start := time.Now()
	l := m.l.With(applogger.String("job_id", job.ID))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, addr := range job.Addresses {
		if ctx.Err() != nil {
			break
		}
		i, addr := i, addr
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := m.scorer.ScoreAddress(ctx, i, addr, job.Chain)
			if err != nil {
				if ctx.Err() != nil {
					// the job is being torn down; the address stays unrecorded
					return nil
				}
				l.Warn("address failed",
					applogger.String("address", addr),
					applogger.Int("index", i),
					applogger.Error(err),
				)
			}
			if _, err := m.store.AppendResult(context.WithoutCancel(ctx), job.ID, res); err != nil {
				l.Error("record result", applogger.Int("index", i), applogger.Error(err))
				return nil
			}
			m.metrics.RecordResult(string(res.Risk))
			return nil
		})
	}
	_ = g.Wait()

	final := m.finish(ctx, job.ID, l)
	m.metrics.RecordJobFinished(string(final.Status))
	m.metrics.RecordLatency("job", time.Since(start).Seconds())
	l.Info("job finished",
		applogger.String("status", string(final.Status)),
		applogger.Int("completed", final.Completed),
		applogger.Int("total", final.Total),
		applogger.Duration("elapsed", time.Since(start)),
	)
	m.deliver(final, l)
}

// finish moves the job to its terminal state. A job whose results are all in
// completes even if its context ended in the meantime.
func (m *JobManager) finish(ctx context.Context, id string, l *applogger.Logger) models.Job {
	sctx := context.WithoutCancel(ctx)
	snap, err := m.store.Get(sctx, id)
	if err != nil {
		l.Error("load finished job", applogger.Error(err))
		return snap
	}
	if snap.Status.Terminal() {
		return snap
	}

	if snap.Completed == snap.Total {
		done, err := m.store.Transition(sctx, id, models.StatusComplete, "")
		if err == nil {
			return done
		}
		l.Error("complete job", applogger.Error(err))
	}

	reason := "incomplete results"
	if ctx.Err() != nil {
		reason = failureReason(context.Cause(ctx))
	}
	failed, err := m.store.Transition(sctx, id, models.StatusFailed, reason)
	if err != nil {
		l.Error("fail job", applogger.String("reason", reason), applogger.Error(err))
	}
	return failed
}

func failureReason(cause error) string {
	switch {
	case errors.Is(cause, errTimedOut):
		return ReasonTimedOut
	case errors.Is(cause, errCancelled):
		return ReasonCancelled
	case errors.Is(cause, errShutdown):
		return ReasonShutdown
	case cause != nil:
		return cause.Error()
	default:
		return "job aborted"
	}
}

// deliver hands a finished job to every sink. Sink failures are logged only.
func (m *JobManager) deliver(job models.Job, l *applogger.Logger) {
	if len(m.sinks) == 0 || !job.Status.Terminal() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.sinkTimeout)
	defer cancel()
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, job); err != nil {
			m.metrics.RecordError("sink_" + s.Name())
			l.Error("deliver job", applogger.String("sink", s.Name()), applogger.Error(err))
		}
	}
}

// Get returns a consistent snapshot of a job.
func (m *JobManager) Get(ctx context.Context, id string) (models.Job, error) {
	return m.store.Get(ctx, id)
}

// List returns recent jobs, newest first.
func (m *JobManager) List(ctx context.Context, limit int) ([]models.Job, error) {
	return m.store.List(ctx, limit)
}

// Results returns one page of a job's results in submission order along with
// the number of results recorded so far.
func (m *JobManager) Results(ctx context.Context, id string, offset, limit int) ([]models.ScoreResult, int, error) {
	snap, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	total := len(snap.Results)
	if offset >= total {
		return []models.ScoreResult{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return snap.Results[offset:end], total, nil
}

// Cancel stops a running job and waits for it to settle as failed. Jobs
// already terminal are rejected with ErrInvalidTransition.
func (m *JobManager) Cancel(ctx context.Context, id string) (models.Job, error) {
	snap, err := m.store.Get(ctx, id)
	if err != nil {
		return models.Job{}, err
	}
	if snap.Status.Terminal() {
		return snap, &models.TransitionError{From: snap.Status, To: models.StatusFailed}
	}

	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		// not running in this process
		return m.store.Transition(ctx, id, models.StatusFailed, ReasonCancelled)
	}

	r.cancel(errCancelled)
	select {
	case <-r.done:
	case <-ctx.Done():
		return models.Job{}, ctx.Err()
	}
	return m.store.Get(ctx, id)
}

// Score runs the pipeline synchronously for one address. Successful results
// are cached when a verify cache is configured.
func (m *JobManager) Score(ctx context.Context, address, chain string) (models.ScoreResult, error) {
	c, err := models.ParseChain(chain)
	if err != nil {
		return models.ScoreResult{}, err
	}
	addr, err := models.NormalizeAddress(address)
	if err != nil {
		return models.ScoreResult{}, err
	}

	key := "verify:" + string(c) + ":" + addr
	if cached, ok := m.cached(ctx, key); ok {
		return cached, nil
	}

	res, err := m.scorer.ScoreAddress(ctx, 0, addr, c)
	if err != nil {
		m.l.Warn("verify failed", applogger.String("address", addr), applogger.Error(err))
		return res, nil
	}
	m.metrics.RecordResult(string(res.Risk))
	m.remember(ctx, key, res)
	return res, nil
}

func (m *JobManager) cached(ctx context.Context, key string) (models.ScoreResult, bool) {
	if m.verifyCache == nil {
		return models.ScoreResult{}, false
	}
	b, ok, err := m.verifyCache.GetBytes(ctx, key)
	if err != nil {
		m.l.Warn("verify cache read", applogger.String("key", key), applogger.Error(err))
		return models.ScoreResult{}, false
	}
	if !ok {
		return models.ScoreResult{}, false
	}
	var r models.ScoreResult
	if err := json.Unmarshal(b, &r); err != nil {
		return models.ScoreResult{}, false
	}
	return r, true
}

func (m *JobManager) remember(ctx context.Context, key string, r models.ScoreResult) {
	if m.verifyCache == nil || m.verifyTTL <= 0 {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := m.verifyCache.SetBytes(ctx, key, b, m.verifyTTL); err != nil {
		m.l.Warn("verify cache write", applogger.String("key", key), applogger.Error(err))
	}
}

// Shutdown cancels all running jobs, which end as failed, and waits for
// their goroutines until ctx expires.
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.shutdown(errShutdown)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for jobs to stop: %w", ctx.Err())
	}
}

// Wait blocks until the given job's background run has ended.
func (m *JobManager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
