package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SybilScan/internal/domain/models"
	domrepo "SybilScan/internal/domain/repository"
	applogger "SybilScan/pkg/logger"
)

// MemoryJobStore keeps jobs in process memory. Each job has its own lock so
// progress writes on one job never block reads of another.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry

	ttl        time.Duration
	maxJobs    int
	sweepEvery time.Duration
	now        func() time.Time
	l          *applogger.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type jobEntry struct {
	mu  sync.RWMutex
	job *models.Job
}

// MemoryStoreOption configures MemoryJobStore.
type MemoryStoreOption func(*MemoryJobStore)

// WithJobTTL drops terminal jobs this long after they finished. Zero keeps them.
func WithJobTTL(ttl time.Duration) MemoryStoreOption {
	return func(s *MemoryJobStore) { s.ttl = ttl }
}

// WithMaxJobs caps the number of tracked jobs. Oldest terminal jobs are
// evicted first; running jobs are never evicted.
func WithMaxJobs(n int) MemoryStoreOption {
	return func(s *MemoryJobStore) { s.maxJobs = n }
}

// WithSweepEvery starts a janitor goroutine with the given period.
func WithSweepEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryJobStore) { s.sweepEvery = d }
}

// WithStoreClock overrides time.Now.
func WithStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryJobStore) { s.now = now }
}

// WithStoreLogger injects a structured logger.
func WithStoreLogger(l *applogger.Logger) MemoryStoreOption {
	return func(s *MemoryJobStore) { s.l = l }
}

// NewMemoryJobStore creates the in-memory store and starts its janitor when
// a sweep period is set.
func NewMemoryJobStore(opts ...MemoryStoreOption) *MemoryJobStore {
	s := &MemoryJobStore{
		jobs: make(map[string]*jobEntry),
		now:  time.Now,
		l:    applogger.Nop(),
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepEvery > 0 && s.ttl > 0 {
		s.wg.Add(1)
		go s.janitor()
	}
	return s
}

func (s *MemoryJobStore) Create(_ context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("create job: missing id")
	}
	e := &jobEntry{job: cloneJob(job)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("create job %s: already exists", job.ID)
	}
	if s.maxJobs > 0 && len(s.jobs) >= s.maxJobs {
		s.evictLocked(len(s.jobs) - s.maxJobs + 1)
	}
	s.jobs[job.ID] = e
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (models.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Job{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.job.Clone(), nil
}

func (s *MemoryJobStore) Transition(_ context.Context, id string, to models.JobStatus, reason string) (models.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.job.Transition(to, reason, s.now()); err != nil {
		return e.job.Clone(), err
	}
	return e.job.Clone(), nil
}

func (s *MemoryJobStore) AppendResult(_ context.Context, id string, r models.ScoreResult) (models.Job, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Job{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.job.Record(r); err != nil {
		return e.job.Clone(), err
	}
	return e.job.Clone(), nil
}

// List returns up to limit snapshots, newest first. limit <= 0 returns all.
func (s *MemoryJobStore) List(_ context.Context, limit int) ([]models.Job, error) {
	s.mu.RLock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]models.Job, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		out = append(out, e.job.Clone())
		e.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of tracked jobs.
func (s *MemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep drops terminal jobs older than the TTL and returns how many went.
func (s *MemoryJobStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.jobs {
		e.mu.RLock()
		expired := e.job.CompletedAt != nil && e.job.CompletedAt.Before(cutoff)
		e.mu.RUnlock()
		if expired {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

func (s *MemoryJobStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryJobStore) janitor() {
	defer s.wg.Done()
	t := time.NewTicker(s.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				s.l.Debug("expired jobs swept", applogger.Int("count", n))
			}
		case <-s.stop:
			return
		}
	}
}

// evictLocked removes up to n terminal jobs, oldest completion first.
// Caller holds s.mu.
func (s *MemoryJobStore) evictLocked(n int) {
	type cand struct {
		id string
		at time.Time
	}
	var cands []cand
	for id, e := range s.jobs {
		e.mu.RLock()
		if e.job.CompletedAt != nil {
			cands = append(cands, cand{id, *e.job.CompletedAt})
		}
		e.mu.RUnlock()
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].at.Before(cands[j].at) })
	if n > len(cands) {
		s.l.Warn("job store over capacity with no finished jobs to evict",
			applogger.Int("jobs", len(s.jobs)),
			applogger.Int("max_jobs", s.maxJobs),
		)
		n = len(cands)
	}
	for _, c := range cands[:n] {
		delete(s.jobs, c.id)
	}
}

func (s *MemoryJobStore) entry(id string) (*jobEntry, error) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return e, nil
}

func cloneJob(j *models.Job) *models.Job {
	c := j.Clone()
	if c.Results == nil {
		c.Results = make([]models.ScoreResult, 0, c.Total)
	}
	return &c
}

var _ domrepo.JobStore = (*MemoryJobStore)(nil)
