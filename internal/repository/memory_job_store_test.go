package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SybilScan/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(id string, n int, at time.Time) *models.Job {
	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("0x%040x", i+1)
	}
	return models.NewJob(id, models.ChainEthereum, addrs, at)
}

func result(i int, tier models.RiskTier) models.ScoreResult {
	return models.ScoreResult{Index: i, Address: fmt.Sprintf("0x%040x", i+1), Risk: tier}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	defer s.Close()

	require.NoError(t, s.Create(ctx, newJob("j1", 2, time.Now())))
	require.Error(t, s.Create(ctx, newJob("j1", 2, time.Now())))

	_, err := s.Transition(ctx, "j1", models.StatusRunning, "")
	require.NoError(t, err)

	_, err = s.Transition(ctx, "j1", models.StatusComplete, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "complete before all results")

	_, err = s.AppendResult(ctx, "j1", result(1, models.RiskHigh))
	require.NoError(t, err)
	j, err := s.AppendResult(ctx, "j1", result(0, models.RiskLow))
	require.NoError(t, err)
	assert.Equal(t, 2, j.Completed)
	assert.Equal(t, 1.0, j.Progress)
	assert.Equal(t, 0, j.Results[0].Index, "snapshot ordered by submission index")

	_, err = s.AppendResult(ctx, "j1", result(2, models.RiskLow))
	assert.ErrorIs(t, err, models.ErrJobClosed)

	j, err = s.Transition(ctx, "j1", models.StatusComplete, "")
	require.NoError(t, err)
	require.NotNil(t, j.CompletedAt)
	assert.Equal(t, models.Summary{Total: 2, High: 1, Low: 1}, j.Summary)

	_, err = s.Transition(ctx, "j1", models.StatusRunning, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestMemoryStoreUnknownJob(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
	_, err = s.AppendResult(ctx, "nope", result(0, models.RiskLow))
	assert.ErrorIs(t, err, models.ErrJobNotFound)
	_, err = s.Transition(ctx, "nope", models.StatusRunning, "")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	require.NoError(t, s.Create(ctx, newJob("j", 2, time.Now())))
	_, _ = s.Transition(ctx, "j", models.StatusRunning, "")
	_, _ = s.AppendResult(ctx, "j", result(0, models.RiskLow))

	snap, err := s.Get(ctx, "j")
	require.NoError(t, err)
	snap.Results[0].Risk = models.RiskHigh
	snap.Addresses[0] = "mutated"

	again, _ := s.Get(ctx, "j")
	assert.Equal(t, models.RiskLow, again.Results[0].Risk)
	assert.NotEqual(t, "mutated", again.Addresses[0])
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	const n = 200
	require.NoError(t, s.Create(ctx, newJob("j", n, time.Now())))
	_, _ = s.Transition(ctx, "j", models.StatusRunning, "")

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendResult(ctx, "j", result(i, models.RiskMedium))
			assert.NoError(t, err)
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.Get(ctx, "j")
			assert.NoError(t, err)
			assert.Equal(t, snap.Completed, len(snap.Results))
			assert.Equal(t, snap.Completed, snap.Summary.Total)
			assert.Equal(t, models.ProgressOf(snap.Completed, snap.Total), snap.Progress)
		}()
	}
	wg.Wait()

	j, _ := s.Get(ctx, "j")
	assert.Equal(t, n, j.Completed)
	for i, r := range j.Results {
		assert.Equal(t, i, r.Index)
	}
}

func TestMemoryStoreSweepAndEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	s := NewMemoryJobStore(WithJobTTL(time.Hour), WithMaxJobs(2), WithStoreClock(clock))

	finish := func(id string) {
		_, err := s.Transition(ctx, id, models.StatusFailed, "boom")
		require.NoError(t, err)
	}

	require.NoError(t, s.Create(ctx, newJob("old", 1, now)))
	finish("old")
	now = now.Add(time.Minute)
	require.NoError(t, s.Create(ctx, newJob("running", 1, now)))

	// at capacity: the finished job goes, the running one stays
	require.NoError(t, s.Create(ctx, newJob("new", 1, now)))
	assert.Equal(t, 2, s.Len())
	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
	_, err = s.Get(ctx, "running")
	assert.NoError(t, err)

	finish("new")
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	_, err = s.Get(ctx, "running")
	assert.NoError(t, err, "non-terminal jobs never expire")
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Create(ctx, newJob(fmt.Sprintf("j%d", i), 1, base.Add(time.Duration(i)*time.Second))))
	}
	jobs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID)
	assert.Equal(t, "j1", jobs[1].ID)
}
