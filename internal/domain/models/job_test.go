package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0xAbCdEf0123456789abcdef0123456789ABCDEF01 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", got)

	got, err = NormalizeAddress("abcdef0123456789abcdef0123456789abcdef01")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", got)

	for _, bad := range []string{"", "0x123", "0xzzcdef0123456789abcdef0123456789abcdef01", "0xabcdef0123456789abcdef0123456789abcdef0101"} {
		_, err := NormalizeAddress(bad)
		assert.True(t, IsValidation(err), bad)
	}
}

func TestParseChain(t *testing.T) {
	c, err := ParseChain("")
	require.NoError(t, err)
	assert.Equal(t, ChainEthereum, c)

	c, err = ParseChain(" Base ")
	require.NoError(t, err)
	assert.Equal(t, ChainBase, c)
	assert.Equal(t, 8453, c.ID())

	_, err = ParseChain("solana")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "chain", verr.Field)

	assert.Equal(t, ChainEthereum, NormalizeChain("solana"))
}

func TestJobLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j := NewJob("j1", ChainEthereum, []string{"a", "b"}, now)
	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, 2, j.Total)

	// cannot complete before running, nor before every result is in
	assert.ErrorIs(t, j.Transition(StatusComplete, "", now), ErrInvalidTransition)
	require.NoError(t, j.Transition(StatusRunning, "", now))
	assert.ErrorIs(t, j.Transition(StatusComplete, "", now), ErrInvalidTransition)

	require.NoError(t, j.Record(ScoreResult{Index: 1, Risk: RiskHigh}))
	require.NoError(t, j.Record(ScoreResult{Index: 0, Risk: RiskError}))
	assert.ErrorIs(t, j.Record(ScoreResult{Index: 2}), ErrJobClosed)
	assert.Equal(t, 1.0, j.Progress)
	assert.Equal(t, Summary{Total: 2, High: 1, Error: 1}, j.Summary)

	require.NoError(t, j.Transition(StatusComplete, "", now))
	require.NotNil(t, j.CompletedAt)
	assert.True(t, j.Status.Terminal())

	var terr *TransitionError
	require.ErrorAs(t, j.Transition(StatusFailed, "late", now), &terr)
	assert.Equal(t, StatusComplete, terr.From)
	assert.Empty(t, j.Error)
}

func TestJobCloneOrdersAndIsolates(t *testing.T) {
	j := NewJob("j1", ChainEthereum, []string{"a", "b", "c"}, time.Now())
	require.NoError(t, j.Transition(StatusRunning, "", time.Now()))
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, j.Record(ScoreResult{Index: i, Risk: RiskLow}))
	}

	c := j.Clone()
	require.Len(t, c.Results, 3)
	for i, r := range c.Results {
		assert.Equal(t, i, r.Index)
	}
	c.Results[0].Address = "changed"
	c.Addresses[0] = "changed"
	assert.NotEqual(t, "changed", j.Addresses[0])
	for _, r := range j.Results {
		assert.NotEqual(t, "changed", r.Address)
	}
}

func TestProgressOf(t *testing.T) {
	assert.Equal(t, 0.0, ProgressOf(0, 0))
	assert.Equal(t, 0.5, ProgressOf(1, 2))
	assert.Equal(t, 1.0, ProgressOf(3, 2))
}

func TestErrorResult(t *testing.T) {
	r := ErrorResult(3, "0xabc", ChainBase, &FetchError{Address: "0xabc", Err: errors.New("boom")})
	assert.Equal(t, RiskError, r.Risk)
	assert.Equal(t, SourceError, r.DataSource)
	assert.Nil(t, r.Score)
	assert.NotEmpty(t, r.Error)
	assert.Equal(t, "unknown error", ErrorResult(0, "x", ChainBase, nil).Error)
}
