package repository

import (
	"context"
	"os"
	"testing"

	"SybilScan/internal/domain/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryKeyStore()

	require.NoError(t, s.Create(ctx, models.APIKey{Key: "sk-1", Name: "ops"}))
	require.Error(t, s.Create(ctx, models.APIKey{Key: "sk-1", Name: "dup"}))

	_, ok, err := s.Get(ctx, "sk-2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.TrackUsage(ctx, "sk-1"))
	require.NoError(t, s.TrackUsage(ctx, "sk-1"))
	k, ok, err := s.Get(ctx, "sk-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), k.CreditsUsed)
	assert.Equal(t, "ops", k.Name)

	assert.Error(t, s.TrackUsage(ctx, "sk-missing"))
}

// Runs against a live database only when POSTGRES_DSN is set.
func TestPostgresKeyStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresKeyStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	key := "sk-test-" + uuid.NewString()
	require.NoError(t, s.Create(ctx, models.APIKey{Key: key, Name: "itest"}))
	require.NoError(t, s.TrackUsage(ctx, key))

	k, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), k.CreditsUsed)

	_, ok, err = s.Get(ctx, "sk-absent-"+uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}
