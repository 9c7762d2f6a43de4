package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"SybilScan/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	topic string
	key   []byte
	value interface{}
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, key, value
	return f.err
}

type fakeCH struct {
	ddl   []string
	query string
	rows  [][]interface{}
}

func (f *fakeCH) InitSchema(_ context.Context, stmts []string) error {
	f.ddl = append(f.ddl, stmts...)
	return nil
}

func (f *fakeCH) InsertBatch(_ context.Context, q string, rows [][]interface{}) error {
	f.query, f.rows = q, rows
	return nil
}

func (f *fakeCH) Database() string { return "analytics" }

func TestKafkaResultSink(t *testing.T) {
	p := &fakePublisher{}
	s := NewKafkaResultSink(p, "sybilscan.jobs")

	job := models.Job{ID: "job-1", Status: models.StatusComplete}
	require.NoError(t, s.Deliver(context.Background(), job))
	assert.Equal(t, "sybilscan.jobs", p.topic)
	assert.Equal(t, []byte("job-1"), p.key)
	assert.Equal(t, job, p.value)

	p.err = errors.New("broker down")
	assert.ErrorContains(t, s.Deliver(context.Background(), job), "broker down")
}

func TestClickHouseResultSinkRows(t *testing.T) {
	ch := &fakeCH{}
	s := NewClickHouseResultSink(ch)
	require.NoError(t, s.InitSchema(context.Background()))
	require.Len(t, ch.ddl, 1)
	assert.Contains(t, ch.ddl[0], "analytics.score_results")

	score, sybil, txs := 0.42, 42, 7
	done := time.Unix(1_700_000_000, 0).UTC()
	ok := models.ScoreResult{Index: 0, Address: "0xa", Chain: models.ChainBase, Score: &score, SybilScore: &sybil, Risk: models.RiskMedium, TxCount: &txs}
	failed := models.ErrorResult(1, "0xb", models.ChainBase, errors.New("fetch failed"))

	job := models.Job{ID: "job-2", Results: []models.ScoreResult{ok, failed}, CompletedAt: &done}
	require.NoError(t, s.Deliver(context.Background(), job))

	assert.Contains(t, ch.query, "INSERT INTO analytics.score_results")
	require.Len(t, ch.rows, 2)
	assert.Equal(t, "job-2", ch.rows[0][0])
	assert.Equal(t, "base", ch.rows[0][3])
	assert.Equal(t, &score, ch.rows[0][7])
	assert.Equal(t, uint8(42), *ch.rows[0][8].(*uint8))
	assert.Equal(t, uint32(7), *ch.rows[0][9].(*uint32))
	assert.Equal(t, done, ch.rows[0][15])

	assert.Nil(t, ch.rows[1][7].(*float64))
	assert.Equal(t, "error", ch.rows[1][4])
	assert.Equal(t, "fetch failed", ch.rows[1][14])
}

func TestClickHouseResultSinkSkipsEmptyJobs(t *testing.T) {
	ch := &fakeCH{}
	require.NoError(t, NewClickHouseResultSink(ch).Deliver(context.Background(), models.Job{ID: "x"}))
	assert.Empty(t, ch.query)
}
