package repository

import (
	"context"
	"fmt"
	"time"

	"SybilScan/internal/domain/models"
	domrepo "SybilScan/internal/domain/repository"
)

// publisher is the slice of pkg/kafka.Producer the sink needs.
type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaResultSink publishes one message per finished job, keyed by job id so
// a job's events stay on one partition.
type KafkaResultSink struct {
	producer publisher
	topic    string
}

// NewKafkaResultSink creates a sink on a producer owned by the caller.
func NewKafkaResultSink(producer publisher, topic string) *KafkaResultSink {
	return &KafkaResultSink{producer: producer, topic: topic}
}

func (s *KafkaResultSink) Name() string { return "kafka" }

func (s *KafkaResultSink) Deliver(ctx context.Context, job models.Job) error {
	if err := s.producer.Publish(ctx, s.topic, []byte(job.ID), job); err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

func (s *KafkaResultSink) Close() error { return nil }

// batchWriter is the slice of pkg/clickhouse.Client the sink needs.
type batchWriter interface {
	InitSchema(ctx context.Context, stmts []string) error
	InsertBatch(ctx context.Context, query string, rows [][]interface{}) error
	Database() string
}

// ClickHouseResultSink stores one row per scored address for analytics.
type ClickHouseResultSink struct {
	ch    batchWriter
	table string
	now   func() time.Time
}

// NewClickHouseResultSink creates the sink; call InitSchema before use.
func NewClickHouseResultSink(ch batchWriter) *ClickHouseResultSink {
	return &ClickHouseResultSink{ch: ch, table: ch.Database() + ".score_results", now: time.Now}
}

// InitSchema creates the results table if needed.
func (s *ClickHouseResultSink) InitSchema(ctx context.Context) error {
	return s.ch.InitSchema(ctx, []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    job_id            String,
    idx               UInt32,
    address           String,
    chain             LowCardinality(String),
    risk              LowCardinality(String),
    sybil_type        LowCardinality(String),
    data_source       LowCardinality(String),
    score             Nullable(Float64),
    sybil_score       Nullable(UInt8),
    tx_count          Nullable(UInt32),
    wallet_age_days   Nullable(Float64),
    nft_collections   Nullable(UInt32),
    unique_contracts  Nullable(UInt32),
    total_volume_eth  Nullable(Float64),
    error             String,
    scored_at         DateTime64(3)
) ENGINE = MergeTree
ORDER BY (job_id, idx)`, s.table)})
}

func (s *ClickHouseResultSink) Name() string { return "clickhouse" }

func (s *ClickHouseResultSink) Deliver(ctx context.Context, job models.Job) error {
	if len(job.Results) == 0 {
		return nil
	}
	at := s.now().UTC()
	if job.CompletedAt != nil {
		at = *job.CompletedAt
	}
	rows := make([][]interface{}, 0, len(job.Results))
	for _, r := range job.Results {
		rows = append(rows, resultRow(job.ID, r, at))
	}
	q := fmt.Sprintf(`INSERT INTO %s (job_id, idx, address, chain, risk, sybil_type, data_source, score,
    sybil_score, tx_count, wallet_age_days, nft_collections, unique_contracts, total_volume_eth, error, scored_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		return fmt.Errorf("store results of job %s: %w", job.ID, err)
	}
	return nil
}

func (s *ClickHouseResultSink) Close() error { return nil }

func resultRow(jobID string, r models.ScoreResult, at time.Time) []interface{} {
	return []interface{}{
		jobID,
		uint32(r.Index),
		r.Address,
		string(r.Chain),
		string(r.Risk),
		r.SybilType,
		string(r.DataSource),
		r.Score,
		toUint8(r.SybilScore),
		toUint32(r.TxCount),
		r.WalletAgeDays,
		toUint32(r.NFTCollections),
		toUint32(r.UniqueContracts),
		r.TotalVolumeETH,
		r.Error,
		at,
	}
}

func toUint8(v *int) *uint8 {
	if v == nil {
		return nil
	}
	u := uint8(*v)
	return &u
}

func toUint32(v *int) *uint32 {
	if v == nil {
		return nil
	}
	u := uint32(*v)
	return &u
}

var (
	_ domrepo.ResultSink = (*KafkaResultSink)(nil)
	_ domrepo.ResultSink = (*ClickHouseResultSink)(nil)
)
