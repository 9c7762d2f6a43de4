package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SybilScan/internal/domain/repository"
	domsvc "SybilScan/internal/domain/service"
	"SybilScan/internal/handler/api"
	internalrepo "SybilScan/internal/repository"
	"SybilScan/internal/service/cache"
	"SybilScan/internal/service/etherscan"
	"SybilScan/internal/service/ratelimit"
	"SybilScan/internal/services/features"
	"SybilScan/internal/services/scoring"
	"SybilScan/internal/usecase"
	pkgch "SybilScan/pkg/clickhouse"
	"SybilScan/pkg/config"
	xhttp "SybilScan/pkg/http"
	pkgkafka "SybilScan/pkg/kafka"
	applogger "SybilScan/pkg/logger"
	"SybilScan/pkg/metrics"
	"SybilScan/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op one when
// metrics are disabled.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Noop{}
	}
	return metrics.New()
}

// ProvideRedisClient connects to Redis when the job store or the verify
// cache needs it. Returns nil otherwise.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.Store.Type != "redis" && !cfg.Cache.Redis {
		return nil, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.Redis.Addr,
		Password: cfg.Store.Redis.Password,
		DB:       cfg.Store.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Store.Redis.Addr, err)
	}
	return cli, nil
}

// ProvideJobStore selects the job store backend.
func ProvideJobStore(cfg *config.Config, rdb redis.UniversalClient, l *applogger.Logger) repository.JobStore {
	if cfg.Store.Type == "redis" && rdb != nil {
		return internalrepo.NewRedisJobStore(rdb,
			internalrepo.WithRedisPrefix(cfg.Store.Redis.Prefix),
			internalrepo.WithRedisTTL(cfg.Jobs.TTL),
		)
	}
	return internalrepo.NewMemoryJobStore(
		internalrepo.WithJobTTL(cfg.Jobs.TTL),
		internalrepo.WithMaxJobs(cfg.Jobs.MaxJobs),
		internalrepo.WithSweepEvery(cfg.Jobs.SweepEvery),
		internalrepo.WithStoreLogger(l.Component("job_store")),
	)
}

// ProvideVerifyCache selects where single-address results are cached.
func ProvideVerifyCache(cfg *config.Config, rdb redis.UniversalClient) cache.BytesCache {
	if cfg.Cache.Redis && rdb != nil {
		return cache.NewRedisCache(rdb, cfg.Store.Redis.Prefix)
	}
	return cache.NewTTLCache()
}

// ProvideKeyStore selects the API key backend.
func ProvideKeyStore(cfg *config.Config) (repository.KeyStore, error) {
	if cfg.Keys.Type != "postgres" {
		return internalrepo.NewMemoryKeyStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ks, err := internalrepo.NewPostgresKeyStore(ctx, cfg.Keys.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("key store: %w", err)
	}
	return ks, nil
}

// ProvideActivitySource creates the explorer client behind the shared
// request gate and key ring.
func ProvideActivitySource(cfg *config.Config, l *applogger.Logger) repository.ActivitySource {
	return etherscan.New(
		cfg.Etherscan.BaseURL,
		ratelimit.NewKeyRing(cfg.Etherscan.APIKeys),
		ratelimit.NewIntervalGate(cfg.Etherscan.MinInterval),
		etherscan.WithMaxAttempts(cfg.Etherscan.MaxAttempts),
		etherscan.WithBackoff(cfg.Etherscan.RateLimitBackoff, cfg.Etherscan.TransportBackoff),
		etherscan.WithPageSize(cfg.Etherscan.PageSize),
		etherscan.WithTimeout(cfg.Etherscan.Timeout),
		etherscan.WithLogger(l.Component("etherscan")),
	)
}

func ProvideExtractor() *features.Extractor {
	return features.New()
}

// ProvideRiskModel uses the remote model when one is configured and the
// built-in heuristic otherwise.
func ProvideRiskModel(cfg *config.Config) domsvc.RiskModel {
	if strings.TrimSpace(cfg.Scoring.ModelURL) != "" {
		return scoring.NewHTTPModel(cfg.Scoring.ModelURL, cfg.Scoring.Timeout, cfg.Scoring.Attempts)
	}
	return scoring.NewHeuristicModel()
}

func ProvideScorer(cfg *config.Config, model domsvc.RiskModel) *scoring.Scorer {
	return scoring.NewScorer(model, cfg.Scoring.TopN)
}

func ProvideAddressScorer(
	src repository.ActivitySource,
	ext *features.Extractor,
	scorer *scoring.Scorer,
	m repository.Metrics,
) *usecase.AddressScorer {
	return usecase.NewAddressScorer(src, ext, scorer, m)
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled and
// hooks the error log collector onto it if a log topic is set.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.Linger),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "sybilscan",
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return producer, nil
}

// ProvideClickHouseClient creates a ClickHouse client when the result
// archive is enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideResultSinks collects the configured terminal-job sinks. The
// ClickHouse table is created here so a bad schema fails startup.
func ProvideResultSinks(cfg *config.Config, producer *pkgkafka.Producer, ch *pkgch.Client) ([]repository.ResultSink, error) {
	var sinks []repository.ResultSink
	if producer != nil && cfg.Kafka.Topic != "" {
		sinks = append(sinks, internalrepo.NewKafkaResultSink(producer, cfg.Kafka.Topic))
	}
	if ch != nil {
		sink := internalrepo.NewClickHouseResultSink(ch)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sink.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func ProvideJobManager(
	cfg *config.Config,
	store repository.JobStore,
	scorer *usecase.AddressScorer,
	m repository.Metrics,
	sinks []repository.ResultSink,
	vc cache.BytesCache,
	l *applogger.Logger,
) *usecase.JobManager {
	return usecase.NewJobManager(store, scorer, m,
		usecase.WithWorkers(cfg.Jobs.Workers),
		usecase.WithMaxAddresses(cfg.Jobs.MaxAddresses),
		usecase.WithMaxLifetime(cfg.Jobs.MaxLifetime),
		usecase.WithSinks(sinks...),
		usecase.WithVerifyCache(vc, cfg.Cache.VerifyTTL),
		usecase.WithManagerLogger(l.Component("jobs")),
	)
}

// ProvideLimiter creates the per-client limiter for scoring routes. A zero
// burst disables it.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.Burst <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond)
}

// ProvideHandlers builds the HTTP handlers and their middleware.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	jobs *usecase.JobManager,
	keys repository.KeyStore,
	limiter *ratelimit.Limiter,
) []xhttp.Handler {
	opts := []api.JobsOption{
		api.WithAuth(api.APIKeyAuth(keys, cfg.Server.RequireAPIKey, l)),
		api.WithStreamInterval(cfg.Jobs.StreamEvery),
	}
	if limiter != nil {
		opts = append(opts, api.WithRateLimit(api.RateLimit(limiter, l)))
	}
	return []xhttp.Handler{
		api.NewJobsHandler(l, jobs, opts...),
		api.NewKeysHandler(l, keys),
	}
}

// ProvideKafkaConsumer creates the intake consumer when an intake topic is
// configured.
func ProvideKafkaConsumer(cfg *config.Config, jobs *usecase.JobManager, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.IntakeTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.MaxAttempts, 100*time.Millisecond, 5*time.Second),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
		pkgkafka.WithConsumerLogger(l.Component("intake")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewIntakeHandler(cfg.Kafka.IntakeTopic, jobs, l.Component("intake")))
	return consumer, nil
}

// ProvideApp assembles the application and hands it every resource it must
// release on shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handlers []xhttp.Handler,
	jobs *usecase.JobManager,
	consumer *pkgkafka.Consumer,
	store repository.JobStore,
	keys repository.KeyStore,
	vc cache.BytesCache,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	rdb redis.UniversalClient,
) *server.App {
	app := server.New(cfg, l, handlers, jobs, consumer)

	if limiter != nil {
		app.AddSweeper("rate_limit", cfg.Jobs.SweepEvery, func() int {
			return limiter.Sweep(10 * time.Minute)
		})
	}
	if ttl, ok := vc.(*cache.TTLCache); ok {
		app.AddSweeper("verify_cache", cfg.Jobs.SweepEvery, ttl.Sweep)
	}

	// closed in order: stores first, shared clients last
	app.AddCloser("job store", store)
	app.AddCloser("key store", keys)
	if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	if rdb != nil {
		app.AddCloser("redis", rdb)
	}
	return app
}
