//go:build wireinject
// +build wireinject

package di

import (
	"SybilScan/pkg/config"
	"SybilScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories
		ProvideJobStore,
		ProvideKeyStore,
		ProvideVerifyCache,
		ProvideResultSinks,

		// Scoring pipeline
		ProvideActivitySource,
		ProvideExtractor,
		ProvideRiskModel,
		ProvideScorer,
		ProvideAddressScorer,

		// Use cases and transports
		ProvideJobManager,
		ProvideLimiter,
		ProvideHandlers,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
