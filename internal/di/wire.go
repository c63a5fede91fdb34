//go:build wireinject
// +build wireinject

package di

import (
	"DeepInfo/internal/handler/api"
	"DeepInfo/internal/usecase"
	"DeepInfo/pkg/config"
	"DeepInfo/pkg/server"

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
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideRedisQueue,

		// Repositories
		ProvideCandleStore,
		ProvideEventPublisher,
		ProvideCandleSource,

		// Use cases
		ProvideChartService,
		usecase.NewPageUseCase,
		ProvideKafkaCandlesHandler,
		ProvidePrefetcher,

		// Transport
		ProvideRateLimiter,
		api.NewChartEchoHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
