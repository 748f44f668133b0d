//go:build wireinject
// +build wireinject

package di

import (
	"OptionsOracle/pkg/config"
	"OptionsOracle/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisClient,
		ProvideJournal,

		// Repositories
		ProvideStateStore,
		ProvideEventPublisher,

		// Domain services
		ProvideContextRisk,
		ProvideSnapshot,
		ProvideDecisionEngine,
		ProvideBroker,
		ProvideOrderManager,
		ProvideValidationChain,
		ProvideJobQueue,
		ProvideExitArmer,

		// Use cases
		ProvideEventProcessor,
		ProvideTradeExecutor,
		ProvideStatusBoard,
		ProvideOracleLoop,
		ProvideSpotSampler,
		ProvideTickRouter,
		ProvidePipeline,
		ProvideTickCollector,
		ProvideKafkaConsumer,

		// HTTP and application server
		ProvideHealthChecks,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
