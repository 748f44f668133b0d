//go:build !wireinject
// +build !wireinject

// This file is maintained by hand and mirrors the provider graph in wire.go.
// Running `go generate ./internal/di` replaces it with Wire's output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
package di

import (
	"OptionsOracle/pkg/config"
	"OptionsOracle/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := ProvideLogger(cfg, producer)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics()
	client := ProvideRedisClient(cfg)
	journal, err := ProvideJournal(cfg, logger)
	if err != nil {
		return nil, err
	}
	stateStore := ProvideStateStore(cfg, client)
	eventPublisher := ProvideEventPublisher(cfg, producer)
	adapter, err := ProvideContextRisk(cfg)
	if err != nil {
		return nil, err
	}
	marketSnapshot := ProvideSnapshot(cfg)
	engine := ProvideDecisionEngine(cfg, adapter)
	broker := ProvideBroker(cfg, logger)
	orderManager, err := ProvideOrderManager(cfg, broker, adapter, logger)
	if err != nil {
		return nil, err
	}
	chain := ProvideValidationChain(cfg, adapter, orderManager)
	redisQueue := ProvideJobQueue(cfg, client, logger)
	exitArmer := ProvideExitArmer(redisQueue, orderManager, logger)
	eventProcessor := ProvideEventProcessor(cfg, eventPublisher, journal, metrics, logger)
	tradeExecutor := ProvideTradeExecutor(cfg, orderManager, chain, exitArmer, eventProcessor, metrics, logger)
	statusBoard := ProvideStatusBoard(cfg, stateStore, logger)
	oracleLoop := ProvideOracleLoop(cfg, marketSnapshot, engine, adapter, tradeExecutor, eventProcessor, statusBoard, metrics, logger)
	spotSampler := ProvideSpotSampler(marketSnapshot, adapter)
	tickRouter := ProvideTickRouter(cfg, marketSnapshot, adapter, metrics)
	realtimePipeline := ProvidePipeline(cfg, tickRouter, metrics)
	tickCollector := ProvideTickCollector(cfg, tickRouter, realtimePipeline, metrics, logger)
	consumer, err := ProvideKafkaConsumer(cfg, realtimePipeline, metrics, logger)
	if err != nil {
		return nil, err
	}
	v := ProvideHealthChecks(tickCollector, journal, client)
	httpServer := ProvideHTTPServer(cfg, oracleLoop, statusBoard, adapter, journal, tradeExecutor, v, logger)
	app := ProvideApp(cfg, logger, oracleLoop, statusBoard, spotSampler, eventProcessor, tickCollector, consumer, redisQueue, httpServer, producer, client)
	return app, nil
}
