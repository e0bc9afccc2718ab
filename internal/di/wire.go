//go:build wireinject
// +build wireinject

package di

import (
	"PairScan/pkg/config"
	"PairScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideExchange,
		ProvideCandleStore,
		ProvideReportStore,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideSignalPublisher,

		// Use cases
		ProvideVerdictRegistry,
		ProvideVerdictsHandler,
		ProvideFilterEngine,
		ProvideFetcher,
		ProvideAcquisitionEngine,
		ProvideConsensusAggregator,
		ProvideSignalsUseCase,
		ProvideCandlesUseCase,
		ProvideTickerCollector,

		// Orchestration and HTTP surface
		ProvideOrchestrator,
		ProvideHTTPHandler,
		ProvideCycleLock,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
