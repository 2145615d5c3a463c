//go:build wireinject
// +build wireinject

package di

import (
	"FeatPipe/pkg/config"
	"FeatPipe/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvidePostgresPool,
	ProvideRedisCache,
	ProvideCache,
	ProvideKafkaProducer,
)

var pipelineSet = wire.NewSet(
	// Repositories
	ProvideCandleStore,
	ProvideFeatureStore,
	ProvideLabelStore,
	ProvideNormalizationStore,
	ProvideFeaturePublisher,
	ProvideFeatureSink,

	// Use cases
	ProvideFeatureMerger,
	ProvideFeaturePipeline,
	ProvideLabelGenerator,
	ProvideNormalizationFitter,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		pipelineSet,
		ProvideCandlesUseCase,
		ProvideCandleCloseHandler,
		ProvideKafkaConsumer,
		ProvideJobQueue,
		ProvideRateLimiter,
		ProvideFeaturesHandler,
		ProvideReadinessHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeToolkit wires the use cases for one-shot CLI runs.
func InitializeToolkit(cfg *config.Config) (*Toolkit, func(), error) {
	wire.Build(
		infraSet,
		pipelineSet,
		ProvideToolkit,
	)
	return nil, nil, nil
}
