//go:build wireinject
// +build wireinject

package di

import (
	"ChurnScope/pkg/config"
	"ChurnScope/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Model
		ProvidePipeline,
		ProvidePredictor,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,

		// Repositories
		ProvidePredictionStore,
		ProvideEventPublisher,
		ProvidePredictionCache,
		ProvideAuditPipeline,

		// Use cases
		ProvidePredictionService,
		ProvideKafkaScoringHandler,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
