package di

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ChurnScope/internal/domain/repository"
	domsvc "ChurnScope/internal/domain/service"
	"ChurnScope/internal/handler/api"
	"ChurnScope/internal/handler/web"
	mid "ChurnScope/internal/middleware"
	internalrepo "ChurnScope/internal/repository"
	apimetrics "ChurnScope/internal/service/metrics"
	"ChurnScope/internal/service/ratelimit"
	"ChurnScope/internal/services/churn"
	"ChurnScope/internal/usecase"
	"ChurnScope/pkg/cache"
	pkgch "ChurnScope/pkg/clickhouse"
	"ChurnScope/pkg/config"
	xhttp "ChurnScope/pkg/http"
	pkgkafka "ChurnScope/pkg/kafka"
	"ChurnScope/pkg/logger"
	"ChurnScope/pkg/metrics"
	"ChurnScope/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger creates the application logger. When the collector is enabled
// repeated error logs are shipped to Kafka through producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvidePipeline loads and checks the model artifact. Any failure here is
// fatal for the serving binary.
func ProvidePipeline(cfg *config.Config) (*churn.Pipeline, error) {
	src := cfg.ModelSource()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Model.FetchTimeout)
	defer cancel()

	a, err := churn.OpenArtifact(ctx, xhttp.NewClient(xhttp.WithTimeout(cfg.Model.FetchTimeout)), src)
	if err != nil {
		return nil, err
	}
	p, err := churn.NewPipeline(a)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func ProvidePredictor(p *churn.Pipeline) domsvc.Predictor {
	return p
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(p *churn.Pipeline) repository.Metrics {
	m := metrics.New()
	info := p.Info()
	m.SetModel(info.Version, info.ModelType)
	return m
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	schema := pkgch.PredictionsSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table, cfg.ClickHouse.TTLDays)
	if err := client.InitSchema(ctx, schema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePredictionStore returns the ClickHouse audit log, or a no-op store.
func ProvidePredictionStore(ch *pkgch.Client, cfg *config.Config, l *logger.Logger) repository.PredictionStore {
	if ch == nil {
		return internalrepo.NoopStore{}
	}
	return internalrepo.NewClickHouseStore(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, l)
}

// ProvideEventPublisher returns the Kafka event publisher, or a no-op one.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvidePredictionCache builds an in-memory cache, layered over Redis when
// Redis is enabled.
func ProvidePredictionCache(cfg *config.Config) (repository.PredictionCache, error) {
	if !cfg.Cache.Enabled {
		return internalrepo.NoopCache{}, nil
	}
	if !cfg.Cache.Redis.Enabled {
		return internalrepo.NewCachedPredictions(cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize))), nil
	}
	remote, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, 5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache %s: %w", cfg.Cache.Redis.Host+":"+strconv.Itoa(cfg.Cache.Redis.Port), err)
	}
	layered := cache.NewLayeredCache(remote,
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
	)
	return internalrepo.NewCachedPredictions(layered), nil
}

// ProvideAuditPipeline batches audit events into the store. It is nil when
// ClickHouse is disabled.
func ProvideAuditPipeline(ch *pkgch.Client, store repository.PredictionStore, m repository.Metrics, l *logger.Logger, cfg *config.Config) *mid.AuditPipeline {
	if ch == nil {
		return nil
	}
	return mid.NewAuditPipeline(store, m, l,
		mid.WithBatchSize(cfg.Audit.BatchSize),
		mid.WithFlushInterval(cfg.Audit.FlushInterval),
		mid.WithBufferSize(cfg.Audit.BufferSize),
	)
}

// ProvidePredictionService creates the prediction use case.
func ProvidePredictionService(
	p domsvc.Predictor,
	m repository.Metrics,
	l *logger.Logger,
	c repository.PredictionCache,
	pub repository.EventPublisher,
	store repository.PredictionStore,
	audit *mid.AuditPipeline,
	cfg *config.Config,
) *usecase.PredictionService {
	opts := []usecase.ServiceOption{
		usecase.WithCache(c, cfg.Cache.TTL),
		usecase.WithPublisher(pub),
		usecase.WithStore(store),
	}
	if audit != nil {
		opts = append(opts, usecase.WithAuditor(audit))
	}
	return usecase.NewPredictionService(p, m, l, opts...)
}

// ProvideRateLimiter returns the per-client limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHTTPHandler registers the JSON API and the web front end.
func ProvideHTTPHandler(l *logger.Logger, svc *usecase.PredictionService, limiter *ratelimit.Limiter, cfg *config.Config) (xhttp.Handler, error) {
	if cfg.Metrics.Enabled {
		apimetrics.Register(prometheus.DefaultRegisterer)
	}
	wh, err := web.NewWebHandler(l, svc)
	if err != nil {
		return nil, fmt.Errorf("web handler: %w", err)
	}
	return xhttp.Handlers{
		api.NewPredictEchoHandler(l, svc, limiter),
		wh,
	}, nil
}

// ProvideKafkaConsumer creates the scoring-request consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaScoringHandler scores records from the requests topic.
func ProvideKafkaScoringHandler(svc *usecase.PredictionService, cfg *config.Config) *usecase.KafkaScoringHandler {
	return usecase.NewKafkaScoringHandler(cfg.Kafka.RequestsTopic, svc)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	predictor domsvc.Predictor,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaScoringHandler,
	audit *mid.AuditPipeline,
	limiter *ratelimit.Limiter,
	c repository.PredictionCache,
	pub repository.EventPublisher,
	store repository.PredictionStore,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	opts := []server.Option{
		server.WithModelVersion(predictor.Info().Version),
		server.WithConsumer(consumer, kh),
		server.WithAudit(audit),
		server.WithLimiter(limiter),
		server.WithCloser("cache", c),
		server.WithCloser("event publisher", pub),
		server.WithCloser("prediction store", store),
	}
	// typed nils must not reach WithCloser as non-nil interfaces
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer))
	}
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	return server.New(cfg, l, handler, opts...)
}
