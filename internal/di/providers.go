package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"PairScan/internal/domain/repository"
	"PairScan/internal/exchange/bybit"
	"PairScan/internal/handler/api"
	mid "PairScan/internal/middleware"
	"PairScan/internal/plugin"
	internalrepo "PairScan/internal/repository"
	icache "PairScan/internal/service/cache"
	"PairScan/internal/service/indicators"
	imetrics "PairScan/internal/service/metrics"
	"PairScan/internal/usecase"
	pkgcache "PairScan/pkg/cache"
	pkgch "PairScan/pkg/clickhouse"
	"PairScan/pkg/config"
	xhttp "PairScan/pkg/http"
	pkgkafka "PairScan/pkg/kafka"
	applogger "PairScan/pkg/logger"
	"PairScan/pkg/metrics"
	"PairScan/pkg/server"

	"github.com/sony/gobreaker"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideExchange creates the Bybit market-data client.
func ProvideExchange(cfg *config.Config) repository.Exchange {
	opts := []bybit.Option{}
	if b := cfg.Exchange.Breaker; b.MinRequests > 0 {
		opts = append(opts, bybit.WithBreakerSettings(gobreaker.Settings{
			Name:        "bybit",
			MaxRequests: b.MaxRequests,
			Interval:    b.Interval,
			Timeout:     b.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= b.MinRequests &&
					float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRate
			},
		}))
	}
	return bybit.NewClient(
		cfg.Exchange.BaseURL,
		cfg.Exchange.Category,
		cfg.Exchange.RequestTimeout,
		cfg.Exchange.RateLimitRPS,
		cfg.Exchange.RateLimitBurst,
		opts...,
	)
}

// ProvideCandleStore creates the storage backend selected by configuration.
func ProvideCandleStore(cfg *config.Config) (repository.CandleStore, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := internalrepo.NewPostgresStore(
			cfg.Postgres.DSN,
			cfg.Postgres.MaxOpenConns,
			cfg.Postgres.MaxIdleConns,
			cfg.Testnet,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return store, nil
	case "clickhouse":
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
		return internalrepo.NewClickHouseStore(client, cfg.Testnet), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// ProvideReportStore reuses the candle store backend, which also persists
// filter reports.
func ProvideReportStore(store repository.CandleStore) (repository.ReportStore, error) {
	rs, ok := store.(repository.ReportStore)
	if !ok {
		return nil, fmt.Errorf("storage backend %T does not persist reports", store)
	}
	return rs, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
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

// ProvideSignalPublisher creates the consensus signal publisher, or nil when
// Kafka is disabled.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer for indicator verdicts, or
// nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideVerdictRegistry creates the shared indicator verdict registry.
func ProvideVerdictRegistry() *usecase.VerdictRegistry {
	return usecase.NewVerdictRegistry()
}

// ProvideVerdictsHandler registers the handler for the verdicts topic.
func ProvideVerdictsHandler(registry *usecase.VerdictRegistry, m repository.Metrics, cfg *config.Config) *usecase.KafkaVerdictsHandler {
	return usecase.NewKafkaVerdictsHandler(cfg.Kafka.Consumer.VerdictsTopic, registry, m)
}

// ProvideFilterEngine creates the dynamic filter engine.
func ProvideFilterEngine(
	cfg *config.Config,
	ex repository.Exchange,
	store repository.CandleStore,
	reports repository.ReportStore,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.FilterEngine {
	engine := usecase.NewFilterEngine(cfg.Filter, ex, store, reports, log, m)
	engine.SetFallbackUniverse(cfg.Exchange.Symbols)
	return engine
}

// ProvideFetcher creates the rate-bounded fetch primitive.
func ProvideFetcher(ex repository.Exchange, cfg *config.Config, log *applogger.Logger, m repository.Metrics) *usecase.Fetcher {
	return usecase.NewFetcher(ex, cfg.Acquisition, log, m)
}

// ProvideAcquisitionEngine creates the market-data acquisition engine.
func ProvideAcquisitionEngine(cfg *config.Config, fetcher *usecase.Fetcher, store repository.CandleStore, log *applogger.Logger, m repository.Metrics) *usecase.AcquisitionEngine {
	return usecase.NewAcquisitionEngine(cfg.Acquisition, fetcher, store, log, m)
}

// ProvideConsensusAggregator creates the N-of-M consensus aggregator.
func ProvideConsensusAggregator(cfg *config.Config, log *applogger.Logger) *usecase.ConsensusAggregator {
	return usecase.NewConsensusAggregator(cfg.Consensus, log)
}

// ProvideSignalsUseCase creates the signal evaluation use case.
func ProvideSignalsUseCase(registry *usecase.VerdictRegistry, agg *usecase.ConsensusAggregator, pub repository.SignalPublisher, m repository.Metrics) *usecase.SignalsUseCase {
	return usecase.NewSignalsUseCase(registry, agg, pub, m)
}

// ProvideCandlesUseCase creates the candle retrieval use case.
func ProvideCandlesUseCase(store repository.CandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideTickerCollector creates the live ticker collector, or nil when the
// stream is disabled.
func ProvideTickerCollector(cfg *config.Config, filter *usecase.FilterEngine, m repository.Metrics) *usecase.TickerCollector {
	if !cfg.Exchange.StreamEnabled || cfg.Exchange.WebSocketURL == "" {
		return nil
	}
	stream := bybit.NewStream(cfg.Exchange.WebSocketURL, cfg.Exchange.ReconnectDelay, cfg.Exchange.PingInterval)
	pipe := mid.NewTickerPipeline(usecase.NewVolumeSink(filter), m,
		mid.WithMaxRPS(10),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickerCollector(stream, cfg.Exchange.Symbols, m, pipe)
}

// ProvideOrchestrator creates the orchestrator with the pipeline units
// registered in execution order.
func ProvideOrchestrator(
	cfg *config.Config,
	log *applogger.Logger,
	filter *usecase.FilterEngine,
	acq *usecase.AcquisitionEngine,
	signals *usecase.SignalsUseCase,
	registry *usecase.VerdictRegistry,
) (*plugin.Orchestrator, error) {
	orch := plugin.NewOrchestrator(log)
	units := []plugin.Unit{
		plugin.NewFilterUnit(filter),
		plugin.NewAcquisitionUnit(acq, cfg.Exchange.Symbols),
	}
	if cfg.Indicators.ServiceURL != "" {
		imetrics.Register()
		units = append(units, plugin.NewIndicatorsUnit(indicators.NewHTTPVerdictProvider(cfg), registry))
	}
	units = append(units, plugin.NewConsensusUnit(signals))
	for _, u := range units {
		if err := orch.Register(u); err != nil {
			return nil, err
		}
	}
	return orch, nil
}

// ProvideHTTPHandler creates the pipeline HTTP handler.
func ProvideHTTPHandler(
	cfg *config.Config,
	log *applogger.Logger,
	orch *plugin.Orchestrator,
	candles *usecase.CandlesUseCase,
	signals *usecase.SignalsUseCase,
	registry *usecase.VerdictRegistry,
	reports repository.ReportStore,
	store repository.CandleStore,
) xhttp.Handler {
	h := api.NewPipelineHandler(log, orch, candles, signals, registry, reports, store)
	if cfg.Redis.Enabled {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}
	return h
}

// ProvideCycleLock creates the distributed cycle lock, or nil when Redis is
// disabled.
func ProvideCycleLock(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("pairscan"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// logTopicPublisher adapts the Kafka producer to the logger's batch publisher.
type logTopicPublisher struct {
	producer *pkgkafka.Producer
}

func (p logTopicPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	orch *plugin.Orchestrator,
	collector *usecase.TickerCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaVerdictsHandler,
	store repository.CandleStore,
	publisher repository.SignalPublisher,
	producer *pkgkafka.Producer,
	handler xhttp.Handler,
	locker pkgcache.Service,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "pairscan.logs",
			Publisher:      logTopicPublisher{producer: producer},
		})
	}
	app := server.New(cfg, log, orch, collector, consumer, kh, store, publisher)
	app.SetHTTPHandler(handler)
	if locker != nil {
		app.SetCycleLock(locker)
	}
	return app
}
