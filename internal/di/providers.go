package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"DeepInfo/internal/domain/repository"
	"DeepInfo/internal/handler/api"
	internalrepo "DeepInfo/internal/repository"
	"DeepInfo/internal/scheduler"
	icache "DeepInfo/internal/service/cache"
	"DeepInfo/internal/service/graphql"
	"DeepInfo/internal/service/ratelimit"
	"DeepInfo/internal/usecase"
	pkgcache "DeepInfo/pkg/cache"
	pkgch "DeepInfo/pkg/clickhouse"
	"DeepInfo/pkg/config"
	xhttp "DeepInfo/pkg/http"
	pkgkafka "DeepInfo/pkg/kafka"
	applogger "DeepInfo/pkg/logger"
	"DeepInfo/pkg/metrics"
	pkgqueue "DeepInfo/pkg/queue"
	"DeepInfo/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client when the candle store is needed.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !needsCandleStore(cfg) {
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CandleSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func needsCandleStore(cfg *config.Config) bool {
	return cfg.Source.Type == "clickhouse" || (cfg.Kafka.Enabled && cfg.Kafka.CandlesTopic != "")
}

// ProvideCandleStore wraps the ClickHouse client; nil when ClickHouse is not configured.
func ProvideCandleStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.CandleStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideKafkaProducer creates a Kafka producer.
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

// ProvideEventPublisher publishes chart events and log batches; nil without Kafka.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaEventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.CandlesTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceIDHook())
	return consumer, nil
}

// ProvideKafkaCandlesHandler handles the candle topic.
func ProvideKafkaCandlesHandler(store repository.CandleStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaCandlesHandler {
	if store == nil || cfg.Kafka.CandlesTopic == "" {
		return nil
	}
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, store, m)
}

// ProvideRedisCache connects to Redis when enabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
		pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService picks the layered cache with Redis, memory otherwise.
func ProvideCacheService(cfg *config.Config, rc *pkgcache.RedisCache) pkgcache.Service {
	if rc != nil {
		return pkgcache.NewLayeredCache(rc,
			pkgcache.WithLayeredMemorySize(cfg.Cache.MemorySize),
			pkgcache.WithLayeredMemoryTTL(cfg.Cache.IntradayTTL),
		)
	}
	return pkgcache.NewMemoryCache(
		pkgcache.WithMemoryMaxSize(cfg.Cache.MemorySize),
		pkgcache.WithMemoryDefaultTTL(cfg.Cache.IntradayTTL),
	)
}

// ProvideCandleSource builds the configured data source, wrapped in the payload cache.
func ProvideCandleSource(
	cfg *config.Config,
	store repository.CandleStore,
	cache pkgcache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) (repository.CandleSource, error) {
	var src repository.CandleSource
	switch cfg.Source.Type {
	case "graphql":
		src = graphql.NewSource(cfg.Source.GraphQL.URL, cfg.Source.GraphQL.Timeout)
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("clickhouse source without candle store")
		}
		src = store
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
	if !cfg.Cache.Enabled {
		return src, nil
	}
	return icache.NewCandleCache(src, cache, icache.TTLs{
		Intraday: cfg.Cache.IntradayTTL,
		Daily:    cfg.Cache.DailyTTL,
	}, m, l), nil
}

// ProvideChartService creates the chart session service.
func ProvideChartService(
	cfg *config.Config,
	source repository.CandleSource,
	m repository.Metrics,
	pub *internalrepo.KafkaEventPublisher,
	l *applogger.Logger,
) *usecase.ChartService {
	opts := []usecase.ServiceOption{
		usecase.WithJoinMode(usecase.ParseJoinMode(cfg.Chart.JoinMode)),
		usecase.WithFetchTimeout(cfg.Chart.FetchTimeout),
		usecase.WithIdleTTL(cfg.Chart.IdleTTL),
		usecase.WithMaxCandles(cfg.Chart.MaxCandles),
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewChartService(source, m, l, opts...)
}

// ProvideRateLimiter limits session mutations per client IP; nil disables it.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.Rate <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.Rate, cfg.Server.RateLimit.Burst)
}

// ProvideHTTPServer creates the Echo server with health checks for configured backends.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.ChartEchoHandler,
	store repository.CandleStore,
	rc *pkgcache.RedisCache,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowOrigins(cfg.Server.AllowedOrigins),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if store != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", store.Health))
	}
	if rc != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}))
	}
	return xhttp.NewServer(l, []xhttp.Handler{h}, opts...)
}

// ProvideRedisQueue creates the prefetch job queue.
func ProvideRedisQueue(cfg *config.Config, rc *pkgcache.RedisCache, l *applogger.Logger) *pkgqueue.RedisQueue {
	if !cfg.Prefetch.Enabled || rc == nil {
		return nil
	}
	prefix := strings.TrimSuffix(cfg.Cache.Redis.Prefix, ":")
	if prefix == "" {
		prefix = "deepinfo"
	}
	return pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    cfg.Prefetch.Workers,
		RetryLimit: 3,
		RetryDelay: 5 * time.Second,
	}, rc.Client(), pkgqueue.WithKeyPrefix(prefix+":queue:"+cfg.Prefetch.Queue))
}

// ProvidePrefetcher registers the prefetch job and its cron schedule.
func ProvidePrefetcher(
	cfg *config.Config,
	q *pkgqueue.RedisQueue,
	charts *usecase.ChartService,
	source repository.CandleSource,
	cache pkgcache.Service,
	l *applogger.Logger,
) (*scheduler.Prefetcher, error) {
	if q == nil {
		return nil, nil
	}
	q.RegisterJobs(usecase.NewPrefetchJob(charts, source, cache, l))

	pairs := make([]scheduler.Pair, 0, len(cfg.Prefetch.Pairs))
	for _, p := range cfg.Prefetch.Pairs {
		base, quote, ok := config.SplitPair(p)
		if !ok {
			return nil, fmt.Errorf("prefetch pair %q", p)
		}
		pairs = append(pairs, scheduler.Pair{Base: base, Quote: quote})
	}
	pf := scheduler.NewPrefetcher(q, pairs, l)
	if err := pf.Register(cfg.Prefetch.Schedule); err != nil {
		return nil, err
	}
	return pf, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	charts *usecase.ChartService,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	q *pkgqueue.RedisQueue,
	pf *scheduler.Prefetcher,
	pub *internalrepo.KafkaEventPublisher,
	cache pkgcache.Service,
	ch *pkgch.Client,
	rl *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l, httpServer, charts)
	if rl != nil {
		app.WithRateLimiter(rl, cfg.Server.RateLimit.IdleAfter)
	}
	if consumer != nil && kh != nil {
		app.WithConsumer(consumer, kh)
	}
	if q != nil {
		app.WithQueue(q, pf)
	}
	if pub != nil && cfg.Logging.Collector.Enabled && cfg.Kafka.LogsTopic != "" {
		app.WithLogCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      pub,
		})
	}
	app.AddCloser("candle cache", cache.Close)
	if pub != nil {
		app.AddCloser("kafka producer", pub.Close)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch.Close)
	}
	return app
}
