package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/internal/domain/repository"
	domsvc "OptionsOracle/internal/domain/service"
	"OptionsOracle/internal/handler/api"
	mid "OptionsOracle/internal/middleware"
	internalrepo "OptionsOracle/internal/repository"
	"OptionsOracle/internal/service/breaker"
	"OptionsOracle/internal/service/broker"
	"OptionsOracle/internal/service/cache"
	"OptionsOracle/internal/service/feed"
	"OptionsOracle/internal/service/ratelimit"
	"OptionsOracle/internal/service/snapshot"
	"OptionsOracle/internal/services/contextrisk"
	"OptionsOracle/internal/services/decision"
	"OptionsOracle/internal/services/execution"
	"OptionsOracle/internal/services/features"
	"OptionsOracle/internal/services/risk"
	"OptionsOracle/internal/services/validation"
	"OptionsOracle/internal/usecase"
	pkgch "OptionsOracle/pkg/clickhouse"
	"OptionsOracle/pkg/config"
	xhttp "OptionsOracle/pkg/http"
	pkgkafka "OptionsOracle/pkg/kafka"
	applogger "OptionsOracle/pkg/logger"
	"OptionsOracle/pkg/metrics"
	"OptionsOracle/pkg/queue"
	"OptionsOracle/pkg/server"
)

// ProvideKafkaProducer creates the shared producer. It is nil unless events
// or aggregated error logs go to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Events.Backend != usecase.BackendKafka && !(cfg.Logging.Collect.Enabled && len(cfg.Kafka.Brokers) > 0) {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger and, when enabled, ships aggregated
// error logs to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collect.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collect.Interval,
			CountThreshold: cfg.Logging.Collect.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Source:         "oracle-" + cfg.Environment,
			Publisher:      producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return cache.NewRedisClient(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
}

// ProvideStateStore keeps the operator status in Redis, or in process when
// Redis is disabled.
func ProvideStateStore(cfg *config.Config, rdb *redis.Client) repository.StateStore {
	var c cache.BytesCache = cache.NewTTLCache()
	if rdb != nil {
		c = cache.NewRedisCache(rdb, cfg.Redis.Prefix)
	}
	return internalrepo.NewCacheStateStore(c, cfg.Redis.StateTTL)
}

func ProvideContextRisk(cfg *config.Config) (*contextrisk.Adapter, error) {
	c, err := contextrisk.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	return contextrisk.New(c), nil
}

func ProvideSnapshot(cfg *config.Config) *snapshot.MarketSnapshot {
	return snapshot.New(
		snapshot.WithHistorySize(cfg.Loop.HistorySize),
		snapshot.WithWindow(cfg.Loop.Window),
	)
}

func ProvideDecisionEngine(cfg *config.Config, ctxRisk *contextrisk.Adapter) *decision.Engine {
	return decision.NewEngine(
		decision.WithGuidance(models.StrikeGuidance{DeltaMin: cfg.Strike.DeltaMin, IVMaxPct: cfg.Strike.IVMaxPct}),
		decision.WithFallbackConfidence(ctxRisk.FallbackConfidence()),
	)
}

// ProvideBroker returns the paper broker unless the mode is live.
func ProvideBroker(cfg *config.Config, log *applogger.Logger) domsvc.Broker {
	if cfg.Mode == "live" {
		return broker.NewGateway(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Broker.Timeout)
	}
	var opts []broker.PaperOption
	if cfg.Broker.PaperMargin > 0 {
		opts = append(opts, broker.WithMargin(cfg.Broker.PaperMargin))
	}
	return broker.NewPaper(log, cfg.Strategy.LotSize, opts...)
}

func ProvideOrderManager(cfg *config.Config, b domsvc.Broker, ctxRisk *contextrisk.Adapter, log *applogger.Logger) (*execution.OrderManager, error) {
	ocfg := execution.OrderConfig{Index: cfg.Strategy.Index, LotSize: cfg.Strategy.LotSize, Location: ctxRisk.Location()}
	if cfg.Strategy.ExpiryOverride != "" {
		exp, err := execution.ParseExpiry(cfg.Strategy.ExpiryOverride, ctxRisk.Location())
		if err != nil {
			return nil, fmt.Errorf("strategy.expiry_override: %w", err)
		}
		ocfg.Expiry = exp
	}
	bl := log.Component("broker-breaker")
	br := breaker.New(breaker.Config{
		Name:                "broker",
		ConsecutiveFailures: cfg.Broker.BreakerFailures,
		Timeout:             cfg.Broker.BreakerTimeout,
		OnStateChange: func(name, from, to string) {
			bl.Warn("breaker state change", applogger.String("name", name), applogger.String("from", from), applogger.String("to", to))
		},
	})
	return execution.NewOrderManager(b, ratelimit.New(cfg.Broker.OrderRPS, cfg.Broker.OrderBurst), br, ocfg), nil
}

func ProvideValidationChain(cfg *config.Config, ctxRisk *contextrisk.Adapter, orders *execution.OrderManager) *validation.Chain {
	return validation.NewChain(ctxRisk,
		validation.WithMarginChecker(orders),
		validation.WithLimits(validation.Limits{
			MaxTrades:         cfg.Risk.MaxTrades,
			MaxPositions:      cfg.Risk.MaxPositions,
			MaxDailyLoss:      cfg.Risk.MaxDailyLoss,
			MaxDecisionAge:    cfg.Risk.DecisionMaxAge,
			MaxStrikeDistance: cfg.Risk.MaxStrikeDistance,
		}),
	)
}

// ProvideJobQueue is nil without Redis; protective exits are then placed inline.
func ProvideJobQueue(cfg *config.Config, rdb *redis.Client, log *applogger.Logger) *queue.RedisQueue {
	if rdb == nil {
		return nil
	}
	return queue.NewRedisQueue(log, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rdb, queue.WithKeyPrefix(cfg.Redis.Prefix+":jobs"))
}

func ProvideExitArmer(q *queue.RedisQueue, orders *execution.OrderManager, log *applogger.Logger) usecase.ExitArmer {
	if q == nil {
		return usecase.NewDirectArmer(orders, log)
	}
	q.RegisterJob(usecase.NewProtectiveExitJob(orders, log))
	return usecase.NewQueueArmer(q)
}

// ProvideJournal opens the analytical store selected by events.backend.
func ProvideJournal(cfg *config.Config, log *applogger.Logger) (repository.Journal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var j repository.Journal
	switch cfg.Events.Backend {
	case usecase.BackendClickHouse:
		ch := cfg.ClickHouse
		client, err := pkgch.NewClient(
			pkgch.WithHost(ch.Host),
			pkgch.WithPort(ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithAsyncInsert(ch.AsyncInsert, false),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		j = internalrepo.NewCHJournal(client, ch.Database, log)
	case usecase.BackendPostgres:
		db, err := internalrepo.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		j = internalrepo.NewPGJournal(db, cfg.Postgres.Timeout)
	default:
		return nil, nil
	}
	if err := j.Init(ctx); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return j, nil
}

func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if cfg.Events.Backend != usecase.BackendKafka || producer == nil {
		return nil
	}
	t := cfg.Kafka.Topics
	return internalrepo.NewKafkaPublisher(producer, t.Decisions, t.Trades, cfg.Strategy.Index)
}

func ProvideEventProcessor(cfg *config.Config, pub repository.EventPublisher, journal repository.Journal, m repository.Metrics, log *applogger.Logger) *usecase.EventProcessor {
	return usecase.NewEventProcessor(pub, journal, m, log, usecase.EventProcessorConfig{
		Backend:      cfg.Events.Backend,
		Buffer:       cfg.Events.Buffer,
		BatchSize:    cfg.Events.BatchSize,
		BatchTimeout: cfg.Events.BatchTimeout,
	})
}

func ProvideTradeExecutor(
	cfg *config.Config,
	orders *execution.OrderManager,
	chain *validation.Chain,
	armer usecase.ExitArmer,
	events *usecase.EventProcessor,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.TradeExecutor {
	return usecase.NewTradeExecutor(usecase.ExecutorDeps{
		Orders:    orders,
		Chain:     chain,
		Positions: execution.NewPositionManager(execution.WithTrailPct(cfg.Strategy.TrailPct)),
		Governor: risk.NewGovernor(risk.Limits{
			MaxTrades:     cfg.Risk.MaxTrades,
			MaxDailyLoss:  cfg.Risk.MaxDailyLoss,
			MinWinRatePct: cfg.Risk.MinWinRatePct,
		}),
		Sizer:   execution.NewPositionSizer(cfg.Strategy.Capital),
		Armer:   armer,
		Events:  events,
		Metrics: m,
		Log:     log,
	}, usecase.ExecutorConfig{
		BaseRisk:        cfg.Strategy.BaseRisk,
		TargetRatio:     cfg.Strategy.TargetRatio,
		LotSize:         cfg.Strategy.LotSize,
		UnderlyingToken: cfg.Feed.SpotToken,
	})
}

func ProvideStatusBoard(cfg *config.Config, store repository.StateStore, log *applogger.Logger) *usecase.StatusBoard {
	return usecase.NewStatusBoard(store, cfg.Loop.StatusFlushInterval, log)
}

func ProvideOracleLoop(
	cfg *config.Config,
	snap *snapshot.MarketSnapshot,
	decider *decision.Engine,
	ctxRisk *contextrisk.Adapter,
	exec *usecase.TradeExecutor,
	events *usecase.EventProcessor,
	board *usecase.StatusBoard,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.OracleLoop {
	return usecase.NewOracleLoop(usecase.LoopDeps{
		Snapshot: snap,
		Features: features.NewEngine(
			features.WithRSIPeriod(cfg.Features.RSIPeriod),
			features.WithMAPeriods(cfg.Features.FastMA, cfg.Features.SlowMA),
			features.WithHVPeriod(cfg.Features.HVPeriod),
		),
		Decider:  decider,
		Context:  ctxRisk,
		Executor: exec,
		Events:   events,
		Board:    board,
		Metrics:  m,
		Log:      log,
	}, usecase.LoopConfig{
		PollInterval:       cfg.Loop.PollInterval,
		WaitLogInterval:    cfg.Loop.WaitLogInterval,
		MinStopDistance:    cfg.Strategy.MinStopDistance,
		StopMomentumFactor: cfg.Strategy.StopMomentumFactor,
	})
}

func ProvideSpotSampler(snap *snapshot.MarketSnapshot, ctxRisk *contextrisk.Adapter) *usecase.SpotSampler {
	return usecase.NewSpotSampler(snap, ctxRisk, time.Second)
}

func ProvideTickRouter(cfg *config.Config, snap *snapshot.MarketSnapshot, ctxRisk *contextrisk.Adapter, m repository.Metrics) *usecase.TickRouter {
	return usecase.NewTickRouter(snap, m, usecase.TickRouterConfig{
		SpotToken:   cfg.Feed.SpotToken,
		VixToken:    cfg.Feed.VixToken,
		HeavyTokens: cfg.Feed.HeavyweightTokens,
		Location:    ctxRisk.Location(),
	})
}

// ProvidePipeline throttles heavyweights and options per token; spot and
// VIX always pass.
func ProvidePipeline(cfg *config.Config, router *usecase.TickRouter, m repository.Metrics) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(router, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithUnthrottled(cfg.Feed.SpotToken, cfg.Feed.VixToken),
	)
}

// ProvideTickCollector is nil when ticks arrive over Kafka.
func ProvideTickCollector(cfg *config.Config, router *usecase.TickRouter, pipe *mid.RealtimePipeline, m repository.Metrics, log *applogger.Logger) *usecase.TickCollector {
	if cfg.Feed.Source != "websocket" {
		return nil
	}
	cash := append([]string{cfg.Feed.SpotToken, cfg.Feed.VixToken}, cfg.Feed.HeavyweightTokens...)
	stream := feed.New(feed.Config{
		URL:            cfg.Feed.URL,
		APIKey:         cfg.Feed.APIKey,
		ClientCode:     cfg.Feed.ClientCode,
		FeedToken:      cfg.Feed.FeedToken,
		CashTokens:     cash,
		OptionTokens:   cfg.Feed.OptionTokens,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		PingInterval:   cfg.Feed.PingInterval,
		BufferSize:     cfg.Feed.BufferSize,
	}, log)
	return usecase.NewTickCollector(stream, router, pipe, m, log)
}

// ProvideKafkaConsumer is nil unless ticks arrive over Kafka.
func ProvideKafkaConsumer(cfg *config.Config, pipe *mid.RealtimePipeline, m repository.Metrics, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Source != "kafka" {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	if cc.MaxAge > 0 {
		consumer.SetHook(pkgkafka.NewHookChain(pkgkafka.MaxAgeHook(cc.MaxAge, time.Now)))
	}
	consumer.RegisterHandler(usecase.NewKafkaTicksHandler(cfg.Kafka.Topics.Ticks, pipe, m))
	return consumer, nil
}

// ProvideHealthChecks lists the dependencies /healthz probes.
func ProvideHealthChecks(collector *usecase.TickCollector, journal repository.Journal, rdb *redis.Client) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if collector != nil {
		checks["feed"] = func(context.Context) error {
			if !collector.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}
	}
	if journal != nil {
		checks["journal"] = journal.Health
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func ProvideHTTPServer(
	cfg *config.Config,
	loop *usecase.OracleLoop,
	board *usecase.StatusBoard,
	ctxRisk *contextrisk.Adapter,
	journal repository.Journal,
	exec *usecase.TradeExecutor,
	checks map[string]api.HealthCheck,
	log *applogger.Logger,
) *xhttp.Server {
	deps := api.OracleDeps{
		Status:   board,
		Commands: loop,
		Regime:   ctxRisk,
		Breaker:  exec,
		Checks:   checks,
		Location: ctxRisk.Location(),
		Log:      log,
	}
	if journal != nil {
		deps.Journal = journal
	}
	return xhttp.NewServer(log, []xhttp.Handler{api.NewOracleEchoHandler(deps)},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
	)
}

// ProvideApp assembles the lifecycle. Closers run after the event processor
// has released the producer and the journal.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	loop *usecase.OracleLoop,
	board *usecase.StatusBoard,
	sampler *usecase.SpotSampler,
	events *usecase.EventProcessor,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	jobs *queue.RedisQueue,
	srv *xhttp.Server,
	producer *pkgkafka.Producer,
	rdb *redis.Client,
) *server.App {
	var closers []io.Closer
	if producer != nil && cfg.Events.Backend != usecase.BackendKafka {
		closers = append(closers, producer)
	}
	if rdb != nil {
		closers = append(closers, rdb)
	}
	return server.New(cfg, log, server.Components{
		Loop:      loop,
		Board:     board,
		Sampler:   sampler,
		Events:    events,
		Collector: collector,
		Consumer:  consumer,
		Jobs:      jobs,
		HTTP:      srv,
		Closers:   closers,
	})
}
