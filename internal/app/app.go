package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wowseoweb3/dashboard-indexer/internal/application/services"
	"github.com/wowseoweb3/dashboard-indexer/internal/config"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/cache"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/database"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/ethereum"
	"github.com/wowseoweb3/dashboard-indexer/internal/infrastructure/metrics"
)

const (
	metricsCachePrefix = "dashboard-indexer:metrics"
	lockPrefix         = "dashboard-indexer:lock"
)

// App holds the shared infrastructure and services of every binary
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *database.PostgresDB
	Redis    *redis.Client
	Chains   *ethereum.Registry
	Registry *prometheus.Registry

	Collector  *metrics.Collector
	Cache      services.MetricsCache
	Contract   *services.ContractState
	Indexers   *services.IndexerService
	Monitoring *services.MonitoringService
	Pricing    *services.PricingService
	Payments   *services.PaymentService
	Scheduler  *services.Scheduler

	redisCache *cache.RedisCache
}

// NewLogger builds the process logger from the log config
func NewLogger(cfg config.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// New connects to every backing system and builds the services. Only the
// database and the chain RPC endpoints are mandatory; Redis falls back to
// in-process cache and locks, and a missing or broken payment contract
// leaves billing degraded.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Contract: services.NewContractState(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Collector = metrics.NewCollector(a.Registry)

	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Registry.MustRegister(db.StatsCollector())

	if cfg.Database.AutoMigrate {
		if _, err := db.Migrate(); err != nil {
			a.Close()
			return nil, err
		}
	}

	chains, err := ethereum.DialNetworks(cfg.Ethereum, cfg.Indexer, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}
	chains.OnRetry(a.Collector.RPCRetry)
	a.Chains = chains

	locker := cache.ChainLocker{cache.NewKeyedMutex()}
	a.Cache = cache.NewMemoryCache(cfg.Indexer.MetricsCacheTTL)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Failed to connect to Redis, using in-process cache and locks", zap.Error(err))
		} else {
			a.Redis = client
			a.redisCache = cache.NewRedisCache(client, metricsCachePrefix, cfg.Indexer.MetricsCacheTTL, logger)
			a.Cache = a.redisCache
			locker = append(locker, cache.NewRedisLocker(client, lockPrefix))
		}
	}

	sources := make(map[string]services.ChainSource)
	for network, fetcher := range chains.Fetchers() {
		sources[network] = fetcher
	}

	indexerRepo := database.NewIndexerRepo(db.DB())
	chainDataRepo := database.NewChainDataRepo(db.DB())
	jobRepo := database.NewJobRepo(db.DB())
	paymentRepo := database.NewPaymentRepo(db.DB())
	toolPriceRepo := database.NewToolPriceRepo(db.DB())

	var (
		contract services.ToolsContract
		metadata services.TokenMetadataReader
	)
	if client, ok := chains.Client(cfg.Ethereum.Network); ok {
		metadata = ethereum.NewMetadataReader(client, logger)
		if cfg.Contract.Address != "" {
			bound, err := ethereum.NewToolsContract(client, cfg.Contract, logger)
			if err != nil {
				logger.Warn("Payment contract unavailable", zap.Error(err))
				a.Contract.Degrade(cfg.Contract.Address, err.Error())
			} else {
				contract = bound
				a.Contract.Connect(bound.Address().Hex())
			}
		}
	}

	a.Indexers = services.NewIndexerService(
		indexerRepo,
		chainDataRepo,
		jobRepo,
		sources,
		locker,
		a.Cache,
		a.Collector,
		cfg.Indexer,
		logger,
	)
	a.Monitoring = services.NewMonitoringService(
		indexerRepo,
		chainDataRepo,
		jobRepo,
		paymentRepo,
		sources,
		a.Cache,
		a.Contract,
		cfg.Indexer,
		logger,
	)
	a.Pricing = services.NewPricingService(contract, a.Contract, toolPriceRepo, metadata, cfg.Contract, logger)
	a.Payments = services.NewPaymentService(contract, a.Pricing, paymentRepo, a.Collector, cfg.Contract, logger)
	a.Scheduler = services.NewScheduler(a.Indexers, indexerRepo, cfg.Indexer, logger)

	return a, nil
}

// SyncPrices refreshes the local price mirror when the contract is usable.
// A failure is logged and leaves the contract degraded.
func (a *App) SyncPrices(ctx context.Context) {
	if !a.Contract.Available() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.Config.Ethereum.RequestTimeout)
	defer cancel()

	prices, err := a.Pricing.SyncRegistry(ctx)
	if err != nil {
		a.Logger.Warn("Failed to sync tool prices", zap.Error(err))
		return
	}
	a.Logger.Info("Synced tool prices", zap.Int("tools", len(prices)))
}

// RedisHealth returns the Redis health check, or nil when Redis is not used
func (a *App) RedisHealth() interface{ HealthCheck(context.Context) error } {
	if a.redisCache == nil {
		return nil
	}
	return a.redisCache
}

// Close releases every connection. It is safe on a partially built App.
func (a *App) Close() {
	if a.Chains != nil {
		a.Chains.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Failed to close Redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
