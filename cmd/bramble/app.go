package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/config"
	"github.com/Ramsey-B/bramble/internal/repositories/snapshot"
	"github.com/Ramsey-B/bramble/pkg/contracts"
	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/dedup"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/expansion"
	"github.com/Ramsey-B/bramble/pkg/factory"
	"github.com/Ramsey-B/bramble/pkg/graphdb"
	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/maintenance"
	"github.com/Ramsey-B/bramble/pkg/redis"
	"github.com/Ramsey-B/bramble/pkg/registry"
	cacheroutes "github.com/Ramsey-B/bramble/pkg/routes/cache"
	"github.com/Ramsey-B/bramble/pkg/routes/health"
	"github.com/Ramsey-B/bramble/pkg/startup"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/Ramsey-B/bramble/pkg/tracing/exporters"
	"github.com/Ramsey-B/bramble/pkg/workspace"
)

const version = "1.0.0"

// app holds the backing services of one process and the workspaces built over them
type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup
	health  *health.Checker
	manager *workspace.Manager

	db       database.DB
	redis    *redis.Client
	cache    *redis.Cache
	producer *kafka.Producer
	graph    *graphdb.Client

	stopTracing func(context.Context) error
}

func newApp(cfg *config.Config, logger ectologger.Logger) *app {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		health:  health.NewChecker(version),
	}

	if cfg.DatabaseEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      "postgres",
			StartFunc: a.startPostgres,
			StopFunc:  func(ctx context.Context) error { return a.db.Close() },
		})
		a.startup.AddDependency(&startup.Dependency{
			Name:      "migrations",
			Requires:  []string{"postgres"},
			StartFunc: a.migrate,
		})
	}
	if cfg.RedisEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      "redis",
			StartFunc: a.startRedis,
			StopFunc:  func(ctx context.Context) error { return a.redis.Close() },
		})
	}
	if cfg.KafkaEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      "kafka",
			StartFunc: a.startKafka,
			StopFunc:  func(ctx context.Context) error { return a.producer.Close() },
		})
	}
	if cfg.GraphDBEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      "graphdb",
			StartFunc: a.startGraphDB,
			StopFunc:  func(ctx context.Context) error { return a.graph.Close(ctx) },
		})
	}
	return a
}

func (a *app) startPostgres(ctx context.Context) error {
	db, err := database.Connect(ctx, database.Config{
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	a.health.AddCheck("postgres", db.PingContext)
	return nil
}

func (a *app) migrate(ctx context.Context) error {
	return database.NewMigrationService(a.logger, database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
	}).Migrate(a.cfg.DatabaseName, a.db)
}

func (a *app) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.health.AddCheck("redis", client.Ping)
	return nil
}

// startKafka checks that a broker answers before the producer is created
func (a *app) startKafka(ctx context.Context) error {
	cfg := kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}
	if err := cfg.Ping(ctx); err != nil {
		return err
	}
	producer, err := kafka.NewProducer(cfg, a.logger)
	if err != nil {
		return err
	}
	a.producer = producer
	a.health.AddCheck("kafka", cfg.Ping)
	return nil
}

func (a *app) startGraphDB(ctx context.Context) error {
	client, err := graphdb.NewClient(graphdb.Config{
		Scheme:      a.cfg.GraphDBScheme,
		Host:        a.cfg.GraphDBHost,
		Port:        a.cfg.GraphDBPort,
		Username:    a.cfg.GraphDBUser,
		Password:    a.cfg.GraphDBPassword,
		Database:    a.cfg.GraphDBDatabase,
		MaxPoolSize: a.cfg.GraphDBMaxPoolSize,
	}, a.logger)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close(ctx)
		return err
	}
	a.graph = client
	a.health.AddCheck("graphdb", client.Ping)
	return nil
}

// invalidator returns the response cache for the admin route, or nil when redis is off
func (a *app) invalidator() cacheroutes.Invalidator {
	if a.cache == nil {
		return nil
	}
	return a.cache
}

// setupTracing ships spans to the configured collector, or drops them when no endpoint is set
func (a *app) setupTracing(ctx context.Context) error {
	if a.cfg.TracingEndpoint == "" {
		a.logger.WithContext(ctx).Warn("Tracing enabled without an endpoint, spans are dropped")
		a.stopTracing = tracing.Setup(a.cfg.AppName, tracing.NoopExporter{})
		return nil
	}
	exp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: a.cfg.TracingEndpoint,
		Protocol: a.cfg.TracingProtocol,
		Insecure: a.cfg.TracingInsecure,
		Timeout:  a.cfg.TracingTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	a.stopTracing = tracing.Setup(a.cfg.AppName, exp)
	a.logger.WithContext(ctx).WithFields(map[string]any{
		"endpoint": a.cfg.TracingEndpoint,
		"protocol": a.cfg.TracingProtocol,
	}).Info("Tracing enabled")
	return nil
}

// start brings the enabled services up and builds the workspace manager over them
func (a *app) start(ctx context.Context) error {
	if a.cfg.TracingEnabled {
		if err := a.setupTracing(ctx); err != nil {
			return err
		}
	}
	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	deps, err := a.dependencies()
	if err != nil {
		return err
	}
	a.manager = workspace.NewManager(deps)
	a.health.SetReady(true)
	return nil
}

func (a *app) dependencies() (workspace.Dependencies, error) {
	f, err := factory.Load(a.cfg.SchemaDir)
	if err != nil {
		return workspace.Dependencies{}, fmt.Errorf("failed to load schemas: %w", err)
	}

	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), a.logger)

	var cache registry.Cache
	if a.redis != nil {
		a.cache = redis.NewCache(a.redis, "")
		cache = a.cache
	}
	reg := registry.NewClient(registry.Config{
		Endpoint: a.cfg.RegistryEndpoint,
		Database: a.cfg.RegistryDatabase,
		CacheTTL: a.cfg.RegistryCacheTTL,
		MaxPages: a.cfg.RegistryMaxPages,
	}, httpClient, cache, a.logger)

	policy := maintenance.DefaultPolicy()
	engine := expansion.NewEngine(reg, policy, expansion.Config{
		FileNumberPrefixes: a.cfg.FileNumberPrefixes,
		ChunkSize:          a.cfg.ExpansionChunkSize,
		Concurrency:        a.cfg.ExpansionConcurrency,
	}, a.logger)

	dedupCfg := dedup.DefaultConfig()
	dedupCfg.IgnoreMiddleInitial = a.cfg.IgnoreMiddleInitial

	deps := workspace.Dependencies{
		Registry:    reg,
		Expansion:   engine,
		Factory:     f,
		Dedup:       dedup.NewEngine(nil, nil, dedupCfg, a.logger),
		Resolver:    maintenance.NewResolver(engine, f, a.cfg.StubMaxRounds, a.logger),
		Policy:      policy,
		AutoPublish: a.cfg.AutoPublish,
		Logger:      a.logger,
	}

	if a.cfg.ContractsEnabled {
		cc, err := contracts.NewClient(contracts.Config{
			BaseURL:      a.cfg.ContractsBaseURL,
			Dataset:      a.cfg.ContractsDataset,
			AppToken:     a.cfg.ContractsAppToken,
			Limit:        a.cfg.ContractsLimit,
			ResultPrefix: a.cfg.ContractsResultPrefix,
		}, httpClient, a.logger)
		if err != nil {
			return workspace.Dependencies{}, err
		}
		deps.Contracts = cc
	}
	if a.db != nil {
		deps.Snapshots = snapshot.NewRepository(a.db, a.logger)
	}
	if a.producer != nil {
		deps.Emitter = events.NewEmitter(a.producer, a.logger)
	}
	if a.graph != nil {
		deps.Publisher = graphdb.NewPublisher(a.graph, a.logger)
	}
	return deps, nil
}

// stop closes the workspaces, then the services in reverse start order
func (a *app) stop(ctx context.Context) error {
	a.health.SetReady(false)
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close(ctx))
	}
	errs = append(errs, a.startup.Stop(ctx))
	if a.stopTracing != nil {
		errs = append(errs, a.stopTracing(ctx))
	}
	return errors.Join(errs...)
}
