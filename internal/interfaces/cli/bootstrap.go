package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/GanizaniSitara/controls-ux/internal/application/aggregation"
	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/application/usecase"
	"github.com/GanizaniSitara/controls-ux/internal/domain/fitness"
	"github.com/GanizaniSitara/controls-ux/internal/domain/rule"
	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/cache/memory"
	redisCache "github.com/GanizaniSitara/controls-ux/internal/infrastructure/cache/redis"
	natsInfra "github.com/GanizaniSitara/controls-ux/internal/infrastructure/messaging/nats"
	wsInfra "github.com/GanizaniSitara/controls-ux/internal/infrastructure/notification/websocket"
	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/observability/cloudwatch"
	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/observability/metrics"
	dynamodbReader "github.com/GanizaniSitara/controls-ux/internal/infrastructure/persistence/dynamodb"
	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/persistence/postgres"
	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/provider"
	s3storage "github.com/GanizaniSitara/controls-ux/internal/infrastructure/storage/s3"
	"github.com/GanizaniSitara/controls-ux/pkg/config"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// buildMode selects which long-lived collaborators are started.
type buildMode int

const (
	// modeOneShot wires the cycle and the fallback store only.
	modeOneShot buildMode = iota
	// modeServe adds the broker, the websocket hub and the CloudWatch publishers.
	modeServe
)

// app holds the wired components of one process.
type app struct {
	cfg *config.Config
	log *logger.Logger

	cache    *aggregation.Cache
	engine   *rule.Engine
	fitness  *usecase.CalculateFitnessUseCase
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	hub      *wsInfra.Hub

	flushers []flusher
	closers  []func() error
}

type flusher interface {
	Flush(ctx context.Context) error
}

func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger, mode buildMode) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if err := a.wire(ctx, mode); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, mode buildMode) error {
	cfg := a.cfg

	providers, err := config.LoadProviders(cfg.Aggregator.ProvidersFile)
	if err != nil {
		return err
	}
	a.log.Info("Providers loaded", "count", len(providers), "file", cfg.Aggregator.ProvidersFile)

	loaders, err := a.buildLoaders(ctx, providers)
	if err != nil {
		return err
	}

	if a.engine, err = buildRuleEngine(cfg.Aggregator.RulesFile, a.log); err != nil {
		return err
	}

	registry, err := buildFitnessRegistry(a.log)
	if err != nil {
		return err
	}
	a.fitness = usecase.NewCalculateFitnessUseCase(registry, a.log)

	fallback, err := a.buildFallback(ctx)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	opts := []aggregation.Option{
		aggregation.WithRuleIDs(a.engine.RuleIDs),
		aggregation.WithMetricsPublisher(a.metrics),
	}

	if mode == modeServe {
		serveOpts, err := a.buildPublishers(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, serveOpts...)
	}

	builder := usecase.NewBuildSnapshotUseCase(providers, loaders, a.engine, usecase.BuildSnapshotConfig{
		ProviderTimeout: cfg.Aggregator.ProviderTimeout,
		Concurrency:     cfg.Aggregator.ProviderConcurrency,
		AppFilter:       port.AppFilter(cfg.Aggregator.AppFilter),
	}, a.log)

	a.cache = aggregation.NewCache(builder, fallback, aggregation.Config{
		RefreshInterval:    cfg.Aggregator.RefreshInterval,
		StalenessThreshold: cfg.Aggregator.StalenessThreshold,
	}, a.log, opts...)
	return nil
}

// buildLoaders registers a connector per source kind. The AWS connectors are
// only created when a provider needs them.
func (a *app) buildLoaders(ctx context.Context, providers []port.ProviderConfig) (*provider.Registry, error) {
	client := &http.Client{Timeout: a.cfg.Aggregator.ProviderTimeout}

	sqlLoader := provider.NewSQLLoader()
	a.closers = append(a.closers, sqlLoader.Close)

	registry := provider.NewRegistry(a.log)
	registry.Register(port.SourceCSV, provider.NewCSVLoader())
	registry.Register(port.SourceJSON, provider.NewJSONLoader())
	registry.Register(port.SourceSQL, sqlLoader)
	registry.Register(port.SourceHTTP, provider.NewHTTPLoader(client))
	registry.Register(port.SourcePrometheus, provider.NewPrometheusLoader(client, a.log))

	aws := a.cfg.AWS
	if usesKind(providers, port.SourceS3) {
		store, err := s3storage.NewObjectStore(ctx, s3storage.Config{
			Region:          aws.Region,
			Endpoint:        aws.Endpoint,
			AccessKeyID:     aws.AccessKeyID,
			SecretAccessKey: aws.SecretAccessKey,
			UsePathStyle:    aws.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 provider: %w", err)
		}
		registry.Register(port.SourceS3, provider.NewS3Loader(store))
	}
	if usesKind(providers, port.SourceDynamoDB) {
		reader, err := dynamodbReader.NewTableReader(ctx, dynamodbReader.Config{
			Region:          aws.Region,
			Endpoint:        aws.Endpoint,
			AccessKeyID:     aws.AccessKeyID,
			SecretAccessKey: aws.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize dynamodb provider: %w", err)
		}
		registry.Register(port.SourceDynamoDB, provider.NewDynamoDBLoader(reader))
	}
	return registry, nil
}

func usesKind(providers []port.ProviderConfig, kind port.SourceKind) bool {
	for _, p := range providers {
		if p.Source.Kind == kind {
			return true
		}
	}
	return false
}

// buildRuleEngine registers the built-in rules followed by the expression
// rules of the rules file.
func buildRuleEngine(rulesFile string, log *logger.Logger) (*rule.Engine, error) {
	engine := rule.NewEngine(log)
	builtin := []rule.Rule{
		rule.NewGovernancePathRule(log, time.Now),
		rule.NewTechDebtPriorityRule(log, time.Now),
	}
	for _, r := range builtin {
		if err := engine.Register(r); err != nil {
			return nil, err
		}
	}

	defs, err := config.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		r, err := rule.NewExpressionRule(def, log)
		if err != nil {
			return nil, fmt.Errorf("rules file %s: %w", rulesFile, err)
		}
		if err := engine.Register(r); err != nil {
			return nil, fmt.Errorf("rules file %s: %w", rulesFile, err)
		}
	}
	log.Info("Rules registered", "rules", engine.RuleIDs())
	return engine, nil
}

func buildFitnessRegistry(log *logger.Logger) (*fitness.Registry, error) {
	registry := fitness.NewRegistry(log)
	for _, fn := range []fitness.Function{
		fitness.NewGovernancePathCompliance(),
		fitness.NewTechnicalDebtManagement(),
		fitness.NewApplicationHealthScore(),
		fitness.NewCostOptimization(),
	} {
		if err := registry.Register(fn); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *app) buildFallback(ctx context.Context) (port.FallbackStore, error) {
	if pc := a.cfg.Postgres; pc.Enabled {
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:             pc.DSN(),
			Table:           pc.Table,
			Retention:       pc.Retention,
			MaxOpenConns:    pc.MaxOpenConns,
			MaxIdleConns:    pc.MaxIdleConns,
			ConnMaxLifetime: pc.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		retained, err := store.Count(ctx)
		if err != nil {
			a.log.Warn("Failed to count stored snapshots", "error", err.Error())
		}
		a.log.Info("Using PostgreSQL fallback store", "host", pc.Host, "table", pc.Table, "retained", retained)
		return store, nil
	}

	rc := a.cfg.Redis
	if !rc.Enabled {
		a.log.Info("Using in-memory fallback store")
		return memory.NewFallbackStore(), nil
	}

	store, err := redisCache.NewFallbackStore(ctx, redisCache.Config{
		Host:     rc.Host,
		Port:     rc.Port,
		Password: rc.Password,
		DB:       rc.DB,
		Key:      rc.Key,
		TTL:      rc.TTL,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	a.log.Info("Using Redis fallback store", "host", rc.Host, "key", rc.Key)
	return store, nil
}

// buildPublishers wires the long-lived sinks of the serve command.
func (a *app) buildPublishers(ctx context.Context) ([]aggregation.Option, error) {
	cfg := a.cfg
	var opts []aggregation.Option

	if cfg.CloudWatch.MetricsEnabled {
		publisher, err := cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.CloudWatch.Namespace,
			Region:            cfg.AWS.Region,
			Endpoint:          cfg.AWS.Endpoint,
			AccessKeyID:       cfg.AWS.AccessKeyID,
			SecretAccessKey:   cfg.AWS.SecretAccessKey,
			DefaultDimensions: map[string]string{"Service": "controls-ux"},
			FlushInterval:     cfg.CloudWatch.FlushInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CloudWatch metrics publisher: %w", err)
		}
		a.flushers = append(a.flushers, publisher)
		a.closers = append(a.closers, func() error { return publisher.Close(context.Background()) })
		opts = append(opts, aggregation.WithMetricsPublisher(publisher))
		a.log.Info("CloudWatch metrics publisher initialized", "namespace", cfg.CloudWatch.Namespace)
	} else {
		a.log.Warn("CloudWatch metrics publishing is disabled")
	}

	if cfg.CloudWatch.LogsEnabled {
		publisher, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroup,
			LogStreamName:   cfg.CloudWatch.LogStream,
			Service:         "controls-ux",
			Region:          cfg.AWS.Region,
			Endpoint:        cfg.AWS.Endpoint,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			FlushInterval:   cfg.CloudWatch.FlushInterval,
			AutoCreate:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CloudWatch logs publisher: %w", err)
		}
		a.log.SetLogPublisher(publisher)
		a.flushers = append(a.flushers, publisher)
		a.closers = append(a.closers, func() error {
			a.log.SetLogPublisher(nil)
			return publisher.Close(context.Background())
		})
		a.log.Info("CloudWatch logs publisher initialized", "log_group", cfg.CloudWatch.LogGroup)
	} else {
		a.log.Warn("CloudWatch logs publishing is disabled")
	}

	if cfg.NATS.Enabled {
		publisher, err := natsInfra.NewPublisher(cfg.NATS.URL, cfg.NATS.Stream, a.log)
		if err != nil {
			a.log.Warn("Failed to connect to NATS, continuing without event publishing", "error", err.Error())
		} else {
			a.closers = append(a.closers, publisher.Close)
			opts = append(opts, aggregation.WithEventPublisher(publisher))
			a.log.Info("NATS event publisher initialized", "url", cfg.NATS.URL)
		}
	} else {
		a.log.Warn("NATS event publishing is disabled")
	}

	a.hub = wsInfra.NewHub(a.log)
	opts = append(opts, aggregation.WithNotifier(a.hub))
	return opts, nil
}

// flush drains the buffered publishers.
func (a *app) flush(ctx context.Context) {
	for _, f := range a.flushers {
		if err := f.Flush(ctx); err != nil {
			a.log.Error("Failed to flush publisher", err)
		}
	}
}

// close releases everything in reverse order of creation.
func (a *app) close(ctx context.Context) {
	a.flush(ctx)
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.flushers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.Error("Failed to release resources", err)
	}
}
