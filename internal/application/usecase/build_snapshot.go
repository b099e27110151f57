package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// ErrRuleEngine is returned when rule evaluation fails as a whole.
var ErrRuleEngine = errors.New("rule engine failed")

// RuleRunner evaluates the registered rules against one cycle's raw data.
type RuleRunner interface {
	Run(raw entity.RawSnapshot) entity.RuleResultSet
}

// BuildSnapshotConfig bounds a refresh cycle.
type BuildSnapshotConfig struct {
	// ProviderTimeout applies to providers without their own timeout.
	ProviderTimeout time.Duration
	// Concurrency is the number of providers loaded in parallel.
	Concurrency int
	// AppFilter restricts every load to these application ids. Empty means all.
	AppFilter port.AppFilter
}

// BuildSnapshotResult is everything a cycle produced, before it is published.
type BuildSnapshotResult struct {
	Raw             entity.RawSnapshot
	RuleResults     entity.RuleResultSet
	LoadedProviders []string
	FailedProviders []string
	EmptyProviders  []string
	StartedAt       time.Time
	Duration        time.Duration
}

// AllProvidersFailed reports whether providers were configured and none of them loaded.
func (r *BuildSnapshotResult) AllProvidersFailed() bool {
	return len(r.FailedProviders) > 0 && len(r.LoadedProviders) == 0 && len(r.EmptyProviders) == 0
}

// BuildSnapshotUseCase runs one refresh cycle: load every provider, then evaluate rules.
type BuildSnapshotUseCase struct {
	providers []port.ProviderConfig
	loader    port.ProviderLoader
	rules     RuleRunner
	config    BuildSnapshotConfig
	logger    *logger.Logger
}

// NewBuildSnapshotUseCase creates the use case.
func NewBuildSnapshotUseCase(
	providers []port.ProviderConfig,
	loader port.ProviderLoader,
	rules RuleRunner,
	config BuildSnapshotConfig,
	logger *logger.Logger,
) *BuildSnapshotUseCase {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = 10 * time.Second
	}
	ordered := make([]port.ProviderConfig, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &BuildSnapshotUseCase{
		providers: ordered,
		loader:    loader,
		rules:     rules,
		config:    config,
		logger:    logger,
	}
}

// ProviderIDs returns the configured provider ids in load order.
func (uc *BuildSnapshotUseCase) ProviderIDs() []string {
	ids := make([]string, len(uc.providers))
	for i, p := range uc.providers {
		ids[i] = p.ID
	}
	return ids
}

// Execute runs the cycle. Provider failures are recorded in the result, not returned;
// an error means rule evaluation itself failed and nothing should be published.
func (uc *BuildSnapshotUseCase) Execute(ctx context.Context) (*BuildSnapshotResult, error) {
	started := time.Now()
	result := &BuildSnapshotResult{
		Raw:         entity.RawSnapshot{},
		RuleResults: entity.RuleResultSet{},
		StartedAt:   started,
	}

	// 1. Load providers
	uc.loadProviders(ctx, result)

	uc.logger.Info("Providers loaded",
		"loaded", len(result.LoadedProviders),
		"failed", len(result.FailedProviders),
		"empty", len(result.EmptyProviders),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	// 2. Evaluate rules
	if len(result.Raw) > 0 {
		ruleStarted := time.Now()
		results, err := uc.runRules(result.Raw)
		if err != nil {
			return nil, err
		}
		result.RuleResults = results
		uc.logger.Info("Rules evaluated", "rules", len(results), "duration_ms", time.Since(ruleStarted).Milliseconds())
	}

	result.Duration = time.Since(started)
	return result, nil
}

type providerOutcome struct {
	id   string
	data valueobject.ProviderData
	err  error
}

func (uc *BuildSnapshotUseCase) loadProviders(ctx context.Context, result *BuildSnapshotResult) {
	outcomes := make([]providerOutcome, len(uc.providers))
	sem := make(chan struct{}, uc.config.Concurrency)

	var wg sync.WaitGroup
	for i, cfg := range uc.providers {
		wg.Add(1)
		go func(i int, cfg port.ProviderConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := uc.loadOne(ctx, cfg)
			outcomes[i] = providerOutcome{id: cfg.ID, data: data, err: err}
		}(i, cfg)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			uc.logger.Error("Provider load failed", outcome.err, "provider_id", outcome.id)
			result.FailedProviders = append(result.FailedProviders, outcome.id)
		case len(outcome.data) == 0:
			uc.logger.Warn("Provider returned no data", "provider_id", outcome.id)
			result.EmptyProviders = append(result.EmptyProviders, outcome.id)
		default:
			uc.logger.Debug("Provider loaded", "provider_id", outcome.id, "apps", len(outcome.data))
			result.Raw[outcome.id] = outcome.data
			result.LoadedProviders = append(result.LoadedProviders, outcome.id)
		}
	}
}

func (uc *BuildSnapshotUseCase) loadOne(ctx context.Context, cfg port.ProviderConfig) (data valueobject.ProviderData, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data = nil
			err = port.NewLoadError(cfg, fmt.Errorf("panic: %v", rec))
		}
	}()

	timeout := cfg.Source.Timeout
	if timeout <= 0 {
		timeout = uc.config.ProviderTimeout
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err = uc.loader.Load(loadCtx, cfg, uc.config.AppFilter)
	if err != nil {
		var loadErr *port.LoadError
		if !errors.As(err, &loadErr) {
			err = port.NewLoadError(cfg, err)
		}
		return nil, err
	}
	return data, nil
}

func (uc *BuildSnapshotUseCase) runRules(raw entity.RawSnapshot) (results entity.RuleResultSet, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			results = nil
			err = fmt.Errorf("%w: panic: %v", ErrRuleEngine, rec)
		}
	}()

	results = uc.rules.Run(raw)
	if results == nil {
		return nil, fmt.Errorf("%w: no result set produced", ErrRuleEngine)
	}
	return results, nil
}
