package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// DefaultTimeout bounds a load whose descriptor sets none.
const DefaultTimeout = 10 * time.Second

// Registry dispatches loads to the connector registered for the source kind.
// It is itself a port.ProviderLoader.
type Registry struct {
	mu      sync.RWMutex
	loaders map[port.SourceKind]port.ProviderLoader
	logger  *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		loaders: make(map[port.SourceKind]port.ProviderLoader),
		logger:  log,
	}
}

// Register binds a connector to a kind, replacing any previous one.
func (r *Registry) Register(kind port.SourceKind, loader port.ProviderLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[kind] = loader
}

// Kinds lists the registered source kinds.
func (r *Registry) Kinds() []port.SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]port.SourceKind, 0, len(r.loaders))
	for kind := range r.loaders {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Load runs the connector under the provider's timeout and applies the app filter.
// Every failure comes back as *port.LoadError.
func (r *Registry) Load(ctx context.Context, cfg port.ProviderConfig, filter port.AppFilter) (valueobject.ProviderData, error) {
	r.mu.RLock()
	loader, ok := r.loaders[cfg.Source.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, port.NewLoadError(cfg, fmt.Errorf("unsupported source kind %q", cfg.Source.Kind))
	}

	timeout := cfg.Source.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	data, err := loader.Load(loadCtx, cfg, filter)
	if err != nil {
		var loadErr *port.LoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, port.NewLoadError(cfg, err)
	}

	data = data.Filter(filter)
	r.logger.Debug("Provider loaded",
		"provider_id", cfg.ID,
		"kind", string(cfg.Source.Kind),
		"apps", len(data),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return data, nil
}
