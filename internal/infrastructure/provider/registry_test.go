package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

func errorsIsNotFound(err error) bool {
	return errors.Is(err, port.ErrNotFound)
}

type loaderFunc func(ctx context.Context, cfg port.ProviderConfig, filter port.AppFilter) (valueobject.ProviderData, error)

func (f loaderFunc) Load(ctx context.Context, cfg port.ProviderConfig, filter port.AppFilter) (valueobject.ProviderData, error) {
	return f(ctx, cfg, filter)
}

func TestRegistry_DispatchesAndFilters(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(port.SourceCSV, loaderFunc(func(context.Context, port.ProviderConfig, port.AppFilter) (valueobject.ProviderData, error) {
		return valueobject.ProviderData{"a": {"x": 1.0}, "b": {"x": 2.0}}, nil
	}))

	data, err := r.Load(context.Background(), port.ProviderConfig{ID: "p", Source: port.SourceDescriptor{Kind: port.SourceCSV}}, port.AppFilter{"b", "zzz"})
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProviderData{"b": {"x": 2.0}}, data)
	assert.Equal(t, []port.SourceKind{port.SourceCSV}, r.Kinds())
}

func TestRegistry_UnknownKind(t *testing.T) {
	_, err := NewRegistry(nil).Load(context.Background(), port.ProviderConfig{ID: "p", Source: port.SourceDescriptor{Kind: "ftp"}}, nil)

	var loadErr *port.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "p", loadErr.ProviderID)
}

func TestRegistry_WrapsErrorsAndKeepsNotFound(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(port.SourceJSON, loaderFunc(func(context.Context, port.ProviderConfig, port.AppFilter) (valueobject.ProviderData, error) {
		return nil, port.ErrNotFound
	}))

	_, err := r.Load(context.Background(), port.ProviderConfig{ID: "p", Source: port.SourceDescriptor{Kind: port.SourceJSON}}, nil)
	var loadErr *port.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.Equal(t, port.SourceJSON, loadErr.Kind)
}

func TestRegistry_AppliesTimeout(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(port.SourceHTTP, loaderFunc(func(ctx context.Context, _ port.ProviderConfig, _ port.AppFilter) (valueobject.ProviderData, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	start := time.Now()
	_, err := r.Load(context.Background(), port.ProviderConfig{ID: "slow", Source: port.SourceDescriptor{Kind: port.SourceHTTP, Timeout: 20 * time.Millisecond}}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
