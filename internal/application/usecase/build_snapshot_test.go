package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/rule"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

type mockLoader struct {
	mu       sync.Mutex
	data     map[string]valueobject.ProviderData
	errs     map[string]error
	block    map[string]bool
	calls    map[string]int
	inFlight int32
	maxSeen  int32
}

func (m *mockLoader) Load(ctx context.Context, cfg port.ProviderConfig, filter port.AppFilter) (valueobject.ProviderData, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, n) {
			break
		}
	}

	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[cfg.ID]++
	m.mu.Unlock()

	if m.block[cfg.ID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if cfg.ID == "panics" {
		panic("nil pointer")
	}
	time.Sleep(5 * time.Millisecond)
	if err := m.errs[cfg.ID]; err != nil {
		return nil, err
	}
	return m.data[cfg.ID].Filter(filter), nil
}

type panickingRunner struct{}

func (panickingRunner) Run(entity.RawSnapshot) entity.RuleResultSet {
	panic("engine exploded")
}

func providers(ids ...string) []port.ProviderConfig {
	out := make([]port.ProviderConfig, len(ids))
	for i, id := range ids {
		out[i] = port.ProviderConfig{ID: id, Source: port.SourceDescriptor{Kind: port.SourceCSV}}
	}
	return out
}

func newEngine(t *testing.T) *rule.Engine {
	t.Helper()
	engine := rule.NewEngine(logger.New("error"))
	if err := engine.Register(rule.NewGovernancePathRule(logger.New("error"), nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return engine
}

func TestBuildSnapshotUseCase_PartialFailure(t *testing.T) {
	loader := &mockLoader{
		data: map[string]valueobject.ProviderData{
			"security_v1":     {"app1": {"VulnerabilityCount": int64(12)}},
			"code_quality_v1": {"app1": {"LintScore": int64(80)}, "app2": {"LintScore": int64(40)}},
			"empty_v1":        {},
		},
		errs: map[string]error{"broken_v1": errors.New("connection refused")},
	}
	uc := NewBuildSnapshotUseCase(
		providers("security_v1", "broken_v1", "code_quality_v1", "empty_v1", "panics"),
		loader, newEngine(t), BuildSnapshotConfig{Concurrency: 2}, logger.New("error"),
	)

	result, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := result.LoadedProviders; len(got) != 2 || got[0] != "code_quality_v1" || got[1] != "security_v1" {
		t.Fatalf("unexpected loaded providers: %v", got)
	}
	if got := result.FailedProviders; len(got) != 2 || got[0] != "broken_v1" || got[1] != "panics" {
		t.Fatalf("unexpected failed providers: %v", got)
	}
	if got := result.EmptyProviders; len(got) != 1 || got[0] != "empty_v1" {
		t.Fatalf("unexpected empty providers: %v", got)
	}
	if result.AllProvidersFailed() {
		t.Fatal("cycle with loaded providers must not report total failure")
	}

	verdict := result.RuleResults[rule.GovernancePathRuleID].Verdicts["app1"].String()
	if verdict != "HALT (VulnerabilityCount (12) >= 10)" {
		t.Fatalf("unexpected verdict: %s", verdict)
	}
	if loader.maxSeen > 2 {
		t.Fatalf("concurrency limit exceeded: %d loads in flight", loader.maxSeen)
	}
}

func TestBuildSnapshotUseCase_AllProvidersFail(t *testing.T) {
	loader := &mockLoader{errs: map[string]error{
		"a": errors.New("down"),
		"b": port.NewLoadError(port.ProviderConfig{ID: "b"}, port.ErrNotFound),
	}}
	uc := NewBuildSnapshotUseCase(providers("a", "b"), loader, newEngine(t), BuildSnapshotConfig{}, logger.New("error"))

	result, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.AllProvidersFailed() {
		t.Fatal("expected total failure")
	}
	if len(result.Raw) != 0 || len(result.RuleResults) != 0 {
		t.Fatalf("expected empty raw and rule results, got %d / %d", len(result.Raw), len(result.RuleResults))
	}
}

func TestBuildSnapshotUseCase_ProviderTimeout(t *testing.T) {
	loader := &mockLoader{
		data:  map[string]valueobject.ProviderData{"fast": {"app1": {"x": int64(1)}}},
		block: map[string]bool{"hangs": true},
	}
	uc := NewBuildSnapshotUseCase(providers("fast", "hangs"), loader, newEngine(t),
		BuildSnapshotConfig{ProviderTimeout: 50 * time.Millisecond, Concurrency: 2}, logger.New("error"))

	started := time.Now()
	result, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if time.Since(started) > 2*time.Second {
		t.Fatal("hung provider was not bounded by its timeout")
	}
	if len(result.FailedProviders) != 1 || result.FailedProviders[0] != "hangs" {
		t.Fatalf("unexpected failed providers: %v", result.FailedProviders)
	}
	if _, ok := result.Raw["fast"]; !ok {
		t.Fatal("fast provider missing from raw data")
	}
}

func TestBuildSnapshotUseCase_AppFilter(t *testing.T) {
	loader := &mockLoader{data: map[string]valueobject.ProviderData{
		"p": {"app1": {"x": int64(1)}, "app2": {"x": int64(2)}},
	}}
	uc := NewBuildSnapshotUseCase(providers("p"), loader, newEngine(t),
		BuildSnapshotConfig{AppFilter: port.AppFilter{"app2"}}, logger.New("error"))

	result, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ids := result.Raw.AppIDs(); len(ids) != 1 || ids[0] != "app2" {
		t.Fatalf("unexpected app ids: %v", ids)
	}
}

func TestBuildSnapshotUseCase_RuleEnginePanic(t *testing.T) {
	loader := &mockLoader{data: map[string]valueobject.ProviderData{"p": {"app1": {"x": int64(1)}}}}
	uc := NewBuildSnapshotUseCase(providers("p"), loader, panickingRunner{}, BuildSnapshotConfig{}, logger.New("error"))

	_, err := uc.Execute(context.Background())
	if !errors.Is(err, ErrRuleEngine) {
		t.Fatalf("Execute() error = %v, want ErrRuleEngine", err)
	}
}

func TestBuildSnapshotUseCase_ProviderIDsSorted(t *testing.T) {
	uc := NewBuildSnapshotUseCase(providers("z", "a", "m"), &mockLoader{}, newEngine(t), BuildSnapshotConfig{}, logger.New("error"))

	ids := uc.ProviderIDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "m" || ids[2] != "z" {
		t.Fatalf("unexpected provider order: %v", ids)
	}
}
