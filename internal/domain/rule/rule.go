package rule

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// Rule computes a verdict per application from one refresh cycle's raw data.
// Implementations receive the whole RawSnapshot and consolidate it themselves;
// they must not modify it.
type Rule interface {
	ID() string
	Apply(raw entity.RawSnapshot) (map[string]valueobject.Verdict, error)
}

// ErrDuplicateRule is returned when a rule id is registered twice.
var ErrDuplicateRule = errors.New("rule already registered")

// Engine holds the statically registered rules and evaluates them with per-rule isolation.
type Engine struct {
	mu     sync.RWMutex
	rules  []Rule
	ids    map[string]struct{}
	logger *logger.Logger
}

// NewEngine creates an empty engine.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		ids:    make(map[string]struct{}),
		logger: log,
	}
}

// Register adds a rule. Rules are registered once at startup.
func (e *Engine) Register(r Rule) error {
	if r == nil {
		return errors.New("rule cannot be nil")
	}
	if r.ID() == "" {
		return errors.New("rule id cannot be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.ids[r.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID())
	}
	e.ids[r.ID()] = struct{}{}
	e.rules = append(e.rules, r)
	return nil
}

// Rules returns the registered rules in registration order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// RuleIDs returns the registered rule ids in sorted order.
func (e *Engine) RuleIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		ids = append(ids, r.ID())
	}
	sort.Strings(ids)
	return ids
}

// Run evaluates every rule against raw. A rule that errors or panics contributes an
// error marker; the others are unaffected. Empty input yields an empty result set.
func (e *Engine) Run(raw entity.RawSnapshot) entity.RuleResultSet {
	results := make(entity.RuleResultSet)

	universe := raw.AppIDs()
	if len(universe) == 0 {
		e.logger.Warn("No application data available, skipping rule evaluation")
		return results
	}

	known := make(map[string]struct{}, len(universe))
	for _, id := range universe {
		known[id] = struct{}{}
	}

	e.mu.RLock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	e.logger.Debug("Evaluating rules", "rules", len(rules), "apps", len(universe))

	for _, r := range rules {
		verdicts, err := e.apply(r, raw)
		if err != nil {
			e.logger.Error("Rule execution failed", err, "rule_id", r.ID())
			results[r.ID()] = entity.NewRuleError(err.Error())
			continue
		}

		for appID := range verdicts {
			if _, ok := known[appID]; !ok {
				e.logger.Warn("Rule produced verdict for unknown application", "rule_id", r.ID(), "app_id", appID)
				delete(verdicts, appID)
			}
		}

		results[r.ID()] = entity.NewRuleResult(verdicts)
		e.logger.Debug("Rule evaluated", "rule_id", r.ID(), "verdicts", len(verdicts))
	}

	return results
}

func (e *Engine) apply(r Rule, raw entity.RawSnapshot) (verdicts map[string]valueobject.Verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			verdicts = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	verdicts, err = r.Apply(raw)
	if err != nil {
		return nil, err
	}
	if verdicts == nil {
		verdicts = make(map[string]valueobject.Verdict)
	}
	return verdicts, nil
}
