package fitness

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// ErrDuplicateFunction is returned when two functions share a metadata id.
var ErrDuplicateFunction = errors.New("fitness function already registered")

// Metadata describes a fitness function.
type Metadata struct {
	ID          string
	Name        string
	Description string
	// RuleID names the rule the function summarises. Functions that read
	// raw data directly use a virtual id.
	RuleID string
}

// Result is the pass/warn/fail summary produced by one fitness function.
type Result struct {
	// ID is the display id assigned by the registry (1-based position).
	ID          string
	FunctionID  string
	Name        string
	Description string
	RuleID      string

	PassingCount      int
	WarningCount      int
	FailingCount      int
	TotalCount        int
	PassingPercentage float64

	// Breakdown carries per-application detail for display. Its shape is function specific.
	Breakdown any
}

// Function summarises rule results, optionally reading raw data through the accessor.
// A nil result with a nil error means there was nothing to summarise.
type Function interface {
	Metadata() Metadata
	Calculate(results entity.RuleResultSet, data *Accessor) (*Result, error)
}

// NewResult fills a Result from counts. It returns nil when there is nothing to count.
func NewResult(meta Metadata, passing, warning, failing int, breakdown any) *Result {
	total := passing + warning + failing
	if total == 0 {
		return nil
	}
	return &Result{
		FunctionID:        meta.ID,
		Name:              meta.Name,
		Description:       meta.Description,
		RuleID:            meta.RuleID,
		PassingCount:      passing,
		WarningCount:      warning,
		FailingCount:      failing,
		TotalCount:        total,
		PassingPercentage: Round2(float64(passing) / float64(total) * 100),
		Breakdown:         breakdown,
	}
}

// Round2 rounds half away from zero to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (r *Result) validate() error {
	if r.TotalCount <= 0 {
		return errors.New("total count is zero")
	}
	if r.PassingCount+r.WarningCount+r.FailingCount != r.TotalCount {
		return fmt.Errorf("counts %d+%d+%d do not add up to total %d",
			r.PassingCount, r.WarningCount, r.FailingCount, r.TotalCount)
	}
	return nil
}

// Registry holds fitness functions in registration order.
type Registry struct {
	mu        sync.RWMutex
	functions []Function
	ids       map[string]struct{}
	logger    *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		ids:    make(map[string]struct{}),
		logger: log,
	}
}

// Register appends fn. Registration happens once at startup.
func (r *Registry) Register(fn Function) error {
	if fn == nil {
		return errors.New("fitness function is nil")
	}
	id := fn.Metadata().ID
	if id == "" {
		return errors.New("fitness function id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ids[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, id)
	}
	r.ids[id] = struct{}{}
	r.functions = append(r.functions, fn)
	return nil
}

// Functions returns the registered functions in order.
func (r *Registry) Functions() []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Function, len(r.functions))
	copy(out, r.functions)
	return out
}

// CalculateAll runs every function against the snapshot. Functions that return
// nothing, fail, panic or break the count invariant are left out. Display ids are
// the 1-based registry positions, so ids may have gaps.
func (r *Registry) CalculateAll(snapshot *entity.CacheSnapshot) []Result {
	functions := r.Functions()
	accessor := NewAccessor(snapshot)

	var results entity.RuleResultSet
	if snapshot != nil {
		results = snapshot.RuleResults()
	}

	out := make([]Result, 0, len(functions))
	for i, fn := range functions {
		meta := fn.Metadata()

		result, err := r.calculate(fn, results, accessor)
		if err != nil {
			r.logger.Error("Fitness function failed", err, "function_id", meta.ID)
			continue
		}
		if result == nil {
			r.logger.Debug("Fitness function produced no result", "function_id", meta.ID)
			continue
		}
		if err := result.validate(); err != nil {
			r.logger.Warn("Fitness result dropped", "function_id", meta.ID, "error", err.Error())
			continue
		}

		result.ID = strconv.Itoa(i + 1)
		out = append(out, *result)
	}
	return out
}

func (r *Registry) calculate(fn Function, results entity.RuleResultSet, data *Accessor) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn.Calculate(results, data)
}
