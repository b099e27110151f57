package rule

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/service"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// ExpressionDefinition declares a rule as CEL predicates over an application's
// consolidated fields. Expressions see `fields` (map of field name to value) and `app_id`.
type ExpressionDefinition struct {
	ID         string
	Fail       string
	FailReason string
	Warn       string
	WarnReason string
	FailLabel  string
	WarnLabel  string
	PassLabel  string
}

// ExpressionRule evaluates an ExpressionDefinition. The fail predicate is checked first.
// An application whose evaluation errors (for example a missing field) gets an
// Unknown verdict; the other applications are unaffected.
type ExpressionRule struct {
	def    ExpressionDefinition
	fail   cel.Program
	warn   cel.Program
	logger *logger.Logger
}

// NewExpressionRule compiles the definition.
func NewExpressionRule(def ExpressionDefinition, log *logger.Logger) (*ExpressionRule, error) {
	if def.ID == "" {
		return nil, errors.New("expression rule id is required")
	}
	if def.Fail == "" && def.Warn == "" {
		return nil, fmt.Errorf("expression rule %s needs a fail or warn expression", def.ID)
	}
	if def.FailLabel == "" {
		def.FailLabel = "Fail"
	}
	if def.WarnLabel == "" {
		def.WarnLabel = "Warning"
	}
	if def.PassLabel == "" {
		def.PassLabel = "Pass"
	}

	env, err := cel.NewEnv(
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("app_id", cel.StringType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	r := &ExpressionRule{def: def, logger: log}
	if def.Fail != "" {
		if r.fail, err = compileBool(env, def.Fail); err != nil {
			return nil, fmt.Errorf("rule %s fail expression: %w", def.ID, err)
		}
	}
	if def.Warn != "" {
		if r.warn, err = compileBool(env, def.Warn); err != nil {
			return nil, fmt.Errorf("rule %s warn expression: %w", def.ID, err)
		}
	}
	return r, nil
}

func (r *ExpressionRule) ID() string {
	return r.def.ID
}

// Apply evaluates the predicates for every application in raw.
func (r *ExpressionRule) Apply(raw entity.RawSnapshot) (map[string]valueobject.Verdict, error) {
	view := service.Consolidate(raw)
	results := make(map[string]valueobject.Verdict, len(view.AppIDs()))

	for _, appID := range view.AppIDs() {
		input := map[string]any{
			"fields": map[string]any(view.Lookup(appID)),
			"app_id": appID,
		}

		verdict, err := r.evaluate(input)
		if err != nil {
			r.logger.Warn("Expression evaluation failed", "rule_id", r.ID(), "app_id", appID, "error", err.Error())
			results[appID] = valueobject.Unknown(err.Error())
			continue
		}
		results[appID] = verdict
	}

	return results, nil
}

func (r *ExpressionRule) evaluate(input map[string]any) (valueobject.Verdict, error) {
	if r.fail != nil {
		matched, err := evalBool(r.fail, input)
		if err != nil {
			return valueobject.Verdict{}, err
		}
		if matched {
			return valueobject.Fail(r.def.FailLabel, r.def.FailReason), nil
		}
	}
	if r.warn != nil {
		matched, err := evalBool(r.warn, input)
		if err != nil {
			return valueobject.Verdict{}, err
		}
		if matched {
			return valueobject.Warning(r.def.WarnLabel, r.def.WarnReason), nil
		}
	}
	return valueobject.Pass(r.def.PassLabel), nil
}

func compileBool(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := env.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return prg, nil
}

func evalBool(prg cel.Program, input map[string]any) (bool, error) {
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("result not bool")
	}
	return val, nil
}
