package rule

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/GanizaniSitara/controls-ux/internal/domain/service"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// num prints a float the way reason strings show measurements ("55.0", "94.5").
func num(f float64) string {
	return service.FormatNumber(f)
}

// money prints a dollar amount with thousands separators and two decimals ("46,889.00").
func money(f float64) string {
	whole, frac, _ := strings.Cut(strconv.FormatFloat(f, 'f', 2, 64), ".")
	units, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return whole + "." + frac
	}
	return humanize.Commaf(units) + "." + frac
}

// coercionLogger reports fields that fell back to their default.
func coercionLogger(log *logger.Logger, ruleID, appID string) func(*service.CoercionError) {
	return func(err *service.CoercionError) {
		log.Warn("Field coercion failed, using default",
			"rule_id", ruleID,
			"app_id", appID,
			"field", err.Field,
			"value", err.Value,
		)
	}
}
