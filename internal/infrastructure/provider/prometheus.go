package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// DefaultAppLabel carries the application id on Prometheus series.
const DefaultAppLabel = "app_id"

// PrometheusLoader turns instant-vector PromQL queries into fields. Each entry of
// Queries maps a field name to a query; every sample contributes that field to
// the application named by its AppLabel.
type PrometheusLoader struct {
	client *http.Client
	now    func() time.Time
	logger *logger.Logger
}

func NewPrometheusLoader(client *http.Client, log *logger.Logger) *PrometheusLoader {
	return &PrometheusLoader{client: client, now: time.Now, logger: log}
}

func (l *PrometheusLoader) Load(ctx context.Context, cfg port.ProviderConfig, _ port.AppFilter) (valueobject.ProviderData, error) {
	src := cfg.Source
	if src.URL == "" {
		return nil, errors.New("prometheus url is required")
	}
	if len(src.Queries) == 0 {
		return nil, errors.New("prometheus provider needs at least one query")
	}
	label := model.LabelName(src.AppLabel)
	if label == "" {
		label = DefaultAppLabel
	}

	client, err := promapi.NewClient(promapi.Config{Address: src.URL, Client: l.client})
	if err != nil {
		return nil, fmt.Errorf("prometheus client: %w", err)
	}
	api := promv1.NewAPI(client)
	at := l.now()

	fields := make([]string, 0, len(src.Queries))
	for field := range src.Queries {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	data := make(valueobject.ProviderData)
	for _, field := range fields {
		value, warnings, err := api.Query(ctx, src.Queries[field], at)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", field, err)
		}
		for _, w := range warnings {
			l.logger.Warn("Prometheus query warning", "provider_id", cfg.ID, "field", field, "warning", w)
		}

		vector, ok := value.(model.Vector)
		if !ok {
			return nil, fmt.Errorf("query %s returned %s, want vector", field, value.Type())
		}
		for _, sample := range vector {
			appID, ok := valueobject.CanonicalAppID(string(sample.Metric[label]))
			if !ok {
				return nil, fmt.Errorf("query %s: series %s has no %s label", field, sample.Metric, label)
			}
			record, exists := data[appID]
			if !exists {
				record = make(valueobject.FieldMap, len(fields))
				data[appID] = record
			}
			v := float64(sample.Value)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				record[field] = nil
				continue
			}
			record[field] = v
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("queries returned no series: %w", port.ErrNotFound)
	}
	return data, nil
}
