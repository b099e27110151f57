package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
)

func promServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, r.ParseForm())
		body, ok := responses[r.Form.Get("query")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"error","errorType":"bad_data","error":"unknown query"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func vectorResponse(samples ...string) string {
	result := ""
	for i, s := range samples {
		if i > 0 {
			result += ","
		}
		result += s
	}
	return `{"status":"success","data":{"resultType":"vector","result":[` + result + `]}}`
}

func TestPrometheusLoader_Load(t *testing.T) {
	server := promServer(t, map[string]string{
		"avg_over_time(up[30d]) * 100": vectorResponse(
			`{"metric":{"app_id":"app1"},"value":[1700000000,"99.9"]}`,
			`{"metric":{"app_id":"app2"},"value":[1700000000,"NaN"]}`,
		),
		"sum by (app_id) (incidents_total)": vectorResponse(
			`{"metric":{"app_id":"app1"},"value":[1700000000,"4"]}`,
		),
	})
	defer server.Close()

	loader := NewPrometheusLoader(server.Client(), nil)
	loader.now = func() time.Time { return time.Unix(1700000000, 0) }

	data, err := loader.Load(context.Background(), port.ProviderConfig{ID: "ops", Source: port.SourceDescriptor{
		Kind: port.SourcePrometheus,
		URL:  server.URL,
		Queries: map[string]string{
			"UptimePercentage": "avg_over_time(up[30d]) * 100",
			"Incidents":        "sum by (app_id) (incidents_total)",
		},
	}}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 99.9, data["app1"]["UptimePercentage"], 1e-9)
	assert.Equal(t, 4.0, data["app1"]["Incidents"])
	assert.Contains(t, data["app2"], "UptimePercentage")
	assert.Nil(t, data["app2"]["UptimePercentage"])
}

func TestPrometheusLoader_Failures(t *testing.T) {
	server := promServer(t, map[string]string{
		"empty":    vectorResponse(),
		"no_label": vectorResponse(`{"metric":{"job":"x"},"value":[1700000000,"1"]}`),
	})
	defer server.Close()

	loader := NewPrometheusLoader(server.Client(), nil)
	load := func(query string) error {
		_, err := loader.Load(context.Background(), port.ProviderConfig{ID: "p", Source: port.SourceDescriptor{
			Kind: port.SourcePrometheus, URL: server.URL, Queries: map[string]string{"f": query},
		}}, nil)
		return err
	}

	assert.ErrorIs(t, load("empty"), port.ErrNotFound)
	assert.Error(t, load("no_label"))
	assert.Error(t, load("unknown"))

	_, err := loader.Load(context.Background(), port.ProviderConfig{Source: port.SourceDescriptor{URL: server.URL}}, nil)
	assert.Error(t, err, "queries are required")
}
