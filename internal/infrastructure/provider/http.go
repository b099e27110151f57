package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

const maxResponseBytes = 32 << 20

// HTTPLoader fetches a JSON document from a REST endpoint.
type HTTPLoader struct {
	client *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPLoader creates a loader. A nil client uses a default one; the request
// deadline comes from the load context.
func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPLoader{client: client, limiters: make(map[string]*rate.Limiter)}
}

func (l *HTTPLoader) Load(ctx context.Context, cfg port.ProviderConfig, filter port.AppFilter) (valueobject.ProviderData, error) {
	src := cfg.Source
	if strings.TrimSpace(src.URL) == "" {
		return nil, errors.New("url is required")
	}

	if limiter := l.limiter(cfg.ID, src.RateLimit); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := buildRequest(ctx, src, filter)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", src.URL, port.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: unexpected status %d", req.Method, src.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%s returned an empty body: %w", src.URL, port.ErrNotFound)
	}
	return parseJSON(body, src)
}

func (l *HTTPLoader) limiter(providerID string, perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[providerID]
	if !ok || limiter.Limit() != rate.Limit(perSecond) {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		l.limiters[providerID] = limiter
	}
	return limiter
}

// buildRequest applies method, query params, headers and JSON body. A non-empty
// filter is sent as a comma separated app_ids query parameter.
func buildRequest(ctx context.Context, src port.SourceDescriptor, filter port.AppFilter) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(src.Method))
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	query := u.Query()
	for key, value := range src.Params {
		query.Set(key, value)
	}
	if len(filter) > 0 {
		query.Set("app_ids", strings.Join(filter, ","))
	}
	u.RawQuery = query.Encode()

	var body io.Reader
	if len(src.Body) > 0 {
		payload, err := json.Marshal(src.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range src.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}
