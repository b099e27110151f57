package port

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// ErrNotFound reports a source, object or stored snapshot that does not exist or holds no data.
var ErrNotFound = errors.New("not found")

// SourceKind selects the connector that reads a provider.
type SourceKind string

const (
	SourceCSV        SourceKind = "csv"
	SourceJSON       SourceKind = "json"
	SourceSQL        SourceKind = "sql"
	SourceHTTP       SourceKind = "http"
	SourcePrometheus SourceKind = "prometheus"
	SourceS3         SourceKind = "s3"
	SourceDynamoDB   SourceKind = "dynamodb"
)

// SourceDescriptor carries the connector-specific settings of one provider.
// Only the fields relevant to Kind are read.
type SourceDescriptor struct {
	Kind SourceKind

	// csv, json
	Path string

	// http, prometheus
	URL     string
	Method  string
	Headers map[string]string
	Params  map[string]string
	Body    map[string]any
	// Path to the record list inside an HTTP JSON response, dot separated.
	RecordsPath string

	// sql
	Driver string
	DSN    string
	Query  string

	// prometheus: field name -> PromQL query
	Queries  map[string]string
	AppLabel string

	// s3, dynamodb
	Bucket   string
	Key      string
	Table    string
	Region   string
	Endpoint string

	// Field holding the application id for record-shaped sources (json arrays, http, dynamodb).
	AppIDField string

	Timeout   time.Duration
	RateLimit float64
}

// SQLFilterPlaceholder marks where a sql query takes the app id filter. It is
// only accepted in the form `IN :app_ids`.
const SQLFilterPlaceholder = ":app_ids"

var (
	placeholderUse = regexp.MustCompile(`:app_ids\b`)
	placeholderIn  = regexp.MustCompile(`IN :app_ids\b`)
)

// ValidateSQLQuery rejects a query that uses the filter placeholder anywhere
// other than `IN :app_ids`.
func ValidateSQLQuery(query string) error {
	uses := len(placeholderUse.FindAllStringIndex(query, -1))
	if uses == 0 {
		return nil
	}
	if bound := len(placeholderIn.FindAllStringIndex(query, -1)); bound != uses {
		return fmt.Errorf("%s may only appear as `IN %s` (%d of %d uses do not)",
			SQLFilterPlaceholder, SQLFilterPlaceholder, uses-bound, uses)
	}
	return nil
}

// ProviderConfig identifies one data source. It is loaded at startup and not changed afterwards.
type ProviderConfig struct {
	ID     string
	Source SourceDescriptor
}

// AppFilter restricts a load to the listed application ids. Empty means all.
type AppFilter []string

// ProviderLoader reads one provider's source into per-application records.
// Implementations either return the full data set or an error, never a partial map.
type ProviderLoader interface {
	Load(ctx context.Context, cfg ProviderConfig, filter AppFilter) (valueobject.ProviderData, error)
}

// LoadError wraps any failure to read a provider.
type LoadError struct {
	ProviderID string
	Kind       SourceKind
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load provider %s (%s): %v", e.ProviderID, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError builds a LoadError for cfg.
func NewLoadError(cfg ProviderConfig, err error) *LoadError {
	return &LoadError{ProviderID: cfg.ID, Kind: cfg.Source.Kind, Err: err}
}
