package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/rule"
)

type providersFile struct {
	Providers []providerEntry `yaml:"providers"`
}

type providerEntry struct {
	ID          string            `yaml:"id"`
	Type        string            `yaml:"type"`
	Path        string            `yaml:"path"`
	URL         string            `yaml:"url"`
	Method      string            `yaml:"method"`
	Headers     map[string]string `yaml:"headers"`
	Params      map[string]string `yaml:"params"`
	Body        map[string]any    `yaml:"body"`
	RecordsPath string            `yaml:"records_path"`
	Driver      string            `yaml:"driver"`
	DSN         string            `yaml:"dsn"`
	Query       string            `yaml:"query"`
	Queries     map[string]string `yaml:"queries"`
	AppLabel    string            `yaml:"app_label"`
	Bucket      string            `yaml:"bucket"`
	Key         string            `yaml:"key"`
	Table       string            `yaml:"table"`
	Region      string            `yaml:"region"`
	Endpoint    string            `yaml:"endpoint"`
	AppIDField  string            `yaml:"app_id_field"`
	Timeout     string            `yaml:"timeout"`
	RateLimit   float64           `yaml:"rate_limit"`
}

var knownKinds = map[port.SourceKind]bool{
	port.SourceCSV:        true,
	port.SourceJSON:       true,
	port.SourceSQL:        true,
	port.SourceHTTP:       true,
	port.SourcePrometheus: true,
	port.SourceS3:         true,
	port.SourceDynamoDB:   true,
}

// LoadProviders parses the provider list. ${VAR} references are expanded from the
// environment so secrets stay out of the file. Ids must be unique.
func LoadProviders(path string) ([]port.ProviderConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Providers))
	providers := make([]port.ProviderConfig, 0, len(file.Providers))
	for i, entry := range file.Providers {
		cfg, err := entry.toProviderConfig()
		if err != nil {
			return nil, fmt.Errorf("provider %d: %w", i, err)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("duplicate provider id %q", cfg.ID)
		}
		seen[cfg.ID] = true
		providers = append(providers, cfg)
	}
	return providers, nil
}

func (e providerEntry) toProviderConfig() (port.ProviderConfig, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return port.ProviderConfig{}, errors.New("id is required")
	}
	kind := port.SourceKind(strings.ToLower(strings.TrimSpace(e.Type)))
	if !knownKinds[kind] {
		return port.ProviderConfig{}, fmt.Errorf("%s: unknown type %q", id, e.Type)
	}

	var timeout time.Duration
	if e.Timeout != "" {
		d, err := time.ParseDuration(e.Timeout)
		if err != nil {
			return port.ProviderConfig{}, fmt.Errorf("%s: invalid timeout: %w", id, err)
		}
		timeout = d
	}
	if kind == port.SourceSQL {
		if err := port.ValidateSQLQuery(e.Query); err != nil {
			return port.ProviderConfig{}, fmt.Errorf("%s: %w", id, err)
		}
	}

	return port.ProviderConfig{
		ID: id,
		Source: port.SourceDescriptor{
			Kind:        kind,
			Path:        e.Path,
			URL:         e.URL,
			Method:      e.Method,
			Headers:     e.Headers,
			Params:      e.Params,
			Body:        e.Body,
			RecordsPath: e.RecordsPath,
			Driver:      e.Driver,
			DSN:         e.DSN,
			Query:       e.Query,
			Queries:     e.Queries,
			AppLabel:    e.AppLabel,
			Bucket:      e.Bucket,
			Key:         e.Key,
			Table:       e.Table,
			Region:      e.Region,
			Endpoint:    e.Endpoint,
			AppIDField:  e.AppIDField,
			Timeout:     timeout,
			RateLimit:   e.RateLimit,
		},
	}, nil
}

type rulesFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	ID         string `yaml:"id"`
	Fail       string `yaml:"fail"`
	FailReason string `yaml:"fail_reason"`
	FailLabel  string `yaml:"fail_label"`
	Warn       string `yaml:"warn"`
	WarnReason string `yaml:"warn_reason"`
	WarnLabel  string `yaml:"warn_label"`
	PassLabel  string `yaml:"pass_label"`
}

// LoadRules parses expression rule definitions. A missing file means none.
func LoadRules(path string) ([]rule.ExpressionDefinition, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	defs := make([]rule.ExpressionDefinition, len(file.Rules))
	for i, r := range file.Rules {
		defs[i] = rule.ExpressionDefinition{
			ID:         r.ID,
			Fail:       r.Fail,
			FailReason: r.FailReason,
			FailLabel:  r.FailLabel,
			Warn:       r.Warn,
			WarnReason: r.WarnReason,
			WarnLabel:  r.WarnLabel,
			PassLabel:  r.PassLabel,
		}
	}
	return defs, nil
}
