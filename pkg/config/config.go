package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Aggregator AggregatorConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	AWS        AWSConfig
	Security   SecurityConfig
	LogLevel   string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AggregatorConfig drives the refresh cycle.
type AggregatorConfig struct {
	RefreshInterval     time.Duration
	StalenessThreshold  time.Duration
	HeartbeatInterval   time.Duration
	ProviderTimeout     time.Duration
	ProviderConcurrency int
	ProvidersFile       string
	RulesFile           string
	AppFilter           []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// PostgresConfig selects the PostgreSQL fallback store, which keeps a short
// history of usable snapshots.
type PostgresConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	Table           string
	Retention       int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Stream  string
}

type CloudWatchConfig struct {
	MetricsEnabled bool
	LogsEnabled    bool
	Namespace      string
	LogGroup       string
	LogStream      string
	FlushInterval  time.Duration
}

// AWSConfig is shared by the CloudWatch publishers and the s3/dynamodb providers.
type AWSConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	S3UsePathStyle  bool
}

type SecurityConfig struct {
	AllowedOrigins       []string
	AuthEnabled          bool
	AuthToken            string
	RefreshRatePerMinute int
	RequestRatePerSecond float64
	RequestBurst         int
	// TrustedProxies lists proxy addresses or CIDR ranges whose forwarding
	// headers name the real client. Empty means every peer is the client.
	TrustedProxies []string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return d
	}
	integer := func(key, def string) int {
		n, err := strconv.Atoi(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return n
	}
	float := func(key, def string) float64 {
		f, err := strconv.ParseFloat(getEnv(key, def), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return f
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", "30s"),
		},
		Aggregator: AggregatorConfig{
			RefreshInterval:     duration("REFRESH_INTERVAL", "5m"),
			StalenessThreshold:  duration("STALENESS_THRESHOLD", "3m"),
			HeartbeatInterval:   duration("HEARTBEAT_INTERVAL", "60s"),
			ProviderTimeout:     duration("PROVIDER_TIMEOUT", "10s"),
			ProviderConcurrency: integer("PROVIDER_CONCURRENCY", "4"),
			ProvidersFile:       getEnv("PROVIDERS_FILE", "providers.yaml"),
			RulesFile:           getEnv("RULES_FILE", "rules.yaml"),
			AppFilter:           splitCSV(getEnv("APP_FILTER", "")),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       integer("REDIS_DB", "0"),
			Key:      getEnv("REDIS_FALLBACK_KEY", "controls:snapshot:fallback"),
			TTL:      duration("REDIS_FALLBACK_TTL", "0s"),
		},
		Postgres: PostgresConfig{
			Enabled:         getEnvBool("POSTGRES_FALLBACK_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "controls"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			Table:           getEnv("POSTGRES_FALLBACK_TABLE", "controls_snapshots"),
			Retention:       integer("POSTGRES_FALLBACK_RETENTION", "10"),
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnv("NATS_STREAM", "CONTROLS"),
		},
		CloudWatch: CloudWatchConfig{
			MetricsEnabled: getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			LogsEnabled:    getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			Namespace:      getEnv("CLOUDWATCH_NAMESPACE", "ControlsUX"),
			LogGroup:       getEnv("CLOUDWATCH_LOG_GROUP", "/controls-ux/aggregator"),
			LogStream:      getEnv("CLOUDWATCH_LOG_STREAM", hostname()),
			FlushInterval:  duration("CLOUDWATCH_FLUSH_INTERVAL", "60s"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("AWS_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3UsePathStyle:  getEnvBool("S3_USE_PATH_STYLE", false),
		},
		Security: SecurityConfig{
			AllowedOrigins:       splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:          getEnvBool("AUTH_ENABLED", false),
			AuthToken:            getEnv("AUTH_BEARER_TOKEN", ""),
			RefreshRatePerMinute: integer("REFRESH_RATE_LIMIT_PER_MINUTE", "6"),
			RequestRatePerSecond: float("API_RATE_LIMIT_PER_SECOND", "50"),
			RequestBurst:         integer("API_RATE_LIMIT_BURST", "100"),
			TrustedProxies:       splitCSV(getEnv("TRUSTED_PROXIES", "")),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	a := c.Aggregator
	if a.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", a.RefreshInterval)
	}
	if a.StalenessThreshold <= 0 || a.StalenessThreshold >= a.RefreshInterval {
		return fmt.Errorf("STALENESS_THRESHOLD (%s) must be positive and shorter than REFRESH_INTERVAL (%s)",
			a.StalenessThreshold, a.RefreshInterval)
	}
	if a.ProviderConcurrency < 1 {
		return fmt.Errorf("PROVIDER_CONCURRENCY must be at least 1, got %d", a.ProviderConcurrency)
	}
	if c.Redis.Enabled && c.Postgres.Enabled {
		return errors.New("REDIS_ENABLED and POSTGRES_FALLBACK_ENABLED are exclusive")
	}
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return errors.New("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	for _, proxy := range c.Security.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is neither an address nor a CIDR range", proxy)
		}
	}
	return nil
}

// DSN builds a lib/pq connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "controls-ux"
	}
	return name
}
