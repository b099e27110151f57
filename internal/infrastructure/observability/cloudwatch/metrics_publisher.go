package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
)

const (
	maxMetricsPerRequest = 1000
	maxRetries           = 3
	initialBackoff       = 100 * time.Millisecond
)

// Refresh metric names.
const (
	MetricRefreshDuration = "RefreshDuration"
	MetricRefreshSuccess  = "RefreshSuccess"
	MetricProvidersLoaded = "ProvidersLoaded"
	MetricProvidersFailed = "ProvidersFailed"
	MetricApplications    = "Applications"
	MetricRulesEvaluated  = "RulesEvaluated"
	MetricRulesFailed     = "RulesFailed"
)

type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig configures CloudWatch refresh metrics.
type MetricsPublisherConfig struct {
	Namespace         string
	Region            string
	Endpoint          string // LocalStack or other compatible endpoint
	AccessKeyID       string
	SecretAccessKey   string
	DefaultDimensions map[string]string
	BufferSize        int
	FlushInterval     time.Duration
	StorageResolution int32 // 1 or 60
}

// MetricsPublisher buffers refresh statistics and ships them with PutMetricData.
// It implements port.MetricsPublisher.
type MetricsPublisher struct {
	client            putMetricDataAPI
	namespace         string
	defaultDimensions map[string]string
	storageResolution int32

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewMetricsPublisher creates the publisher and starts its periodic flush.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig) (*MetricsPublisher, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg)
	p.flushTicker = time.NewTicker(cfg.FlushInterval)
	p.wg.Add(1)
	go p.flushLoop()

	return p, nil
}

func (cfg *MetricsPublisherConfig) normalize() error {
	if cfg.Namespace == "" {
		return errors.New("namespace is required")
	}
	if cfg.Region == "" {
		return errors.New("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 60 * time.Second
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60
	}
	return nil
}

func newMetricsPublisher(client putMetricDataAPI, cfg MetricsPublisherConfig) *MetricsPublisher {
	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		storageResolution: cfg.StorageResolution,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		stopCh:            make(chan struct{}),
	}
}

// PublishRefresh buffers the datums of one refresh cycle.
func (p *MetricsPublisher) PublishRefresh(ctx context.Context, stats port.RefreshStats) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, p.refreshData(stats)...)
	if len(p.buffer) >= p.bufferSize {
		if err := p.flushBufferUnsafe(ctx); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}
	return nil
}

// Flush ships all buffered datums.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the periodic flush and ships what is left.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		if p.flushTicker != nil {
			p.flushTicker.Stop()
		}
	})
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			// Failed datums stay buffered for the next tick.
			_ = p.Flush(ctx)
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe requires p.mu.
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	for i := 0; i < len(p.buffer); i += maxMetricsPerRequest {
		end := min(i+maxMetricsPerRequest, len(p.buffer))
		if err := p.publishBatchWithRetry(ctx, p.buffer[i:end]); err != nil {
			p.buffer = append(p.buffer[:0], p.buffer[i:]...)
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]
	return nil
}

func (p *MetricsPublisher) publishBatchWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *MetricsPublisher) refreshData(stats port.RefreshStats) []types.MetricDatum {
	success := 0.0
	if stats.Success {
		success = 1
	}

	at := stats.CompletedAt
	if at.IsZero() {
		at = time.Now()
	}

	return []types.MetricDatum{
		p.datum(MetricRefreshDuration, float64(stats.Duration.Milliseconds()), types.StandardUnitMilliseconds, at),
		p.datum(MetricRefreshSuccess, success, types.StandardUnitCount, at),
		p.datum(MetricProvidersLoaded, float64(stats.ProvidersLoaded), types.StandardUnitCount, at),
		p.datum(MetricProvidersFailed, float64(stats.ProvidersFailed), types.StandardUnitCount, at),
		p.datum(MetricApplications, float64(stats.Applications), types.StandardUnitCount, at),
		p.datum(MetricRulesEvaluated, float64(stats.RulesEvaluated), types.StandardUnitCount, at),
		p.datum(MetricRulesFailed, float64(stats.RulesFailed), types.StandardUnitCount, at),
	}
}

func (p *MetricsPublisher) datum(name string, value float64, unit types.StandardUnit, at time.Time) types.MetricDatum {
	dimensions := make([]types.Dimension, 0, len(p.defaultDimensions))
	for key, val := range p.defaultDimensions {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(val),
		})
	}

	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(at),
		Dimensions: dimensions,
	}
	if p.storageResolution > 0 {
		datum.StorageResolution = aws.Int32(p.storageResolution)
	}
	return datum
}

func buildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}
	return cfg, nil
}
