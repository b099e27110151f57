package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

const scanPageSize = 500

type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

// TableReader scans whole tables of provider records.
type TableReader struct {
	client      dynamodb.ScanAPIClient
	strongReads bool
}

func NewTableReader(ctx context.Context, cfg Config) (*TableReader, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
	})

	return NewTableReaderWithClient(client, cfg.StrongReads), nil
}

func NewTableReaderWithClient(client dynamodb.ScanAPIClient, strongReads bool) *TableReader {
	return &TableReader{client: client, strongReads: strongReads}
}

// ScanItems reads every item of table. Scalar attributes (S, N, BOOL, NULL) are
// decoded; sets, lists, maps and binaries are left out.
func (r *TableReader) ScanItems(ctx context.Context, table string) ([]map[string]any, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(r.strongReads),
		Limit:          aws.Int32(scanPageSize),
	})

	var items []map[string]any
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("table %s: %w", table, port.ErrNotFound)
			}
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for _, item := range page.Items {
			items = append(items, fromItem(item))
		}
	}
	return items, nil
}

func fromItem(item map[string]types.AttributeValue) map[string]any {
	record := make(map[string]any, len(item))
	for name, attr := range item {
		switch v := attr.(type) {
		case *types.AttributeValueMemberS:
			record[name] = v.Value
		case *types.AttributeValueMemberN:
			record[name] = valueobject.ParseScalar(v.Value)
		case *types.AttributeValueMemberBOOL:
			record[name] = v.Value
		case *types.AttributeValueMemberNULL:
			record[name] = nil
		}
	}
	return record
}
