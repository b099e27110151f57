package provider

import (
	"context"
	"fmt"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// ItemScanner reads every item of a table as scalar records.
type ItemScanner interface {
	ScanItems(ctx context.Context, table string) ([]map[string]any, error)
}

// DynamoDBLoader reads provider records from a table; AppIDField names the
// attribute holding the application id.
type DynamoDBLoader struct {
	items ItemScanner
}

func NewDynamoDBLoader(items ItemScanner) *DynamoDBLoader {
	return &DynamoDBLoader{items: items}
}

func (l *DynamoDBLoader) Load(ctx context.Context, cfg port.ProviderConfig, _ port.AppFilter) (valueobject.ProviderData, error) {
	items, err := l.items.ScanItems(ctx, cfg.Source.Table)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("table %s is empty: %w", cfg.Source.Table, port.ErrNotFound)
	}
	return fromRecords(items, appIDField(cfg.Source))
}
