package provider

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// ObjectReader fetches whole objects from a bucket.
type ObjectReader interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// S3Loader reads a provider export stored as an object. Keys ending in .json are
// parsed like JSON files, anything else as CSV.
type S3Loader struct {
	objects ObjectReader
}

func NewS3Loader(objects ObjectReader) *S3Loader {
	return &S3Loader{objects: objects}
}

func (l *S3Loader) Load(ctx context.Context, cfg port.ProviderConfig, _ port.AppFilter) (valueobject.ProviderData, error) {
	src := cfg.Source
	if src.Bucket == "" || src.Key == "" {
		return nil, errors.New("bucket and key are required")
	}

	body, err := l.objects.GetObject(ctx, src.Bucket, src.Key)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.Join(errors.New("object is empty"), port.ErrNotFound)
	}

	if strings.EqualFold(path.Ext(src.Key), ".json") {
		return parseJSON(body, src)
	}
	return parseCSV(ctx, bytes.NewReader(body))
}
