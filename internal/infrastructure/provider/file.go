package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// CSVLoader reads a local CSV file. The header row names the fields and the
// first column holds the application id.
type CSVLoader struct{}

func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

func (l *CSVLoader) Load(ctx context.Context, cfg port.ProviderConfig, _ port.AppFilter) (valueobject.ProviderData, error) {
	f, err := openSource(cfg.Source.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseCSV(ctx, f)
}

// JSONLoader reads a local JSON file holding either an object keyed by
// application id or an array of records carrying an app id field.
type JSONLoader struct{}

func NewJSONLoader() *JSONLoader {
	return &JSONLoader{}
}

func (l *JSONLoader) Load(ctx context.Context, cfg port.ProviderConfig, _ port.AppFilter) (valueobject.ProviderData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := openSource(cfg.Source.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := decodeJSON(f)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s is empty: %w", cfg.Source.Path, port.ErrNotFound)
		}
		return nil, err
	}
	return fromDocument(doc, cfg.Source)
}

func openSource(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("source path is required")
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// parseCSV converts a CSV document into provider data. Cells are inferred as
// scalars; a later row for the same application replaces an earlier one.
func parseCSV(ctx context.Context, r io.Reader) (valueobject.ProviderData, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv has no header: %w", port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("csv header is empty: %w", port.ErrNotFound)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	data := make(valueobject.ProviderData)
	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		appID, ok := valueobject.CanonicalAppID(row[0])
		if !ok {
			return nil, fmt.Errorf("csv line %d: empty %s", line, header[0])
		}

		fields := make(valueobject.FieldMap, len(header)-1)
		for i := 1; i < len(header); i++ {
			fields[header[i]] = valueobject.ParseScalar(row[i])
		}
		data[appID] = fields
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("csv holds no rows: %w", port.ErrNotFound)
	}
	return data, nil
}
