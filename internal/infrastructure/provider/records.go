package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// DefaultAppIDField names the application id in record-shaped sources.
const DefaultAppIDField = "app_id"

func appIDField(src port.SourceDescriptor) string {
	if src.AppIDField != "" {
		return src.AppIDField
	}
	return DefaultAppIDField
}

// fromRecords builds provider data from a list of records. A record without a
// usable app id fails the whole load. Later records for the same app win.
func fromRecords(records []map[string]any, idField string) (valueobject.ProviderData, error) {
	data := make(valueobject.ProviderData, len(records))
	for i, record := range records {
		appID, ok := valueobject.CanonicalAppID(record[idField])
		if !ok {
			return nil, fmt.Errorf("record %d: missing %s", i, idField)
		}
		fields := make(valueobject.FieldMap, len(record))
		for key, value := range record {
			if key == idField {
				continue
			}
			fields[key] = valueobject.NormalizeScalar(value)
		}
		data[appID] = fields
	}
	return data, nil
}

// fromKeyed builds provider data from an object keyed by app id.
func fromKeyed(object map[string]any) (valueobject.ProviderData, error) {
	data := make(valueobject.ProviderData, len(object))
	for key, value := range object {
		appID, ok := valueobject.CanonicalAppID(key)
		if !ok {
			return nil, errors.New("empty application id key")
		}
		record, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("application %s: record is %T, not an object", appID, value)
		}
		fields := make(valueobject.FieldMap, len(record))
		for field, v := range record {
			fields[field] = valueobject.NormalizeScalar(v)
		}
		data[appID] = fields
	}
	return data, nil
}

// decodeJSON parses a JSON document keeping numbers exact.
func decodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}

// dig follows a dot separated path through nested objects.
func dig(doc any, path string) (any, error) {
	if path == "" {
		return doc, nil
	}
	current := doc
	for _, part := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("records path %q: %q is not inside an object", path, part)
		}
		if current, ok = object[part]; !ok {
			return nil, fmt.Errorf("records path %q: key %q: %w", path, part, port.ErrNotFound)
		}
	}
	return current, nil
}

// fromDocument accepts either an array of records or an object keyed by app id.
func fromDocument(doc any, src port.SourceDescriptor) (valueobject.ProviderData, error) {
	node, err := dig(doc, src.RecordsPath)
	if err != nil {
		return nil, err
	}

	var data valueobject.ProviderData
	switch value := node.(type) {
	case []any:
		records := make([]map[string]any, 0, len(value))
		for i, item := range value {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d is %T, not an object", i, item)
			}
			records = append(records, record)
		}
		data, err = fromRecords(records, appIDField(src))
	case map[string]any:
		data, err = fromKeyed(value)
	default:
		return nil, fmt.Errorf("unexpected document type %T", node)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("source holds no records: %w", port.ErrNotFound)
	}
	return data, nil
}

// parseJSON reads a whole JSON document into provider data.
func parseJSON(body []byte, src port.SourceDescriptor) (valueobject.ProviderData, error) {
	doc, err := decodeJSON(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return fromDocument(doc, src)
}
