package salesapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dvloznov/sales-tracker/internal/domain"
)

// decodeRecords turns the "data" array into raw records. Numbers keep their exact
// literal text (json.Number) so ids such as the client tax id lose no digits.
// Null values are omitted, leaving the field absent.
func decodeRecords(raw json.RawMessage) ([]domain.RawTransaction, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var items []map[string]interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decodeRecords: %w", err)
	}

	out := make([]domain.RawTransaction, 0, len(items))
	for _, item := range items {
		rec := make(domain.RawTransaction, len(item))
		for k, v := range item {
			s, ok := stringValue(v)
			if !ok {
				continue
			}
			rec[k] = s
		}
		out = append(out, rec)
	}
	return out, nil
}

func stringValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
