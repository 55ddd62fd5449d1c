package normalize

import (
	"fmt"

	"filingscout/internal/ports"
)

// Records unwraps the upstream response envelope into raw records. The feed
// answers with `{"data": [...]}`, `{"records": [...]}`, some other mapping
// whose first list-valued key holds the records, or a bare list; fetchers
// decode JSON and leave shape-tolerance here.
func Records(payload any) ([]ports.RawRecord, error) {
	switch v := payload.(type) {
	case []any:
		return coerce(v)
	case map[string]any:
		if list, ok := v["data"].([]any); ok {
			return coerce(list)
		}
		if list, ok := v["records"].([]any); ok {
			return coerce(list)
		}
		for _, value := range v {
			if list, ok := value.([]any); ok && len(list) > 0 {
				return coerce(list)
			}
		}
	}
	return nil, fmt.Errorf("no record list found in response")
}

func coerce(list []any) ([]ports.RawRecord, error) {
	records := make([]ports.RawRecord, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			// Non-object rows are upstream noise; skip them rather than
			// failing the whole envelope.
			continue
		}
		records = append(records, ports.RawRecord(m))
	}
	return records, nil
}
