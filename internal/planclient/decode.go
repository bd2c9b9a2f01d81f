package planclient

import (
	"bytes"
	"fmt"

	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/goccy/go-json"
)

func decodeHealthContext(endpoint string, data []byte) (models.HealthContext, error) {
	var hc models.HealthContext
	if len(bytes.TrimSpace(data)) == 0 {
		return hc, fmt.Errorf("%s: %w", endpoint, ErrEmptyResponse)
	}
	if err := json.Unmarshal(data, &hc); err != nil {
		return hc, fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}
	hc.ApplyDefaults()
	for i := range hc.Issues {
		if hc.Issues[i].Options == nil {
			hc.Issues[i].Options = []models.IssueOption{}
		}
	}
	return hc, nil
}

// decodeArray accepts either a bare JSON array or an object wrapping the
// array under one of wrapperKeys.
func decodeArray[T any](endpoint string, data []byte, wrapperKeys ...string) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []T{}, nil
	}
	if data[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
		}
		found := false
		for _, k := range wrapperKeys {
			if inner, ok := wrapper[k]; ok {
				data = inner
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: expected an array response", endpoint)
		}
	}
	out := []T{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func decodeObject(endpoint string, data []byte) (map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}
	return out, nil
}

// decodeShoppingList tolerates non-string items by rendering them as text.
func decodeShoppingList(data []byte) (models.ShoppingList, error) {
	raw, err := decodeObject(EndpointShoppingList, data)
	if err != nil {
		return nil, err
	}
	list := models.ShoppingList{}
	for category, v := range raw {
		items, ok := v.([]any)
		if !ok {
			continue
		}
		texts := make([]string, 0, len(items))
		for _, it := range items {
			switch x := it.(type) {
			case string:
				texts = append(texts, x)
			case nil:
			default:
				texts = append(texts, fmt.Sprint(x))
			}
		}
		list[category] = texts
	}
	return list, nil
}
