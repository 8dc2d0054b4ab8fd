package schema

import (
	"fmt"
	"math"

	"github.com/5amCurfew/tap-pagerduty/models"
)

// Transform coerces value into the shape schema describes: date-time strings
// become RFC3339 UTC, whole numbers become integers where the schema says
// integer, and objects and arrays are walked recursively. Keys the schema
// does not describe are kept as they are.
func Transform(value interface{}, schema map[string]interface{}) (interface{}, error) {
	if value == nil || schema == nil {
		return value, nil
	}

	types := schemaTypes(schema)

	switch v := value.(type) {
	case map[string]interface{}:
		if !types["object"] {
			return value, nil
		}
		properties, _ := schema["properties"].(map[string]interface{})
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			childSchema, _ := properties[key].(map[string]interface{})
			transformed, err := Transform(child, childSchema)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = transformed
		}
		return out, nil

	case []interface{}:
		if !types["array"] {
			return value, nil
		}
		items, _ := schema["items"].(map[string]interface{})
		out := make([]interface{}, 0, len(v))
		for i, child := range v {
			transformed, err := Transform(child, items)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, transformed)
		}
		return out, nil

	case string:
		if format, _ := schema["format"].(string); format == "date-time" && types["string"] {
			t, err := models.ParseTimestamp(v)
			if err != nil {
				return nil, err
			}
			return models.FormatTimestamp(t), nil
		}
		return value, nil

	case float64:
		if types["integer"] && v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), nil
		}
		return value, nil

	default:
		return value, nil
	}
}

func schemaTypes(schema map[string]interface{}) map[string]bool {
	types := map[string]bool{}
	switch t := schema["type"].(type) {
	case string:
		types[t] = true
	case []interface{}:
		for _, name := range t {
			if s, ok := name.(string); ok {
				types[s] = true
			}
		}
	}
	return types
}
