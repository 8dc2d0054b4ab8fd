package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GetValueAtPath walks nested maps along path and returns the value found, or nil
func GetValueAtPath(path []string, input map[string]interface{}) interface{} {
	if len(path) == 0 || input == nil {
		return nil
	}

	value, ok := input[path[0]]
	if !ok || value == nil {
		return nil
	}
	if len(path) == 1 {
		return value
	}

	next, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return GetValueAtPath(path[1:], next)
}

// ToString renders any value the way it would appear in a query string
func ToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// IsEmpty reports whether v is nil or an empty string, slice or map
func IsEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}

// WriteJSON writes data to fileName atomically (temp file + rename)
func WriteJSON(fileName string, data interface{}) error {
	result, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling json for %s: %w", fileName, err)
	}

	if dir := filepath.Dir(fileName); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	tmp := fileName + ".tmp"
	if err := os.WriteFile(tmp, result, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, fileName); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error replacing %s: %w", fileName, err)
	}

	return nil
}

// SetValueAtPath sets value at path, creating intermediate maps as needed
func SetValueAtPath(path []string, input map[string]interface{}, value interface{}) {
	if len(path) == 0 || input == nil {
		return
	}
	if len(path) == 1 {
		input[path[0]] = value
		return
	}

	next, ok := input[path[0]].(map[string]interface{})
	if !ok {
		next = map[string]interface{}{}
		input[path[0]] = next
	}
	SetValueAtPath(path[1:], next, value)
}

// DropFieldAtPath removes the field at path if present
func DropFieldAtPath(path []string, input map[string]interface{}) {
	if len(path) == 0 || input == nil {
		return
	}
	if len(path) == 1 {
		delete(input, path[0])
		return
	}

	if next, ok := input[path[0]].(map[string]interface{}); ok {
		DropFieldAtPath(path[1:], next)
	}
}
