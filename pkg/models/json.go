// Package models contains domain models for engram.
package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// JSONStringArray is an ordered list of strings stored as a JSON text column.
type JSONStringArray []string

// Scan implements sql.Scanner.
func (a *JSONStringArray) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan JSONStringArray: unsupported type %T", value)
	}
	if len(data) == 0 {
		*a = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan JSONStringArray: %w", err)
	}
	*a = out
	return nil
}

// Value implements driver.Valuer. A nil array is stored as an empty JSON list.
func (a JSONStringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
