package models

import (
	"database/sql/driver"
	"fmt"

	json "github.com/goccy/go-json"
)

// JSON column types shared by the sqlite and gorm stores. All serialize to
// TEXT; NULL and empty string scan to the zero value.

// JSONTopicArray stores a []TopicID as a JSON TEXT column.
type JSONTopicArray []TopicID

// Value implements driver.Valuer.
func (a JSONTopicArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]TopicID(a))
	if err != nil {
		return nil, fmt.Errorf("marshal topic array: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *JSONTopicArray) Scan(src any) error {
	return scanJSON(src, (*[]TopicID)(a))
}

// JSONMap stores a map[string]any as a JSON TEXT column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("marshal map: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, (*map[string]any)(m))
}

func scanJSON(src, dst any) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
