package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB scans and writes a jsonb column as T
type JSONB[T any] struct {
	Data T
}

func (p *JSONB[T]) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &p.Data)
	case string:
		return json.Unmarshal([]byte(v), &p.Data)
	case nil:
		var zero T
		p.Data = zero
		return nil
	default:
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
}

func (p JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(p.Data)
}
