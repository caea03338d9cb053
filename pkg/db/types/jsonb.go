package dbtypes

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB stores a raw JSON document. It scans from both text and byte
// columns so the same model works on Postgres jsonb and SQLite text.
type JSONB json.RawMessage

// NewJSONB marshals v into a JSONB value.
func NewJSONB(v any) (JSONB, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONB(raw), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case string:
		*j = JSONB(v)
	case []byte:
		*j = append(JSONB(nil), v...)
	default:
		return fmt.Errorf("JSONB: unsupported Scan type %T", src)
	}
	return nil
}

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Decode unmarshals the document into dst. Empty documents leave dst untouched.
func (j JSONB) Decode(dst any) error {
	if len(bytes.TrimSpace(j)) == 0 {
		return nil
	}
	return json.Unmarshal(j, dst)
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append(JSONB(nil), data...)
	return nil
}
