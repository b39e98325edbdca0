package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NullDate holds a DATE column as YYYY-MM-DD text. Drivers that hand back
// time.Time for date columns are normalised to the same layout.
type NullDate struct {
	String string
	Valid  bool
}

func NewDate(s string) NullDate {
	return NullDate{String: s, Valid: s != ""}
}

// DatePtr converts an optional string, treating nil and "" as NULL.
func DatePtr(s *string) NullDate {
	if s == nil {
		return NullDate{}
	}
	return NewDate(*s)
}

func (d *NullDate) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = NullDate{}
	case time.Time:
		*d = NullDate{String: v.Format("2006-01-02"), Valid: true}
	case []byte:
		*d = NullDate{String: trimDate(string(v)), Valid: true}
	case string:
		*d = NullDate{String: trimDate(v), Valid: true}
	default:
		return fmt.Errorf("cannot scan %T into NullDate", value)
	}
	return nil
}

func (d NullDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.String, nil
}

func (NullDate) GormDataType() string { return "date" }

func (d NullDate) Ptr() *string {
	if !d.Valid {
		return nil
	}
	s := d.String
	return &s
}

func (d NullDate) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String)
}

// trimDate drops a time part such as "2025-01-15 00:00:00".
func trimDate(s string) string {
	if len(s) > 10 && (s[10] == ' ' || s[10] == 'T') {
		return s[:10]
	}
	return s
}
