package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a money value that may use a comma as decimal separator.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

// ToFloat converts loosely typed JSON input to a float. ok is false when the
// value is not numeric.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		d, err := ParseAmount(n)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	}
	return 0, false
}

// ToFlag maps 1, "1", "true", "si" and true to 1. Anything else is 0.
func ToFlag(v interface{}) int {
	switch b := v.(type) {
	case nil:
		return 0
	case bool:
		if b {
			return 1
		}
		return 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "si":
			return 1
		}
		return 0
	}
	if f, ok := ToFloat(v); ok && f == 1 {
		return 1
	}
	return 0
}

// ParseID parses a positive numeric path or query id.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
