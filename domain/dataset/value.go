package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a single cell: a number, or missing.
type Value struct {
	Num   float64
	Valid bool
}

// Number wraps f as a present cell value.
func Number(f float64) Value {
	return Value{Num: f, Valid: true}
}

// Missing returns the empty cell value.
func Missing() Value {
	return Value{}
}

// Float returns the numeric value and whether it is usable for fitting
// (present and finite).
func (v Value) Float() (float64, bool) {
	if !v.Valid || math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return 0, false
	}
	return v.Num, true
}

// IsFinite reports whether the value can take part in a fit.
func (v Value) IsFinite() bool {
	_, ok := v.Float()
	return ok
}

func (v Value) String() string {
	f, ok := v.Float()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseValue coerces raw text into a Value. Anything that is not a finite
// number becomes Missing.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Missing()
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Number(f)
}

// MarshalJSON encodes missing and non-finite values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	f, ok := v.Float()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON accepts null, numbers and numeric strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Missing()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid cell value: %w", err)
		}
		*v = ParseValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid cell value: %w", err)
	}
	*v = Number(f)
	return nil
}
