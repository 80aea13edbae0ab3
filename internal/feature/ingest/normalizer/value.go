package normalizer

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

// nullLikes are textual placeholders upstream uses for a missing value.
var nullLikes = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	"nan":  {},
	"none": {},
	"null": {},
	"nat":  {},
}

func isNullLike(s string) bool {
	_, ok := nullLikes[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseDate accepts YYYY-MM-DD, YYYY/MM/DD and YYYYMMDD after removing whitespace.
// Anything else yields nil.
func ParseDate(s string) *time.Time {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// dateValue parses a date out of a loosely typed upstream value.
// Bridges serialize pandas dates either as strings or as "YYYY-MM-DDT00:00:00" timestamps.
func dateValue(v any) *time.Time {
	s, ok := textValue(v)
	if !ok {
		return nil
	}
	if i := strings.IndexAny(s, "T "); i == 10 {
		s = s[:i]
	}
	return ParseDate(s)
}

// textValue renders a loosely typed upstream value as trimmed text.
// The bool is false for nil and null-like placeholders.
func textValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	if isNullLike(s) {
		return "", false
	}
	return s, true
}

func optionalText(v any) *string {
	s, ok := textValue(v)
	if !ok {
		return nil
	}
	return &s
}

// decimalValue converts an upstream numeric value without going through float32 or
// integer truncation. The bool is false when the value is missing or not numeric.
func decimalValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		return decimalValue(float64(n))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if isNullLike(s) {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return decimal.Zero, false
	}
	return decimalValue(f)
}

// amountOrZero coerces null-likes and unparsable numerics to zero.
func amountOrZero(v any) decimal.Decimal {
	d, ok := decimalValue(v)
	if !ok {
		return decimal.Zero
	}
	return d
}
