// Package normalize turns loosely typed spreadsheet cell values into the
// canonical provider attributes: presence rules, coalescing, phone, date,
// title and age-band derivation.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Text renders a cell value as text. nil renders as "".
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if isMidnight(x) {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	default:
		return ""
	}
}

// String converts a present cell value to a canonical text attribute.
func String(v any) *string {
	if v == nil {
		return nil
	}
	s := Text(v)
	return &s
}

// NonEmpty returns nil for "" and a pointer to s otherwise.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int converts a cell value to a canonical integer attribute. Fractional
// numbers are truncated; text that is not a number yields nil.
func Int(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		n = int64(x)
	case bool:
		if x {
			n = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			n = i
			break
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		n = int64(f)
	default:
		return nil
	}
	return &n
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
