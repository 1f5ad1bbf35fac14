package normalize

import (
	"time"
)

// dateLayout is month/day/two-digit-year. Two-digit years 69-99 map to the
// 1900s and 00-68 to the 2000s.
const dateLayout = "1/2/06"

// Date parses v into a calendar date at UTC midnight. time.Time values keep
// only their date component; text must match month/day/yy. Anything else
// yields nil.
func Date(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return nil
		}
		d := time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	case string:
		if x == "" {
			return nil
		}
		t, err := time.Parse(dateLayout, x)
		if err != nil {
			return nil
		}
		return &t
	default:
		return nil
	}
}
