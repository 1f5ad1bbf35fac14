package normalize

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/childcare-etl/internal/model"
)

// Presence decides whether a cell value counts as "present" when choosing
// between candidate columns.
type Presence int

const (
	// PresenceTruthy treats nil, "", numeric zero, false and the zero time
	// as absent. A capacity of 0 therefore collapses to null.
	PresenceTruthy Presence = iota
	// PresenceNonNull treats only nil as absent.
	PresenceNonNull
)

// ParsePresence maps a config value ("truthy", "non_null") to a Presence.
func ParsePresence(s string) (Presence, error) {
	switch s {
	case "", "truthy":
		return PresenceTruthy, nil
	case "non_null", "nonnull":
		return PresenceNonNull, nil
	default:
		return PresenceTruthy, eris.Errorf("normalize: unknown presence policy %q", s)
	}
}

func (p Presence) String() string {
	if p == PresenceNonNull {
		return "non_null"
	}
	return "truthy"
}

// Present reports whether v counts as a value under the policy.
func (p Presence) Present(v any) bool {
	if v == nil {
		return false
	}
	if p == PresenceNonNull {
		return true
	}
	switch x := v.(type) {
	case string:
		return x != ""
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case time.Time:
		return !x.IsZero()
	default:
		return true
	}
}

// Coalesce returns the value of the first candidate column present in row,
// or nil when none is.
func (p Presence) Coalesce(row model.RawRow, candidates []string) any {
	for _, col := range candidates {
		if v, ok := row[col]; ok && p.Present(v) {
			return v
		}
	}
	return nil
}

// First returns the first present value among vals, or nil.
func (p Presence) First(vals ...any) any {
	for _, v := range vals {
		if p.Present(v) {
			return v
		}
	}
	return nil
}
