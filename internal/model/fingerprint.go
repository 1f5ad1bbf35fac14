package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// FingerprintOptions controls which volatile columns feed the fingerprint.
type FingerprintOptions struct {
	// IncludeTimestamp adds etl_timestamp to the hashed content. The
	// fingerprint then changes on every run and every matched row is
	// rewritten.
	IncludeTimestamp bool
}

// Fingerprint returns a sha256 hex digest over p's column values. id and
// record_hash are never hashed; etl_timestamp only when opts asks for it.
func Fingerprint(p *Provider, opts FingerprintOptions) string {
	var b strings.Builder
	for _, c := range Columns {
		switch c.Name {
		case ColRecordHash:
			continue
		case ColETLTimestamp:
			if !opts.IncludeTimestamp {
				continue
			}
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(formatValue(c.Value(p)))
		b.WriteByte('\n')
	}
	h := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", h)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%q", fmt.Sprint(x))
	}
}
