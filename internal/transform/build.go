package transform

import (
	"time"

	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/internal/normalize"
	"github.com/sells-group/childcare-etl/pkg/geocode"
)

// Builder assembles canonical providers from extracted fields, the age
// classification and the geocoded location.
type Builder struct {
	presence normalize.Presence
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock sets the source of etl_timestamp.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a Builder. Geocoded and raw values are chosen between
// under the given presence policy.
func NewBuilder(presence normalize.Presence, opts ...BuilderOption) *Builder {
	b := &Builder{presence: presence, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the provider for one row of layout source. The record hash
// is left empty.
func (b *Builder) Build(ex *Extracted, ages normalize.AgeRange, loc geocode.Location, source string) *model.Provider {
	p := ex.Provider

	p.AgesServed = normalize.NonEmpty(ages.Label)
	p.MinAge = ages.Min
	p.MaxAge = ages.Max

	p.State = normalize.String(b.presence.First(located(loc.Region), ex.RawState))
	p.City = normalize.String(b.presence.First(located(loc.Locality), ex.RawCity))
	p.Zip = normalize.String(b.presence.First(located(loc.PostalCode), ex.RawZip))

	p.SourceFile = source
	p.ETLTimestamp = b.now().UTC()
	p.RecordHash = ""
	return &p
}

// located maps a missing geocode field to nil so it is absent under every
// presence policy.
func located(s string) any {
	if s == "" {
		return nil
	}
	return s
}
