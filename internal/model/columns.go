package model

import "time"

// Column binds a child_care_providers column to the Provider field backing
// it. Insert, update and select statements are all generated from the same
// ordered table, so column names and values always line up one to one.
type Column struct {
	Name  string
	value func(*Provider) any
	dest  func(*Provider) any
}

// Value returns the column's value for p, or nil for SQL NULL.
func (c Column) Value(p *Provider) any { return c.value(p) }

// Dest returns a scan destination for the column's field on p.
func (c Column) Dest(p *Provider) any { return c.dest(p) }

func nullable[T any](name string, field func(*Provider) **T) Column {
	return Column{
		Name: name,
		value: func(p *Provider) any {
			v := *field(p)
			if v == nil {
				return nil
			}
			return *v
		},
		dest: func(p *Provider) any { return field(p) },
	}
}

func required[T any](name string, field func(*Provider) *T) Column {
	return Column{
		Name:  name,
		value: func(p *Provider) any { return *field(p) },
		dest:  func(p *Provider) any { return field(p) },
	}
}

// Table is the persisted table name.
const Table = "child_care_providers"

// Column names referenced outside the table definition.
const (
	ColETLTimestamp = "etl_timestamp"
	ColRecordHash   = "record_hash"
)

// Columns lists every persisted column except the surrogate id, in schema order.
var Columns = []Column{
	required("accepts_financial_aid", func(p *Provider) *bool { return &p.AcceptsFinancialAid }),
	nullable("ages_served", func(p *Provider) **string { return &p.AgesServed }),
	nullable("capacity", func(p *Provider) **int64 { return &p.Capacity }),
	nullable("certificate_expiration_date", func(p *Provider) **time.Time { return &p.CertificateExpirationDate }),
	nullable("city", func(p *Provider) **string { return &p.City }),
	nullable("address1", func(p *Provider) **string { return &p.Address1 }),
	nullable("address2", func(p *Provider) **string { return &p.Address2 }),
	nullable("company", func(p *Provider) **string { return &p.Company }),
	nullable("phone", func(p *Provider) **string { return &p.Phone }),
	nullable("phone2", func(p *Provider) **string { return &p.Phone2 }),
	nullable("county", func(p *Provider) **string { return &p.County }),
	nullable("curriculum_type", func(p *Provider) **string { return &p.CurriculumType }),
	nullable("email", func(p *Provider) **string { return &p.Email }),
	nullable("language", func(p *Provider) **string { return &p.Language }),
	nullable("license_status", func(p *Provider) **string { return &p.LicenseStatus }),
	nullable("license_issued", func(p *Provider) **time.Time { return &p.LicenseIssued }),
	nullable("license_number", func(p *Provider) **string { return &p.LicenseNumber }),
	nullable("license_renewed", func(p *Provider) **time.Time { return &p.LicenseRenewed }),
	nullable("license_type", func(p *Provider) **string { return &p.LicenseType }),
	nullable("contact_name", func(p *Provider) **string { return &p.ContactName }),
	nullable("max_age", func(p *Provider) **int64 { return &p.MaxAge }),
	nullable("min_age", func(p *Provider) **int64 { return &p.MinAge }),
	nullable("operator", func(p *Provider) **string { return &p.Operator }),
	nullable("schedule", func(p *Provider) **string { return &p.Schedule }),
	nullable("state", func(p *Provider) **string { return &p.State }),
	nullable("title", func(p *Provider) **string { return &p.Title }),
	nullable("website_address", func(p *Provider) **string { return &p.WebsiteAddress }),
	nullable("zip", func(p *Provider) **string { return &p.Zip }),
	nullable("facility_type", func(p *Provider) **string { return &p.FacilityType }),
	required("source_file", func(p *Provider) *string { return &p.SourceFile }),
	required(ColETLTimestamp, func(p *Provider) *time.Time { return &p.ETLTimestamp }),
	required(ColRecordHash, func(p *Provider) *string { return &p.RecordHash }),
}

// ColumnNames returns the names of Columns in order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// Values returns p's column values in Columns order. Null fields are
// returned as explicit nils so the list always matches ColumnNames.
func (p *Provider) Values() []any {
	vals := make([]any, len(Columns))
	for i, c := range Columns {
		vals[i] = c.Value(p)
	}
	return vals
}

// ScanDest returns scan destinations for id followed by Columns.
func (p *Provider) ScanDest() []any {
	dest := make([]any, 0, len(Columns)+1)
	dest = append(dest, &p.ID)
	for _, c := range Columns {
		dest = append(dest, c.Dest(p))
	}
	return dest
}
