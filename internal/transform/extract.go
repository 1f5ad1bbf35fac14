// Package transform turns a layout's raw rows into canonical providers.
package transform

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/childcare-etl/internal/layout"
	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/internal/normalize"
)

// Extracted holds everything read from one raw row. Provider carries the
// layout-sourced attributes; city, state and zip stay raw until the
// builder has seen the geocoder's answer.
type Extracted struct {
	Provider model.Provider

	RawCity  any
	RawState any
	RawZip   any

	// Address is the geocoder query, or "" when the row has no address.
	Address string

	Ages normalize.AgeIndicators
}

// Extractor reads canonical attributes from raw rows using a layout's
// candidate column lists.
type Extractor struct {
	presence normalize.Presence
	fold     cases.Caser
}

// NewExtractor creates an Extractor that coalesces under the given policy.
func NewExtractor(presence normalize.Presence) *Extractor {
	return &Extractor{presence: presence, fold: cases.Fold()}
}

// Extract reads one row laid out as l.
func (e *Extractor) Extract(l *layout.Layout, row model.RawRow) *Extracted {
	get := func(attr string) any {
		return e.presence.Coalesce(row, l.Candidates(attr))
	}
	str := func(attr string) *string {
		return normalize.String(get(attr))
	}

	contact := get(layout.AttrContactName)
	title := normalize.Title(contact)
	if title == nil {
		title = str(layout.AttrContactRole)
	}

	p := model.Provider{
		AcceptsFinancialAid: e.acceptsFinancialAid(l, row),
		Capacity:            normalize.Int(get(layout.AttrCapacity)),

		CertificateExpirationDate: normalize.Date(get(layout.AttrCertificateExpirationDate)),

		Address1: str(layout.AttrAddress1),
		Address2: str(layout.AttrAddress2),
		County:   str(layout.AttrCounty),

		Company:        str(layout.AttrCompany),
		Phone:          normalize.NonEmpty(normalize.Phone(get(layout.AttrPhone))),
		Phone2:         normalize.NonEmpty(normalize.Phone(get(layout.AttrPhone2))),
		Email:          str(layout.AttrEmail),
		ContactName:    normalize.String(contact),
		Title:          title,
		WebsiteAddress: str(layout.AttrWebsiteAddress),

		CurriculumType: str(layout.AttrCurriculumType),
		Language:       str(layout.AttrLanguage),
		Schedule:       str(layout.AttrSchedule),
		FacilityType:   str(layout.AttrFacilityType),
		Operator:       str(layout.AttrOperator),

		LicenseStatus:  str(layout.AttrLicenseStatus),
		LicenseIssued:  normalize.Date(get(layout.AttrLicenseIssued)),
		LicenseNumber:  str(layout.AttrLicenseNumber),
		LicenseRenewed: normalize.Date(get(layout.AttrLicenseRenewed)),
		LicenseType:    str(layout.AttrLicenseType),
	}

	ex := &Extracted{
		Provider: p,
		RawCity:  get(layout.AttrCity),
		RawState: get(layout.AttrState),
		RawZip:   get(layout.AttrZip),
		Ages:     make(normalize.AgeIndicators, len(l.Ages)),
	}
	for _, col := range l.Ages {
		ex.Ages[col] = row[col]
	}
	ex.Address = e.geocodeAddress(
		firstText(row, l.Candidates(layout.AttrGeocodeAddress)),
		firstText(row, l.Candidates(layout.AttrAddress1)),
		ex,
	)
	return ex
}

// acceptsFinancialAid compares the first non-null candidate's text with the
// layout's literal, ignoring case. Presence policy does not apply.
func (e *Extractor) acceptsFinancialAid(l *layout.Layout, row model.RawRow) bool {
	v := normalize.PresenceNonNull.Coalesce(row, l.Candidates(layout.AttrAcceptsFinancialAid))
	if v == nil {
		return false
	}
	return e.fold.String(normalize.Text(v)) == e.fold.String(l.FinancialAidValue)
}

// firstText returns the trimmed text of the first candidate with non-blank
// content. Blank cells never hide a later address column, whatever the
// presence policy.
func firstText(row model.RawRow, candidates []string) string {
	for _, col := range candidates {
		if v := row[col]; v != nil {
			if s := strings.TrimSpace(normalize.Text(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// geocodeAddress returns the structured address when the row has one, else
// a "street, city state zip" composite of whichever parts are present.
func (e *Extractor) geocodeAddress(full, street string, ex *Extracted) string {
	if full != "" {
		return full
	}

	var locality []string
	for _, v := range []any{ex.RawCity, ex.RawState, ex.RawZip} {
		if s := strings.TrimSpace(normalize.Text(v)); s != "" {
			locality = append(locality, s)
		}
	}
	parts := make([]string, 0, 2)
	if street != "" {
		parts = append(parts, street)
	}
	if len(locality) > 0 {
		parts = append(parts, strings.Join(locality, " "))
	}
	return strings.Join(parts, ", ")
}
