// Package layout holds the per-source column mapping tables: for every
// layout, each canonical attribute maps to an ordered list of candidate
// source columns.
package layout

import (
	_ "embed"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed layouts.yaml
var defaultTables []byte

// Attribute names understood by the field extractor.
const (
	AttrAcceptsFinancialAid       = "accepts_financial_aid"
	AttrCapacity                  = "capacity"
	AttrCertificateExpirationDate = "certificate_expiration_date"
	AttrCity                      = "city"
	AttrAddress1                  = "address1"
	AttrAddress2                  = "address2"
	AttrCompany                   = "company"
	AttrPhone                     = "phone"
	AttrPhone2                    = "phone2"
	AttrCounty                    = "county"
	AttrCurriculumType            = "curriculum_type"
	AttrEmail                     = "email"
	AttrLanguage                  = "language"
	AttrLicenseStatus             = "license_status"
	AttrLicenseIssued             = "license_issued"
	AttrLicenseNumber             = "license_number"
	AttrLicenseRenewed            = "license_renewed"
	AttrLicenseType               = "license_type"
	AttrContactName               = "contact_name"
	AttrContactRole               = "contact_role"
	AttrOperator                  = "operator"
	AttrSchedule                  = "schedule"
	AttrState                     = "state"
	AttrWebsiteAddress            = "website_address"
	AttrZip                       = "zip"
	AttrFacilityType              = "facility_type"
	AttrGeocodeAddress            = "geocode_address"
)

// Attributes lists every attribute a table may map.
var Attributes = []string{
	AttrAcceptsFinancialAid, AttrCapacity, AttrCertificateExpirationDate,
	AttrCity, AttrAddress1, AttrAddress2, AttrCompany, AttrPhone, AttrPhone2,
	AttrCounty, AttrCurriculumType, AttrEmail, AttrLanguage, AttrLicenseStatus,
	AttrLicenseIssued, AttrLicenseNumber, AttrLicenseRenewed, AttrLicenseType,
	AttrContactName, AttrContactRole, AttrOperator, AttrSchedule, AttrState,
	AttrWebsiteAddress, AttrZip, AttrFacilityType, AttrGeocodeAddress,
}

// Layout is the resolved column mapping for one source layout.
type Layout struct {
	Name string
	// FinancialAidValue is compared case-insensitively with the
	// accepts_financial_aid column's text.
	FinancialAidValue string
	// Ages are the age indicator columns handed to the age classifier.
	Ages   []string
	fields map[string][]string
}

// Candidates returns the ordered source columns for attr.
func (l *Layout) Candidates(attr string) []string {
	return l.fields[attr]
}

type mapping struct {
	Ages   []string            `yaml:"ages"`
	Fields map[string][]string `yaml:"fields"`
}

type layoutEntry struct {
	Name   string              `yaml:"name"`
	Ages   []string            `yaml:"ages"`
	Fields map[string][]string `yaml:"fields"`
}

type tablesFile struct {
	FinancialAidValue string        `yaml:"financial_aid_value"`
	Defaults          mapping       `yaml:"defaults"`
	Layouts           []layoutEntry `yaml:"layouts"`
}

// Tables is the full set of layouts in declaration order.
type Tables struct {
	layouts []*Layout
	byName  map[string]*Layout
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// Load reads tables from path, or the embedded tables when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layout: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML layout table document.
func Parse(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "layout: parse yaml")
	}
	if len(f.Layouts) == 0 {
		return nil, eris.New("layout: no layouts defined")
	}
	if err := validate(f.Defaults.Fields); err != nil {
		return nil, eris.Wrap(err, "layout: defaults")
	}

	t := &Tables{byName: make(map[string]*Layout, len(f.Layouts))}
	for _, entry := range f.Layouts {
		if entry.Name == "" {
			return nil, eris.New("layout: layout without a name")
		}
		if _, dup := t.byName[entry.Name]; dup {
			return nil, eris.Errorf("layout: duplicate layout %q", entry.Name)
		}
		if err := validate(entry.Fields); err != nil {
			return nil, eris.Wrapf(err, "layout: %s", entry.Name)
		}

		l := &Layout{
			Name:              entry.Name,
			FinancialAidValue: f.FinancialAidValue,
			Ages:              slices.Clone(f.Defaults.Ages),
			fields:            make(map[string][]string, len(Attributes)),
		}
		for attr, cols := range f.Defaults.Fields {
			l.fields[attr] = slices.Clone(cols)
		}
		for attr, cols := range entry.Fields {
			l.fields[attr] = slices.Clone(cols)
		}
		if entry.Ages != nil {
			l.Ages = slices.Clone(entry.Ages)
		}

		t.layouts = append(t.layouts, l)
		t.byName[l.Name] = l
	}
	return t, nil
}

func validate(fields map[string][]string) error {
	for attr := range fields {
		if !slices.Contains(Attributes, attr) {
			return eris.Errorf("unknown attribute %q", attr)
		}
	}
	return nil
}

// Get returns the named layout.
func (t *Tables) Get(name string) (*Layout, error) {
	l, ok := t.byName[name]
	if !ok {
		return nil, eris.Errorf("layout: unknown layout %q", name)
	}
	return l, nil
}

// Names returns layout names in declaration order.
func (t *Tables) Names() []string {
	names := make([]string, len(t.layouts))
	for i, l := range t.layouts {
		names[i] = l.Name
	}
	return names
}
