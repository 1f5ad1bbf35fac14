// Package model defines the canonical child-care provider record and the
// raw row shapes it is built from.
package model

import (
	"time"
)

// Provider is the canonical, layout-independent child-care provider record
// persisted to the child_care_providers table.
type Provider struct {
	ID int64 `json:"id" db:"id"`

	AcceptsFinancialAid bool    `json:"accepts_financial_aid" db:"accepts_financial_aid"`
	AgesServed          *string `json:"ages_served,omitempty" db:"ages_served"`
	Capacity            *int64  `json:"capacity,omitempty" db:"capacity"`

	CertificateExpirationDate *time.Time `json:"certificate_expiration_date,omitempty" db:"certificate_expiration_date"`

	// Location
	City     *string `json:"city,omitempty" db:"city"`
	Address1 *string `json:"address1,omitempty" db:"address1"`
	Address2 *string `json:"address2,omitempty" db:"address2"`
	County   *string `json:"county,omitempty" db:"county"`
	State    *string `json:"state,omitempty" db:"state"`
	Zip      *string `json:"zip,omitempty" db:"zip"`

	// Contact
	Company        *string `json:"company,omitempty" db:"company"`
	Phone          *string `json:"phone,omitempty" db:"phone"`
	Phone2         *string `json:"phone2,omitempty" db:"phone2"`
	Email          *string `json:"email,omitempty" db:"email"`
	ContactName    *string `json:"contact_name,omitempty" db:"contact_name"`
	Title          *string `json:"title,omitempty" db:"title"`
	WebsiteAddress *string `json:"website_address,omitempty" db:"website_address"`

	// Program
	CurriculumType *string `json:"curriculum_type,omitempty" db:"curriculum_type"`
	Language       *string `json:"language,omitempty" db:"language"`
	Schedule       *string `json:"schedule,omitempty" db:"schedule"`
	MinAge         *int64  `json:"min_age,omitempty" db:"min_age"` // months
	MaxAge         *int64  `json:"max_age,omitempty" db:"max_age"` // months
	FacilityType   *string `json:"facility_type,omitempty" db:"facility_type"`
	Operator       *string `json:"operator,omitempty" db:"operator"`

	// Licensing
	LicenseStatus  *string    `json:"license_status,omitempty" db:"license_status"`
	LicenseIssued  *time.Time `json:"license_issued,omitempty" db:"license_issued"`
	LicenseNumber  *string    `json:"license_number,omitempty" db:"license_number"`
	LicenseRenewed *time.Time `json:"license_renewed,omitempty" db:"license_renewed"`
	LicenseType    *string    `json:"license_type,omitempty" db:"license_type"`

	// ETL metadata
	SourceFile   string    `json:"source_file" db:"source_file"`
	ETLTimestamp time.Time `json:"etl_timestamp" db:"etl_timestamp"`
	RecordHash   string    `json:"record_hash" db:"record_hash"`
}

// IdentityKey is the (address1, city, state) triple used to find a
// previously stored provider.
type IdentityKey struct {
	Address1 *string
	City     *string
	State    *string
}

// Identity returns the provider's identity key.
func (p *Provider) Identity() IdentityKey {
	return IdentityKey{Address1: p.Address1, City: p.City, State: p.State}
}

// Complete reports whether every component of the key is non-null. Keys
// with a null component never match a stored row.
func (k IdentityKey) Complete() bool {
	return k.Address1 != nil && k.City != nil && k.State != nil
}

// String renders the key for logging.
func (k IdentityKey) String() string {
	return deref(k.Address1) + "|" + deref(k.City) + "|" + deref(k.State)
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
