package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
)

// DefaultPhoneRegion is used for numbers given without a country code.
const DefaultPhoneRegion = "US"

// ProfileFields are the plain, independently updatable profile attributes.
type ProfileFields struct {
	Name        string
	BirthDate   *time.Time
	Phone       string
	Institution string
}

// Normalize trims text fields and rewrites Phone in E.164 form. An
// unparsable or invalid phone number is a validation error.
func (p *ProfileFields) Normalize(region string) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Institution = strings.TrimSpace(p.Institution)
	p.Phone = strings.TrimSpace(p.Phone)

	if p.BirthDate != nil {
		d := p.BirthDate.UTC().Truncate(24 * time.Hour)
		p.BirthDate = &d
	}

	if p.Phone == "" {
		return nil
	}

	num, err := phonenumbers.Parse(p.Phone, region)
	if err != nil {
		return fmt.Errorf("%w: phone: %v", common.ErrorValidation, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return fmt.Errorf("%w: phone: invalid number", common.ErrorValidation)
	}
	p.Phone = phonenumbers.Format(num, phonenumbers.E164)

	return nil
}

// ProfilePatch carries a partial profile update; nil fields are left alone.
// ClearBirthDate removes a stored birth date and wins over BirthDate.
type ProfilePatch struct {
	Name           *string
	BirthDate      *time.Time
	ClearBirthDate bool
	Phone          *string
	Institution    *string
}

// Apply returns p with the patch applied.
func (pp ProfilePatch) Apply(p ProfileFields) ProfileFields {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.BirthDate != nil {
		p.BirthDate = pp.BirthDate
	}
	if pp.ClearBirthDate {
		p.BirthDate = nil
	}
	if pp.Phone != nil {
		p.Phone = *pp.Phone
	}
	if pp.Institution != nil {
		p.Institution = *pp.Institution
	}
	return p
}
