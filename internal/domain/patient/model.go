package patient

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Identity documents follow Guatemalan
// formats: DPI is 13 digits, NIT is up to 12 digits with an optional check
// digit, phones are 8 digits with an optional +502 prefix.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	FirstName        string     `db:"first_name" json:"first_name"`
	FatherLastName   string     `db:"father_last_name" json:"father_last_name"`
	MotherLastName   string     `db:"mother_last_name" json:"mother_last_name"`
	BirthDate        time.Time  `db:"birth_date" json:"birth_date"`
	Sex              string     `db:"sex" json:"sex"`
	DPI              *string    `db:"dpi" json:"dpi,omitempty"`
	NIT              *string    `db:"nit" json:"nit,omitempty"`
	Address          string     `db:"address" json:"address"`
	Phone            string     `db:"phone" json:"phone"`
	Email            *string    `db:"email" json:"email,omitempty"`
	Allergies        []string   `db:"allergies" json:"allergies"`
	Vaccines         []string   `db:"vaccines" json:"vaccines"`
	Conditions       []string   `db:"conditions" json:"conditions"`
	Hospitalizations []string   `db:"hospitalizations" json:"hospitalizations"`
	Background       *string    `db:"background" json:"background,omitempty"`
	Active           bool       `db:"active" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

const (
	SexMale   = "MASCULINO"
	SexFemale = "FEMENINO"
)

var (
	ErrNotFound   = errors.New("patient not found")
	ErrDuplicate  = errors.New("patient with this dpi or nit already exists")
	ErrValidation = errors.New("validation failed")
	dpiPattern    = regexp.MustCompile(`^\d{13}$`)
	nitPattern    = regexp.MustCompile(`^\d{1,12}(-\d)?$`)
	phonePattern  = regexp.MustCompile(`^(\+502)?\d{8}$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// NormalizeSex maps the accepted shorthand forms onto the stored constants.
func NormalizeSex(s string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MASCULINO":
		return SexMale, true
	case "F", "FEMENINO":
		return SexFemale, true
	}
	return "", false
}

// Validate checks required fields and document formats. It normalizes the
// sex field in place.
func (p *Patient) Validate(now time.Time) error {
	var missing []string
	if strings.TrimSpace(p.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(p.FatherLastName) == "" {
		missing = append(missing, "father_last_name")
	}
	if strings.TrimSpace(p.MotherLastName) == "" {
		missing = append(missing, "mother_last_name")
	}
	if p.BirthDate.IsZero() {
		missing = append(missing, "birth_date")
	}
	if strings.TrimSpace(p.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(p.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	sex, ok := NormalizeSex(p.Sex)
	if !ok {
		return fmt.Errorf("%w: sex must be MASCULINO or FEMENINO", ErrValidation)
	}
	p.Sex = sex

	if p.BirthDate.After(now) {
		return fmt.Errorf("%w: birth_date cannot be in the future", ErrValidation)
	}
	if !phonePattern.MatchString(p.Phone) {
		return fmt.Errorf("%w: phone must be 8 digits with optional +502 prefix", ErrValidation)
	}
	if p.DPI == nil && p.NIT == nil {
		return fmt.Errorf("%w: at least one of dpi or nit is required", ErrValidation)
	}
	if p.DPI != nil && !dpiPattern.MatchString(*p.DPI) {
		return fmt.Errorf("%w: dpi must be exactly 13 digits", ErrValidation)
	}
	if p.NIT != nil && !nitPattern.MatchString(*p.NIT) {
		return fmt.Errorf("%w: nit format is invalid", ErrValidation)
	}
	if p.Email != nil && !emailPattern.MatchString(*p.Email) {
		return fmt.Errorf("%w: email format is invalid", ErrValidation)
	}
	return nil
}

// FullName joins the name components for display and search.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.FatherLastName + " " + p.MotherLastName)
}
