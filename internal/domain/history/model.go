package history

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry maps to the clinical_history table: one consultation record for a
// patient, with optional vital signs and inline attachments.
type Entry struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	PatientID   uuid.UUID    `db:"patient_id" json:"patient_id"`
	VisitDate   time.Time    `db:"visit_date" json:"visit_date"`
	Reason      string       `db:"reason" json:"reason"`
	Diagnosis   string       `db:"diagnosis" json:"diagnosis"`
	Treatment   string       `db:"treatment" json:"treatment"`
	Notes       *string      `db:"notes" json:"notes,omitempty"`
	Vitals      *Vitals      `db:"vitals" json:"vitals,omitempty"`
	Attachments []Attachment `db:"attachments" json:"attachments"`
	CreatedBy   uuid.UUID    `db:"created_by" json:"created_by"`
	DeletedAt   *time.Time   `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy   *uuid.UUID   `db:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// Vitals holds the measurements taken at the visit. All fields optional.
type Vitals struct {
	Pressure    *string  `json:"pressure,omitempty"`
	HeartRate   *int     `json:"heart_rate,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	SpO2        *int     `json:"spo2,omitempty"`
}

// Attachment is a file stored inline as a base64 data URL.
type Attachment struct {
	Name    string `json:"name"`
	DataURL string `json:"data_url"`
}

const (
	minReasonLen         = 3
	maxReasonLen         = 500
	maxAttachments       = 5
	maxAttachmentBytes   = 2 << 20
	maxAttachmentNameLen = 150
)

var (
	ErrNotFound       = errors.New("history entry not found")
	ErrPatientUnknown = errors.New("patient not found")
	ErrDuplicate      = errors.New("an equal active entry already exists")
	ErrValidation     = errors.New("validation failed")
	ErrForbidden      = errors.New("only the creator or an admin may modify this entry")
	ErrNotDeleted     = errors.New("history entry is not deleted")
)

var pressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

// Validate checks field constraints on the entry itself; patient existence
// and the duplicate rule are storage-level checks.
func (e *Entry) Validate() error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if e.VisitDate.IsZero() {
		return fmt.Errorf("%w: visit_date is required", ErrValidation)
	}
	if n := len(strings.TrimSpace(e.Reason)); n < minReasonLen || n > maxReasonLen {
		return fmt.Errorf("%w: reason must be %d to %d characters", ErrValidation, minReasonLen, maxReasonLen)
	}
	if strings.TrimSpace(e.Diagnosis) == "" {
		return fmt.Errorf("%w: diagnosis is required", ErrValidation)
	}
	if strings.TrimSpace(e.Treatment) == "" {
		return fmt.Errorf("%w: treatment is required", ErrValidation)
	}
	if e.Vitals != nil {
		if err := e.Vitals.validate(); err != nil {
			return err
		}
	}
	if len(e.Attachments) > maxAttachments {
		return fmt.Errorf("%w: at most %d attachments allowed", ErrValidation, maxAttachments)
	}
	for i := range e.Attachments {
		if err := e.Attachments[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vitals) validate() error {
	if v.Pressure != nil && !pressurePattern.MatchString(*v.Pressure) {
		return fmt.Errorf(`%w: pressure must look like "120/80"`, ErrValidation)
	}
	if v.HeartRate != nil && (*v.HeartRate < 20 || *v.HeartRate > 300) {
		return fmt.Errorf("%w: heart_rate out of range", ErrValidation)
	}
	if v.Temperature != nil && (*v.Temperature < 25 || *v.Temperature > 45) {
		return fmt.Errorf("%w: temperature out of range", ErrValidation)
	}
	if v.SpO2 != nil && (*v.SpO2 < 0 || *v.SpO2 > 100) {
		return fmt.Errorf("%w: spo2 must be 0-100", ErrValidation)
	}
	return nil
}

func (a *Attachment) validate() error {
	if a.Name == "" || len(a.Name) > maxAttachmentNameLen {
		return fmt.Errorf("%w: attachment name must be 1 to %d characters", ErrValidation, maxAttachmentNameLen)
	}
	mime, payload, err := parseDataURL(a.DataURL)
	if err != nil {
		return fmt.Errorf("%w: attachment %q: %v", ErrValidation, a.Name, err)
	}
	if !allowedAttachmentTypes[mime] {
		return fmt.Errorf("%w: attachment %q: type %s not allowed", ErrValidation, a.Name, mime)
	}
	// decoded size from the base64 length, without decoding the payload
	size := len(payload) / 4 * 3
	if strings.HasSuffix(payload, "==") {
		size -= 2
	} else if strings.HasSuffix(payload, "=") {
		size--
	}
	if size > maxAttachmentBytes {
		return fmt.Errorf("%w: attachment %q exceeds %d bytes", ErrValidation, a.Name, maxAttachmentBytes)
	}
	return nil
}

// parseDataURL splits "data:<mime>;base64,<payload>" and checks the payload
// is well-formed base64.
func parseDataURL(s string) (mime, payload string, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", fmt.Errorf("not a data URL")
	}
	rest := s[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", "", fmt.Errorf("missing base64 marker")
	}
	mime = rest[:sep]
	payload = rest[sep+len(";base64,"):]
	if payload == "" {
		return "", "", fmt.Errorf("empty payload")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", fmt.Errorf("invalid base64 payload")
	}
	return mime, payload, nil
}

// DuplicateKey identifies the fields of the duplicate rule: no two active
// entries may share patient, visit date (day precision), diagnosis, and
// creator.
type DuplicateKey struct {
	PatientID uuid.UUID
	VisitDate time.Time
	Diagnosis string
	CreatedBy uuid.UUID
}

func (e *Entry) duplicateKey() DuplicateKey {
	return DuplicateKey{
		PatientID: e.PatientID,
		VisitDate: e.VisitDate.Truncate(24 * time.Hour),
		Diagnosis: strings.TrimSpace(e.Diagnosis),
		CreatedBy: e.CreatedBy,
	}
}
