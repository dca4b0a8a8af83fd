package support

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ticket maps to the support_ticket table. The requester fields snapshot the
// user at creation time, so tickets stay readable after account changes.
type Ticket struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Folio          string    `db:"folio" json:"folio"`
	Subject        string    `db:"subject" json:"subject"`
	Description    string    `db:"description" json:"description"`
	Priority       string    `db:"priority" json:"priority"`
	Status         string    `db:"status" json:"status"`
	RequesterID    uuid.UUID `db:"requester_id" json:"requester_id"`
	RequesterEmail string    `db:"requester_email" json:"requester_email"`
	RequesterRole  string    `db:"requester_role" json:"requester_role"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PriorityLow    = "BAJA"
	PriorityMedium = "MEDIA"
	PriorityHigh   = "ALTA"

	StatusOpen       = "ABIERTO"
	StatusInProgress = "EN_PROCESO"
	StatusResolved   = "RESUELTO"
)

var validPriorities = map[string]bool{PriorityLow: true, PriorityMedium: true, PriorityHigh: true}
var validStatuses = map[string]bool{StatusOpen: true, StatusInProgress: true, StatusResolved: true}

const (
	maxSubjectLen     = 140
	maxDescriptionLen = 4000
)

var (
	ErrNotFound   = errors.New("ticket not found")
	ErrValidation = errors.New("validation failed")
)

// NewFolio builds the human-facing ticket reference: the creation instant in
// base36 plus a short random suffix, e.g. SOP-SWG1X2M8-3F2A.
func NewFolio(now time.Time) (string, error) {
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("folio suffix: %w", err)
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return fmt.Sprintf("SOP-%s-%s", stamp, strings.ToUpper(hex.EncodeToString(suffix))), nil
}

func (t *Ticket) validate() error {
	if n := len(strings.TrimSpace(t.Subject)); n == 0 || n > maxSubjectLen {
		return fmt.Errorf("%w: subject must be 1 to %d characters", ErrValidation, maxSubjectLen)
	}
	if n := len(strings.TrimSpace(t.Description)); n == 0 || n > maxDescriptionLen {
		return fmt.Errorf("%w: description must be 1 to %d characters", ErrValidation, maxDescriptionLen)
	}
	if !validPriorities[t.Priority] {
		return fmt.Errorf("%w: priority must be BAJA, MEDIA or ALTA", ErrValidation)
	}
	return nil
}
