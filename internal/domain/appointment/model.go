package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Appointment maps to the appointment table. Intervals are half-open
// [start_time, end_time): an appointment ending exactly when another starts
// does not overlap it.
type Appointment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	StartTime time.Time  `db:"start_time" json:"start_time"`
	EndTime   time.Time  `db:"end_time" json:"end_time"`
	Status    string     `db:"status" json:"status"`
	Reason    *string    `db:"reason" json:"reason,omitempty"`
	Notes     *string    `db:"notes" json:"notes,omitempty"`
	IsDeleted bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedBy uuid.UUID  `db:"created_by" json:"created_by"`
	UpdatedBy *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusAttended  = "ATTENDED"
	StatusCancelled = "CANCELLED"
	StatusNoShow    = "NO_SHOW"
)

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusAttended:  true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// ValidStatus reports whether s is a recognized appointment status.
func ValidStatus(s string) bool { return validStatuses[s] }

const (
	maxReasonLen = 300
	maxNotesLen  = 1000
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrInvalidInterval = errors.New("start_time must be before end_time")
	ErrNotDeleted      = errors.New("appointment is not deleted")
	ErrValidation      = errors.New("validation failed")
)

// Candidate is the slot a caller wants admitted: either a new appointment,
// a reschedule of an existing one, or a restore of a soft-deleted one.
type Candidate struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Start     time.Time
	End       time.Time
}

// Overlaps reports whether the candidate's interval intersects [start, end)
// under half-open semantics.
func (c Candidate) Overlaps(start, end time.Time) bool {
	return c.Start.Before(end) && start.Before(c.End)
}

// Decision is the outcome of an admission attempt.
type Decision int

const (
	DecisionAdmitted Decision = iota
	DecisionConflict
)

func (d Decision) String() string {
	if d == DecisionConflict {
		return "conflict"
	}
	return "admitted"
}
