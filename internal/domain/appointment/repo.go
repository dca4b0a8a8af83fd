package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows List results. Nil / zero fields are ignored.
type Filter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    string
	From      *time.Time
	To        *time.Time
	// Sort names a key from the allowlist; empty means start_time ascending.
	Sort string
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	// GetByID returns only active rows; soft-deleted ones report ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetAny returns the row regardless of its is_deleted flag.
	GetAny(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	SoftDelete(ctx context.Context, id uuid.UUID, by uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID, by uuid.UUID) error
	// HasConflict runs the disjunctive overlap query against active rows:
	// any appointment sharing the doctor or the patient whose interval
	// intersects [start, end). excludeID (uuid.Nil to disable) removes the
	// row being rescheduled or restored from consideration.
	HasConflict(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error)
	// List returns active rows. limit <= 0 disables pagination.
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	ListTrash(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
}
