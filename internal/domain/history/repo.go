package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	// GetByID returns active entries only.
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetAny(ctx context.Context, id uuid.UUID) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	SoftDelete(ctx context.Context, id uuid.UUID, by uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	// ExistsDuplicate reports whether an active entry other than excludeID
	// matches the key.
	ExistsDuplicate(ctx context.Context, key DuplicateKey, excludeID uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time, limit, offset int) ([]*Entry, int, error)
	// PatientExists checks the referenced patient is active.
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)
}
