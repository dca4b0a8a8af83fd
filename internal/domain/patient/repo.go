package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// ExistsDocument reports whether another active patient already carries
	// the given dpi or nit. Nil document pointers are skipped; excludeID
	// removes the patient being updated from the check.
	ExistsDocument(ctx context.Context, dpi, nit *string, excludeID uuid.UUID) (bool, error)
	// Search matches q against names, dpi, nit and phone. sort must come
	// from the handler's allowlist.
	Search(ctx context.Context, q, sort string, limit, offset int) ([]*Patient, int, error)
}
