package support

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// List returns all tickets; requester (uuid.Nil to disable) narrows to
	// one user's tickets.
	List(ctx context.Context, requester uuid.UUID, limit, offset int) ([]*Ticket, int, error)
}
