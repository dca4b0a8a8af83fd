package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates the record and rejects duplicate identity documents among
// active patients.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := p.Validate(time.Now().UTC()); err != nil {
		return err
	}
	dup, err := s.repo.ExistsDocument(ctx, p.DPI, p.NIT, uuid.Nil)
	if err != nil {
		return err
	}
	if dup {
		return ErrDuplicate
	}
	p.Active = true
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := p.Validate(time.Now().UTC()); err != nil {
		return err
	}
	dup, err := s.repo.ExistsDocument(ctx, p.DPI, p.NIT, p.ID)
	if err != nil {
		return err
	}
	if dup {
		return ErrDuplicate
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) Search(ctx context.Context, q, sort string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, q, sort, limit, offset)
}
