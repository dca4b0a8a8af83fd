package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates the entry, confirms the patient exists, and enforces the
// duplicate rule against active entries.
func (s *Service) Create(ctx context.Context, e *Entry, actor uuid.UUID) error {
	e.CreatedBy = actor
	if err := e.Validate(); err != nil {
		return err
	}

	ok, err := s.repo.PatientExists(ctx, e.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientUnknown
	}

	dup, err := s.repo.ExistsDuplicate(ctx, e.duplicateKey(), uuid.Nil)
	if err != nil {
		return err
	}
	if dup {
		return ErrDuplicate
	}
	return s.repo.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, from, to, limit, offset)
}

// UpdateInput carries the editable fields; the patient reference and creator
// are immutable.
type UpdateInput struct {
	VisitDate   time.Time
	Reason      string
	Diagnosis   string
	Treatment   string
	Notes       *string
	Vitals      *Vitals
	Attachments []Attachment
}

// Update applies the edit after checking the actor may touch the entry and
// the result does not collide with another active entry.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, actor uuid.UUID, actorRole string) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(e, actor, actorRole) {
		return nil, ErrForbidden
	}

	e.VisitDate = in.VisitDate
	e.Reason = in.Reason
	e.Diagnosis = in.Diagnosis
	e.Treatment = in.Treatment
	e.Notes = in.Notes
	e.Vitals = in.Vitals
	e.Attachments = in.Attachments
	if err := e.Validate(); err != nil {
		return nil, err
	}

	dup, err := s.repo.ExistsDuplicate(ctx, e.duplicateKey(), e.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicate
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID, actorRole string) error {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(e, actor, actorRole) {
		return ErrForbidden
	}
	return s.repo.SoftDelete(ctx, id, actor)
}

// Restore brings a trashed entry back after re-checking the duplicate rule:
// an equal entry may have been created while this one was deleted.
func (s *Service) Restore(ctx context.Context, id uuid.UUID, actor uuid.UUID, actorRole string) (*Entry, error) {
	e, err := s.repo.GetAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.DeletedAt == nil {
		return nil, ErrNotDeleted
	}
	if !canModify(e, actor, actorRole) {
		return nil, ErrForbidden
	}

	dup, err := s.repo.ExistsDuplicate(ctx, e.duplicateKey(), e.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicate
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, err
	}
	e.DeletedAt = nil
	e.DeletedBy = nil
	return e, nil
}

func canModify(e *Entry, actor uuid.UUID, role string) bool {
	return role == auth.RoleAdmin || e.CreatedBy == actor
}
