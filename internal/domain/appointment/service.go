package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo  Repository
	guard *Guard
}

func NewService(repo Repository, runTx TxRunner) *Service {
	return &Service{repo: repo, guard: NewGuard(repo, runTx)}
}

// CreateInput carries the fields a caller may set when booking.
type CreateInput struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Status    string
	Reason    *string
	Notes     *string
}

func (in *CreateInput) validate() error {
	if in.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if in.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return fmt.Errorf("%w: start_time and end_time are required", ErrValidation)
	}
	if in.Status != "" && !ValidStatus(in.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, in.Status)
	}
	if in.Reason != nil && len(*in.Reason) > maxReasonLen {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrValidation, maxReasonLen)
	}
	if in.Notes != nil && len(*in.Notes) > maxNotesLen {
		return fmt.Errorf("%w: notes exceed %d characters", ErrValidation, maxNotesLen)
	}
	return nil
}

// Create books a new appointment through the admission guard.
func (s *Service) Create(ctx context.Context, in CreateInput, actor uuid.UUID) (*Appointment, Decision, error) {
	if err := in.validate(); err != nil {
		return nil, DecisionConflict, err
	}

	a := &Appointment{
		ID:        uuid.New(),
		DoctorID:  in.DoctorID,
		PatientID: in.PatientID,
		StartTime: toUTC(in.StartTime),
		EndTime:   toUTC(in.EndTime),
		Status:    in.Status,
		Reason:    in.Reason,
		Notes:     in.Notes,
		CreatedBy: actor,
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	decision, err := s.guard.Admit(ctx, candidateFor(a), uuid.Nil, func(ctx context.Context) error {
		return s.repo.Create(ctx, a)
	})
	if err != nil || decision == DecisionConflict {
		return nil, decision, err
	}
	return a, DecisionAdmitted, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) ListTrash(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListTrash(ctx, limit, offset)
}

// RescheduleInput moves an appointment; DoctorID / PatientID are optional
// reassignments.
type RescheduleInput struct {
	StartTime time.Time
	EndTime   time.Time
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}

// Reschedule moves an existing appointment to a new interval (and optionally
// a new doctor or patient). The appointment's own row is excluded from the
// conflict check, so shrinking or shifting within its own slot always passes.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput, actor uuid.UUID) (*Appointment, Decision, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, DecisionConflict, err
	}

	if in.DoctorID != nil {
		a.DoctorID = *in.DoctorID
	}
	if in.PatientID != nil {
		a.PatientID = *in.PatientID
	}
	a.StartTime = toUTC(in.StartTime)
	a.EndTime = toUTC(in.EndTime)
	a.UpdatedBy = &actor

	decision, err := s.guard.Admit(ctx, candidateFor(a), a.ID, func(ctx context.Context) error {
		return s.repo.Update(ctx, a)
	})
	if err != nil || decision == DecisionConflict {
		return nil, decision, err
	}
	return a, DecisionAdmitted, nil
}

// UpdateStatus transitions an appointment's status. Status never affects the
// overlap invariant, so no admission is involved.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, actor uuid.UUID) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = status
	a.UpdatedBy = &actor
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SoftDelete hides an appointment from conflict checks and listings while
// keeping the row for audit.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id, actor)
}

// Restore re-admits a soft-deleted appointment against the current active
// set. It is never a raw flag flip: the interval may have been taken while
// the row sat in the trash.
func (s *Service) Restore(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*Appointment, Decision, error) {
	a, err := s.repo.GetAny(ctx, id)
	if err != nil {
		return nil, DecisionConflict, err
	}
	if !a.IsDeleted {
		return nil, DecisionConflict, ErrNotDeleted
	}

	decision, err := s.guard.Admit(ctx, candidateFor(a), a.ID, func(ctx context.Context) error {
		return s.repo.Restore(ctx, a.ID, actor)
	})
	if err != nil || decision == DecisionConflict {
		return nil, decision, err
	}
	a.IsDeleted = false
	a.DeletedAt = nil
	a.UpdatedBy = &actor
	return a, DecisionAdmitted, nil
}
