package support

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/mail"
)

type Service struct {
	repo         Repository
	mailer       mail.Mailer
	templates    *mail.TemplateEngine
	supportEmail string
	logger       zerolog.Logger
}

func NewService(repo Repository, mailer mail.Mailer, templates *mail.TemplateEngine, supportEmail string, logger zerolog.Logger) *Service {
	return &Service{repo: repo, mailer: mailer, templates: templates, supportEmail: supportEmail, logger: logger}
}

// CreateInput carries the requester-provided fields; the identity snapshot
// comes from the authenticated session.
type CreateInput struct {
	Subject     string
	Description string
	Priority    string
}

// Requester is the identity snapshot stored on the ticket.
type Requester struct {
	ID    uuid.UUID
	Email string
	Name  string
	Role  string
}

// Create stores the ticket, notifies the support address and emails the
// requester a confirmation. The mail is fire-and-forget: a delivery failure
// is logged, never surfaced.
func (s *Service) Create(ctx context.Context, in CreateInput, req Requester) (*Ticket, error) {
	folio, err := NewFolio(time.Now().UTC())
	if err != nil {
		return nil, err
	}

	t := &Ticket{
		ID:             uuid.New(),
		Folio:          folio,
		Subject:        in.Subject,
		Description:    in.Description,
		Priority:       in.Priority,
		Status:         StatusOpen,
		RequesterID:    req.ID,
		RequesterEmail: req.Email,
		RequesterRole:  req.Role,
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	go s.sendMails(t, req.Name)
	return t, nil
}

func (s *Service) sendMails(t *Ticket, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.supportEmail == "" {
		s.logger.Warn().Str("folio", t.Folio).Msg("no support address configured, skipping notification")
	} else {
		subject, body, err := s.templates.Render("support-ticket-notify", map[string]string{
			"name":        name,
			"email":       t.RequesterEmail,
			"folio":       t.Folio,
			"subject":     t.Subject,
			"priority":    t.Priority,
			"description": t.Description,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("render ticket notification")
		} else if err := s.mailer.Send(ctx, s.supportEmail, subject, body); err != nil {
			s.logger.Error().Err(err).Str("folio", t.Folio).Msg("send ticket notification")
		}
	}

	subject, body, err := s.templates.Render("support-ticket-created", map[string]string{
		"name":     name,
		"folio":    t.Folio,
		"subject":  t.Subject,
		"priority": t.Priority,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("render ticket mail")
		return
	}
	if err := s.mailer.Send(ctx, t.RequesterEmail, subject, body); err != nil {
		s.logger.Error().Err(err).Str("folio", t.Folio).Msg("send ticket mail")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the requester's own tickets unless admin is set.
func (s *Service) List(ctx context.Context, requester uuid.UUID, admin bool, limit, offset int) ([]*Ticket, int, error) {
	if admin {
		return s.repo.List(ctx, uuid.Nil, limit, offset)
	}
	return s.repo.List(ctx, requester, limit, offset)
}

// UpdateStatus transitions a ticket through ABIERTO, EN_PROCESO, RESUELTO.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Ticket, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
