package user

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/mail"
)

type Service struct {
	repo      Repository
	issuer    *auth.TokenIssuer
	mailer    mail.Mailer
	templates *mail.TemplateEngine
	clientURL string
	resetTTL  time.Duration
	logger    zerolog.Logger
}

func NewService(repo Repository, issuer *auth.TokenIssuer, mailer mail.Mailer, templates *mail.TemplateEngine, clientURL string, resetTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		issuer:    issuer,
		mailer:    mailer,
		templates: templates,
		clientURL: clientURL,
		resetTTL:  resetTTL,
		logger:    logger,
	}
}

// PasswordCutoff plugs into the auth middleware so tokens issued before the
// user's last password change are rejected.
func (s *Service) PasswordCutoff(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.PasswordChangedAt, nil
}

// Login verifies credentials and issues a JWT. It deliberately returns the
// same error for unknown email and wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, "", ErrBadCredentials
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrBadCredentials
	}
	token, err := s.issuer.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

// RegisterInput carries the fields of an admin-created account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	email := NormalizeEmail(in.Email)
	if !ValidEmail(email) {
		return nil, fmt.Errorf("%w: email format is invalid", ErrValidation)
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	role := in.Role
	if role == "" {
		role = auth.RoleAsistente
	}
	if !auth.ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, in.Role)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{ID: uuid.New(), Name: in.Name, Email: email, PasswordHash: hash, Role: role}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListDoctors(ctx context.Context) ([]*User, error) {
	return s.repo.ListByRole(ctx, auth.RoleMedico)
}

// UpdateInput carries the admin-editable fields. Nil pointers leave the
// field unchanged.
type UpdateInput struct {
	Name  *string
	Email *string
	Role  *string
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if !ValidEmail(email) {
			return nil, fmt.Errorf("%w: email format is invalid", ErrValidation)
		}
		u.Email = email
	}
	if in.Role != nil {
		if !auth.ValidRole(*in.Role) {
			return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, *in.Role)
		}
		u.Role = *in.Role
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes an account. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, id, actor uuid.UUID) error {
	if id == actor {
		return ErrSelfDelete
	}
	return s.repo.Delete(ctx, id)
}

// ForgotPassword issues a reset token and emails the reset link. The caller
// gets no signal about whether the email exists; lookup failures are only
// logged.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		s.logger.Debug().Str("email", NormalizeEmail(email)).Msg("password reset requested for unknown email")
		return
	}

	raw, hashed, err := auth.NewResetToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("generate reset token")
		return
	}
	expires := time.Now().UTC().Add(s.resetTTL)
	if err := s.repo.SetResetToken(ctx, u.ID, hashed, expires); err != nil {
		s.logger.Error().Err(err).Msg("store reset token")
		return
	}

	subject, body, err := s.templates.Render("password-reset", map[string]string{
		"name":            u.Name,
		"reset_link":      s.clientURL + "/reset-password?token=" + raw,
		"expires_minutes": strconv.Itoa(int(s.resetTTL.Minutes())),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("render reset mail")
		return
	}
	if err := s.mailer.Send(ctx, u.Email, subject, body); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.String()).Msg("send reset mail")
	}
}

// ResetPassword consumes a raw reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	u, err := s.repo.GetByResetTokenHash(ctx, auth.HashResetToken(rawToken))
	if err != nil {
		return ErrResetTokenInvalid
	}
	if u.ResetTokenExpires == nil || time.Now().UTC().After(*u.ResetTokenExpires) {
		return ErrResetTokenInvalid
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, u.ID, hash, time.Now().UTC())
}

// ChangePassword verifies the current password before replacing it.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return ErrBadCredentials
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, hash, time.Now().UTC())
}
