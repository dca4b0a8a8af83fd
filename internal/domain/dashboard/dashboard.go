// Package dashboard serves the aggregate counters behind the overview
// screen. MEDICO users see their own schedule only; user counts are
// admin-only.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/auth"
)

// Overview is the aggregate snapshot. UserCounts is nil for non-admins.
type Overview struct {
	ActivePatients      int            `json:"active_patients"`
	AppointmentsToday   int            `json:"appointments_today"`
	AppointmentsWeek    int            `json:"appointments_week"`
	AppointmentsPending int            `json:"appointments_pending"`
	AppointmentsByState map[string]int `json:"appointments_by_status"`
	Upcoming            []Upcoming     `json:"upcoming"`
	OpenTickets         int            `json:"open_tickets"`
	UserCounts          map[string]int `json:"user_counts,omitempty"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// Upcoming is one row of the short agenda shown on the overview screen.
type Upcoming struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

const upcomingLimit = 5

type Repository interface {
	// Overview aggregates the counters. doctorID (uuid.Nil to disable)
	// scopes appointment counters to one doctor.
	Overview(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd, weekStart, weekEnd time.Time) (*Overview, error)
	Upcoming(ctx context.Context, doctorID uuid.UUID, from time.Time, limit int) ([]Upcoming, error)
	UserCounts(ctx context.Context) (map[string]int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Overview builds the snapshot for the given viewer. Doctors get their own
// appointment counters; only admins get the user breakdown.
func (s *Service) Overview(ctx context.Context, viewerID uuid.UUID, viewerRole string) (*Overview, error) {
	doctorFilter := uuid.Nil
	if viewerRole == auth.RoleMedico {
		doctorFilter = viewerID
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	// Week runs Monday to Monday.
	offset := (int(dayStart.Weekday()) + 6) % 7
	weekStart := dayStart.AddDate(0, 0, -offset)
	weekEnd := weekStart.AddDate(0, 0, 7)

	ov, err := s.repo.Overview(ctx, doctorFilter, dayStart, dayEnd, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	ov.GeneratedAt = now

	upcoming, err := s.repo.Upcoming(ctx, doctorFilter, now, upcomingLimit)
	if err != nil {
		return nil, err
	}
	ov.Upcoming = upcoming

	if viewerRole == auth.RoleAdmin {
		counts, err := s.repo.UserCounts(ctx)
		if err != nil {
			return nil, err
		}
		ov.UserCounts = counts
	}
	return ov, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard/overview", h.Overview)
}

func (h *Handler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	ov, err := h.svc.Overview(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "overview failed")
	}
	return c.JSON(http.StatusOK, ov)
}
