package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments", auth.RequireRole(auth.RoleMedico, auth.RoleAsistente))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/trash", h.ListTrash)
	g.GET("/:id", h.Get)
	g.PATCH("/:id/reschedule", h.Reschedule)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.PATCH("/:id/restore", h.Restore)
	g.DELETE("/:id", h.Delete)
}

type createRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	Reason    *string   `json:"reason"`
	Notes     *string   `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, decision, err := h.svc.Create(c.Request().Context(), CreateInput{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    req.Status,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}, actorID(c))
	if err != nil {
		return admissionError(err)
	}
	if decision == DecisionConflict {
		return overlapResponse(c)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	return c.JSON(http.StatusOK, a)
}

var sortAllowlist = map[string]bool{"start_time": true, "created_at": true}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = &id
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		if !ValidStatus(v) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = v
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to timestamp")
		}
		f.To = &t
	}
	if v := c.QueryParam("sort"); v != "" {
		if !sortAllowlist[v] {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sort field")
		}
		f.Sort = v
	}

	// limit=0 disables pagination, matching the calendar views that need
	// the full range at once.
	pg := pagination.FromContext(c)
	if c.QueryParam("limit") == "0" {
		pg.Limit = 0
	}

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	if pg.Limit <= 0 {
		return c.JSON(http.StatusOK, items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListTrash(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTrash(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type rescheduleRequest struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	DoctorID  *uuid.UUID `json:"doctor_id"`
	PatientID *uuid.UUID `json:"patient_id"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, decision, err := h.svc.Reschedule(c.Request().Context(), id, RescheduleInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
	}, actorID(c))
	if err != nil {
		return admissionError(err)
	}
	if decision == DecisionConflict {
		return overlapResponse(c)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, actorID(c))
	if err != nil {
		return admissionError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Restore(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, decision, err := h.svc.Restore(c.Request().Context(), id, actorID(c))
	if err != nil {
		return admissionError(err)
	}
	if decision == DecisionConflict {
		return overlapResponse(c)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.SoftDelete(c.Request().Context(), id, actorID(c)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func overlapResponse(c echo.Context) error {
	return c.JSON(http.StatusConflict, map[string]string{"error": "overlap"})
}

// admissionError maps service errors that are not conflicts. Storage
// failures stay opaque.
func admissionError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInterval):
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidInterval.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrNotDeleted):
		return echo.NewHTTPError(http.StatusBadRequest, ErrNotDeleted.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "appointment write failed")
}

func actorID(c echo.Context) uuid.UUID {
	return auth.UserIDFromContext(c.Request().Context())
}
