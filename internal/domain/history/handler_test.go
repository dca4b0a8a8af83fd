package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo, uuid.UUID) {
	svc, _, patientID := newTestService(t)
	return NewHandler(svc), echo.New(), patientID
}

func authedRequest(e *echo.Echo, method, target, body string, actor uuid.UUID, role string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	ctx := context.WithValue(req.Context(), auth.UserIDKey, actor)
	ctx = context.WithValue(ctx, auth.UserRoleKey, role)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func entryBody(patientID uuid.UUID) string {
	b, _ := json.Marshal(map[string]interface{}{
		"patient_id": patientID,
		"visit_date": "2026-08-15T10:00:00Z",
		"reason":     "Dolor de cabeza persistente",
		"diagnosis":  "Migraña",
		"treatment":  "Ibuprofeno 400mg cada 8 horas",
	})
	return string(b)
}

func TestHandler_Create(t *testing.T) {
	h, e, patientID := newTestHandler(t)
	c, rec := authedRequest(e, http.MethodPost, "/", entryBody(patientID), uuid.New(), auth.RoleMedico)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Create_UnknownPatient(t *testing.T) {
	h, e, _ := newTestHandler(t)
	c, _ := authedRequest(e, http.MethodPost, "/", entryBody(uuid.New()), uuid.New(), auth.RoleMedico)

	err := h.Create(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_Create_Duplicate(t *testing.T) {
	h, e, patientID := newTestHandler(t)
	actor := uuid.New()

	c, _ := authedRequest(e, http.MethodPost, "/", entryBody(patientID), actor, auth.RoleMedico)
	if err := h.Create(c); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c, _ = authedRequest(e, http.MethodPost, "/", entryBody(patientID), actor, auth.RoleMedico)
	err := h.Create(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_List_RequiresPatientID(t *testing.T) {
	h, e, _ := newTestHandler(t)
	c, _ := authedRequest(e, http.MethodGet, "/", "", uuid.New(), auth.RoleMedico)

	err := h.List(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_List(t *testing.T) {
	h, e, patientID := newTestHandler(t)
	actor := uuid.New()

	c, _ := authedRequest(e, http.MethodPost, "/", entryBody(patientID), actor, auth.RoleMedico)
	if err := h.Create(c); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c, rec := authedRequest(e, http.MethodGet, "/?patient_id="+patientID.String(), "", actor, auth.RoleMedico)
	if err := h.List(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_Update_Forbidden(t *testing.T) {
	h, e, patientID := newTestHandler(t)
	creator := uuid.New()

	c, rec := authedRequest(e, http.MethodPost, "/", entryBody(patientID), creator, auth.RoleMedico)
	if err := h.Create(c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var created Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	c, _ = authedRequest(e, http.MethodPatch, "/", entryBody(patientID), uuid.New(), auth.RoleMedico)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	err := h.Update(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
