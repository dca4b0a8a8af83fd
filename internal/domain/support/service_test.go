package support

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/mail"
)

type mockRepo struct {
	tickets map[uuid.UUID]*Ticket
}

func newMockRepo() *mockRepo {
	return &mockRepo{tickets: make(map[uuid.UUID]*Ticket)}
}

func (m *mockRepo) Create(_ context.Context, t *Ticket) error {
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	t, ok := m.tickets[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *mockRepo) List(_ context.Context, requester uuid.UUID, limit, offset int) ([]*Ticket, int, error) {
	var items []*Ticket
	for _, t := range m.tickets {
		if requester != uuid.Nil && t.RequesterID != requester {
			continue
		}
		cp := *t
		items = append(items, &cp)
	}
	return items, len(items), nil
}

const testSupportEmail = "soporte@clinica.gt"

func newTestService() (*Service, *mail.MockMailer) {
	mailer := &mail.MockMailer{}
	return NewService(newMockRepo(), mailer, mail.NewTemplateEngine(), testSupportEmail, zerolog.Nop()), mailer
}

func requester() Requester {
	return Requester{ID: uuid.New(), Email: "user@clinica.gt", Name: "Usuario", Role: "ASISTENTE"}
}

func TestCreateTicket(t *testing.T) {
	svc, mailer := newTestService()
	req := requester()

	ticket, err := svc.Create(context.Background(), CreateInput{
		Subject:     "La agenda no carga",
		Description: "Al abrir la vista de citas la página queda en blanco.",
	}, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.Status != StatusOpen {
		t.Errorf("expected status %s, got %s", StatusOpen, ticket.Status)
	}
	if ticket.Priority != PriorityMedium {
		t.Errorf("expected default priority %s, got %s", PriorityMedium, ticket.Priority)
	}

	// mails are async: one notification to the support desk, one
	// confirmation to the requester
	deadline := time.Now().Add(2 * time.Second)
	for len(mailer.Calls()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	calls := mailer.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(calls))
	}
	byRecipient := make(map[string]mail.Call, len(calls))
	for _, call := range calls {
		byRecipient[call.To] = call
	}

	notify, ok := byRecipient[testSupportEmail]
	if !ok {
		t.Fatalf("no mail sent to the support address, recipients: %v", recipients(calls))
	}
	if !strings.Contains(notify.Subject, ticket.Folio) {
		t.Errorf("notification subject should carry the folio: %q", notify.Subject)
	}
	if !strings.Contains(notify.Body, req.Email) {
		t.Errorf("notification body should name the requester: %q", notify.Body)
	}

	confirm, ok := byRecipient[req.Email]
	if !ok {
		t.Fatalf("no confirmation sent to the requester, recipients: %v", recipients(calls))
	}
	if !strings.Contains(confirm.Subject, ticket.Folio) {
		t.Errorf("confirmation subject should carry the folio: %q", confirm.Subject)
	}
}

func recipients(calls []mail.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.To
	}
	return out
}

func TestCreateWithoutSupportAddress(t *testing.T) {
	mailer := &mail.MockMailer{}
	svc := NewService(newMockRepo(), mailer, mail.NewTemplateEngine(), "", zerolog.Nop())
	req := requester()

	if _, err := svc.Create(context.Background(), CreateInput{
		Subject:     "Prueba",
		Description: "Descripción de prueba",
	}, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(mailer.Calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	calls := mailer.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected only the requester confirmation, got %d mails", len(calls))
	}
	if calls[0].To != req.Email {
		t.Errorf("expected confirmation to %s, got %s", req.Email, calls[0].To)
	}
}

func TestCreateMailFailureIgnored(t *testing.T) {
	mailer := &mail.MockMailer{ShouldFail: true}
	svc := NewService(newMockRepo(), mailer, mail.NewTemplateEngine(), testSupportEmail, zerolog.Nop())

	_, err := svc.Create(context.Background(), CreateInput{
		Subject:     "Prueba",
		Description: "Descripción de prueba",
	}, requester())
	if err != nil {
		t.Fatalf("mail failure must not fail ticket creation: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"empty subject", CreateInput{Description: "d"}},
		{"long subject", CreateInput{Subject: strings.Repeat("s", 141), Description: "d"}},
		{"empty description", CreateInput{Subject: "s"}},
		{"long description", CreateInput{Subject: "s", Description: strings.Repeat("d", 4001)}},
		{"bad priority", CreateInput{Subject: "s", Description: "d", Priority: "URGENTE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.in, requester()); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestFolioFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^SOP-[0-9A-Z]+-[0-9A-F]{4}$`)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		folio, err := NewFolio(time.Now())
		if err != nil {
			t.Fatalf("folio: %v", err)
		}
		if !pattern.MatchString(folio) {
			t.Fatalf("folio %q does not match expected format", folio)
		}
		seen[folio] = true
	}
	if len(seen) < 2 {
		t.Error("folios should vary")
	}
}

func TestListScoping(t *testing.T) {
	svc, _ := newTestService()
	alice := requester()
	bob := requester()

	for _, r := range []Requester{alice, alice, bob} {
		if _, err := svc.Create(context.Background(), CreateInput{Subject: "s", Description: "d"}, r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	own, _, err := svc.List(context.Background(), alice.ID, false, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(own) != 2 {
		t.Errorf("non-admin should see only own tickets, got %d", len(own))
	}

	all, _, err := svc.List(context.Background(), alice.ID, true, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("admin should see all tickets, got %d", len(all))
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, _ := newTestService()
	ticket, err := svc.Create(context.Background(), CreateInput{Subject: "s", Description: "d"}, requester())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), ticket.ID, StatusInProgress)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Errorf("expected %s, got %s", StatusInProgress, updated.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), ticket.ID, "CERRADO"); err == nil {
		t.Error("invalid status should be rejected")
	}
}
