package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// passTx substitutes the transaction runner in tests.
func passTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockRepo struct {
	mu         sync.Mutex
	appts      map[uuid.UUID]*Appointment
	failUpdate error
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.appts[cp.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.IsDeleted {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetAny(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	cur, ok := m.appts[a.ID]
	if !ok || cur.IsDeleted {
		return ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id uuid.UUID, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.IsDeleted {
		return ErrNotFound
	}
	now := time.Now()
	a.IsDeleted = true
	a.DeletedAt = &now
	return nil
}

func (m *mockRepo) Restore(_ context.Context, id uuid.UUID, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || !a.IsDeleted {
		return ErrNotDeleted
	}
	a.IsDeleted = false
	a.DeletedAt = nil
	return nil
}

func (m *mockRepo) HasConflict(_ context.Context, doctorID, patientID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.IsDeleted || a.ID == excludeID {
			continue
		}
		if a.DoctorID != doctorID && a.PatientID != patientID {
			continue
		}
		if a.StartTime.Before(end) && start.Before(a.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Appointment
	for _, a := range m.appts {
		if a.IsDeleted {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		cp := *a
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *mockRepo) ListTrash(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Appointment
	for _, a := range m.appts {
		if a.IsDeleted {
			cp := *a
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if !a.IsDeleted {
			n++
		}
	}
	return n
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, passTx), repo
}

func at(hour int) time.Time {
	return time.Date(2026, 9, 1, hour, 0, 0, 0, time.UTC)
}

func input(doctor, patient uuid.UUID, start, end time.Time) CreateInput {
	return CreateInput{DoctorID: doctor, PatientID: patient, StartTime: start, EndTime: end}
}

func TestCreateAdmitsFreeSlot(t *testing.T) {
	svc, _ := newTestService()
	doctor, patient := uuid.New(), uuid.New()

	a, decision, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if decision != DecisionAdmitted {
		t.Fatalf("expected admitted, got %s", decision)
	}
	if a.Status != StatusPending {
		t.Errorf("expected default status %s, got %s", StatusPending, a.Status)
	}
}

func TestCreateRejectsInvalidInterval(t *testing.T) {
	svc, _ := newTestService()
	doctor, patient := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"end before start", at(10), at(9)},
		{"zero length", at(9), at(9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Create(context.Background(), input(doctor, patient, tt.start, tt.end), uuid.New())
			if err != ErrInvalidInterval {
				t.Errorf("expected ErrInvalidInterval, got %v", err)
			}
		})
	}
}

func TestCreateConflictSameDoctor(t *testing.T) {
	svc, _ := newTestService()
	doctor := uuid.New()

	if _, _, err := svc.Create(context.Background(), input(doctor, uuid.New(), at(9), at(10)), uuid.New()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, decision, err := svc.Create(context.Background(), input(doctor, uuid.New(), at(9), at(10)), uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if decision != DecisionConflict {
		t.Error("same doctor, overlapping interval should conflict")
	}
}

func TestCreateConflictSamePatient(t *testing.T) {
	svc, _ := newTestService()
	patient := uuid.New()

	if _, _, err := svc.Create(context.Background(), input(uuid.New(), patient, at(9), at(10)), uuid.New()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// different doctor, same patient, partial overlap
	_, decision, err := svc.Create(context.Background(), input(uuid.New(), patient, at(9).Add(30*time.Minute), at(11)), uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if decision != DecisionConflict {
		t.Error("same patient, overlapping interval should conflict")
	}
}

func TestCreateHalfOpenBoundary(t *testing.T) {
	svc, _ := newTestService()
	doctor, patient := uuid.New(), uuid.New()

	if _, _, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), uuid.New()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// back-to-back: ends exactly when the next starts
	_, decision, err := svc.Create(context.Background(), input(doctor, patient, at(10), at(11)), uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if decision != DecisionAdmitted {
		t.Error("appointment starting at the previous end must be admitted")
	}
}

func TestCreateIndependentKeysDoNotConflict(t *testing.T) {
	svc, _ := newTestService()

	if _, _, err := svc.Create(context.Background(), input(uuid.New(), uuid.New(), at(9), at(10)), uuid.New()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, decision, err := svc.Create(context.Background(), input(uuid.New(), uuid.New(), at(9), at(10)), uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if decision != DecisionAdmitted {
		t.Error("different doctor and patient must not conflict")
	}
}

func TestDeletedAppointmentDoesNotConflict(t *testing.T) {
	svc, _ := newTestService()
	doctor, patient := uuid.New(), uuid.New()
	actor := uuid.New()

	a, _, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), actor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.SoftDelete(context.Background(), a.ID, actor); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, decision, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if decision != DecisionAdmitted {
		t.Error("soft-deleted rows must be invisible to the conflict check")
	}
}

func TestRescheduleExcludesSelf(t *testing.T) {
	svc, _ := newTestService()
	doctor, patient := uuid.New(), uuid.New()
	actor := uuid.New()

	a, _, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), actor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// shift within its own slot: overlaps only itself
	moved, decision, err := svc.Reschedule(context.Background(), a.ID, RescheduleInput{
		StartTime: at(9).Add(15 * time.Minute),
		EndTime:   at(10).Add(15 * time.Minute),
	}, actor)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if decision != DecisionAdmitted {
		t.Fatal("reschedule overlapping only itself must be admitted")
	}
	if !moved.StartTime.Equal(at(9).Add(15 * time.Minute)) {
		t.Errorf("start not moved: %v", moved.StartTime)
	}
}

func TestRescheduleConflictsWithOthers(t *testing.T) {
	svc, _ := newTestService()
	doctor := uuid.New()
	actor := uuid.New()

	if _, _, err := svc.Create(context.Background(), input(doctor, uuid.New(), at(9), at(10)), actor); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, _, err := svc.Create(context.Background(), input(doctor, uuid.New(), at(11), at(12)), actor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, decision, err := svc.Reschedule(context.Background(), b.ID, RescheduleInput{
		StartTime: at(9).Add(30 * time.Minute),
		EndTime:   at(10).Add(30 * time.Minute),
	}, actor)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if decision != DecisionConflict {
		t.Error("reschedule into another appointment's slot must conflict")
	}
}

func TestRestoreReadmits(t *testing.T) {
	svc, _ := newTestService()
	doctor, patient := uuid.New(), uuid.New()
	actor := uuid.New()

	a, _, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), actor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.SoftDelete(context.Background(), a.ID, actor); err != nil {
		t.Fatalf("delete: %v", err)
	}

	restored, decision, err := svc.Restore(context.Background(), a.ID, actor)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if decision != DecisionAdmitted {
		t.Fatal("restore into a free slot must be admitted")
	}
	if restored.IsDeleted {
		t.Error("restored appointment still flagged deleted")
	}
}

func TestRestoreConflictsWhenSlotTaken(t *testing.T) {
	svc, _ := newTestService()
	doctor, patient := uuid.New(), uuid.New()
	actor := uuid.New()

	a, _, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), actor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.SoftDelete(context.Background(), a.ID, actor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// the slot gets taken while a sits in the trash
	if _, _, err := svc.Create(context.Background(), input(doctor, uuid.New(), at(9), at(10)), actor); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, decision, err := svc.Restore(context.Background(), a.ID, actor)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if decision != DecisionConflict {
		t.Error("restore must re-validate against the current active set")
	}
}

func TestRestoreActiveAppointment(t *testing.T) {
	svc, _ := newTestService()
	actor := uuid.New()

	a, _, err := svc.Create(context.Background(), input(uuid.New(), uuid.New(), at(9), at(10)), actor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, _, err := svc.Restore(context.Background(), a.ID, actor); err != ErrNotDeleted {
		t.Errorf("expected ErrNotDeleted, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, _ := newTestService()
	actor := uuid.New()

	a, _, err := svc.Create(context.Background(), input(uuid.New(), uuid.New(), at(9), at(10)), actor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), a.ID, StatusConfirmed, actor)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("expected %s, got %s", StatusConfirmed, updated.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), a.ID, "BOGUS", actor); !errors.Is(err, ErrValidation) {
		t.Errorf("bogus status should be rejected as a validation error, got %v", err)
	}
}

func TestConcurrentAdmitExactlyOneWins(t *testing.T) {
	svc, repo := newTestService()
	doctor, patient := uuid.New(), uuid.New()

	const n = 50
	var wg sync.WaitGroup
	admitted := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, decision, err := svc.Create(context.Background(), input(doctor, patient, at(9), at(10)), uuid.New())
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if decision == DecisionAdmitted {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	wins := 0
	for range admitted {
		wins++
	}
	if wins != 1 {
		t.Fatalf("expected exactly one admission, got %d", wins)
	}
	if got := repo.activeCount(); got != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", got)
	}
}

func TestConcurrentAdmitDistinctKeysAllWin(t *testing.T) {
	svc, repo := newTestService()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, decision, err := svc.Create(context.Background(), input(uuid.New(), uuid.New(), at(9), at(10)), uuid.New())
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if decision != DecisionAdmitted {
				t.Error("independent keys should all be admitted")
			}
		}()
	}
	wg.Wait()

	if got := repo.activeCount(); got != n {
		t.Fatalf("expected %d stored appointments, got %d", n, got)
	}
}
