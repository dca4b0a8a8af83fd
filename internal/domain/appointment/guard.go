package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// keyedMutex serializes work per string key. Mutexes are never evicted; the
// key space is bounded by the number of doctors and patients.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// lockAll acquires the mutexes for all keys in sorted order, so two
// admissions sharing any key always acquire in the same sequence and cannot
// deadlock. Duplicate keys are collapsed. Returns the unlock function.
func (k *keyedMutex) lockAll(keys ...string) func() {
	sort.Strings(keys)
	var held []*sync.Mutex
	var prev string
	for i, key := range keys {
		if i > 0 && key == prev {
			continue
		}
		prev = key
		m := k.get(key)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// TxRunner runs fn inside a storage transaction. The production runner is
// db.WithTx bound to the pool; tests substitute a pass-through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Guard is the single admission point for appointment writes that can change
// the active interval set: creates, reschedules, and restores all go through
// Admit. It serializes on the candidate's doctor and patient keys and runs
// the conflict check and the write in one transaction.
type Guard struct {
	repo  Repository
	runTx TxRunner
	keys  *keyedMutex
}

func NewGuard(repo Repository, runTx TxRunner) *Guard {
	return &Guard{repo: repo, runTx: runTx, keys: newKeyedMutex()}
}

// Admit validates the candidate interval, serializes on its conflict keys,
// and, if no active appointment overlaps [Start, End) for the same doctor or
// patient, executes write inside the same transaction as the check.
// excludeID removes the row being rescheduled or restored from the check;
// pass uuid.Nil for new appointments.
//
// Outcomes: (DecisionAdmitted, nil) with the write committed,
// (DecisionConflict, nil) with nothing written, or ErrInvalidInterval /
// a storage error with nothing written.
func (g *Guard) Admit(ctx context.Context, cand Candidate, excludeID uuid.UUID, write func(ctx context.Context) error) (Decision, error) {
	if !cand.End.After(cand.Start) {
		return DecisionConflict, ErrInvalidInterval
	}

	unlock := g.keys.lockAll("doctor:"+cand.DoctorID.String(), "patient:"+cand.PatientID.String())
	defer unlock()

	decision := DecisionConflict
	err := g.runTx(ctx, func(ctx context.Context) error {
		conflict, err := g.repo.HasConflict(ctx, cand.DoctorID, cand.PatientID, cand.Start, cand.End, excludeID)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if conflict {
			return nil
		}
		if err := write(ctx); err != nil {
			return err
		}
		decision = DecisionAdmitted
		return nil
	})
	if err != nil {
		return DecisionConflict, err
	}
	return decision, nil
}

// candidateFor builds the admission candidate from an appointment's current
// interval and keys.
func candidateFor(a *Appointment) Candidate {
	return Candidate{
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Start:     a.StartTime,
		End:       a.EndTime,
	}
}

// Clamp to UTC. Intervals are stored and compared in UTC only.
func toUTC(t time.Time) time.Time { return t.UTC() }
