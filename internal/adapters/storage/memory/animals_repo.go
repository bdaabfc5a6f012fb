package memory

import (
	"context"
	"fmt"
	"sort"

	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"
)

type AnimalRepo struct {
	s *Store
}

func NewAnimalRepo(s *Store) *AnimalRepo {
	return &AnimalRepo{s: s}
}

var _ animals.Repository = (*AnimalRepo)(nil)

func (r *AnimalRepo) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.animals[id]
	if !ok {
		return animals.Animal{}, apperr.NotFound("animal", id)
	}
	return a, nil
}

func (r *AnimalRepo) List(ctx context.Context, filter animals.ListFilter) ([]animals.Animal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]animals.Animal, 0)
	for _, a := range r.s.animals {
		if len(filter.States) > 0 && !containsState(filter.States, a.CurrentState) {
			continue
		}
		if filter.Species != "" && a.Species != filter.Species {
			continue
		}
		out = append(out, a)
	}

	// Más recientes primero
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit := limitOr(filter.Limit, 50); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AnimalRepo) History(ctx context.Context, animalID string) ([]animals.HistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h := r.s.history[animalID]
	out := make([]animals.HistoryEntry, len(h))
	copy(out, h)
	return out, nil
}

func (r *AnimalRepo) WithinTx(ctx context.Context, fn func(tx animals.Tx) error) error {
	return r.s.withinTx(ctx, func(t *txn) error {
		return fn(t)
	})
}

func containsState(states []animals.State, s animals.State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

// --- animals.Tx ---

func (t *txn) Create(ctx context.Context, a animals.Animal, first animals.HistoryEntry) error {
	if a.ID == "" {
		return fmt.Errorf("animal id required")
	}
	if _, exists := t.s.animals[a.ID]; exists {
		return apperr.Conflict("animal already exists", map[string]string{"animal_id": a.ID})
	}

	t.s.animals[a.ID] = a
	t.s.history[a.ID] = []animals.HistoryEntry{first}
	t.onRollback(func() {
		delete(t.s.animals, a.ID)
		delete(t.s.history, a.ID)
	})
	return nil
}

// LockByID: el mutex del Store ya está tomado por la transacción.
func (t *txn) LockByID(ctx context.Context, id string) (animals.Animal, error) {
	a, ok := t.s.animals[id]
	if !ok {
		return animals.Animal{}, apperr.NotFound("animal", id)
	}
	return a, nil
}

func (t *txn) AppendHistory(ctx context.Context, a animals.Animal, e animals.HistoryEntry) error {
	prev, ok := t.s.animals[a.ID]
	if !ok {
		return apperr.NotFound("animal", a.ID)
	}
	if e.AnimalID != a.ID || e.State != a.CurrentState || e.LocationID != a.CurrentLocationID {
		return apperr.Inconsistent("history entry does not match the animal's new state", nil)
	}

	prevLen := len(t.s.history[a.ID])
	t.s.animals[a.ID] = a
	t.s.history[a.ID] = append(t.s.history[a.ID], e)
	t.onRollback(func() {
		t.s.animals[a.ID] = prev
		t.s.history[a.ID] = t.s.history[a.ID][:prevLen]
	})
	return nil
}
