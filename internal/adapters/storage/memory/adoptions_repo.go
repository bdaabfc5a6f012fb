package memory

import (
	"context"
	"fmt"
	"sort"

	"animal-shelter/internal/domain/adoptions"
	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"
)

type AdoptionRepo struct {
	s *Store
}

func NewAdoptionRepo(s *Store) *AdoptionRepo {
	return &AdoptionRepo{s: s}
}

var _ adoptions.Repository = (*AdoptionRepo)(nil)

func (r *AdoptionRepo) GetRequest(ctx context.Context, id string) (adoptions.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.requestWithNotes(id)
}

func (r *AdoptionRepo) ListRequests(ctx context.Context, filter adoptions.ListFilter) ([]adoptions.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]adoptions.Request, 0)
	for id, req := range r.s.requests {
		if filter.AnimalID != "" && req.AnimalID != filter.AnimalID {
			continue
		}
		if filter.ApplicantID != "" && req.ApplicantID != filter.ApplicantID {
			continue
		}
		if len(filter.States) > 0 && !containsRequestState(filter.States, req.State) {
			continue
		}
		req.Notes = copyNotes(r.s.notes[id])
		out = append(out, req)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})

	if limit := limitOr(filter.Limit, 50); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AdoptionRepo) GetAdoptionByRequest(ctx context.Context, requestID string) (adoptions.Adoption, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.adoptions[requestID]
	if !ok {
		return adoptions.Adoption{}, apperr.NotFound("adoption", requestID)
	}
	return a, nil
}

func (r *AdoptionRepo) WithinTx(ctx context.Context, fn func(tx adoptions.Tx) error) error {
	return r.s.withinTx(ctx, func(t *txn) error {
		return fn(t)
	})
}

func (s *Store) requestWithNotes(id string) (adoptions.Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return adoptions.Request{}, apperr.NotFound("adoption request", id)
	}
	req.Notes = copyNotes(s.notes[id])
	return req, nil
}

func copyNotes(in []adoptions.Note) []adoptions.Note {
	if len(in) == 0 {
		return nil
	}
	out := make([]adoptions.Note, len(in))
	copy(out, in)
	return out
}

func containsRequestState(states []adoptions.State, s adoptions.State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

// --- adoptions.Tx ---

func (t *txn) Animals() animals.Tx {
	return t
}

func (t *txn) CreateRequest(ctx context.Context, req adoptions.Request) error {
	if req.ID == "" {
		return fmt.Errorf("adoption request id required")
	}
	if _, exists := t.s.requests[req.ID]; exists {
		return apperr.Conflict("adoption request already exists", map[string]string{"request_id": req.ID})
	}
	req.Notes = nil
	t.s.requests[req.ID] = req
	t.onRollback(func() { delete(t.s.requests, req.ID) })
	return nil
}

func (t *txn) LockRequest(ctx context.Context, id string) (adoptions.Request, error) {
	return t.s.requestWithNotes(id)
}

func (t *txn) UpdateRequest(ctx context.Context, req adoptions.Request) (int64, error) {
	prev, ok := t.s.requests[req.ID]
	if !ok {
		return 0, nil
	}
	if req.State == adoptions.StateApproved {
		for id, other := range t.s.requests {
			if id != req.ID && other.AnimalID == req.AnimalID && other.State == adoptions.StateApproved {
				return 0, apperr.Conflict("animal already has an approved adoption request", map[string]string{
					"animal_id":           req.AnimalID,
					"approved_request_id": id,
				})
			}
		}
	}

	// Las notas viven aparte; no se reescriben desde acá.
	req.Notes = nil
	t.s.requests[req.ID] = req
	t.onRollback(func() { t.s.requests[req.ID] = prev })
	return 1, nil
}

func (t *txn) AppendNote(ctx context.Context, n adoptions.Note) error {
	if _, ok := t.s.requests[n.RequestID]; !ok {
		return apperr.NotFound("adoption request", n.RequestID)
	}
	prevLen := len(t.s.notes[n.RequestID])
	t.s.notes[n.RequestID] = append(t.s.notes[n.RequestID], n)
	t.onRollback(func() {
		t.s.notes[n.RequestID] = t.s.notes[n.RequestID][:prevLen]
	})
	return nil
}

func (t *txn) ApprovedForAnimal(ctx context.Context, animalID string) ([]string, error) {
	out := make([]string, 0, 1)
	for id, req := range t.s.requests {
		if req.AnimalID == animalID && req.State == adoptions.StateApproved {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *txn) OpenRequestExists(ctx context.Context, animalID, applicantID string) (bool, error) {
	for _, req := range t.s.requests {
		if req.AnimalID == animalID && req.ApplicantID == applicantID && !req.State.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (t *txn) AdoptionExists(ctx context.Context, requestID string) (bool, error) {
	_, ok := t.s.adoptions[requestID]
	return ok, nil
}

func (t *txn) CreateAdoption(ctx context.Context, a adoptions.Adoption) error {
	if _, exists := t.s.adoptions[a.RequestID]; exists {
		return apperr.Conflict("adoption already recorded for this request", map[string]string{"request_id": a.RequestID})
	}
	t.s.adoptions[a.RequestID] = a
	t.onRollback(func() { delete(t.s.adoptions, a.RequestID) })
	return nil
}
