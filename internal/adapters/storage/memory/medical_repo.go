package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"animal-shelter/internal/domain/medical"
	"animal-shelter/internal/platform/apperr"
)

type MedicalRepo struct {
	s *Store
}

func NewMedicalRepo(s *Store) *MedicalRepo {
	return &MedicalRepo{s: s}
}

var _ medical.Repository = (*MedicalRepo)(nil)

func (r *MedicalRepo) Create(ctx context.Context, rec medical.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if rec.ID == "" {
		return fmt.Errorf("medical record id required")
	}
	if _, exists := r.s.records[rec.ID]; exists {
		return apperr.Conflict("medical record already exists", map[string]string{"record_id": rec.ID})
	}
	r.s.records[rec.ID] = rec
	return nil
}

func (r *MedicalRepo) GetByID(ctx context.Context, id string) (medical.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.records[id]
	if !ok {
		return medical.Record{}, apperr.NotFound("medical record", id)
	}
	return rec, nil
}

func (r *MedicalRepo) ListByAnimal(ctx context.Context, animalID string, filter medical.ListFilter) ([]medical.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]medical.Record, 0)
	for _, rec := range r.s.records {
		if rec.AnimalID != animalID {
			continue
		}
		if !filter.IncludeVoided && rec.Status == medical.StatusVoided {
			continue
		}
		if len(filter.Kinds) > 0 {
			ok := false
			for _, k := range filter.Kinds {
				if rec.Kind == k {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		if filter.From != nil && rec.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.OccurredAt.After(*filter.To) {
			continue
		}
		if q := strings.TrimSpace(filter.Query); q != "" {
			hay := strings.ToLower(rec.Title + " " + rec.Notes)
			if !strings.Contains(hay, strings.ToLower(q)) {
				continue
			}
		}
		out = append(out, rec)
	}

	// occurred_at desc (más reciente primero)
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if limit := limitOr(filter.Limit, 50); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MedicalRepo) Void(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[id]
	if !ok {
		return apperr.NotFound("medical record", id)
	}
	rec.Status = medical.StatusVoided
	r.s.records[id] = rec
	return nil
}
