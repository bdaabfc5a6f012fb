package medical

import (
	"context"
	"strings"
	"time"

	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnimalLookup es lo único que la ficha médica necesita del registro.
type AnimalLookup interface {
	GetAnimal(ctx context.Context, id string) (animals.Animal, error)
}

type Service struct {
	repo    Repository
	animals AnimalLookup
	log     *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, lookup AnimalLookup, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		animals: lookup,
		log:     log,
		now:     time.Now,
	}
}

type CreateInput struct {
	Kind       Kind
	OccurredAt time.Time
	Title      string
	Notes      string
}

// Create agrega un registro médico. Nunca cambia el estado del animal.
func (s *Service) Create(ctx context.Context, animalID, vetID string, in CreateInput) (Record, error) {
	animalID = strings.TrimSpace(animalID)
	vetID = strings.TrimSpace(vetID)
	if animalID == "" {
		return Record{}, apperr.Validation("animal_id", "animal id is required")
	}
	if vetID == "" {
		return Record{}, apperr.Validation("vet_id", "vet is required")
	}
	if !in.Kind.Valid() {
		return Record{}, apperr.Validation("kind", "unknown record kind")
	}
	if in.OccurredAt.IsZero() {
		return Record{}, apperr.Validation("occurred_at", "occurred_at is required")
	}

	now := s.now()
	if in.OccurredAt.After(now) {
		return Record{}, apperr.Validation("occurred_at", "occurred_at cannot be in the future")
	}
	if _, err := s.animals.GetAnimal(ctx, animalID); err != nil {
		return Record{}, err
	}

	r := Record{
		ID:         uuid.NewString(),
		AnimalID:   animalID,
		Kind:       in.Kind,
		OccurredAt: in.OccurredAt,
		RecordedAt: now,
		Title:      strings.TrimSpace(in.Title),
		Notes:      strings.TrimSpace(in.Notes),
		VetID:      vetID,
		Status:     StatusActive,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return Record{}, err
	}

	s.log.Info("medical record created",
		zap.String("record_id", r.ID),
		zap.String("animal_id", animalID),
		zap.String("kind", string(r.Kind)))
	return r, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, apperr.Validation("record_id", "record id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByAnimal(ctx context.Context, animalID string, filter ListFilter) ([]Record, error) {
	if _, err := s.animals.GetAnimal(ctx, animalID); err != nil {
		return nil, err
	}
	return s.repo.ListByAnimal(ctx, strings.TrimSpace(animalID), filter)
}

// Void marca el registro como voided (no se borra).
func (s *Service) Void(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, apperr.Validation("record_id", "record id is required")
	}
	if err := s.repo.Void(ctx, id); err != nil {
		return Record{}, err
	}
	return s.repo.GetByID(ctx, id)
}
