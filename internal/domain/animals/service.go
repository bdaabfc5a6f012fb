package animals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"animal-shelter/internal/platform/apperr"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("animal-shelter/animals")

// Service es el registro de animales: ficha + estado + historial.
type Service struct {
	repo Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

type IntakeInput struct {
	Name       string
	Species    Species
	Breed      string
	Sex        Sex
	Color      string
	Size       Size
	BirthDate  *time.Time
	Microchip  string
	Notes      string
	LocationID string
	// Vacío => under_evaluation.
	InitialState State
}

// Intake da de alta un animal con su primera entrada de historial.
func (s *Service) Intake(ctx context.Context, actorID string, in IntakeInput) (Animal, error) {
	ctx, span := tracer.Start(ctx, "animals.Intake")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Animal{}, apperr.Validation("actor_id", "actor is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Animal{}, apperr.Validation("name", "name is required")
	}
	if strings.TrimSpace(string(in.Species)) == "" {
		return Animal{}, apperr.Validation("species", "species is required")
	}
	location := strings.TrimSpace(in.LocationID)
	if location == "" {
		return Animal{}, apperr.Validation("location_id", "location is required")
	}

	state := in.InitialState
	if state == "" {
		state = StateUnderEvaluation
	}
	switch state {
	case StateUnderEvaluation, StateAvailable, StateUnderTreatment:
	default:
		return Animal{}, apperr.Validation("initial_state", fmt.Sprintf("animals cannot enter the shelter as %s", state))
	}

	sex := in.Sex
	if sex == "" {
		sex = SexUnknown
	}

	now := s.now()
	a := Animal{
		ID:                uuid.NewString(),
		Name:              strings.TrimSpace(in.Name),
		Species:           Species(strings.ToLower(strings.TrimSpace(string(in.Species)))),
		Breed:             strings.TrimSpace(in.Breed),
		Sex:               sex,
		Color:             strings.TrimSpace(in.Color),
		Size:              in.Size,
		BirthDate:         in.BirthDate,
		Microchip:         strings.TrimSpace(in.Microchip),
		Notes:             strings.TrimSpace(in.Notes),
		CurrentState:      state,
		CurrentLocationID: location,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	first := HistoryEntry{
		ID:         uuid.NewString(),
		AnimalID:   a.ID,
		State:      state,
		LocationID: location,
		ActorID:    actorID,
		Comment:    "intake",
		RecordedAt: now,
	}

	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		return tx.Create(ctx, a, first)
	})
	if err != nil {
		return Animal{}, err
	}

	s.log.Info("animal intake",
		zap.String("animal_id", a.ID),
		zap.String("state", string(state)),
		zap.String("actor_id", actorID))
	return a, nil
}

func (s *Service) GetAnimal(ctx context.Context, id string) (Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Animal{}, apperr.Validation("animal_id", "animal id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Animal, error) {
	return s.repo.List(ctx, filter)
}

// History devuelve el seguimiento en orden cronológico.
func (s *Service) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	if _, err := s.GetAnimal(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, strings.TrimSpace(id))
}

// ApplyStateChange es el contrato del registro: cualquier estado válido,
// siempre con entrada de historial en la misma transacción.
func (s *Service) ApplyStateChange(ctx context.Context, id string, ch StateChange) (Animal, error) {
	ctx, span := tracer.Start(ctx, "animals.ApplyStateChange")
	defer span.End()
	span.SetAttributes(attribute.String("animal.id", id), attribute.String("animal.state", string(ch.State)))

	var out Animal
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		a, err := ApplyInTx(ctx, tx, id, ch, s.now())
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return Animal{}, err
	}
	return out, nil
}

// ChangeState es la edición directa (coordinación / veterinaria).
// No puede asignar estados del flujo de adopción ni tocar un animal reservado o adoptado.
func (s *Service) ChangeState(ctx context.Context, id string, ch StateChange) (Animal, error) {
	ctx, span := tracer.Start(ctx, "animals.ChangeState")
	defer span.End()

	if ch.State.WorkflowOwned() {
		return Animal{}, apperr.Validation("state", fmt.Sprintf("%s is managed by the adoption workflow", ch.State))
	}

	var out Animal
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		current, err := tx.LockByID(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if current.CurrentState.WorkflowOwned() {
			return apperr.Conflict(
				"animal state is controlled by its adoption request",
				map[string]string{"animal_id": current.ID, "current_state": string(current.CurrentState)},
			)
		}
		a, err := ApplyInTx(ctx, tx, current.ID, ch, s.now())
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return Animal{}, err
	}

	s.log.Info("animal state changed",
		zap.String("animal_id", out.ID),
		zap.String("state", string(out.CurrentState)),
		zap.String("location_id", out.CurrentLocationID),
		zap.String("actor_id", ch.ActorID))
	return out, nil
}

// ApplyInTx aplica ch dentro de una transacción ajena (p.ej. la de una adopción).
func ApplyInTx(ctx context.Context, tx Tx, id string, ch StateChange, at time.Time) (Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Animal{}, apperr.Validation("animal_id", "animal id is required")
	}
	if !ch.State.Valid() {
		return Animal{}, apperr.Validation("state", fmt.Sprintf("unknown animal state %q", ch.State))
	}
	actorID := strings.TrimSpace(ch.ActorID)
	if actorID == "" {
		return Animal{}, apperr.Validation("actor_id", "actor is required")
	}

	a, err := tx.LockByID(ctx, id)
	if err != nil {
		return Animal{}, err
	}

	location := strings.TrimSpace(ch.LocationID)
	if location == "" {
		location = a.CurrentLocationID
	}

	a.CurrentState = ch.State
	a.CurrentLocationID = location
	a.UpdatedAt = at

	e := HistoryEntry{
		ID:         uuid.NewString(),
		AnimalID:   a.ID,
		State:      ch.State,
		LocationID: location,
		ActorID:    actorID,
		Comment:    strings.TrimSpace(ch.Comment),
		RecordedAt: at,
	}
	if err := tx.AppendHistory(ctx, a, e); err != nil {
		return Animal{}, err
	}
	return a, nil
}
