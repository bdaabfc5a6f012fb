package adoptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("animal-shelter/adoptions")

// Service es el motor del flujo de adopción. Cada operación que toca
// solicitud y animal corre en una única transacción del Repository.
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

// Submit crea una solicitud en pending_review.
func (s *Service) Submit(ctx context.Context, applicantID string, in SubmitInput) (Request, error) {
	ctx, span := tracer.Start(ctx, "adoptions.Submit")
	defer span.End()

	applicantID = strings.TrimSpace(applicantID)
	animalID := strings.TrimSpace(in.AnimalID)
	if applicantID == "" {
		return Request{}, apperr.Validation("applicant_id", "applicant is required")
	}
	if animalID == "" {
		return Request{}, apperr.Validation("animal_id", "animal is required")
	}

	now := s.now()
	req := Request{
		ID:          uuid.NewString(),
		AnimalID:    animalID,
		ApplicantID: applicantID,
		Motivation:  strings.TrimSpace(in.Motivation),
		SubmittedAt: now,
		State:       StatePendingReview,
		UpdatedAt:   now,
	}

	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		a, err := tx.Animals().LockByID(ctx, animalID)
		if err != nil {
			return err
		}
		if a.CurrentState != animals.StateAvailable && a.CurrentState != animals.StateInAdoptionProcess {
			return apperr.Conflict("animal is not open for adoption", map[string]string{
				"animal_id":     a.ID,
				"current_state": string(a.CurrentState),
			})
		}
		open, err := tx.OpenRequestExists(ctx, animalID, applicantID)
		if err != nil {
			return err
		}
		if open {
			return apperr.Conflict("applicant already has an open request for this animal", map[string]string{
				"animal_id":    animalID,
				"applicant_id": applicantID,
			})
		}
		return tx.CreateRequest(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}

	s.log.Info("adoption request submitted",
		zap.String("request_id", req.ID),
		zap.String("animal_id", animalID),
		zap.String("applicant_id", applicantID))
	return req, nil
}

func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Request{}, apperr.Validation("request_id", "request id is required")
	}
	return s.repo.GetRequest(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	return s.repo.ListRequests(ctx, filter)
}

// GetAdoption devuelve el registro de adopción de una solicitud completada.
func (s *Service) GetAdoption(ctx context.Context, requestID string) (Adoption, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return Adoption{}, apperr.Validation("request_id", "request id is required")
	}
	return s.repo.GetAdoptionByRequest(ctx, requestID)
}

// MarkUnderReview: pending_review -> under_review. Sin efecto sobre el animal.
func (s *Service) MarkUnderReview(ctx context.Context, requestID, reviewerID string) (Request, error) {
	ctx, span := tracer.Start(ctx, "adoptions.MarkUnderReview")
	defer span.End()

	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return Request{}, apperr.Validation("reviewer_id", "reviewer is required")
	}

	var out Request
	err := s.transition(ctx, requestID, ActionMarkUnderReview, func(tx Tx, req Request, _ animals.Animal, to State) error {
		now := s.now()
		req.State = to
		req.ReviewerID = reviewerID
		req.ReviewedAt = &now
		req.UpdatedAt = now
		if err := updateRequest(ctx, tx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	s.logTransition(out, ActionMarkUnderReview, reviewerID)
	return out, nil
}

// Approve reserva el animal: solicitud -> approved y animal -> in_adoption_process,
// todo en la misma transacción con el animal bloqueado.
func (s *Service) Approve(ctx context.Context, requestID, reviewerID, comments string) (Request, error) {
	ctx, span := tracer.Start(ctx, "adoptions.Approve")
	defer span.End()

	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return Request{}, apperr.Validation("reviewer_id", "reviewer is required")
	}

	var out Request
	err := s.transition(ctx, requestID, ActionApprove, func(tx Tx, req Request, a animals.Animal, to State) error {
		approved, err := tx.ApprovedForAnimal(ctx, req.AnimalID)
		if err != nil {
			return err
		}
		for _, id := range approved {
			if id != req.ID {
				return apperr.Conflict("animal already has an approved adoption request", map[string]string{
					"animal_id":           req.AnimalID,
					"approved_request_id": id,
				})
			}
		}
		if a.CurrentState != animals.StateAvailable && a.CurrentState != animals.StateInAdoptionProcess {
			return apperr.Conflict("animal is not available for adoption", map[string]string{
				"animal_id":     a.ID,
				"current_state": string(a.CurrentState),
			})
		}

		now := s.now()
		req.State = to
		req.ReviewerID = reviewerID
		req.ReviewedAt = &now
		req.ApprovalComments = strings.TrimSpace(comments)
		req.UpdatedAt = now
		if err := updateRequest(ctx, tx, req); err != nil {
			return err
		}

		if err := moveAnimal(ctx, tx, a.ID, animals.StateInAdoptionProcess, reviewerID,
			fmt.Sprintf("adoption request %s approved", req.ID), now); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	s.logTransition(out, ActionApprove, reviewerID)
	return out, nil
}

// Reject cierra la solicitud con un motivo. internalNotes (opcional) queda como nota.
func (s *Service) Reject(ctx context.Context, requestID, reviewerID, reason, internalNotes string) (Request, error) {
	ctx, span := tracer.Start(ctx, "adoptions.Reject")
	defer span.End()

	reviewerID = strings.TrimSpace(reviewerID)
	reason = strings.TrimSpace(reason)
	if reviewerID == "" {
		return Request{}, apperr.Validation("reviewer_id", "reviewer is required")
	}
	if reason == "" {
		return Request{}, apperr.Validation("reason", "rejection reason is required")
	}

	var out Request
	err := s.transition(ctx, requestID, ActionReject, func(tx Tx, req Request, _ animals.Animal, to State) error {
		now := s.now()
		req.State = to
		req.ReviewerID = reviewerID
		req.ReviewedAt = &now
		req.RejectionReason = reason
		req.UpdatedAt = now
		if err := updateRequest(ctx, tx, req); err != nil {
			return err
		}

		if text := strings.TrimSpace(internalNotes); text != "" {
			n := s.newNote(req.ID, reviewerID, text, now)
			if err := tx.AppendNote(ctx, n); err != nil {
				return err
			}
			req.Notes = append(req.Notes, n)
		}
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	s.logTransition(out, ActionReject, reviewerID)
	return out, nil
}

// Cancel cierra una solicitud no terminal. Si era la que reservaba al animal
// y ninguna otra lo reserva, el animal vuelve a available.
// El revisor original se conserva; quién canceló queda en una nota.
func (s *Service) Cancel(ctx context.Context, requestID, actorID, reason string) (Request, error) {
	ctx, span := tracer.Start(ctx, "adoptions.Cancel")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	reason = strings.TrimSpace(reason)
	if actorID == "" {
		return Request{}, apperr.Validation("actor_id", "actor is required")
	}
	if reason == "" {
		return Request{}, apperr.Validation("reason", "cancellation reason is required")
	}

	var out Request
	err := s.transition(ctx, requestID, ActionCancel, func(tx Tx, req Request, a animals.Animal, to State) error {
		heldReservation := req.State == StateApproved

		now := s.now()
		req.State = to
		if req.ReviewerID == "" {
			req.ReviewerID = actorID
			req.ReviewedAt = &now
		}
		req.RejectionReason = reason
		req.UpdatedAt = now
		if err := updateRequest(ctx, tx, req); err != nil {
			return err
		}

		n := s.newNote(req.ID, actorID, "cancelled: "+reason, now)
		if err := tx.AppendNote(ctx, n); err != nil {
			return err
		}
		req.Notes = append(req.Notes, n)

		if heldReservation {
			approved, err := tx.ApprovedForAnimal(ctx, req.AnimalID)
			if err != nil {
				return err
			}
			others := 0
			for _, id := range approved {
				if id != req.ID {
					others++
				}
			}
			if others == 0 && a.CurrentState == animals.StateInAdoptionProcess {
				if err := moveAnimal(ctx, tx, a.ID, animals.StateAvailable, actorID,
					fmt.Sprintf("adoption request %s cancelled: %s", req.ID, reason), now); err != nil {
					return err
				}
			}
		}
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	s.logTransition(out, ActionCancel, actorID)
	return out, nil
}

// Complete registra la adopción: crea Adoption, solicitud -> completed y animal -> adopted.
// Todo o nada.
func (s *Service) Complete(ctx context.Context, requestID, actorID string, in CompleteInput) (Adoption, Request, error) {
	ctx, span := tracer.Start(ctx, "adoptions.Complete")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Adoption{}, Request{}, apperr.Validation("actor_id", "actor is required")
	}
	if in.AdoptionDate.IsZero() {
		return Adoption{}, Request{}, apperr.Validation("adoption_date", "adoption date is required")
	}
	if afterToday(in.AdoptionDate, s.now()) {
		return Adoption{}, Request{}, apperr.Validation("adoption_date", "adoption date cannot be in the future")
	}
	place := strings.TrimSpace(in.DeliveryPlace)
	if place == "" {
		return Adoption{}, Request{}, apperr.Validation("delivery_place", "delivery place is required")
	}

	var (
		adoption Adoption
		out      Request
	)
	err := s.withLocked(ctx, requestID, func(tx Tx, req Request, a animals.Animal) error {
		// Duplicado: se chequea antes que la transición para informar Conflict.
		exists, err := tx.AdoptionExists(ctx, req.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("adoption already recorded for this request", map[string]string{
				"request_id": req.ID,
			})
		}

		to, ok := CanTransition(req.State, ActionComplete)
		if !ok {
			return apperr.InvalidTransition(string(req.State), string(ActionComplete))
		}
		if a.CurrentState != animals.StateInAdoptionProcess {
			return apperr.Conflict("animal is not reserved for this adoption", map[string]string{
				"animal_id":     a.ID,
				"current_state": string(a.CurrentState),
			})
		}

		now := s.now()
		adoption = Adoption{
			ID:            uuid.NewString(),
			RequestID:     req.ID,
			AnimalID:      req.AnimalID,
			AdopterID:     req.ApplicantID,
			AdoptionDate:  in.AdoptionDate,
			DeliveryPlace: place,
			Observations:  strings.TrimSpace(in.Observations),
			RecordedBy:    actorID,
			CreatedAt:     now,
		}
		if err := tx.CreateAdoption(ctx, adoption); err != nil {
			return err
		}

		req.State = to
		req.UpdatedAt = now
		if err := updateRequest(ctx, tx, req); err != nil {
			return err
		}

		if err := moveAnimal(ctx, tx, a.ID, animals.StateAdopted, actorID,
			fmt.Sprintf("adopted, delivered at %s", place), now); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return Adoption{}, Request{}, err
	}

	s.logTransition(out, ActionComplete, actorID)
	return adoption, out, nil
}

// AppendNote es legal en cualquier estado, incluso terminal.
func (s *Service) AppendNote(ctx context.Context, requestID, actorID, text string) (Note, error) {
	ctx, span := tracer.Start(ctx, "adoptions.AppendNote")
	defer span.End()

	requestID = strings.TrimSpace(requestID)
	actorID = strings.TrimSpace(actorID)
	text = strings.TrimSpace(text)
	if requestID == "" {
		return Note{}, apperr.Validation("request_id", "request id is required")
	}
	if actorID == "" {
		return Note{}, apperr.Validation("actor_id", "actor is required")
	}
	if text == "" {
		return Note{}, apperr.Validation("text", "note text is required")
	}

	var out Note
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		req, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		out = s.newNote(req.ID, actorID, text, s.now())
		return tx.AppendNote(ctx, out)
	})
	if err != nil {
		return Note{}, err
	}
	return out, nil
}

type transitionFunc func(tx Tx, req Request, a animals.Animal, to State) error

// transition bloquea animal y solicitud, valida la arista con CanTransition y ejecuta fn.
func (s *Service) transition(ctx context.Context, requestID string, action Action, fn transitionFunc) error {
	return s.withLocked(ctx, requestID, func(tx Tx, req Request, a animals.Animal) error {
		to, ok := CanTransition(req.State, action)
		if !ok {
			s.log.Debug("illegal adoption transition",
				zap.String("request_id", req.ID),
				zap.String("state", string(req.State)),
				zap.String("action", string(action)))
			return apperr.InvalidTransition(string(req.State), string(action))
		}
		return fn(tx, req, a, to)
	})
}

// withLocked respeta el orden de bloqueo animal -> solicitud.
// El animal de una solicitud no cambia, así que se puede leer antes de abrir la transacción.
func (s *Service) withLocked(ctx context.Context, requestID string, fn func(tx Tx, req Request, a animals.Animal) error) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return apperr.Validation("request_id", "request id is required")
	}

	snapshot, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	return s.repo.WithinTx(ctx, func(tx Tx) error {
		a, err := tx.Animals().LockByID(ctx, snapshot.AnimalID)
		if err != nil {
			return err
		}
		req, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.AnimalID != a.ID {
			return apperr.Inconsistent("adoption request changed animal while locked", nil)
		}
		return fn(tx, req, a)
	})
}

// afterToday compara por fecha de calendario: la fecha de adopción es un día,
// no un instante, y no debe depender del huso del servidor.
func afterToday(d, now time.Time) bool {
	y, m, day := d.Date()
	ty, tm, tday := now.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC).After(time.Date(ty, tm, tday, 0, 0, 0, 0, time.UTC))
}

func (s *Service) newNote(requestID, authorID, text string, at time.Time) Note {
	return Note{
		ID:        uuid.NewString(),
		RequestID: requestID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: at,
	}
}

func (s *Service) logTransition(req Request, action Action, actorID string) {
	s.log.Info("adoption request transition",
		zap.String("request_id", req.ID),
		zap.String("animal_id", req.AnimalID),
		zap.String("action", string(action)),
		zap.String("state", string(req.State)),
		zap.String("actor_id", actorID))
}

func updateRequest(ctx context.Context, tx Tx, req Request) error {
	n, err := tx.UpdateRequest(ctx, req)
	if err != nil {
		return err
	}
	if n != 1 {
		return apperr.Inconsistent(fmt.Sprintf("update of adoption request %s affected %d rows", req.ID, n), nil)
	}
	return nil
}

// moveAnimal aplica el cambio en el registro y relee el animal para confirmar
// que quedó en el estado pedido.
func moveAnimal(ctx context.Context, tx Tx, animalID string, state animals.State, actorID, comment string, at time.Time) error {
	_, span := tracer.Start(ctx, "adoptions.moveAnimal")
	span.SetAttributes(attribute.String("animal.id", animalID), attribute.String("animal.state", string(state)))
	defer span.End()

	if _, err := animals.ApplyInTx(ctx, tx.Animals(), animalID, animals.StateChange{
		State:   state,
		ActorID: actorID,
		Comment: comment,
	}, at); err != nil {
		return err
	}

	got, err := tx.Animals().LockByID(ctx, animalID)
	if err != nil {
		return apperr.Inconsistent("animal disappeared during adoption update", err)
	}
	if got.CurrentState != state {
		e := apperr.Inconsistent(fmt.Sprintf("animal %s is %s after writing %s", animalID, got.CurrentState, state), nil)
		e.Metadata = map[string]string{"animal_id": animalID, "expected_state": string(state), "current_state": string(got.CurrentState)}
		return e
	}
	return nil
}
