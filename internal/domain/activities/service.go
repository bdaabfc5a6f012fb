package activities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"animal-shelter/internal/platform/apperr"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxSeriesOccurrences limita cuántas actividades genera una regla de recurrencia.
const MaxSeriesOccurrences = 52

var tracer = otel.Tracer("animal-shelter/activities")

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

func validateSpec(spec Spec) error {
	if strings.TrimSpace(spec.Title) == "" {
		return apperr.Validation("title", "title is required")
	}
	if spec.StartsAt.IsZero() || spec.EndsAt.IsZero() {
		return apperr.Validation("starts_at", "schedule is required")
	}
	if !spec.EndsAt.After(spec.StartsAt) {
		return apperr.Validation("ends_at", "end time must be after start time")
	}
	if spec.RequiredVolunteers < 1 {
		return apperr.Validation("required_volunteers", "at least one volunteer is required")
	}
	return nil
}

func (s *Service) newActivity(actorID string, spec Spec, now time.Time) Activity {
	return Activity{
		ID:                 uuid.NewString(),
		Title:              strings.TrimSpace(spec.Title),
		Description:        strings.TrimSpace(spec.Description),
		Location:           strings.TrimSpace(spec.Location),
		StartsAt:           spec.StartsAt,
		EndsAt:             spec.EndsAt,
		RequiredVolunteers: spec.RequiredVolunteers,
		IsUrgent:           spec.IsUrgent,
		CreatedBy:          actorID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *Service) CreateActivity(ctx context.Context, actorID string, spec Spec) (Activity, error) {
	ctx, span := tracer.Start(ctx, "activities.CreateActivity")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Activity{}, apperr.Validation("actor_id", "actor is required")
	}
	if err := validateSpec(spec); err != nil {
		return Activity{}, err
	}

	a := s.newActivity(actorID, spec, s.now())
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		return tx.CreateActivity(ctx, a)
	})
	if err != nil {
		return Activity{}, err
	}

	s.log.Info("activity created",
		zap.String("activity_id", a.ID),
		zap.Int("required_volunteers", a.RequiredVolunteers),
		zap.Bool("urgent", a.IsUrgent))
	return a, nil
}

// CreateSeries expande una RRULE (RFC 5545) con DTSTART = spec.StartsAt.
// Cada ocurrencia conserva la duración de spec y todas comparten SeriesID.
func (s *Service) CreateSeries(ctx context.Context, actorID string, spec Spec, rule string) ([]Activity, error) {
	ctx, span := tracer.Start(ctx, "activities.CreateSeries")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, apperr.Validation("actor_id", "actor is required")
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	if rule == "" {
		return nil, apperr.Validation("rrule", "recurrence rule is required")
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "invalid recurrence rule", err)
	}
	r.DTStart(spec.StartsAt)

	duration := spec.EndsAt.Sub(spec.StartsAt)
	seriesID := uuid.NewString()
	now := s.now()

	out := make([]Activity, 0)
	next := r.Iterator()
	for {
		start, ok := next()
		if !ok {
			break
		}
		if len(out) == MaxSeriesOccurrences {
			return nil, apperr.WithMetadata(apperr.CodeValidation,
				fmt.Sprintf("recurrence rule yields more than %d occurrences", MaxSeriesOccurrences),
				map[string]string{"field": "rrule"})
		}
		occ := spec
		occ.StartsAt = start
		occ.EndsAt = start.Add(duration)

		a := s.newActivity(actorID, occ, now)
		a.SeriesID = seriesID
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, apperr.Validation("rrule", "recurrence rule yields no occurrences")
	}

	err = s.repo.WithinTx(ctx, func(tx Tx) error {
		for _, a := range out {
			if err := tx.CreateActivity(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("series.occurrences", len(out)))
	s.log.Info("activity series created",
		zap.String("series_id", seriesID),
		zap.Int("occurrences", len(out)))
	return out, nil
}

// UpdateActivity no puede bajar el cupo por debajo de las inscripciones confirmadas.
func (s *Service) UpdateActivity(ctx context.Context, activityID string, spec Spec) (Activity, error) {
	ctx, span := tracer.Start(ctx, "activities.UpdateActivity")
	defer span.End()

	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return Activity{}, apperr.Validation("activity_id", "activity id is required")
	}
	if err := validateSpec(spec); err != nil {
		return Activity{}, err
	}

	var out Activity
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		current, err := tx.LockActivity(ctx, activityID)
		if err != nil {
			return err
		}
		confirmed, err := tx.CountConfirmed(ctx, activityID)
		if err != nil {
			return err
		}
		if spec.RequiredVolunteers < confirmed {
			return apperr.WithMetadata(apperr.CodeValidation,
				fmt.Sprintf("required volunteers cannot be lower than the %d confirmed enrollments", confirmed),
				map[string]string{"field": "required_volunteers", "confirmed": fmt.Sprint(confirmed)})
		}

		current.Title = strings.TrimSpace(spec.Title)
		current.Description = strings.TrimSpace(spec.Description)
		current.Location = strings.TrimSpace(spec.Location)
		current.StartsAt = spec.StartsAt
		current.EndsAt = spec.EndsAt
		current.RequiredVolunteers = spec.RequiredVolunteers
		current.IsUrgent = spec.IsUrgent
		current.UpdatedAt = s.now()

		n, err := tx.UpdateActivity(ctx, current)
		if err != nil {
			return err
		}
		if n != 1 {
			return apperr.Inconsistent(fmt.Sprintf("update of activity %s affected %d rows", activityID, n), nil)
		}
		out = current
		return nil
	})
	if err != nil {
		return Activity{}, err
	}
	return out, nil
}

// Enroll chequea cupo e incrementa el contador en un solo paso atómico.
func (s *Service) Enroll(ctx context.Context, activityID, volunteerID string) (Enrollment, error) {
	ctx, span := tracer.Start(ctx, "activities.Enroll")
	defer span.End()
	span.SetAttributes(attribute.String("activity.id", activityID))

	activityID = strings.TrimSpace(activityID)
	volunteerID = strings.TrimSpace(volunteerID)
	if activityID == "" {
		return Enrollment{}, apperr.Validation("activity_id", "activity id is required")
	}
	if volunteerID == "" {
		return Enrollment{}, apperr.Validation("volunteer_id", "volunteer is required")
	}

	now := s.now()
	e := Enrollment{
		ID:          uuid.NewString(),
		ActivityID:  activityID,
		VolunteerID: volunteerID,
		Status:      EnrollmentConfirmed,
		EnrolledAt:  now,
	}

	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		a, err := tx.LockActivity(ctx, activityID)
		if err != nil {
			return err
		}
		if !now.Before(a.EndsAt) {
			return apperr.Validation("activity_id", "activity has already ended")
		}

		dup, err := tx.HasConfirmed(ctx, activityID, volunteerID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.AlreadyEnrolled(activityID, volunteerID)
		}

		if a.Full() {
			return apperr.CapacityExceeded(activityID, a.RequiredVolunteers)
		}
		ok, err := tx.IncrementEnrollment(ctx, activityID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.CapacityExceeded(activityID, a.RequiredVolunteers)
		}
		return tx.CreateEnrollment(ctx, e)
	})
	if err != nil {
		s.log.Debug("enrollment refused",
			zap.String("activity_id", activityID),
			zap.String("volunteer_id", volunteerID),
			zap.Error(err))
		return Enrollment{}, err
	}

	s.log.Info("volunteer enrolled",
		zap.String("enrollment_id", e.ID),
		zap.String("activity_id", activityID),
		zap.String("volunteer_id", volunteerID))
	return e, nil
}

// CancelEnrollment: solo el dueño y solo si está confirmada; si no, NotFound.
func (s *Service) CancelEnrollment(ctx context.Context, enrollmentID, volunteerID string) (Enrollment, error) {
	ctx, span := tracer.Start(ctx, "activities.CancelEnrollment")
	defer span.End()

	enrollmentID = strings.TrimSpace(enrollmentID)
	volunteerID = strings.TrimSpace(volunteerID)
	if enrollmentID == "" {
		return Enrollment{}, apperr.Validation("enrollment_id", "enrollment id is required")
	}
	if volunteerID == "" {
		return Enrollment{}, apperr.Validation("volunteer_id", "volunteer is required")
	}

	snapshot, err := s.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if snapshot.VolunteerID != volunteerID {
		return Enrollment{}, apperr.NotFound("enrollment", enrollmentID)
	}

	var out Enrollment
	err = s.repo.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.LockActivity(ctx, snapshot.ActivityID); err != nil {
			return err
		}
		e, err := tx.LockEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if e.VolunteerID != volunteerID || e.Status != EnrollmentConfirmed {
			return apperr.NotFound("enrollment", enrollmentID)
		}

		now := s.now()
		e.Status = EnrollmentCancelled
		e.CancelledAt = &now
		n, err := tx.UpdateEnrollment(ctx, e)
		if err != nil {
			return err
		}
		if n != 1 {
			return apperr.Inconsistent(fmt.Sprintf("update of enrollment %s affected %d rows", e.ID, n), nil)
		}

		ok, err := tx.DecrementEnrollment(ctx, e.ActivityID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Inconsistent(fmt.Sprintf("activity %s enrollment counter already at zero", e.ActivityID), nil)
		}
		out = e
		return nil
	})
	if err != nil {
		return Enrollment{}, err
	}

	s.log.Info("enrollment cancelled",
		zap.String("enrollment_id", out.ID),
		zap.String("activity_id", out.ActivityID),
		zap.String("volunteer_id", volunteerID))
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Activity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Activity{}, apperr.Validation("activity_id", "activity id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Activity, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) ListEnrollments(ctx context.Context, activityID string) ([]Enrollment, error) {
	if _, err := s.Get(ctx, activityID); err != nil {
		return nil, err
	}
	return s.repo.ListEnrollments(ctx, strings.TrimSpace(activityID))
}

func (s *Service) ListByVolunteer(ctx context.Context, volunteerID string) ([]Enrollment, error) {
	volunteerID = strings.TrimSpace(volunteerID)
	if volunteerID == "" {
		return nil, apperr.Validation("volunteer_id", "volunteer is required")
	}
	return s.repo.ListByVolunteer(ctx, volunteerID)
}
