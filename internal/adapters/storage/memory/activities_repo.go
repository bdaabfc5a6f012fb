package memory

import (
	"context"
	"fmt"
	"sort"

	"animal-shelter/internal/domain/activities"
	"animal-shelter/internal/platform/apperr"
)

type ActivityRepo struct {
	s *Store
}

func NewActivityRepo(s *Store) *ActivityRepo {
	return &ActivityRepo{s: s}
}

var _ activities.Repository = (*ActivityRepo)(nil)

func (r *ActivityRepo) GetByID(ctx context.Context, id string) (activities.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.activities[id]
	if !ok {
		return activities.Activity{}, apperr.NotFound("activity", id)
	}
	return a, nil
}

func (r *ActivityRepo) List(ctx context.Context, filter activities.ListFilter) ([]activities.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]activities.Activity, 0)
	for _, a := range r.s.activities {
		if filter.From != nil && a.StartsAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.StartsAt.After(*filter.To) {
			continue
		}
		if filter.UrgentOnly && !a.IsUrgent {
			continue
		}
		if filter.OpenOnly && a.Full() {
			continue
		}
		out = append(out, a)
	}

	// Próximas primero
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})

	if limit := limitOr(filter.Limit, 100); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActivityRepo) GetEnrollment(ctx context.Context, id string) (activities.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.enrollments[id]
	if !ok {
		return activities.Enrollment{}, apperr.NotFound("enrollment", id)
	}
	return e, nil
}

func (r *ActivityRepo) ListEnrollments(ctx context.Context, activityID string) ([]activities.Enrollment, error) {
	return r.listEnrollments(func(e activities.Enrollment) bool { return e.ActivityID == activityID }), nil
}

func (r *ActivityRepo) ListByVolunteer(ctx context.Context, volunteerID string) ([]activities.Enrollment, error) {
	return r.listEnrollments(func(e activities.Enrollment) bool { return e.VolunteerID == volunteerID }), nil
}

func (r *ActivityRepo) listEnrollments(keep func(activities.Enrollment) bool) []activities.Enrollment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]activities.Enrollment, 0)
	for _, e := range r.s.enrollments {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnrolledAt.Equal(out[j].EnrolledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnrolledAt.Before(out[j].EnrolledAt)
	})
	return out
}

func (r *ActivityRepo) WithinTx(ctx context.Context, fn func(tx activities.Tx) error) error {
	return r.s.withinTx(ctx, func(t *txn) error {
		return fn(t)
	})
}

// --- activities.Tx ---

func (t *txn) CreateActivity(ctx context.Context, a activities.Activity) error {
	if a.ID == "" {
		return fmt.Errorf("activity id required")
	}
	if _, exists := t.s.activities[a.ID]; exists {
		return apperr.Conflict("activity already exists", map[string]string{"activity_id": a.ID})
	}
	t.s.activities[a.ID] = a
	t.onRollback(func() { delete(t.s.activities, a.ID) })
	return nil
}

func (t *txn) LockActivity(ctx context.Context, id string) (activities.Activity, error) {
	a, ok := t.s.activities[id]
	if !ok {
		return activities.Activity{}, apperr.NotFound("activity", id)
	}
	return a, nil
}

func (t *txn) UpdateActivity(ctx context.Context, a activities.Activity) (int64, error) {
	prev, ok := t.s.activities[a.ID]
	if !ok {
		return 0, nil
	}
	if a.RequiredVolunteers < prev.CurrentEnrollment {
		return 0, apperr.Validation("required_volunteers", "required volunteers below current enrollment")
	}
	a.CurrentEnrollment = prev.CurrentEnrollment
	t.s.activities[a.ID] = a
	t.onRollback(func() { t.s.activities[a.ID] = prev })
	return 1, nil
}

func (t *txn) IncrementEnrollment(ctx context.Context, activityID string) (bool, error) {
	return t.adjustEnrollment(activityID, +1)
}

func (t *txn) DecrementEnrollment(ctx context.Context, activityID string) (bool, error) {
	return t.adjustEnrollment(activityID, -1)
}

// adjustEnrollment es el compare-and-set del contador: nunca sale de [0, RequiredVolunteers].
func (t *txn) adjustEnrollment(activityID string, delta int) (bool, error) {
	prev, ok := t.s.activities[activityID]
	if !ok {
		return false, apperr.NotFound("activity", activityID)
	}
	next := prev.CurrentEnrollment + delta
	if next < 0 || next > prev.RequiredVolunteers {
		return false, nil
	}

	a := prev
	a.CurrentEnrollment = next
	t.s.activities[activityID] = a
	t.onRollback(func() { t.s.activities[activityID] = prev })
	return true, nil
}

func (t *txn) CountConfirmed(ctx context.Context, activityID string) (int, error) {
	n := 0
	for _, e := range t.s.enrollments {
		if e.ActivityID == activityID && e.Status == activities.EnrollmentConfirmed {
			n++
		}
	}
	return n, nil
}

func (t *txn) HasConfirmed(ctx context.Context, activityID, volunteerID string) (bool, error) {
	for _, e := range t.s.enrollments {
		if e.ActivityID == activityID && e.VolunteerID == volunteerID && e.Status == activities.EnrollmentConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (t *txn) CreateEnrollment(ctx context.Context, e activities.Enrollment) error {
	if e.ID == "" {
		return fmt.Errorf("enrollment id required")
	}
	if _, exists := t.s.enrollments[e.ID]; exists {
		return apperr.Conflict("enrollment already exists", map[string]string{"enrollment_id": e.ID})
	}
	if e.Status == activities.EnrollmentConfirmed {
		if dup, _ := t.HasConfirmed(ctx, e.ActivityID, e.VolunteerID); dup {
			return apperr.AlreadyEnrolled(e.ActivityID, e.VolunteerID)
		}
	}
	t.s.enrollments[e.ID] = e
	t.onRollback(func() { delete(t.s.enrollments, e.ID) })
	return nil
}

func (t *txn) LockEnrollment(ctx context.Context, id string) (activities.Enrollment, error) {
	e, ok := t.s.enrollments[id]
	if !ok {
		return activities.Enrollment{}, apperr.NotFound("enrollment", id)
	}
	return e, nil
}

func (t *txn) UpdateEnrollment(ctx context.Context, e activities.Enrollment) (int64, error) {
	prev, ok := t.s.enrollments[e.ID]
	if !ok {
		return 0, nil
	}
	t.s.enrollments[e.ID] = e
	t.onRollback(func() { t.s.enrollments[e.ID] = prev })
	return 1, nil
}
