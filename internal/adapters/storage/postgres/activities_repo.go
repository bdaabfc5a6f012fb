package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"animal-shelter/internal/domain/activities"
	"animal-shelter/internal/platform/apperr"
)

type ActivityRepo struct {
	db *sql.DB
}

func NewActivityRepo(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

var _ activities.Repository = (*ActivityRepo)(nil)

const activityColumns = `
	id, title, description, location,
	starts_at, ends_at,
	required_volunteers, current_enrollment, is_urgent,
	series_id, created_by, created_at, updated_at`

const enrollmentColumns = `id, activity_id, volunteer_id, status, enrolled_at, cancelled_at`

func scanActivity(row rowScanner) (activities.Activity, error) {
	var a activities.Activity
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Location,
		&a.StartsAt, &a.EndsAt,
		&a.RequiredVolunteers, &a.CurrentEnrollment, &a.IsUrgent,
		&a.SeriesID, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanEnrollment(row rowScanner) (activities.Enrollment, error) {
	var e activities.Enrollment
	var status string
	var cancelledAt sql.NullTime
	if err := row.Scan(&e.ID, &e.ActivityID, &e.VolunteerID, &status, &e.EnrolledAt, &cancelledAt); err != nil {
		return activities.Enrollment{}, err
	}
	e.Status = activities.EnrollmentStatus(status)
	e.CancelledAt = fromNullTime(cancelledAt)
	return e, nil
}

func (r *ActivityRepo) GetByID(ctx context.Context, id string) (activities.Activity, error) {
	a, err := scanActivity(r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return activities.Activity{}, apperr.NotFound("activity", id)
	}
	return a, err
}

func (r *ActivityRepo) List(ctx context.Context, filter activities.ListFilter) ([]activities.Activity, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + activityColumns + ` FROM activities WHERE TRUE`)

	args := []any{}
	if filter.From != nil {
		args = append(args, *filter.From)
		sb.WriteString(fmt.Sprintf(" AND starts_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		sb.WriteString(fmt.Sprintf(" AND starts_at <= $%d", len(args)))
	}
	if filter.UrgentOnly {
		sb.WriteString(" AND is_urgent")
	}
	if filter.OpenOnly {
		sb.WriteString(" AND current_enrollment < required_volunteers")
	}
	args = append(args, limitOr(filter.Limit, 100))
	sb.WriteString(fmt.Sprintf(" ORDER BY starts_at ASC, id ASC LIMIT $%d", len(args)))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]activities.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ActivityRepo) GetEnrollment(ctx context.Context, id string) (activities.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return activities.Enrollment{}, apperr.NotFound("enrollment", id)
	}
	return e, err
}

func (r *ActivityRepo) ListEnrollments(ctx context.Context, activityID string) ([]activities.Enrollment, error) {
	return r.listEnrollments(ctx, "activity_id", activityID)
}

func (r *ActivityRepo) ListByVolunteer(ctx context.Context, volunteerID string) ([]activities.Enrollment, error) {
	return r.listEnrollments(ctx, "volunteer_id", volunteerID)
}

// column es siempre una constante interna.
func (r *ActivityRepo) listEnrollments(ctx context.Context, column, value string) ([]activities.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE `+column+` = $1
		ORDER BY enrolled_at ASC, id ASC
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]activities.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ActivityRepo) WithinTx(ctx context.Context, fn func(tx activities.Tx) error) error {
	return withinTx(ctx, r.db, func(t *pgTx) error {
		return fn(t)
	})
}

// --- activities.Tx ---

func (t *pgTx) CreateActivity(ctx context.Context, a activities.Activity) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		a.ID, a.Title, a.Description, a.Location,
		a.StartsAt, a.EndsAt,
		a.RequiredVolunteers, a.CurrentEnrollment, a.IsUrgent,
		a.SeriesID, a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	)
	return mapError(err)
}

func (t *pgTx) LockActivity(ctx context.Context, id string) (activities.Activity, error) {
	a, err := scanActivity(t.tx.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return activities.Activity{}, apperr.NotFound("activity", id)
	}
	return a, err
}

func (t *pgTx) UpdateActivity(ctx context.Context, a activities.Activity) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE activities
		SET title = $2,
		    description = $3,
		    location = $4,
		    starts_at = $5,
		    ends_at = $6,
		    required_volunteers = $7,
		    is_urgent = $8,
		    updated_at = $9
		WHERE id = $1
	`,
		a.ID, a.Title, a.Description, a.Location,
		a.StartsAt, a.EndsAt, a.RequiredVolunteers, a.IsUrgent, a.UpdatedAt,
	)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// IncrementEnrollment: el WHERE hace de compare-and-set; 0 filas => llena.
func (t *pgTx) IncrementEnrollment(ctx context.Context, activityID string) (bool, error) {
	return t.adjustEnrollment(ctx, `
		UPDATE activities
		SET current_enrollment = current_enrollment + 1
		WHERE id = $1 AND current_enrollment < required_volunteers
	`, activityID)
}

func (t *pgTx) DecrementEnrollment(ctx context.Context, activityID string) (bool, error) {
	return t.adjustEnrollment(ctx, `
		UPDATE activities
		SET current_enrollment = current_enrollment - 1
		WHERE id = $1 AND current_enrollment > 0
	`, activityID)
}

func (t *pgTx) adjustEnrollment(ctx context.Context, query, activityID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, query, activityID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *pgTx) CountConfirmed(ctx context.Context, activityID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT count(*) FROM enrollments
		WHERE activity_id = $1 AND status = 'confirmed'
	`, activityID).Scan(&n)
	return n, err
}

func (t *pgTx) HasConfirmed(ctx context.Context, activityID, volunteerID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE activity_id = $1 AND volunteer_id = $2 AND status = 'confirmed'
		)
	`, activityID, volunteerID).Scan(&exists)
	return exists, err
}

func (t *pgTx) CreateEnrollment(ctx context.Context, e activities.Enrollment) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.ID, e.ActivityID, e.VolunteerID, string(e.Status), e.EnrolledAt, toNullTime(e.CancelledAt))
	return mapError(err)
}

func (t *pgTx) LockEnrollment(ctx context.Context, id string) (activities.Enrollment, error) {
	e, err := scanEnrollment(t.tx.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return activities.Enrollment{}, apperr.NotFound("enrollment", id)
	}
	return e, err
}

func (t *pgTx) UpdateEnrollment(ctx context.Context, e activities.Enrollment) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE enrollments SET status = $2, cancelled_at = $3 WHERE id = $1
	`, e.ID, string(e.Status), toNullTime(e.CancelledAt))
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}
