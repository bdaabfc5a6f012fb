package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"animal-shelter/internal/domain/adoptions"
	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"
)

type AdoptionRepo struct {
	db *sql.DB
}

func NewAdoptionRepo(db *sql.DB) *AdoptionRepo {
	return &AdoptionRepo{db: db}
}

var _ adoptions.Repository = (*AdoptionRepo)(nil)

const requestColumns = `
	id, animal_id, applicant_id, motivation, submitted_at,
	state, reviewer_id, reviewed_at,
	rejection_reason, approval_comments, updated_at`

// queryer cubre *sql.DB y *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanRequest(row rowScanner) (adoptions.Request, error) {
	var r adoptions.Request
	var state string
	var reviewedAt sql.NullTime
	if err := row.Scan(
		&r.ID, &r.AnimalID, &r.ApplicantID, &r.Motivation, &r.SubmittedAt,
		&state, &r.ReviewerID, &reviewedAt,
		&r.RejectionReason, &r.ApprovalComments, &r.UpdatedAt,
	); err != nil {
		return adoptions.Request{}, err
	}
	r.State = adoptions.State(state)
	r.ReviewedAt = fromNullTime(reviewedAt)
	return r, nil
}

func loadNotes(ctx context.Context, q queryer, requestID string) ([]adoptions.Note, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, request_id, author_id, text, created_at
		FROM adoption_request_notes
		WHERE request_id = $1
		ORDER BY seq ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adoptions.Note
	for rows.Next() {
		var n adoptions.Note
		if err := rows.Scan(&n.ID, &n.RequestID, &n.AuthorID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func getRequest(ctx context.Context, q queryer, id string, lock bool) (adoptions.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM adoption_requests WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	r, err := scanRequest(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return adoptions.Request{}, apperr.NotFound("adoption request", id)
	}
	if err != nil {
		return adoptions.Request{}, err
	}
	r.Notes, err = loadNotes(ctx, q, id)
	if err != nil {
		return adoptions.Request{}, err
	}
	return r, nil
}

func (r *AdoptionRepo) GetRequest(ctx context.Context, id string) (adoptions.Request, error) {
	return getRequest(ctx, r.db, id, false)
}

func (r *AdoptionRepo) ListRequests(ctx context.Context, filter adoptions.ListFilter) ([]adoptions.Request, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + requestColumns + ` FROM adoption_requests WHERE TRUE`)

	args := []any{}
	if filter.AnimalID != "" {
		args = append(args, filter.AnimalID)
		sb.WriteString(fmt.Sprintf(" AND animal_id = $%d", len(args)))
	}
	if filter.ApplicantID != "" {
		args = append(args, filter.ApplicantID)
		sb.WriteString(fmt.Sprintf(" AND applicant_id = $%d", len(args)))
	}
	if len(filter.States) > 0 {
		sb.WriteString(" AND state IN (" + placeholders(len(args)+1, len(filter.States)) + ")")
		for _, s := range filter.States {
			args = append(args, string(s))
		}
	}
	args = append(args, limitOr(filter.Limit, 50))
	sb.WriteString(fmt.Sprintf(" ORDER BY submitted_at DESC, id ASC LIMIT $%d", len(args)))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	out := make([]adoptions.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Notes, err = loadNotes(ctx, r.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *AdoptionRepo) GetAdoptionByRequest(ctx context.Context, requestID string) (adoptions.Adoption, error) {
	var a adoptions.Adoption
	err := r.db.QueryRowContext(ctx, `
		SELECT id, request_id, animal_id, adopter_id, adoption_date,
		       delivery_place, observations, recorded_by, created_at
		FROM adoptions
		WHERE request_id = $1
	`, requestID).Scan(
		&a.ID, &a.RequestID, &a.AnimalID, &a.AdopterID, &a.AdoptionDate,
		&a.DeliveryPlace, &a.Observations, &a.RecordedBy, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return adoptions.Adoption{}, apperr.NotFound("adoption", requestID)
	}
	return a, err
}

func (r *AdoptionRepo) WithinTx(ctx context.Context, fn func(tx adoptions.Tx) error) error {
	return withinTx(ctx, r.db, func(t *pgTx) error {
		return fn(t)
	})
}

// --- adoptions.Tx ---

func (t *pgTx) Animals() animals.Tx {
	return t
}

func (t *pgTx) CreateRequest(ctx context.Context, req adoptions.Request) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO adoption_requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		req.ID, req.AnimalID, req.ApplicantID, req.Motivation, req.SubmittedAt,
		string(req.State), req.ReviewerID, toNullTime(req.ReviewedAt),
		req.RejectionReason, req.ApprovalComments, req.UpdatedAt,
	)
	return err
}

func (t *pgTx) LockRequest(ctx context.Context, id string) (adoptions.Request, error) {
	return getRequest(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateRequest(ctx context.Context, req adoptions.Request) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE adoption_requests
		SET state = $2,
		    reviewer_id = $3,
		    reviewed_at = $4,
		    rejection_reason = $5,
		    approval_comments = $6,
		    updated_at = $7
		WHERE id = $1
	`,
		req.ID, string(req.State), req.ReviewerID, toNullTime(req.ReviewedAt),
		req.RejectionReason, req.ApprovalComments, req.UpdatedAt,
	)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (t *pgTx) AppendNote(ctx context.Context, n adoptions.Note) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO adoption_request_notes (id, request_id, author_id, text, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, n.ID, n.RequestID, n.AuthorID, n.Text, n.CreatedAt)
	return err
}

func (t *pgTx) ApprovedForAnimal(ctx context.Context, animalID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id FROM adoption_requests
		WHERE animal_id = $1 AND state = 'approved'
		ORDER BY id
	`, animalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 1)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *pgTx) OpenRequestExists(ctx context.Context, animalID, applicantID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM adoption_requests
			WHERE animal_id = $1 AND applicant_id = $2
			  AND state IN ('pending_review', 'under_review', 'approved')
		)
	`, animalID, applicantID).Scan(&exists)
	return exists, err
}

func (t *pgTx) AdoptionExists(ctx context.Context, requestID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM adoptions WHERE request_id = $1)`, requestID).Scan(&exists)
	return exists, err
}

func (t *pgTx) CreateAdoption(ctx context.Context, a adoptions.Adoption) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO adoptions (
			id, request_id, animal_id, adopter_id, adoption_date,
			delivery_place, observations, recorded_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		a.ID, a.RequestID, a.AnimalID, a.AdopterID, a.AdoptionDate,
		a.DeliveryPlace, a.Observations, a.RecordedBy, a.CreatedAt,
	)
	return mapError(err)
}
