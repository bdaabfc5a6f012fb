package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"animal-shelter/internal/domain/medical"
	"animal-shelter/internal/platform/apperr"
)

type MedicalRepo struct {
	db *sql.DB
}

func NewMedicalRepo(db *sql.DB) *MedicalRepo {
	return &MedicalRepo{db: db}
}

var _ medical.Repository = (*MedicalRepo)(nil)

const recordColumns = `
	id, animal_id, kind, occurred_at, recorded_at,
	title, notes, vet_id, status`

func scanRecord(row rowScanner) (medical.Record, error) {
	var r medical.Record
	var kind, status string
	if err := row.Scan(
		&r.ID, &r.AnimalID, &kind, &r.OccurredAt, &r.RecordedAt,
		&r.Title, &r.Notes, &r.VetID, &status,
	); err != nil {
		return medical.Record{}, err
	}
	r.Kind = medical.Kind(kind)
	r.Status = medical.Status(status)
	return r, nil
}

func (r *MedicalRepo) Create(ctx context.Context, rec medical.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medical_records (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		rec.ID, rec.AnimalID, string(rec.Kind), rec.OccurredAt, rec.RecordedAt,
		rec.Title, rec.Notes, rec.VetID, string(rec.Status),
	)
	return mapError(err)
}

func (r *MedicalRepo) GetByID(ctx context.Context, id string) (medical.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM medical_records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return medical.Record{}, apperr.NotFound("medical record", id)
	}
	return rec, err
}

func (r *MedicalRepo) ListByAnimal(ctx context.Context, animalID string, filter medical.ListFilter) ([]medical.Record, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + recordColumns + ` FROM medical_records WHERE animal_id = $1`)
	args := []any{animalID}

	if !filter.IncludeVoided {
		sb.WriteString(" AND status = 'active'")
	}
	if len(filter.Kinds) > 0 {
		sb.WriteString(" AND kind IN (" + placeholders(len(args)+1, len(filter.Kinds)) + ")")
		for _, k := range filter.Kinds {
			args = append(args, string(k))
		}
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		sb.WriteString(fmt.Sprintf(" AND occurred_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		sb.WriteString(fmt.Sprintf(" AND occurred_at <= $%d", len(args)))
	}
	// q: búsqueda simple en title + notes
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		sb.WriteString(fmt.Sprintf(" AND (title ILIKE $%d OR notes ILIKE $%d)", len(args), len(args)))
	}
	args = append(args, limitOr(filter.Limit, 50))
	sb.WriteString(fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d", len(args)))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medical.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *MedicalRepo) Void(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE medical_records SET status = 'voided' WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("medical record", id)
	}
	return nil
}
