package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"
)

type AnimalRepo struct {
	db *sql.DB
}

func NewAnimalRepo(db *sql.DB) *AnimalRepo {
	return &AnimalRepo{db: db}
}

var _ animals.Repository = (*AnimalRepo)(nil)

const animalColumns = `
	id, name, species, breed, sex, color, size,
	birth_date, microchip, notes,
	current_state, current_location_id,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnimal(row rowScanner) (animals.Animal, error) {
	var a animals.Animal
	var species, sex, size, state string
	var bd sql.NullTime
	if err := row.Scan(
		&a.ID, &a.Name, &species, &a.Breed, &sex, &a.Color, &size,
		&bd, &a.Microchip, &a.Notes,
		&state, &a.CurrentLocationID,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return animals.Animal{}, err
	}
	a.Species = animals.Species(species)
	a.Sex = animals.Sex(sex)
	a.Size = animals.Size(size)
	a.CurrentState = animals.State(state)
	a.BirthDate = fromNullTime(bd)
	return a, nil
}

func (r *AnimalRepo) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	a, err := scanAnimal(r.db.QueryRowContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return animals.Animal{}, apperr.NotFound("animal", id)
	}
	return a, err
}

func (r *AnimalRepo) List(ctx context.Context, filter animals.ListFilter) ([]animals.Animal, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + animalColumns + ` FROM animals WHERE TRUE`)

	args := []any{}
	if len(filter.States) > 0 {
		sb.WriteString(" AND current_state IN (" + placeholders(len(args)+1, len(filter.States)) + ")")
		for _, s := range filter.States {
			args = append(args, string(s))
		}
	}
	if filter.Species != "" {
		args = append(args, string(filter.Species))
		sb.WriteString(fmt.Sprintf(" AND species = $%d", len(args)))
	}
	args = append(args, limitOr(filter.Limit, 50))
	sb.WriteString(fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d", len(args)))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]animals.Animal, 0)
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AnimalRepo) History(ctx context.Context, animalID string) ([]animals.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, animal_id, state, location_id, actor_id, comment, recorded_at
		FROM animal_history
		WHERE animal_id = $1
		ORDER BY seq ASC
	`, animalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]animals.HistoryEntry, 0)
	for rows.Next() {
		var e animals.HistoryEntry
		var state string
		if err := rows.Scan(&e.ID, &e.AnimalID, &state, &e.LocationID, &e.ActorID, &e.Comment, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.State = animals.State(state)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *AnimalRepo) WithinTx(ctx context.Context, fn func(tx animals.Tx) error) error {
	return withinTx(ctx, r.db, func(t *pgTx) error {
		return fn(t)
	})
}

// --- animals.Tx ---

func (t *pgTx) Create(ctx context.Context, a animals.Animal, first animals.HistoryEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO animals (`+animalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		a.ID, a.Name, string(a.Species), a.Breed, string(a.Sex), a.Color, string(a.Size),
		toNullTime(a.BirthDate), a.Microchip, a.Notes,
		string(a.CurrentState), a.CurrentLocationID,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return t.insertHistory(ctx, first)
}

func (t *pgTx) LockByID(ctx context.Context, id string) (animals.Animal, error) {
	a, err := scanAnimal(t.tx.QueryRowContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return animals.Animal{}, apperr.NotFound("animal", id)
	}
	return a, err
}

func (t *pgTx) AppendHistory(ctx context.Context, a animals.Animal, e animals.HistoryEntry) error {
	if e.AnimalID != a.ID || e.State != a.CurrentState || e.LocationID != a.CurrentLocationID {
		return apperr.Inconsistent(fmt.Sprintf("history entry does not match animal %s", a.ID), nil)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE animals
		SET current_state = $2, current_location_id = $3, updated_at = $4
		WHERE id = $1
	`, a.ID, string(a.CurrentState), a.CurrentLocationID, a.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return apperr.Inconsistent(fmt.Sprintf("update of animal %s affected %d rows", a.ID, n), nil)
	}
	return t.insertHistory(ctx, e)
}

func (t *pgTx) insertHistory(ctx context.Context, e animals.HistoryEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO animal_history (id, animal_id, state, location_id, actor_id, comment, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.AnimalID, string(e.State), e.LocationID, e.ActorID, e.Comment, e.RecordedAt)
	return err
}
