package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"animal-shelter/internal/domain/activities"
	"animal-shelter/internal/domain/adoptions"
	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAnimal(t *testing.T, s *Store, id string, state animals.State) animals.Animal {
	t.Helper()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	a := animals.Animal{ID: id, Name: "Luna", Species: animals.SpeciesDog, CurrentState: state, CurrentLocationID: "kennel-1", CreatedAt: now, UpdatedAt: now}
	err := NewAnimalRepo(s).WithinTx(context.Background(), func(tx animals.Tx) error {
		return tx.Create(context.Background(), a, animals.HistoryEntry{
			ID: id + "-h0", AnimalID: id, State: state, LocationID: "kennel-1", ActorID: "u1", RecordedAt: now,
		})
	})
	require.NoError(t, err)
	return a
}

func TestWithinTx_RollsBackEveryWriteOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedAnimal(t, s, "a1", animals.StateAvailable)

	boom := errors.New("boom")
	err := NewAdoptionRepo(s).WithinTx(ctx, func(tx adoptions.Tx) error {
		require.NoError(t, tx.CreateRequest(ctx, adoptions.Request{ID: "r1", AnimalID: a.ID, ApplicantID: "u2", State: adoptions.StateApproved}))
		require.NoError(t, tx.AppendNote(ctx, adoptions.Note{ID: "n1", RequestID: "r1", Text: "x"}))

		moved := a
		moved.CurrentState = animals.StateInAdoptionProcess
		require.NoError(t, tx.Animals().AppendHistory(ctx, moved, animals.HistoryEntry{
			ID: "h1", AnimalID: a.ID, State: animals.StateInAdoptionProcess, LocationID: a.CurrentLocationID,
		}))
		require.NoError(t, tx.CreateAdoption(ctx, adoptions.Adoption{ID: "ad1", RequestID: "r1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := NewAnimalRepo(s).GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, animals.StateAvailable, got.CurrentState)

	h, err := NewAnimalRepo(s).History(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, h, 1)

	_, err = NewAdoptionRepo(s).GetRequest(ctx, "r1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = NewAdoptionRepo(s).GetAdoptionByRequest(ctx, "r1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedAnimal(t, s, "a1", animals.StateAvailable)

	assert.Panics(t, func() {
		_ = NewActivityRepo(s).WithinTx(ctx, func(tx activities.Tx) error {
			_ = tx.CreateActivity(ctx, activities.Activity{ID: "x1", RequiredVolunteers: 1})
			panic("kaboom")
		})
	})

	_, err := NewActivityRepo(s).GetByID(ctx, "x1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// El mutex quedó liberado.
	_, err = NewAnimalRepo(s).GetByID(ctx, "a1")
	require.NoError(t, err)
}

func TestAdjustEnrollment_StaysWithinBounds(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewActivityRepo(s)

	err := repo.WithinTx(ctx, func(tx activities.Tx) error {
		return tx.CreateActivity(ctx, activities.Activity{ID: "x1", RequiredVolunteers: 1})
	})
	require.NoError(t, err)

	err = repo.WithinTx(ctx, func(tx activities.Tx) error {
		ok, err := tx.DecrementEnrollment(ctx, "x1")
		require.NoError(t, err)
		assert.False(t, ok, "counter cannot go below zero")

		ok, err = tx.IncrementEnrollment(ctx, "x1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.IncrementEnrollment(ctx, "x1")
		require.NoError(t, err)
		assert.False(t, ok, "counter cannot exceed capacity")
		return nil
	})
	require.NoError(t, err)

	a, err := repo.GetByID(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.CurrentEnrollment)
}

func TestUpdateRequest_RejectsSecondApprovedForSameAnimal(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedAnimal(t, s, "a1", animals.StateAvailable)
	repo := NewAdoptionRepo(s)

	err := repo.WithinTx(ctx, func(tx adoptions.Tx) error {
		require.NoError(t, tx.CreateRequest(ctx, adoptions.Request{ID: "r1", AnimalID: "a1", State: adoptions.StateApproved}))
		require.NoError(t, tx.CreateRequest(ctx, adoptions.Request{ID: "r2", AnimalID: "a1", State: adoptions.StatePendingReview}))
		return nil
	})
	require.NoError(t, err)

	err = repo.WithinTx(ctx, func(tx adoptions.Tx) error {
		_, err := tx.UpdateRequest(ctx, adoptions.Request{ID: "r2", AnimalID: "a1", State: adoptions.StateApproved})
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestGetRequest_ReturnsNotesCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedAnimal(t, s, "a1", animals.StateAvailable)
	repo := NewAdoptionRepo(s)

	err := repo.WithinTx(ctx, func(tx adoptions.Tx) error {
		require.NoError(t, tx.CreateRequest(ctx, adoptions.Request{ID: "r1", AnimalID: "a1", State: adoptions.StatePendingReview}))
		return tx.AppendNote(ctx, adoptions.Note{ID: "n1", RequestID: "r1", Text: "first"})
	})
	require.NoError(t, err)

	req, err := repo.GetRequest(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, req.Notes, 1)
	req.Notes[0].Text = "changed"

	again, err := repo.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "first", again.Notes[0].Text)
}
