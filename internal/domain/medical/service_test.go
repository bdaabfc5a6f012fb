package medical_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"animal-shelter/internal/adapters/storage/memory"
	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/domain/medical"
	"animal-shelter/internal/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*medical.Service, *animals.Service, animals.Animal) {
	t.Helper()
	store := memory.NewStore()
	animalSvc := animals.NewService(memory.NewAnimalRepo(store), nil)
	a, err := animalSvc.Intake(context.Background(), "coord-1", animals.IntakeInput{
		Name: "Luna", Species: animals.SpeciesCat, LocationID: "cattery",
	})
	require.NoError(t, err)
	return medical.NewService(memory.NewMedicalRepo(store), animalSvc, nil), animalSvc, a
}

func TestCreate_DoesNotTouchAnimalState(t *testing.T) {
	svc, animalSvc, a := setup(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, a.ID, "vet-1", medical.CreateInput{
		Kind:       medical.KindVaccine,
		OccurredAt: time.Now().Add(-time.Hour),
		Title:      " Rabies ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rabies", r.Title)
	assert.Equal(t, medical.StatusActive, r.Status)

	got, err := animalSvc.GetAnimal(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.CurrentState, got.CurrentState)

	h, err := animalSvc.History(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, h, 1)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, a := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, a.ID, "vet-1", medical.CreateInput{Kind: "magic", OccurredAt: time.Now()})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.Create(ctx, a.ID, "vet-1", medical.CreateInput{Kind: medical.KindCheckup})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.Create(ctx, a.ID, "vet-1", medical.CreateInput{Kind: medical.KindCheckup, OccurredAt: time.Now().Add(time.Hour)})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.Create(ctx, "missing", "vet-1", medical.CreateInput{Kind: medical.KindCheckup, OccurredAt: time.Now()})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListByAnimal_FiltersAndVoid(t *testing.T) {
	svc, _, a := setup(t)
	ctx := context.Background()
	base := time.Now().Add(-48 * time.Hour)

	checkup, err := svc.Create(ctx, a.ID, "vet-1", medical.CreateInput{Kind: medical.KindCheckup, OccurredAt: base, Title: "Intake exam"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, a.ID, "vet-1", medical.CreateInput{Kind: medical.KindDeworming, OccurredAt: base.Add(time.Hour), Notes: "Oral tablet"})
	require.NoError(t, err)

	all, err := svc.ListByAnimal(ctx, a.ID, medical.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, medical.KindDeworming, all[0].Kind, "most recent first")

	byKind, err := svc.ListByAnimal(ctx, a.ID, medical.ListFilter{Kinds: []medical.Kind{medical.KindCheckup}})
	require.NoError(t, err)
	require.Len(t, byKind, 1)

	byText, err := svc.ListByAnimal(ctx, a.ID, medical.ListFilter{Query: "tablet"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, medical.KindDeworming, byText[0].Kind)

	voided, err := svc.Void(ctx, checkup.ID)
	require.NoError(t, err)
	assert.Equal(t, medical.StatusVoided, voided.Status)

	active, err := svc.ListByAnimal(ctx, a.ID, medical.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	withVoided, err := svc.ListByAnimal(ctx, a.ID, medical.ListFilter{IncludeVoided: true})
	require.NoError(t, err)
	assert.Len(t, withVoided, 2)

	_, err = svc.ListByAnimal(ctx, "missing", medical.ListFilter{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
