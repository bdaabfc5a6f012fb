package adoptions_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"animal-shelter/internal/adapters/storage/memory"
	"animal-shelter/internal/domain/adoptions"
	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewer = "reviewer-5"

type env struct {
	svc     *adoptions.Service
	animals *animals.Service
	repo    *memory.AdoptionRepo
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := memory.NewStore()
	repo := memory.NewAdoptionRepo(store)
	return env{
		svc:     adoptions.NewService(repo, nil),
		animals: animals.NewService(memory.NewAnimalRepo(store), nil),
		repo:    repo,
	}
}

func (e env) animal(t *testing.T, state animals.State) animals.Animal {
	t.Helper()
	a, err := e.animals.Intake(context.Background(), "coord-1", animals.IntakeInput{
		Name:         "Luna",
		Species:      animals.SpeciesDog,
		LocationID:   "kennel-1",
		InitialState: state,
	})
	require.NoError(t, err)
	return a
}

func (e env) request(t *testing.T, animalID, applicantID string) adoptions.Request {
	t.Helper()
	r, err := e.svc.Submit(context.Background(), applicantID, adoptions.SubmitInput{AnimalID: animalID, Motivation: "big garden"})
	require.NoError(t, err)
	require.Equal(t, adoptions.StatePendingReview, r.State)
	return r
}

func (e env) animalState(t *testing.T, id string) animals.State {
	t.Helper()
	a, err := e.animals.GetAnimal(context.Background(), id)
	require.NoError(t, err)
	return a.CurrentState
}

func TestCanTransition_OnlyDocumentedEdges(t *testing.T) {
	states := []adoptions.State{
		adoptions.StatePendingReview, adoptions.StateUnderReview, adoptions.StateApproved,
		adoptions.StateRejected, adoptions.StateCompleted, adoptions.StateCancelled,
	}
	actions := []adoptions.Action{
		adoptions.ActionMarkUnderReview, adoptions.ActionApprove, adoptions.ActionReject,
		adoptions.ActionComplete, adoptions.ActionCancel,
	}
	legal := map[adoptions.State]map[adoptions.Action]adoptions.State{
		adoptions.StatePendingReview: {
			adoptions.ActionMarkUnderReview: adoptions.StateUnderReview,
			adoptions.ActionApprove:         adoptions.StateApproved,
			adoptions.ActionReject:          adoptions.StateRejected,
			adoptions.ActionCancel:          adoptions.StateCancelled,
		},
		adoptions.StateUnderReview: {
			adoptions.ActionApprove: adoptions.StateApproved,
			adoptions.ActionReject:  adoptions.StateRejected,
			adoptions.ActionCancel:  adoptions.StateCancelled,
		},
		adoptions.StateApproved: {
			adoptions.ActionComplete: adoptions.StateCompleted,
			adoptions.ActionCancel:   adoptions.StateCancelled,
		},
	}

	for _, from := range states {
		for _, action := range actions {
			to, ok := adoptions.CanTransition(from, action)
			want, wantOK := legal[from][action]
			assert.Equal(t, wantOK, ok, "%s --%s-->", from, action)
			assert.Equal(t, want, to, "%s --%s-->", from, action)
			if from.Terminal() {
				assert.False(t, ok, "terminal state %s must not transition", from)
			}
		}
	}
}

func TestIllegalTransitions_ReturnInvalidTransition(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")

	// complete desde pending_review
	_, _, err := e.svc.Complete(ctx, r.ID, reviewer, adoptions.CompleteInput{
		AdoptionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DeliveryPlace: "Shelter",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = e.svc.MarkUnderReview(ctx, r.ID, reviewer)
	require.NoError(t, err)

	// mark_under_review solo desde pending_review
	_, err = e.svc.MarkUnderReview(ctx, r.ID, reviewer)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeInvalidTransition, ae.Code)
	assert.Equal(t, "under_review", ae.Metadata["current_state"])
	assert.Equal(t, "mark_under_review", ae.Metadata["action"])

	_, err = e.svc.Approve(ctx, r.ID, reviewer, "ok")
	require.NoError(t, err)

	// rechazar una aprobada sigue siendo ilegal
	_, err = e.svc.Reject(ctx, r.ID, reviewer, "changed my mind", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, animals.StateInAdoptionProcess, e.animalState(t, a.ID))

	_, err = e.svc.Cancel(ctx, r.ID, reviewer, "withdrew")
	require.NoError(t, err)

	// terminal: nada sale de cancelled
	_, err = e.svc.Approve(ctx, r.ID, reviewer, "again")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	_, err = e.svc.Cancel(ctx, r.ID, reviewer, "again")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestScenario_ApproveThenComplete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")

	approved, err := e.svc.Approve(ctx, r.ID, reviewer, "ok")
	require.NoError(t, err)
	assert.Equal(t, adoptions.StateApproved, approved.State)
	assert.Equal(t, reviewer, approved.ReviewerID)
	require.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, "ok", approved.ApprovalComments)
	assert.Equal(t, animals.StateInAdoptionProcess, e.animalState(t, a.ID))

	adoption, completed, err := e.svc.Complete(ctx, r.ID, reviewer, adoptions.CompleteInput{
		AdoptionDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DeliveryPlace: "Shelter",
	})
	require.NoError(t, err)
	assert.Equal(t, adoptions.StateCompleted, completed.State)
	assert.Equal(t, "ok", completed.ApprovalComments, "kept for audit")
	assert.Equal(t, r.ID, adoption.RequestID)
	assert.Equal(t, "applicant-1", adoption.AdopterID)
	assert.Equal(t, animals.StateAdopted, e.animalState(t, a.ID))

	stored, err := e.svc.GetAdoption(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, adoption.ID, stored.ID)

	// Historial: intake, reserva, adopción, sin cambiar ubicación.
	h, err := e.animals.History(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, animals.StateInAdoptionProcess, h[1].State)
	assert.Equal(t, reviewer, h[1].ActorID)
	assert.Equal(t, "kennel-1", h[1].LocationID)
	assert.Equal(t, animals.StateAdopted, h[2].State)
}

func TestApprove_SecondRequestForSameAnimalConflicts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r1 := e.request(t, a.ID, "applicant-1")
	r2 := e.request(t, a.ID, "applicant-2")

	_, err := e.svc.Approve(ctx, r1.ID, reviewer, "")
	require.NoError(t, err)

	_, err = e.svc.Approve(ctx, r2.ID, reviewer, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	got, err := e.svc.Get(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptions.StatePendingReview, got.State)
}

func TestApprove_ConcurrentReviewersOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	const n = 16
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, e.request(t, a.ID, "applicant-"+string(rune('a'+i))).ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.svc.Approve(ctx, id, reviewer, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	approved, err := e.svc.List(ctx, adoptions.ListFilter{AnimalID: a.ID, States: []adoptions.State{adoptions.StateApproved}})
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestComplete_SecondCallConflictsAndKeepsOneAdoption(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")
	_, err := e.svc.Approve(ctx, r.ID, reviewer, "")
	require.NoError(t, err)

	in := adoptions.CompleteInput{AdoptionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DeliveryPlace: "Shelter"}
	first, _, err := e.svc.Complete(ctx, r.ID, reviewer, in)
	require.NoError(t, err)

	_, _, err = e.svc.Complete(ctx, r.ID, reviewer, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	stored, err := e.svc.GetAdoption(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
}

func TestComplete_ConcurrentCallsCreateOneAdoption(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")
	_, err := e.svc.Approve(ctx, r.ID, reviewer, "")
	require.NoError(t, err)

	in := adoptions.CompleteInput{AdoptionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DeliveryPlace: "Shelter"}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.svc.Complete(ctx, r.ID, reviewer, in)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestComplete_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")
	_, err := e.svc.Approve(ctx, r.ID, reviewer, "")
	require.NoError(t, err)

	cases := []struct {
		name string
		in   adoptions.CompleteInput
	}{
		{"missing date", adoptions.CompleteInput{DeliveryPlace: "Shelter"}},
		{"future date", adoptions.CompleteInput{AdoptionDate: time.Now().Add(48 * time.Hour), DeliveryPlace: "Shelter"}},
		{"missing place", adoptions.CompleteInput{AdoptionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DeliveryPlace: "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := e.svc.Complete(ctx, r.ID, reviewer, tc.in)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}

	got, err := e.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptions.StateApproved, got.State)
	assert.Equal(t, animals.StateInAdoptionProcess, e.animalState(t, a.ID))
}

func TestScenario_CancelApprovedReleasesAnimal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")
	_, err := e.svc.Approve(ctx, r.ID, reviewer, "")
	require.NoError(t, err)

	cancelled, err := e.svc.Cancel(ctx, r.ID, reviewer, "applicant withdrew")
	require.NoError(t, err)
	assert.Equal(t, adoptions.StateCancelled, cancelled.State)
	assert.Equal(t, "applicant withdrew", cancelled.RejectionReason)
	assert.Equal(t, animals.StateAvailable, e.animalState(t, a.ID))

	// Otra solicitud puede reservarlo ahora.
	r2 := e.request(t, a.ID, "applicant-2")
	_, err = e.svc.Approve(ctx, r2.ID, reviewer, "")
	require.NoError(t, err)
}

func TestCancel_ByApplicantKeepsApprovingReviewer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-9")
	approved, err := e.svc.Approve(ctx, r.ID, reviewer, "good home")
	require.NoError(t, err)

	cancelled, err := e.svc.Cancel(ctx, r.ID, "applicant-9", "moving abroad")
	require.NoError(t, err)
	assert.Equal(t, reviewer, cancelled.ReviewerID)
	require.NotNil(t, cancelled.ReviewedAt)
	assert.True(t, approved.ReviewedAt.Equal(*cancelled.ReviewedAt))
	assert.Equal(t, "good home", cancelled.ApprovalComments)

	// Quién canceló queda en una nota.
	require.Len(t, cancelled.Notes, 1)
	assert.Equal(t, "applicant-9", cancelled.Notes[0].AuthorID)
	assert.Contains(t, cancelled.Notes[0].Text, "moving abroad")

	stored, err := e.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reviewer, stored.ReviewerID)
	require.Len(t, stored.Notes, 1)
}

func TestCancel_UnreviewedRequestRecordsCanceller(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")

	cancelled, err := e.svc.Cancel(ctx, r.ID, "coord-2", "animal transferred")
	require.NoError(t, err)
	assert.Equal(t, "coord-2", cancelled.ReviewerID)
	assert.NotNil(t, cancelled.ReviewedAt)
}

func TestCancel_PendingRequestLeavesReservationAlone(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	holder := e.request(t, a.ID, "applicant-1")
	other := e.request(t, a.ID, "applicant-2")
	_, err := e.svc.Approve(ctx, holder.ID, reviewer, "")
	require.NoError(t, err)

	_, err = e.svc.Cancel(ctx, other.ID, reviewer, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, animals.StateInAdoptionProcess, e.animalState(t, a.ID))
}

func TestCancel_RequiresReason(t *testing.T) {
	e := newEnv(t)
	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")

	_, err := e.svc.Cancel(context.Background(), r.ID, reviewer, " ")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestReject_RequiresReasonAndKeepsAnimal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")

	_, err := e.svc.Reject(ctx, r.ID, reviewer, "", "")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Equal(t, "reason", ae.Metadata["field"])

	rejected, err := e.svc.Reject(ctx, r.ID, reviewer, "no garden", "visited on saturday")
	require.NoError(t, err)
	assert.Equal(t, adoptions.StateRejected, rejected.State)
	assert.Equal(t, "no garden", rejected.RejectionReason)
	require.Len(t, rejected.Notes, 1)
	assert.Equal(t, "visited on saturday", rejected.Notes[0].Text)
	assert.Equal(t, animals.StateAvailable, e.animalState(t, a.ID))
}

func TestAppendNote_AllowedInTerminalStateAndAppendOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")
	_, err := e.svc.Reject(ctx, r.ID, reviewer, "no", "")
	require.NoError(t, err)

	first, err := e.svc.AppendNote(ctx, r.ID, "coord-1", "called the applicant")
	require.NoError(t, err)
	_, err = e.svc.AppendNote(ctx, r.ID, "vet-1", "follow up")
	require.NoError(t, err)

	got, err := e.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Notes, 2)
	assert.Equal(t, first.ID, got.Notes[0].ID)
	assert.Equal(t, "called the applicant", got.Notes[0].Text)
	assert.Equal(t, "vet-1", got.Notes[1].AuthorID)

	_, err = e.svc.AppendNote(ctx, r.ID, "coord-1", "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = e.svc.AppendNote(ctx, "missing", "coord-1", "x")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSubmit_Rules(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	e.request(t, a.ID, "applicant-1")

	_, err := e.svc.Submit(ctx, "applicant-1", adoptions.SubmitInput{AnimalID: a.ID})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "one open request per applicant and animal")

	sick := e.animal(t, animals.StateUnderTreatment)
	_, err = e.svc.Submit(ctx, "applicant-1", adoptions.SubmitInput{AnimalID: sick.ID})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = e.svc.Submit(ctx, "applicant-1", adoptions.SubmitInput{AnimalID: "nope"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestApprove_AnimalNotAdoptableConflicts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")

	_, err := e.animals.ChangeState(ctx, a.ID, animals.StateChange{State: animals.StateUnderTreatment, ActorID: "vet-1"})
	require.NoError(t, err)

	_, err = e.svc.Approve(ctx, r.ID, reviewer, "")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, animals.StateUnderTreatment, e.animalState(t, a.ID))
}

// --- escrituras que no se aplican ---

type lossyRepo struct {
	adoptions.Repository
	zeroRows bool
}

func (r lossyRepo) WithinTx(ctx context.Context, fn func(tx adoptions.Tx) error) error {
	return r.Repository.WithinTx(ctx, func(tx adoptions.Tx) error {
		return fn(lossyTx{Tx: tx, zeroRows: r.zeroRows})
	})
}

type lossyTx struct {
	adoptions.Tx
	zeroRows bool
}

func (t lossyTx) Animals() animals.Tx {
	if t.zeroRows {
		return t.Tx.Animals()
	}
	return lossyAnimals{Tx: t.Tx.Animals()}
}

func (t lossyTx) UpdateRequest(ctx context.Context, r adoptions.Request) (int64, error) {
	if t.zeroRows {
		return 0, nil
	}
	return t.Tx.UpdateRequest(ctx, r)
}

// lossyAnimals reporta éxito pero no escribe.
type lossyAnimals struct {
	animals.Tx
}

func (lossyAnimals) AppendHistory(context.Context, animals.Animal, animals.HistoryEntry) error {
	return nil
}

func TestApprove_LostAnimalWriteIsInconsistentAndRolledBack(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")

	svc := adoptions.NewService(lossyRepo{Repository: e.repo}, nil)
	_, err := svc.Approve(ctx, r.ID, reviewer, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInconsistentState))

	got, err := e.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, adoptions.StatePendingReview, got.State)
	assert.Equal(t, animals.StateAvailable, e.animalState(t, a.ID))
}

func TestComplete_ZeroRowUpdateIsInconsistentAndRolledBack(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	a := e.animal(t, animals.StateAvailable)
	r := e.request(t, a.ID, "applicant-1")
	_, err := e.svc.Approve(ctx, r.ID, reviewer, "")
	require.NoError(t, err)

	svc := adoptions.NewService(lossyRepo{Repository: e.repo, zeroRows: true}, nil)
	_, _, err = svc.Complete(ctx, r.ID, reviewer, adoptions.CompleteInput{
		AdoptionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DeliveryPlace: "Shelter",
	})
	assert.True(t, errors.Is(err, apperr.ErrInconsistentState))

	_, err = e.svc.GetAdoption(ctx, r.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "adoption row must be rolled back")
	assert.Equal(t, animals.StateInAdoptionProcess, e.animalState(t, a.ID))
}
