package animals

import "time"

// State es el estado operativo del animal dentro del refugio.
type State string

const (
	StateUnderEvaluation   State = "under_evaluation"
	StateAvailable         State = "available"
	StateInAdoptionProcess State = "in_adoption_process"
	StateAdopted           State = "adopted"
	StateUnderTreatment    State = "under_treatment"
	StateUnavailable       State = "unavailable"
)

func (s State) Valid() bool {
	switch s {
	case StateUnderEvaluation, StateAvailable, StateInAdoptionProcess,
		StateAdopted, StateUnderTreatment, StateUnavailable:
		return true
	}
	return false
}

// WorkflowOwned: estados que solo el flujo de adopción puede asignar.
func (s State) WorkflowOwned() bool {
	return s == StateInAdoptionProcess || s == StateAdopted
}

// Species define las especies que recibe el refugio.
type Species string

const (
	SpeciesDog    Species = "dog"
	SpeciesCat    Species = "cat"
	SpeciesRabbit Species = "rabbit"
	SpeciesOther  Species = "other"
)

type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Animal es la ficha del animal. CurrentState/CurrentLocationID siempre
// coinciden con la última entrada de su historial.
type Animal struct {
	ID string

	Name    string
	Species Species
	Breed   string
	Sex     Sex
	Color   string
	Size    Size

	BirthDate *time.Time
	Microchip string
	Notes     string

	CurrentState      State
	CurrentLocationID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HistoryEntry es una entrada del seguimiento (append-only).
type HistoryEntry struct {
	ID         string
	AnimalID   string
	State      State
	LocationID string
	ActorID    string
	Comment    string
	RecordedAt time.Time
}

// StateChange es la única forma de mutar estado/ubicación.
// LocationID vacío mantiene la ubicación actual.
type StateChange struct {
	State      State
	LocationID string
	ActorID    string
	Comment    string
}
