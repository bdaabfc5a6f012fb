package adoptions

import (
	"context"

	"animal-shelter/internal/domain/animals"
)

type Repository interface {
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, filter ListFilter) ([]Request, error)
	GetAdoptionByRequest(ctx context.Context, requestID string) (Adoption, error)

	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx comparte la transacción con el registro de animales.
// Orden de bloqueo: primero el animal, después la solicitud.
type Tx interface {
	Animals() animals.Tx

	CreateRequest(ctx context.Context, r Request) error
	LockRequest(ctx context.Context, id string) (Request, error)
	// UpdateRequest devuelve filas afectadas; 0 indica que la fila ya no está.
	UpdateRequest(ctx context.Context, r Request) (int64, error)
	AppendNote(ctx context.Context, n Note) error

	// ApprovedForAnimal: IDs de solicitudes en approved para el animal.
	ApprovedForAnimal(ctx context.Context, animalID string) ([]string, error)
	OpenRequestExists(ctx context.Context, animalID, applicantID string) (bool, error)

	AdoptionExists(ctx context.Context, requestID string) (bool, error)
	CreateAdoption(ctx context.Context, a Adoption) error
}

type ListFilter struct {
	AnimalID    string
	ApplicantID string
	States      []State
	Limit       int
}
