package medical

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, r Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	ListByAnimal(ctx context.Context, animalID string, filter ListFilter) ([]Record, error)
	Void(ctx context.Context, id string) error
}

type ListFilter struct {
	Kinds []Kind
	From  *time.Time
	To    *time.Time
	Query string
	// IncludeVoided: por defecto solo activos.
	IncludeVoided bool
	Limit         int
}
