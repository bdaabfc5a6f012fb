package animals

import "context"

type Repository interface {
	GetByID(ctx context.Context, id string) (Animal, error)
	List(ctx context.Context, filter ListFilter) ([]Animal, error)
	History(ctx context.Context, animalID string) ([]HistoryEntry, error)

	// WithinTx ejecuta fn como una unidad atómica: si fn devuelve error no queda nada escrito.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx son las operaciones de escritura disponibles dentro de una transacción.
// Otros módulos (adopciones) reciben un Tx para mover al animal en su misma unidad atómica.
type Tx interface {
	Create(ctx context.Context, a Animal, first HistoryEntry) error
	// LockByID lee el animal bloqueándolo hasta el fin de la transacción.
	LockByID(ctx context.Context, id string) (Animal, error)
	// AppendHistory guarda el nuevo estado actual y agrega e al historial.
	AppendHistory(ctx context.Context, a Animal, e HistoryEntry) error
}

type ListFilter struct {
	States  []State
	Species Species
	Limit   int
}
