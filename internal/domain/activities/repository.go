package activities

import (
	"context"
	"time"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (Activity, error)
	List(ctx context.Context, filter ListFilter) ([]Activity, error)
	GetEnrollment(ctx context.Context, id string) (Enrollment, error)
	ListEnrollments(ctx context.Context, activityID string) ([]Enrollment, error)
	ListByVolunteer(ctx context.Context, volunteerID string) ([]Enrollment, error)

	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx: orden de bloqueo actividad -> inscripción.
type Tx interface {
	CreateActivity(ctx context.Context, a Activity) error
	LockActivity(ctx context.Context, id string) (Activity, error)
	// UpdateActivity no toca CurrentEnrollment; devuelve filas afectadas.
	UpdateActivity(ctx context.Context, a Activity) (int64, error)

	// IncrementEnrollment suma un cupo solo si queda lugar (compare-and-set).
	// false => la actividad está llena.
	IncrementEnrollment(ctx context.Context, activityID string) (bool, error)
	// DecrementEnrollment resta un cupo solo si el contador es > 0.
	DecrementEnrollment(ctx context.Context, activityID string) (bool, error)
	CountConfirmed(ctx context.Context, activityID string) (int, error)

	HasConfirmed(ctx context.Context, activityID, volunteerID string) (bool, error)
	CreateEnrollment(ctx context.Context, e Enrollment) error
	LockEnrollment(ctx context.Context, id string) (Enrollment, error)
	UpdateEnrollment(ctx context.Context, e Enrollment) (int64, error)
}

type ListFilter struct {
	From       *time.Time
	To         *time.Time
	UrgentOnly bool
	// OpenOnly: solo actividades con cupo libre.
	OpenOnly bool
	Limit    int
}
