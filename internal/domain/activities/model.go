package activities

import "time"

// Activity es una actividad de voluntariado con cupo fijo.
// 0 <= CurrentEnrollment <= RequiredVolunteers siempre.
type Activity struct {
	ID          string
	Title       string
	Description string
	Location    string

	StartsAt time.Time
	EndsAt   time.Time

	RequiredVolunteers int
	CurrentEnrollment  int
	IsUrgent           bool

	// Vacío si no pertenece a una serie recurrente.
	SeriesID string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Activity) Full() bool {
	return a.CurrentEnrollment >= a.RequiredVolunteers
}

type EnrollmentStatus string

const (
	EnrollmentConfirmed EnrollmentStatus = "confirmed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

type Enrollment struct {
	ID          string
	ActivityID  string
	VolunteerID string
	Status      EnrollmentStatus
	EnrolledAt  time.Time
	CancelledAt *time.Time
}

// Spec son los datos editables de una actividad.
type Spec struct {
	Title              string
	Description        string
	Location           string
	StartsAt           time.Time
	EndsAt             time.Time
	RequiredVolunteers int
	IsUrgent           bool
}
