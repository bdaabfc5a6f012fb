package adoptions

import "time"

// State de una solicitud de adopción.
type State string

const (
	StatePendingReview State = "pending_review"
	StateUnderReview   State = "under_review"
	StateApproved      State = "approved"
	StateRejected      State = "rejected"
	StateCompleted     State = "completed"
	StateCancelled     State = "cancelled"
)

func (s State) Valid() bool {
	switch s {
	case StatePendingReview, StateUnderReview, StateApproved,
		StateRejected, StateCompleted, StateCancelled:
		return true
	}
	return false
}

// Terminal: rejected, completed y cancelled no tienen salida.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateCompleted || s == StateCancelled
}

type Request struct {
	ID          string
	AnimalID    string
	ApplicantID string
	Motivation  string
	SubmittedAt time.Time

	State State

	ReviewerID string
	ReviewedAt *time.Time

	// Obligatorio en rejected y cancelled.
	RejectionReason  string
	ApprovalComments string

	Notes []Note

	UpdatedAt time.Time
}

// Note es una nota interna. Append-only.
type Note struct {
	ID        string
	RequestID string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// Adoption es el registro final; existe a lo sumo una por solicitud.
type Adoption struct {
	ID            string
	RequestID     string
	AnimalID      string
	AdopterID     string
	AdoptionDate  time.Time
	DeliveryPlace string
	Observations  string
	RecordedBy    string
	CreatedAt     time.Time
}

type SubmitInput struct {
	AnimalID   string
	Motivation string
}

type CompleteInput struct {
	AdoptionDate  time.Time
	DeliveryPlace string
	Observations  string
}
