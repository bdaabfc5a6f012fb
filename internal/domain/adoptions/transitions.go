package adoptions

// Action es una operación del flujo que cambia el estado de la solicitud.
type Action string

const (
	ActionMarkUnderReview Action = "mark_under_review"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionComplete        Action = "complete"
	ActionCancel          Action = "cancel"
)

// transitions es la única tabla de transiciones legales.
var transitions = map[State]map[Action]State{
	StatePendingReview: {
		ActionMarkUnderReview: StateUnderReview,
		ActionApprove:         StateApproved,
		ActionReject:          StateRejected,
		ActionCancel:          StateCancelled,
	},
	StateUnderReview: {
		ActionApprove: StateApproved,
		ActionReject:  StateRejected,
		ActionCancel:  StateCancelled,
	},
	StateApproved: {
		ActionComplete: StateCompleted,
		ActionCancel:   StateCancelled,
	},
}

// CanTransition devuelve el estado destino de aplicar action sobre from.
func CanTransition(from State, action Action) (State, bool) {
	to, ok := transitions[from][action]
	return to, ok
}
