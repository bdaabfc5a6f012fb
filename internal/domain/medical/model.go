package medical

import "time"

type Kind string

const (
	KindCheckup       Kind = "checkup"
	KindVaccine       Kind = "vaccine"
	KindDeworming     Kind = "deworming"
	KindFleaTreatment Kind = "flea_treatment"
	KindMedication    Kind = "medication"
	KindSurgery       Kind = "surgery"
	KindNote          Kind = "note"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCheckup, KindVaccine, KindDeworming, KindFleaTreatment,
		KindMedication, KindSurgery, KindNote:
		return true
	}
	return false
}

type Status string

const (
	StatusActive Status = "active"
	StatusVoided Status = "voided"
)

// Record es una entrada de la ficha médica. No se borra: se anula con Void.
type Record struct {
	ID       string
	AnimalID string

	Kind Kind

	OccurredAt time.Time
	RecordedAt time.Time

	Title string
	Notes string

	VetID  string
	Status Status
}
