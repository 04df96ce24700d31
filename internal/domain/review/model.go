package review

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Summary aggregates a doctor's ratings. Average is zero when Count is zero.
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

const (
	MinRating = 1
	MaxRating = 5
)
