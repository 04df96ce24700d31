package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curesync/curesync/internal/platform/auth"
)

// SlotDuration is the fixed length of a bookable slot.
const SlotDuration = 30 * time.Minute

// ScheduleEntry is a doctor's recurring weekly availability window.
type ScheduleEntry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	DoctorID        uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	DayOfWeek       Weekday         `db:"day_of_week" json:"day_of_week"`
	StartTime       TimeOfDay       `db:"start_time" json:"start_time"`
	EndTime         TimeOfDay       `db:"end_time" json:"end_time"`
	ConsultationFee decimal.Decimal `db:"consultation_fee" json:"consultation_fee"`
	HospitalName    string          `db:"hospital_name" json:"hospital_name"`
	HospitalAddress *string         `db:"hospital_address" json:"hospital_address,omitempty"`
	MaxPatients     int             `db:"max_patients" json:"max_patients"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Slot is a bookable time derived from a schedule entry for one date.
type Slot struct {
	Time            TimeOfDay       `json:"time"`
	ScheduleID      uuid.UUID       `json:"schedule_id"`
	HospitalName    string          `json:"hospital_name"`
	ConsultationFee decimal.Decimal `json:"consultation_fee"`
}

// BookingRequest carries raw date and time strings so malformed values are
// reported as invalid requests by the service.
type BookingRequest struct {
	PatientID  uuid.UUID `json:"patient_id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	Date       string    `json:"appointment_date"`
	Time       string    `json:"appointment_time"`
	Symptoms   *string   `json:"symptoms,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
}

type Appointment struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	PatientID          uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	ScheduleID         uuid.UUID       `db:"schedule_id" json:"schedule_id"`
	Date               Date            `db:"appointment_date" json:"appointment_date"`
	Time               TimeOfDay       `db:"appointment_time" json:"appointment_time"`
	Status             string          `db:"status" json:"status"`
	ConsultationFee    decimal.Decimal `db:"consultation_fee" json:"consultation_fee"`
	PaymentStatus      string          `db:"payment_status" json:"payment_status"`
	Symptoms           *string         `db:"symptoms" json:"symptoms,omitempty"`
	Notes              *string         `db:"notes" json:"notes,omitempty"`
	CancellationReason *string         `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// statusTransitions lists the allowed next statuses. Statuses without an
// entry are terminal.
var statusTransitions = map[string][]string{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

var paymentTransitions = map[string][]string{
	PaymentPending: {PaymentPaid},
	PaymentPaid:    {PaymentRefunded},
}

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

var validPaymentStatuses = map[string]bool{
	PaymentPending: true, PaymentPaid: true, PaymentRefunded: true,
}

func canTransition(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether the appointment occupies its doctor/date/time.
func (a *Appointment) HoldsSlot() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// AppointmentFilter narrows a listing. Zero fields match everything.
type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	Date      *Date
}

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	ID    uuid.UUID
	Roles []string
}

func ActorFromContext(ctx context.Context) Actor {
	return Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
}

func (a Actor) Is(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool { return a.Is(auth.RoleAdmin) }

// CanView reports whether the actor is a party to the appointment or an admin.
func (a Actor) CanView(appt *Appointment) bool {
	return a.IsAdmin() || appt.PatientID == a.ID || appt.DoctorID == a.ID
}

// AppointmentEvent is the payload of appointment lifecycle events.
type AppointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          Date      `json:"appointment_date"`
	Time          TimeOfDay `json:"appointment_time"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Reason        *string   `json:"reason,omitempty"`
}

func eventOf(a *Appointment) AppointmentEvent {
	return AppointmentEvent{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		Date:          a.Date,
		Time:          a.Time,
		Status:        a.Status,
		PaymentStatus: a.PaymentStatus,
		Reason:        a.CancellationReason,
	}
}
