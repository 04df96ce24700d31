package booking

import (
	"context"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	Create(ctx context.Context, e *ScheduleEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduleEntry, error)
	Update(ctx context.Context, e *ScheduleEntry) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleEntry, error)
	ListActiveByDoctorDay(ctx context.Context, doctorID uuid.UUID, day Weekday) ([]*ScheduleEntry, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// BookedTimes returns times held by scheduled or confirmed appointments.
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error)
	SlotTaken(ctx context.Context, doctorID uuid.UUID, date Date, t TimeOfDay) (bool, error)
	// PatientHasBooking reports a non-cancelled appointment with the doctor on date.
	PatientHasBooking(ctx context.Context, patientID, doctorID uuid.UUID, date Date) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, reason *string) error
	UpdatePayment(ctx context.Context, id uuid.UUID, payment string) error
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
}
