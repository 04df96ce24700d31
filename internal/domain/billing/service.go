package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/curesync/curesync/internal/domain/booking"
	"github.com/curesync/curesync/internal/domain/directory"
)

type AppointmentReader interface {
	GetAppointment(ctx context.Context, actor booking.Actor, id uuid.UUID) (*booking.Appointment, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*booking.ScheduleEntry, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*directory.User, error)
}

type Service struct {
	appointments AppointmentReader
	users        UserReader
	taxRate      decimal.Decimal
	logger       zerolog.Logger
}

// ParseTaxRate parses a fractional rate such as "0.18". It must lie in [0, 1].
func ParseTaxRate(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invoice tax rate %q: %w", s, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("invoice tax rate %s must be between 0 and 1", rate)
	}
	return rate, nil
}

func NewService(appointments AppointmentReader, users UserReader, taxRate decimal.Decimal, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		users:        users,
		taxRate:      taxRate,
		logger:       logger.With().Str("component", "billing").Logger(),
	}
}

// Invoice builds the invoice of an appointment visible to actor.
func (s *Service) Invoice(ctx context.Context, actor booking.Actor, appointmentID uuid.UUID) (*Invoice, error) {
	a, err := s.appointments.GetAppointment(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	sched, err := s.appointments.GetSchedule(ctx, a.ScheduleID)
	if err != nil {
		return nil, err
	}
	patient, err := s.party(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.party(ctx, a.DoctorID)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		Number:            InvoiceNumber(a),
		AppointmentID:     a.ID,
		IssuedAt:          a.CreatedAt,
		Patient:           patient,
		Doctor:            doctor,
		HospitalName:      sched.HospitalName,
		HospitalAddress:   sched.HospitalAddress,
		AppointmentDate:   a.Date,
		AppointmentTime:   a.Time,
		AppointmentStatus: a.Status,
		PaymentStatus:     a.PaymentStatus,
		Items: []LineItem{{
			Description: fmt.Sprintf("Consultation with %s on %s at %s", doctor.Name, a.Date, a.Time),
			Amount:      a.ConsultationFee,
		}},
	}
	inv.computeTotals(s.taxRate)
	return inv, nil
}

func (s *Service) party(ctx context.Context, id uuid.UUID) (Party, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, directory.ErrNotFound) {
		return Party{}, fmt.Errorf("%w: user %s", booking.ErrNotFound, id)
	}
	if err != nil {
		return Party{}, fmt.Errorf("%w: load user: %v", booking.ErrStorage, err)
	}
	p := Party{ID: u.ID, Name: u.Name, Detail: u.Email}
	if u.IsDoctor() && u.Specialization != nil {
		p.Detail = *u.Specialization
	}
	return p, nil
}
