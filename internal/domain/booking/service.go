package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/curesync/curesync/internal/domain/directory"
	"github.com/curesync/curesync/internal/platform/auth"
	"github.com/curesync/curesync/internal/platform/cache"
	"github.com/curesync/curesync/internal/platform/db"
	"github.com/curesync/curesync/internal/platform/events"
	"github.com/curesync/curesync/internal/platform/telemetry"
)

// DoctorDirectory resolves active doctors. Satisfied by *directory.Service.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.User, error)
}

// TxRunner runs fn in one transaction. Satisfied by *db.TxRunner.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	schedules    ScheduleRepository
	appointments AppointmentRepository
	doctors      DoctorDirectory
	tx           TxRunner

	cache   cache.SlotCache
	events  events.Publisher
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Service)

func WithSlotCache(c cache.SlotCache) Option { return func(s *Service) { s.cache = c } }

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.events = p } }

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLocation sets the zone appointment dates and times are interpreted in.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(schedules ScheduleRepository, appointments AppointmentRepository, doctors DoctorDirectory,
	tx TxRunner, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		schedules:    schedules,
		appointments: appointments,
		doctors:      doctors,
		tx:           tx,
		cache:        cache.Noop{},
		events:       events.Noop{},
		logger:       logger.With().Str("component", "booking").Logger(),
		loc:          time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -- Availability --

// GetAvailableSlots returns the open slots of an active doctor on date.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "booking.GetAvailableSlots")
	defer span.End()
	span.SetAttributes(attribute.String("doctor.id", doctorID.String()), attribute.String("appointment.date", date))

	d, err := ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	if slots, ok := s.cachedSlots(ctx, doctorID, d); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return slots, nil
	}

	// The generation is read before the database so that a booking
	// committed while the list is computed keeps it out of the cache.
	version, verr := s.cache.Version(ctx, doctorID)
	if verr != nil {
		s.logger.Warn().Err(verr).Str("doctor_id", doctorID.String()).Msg("slot cache version failed")
	}

	entries, err := s.schedules.ListActiveByDoctorDay(ctx, doctorID, d.DayOfWeek())
	if err != nil {
		return nil, s.storageError(span, "list schedule entries", err)
	}
	booked, err := s.appointments.BookedTimes(ctx, doctorID, d)
	if err != nil {
		return nil, s.storageError(span, "list booked times", err)
	}

	slots := FilterAvailable(GenerateSlots(d, entries), booked)
	span.SetAttributes(attribute.Int("slots.count", len(slots)))

	if verr != nil {
		return slots, nil
	}
	if payload, err := json.Marshal(slots); err == nil {
		if err := s.cache.Set(ctx, doctorID, d.String(), payload, version); err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache set failed")
		}
	}
	return slots, nil
}

func (s *Service) cachedSlots(ctx context.Context, doctorID uuid.UUID, d Date) ([]Slot, bool) {
	payload, ok, err := s.cache.Get(ctx, doctorID, d.String())
	if err != nil {
		s.metrics.ObserveSlotCache("error")
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache get failed")
		return nil, false
	}
	if !ok {
		s.metrics.ObserveSlotCache("miss")
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(payload, &slots); err != nil {
		s.metrics.ObserveSlotCache("error")
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache entry unreadable")
		return nil, false
	}
	s.metrics.ObserveSlotCache("hit")
	return slots, true
}

// -- Booking --

// BookAppointment validates req and creates a scheduled appointment. Checks
// run in a fixed order and the first failure is reported. The conflict checks
// and the insert share one serializable transaction.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "booking.BookAppointment")
	defer span.End()

	appt, err := s.book(ctx, req)
	s.metrics.ObserveBooking(outcomeOf(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeOf(err))
		s.logger.Info().Err(err).
			Str("doctor_id", req.DoctorID.String()).
			Str("patient_id", req.PatientID.String()).
			Str("date", req.Date).Str("time", req.Time).
			Msg("booking rejected")
		return nil, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID.String()))

	s.invalidate(ctx, appt.DoctorID, appt.Date)
	s.publish(ctx, events.AppointmentBooked, appt)
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Str("date", appt.Date.String()).Str("time", appt.Time.String()).
		Msg("appointment booked")
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil || req.DoctorID == uuid.Nil || req.ScheduleID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id, doctor_id and schedule_id are required", ErrInvalidRequest)
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	at, err := ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := s.requireDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	sched, err := s.schedules.GetByID(ctx, req.ScheduleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: schedule entry %s", ErrNotFound, req.ScheduleID)
		}
		return nil, fmt.Errorf("%w: load schedule entry: %v", ErrStorage, err)
	}
	if sched.DoctorID != req.DoctorID || !sched.Active {
		return nil, fmt.Errorf("%w: schedule entry %s", ErrNotFound, req.ScheduleID)
	}

	if !date.At(at, s.loc).After(s.now()) {
		return nil, fmt.Errorf("%w: appointment must be in the future", ErrInvalidRequest)
	}
	if date.DayOfWeek() != sched.DayOfWeek {
		return nil, fmt.Errorf("%w: %s is a %s, schedule is for %s", ErrInvalidRequest, date, date.DayOfWeek(), sched.DayOfWeek)
	}
	// The end of the window is itself accepted.
	if at < sched.StartTime || at > sched.EndTime {
		return nil, fmt.Errorf("%w: %s is outside %s-%s", ErrInvalidRequest, at, sched.StartTime, sched.EndTime)
	}

	appt := &Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		ScheduleID:      sched.ID,
		Date:            date,
		Time:            at,
		Status:          StatusScheduled,
		ConsultationFee: sched.ConsultationFee,
		PaymentStatus:   PaymentPending,
		Symptoms:        trimmed(req.Symptoms),
		Notes:           trimmed(req.Notes),
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		taken, err := s.appointments.SlotTaken(ctx, appt.DoctorID, appt.Date, appt.Time)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s %s is already booked", ErrConflict, appt.Date, appt.Time)
		}
		dup, err := s.appointments.PatientHasBooking(ctx, appt.PatientID, appt.DoctorID, appt.Date)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: patient already has an appointment with this doctor on %s", ErrConflict, appt.Date)
		}
		return s.appointments.Create(ctx, appt)
	})
	if err != nil {
		return nil, classifyWriteError(err, "create appointment")
	}
	return appt, nil
}

func (s *Service) requireDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("%w: doctor %s", ErrNotFound, doctorID)
		}
		return fmt.Errorf("%w: load doctor: %v", ErrStorage, err)
	}
	return nil
}

// classifyWriteError maps a failed write to a booking error kind. Lost races
// surface as Conflict.
func classifyWriteError(err error, op string) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrForbidden):
		return err
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s: %s", ErrConflict, op, db.ConstraintName(err))
	case db.IsRetryable(err):
		return fmt.Errorf("%w: %s: concurrent update, retry", ErrConflict, op)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s: %s", ErrNotFound, op, db.ConstraintName(err))
	default:
		return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// -- Appointment lifecycle --

func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, readError(err)
	}
	if !actor.CanView(a) {
		return nil, fmt.Errorf("%w: appointment %s", ErrForbidden, id)
	}
	return a, nil
}

// ListAppointments lists the caller's appointments. Doctors see their own
// patients' appointments; admins see everything the filter matches.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, f.Status)
	}
	switch {
	case actor.IsAdmin():
	case actor.Is(auth.RoleDoctor):
		f.DoctorID, f.PatientID = &actor.ID, nil
	default:
		f.PatientID, f.DoctorID = &actor.ID, nil
	}
	items, total, err := s.appointments.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list appointments: %v", ErrStorage, err)
	}
	return items, total, nil
}

// CancelAppointment cancels a scheduled or confirmed appointment and frees
// its slot.
func (s *Service) CancelAppointment(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Appointment, error) {
	var r *string
	if reason = strings.TrimSpace(reason); reason != "" {
		r = &reason
	}
	return s.transition(ctx, actor, id, StatusCancelled, r, events.AppointmentCancelled)
}

// UpdateStatus advances an appointment along the status lifecycle. Only the
// appointment's doctor or an admin may do so.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	evt := events.AppointmentStatusChanged
	if status == StatusCancelled {
		evt = events.AppointmentCancelled
	}
	return s.transition(ctx, actor, id, status, nil, evt)
}

func (s *Service) transition(ctx context.Context, actor Actor, id uuid.UUID, to string, reason *string, evt string) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !s.mayTransition(actor, a, to) {
			return fmt.Errorf("%w: appointment %s", ErrForbidden, id)
		}
		if !canTransition(statusTransitions, a.Status, to) {
			return fmt.Errorf("%w: cannot move appointment from %s to %s", ErrConflict, a.Status, to)
		}
		if err := s.appointments.UpdateStatus(ctx, id, to, reason); err != nil {
			return err
		}
		a.Status = to
		if reason != nil {
			a.CancellationReason = reason
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, classifyWriteError(err, "update appointment status")
	}

	s.metrics.ObserveTransition(to)
	s.invalidate(ctx, appt.DoctorID, appt.Date)
	s.publish(ctx, evt, appt)
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("status", to).
		Str("actor", actor.ID.String()).
		Msg("appointment status changed")
	return appt, nil
}

// mayTransition: patients may only cancel their own appointments, doctors may
// move their own, admins anything.
func (s *Service) mayTransition(actor Actor, a *Appointment, to string) bool {
	switch {
	case actor.IsAdmin():
		return true
	case a.DoctorID == actor.ID:
		return true
	case a.PatientID == actor.ID:
		return to == StatusCancelled
	}
	return false
}

// UpdatePayment moves the payment status pending -> paid -> refunded.
func (s *Service) UpdatePayment(ctx context.Context, id uuid.UUID, payment string) (*Appointment, error) {
	if !validPaymentStatuses[payment] {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidRequest, payment)
	}
	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(paymentTransitions, a.PaymentStatus, payment) {
			return fmt.Errorf("%w: cannot move payment from %s to %s", ErrConflict, a.PaymentStatus, payment)
		}
		if payment == PaymentPaid && a.Status == StatusCancelled {
			return fmt.Errorf("%w: appointment %s is cancelled", ErrConflict, id)
		}
		if err := s.appointments.UpdatePayment(ctx, id, payment); err != nil {
			return err
		}
		a.PaymentStatus = payment
		appt = a
		return nil
	})
	if err != nil {
		return nil, classifyWriteError(err, "update payment status")
	}
	s.publish(ctx, events.AppointmentPaymentUpdate, appt)
	return appt, nil
}

// -- Schedules --

// ScheduleInput is the writable part of a schedule entry.
type ScheduleInput struct {
	DoctorID        uuid.UUID       `json:"doctor_id"`
	DayOfWeek       Weekday         `json:"day_of_week"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	ConsultationFee decimal.Decimal `json:"consultation_fee"`
	HospitalName    string          `json:"hospital_name"`
	HospitalAddress *string         `json:"hospital_address,omitempty"`
	MaxPatients     int             `json:"max_patients"`
}

// CreateSchedule adds an active entry for the acting doctor. Admins may pass
// doctor_id to act for a doctor.
func (s *Service) CreateSchedule(ctx context.Context, actor Actor, in ScheduleInput) (*ScheduleEntry, error) {
	doctorID := actor.ID
	if actor.IsAdmin() && in.DoctorID != uuid.Nil {
		doctorID = in.DoctorID
	}
	e := &ScheduleEntry{DoctorID: doctorID, Active: true}
	if err := applyScheduleInput(e, in); err != nil {
		return nil, err
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.schedules.ListActiveByDoctorDay(ctx, doctorID, e.DayOfWeek)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: an active schedule for %s already exists", ErrConflict, e.DayOfWeek)
		}
		return s.schedules.Create(ctx, e)
	})
	if err != nil {
		return nil, classifyWriteError(err, "create schedule entry")
	}
	s.invalidateDoctor(ctx, doctorID)
	s.logger.Info().Str("schedule_id", e.ID.String()).Str("doctor_id", doctorID.String()).
		Str("day", string(e.DayOfWeek)).Msg("schedule entry created")
	return e, nil
}

func (s *Service) UpdateSchedule(ctx context.Context, actor Actor, id uuid.UUID, in ScheduleInput) (*ScheduleEntry, error) {
	var entry *ScheduleEntry
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		e, err := s.ownedSchedule(ctx, actor, id)
		if err != nil {
			return err
		}
		if err := applyScheduleInput(e, in); err != nil {
			return err
		}
		others, err := s.schedules.ListActiveByDoctorDay(ctx, e.DoctorID, e.DayOfWeek)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID != e.ID {
				return fmt.Errorf("%w: an active schedule for %s already exists", ErrConflict, e.DayOfWeek)
			}
		}
		if err := s.schedules.Update(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, classifyWriteError(err, "update schedule entry")
	}
	s.invalidateDoctor(ctx, entry.DoctorID)
	return entry, nil
}

// DeactivateSchedule soft-deletes an entry. Existing appointments are kept.
func (s *Service) DeactivateSchedule(ctx context.Context, actor Actor, id uuid.UUID) error {
	var doctorID uuid.UUID
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		e, err := s.ownedSchedule(ctx, actor, id)
		if err != nil {
			return err
		}
		doctorID = e.DoctorID
		return s.schedules.Deactivate(ctx, id)
	})
	if err != nil {
		return classifyWriteError(err, "deactivate schedule entry")
	}
	s.invalidateDoctor(ctx, doctorID)
	s.logger.Info().Str("schedule_id", id.String()).Msg("schedule entry deactivated")
	return nil
}

func (s *Service) ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleEntry, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	items, err := s.schedules.ListActiveByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("%w: list schedule entries: %v", ErrStorage, err)
	}
	if items == nil {
		items = []*ScheduleEntry{}
	}
	return items, nil
}

// GetSchedule returns an entry whether or not it is still active, for
// documents that refer back to the schedule an appointment was booked on.
func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*ScheduleEntry, error) {
	e, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, readError(err)
	}
	return e, nil
}

func (s *Service) ownedSchedule(ctx context.Context, actor Actor, id uuid.UUID) (*ScheduleEntry, error) {
	e, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.Active {
		return nil, fmt.Errorf("%w: schedule entry %s", ErrNotFound, id)
	}
	if e.DoctorID != actor.ID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: schedule entry %s belongs to another doctor", ErrForbidden, id)
	}
	return e, nil
}

func applyScheduleInput(e *ScheduleEntry, in ScheduleInput) error {
	day := Weekday(strings.ToLower(strings.TrimSpace(string(in.DayOfWeek))))
	if !day.Valid() {
		return fmt.Errorf("%w: day_of_week %q is not a weekday name", ErrInvalidRequest, in.DayOfWeek)
	}
	start, err := ParseTimeOfDay(in.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start_time: %v", ErrInvalidRequest, err)
	}
	end, err := ParseTimeOfDay(in.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end_time: %v", ErrInvalidRequest, err)
	}
	if end <= start {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidRequest)
	}
	if in.ConsultationFee.IsNegative() {
		return fmt.Errorf("%w: consultation_fee must not be negative", ErrInvalidRequest)
	}
	if !in.ConsultationFee.Equal(in.ConsultationFee.Round(2)) {
		return fmt.Errorf("%w: consultation_fee has more than two decimal places", ErrInvalidRequest)
	}
	name := strings.TrimSpace(in.HospitalName)
	if name == "" {
		return fmt.Errorf("%w: hospital_name is required", ErrInvalidRequest)
	}
	if in.MaxPatients < 0 {
		return fmt.Errorf("%w: max_patients must not be negative", ErrInvalidRequest)
	}

	e.DayOfWeek = day
	e.StartTime, e.EndTime = start, end
	e.ConsultationFee = in.ConsultationFee
	e.HospitalName = name
	e.HospitalAddress = trimmed(in.HospitalAddress)
	e.MaxPatients = in.MaxPatients
	return nil
}

// -- helpers --

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID, d Date) {
	if err := s.cache.Invalidate(ctx, doctorID, d.String()); err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache invalidate failed")
	}
}

func (s *Service) invalidateDoctor(ctx context.Context, doctorID uuid.UUID) {
	if err := s.cache.InvalidateDoctor(ctx, doctorID); err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache invalidate failed")
	}
}

// publish runs after commit. A broker failure never fails the request.
func (s *Service) publish(ctx context.Context, eventType string, a *Appointment) {
	err := s.events.Publish(ctx, events.NewEvent(eventType, eventOf(a)))
	s.metrics.ObserveEvent(eventType, err)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("appointment_id", a.ID.String()).Msg("publish event failed")
	}
}

func (s *Service) storageError(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	s.logger.Error().Err(err).Msg(op)
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

func readError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
