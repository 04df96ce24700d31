package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curesync/curesync/internal/domain/booking"
	"github.com/curesync/curesync/internal/domain/directory"
)

type AppointmentReader interface {
	GetAppointment(ctx context.Context, actor booking.Actor, id uuid.UUID) (*booking.Appointment, error)
}

type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.User, error)
}

type Service struct {
	reviews      Repository
	appointments AppointmentReader
	doctors      DoctorDirectory
	logger       zerolog.Logger
}

func NewService(reviews Repository, appointments AppointmentReader, doctors DoctorDirectory, logger zerolog.Logger) *Service {
	return &Service{
		reviews:      reviews,
		appointments: appointments,
		doctors:      doctors,
		logger:       logger.With().Str("component", "review").Logger(),
	}
}

type Input struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

// Create records the patient's review of a completed appointment. An
// appointment can be reviewed once.
func (s *Service) Create(ctx context.Context, actor booking.Actor, appointmentID uuid.UUID, in Input) (*Review, error) {
	if in.Rating < MinRating || in.Rating > MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", booking.ErrInvalidRequest, MinRating, MaxRating)
	}
	a, err := s.appointments.GetAppointment(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != actor.ID {
		return nil, fmt.Errorf("%w: only the patient can review an appointment", booking.ErrForbidden)
	}
	if a.Status != booking.StatusCompleted {
		return nil, fmt.Errorf("%w: appointment is %s, only completed appointments can be reviewed", booking.ErrConflict, a.Status)
	}

	rv := &Review{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		Rating:        in.Rating,
	}
	if in.Comment != nil {
		if c := strings.TrimSpace(*in.Comment); c != "" {
			rv.Comment = &c
		}
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		if errors.Is(err, booking.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create review: %v", booking.ErrStorage, err)
	}
	s.logger.Info().Str("review_id", rv.ID.String()).Str("doctor_id", rv.DoctorID.String()).
		Int("rating", rv.Rating).Msg("review created")
	return rv, nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, Summary, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, 0, Summary{}, fmt.Errorf("%w: doctor %s", booking.ErrNotFound, doctorID)
		}
		return nil, 0, Summary{}, fmt.Errorf("%w: load doctor: %v", booking.ErrStorage, err)
	}
	items, total, err := s.reviews.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, Summary{}, fmt.Errorf("%w: list reviews: %v", booking.ErrStorage, err)
	}
	summary, err := s.reviews.SummaryForDoctor(ctx, doctorID)
	if err != nil {
		return nil, 0, Summary{}, fmt.Errorf("%w: summarize reviews: %v", booking.ErrStorage, err)
	}
	return items, total, summary, nil
}
