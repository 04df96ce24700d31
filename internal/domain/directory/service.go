package directory

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrInvalid   = errors.New("invalid user")
	ErrDuplicate = errors.New("duplicate user")
)

type Service struct {
	users  UserRepository
	logger zerolog.Logger
}

func NewService(users UserRepository, logger zerolog.Logger) *Service {
	return &Service{users: users, logger: logger.With().Str("component", "directory").Logger()}
}

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalid, u.Email)
	}
	if !validRoles[u.Role] {
		return fmt.Errorf("%w: role must be patient, doctor or admin", ErrInvalid)
	}
	if u.ExperienceYears < 0 {
		return fmt.Errorf("%w: experience_years must not be negative", ErrInvalid)
	}
	if u.Role == RoleDoctor && (u.Specialization == nil || strings.TrimSpace(*u.Specialization) == "") {
		return fmt.Errorf("%w: specialization is required for doctors", ErrInvalid)
	}
	if u.Role != RoleDoctor {
		u.Specialization, u.Qualification, u.ExperienceYears = nil, nil, 0
	}
	u.Active = true

	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user created")
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// GetDoctor returns an active doctor; anyone else is reported as not found.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsDoctor() || !u.Active {
		return nil, fmt.Errorf("%w: doctor %s", ErrNotFound, id)
	}
	return u, nil
}

func (s *Service) SearchDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*User, int, error) {
	f.Specialization = strings.TrimSpace(f.Specialization)
	f.Name = strings.TrimSpace(f.Name)
	return s.users.SearchDoctors(ctx, f, limit, offset)
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	return s.users.List(ctx, role, limit, offset)
}

// SetActive toggles a user account. An admin cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actorID, id uuid.UUID, active bool) error {
	if actorID == id && !active {
		return fmt.Errorf("%w: administrators cannot deactivate their own account", ErrInvalid)
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id.String()).Bool("active", active).Str("actor", actorID.String()).Msg("user activation changed")
	return nil
}
