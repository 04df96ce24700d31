package directory

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	SearchDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*User, int, error)
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
