package review

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Review) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, error)
	SummaryForDoctor(ctx context.Context, doctorID uuid.UUID) (Summary, error)
}
