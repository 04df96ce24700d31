package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curesync/curesync/internal/domain/booking"
	"github.com/curesync/curesync/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const reviewCols = `id, appointment_id, patient_id, doctor_id, rating, comment, created_at`

func scanReview(row pgx.Row) (*Review, error) {
	var rv Review
	if err := row.Scan(&rv.ID, &rv.AppointmentID, &rv.PatientID, &rv.DoctorID,
		&rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return &rv, nil
}

func (r *repoPG) Create(ctx context.Context, rv *Review) error {
	rv.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO review (id, appointment_id, patient_id, doctor_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		rv.ID, rv.AppointmentID, rv.PatientID, rv.DoctorID, rv.Rating, rv.Comment,
	).Scan(&rv.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: appointment %s already has a review", booking.ErrConflict, rv.AppointmentID)
	}
	return err
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM review WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reviewCols+` FROM review
		WHERE doctor_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rv)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SummaryForDoctor(ctx context.Context, doctorID uuid.UUID) (Summary, error) {
	var s Summary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(ROUND(AVG(rating)::numeric, 2), 0)::float8
		FROM review WHERE doctor_id = $1`, doctorID).Scan(&s.Count, &s.Average)
	return s, err
}
