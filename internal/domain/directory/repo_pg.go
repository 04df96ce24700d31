package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curesync/curesync/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, role, name, email, phone, specialization, qualification,
	experience_years, active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Role, &u.Name, &u.Email, &u.Phone, &u.Specialization,
		&u.Qualification, &u.ExperienceYears, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO app_user (id, role, name, email, phone, specialization, qualification,
			experience_years, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		u.ID, u.Role, u.Name, u.Email, u.Phone, u.Specialization, u.Qualification,
		u.ExperienceYears, u.Active).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: email %s is already registered", ErrDuplicate, u.Email)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) SearchDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*User, int, error) {
	where := ` FROM app_user WHERE role = 'doctor' AND active`
	var args []interface{}
	idx := 1

	if f.Specialization != "" {
		where += fmt.Sprintf(` AND lower(specialization) = lower($%d)`, idx)
		args = append(args, f.Specialization)
		idx++
	}
	if f.Name != "" {
		where += fmt.Sprintf(` AND name ILIKE '%%' || $%d || '%%'`, idx)
		args = append(args, f.Name)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := `SELECT ` + userCols + where + fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	items, err := r.query(ctx, query, args...)
	return items, total, err
}

func (r *userRepoPG) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM app_user WHERE ($1 = '' OR role = $1)`, role).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	items, err := r.query(ctx, `SELECT `+userCols+` FROM app_user
		WHERE ($1 = '' OR role = $1) ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, role, limit, offset)
	return items, total, err
}

func (r *userRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE app_user SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
