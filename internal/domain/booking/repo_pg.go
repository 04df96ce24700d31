package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/curesync/curesync/internal/platform/db"
)

// TIME and NUMERIC columns travel as text: HH:MM via to_char and decimal via
// ::text, so the Go types own the parsing.

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const scheduleCols = `id, doctor_id, day_of_week, to_char(start_time, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'), consultation_fee::text, hospital_name, hospital_address,
	max_patients, active, created_at, updated_at`

func scanSchedule(row pgx.Row) (*ScheduleEntry, error) {
	var e ScheduleEntry
	var day, start, end, fee string
	err := row.Scan(&e.ID, &e.DoctorID, &day, &start, &end, &fee, &e.HospitalName,
		&e.HospitalAddress, &e.MaxPatients, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: schedule entry", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule entry: %w", err)
	}
	e.DayOfWeek = Weekday(day)
	if e.StartTime, err = ParseTimeOfDay(start); err != nil {
		return nil, fmt.Errorf("schedule entry %s start: %w", e.ID, err)
	}
	if e.EndTime, err = ParseTimeOfDay(end); err != nil {
		return nil, fmt.Errorf("schedule entry %s end: %w", e.ID, err)
	}
	if e.ConsultationFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("schedule entry %s fee: %w", e.ID, err)
	}
	return &e, nil
}

func (r *scheduleRepoPG) Create(ctx context.Context, e *ScheduleEntry) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_entry (id, doctor_id, day_of_week, start_time, end_time,
			consultation_fee, hospital_name, hospital_address, max_patients, active)
		VALUES ($1,$2,$3,$4::time,$5::time,$6::numeric,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		e.ID, e.DoctorID, string(e.DayOfWeek), e.StartTime.String(), e.EndTime.String(),
		e.ConsultationFee.String(), e.HospitalName, e.HospitalAddress, e.MaxPatients, e.Active,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleEntry, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+scheduleCols+` FROM schedule_entry WHERE id = $1`, id))
}

func (r *scheduleRepoPG) Update(ctx context.Context, e *ScheduleEntry) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE schedule_entry SET day_of_week=$2, start_time=$3::time, end_time=$4::time,
			consultation_fee=$5::numeric, hospital_name=$6, hospital_address=$7,
			max_patients=$8, updated_at=NOW()
		WHERE id = $1 AND active
		RETURNING updated_at`,
		e.ID, string(e.DayOfWeek), e.StartTime.String(), e.EndTime.String(),
		e.ConsultationFee.String(), e.HospitalName, e.HospitalAddress, e.MaxPatients,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: schedule entry %s", ErrNotFound, e.ID)
	}
	return err
}

func (r *scheduleRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE schedule_entry SET active = false, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: schedule entry %s", ErrNotFound, id)
	}
	return nil
}

func (r *scheduleRepoPG) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleEntry, error) {
	return r.query(ctx, `SELECT `+scheduleCols+` FROM schedule_entry
		WHERE doctor_id = $1 AND active
		ORDER BY array_position(ARRAY['monday','tuesday','wednesday','thursday','friday','saturday','sunday'], day_of_week), start_time`,
		doctorID)
}

func (r *scheduleRepoPG) ListActiveByDoctorDay(ctx context.Context, doctorID uuid.UUID, day Weekday) ([]*ScheduleEntry, error) {
	return r.query(ctx, `SELECT `+scheduleCols+` FROM schedule_entry
		WHERE doctor_id = $1 AND day_of_week = $2 AND active
		ORDER BY created_at, id`, doctorID, string(day))
}

func (r *scheduleRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*ScheduleEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ScheduleEntry
	for rows.Next() {
		e, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, doctor_id, schedule_id, appointment_date,
	to_char(appointment_time, 'HH24:MI'), status, consultation_fee::text, payment_status,
	symptoms, notes, cancellation_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var at, fee string
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduleID, &date, &at, &a.Status,
		&fee, &a.PaymentStatus, &a.Symptoms, &a.Notes, &a.CancellationReason,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: appointment", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	a.Date = DateOf(date)
	if a.Time, err = ParseTimeOfDay(at); err != nil {
		return nil, fmt.Errorf("appointment %s time: %w", a.ID, err)
	}
	if a.ConsultationFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("appointment %s fee: %w", a.ID, err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, schedule_id, appointment_date,
			appointment_time, status, consultation_fee, payment_status, symptoms, notes)
		VALUES ($1,$2,$3,$4,$5::date,$6::time,$7,$8::numeric,$9,$10,$11)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduleID, a.Date.String(), a.Time.String(),
		a.Status, a.ConsultationFee.String(), a.PaymentStatus, a.Symptoms, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) BookedTimes(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(appointment_time, 'HH24:MI') FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2::date
			AND status IN ('scheduled', 'confirmed')`,
		doctorID, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var times []TimeOfDay
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *appointmentRepoPG) SlotTaken(ctx context.Context, doctorID uuid.UUID, date Date, t TimeOfDay) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointment
			WHERE doctor_id = $1 AND appointment_date = $2::date AND appointment_time = $3::time
				AND status IN ('scheduled', 'confirmed'))`,
		doctorID, date.String(), t.String()).Scan(&taken)
	return taken, err
}

func (r *appointmentRepoPG) PatientHasBooking(ctx context.Context, patientID, doctorID uuid.UUID, date Date) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointment
			WHERE patient_id = $1 AND doctor_id = $2 AND appointment_date = $3::date
				AND status <> 'cancelled')`,
		patientID, doctorID, date.String()).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, reason *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status = $2,
			cancellation_reason = COALESCE($3, cancellation_reason), updated_at = NOW()
		WHERE id = $1`, id, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment %s", ErrNotFound, id)
	}
	return nil
}

func (r *appointmentRepoPG) UpdatePayment(ctx context.Context, id uuid.UUID, payment string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, payment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment %s", ErrNotFound, id)
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Date != nil {
		where += fmt.Sprintf(` AND appointment_date = $%d::date`, idx)
		args = append(args, f.Date.String())
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + where +
		fmt.Sprintf(` ORDER BY appointment_date DESC, appointment_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
