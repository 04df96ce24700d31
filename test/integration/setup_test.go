package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/curesync/curesync/internal/domain/booking"
	"github.com/curesync/curesync/internal/domain/directory"
	"github.com/curesync/curesync/internal/platform/db"
	"github.com/curesync/curesync/migrations"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

// TestMain uses CURESYNC_TEST_DATABASE_URL when set and otherwise starts a
// throwaway postgres container. Without either the suite is skipped.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("CURESYNC_TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping integration tests: %v\n", err)
			os.Exit(0)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "create pool: %v\n", err)
		os.Exit(1)
	}

	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		os.Exit(1)
	}

	globalDB = &testDB{Pool: pool, ConnStr: connStr}
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// Helper to create a user through the directory repo. Emails are unique per call.
func createTestUser(t *testing.T, ctx context.Context, role, name string) *directory.User {
	t.Helper()
	u := &directory.User{
		ID:     uuid.New(),
		Role:   role,
		Name:   name,
		Email:  fmt.Sprintf("%s-%s@curesync.test", role, uuid.New().String()[:8]),
		Active: true,
	}
	if role == directory.RoleDoctor {
		u.Specialization = ptrStr("Cardiology")
		u.ExperienceYears = 8
	}
	if err := directory.NewUserRepoPG(globalDB.Pool).Create(ctx, u); err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	return u
}

// Helper to create an active schedule entry.
func createTestSchedule(t *testing.T, ctx context.Context, doctorID uuid.UUID, day booking.Weekday, start, end string) *booking.ScheduleEntry {
	t.Helper()
	e := &booking.ScheduleEntry{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		DayOfWeek:       day,
		StartTime:       booking.MustTimeOfDay(start),
		EndTime:         booking.MustTimeOfDay(end),
		ConsultationFee: decimal.RequireFromString("750.00"),
		HospitalName:    "City Care Hospital",
		Active:          true,
	}
	if err := booking.NewScheduleRepoPG(globalDB.Pool).Create(ctx, e); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return e
}

// newBookingService wires the booking engine against the test database with a
// clock fixed before every date used by the tests.
func newBookingService(now time.Time) *booking.Service {
	users := directory.NewService(directory.NewUserRepoPG(globalDB.Pool), nopLogger)
	return booking.NewService(
		booking.NewScheduleRepoPG(globalDB.Pool),
		booking.NewAppointmentRepoPG(globalDB.Pool),
		users,
		db.NewSerializableRunner(globalDB.Pool, 3),
		nopLogger,
		booking.WithClock(func() time.Time { return now }),
	)
}

func ptrStr(s string) *string { return &s }
