package directory

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the app_user table. Doctor-only fields are nil for other roles.
type User struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Role            string    `db:"role" json:"role"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Phone           *string   `db:"phone" json:"phone,omitempty"`
	Specialization  *string   `db:"specialization" json:"specialization,omitempty"`
	Qualification   *string   `db:"qualification" json:"qualification,omitempty"`
	ExperienceYears int       `db:"experience_years" json:"experience_years"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) IsDoctor() bool { return u.Role == RoleDoctor }

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

var validRoles = map[string]bool{RolePatient: true, RoleDoctor: true, RoleAdmin: true}

// DoctorFilter narrows a doctor search. Empty fields match everything.
type DoctorFilter struct {
	Specialization string
	Name           string
}
