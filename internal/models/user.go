package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRole distinguishes students, mentors and administrators
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleMentor  UserRole = "mentor"
	RoleAdmin   UserRole = "admin"
)

// User is an account record in the user directory. The lifecycle engine
// reads subject specialties and the active flag for mentor targeting and
// writes rating and total_sessions through the rating aggregator.
type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          UserRole  `json:"role"`
	Subjects      []string  `json:"subjects"`
	Rating        *float64  `json:"rating"`
	TotalSessions int       `json:"totalSessions"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ScanUser scans a single PostgreSQL row into a User struct.
// Expected columns: id, name, email, role, subjects, rating,
// total_sessions, is_active, created_at, updated_at
func ScanUser(row pgx.Row) (*User, error) {
	var u User
	var subjects []string

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Role,
		&subjects,
		&u.Rating,
		&u.TotalSessions,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if subjects == nil {
		subjects = []string{}
	}
	u.Subjects = subjects

	return &u, nil
}

// ScanUsers scans multiple PostgreSQL rows into a slice of User structs
func ScanUsers(rows pgx.Rows) ([]*User, error) {
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		user, err := ScanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
