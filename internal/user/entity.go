// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID              string     `db:"id"`
	Email           string     `db:"email"`
	PasswordHash    string     `db:"password_hash"`
	FirstName       string     `db:"first_name"`
	LastName        string     `db:"last_name"`
	Role            string     `db:"role"`
	Language        string     `db:"language"`
	IsEmailVerified bool       `db:"is_email_verified"`
	LastLoginAt     *time.Time `db:"last_login_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
	// RoleTutor is accepted by the schema but no route gates on it yet.
	RoleTutor = "tutor"
)

const DefaultLanguage = "en"
