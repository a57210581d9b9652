package domain

import "time"

// Role is the closed set of authorization roles an account can hold.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleVisitor Role = "visitor"
	RoleAdmin   Role = "admin"
)

// ParseRole maps the requested role string onto the closed role set.
// Unrecognized input falls back to the least-privileged role.
func ParseRole(value string) Role {
	switch Role(value) {
	case RoleAdmin:
		return RoleAdmin
	case RoleFaculty:
		return RoleFaculty
	case RoleVisitor:
		return RoleVisitor
	default:
		return RoleStudent
	}
}

// Account represents a registered user of the parking system.
type Account struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Role              Role
	ContactID         string
	Department        string
	EmailVerified     bool
	VerificationToken string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
