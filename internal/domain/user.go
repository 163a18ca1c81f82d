package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates actor roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleUser       Role = "user"
)

// IsStaff reports whether the role belongs to support staff.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTechnician
}

// ParseRole validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleTechnician, RoleUser:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// User is an account able to report and act on incidents.
type User struct {
	ID           string
	Name         string
	Surname      string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	Phone        string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

// IsZero reports whether no actor was resolved.
func (a Actor) IsZero() bool {
	return a.ID == "" || a.Role == ""
}
