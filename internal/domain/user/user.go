package user

import (
	"errors"
	"strings"
	"time"
)

// Role represents a user role.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Status represents account status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusDisabled  Status = "DISABLED"
)

// Scheme is the credential scheme a connection authenticated with.
type Scheme string

const (
	SchemeUser  Scheme = "Bearer"
	SchemeAdmin Scheme = "Admin"
)

var ErrNotFound = errors.New("user not found")

// User is the canonical account record owned by the surrounding application.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) IsConfirmed() bool {
	return u.Status == StatusConfirmed
}

// Identity is the resolved caller of a connection or request.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	Scheme      Scheme `json:"scheme"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// ParseScheme matches a scheme prefix case-insensitively.
func ParseScheme(s string) (Scheme, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bearer":
		return SchemeUser, true
	case "admin":
		return SchemeAdmin, true
	default:
		return "", false
	}
}

// RoleFor returns the role granted by a scheme.
func RoleFor(s Scheme) Role {
	if s == SchemeAdmin {
		return RoleAdmin
	}
	return RoleUser
}

func ValidateRole(role Role) error {
	switch role {
	case RoleUser, RoleAdmin:
		return nil
	default:
		return errors.New("invalid role")
	}
}

func ValidateStatus(status Status) error {
	switch status {
	case StatusPending, StatusConfirmed, StatusDisabled:
		return nil
	default:
		return errors.New("invalid status")
	}
}
