package users

import (
	"errors"
	"time"

	"github.com/fintrack-app/fintrack/internal/rbac"
)

// User is the administrative view of an account. Password material never
// crosses this package boundary.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      rbac.Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats aggregates account counts for the moderation dashboard.
type Stats struct {
	Total    int64               `json:"total"`
	Active   int64               `json:"active"`
	Inactive int64               `json:"inactive"`
	ByRole   map[rbac.Role]int64 `json:"byRole"`
}

var (
	// ErrCannotManageTarget is returned when the acting role does not
	// strictly out-rank the target's current role.
	ErrCannotManageTarget = errors.New("users: cannot manage target")
	// ErrCannotAssignRole is returned when the requested role is equal to
	// or higher than the acting role.
	ErrCannotAssignRole = errors.New("users: cannot assign role")
	// ErrSelfDeactivation is returned when a user attempts to deactivate
	// their own account.
	ErrSelfDeactivation = errors.New("users: self deactivation")
)
