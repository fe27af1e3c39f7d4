package rbac

import "fmt"

// Role is a discrete privilege tier assigned to a user.
type Role string

const (
	RoleUser       Role = "USER"
	RoleModerator  Role = "MODERATOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Hierarchy is a total order over a fixed set of roles. It is built once at
// startup and never mutated; decision functions receive it by value.
type Hierarchy struct {
	ordered []Role
	ranks   map[Role]int
}

// NewHierarchy builds a hierarchy from roles listed lowest to highest.
// Rank starts at 1.
func NewHierarchy(ordered ...Role) Hierarchy {
	ranks := make(map[Role]int, len(ordered))
	for i, role := range ordered {
		ranks[role] = i + 1
	}
	return Hierarchy{ordered: append([]Role(nil), ordered...), ranks: ranks}
}

// DefaultHierarchy returns the built-in USER < MODERATOR < ADMIN < SUPER_ADMIN order.
func DefaultHierarchy() Hierarchy {
	return NewHierarchy(RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin)
}

// Roles lists the known roles ordered by ascending rank.
func (h Hierarchy) Roles() []Role {
	return append([]Role(nil), h.ordered...)
}

// Rank returns the integer rank of a role. A role outside the hierarchy is a
// data-integrity bug; it is surfaced as ErrUnknownRole instead of being
// coerced to either end of the order.
func (h Hierarchy) Rank(role Role) (int, error) {
	rank, ok := h.ranks[role]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return rank, nil
}

// AtLeast reports whether role is at least as privileged as minimum.
func (h Hierarchy) AtLeast(role, minimum Role) (bool, error) {
	roleRank, err := h.Rank(role)
	if err != nil {
		return false, err
	}
	minRank, err := h.Rank(minimum)
	if err != nil {
		return false, err
	}
	return roleRank >= minRank, nil
}

// CanManage reports whether manager strictly out-ranks target. A role never
// manages a peer or itself.
func (h Hierarchy) CanManage(manager, target Role) (bool, error) {
	managerRank, err := h.Rank(manager)
	if err != nil {
		return false, err
	}
	targetRank, err := h.Rank(target)
	if err != nil {
		return false, err
	}
	return managerRank > targetRank, nil
}

// Parse validates a raw role string against the hierarchy.
func (h Hierarchy) Parse(raw string) (Role, error) {
	role := Role(raw)
	if _, ok := h.ranks[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// DefaultRole is assigned to newly registered users.
func DefaultRole() Role {
	return RoleUser
}
