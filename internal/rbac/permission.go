package rbac

import "fmt"

// Permission is a fine-grained capability tag independent of role.
type Permission string

const (
	// Self-service permissions.
	PermReadOwnProfile       Permission = "read_own_profile"
	PermUpdateOwnProfile     Permission = "update_own_profile"
	PermDeleteOwnAccount     Permission = "delete_own_account"
	PermReadOwnAccounts      Permission = "read_own_accounts"
	PermWriteOwnAccounts     Permission = "write_own_accounts"
	PermReadOwnTransactions  Permission = "read_own_transactions"
	PermWriteOwnTransactions Permission = "write_own_transactions"
	PermReadOwnBudgets       Permission = "read_own_budgets"
	PermWriteOwnBudgets      Permission = "write_own_budgets"
	PermReadOwnGoals         Permission = "read_own_goals"
	PermWriteOwnGoals        Permission = "write_own_goals"

	// Elevated read permissions.
	PermReadUserProfiles Permission = "read_user_profiles"
	PermModerateContent  Permission = "moderate_content"
	PermViewUserActivity Permission = "view_user_activity"

	// Administrative permissions.
	PermManageUsers    Permission = "manage_users"
	PermReadAllData    Permission = "read_all_data"
	PermSystemSettings Permission = "system_settings"
	PermViewAnalytics  Permission = "view_analytics"

	// Super-administrative permissions.
	PermManageAdmins         Permission = "manage_admins"
	PermSystemAdministration Permission = "system_administration"
	PermBillingManagement    Permission = "billing_management"
)

// Catalogue maps every role to its permission set. Grants are computed once
// by inheritance chaining: each role holds everything the role below it
// holds, plus its own additions.
type Catalogue struct {
	hierarchy Hierarchy
	grants    map[Role][]Permission
	members   map[Role]map[Permission]struct{}
}

// NewCatalogue builds a catalogue over the given hierarchy. Additions are
// keyed by role; an addition for a role outside the hierarchy is rejected.
func NewCatalogue(h Hierarchy, additions map[Role][]Permission) (Catalogue, error) {
	for role := range additions {
		if _, err := h.Rank(role); err != nil {
			return Catalogue{}, err
		}
	}
	grants := make(map[Role][]Permission, len(h.ordered))
	members := make(map[Role]map[Permission]struct{}, len(h.ordered))
	var inherited []Permission
	for _, role := range h.Roles() {
		granted := append(append([]Permission(nil), inherited...), additions[role]...)
		set := make(map[Permission]struct{}, len(granted))
		for _, p := range granted {
			set[p] = struct{}{}
		}
		grants[role] = granted
		members[role] = set
		inherited = granted
	}
	return Catalogue{hierarchy: h, grants: grants, members: members}, nil
}

// DefaultCatalogue returns the built-in role/permission mapping.
func DefaultCatalogue() Catalogue {
	c, err := NewCatalogue(DefaultHierarchy(), map[Role][]Permission{
		RoleUser: {
			PermReadOwnProfile,
			PermUpdateOwnProfile,
			PermDeleteOwnAccount,
			PermReadOwnAccounts,
			PermWriteOwnAccounts,
			PermReadOwnTransactions,
			PermWriteOwnTransactions,
			PermReadOwnBudgets,
			PermWriteOwnBudgets,
			PermReadOwnGoals,
			PermWriteOwnGoals,
		},
		RoleModerator: {
			PermReadUserProfiles,
			PermModerateContent,
			PermViewUserActivity,
		},
		RoleAdmin: {
			PermManageUsers,
			PermReadAllData,
			PermSystemSettings,
			PermViewAnalytics,
		},
		RoleSuperAdmin: {
			PermManageAdmins,
			PermSystemAdministration,
			PermBillingManagement,
		},
	})
	if err != nil {
		// Additions above only reference hierarchy roles.
		panic(fmt.Sprintf("rbac: default catalogue: %v", err))
	}
	return c
}

// Hierarchy returns the role order the catalogue was built over.
func (c Catalogue) Hierarchy() Hierarchy {
	return c.hierarchy
}

// PermissionsOf lists the permissions granted to a role, lowest tier first.
func (c Catalogue) PermissionsOf(role Role) ([]Permission, error) {
	granted, ok := c.grants[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return append([]Permission(nil), granted...), nil
}

// Has reports whether the role holds the permission.
func (c Catalogue) Has(role Role, permission Permission) (bool, error) {
	set, ok := c.members[role]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	_, held := set[permission]
	return held, nil
}

// HasAny reports whether the role holds at least one of the permissions.
// An empty list cannot be satisfied and yields false.
func (c Catalogue) HasAny(role Role, permissions []Permission) (bool, error) {
	set, ok := c.members[role]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	for _, p := range permissions {
		if _, held := set[p]; held {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether the role holds every permission in the list. An
// empty list is vacuously satisfied, unlike HasAny.
func (c Catalogue) HasAll(role Role, permissions []Permission) (bool, error) {
	missing, err := c.Missing(role, permissions)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Missing returns the subset of permissions the role does not hold.
func (c Catalogue) Missing(role Role, permissions []Permission) ([]Permission, error) {
	set, ok := c.members[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	var missing []Permission
	for _, p := range permissions {
		if _, held := set[p]; !held {
			missing = append(missing, p)
		}
	}
	return missing, nil
}
