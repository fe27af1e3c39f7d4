package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Rejection is the terminal outcome of a failed guard: a status code plus
// the machine-checkable error body written to the caller.
type Rejection struct {
	Status  int
	Error   string
	Message string
}

// Guard is a single authorization check over a request. A nil result passes
// the request through; a non-nil result stops the chain.
type Guard struct {
	Name  string
	Check func(r *http.Request) *Rejection
}

func reject(status int, errLabel, message string) *Rejection {
	return &Rejection{Status: status, Error: errLabel, Message: message}
}

func authenticationRequired() *Rejection {
	return reject(http.StatusUnauthorized, "Authentication required", "You must be logged in to access this resource")
}

func insufficientPermissions() *Rejection {
	return reject(http.StatusForbidden, "Insufficient permissions", "You do not have permission to access this resource")
}

// failClosed is returned when a decision function itself errors (an unknown
// role reaching a guard). The request is denied, never permitted.
func failClosed() *Rejection {
	return reject(http.StatusInternalServerError, "Authorization failed", "")
}

// Authenticated passes when the request carries a verified identity.
func (m Middleware) Authenticated() Guard {
	return Guard{
		Name: "authenticated",
		Check: func(r *http.Request) *Rejection {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				return authenticationRequired()
			}
			return nil
		},
	}
}

// MinimumRole passes when the identity's role ranks at least as high as
// minimum.
func (m Middleware) MinimumRole(minimum Role) Guard {
	return Guard{
		Name: "minimum_role",
		Check: func(r *http.Request) *Rejection {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				return authenticationRequired()
			}
			allowed, err := m.Catalogue.Hierarchy().AtLeast(identity.Role, minimum)
			if err != nil {
				m.logDecisionError(r, "minimum_role", err)
				return failClosed()
			}
			if !allowed {
				return insufficientPermissions()
			}
			return nil
		},
	}
}

// HasPermission passes when the identity's role holds the permission.
func (m Middleware) HasPermission(permission Permission) Guard {
	return Guard{
		Name: "permission",
		Check: func(r *http.Request) *Rejection {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				return authenticationRequired()
			}
			held, err := m.Catalogue.Has(identity.Role, permission)
			if err != nil {
				m.logDecisionError(r, "permission", err)
				return failClosed()
			}
			if !held {
				return insufficientPermissions()
			}
			return nil
		},
	}
}

// AnyPermission passes when the role holds at least one of the permissions.
// An empty list always rejects.
func (m Middleware) AnyPermission(permissions ...Permission) Guard {
	return Guard{
		Name: "any_permission",
		Check: func(r *http.Request) *Rejection {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				return authenticationRequired()
			}
			held, err := m.Catalogue.HasAny(identity.Role, permissions)
			if err != nil {
				m.logDecisionError(r, "any_permission", err)
				return failClosed()
			}
			if !held {
				return insufficientPermissions()
			}
			return nil
		},
	}
}

// AllPermissions passes when the role holds every listed permission. An
// empty list is vacuously satisfied. The rejection names the missing subset.
func (m Middleware) AllPermissions(permissions ...Permission) Guard {
	return Guard{
		Name: "all_permissions",
		Check: func(r *http.Request) *Rejection {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				return authenticationRequired()
			}
			missing, err := m.Catalogue.Missing(identity.Role, permissions)
			if err != nil {
				m.logDecisionError(r, "all_permissions", err)
				return failClosed()
			}
			if len(missing) > 0 {
				return reject(http.StatusForbidden, "Insufficient permissions", "Missing permissions: "+joinPermissions(missing))
			}
			return nil
		},
	}
}

// Ownership passes when the identity owns the resource identified by the
// URL parameter, or when its role reaches the admin override tier.
func (m Middleware) Ownership(param string) Guard {
	return m.OwnershipWithRole(param, RoleAdmin)
}

// OwnershipWithRole is Ownership with an explicit override tier.
func (m Middleware) OwnershipWithRole(param string, override Role) Guard {
	return Guard{
		Name: "ownership",
		Check: func(r *http.Request) *Rejection {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				return authenticationRequired()
			}
			ownerID := chi.URLParam(r, param)
			if ownerID == "" {
				return reject(http.StatusBadRequest, "Resource ID required", "")
			}
			if identity.SubjectID == ownerID {
				return nil
			}
			elevated, err := m.Catalogue.Hierarchy().AtLeast(identity.Role, override)
			if err != nil {
				m.logDecisionError(r, "ownership", err)
				return failClosed()
			}
			if !elevated {
				return reject(http.StatusForbidden, "Access denied", "")
			}
			return nil
		},
	}
}

func joinPermissions(permissions []Permission) string {
	out := ""
	for i, p := range permissions {
		if i > 0 {
			out += ", "
		}
		out += string(p)
	}
	return out
}
