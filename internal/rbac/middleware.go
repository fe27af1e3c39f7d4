package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fintrack-app/fintrack/internal/platform/httpx"
)

// DecisionRecorder counts guard outcomes. Satisfied by observability.Metrics.
type DecisionRecorder interface {
	AuthzDecision(guard, outcome string)
}

// Middleware wires authorization guards for HTTP handlers. Decisions are
// evaluated fresh per request; nothing is cached across requests.
type Middleware struct {
	Catalogue Catalogue
	Verifier  Verifier
	Logger    *slog.Logger
	Metrics   DecisionRecorder
}

// Authenticate extracts and verifies the bearer credential, storing the
// resulting identity in the request context. Requests without a valid
// credential are rejected with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, rej := m.extractIdentity(r)
		if rej != nil {
			m.record("authenticate", "deny")
			httpx.Error(w, rej.Status, rej.Error, rej.Message)
			return
		}
		m.record("authenticate", "allow")
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// OptionalAuthenticate performs the same extraction but proceeds without an
// identity on any failure. Used by endpoints that behave differently for
// anonymous callers without ever requiring authentication.
func (m Middleware) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, rej := m.extractIdentity(r)
		if rej != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

func (m Middleware) extractIdentity(r *http.Request) (Identity, *Rejection) {
	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNoCredential):
			return Identity{}, reject(http.StatusUnauthorized, "Access token required", "")
		default:
			return Identity{}, reject(http.StatusUnauthorized, "Invalid token format", "")
		}
	}
	identity, err := m.Verifier.Verify(r.Context(), token)
	if err != nil {
		return Identity{}, reject(http.StatusUnauthorized, "Invalid or expired token", "Token is not valid")
	}
	return identity, nil
}

// Protect evaluates guards in order. The first rejection is written to the
// response and no later guard or the wrapped handler runs.
func (m Middleware) Protect(guards ...Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, guard := range guards {
				if rej := guard.Check(r); rej != nil {
					m.record(guard.Name, "deny")
					if m.Logger != nil {
						m.Logger.Warn("authorization rejected",
							slog.String("guard", guard.Name),
							slog.Int("status", rej.Status),
							slog.String("path", r.URL.Path))
					}
					httpx.Error(w, rej.Status, rej.Error, rej.Message)
					return
				}
				m.record(guard.Name, "allow")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects requests that carry no verified identity.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.Protect(m.Authenticated())
}

// RequireMinimumRole rejects identities below the minimum role.
func (m Middleware) RequireMinimumRole(minimum Role) func(http.Handler) http.Handler {
	return m.Protect(m.MinimumRole(minimum))
}

// RequirePermission rejects identities whose role lacks the permission.
func (m Middleware) RequirePermission(permission Permission) func(http.Handler) http.Handler {
	return m.Protect(m.HasPermission(permission))
}

// RequireAnyPermission rejects identities holding none of the permissions.
func (m Middleware) RequireAnyPermission(permissions ...Permission) func(http.Handler) http.Handler {
	return m.Protect(m.AnyPermission(permissions...))
}

// RequireAllPermissions rejects identities missing any of the permissions.
func (m Middleware) RequireAllPermissions(permissions ...Permission) func(http.Handler) http.Handler {
	return m.Protect(m.AllPermissions(permissions...))
}

// RequireOwnership rejects identities that neither own the resource named by
// the URL parameter nor reach the ADMIN override tier.
func (m Middleware) RequireOwnership(param string) func(http.Handler) http.Handler {
	return m.Protect(m.Ownership(param))
}

func (m Middleware) record(guard, outcome string) {
	if m.Metrics != nil {
		m.Metrics.AuthzDecision(guard, outcome)
	}
}

func (m Middleware) logDecisionError(r *http.Request, guard string, err error) {
	if m.Logger != nil {
		m.Logger.Error("authorization decision failed",
			slog.String("guard", guard),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
}
