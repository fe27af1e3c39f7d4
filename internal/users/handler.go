package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fintrack-app/fintrack/internal/platform/httpx"
	"github.com/fintrack-app/fintrack/internal/rbac"
	"github.com/fintrack-app/fintrack/internal/shared"
)

// Handler wires HTTP endpoints for user administration and profiles.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		mw:        mw,
		validator: validator.New(),
	}
}

// MountAdminRoutes registers the moderation and user management routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Use(h.mw.Authenticate)

	r.With(h.mw.RequireAnyPermission(rbac.PermViewUserActivity, rbac.PermViewAnalytics)).
		Get("/stats", h.stats)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.Protect(
			h.mw.MinimumRole(rbac.RoleAdmin),
			h.mw.HasPermission(rbac.PermManageUsers),
		))
		r.Get("/users", h.list)
		r.Get("/users/{userID}", h.get)
		r.Put("/users/{userID}/role", h.changeRole)
		r.Post("/users/{userID}/deactivate", h.deactivate)
		r.Post("/users/{userID}/reactivate", h.reactivate)
	})
}

// MountProfileRoutes registers the self-service profile routes. A profile is
// reachable by its owner or by ADMIN and above.
func (h *Handler) MountProfileRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Authenticate)
		r.With(h.mw.RequireOwnership("userID")).Get("/{userID}/profile", h.profile)
		r.With(h.mw.RequireOwnership("userID")).Put("/{userID}/profile", h.updateProfile)
	})
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2"`
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      rbac.Role `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func viewOf(user *User) userView {
	return userView{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("user stats", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))

	items, pagination, err := h.service.List(r.Context(), page, perPage, q.Get("search"))
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	views := make([]userView, len(items))
	for i := range items {
		views[i] = viewOf(&items[i])
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}
	var req changeRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}
	if err := h.service.Deactivate(r.Context(), actor, chi.URLParam(r, "userID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}
	if err := h.service.Reactivate(r.Context(), actor, chi.URLParam(r, "userID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), chi.URLParam(r, "userID"), req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "User not found", "")
	case errors.Is(err, rbac.ErrUnknownRole):
		httpx.Error(w, http.StatusBadRequest, "Invalid role", "Role must be one of: "+h.roleList())
	case errors.Is(err, ErrCannotManageTarget):
		httpx.Error(w, http.StatusForbidden, "Insufficient permissions", "You cannot modify users with equal or higher privileges")
	case errors.Is(err, ErrCannotAssignRole):
		httpx.Error(w, http.StatusForbidden, "Insufficient permissions", "You cannot assign a role equal or higher than your own")
	case errors.Is(err, ErrSelfDeactivation):
		httpx.Error(w, http.StatusBadRequest, "Invalid operation", "You cannot deactivate your own account")
	default:
		h.logger.Error("user admin", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Internal error", "")
	}
}

func (h *Handler) roleList() string {
	roles := h.service.hierarchy.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body", "")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Error(w, http.StatusBadRequest, "Validation failed", fieldErrs[0].Error())
			return false
		}
		httpx.Error(w, http.StatusBadRequest, "Validation failed", "")
		return false
	}
	return true
}
