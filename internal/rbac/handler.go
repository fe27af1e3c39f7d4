package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fintrack-app/fintrack/internal/platform/httpx"
)

// Handler exposes the role/permission catalogue as a read-only table for
// admin tooling and tests.
type Handler struct {
	logger    *slog.Logger
	catalogue Catalogue
	mw        Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalogue Catalogue, mw Middleware) *Handler {
	return &Handler{logger: logger, catalogue: catalogue, mw: mw}
}

// MountRoutes registers catalogue introspection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Authenticate)
		r.Use(h.mw.RequirePermission(PermSystemSettings))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{role}/permissions", h.rolePermissions)
	})
}

type roleView struct {
	Role        Role         `json:"role"`
	Rank        int          `json:"rank"`
	Permissions []Permission `json:"permissions"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	hierarchy := h.catalogue.Hierarchy()
	views := make([]roleView, 0, len(hierarchy.Roles()))
	for _, role := range hierarchy.Roles() {
		rank, err := hierarchy.Rank(role)
		if err != nil {
			h.logger.Error("catalogue introspection", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, "Internal error", "")
			return
		}
		permissions, err := h.catalogue.PermissionsOf(role)
		if err != nil {
			h.logger.Error("catalogue introspection", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, "Internal error", "")
			return
		}
		views = append(views, roleView{Role: role, Rank: rank, Permissions: permissions})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": views})
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	role, err := h.catalogue.Hierarchy().Parse(chi.URLParam(r, "role"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid role", "Role must be one of: USER, MODERATOR, ADMIN, SUPER_ADMIN")
		return
	}
	permissions, err := h.catalogue.PermissionsOf(role)
	if err != nil {
		h.logger.Error("catalogue introspection", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role, "permissions": permissions})
}
