package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/middleware"
)

// Login handles POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r)
	if !ok {
		return
	}

	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			slog.DebugContext(r.Context(), "login failed", "email", req.Email)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type meResponse struct {
	User           *user.User `json:"user"`
	SelectedTenant string     `json:"selected_tenant,omitempty"`
	AdminTenants   []string   `json:"admin_tenants"`
}

// Me handles GET /api/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	admin := user.TenantIDs(p.User, user.TenantRoleAdmin)
	if admin == nil {
		admin = []string{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:           p.User,
		SelectedTenant: p.ContextTenant(),
		AdminTenants:   admin,
	})
}

type selectTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

// SelectTenant handles POST /api/auth/tenant. It sets or, with an empty
// tenant_id, clears the selected-tenant cookie. Only tenants the caller
// belongs to can be selected; super-admins may select any existing tenant.
func (h *Handlers) SelectTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[selectTenantRequest](w, r)
	if !ok {
		return
	}
	p := middleware.PrincipalFromContext(r.Context())

	cookie := &http.Cookie{
		Name:     h.SelectedTenantCookie,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if req.TenantID == "" {
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !p.User.HasTenant(req.TenantID) {
		if !p.IsSuperAdmin() {
			writeDomainError(w, r, domain.NewValidationError("tenant_id", "you are not a member of this tenant"), "")
			return
		}
		if _, err := h.Tenants.Get(r.Context(), p, req.TenantID); err != nil {
			writeDomainError(w, r, err, "tenant not found")
			return
		}
	}
	cookie.Value = req.TenantID
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}
