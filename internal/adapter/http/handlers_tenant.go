package http

import (
	"errors"
	"net/http"

	"github.com/Strob0t/TenantCMS/internal/middleware"
)

type seedRequest struct {
	Template string `json:"template"`
}

// SeedTenant handles POST /api/tenants/{id}/seed. Per-document failures do
// not fail the request; they are listed in the report.
func (h *Handlers) SeedTenant(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = readJSON[seedRequest](w, r); !ok {
			return
		}
	}

	report, err := h.Tenants.Seed(r.Context(), middleware.PrincipalFromContext(r.Context()), urlParam(r, "id"), req.Template)
	if report == nil {
		if err == nil {
			err = errors.New("seeding returned no report")
		}
		writeDomainError(w, r, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
