package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/middleware"
	"github.com/Strob0t/TenantCMS/internal/service"
)

// ---------------------------------------------------------------------------
// Generic CRUD handler factories. Each one runs the service call as the
// principal of the request.
// ---------------------------------------------------------------------------

// handleFind creates a handler that lists resources filtered by the query string.
func handleFind[T any](findFn func(ctx context.Context, p access.Principal, params service.FindParams) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parseFindParams(r.URL.Query())
		if err != nil {
			writeDomainError(w, r, err, "")
			return
		}
		res, err := findFn(r.Context(), middleware.PrincipalFromContext(r.Context()), params)
		if err != nil {
			writeDomainError(w, r, err, "not found")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleGet creates a handler that retrieves a single resource by URL param "id".
func handleGet[T any](getFn func(ctx context.Context, p access.Principal, id string) (*T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context(), middleware.PrincipalFromContext(r.Context()), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleCreate creates a handler that decodes a JSON body and creates a resource.
func handleCreate[Req any, Res any](createFn func(ctx context.Context, p access.Principal, req *Req) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r)
		if !ok {
			return
		}
		res, err := createFn(r.Context(), middleware.PrincipalFromContext(r.Context()), &req)
		if err != nil {
			writeDomainError(w, r, err, "creation failed")
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// handleUpdate creates a handler that decodes a JSON body and updates a resource by URL param "id".
func handleUpdate[Req any, Res any](updateFn func(ctx context.Context, p access.Principal, id string, req *Req) (*Res, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r)
		if !ok {
			return
		}
		res, err := updateFn(r.Context(), middleware.PrincipalFromContext(r.Context()), urlParam(r, "id"), &req)
		if err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleDelete creates a handler that deletes a resource by URL param "id".
func handleDelete(deleteFn func(ctx context.Context, p access.Principal, id string) error, notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deleteFn(r.Context(), middleware.PrincipalFromContext(r.Context()), urlParam(r, "id")); err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
