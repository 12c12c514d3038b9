package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// maxWhereLength bounds the JSON filter accepted in the query string.
const maxWhereLength = 4096

// maxDepth caps relation population.
const maxDepth = 2

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// parseFindParams reads where, limit, page, sort and depth from the query
// string. Missing values keep their zero value; the services apply defaults.
func parseFindParams(q url.Values) (service.FindParams, error) {
	var p service.FindParams

	if raw := q.Get("where"); raw != "" {
		if len(raw) > maxWhereLength {
			return p, domain.NewValidationError("where", "filter too long")
		}
		var w query.Where
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return p, domain.NewValidationError("where", "invalid filter: "+err.Error())
		}
		p.Where = w
	}

	var err error
	if p.Limit, err = intParam(q, "limit"); err != nil {
		return p, err
	}
	if p.Page, err = intParam(q, "page"); err != nil {
		return p, err
	}
	depth, err := intParam(q, "depth")
	if err != nil {
		return p, err
	}
	p.Depth = min(depth, maxDepth)
	p.Sort = q.Get("sort")
	return p, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, name+" must be a non-negative integer")
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps service errors onto HTTP statuses. Validation errors
// keep their message and field; everything unexpected is logged and hidden.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, domain.ErrForbidden):
		slog.InfoContext(r.Context(), "request denied", "path", r.URL.Path, "reason", err.Error())
		writeError(w, http.StatusForbidden, "you are not allowed to perform this action")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource is referenced or references a missing record")
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
