package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/TenantCMS/internal/domain/access"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/service"
)

// collection resolves the {collection} URL segment, writing 404 for names
// that are not tenant-scoped collections.
func collection(w http.ResponseWriter, r *http.Request) (content.Collection, bool) {
	c, ok := content.ParseCollection(urlParam(r, "collection"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
	}
	return c, ok
}

// FindDocuments handles GET /api/{collection}
func (h *Handlers) FindDocuments(w http.ResponseWriter, r *http.Request) {
	c, ok := collection(w, r)
	if !ok {
		return
	}
	handleFind(func(ctx context.Context, p access.Principal, params service.FindParams) (*service.FindResult, error) {
		return h.Content.Find(ctx, p, c, params)
	})(w, r)
}

// GetDocument handles GET /api/{collection}/{id}
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := collection(w, r)
	if !ok {
		return
	}
	depth, err := intParam(r.URL.Query(), "depth")
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	handleGet(func(ctx context.Context, p access.Principal, id string) (*content.Document, error) {
		return h.Content.FindByID(ctx, p, c, id, min(depth, maxDepth))
	}, c.Noun()+" not found")(w, r)
}

// CreateDocument handles POST /api/{collection}
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := collection(w, r)
	if !ok {
		return
	}
	handleCreate(func(ctx context.Context, p access.Principal, in *content.Input) (*content.Document, error) {
		return h.Content.Create(ctx, p, c, in)
	})(w, r)
}

// UpdateDocument handles PATCH /api/{collection}/{id}
func (h *Handlers) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := collection(w, r)
	if !ok {
		return
	}
	handleUpdate(func(ctx context.Context, p access.Principal, id string, in *content.Input) (*content.Document, error) {
		return h.Content.Update(ctx, p, c, id, in)
	}, c.Noun()+" not found")(w, r)
}

// DeleteDocument handles DELETE /api/{collection}/{id}
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := collection(w, r)
	if !ok {
		return
	}
	handleDelete(func(ctx context.Context, p access.Principal, id string) error {
		return h.Content.Delete(ctx, p, c, id)
	}, c.Noun()+" not found")(w, r)
}
