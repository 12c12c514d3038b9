// Package memory implements the database store port in process memory. It
// backs unit tests and the `serve --memory` development mode and enforces the
// same unique constraints as the Postgres schema.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
	"github.com/Strob0t/TenantCMS/internal/domain/tenant"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

var _ database.Store = (*Store)(nil)

type entry[T any] struct {
	seq int64
	v   T
}

// Store is a concurrency-safe in-memory database.Store.
type Store struct {
	mu      sync.RWMutex
	seq     int64
	now     func() time.Time
	tenants map[string]entry[tenant.Tenant]
	users   map[string]entry[user.User]
	docs    map[content.Collection]map[string]entry[content.Document]
}

// New returns an empty store.
func New() *Store {
	s := &Store{
		now:     func() time.Time { return time.Now().UTC() },
		tenants: map[string]entry[tenant.Tenant]{},
		users:   map[string]entry[user.User]{},
		docs:    map[content.Collection]map[string]entry[content.Document]{},
	}
	for _, c := range content.Collections {
		s.docs[c] = map[string]entry[content.Document]{}
	}
	return s
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// --- Tenants ---

func (s *Store) CreateTenant(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tenantSlugTaken(t.Slug, "") {
		return fmt.Errorf("create tenant %s: %w", t.Slug, domain.ErrDuplicate)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.tenants[t.ID] = entry[tenant.Tenant]{seq: s.next(), v: *t}
	return nil
}

func (s *Store) tenantSlugTaken(slug, exceptID string) bool {
	for id, e := range s.tenants {
		if id != exceptID && e.v.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Store) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
	}
	t := e.v
	return &t, nil
}

func (s *Store) GetTenantBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.tenants {
		if e.v.Slug == slug {
			t := e.v
			return &t, nil
		}
	}
	return nil, fmt.Errorf("get tenant by slug %s: %w", slug, domain.ErrNotFound)
}

func (s *Store) FindTenants(_ context.Context, q database.Query) ([]tenant.Tenant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.tenants, q, tenantValue, tenantSortKey)
}

func (s *Store) UpdateTenant(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tenants[t.ID]
	if !ok {
		return fmt.Errorf("update tenant %s: %w", t.ID, domain.ErrNotFound)
	}
	if s.tenantSlugTaken(t.Slug, t.ID) {
		return fmt.Errorf("update tenant %s: %w", t.Slug, domain.ErrDuplicate)
	}
	t.CreatedAt = e.v.CreatedAt
	t.UpdatedAt = s.now()
	e.v = *t
	s.tenants[t.ID] = e
	return nil
}

// DeleteTenant removes the tenant, its documents and its memberships.
func (s *Store) DeleteTenant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[id]; !ok {
		return fmt.Errorf("delete tenant %s: %w", id, domain.ErrNotFound)
	}
	delete(s.tenants, id)
	for _, docs := range s.docs {
		for docID, e := range docs {
			if e.v.TenantID() == id {
				delete(docs, docID)
			}
		}
	}
	for uid, e := range s.users {
		e.v.Tenants = slices.DeleteFunc(e.v.Tenants, func(m user.Membership) bool { return m.Tenant.ID() == id })
		s.users[uid] = e
	}
	return nil
}

func tenantValue(t *tenant.Tenant, path string) ([]any, bool) {
	switch path {
	case "id":
		return []any{t.ID}, true
	case "name":
		return []any{t.Name}, true
	case "slug":
		return []any{t.Slug}, true
	case "domain":
		return []any{t.Domain}, true
	case "allow_public_read":
		return []any{t.AllowPublicRead}, true
	default:
		return nil, false
	}
}

func tenantSortKey(t *tenant.Tenant, field string) (string, bool) {
	switch field {
	case "name":
		return t.Name, true
	case "slug":
		return t.Slug, true
	case "created_at":
		return t.CreatedAt.Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// --- Users ---

func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(u.Email, "") {
		return fmt.Errorf("create user %s: %w", u.Email, domain.ErrDuplicate)
	}
	if err := s.checkMemberships(u); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = entry[user.User]{seq: s.next(), v: cloneUser(u)}
	return nil
}

func (s *Store) emailTaken(email, exceptID string) bool {
	for id, e := range s.users {
		if id != exceptID && strings.EqualFold(e.v.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) checkMemberships(u *user.User) error {
	for _, m := range u.Tenants {
		if _, ok := s.tenants[m.Tenant.ID()]; !ok {
			return fmt.Errorf("membership tenant %s: %w", m.Tenant.ID(), domain.ErrConflict)
		}
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	u := cloneUser(&e.v)
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.users {
		if strings.EqualFold(e.v.Email, email) {
			u := cloneUser(&e.v)
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user by email %s: %w", email, domain.ErrNotFound)
}

func (s *Store) FindUsers(_ context.Context, q database.Query) ([]user.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, total, err := find(s.users, q, userValue, userSortKey)
	for i := range out {
		out[i] = cloneUser(&out[i])
	}
	return out, total, err
}

func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("update user %s: %w", u.ID, domain.ErrNotFound)
	}
	if s.emailTaken(u.Email, u.ID) {
		return fmt.Errorf("update user %s: %w", u.Email, domain.ErrDuplicate)
	}
	if err := s.checkMemberships(u); err != nil {
		return err
	}
	u.CreatedAt = e.v.CreatedAt
	u.UpdatedAt = s.now()
	e.v = cloneUser(u)
	s.users[u.ID] = e
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("delete user %s: %w", id, domain.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func cloneUser(u *user.User) user.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	c.Tenants = make([]user.Membership, len(u.Tenants))
	for i, m := range u.Tenants {
		c.Tenants[i] = user.Membership{Tenant: domain.RefTo(m.Tenant.ID()), Roles: slices.Clone(m.Roles)}
	}
	return c
}

func userValue(u *user.User, path string) ([]any, bool) {
	switch path {
	case "id":
		return []any{u.ID}, true
	case "email":
		return []any{u.Email}, true
	case "name":
		return []any{u.Name}, true
	case "roles":
		vs := make([]any, len(u.Roles))
		for i, r := range u.Roles {
			vs[i] = string(r)
		}
		return vs, true
	case "tenants.tenant":
		ids := user.TenantIDs(u, "")
		vs := make([]any, len(ids))
		for i, id := range ids {
			vs[i] = id
		}
		return vs, true
	default:
		return nil, false
	}
}

func userSortKey(u *user.User, field string) (string, bool) {
	switch field {
	case "email":
		return u.Email, true
	case "name":
		return u.Name, true
	case "created_at":
		return u.CreatedAt.Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// --- Documents ---

func (s *Store) collection(c content.Collection) (map[string]entry[content.Document], error) {
	docs, ok := s.docs[c]
	if !ok {
		return nil, domain.NewValidationError("collection", fmt.Sprintf("unknown collection %q", c))
	}
	return docs, nil
}

func (s *Store) FindDocuments(_ context.Context, c content.Collection, q database.Query) ([]content.Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, err := s.collection(c)
	if err != nil {
		return nil, 0, err
	}
	value := func(d *content.Document, path string) ([]any, bool) {
		if rel, ok := strings.CutPrefix(path, "tenant."); ok {
			t, found := s.tenants[d.TenantID()]
			if !found {
				return nil, true
			}
			return tenantValue(&t.v, rel)
		}
		return d.Value(path)
	}
	return find(docs, q, value, documentSortKey)
}

func (s *Store) GetDocument(_ context.Context, c content.Collection, id string) (*content.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, err := s.collection(c)
	if err != nil {
		return nil, err
	}
	e, ok := docs[id]
	if !ok {
		return nil, fmt.Errorf("get %s %s: %w", c.Noun(), id, domain.ErrNotFound)
	}
	d := e.v
	return &d, nil
}

func (s *Store) CreateDocument(_ context.Context, d *content.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.collection(d.Collection)
	if err != nil {
		return err
	}
	if err := s.checkDocument(docs, d); err != nil {
		return fmt.Errorf("create %s: %w", d.Collection.Noun(), err)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	docs[d.ID] = entry[content.Document]{seq: s.next(), v: stripExpansion(*d)}
	return nil
}

func (s *Store) UpdateDocument(_ context.Context, d *content.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.collection(d.Collection)
	if err != nil {
		return err
	}
	e, ok := docs[d.ID]
	if !ok {
		return fmt.Errorf("update %s %s: %w", d.Collection.Noun(), d.ID, domain.ErrNotFound)
	}
	if err := s.checkDocument(docs, d); err != nil {
		return fmt.Errorf("update %s: %w", d.Collection.Noun(), err)
	}
	d.CreatedAt = e.v.CreatedAt
	d.UpdatedAt = s.now()
	e.v = stripExpansion(*d)
	docs[d.ID] = e
	return nil
}

// DeleteDocument removes a document. Page types still referenced by pages
// cannot be deleted.
func (s *Store) DeleteDocument(_ context.Context, c content.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.collection(c)
	if err != nil {
		return err
	}
	if _, ok := docs[id]; !ok {
		return fmt.Errorf("delete %s %s: %w", c.Noun(), id, domain.ErrNotFound)
	}
	if c == content.CollectionPageTypes {
		for _, p := range s.docs[content.CollectionPages] {
			if p.v.PageType.ID() == id {
				return fmt.Errorf("delete page type %s: still used by page %s: %w", id, p.v.ID, domain.ErrConflict)
			}
		}
	}
	delete(docs, id)
	return nil
}

// checkDocument enforces the tenant foreign key, the page type foreign key
// and the (tenant, slug) unique index.
func (s *Store) checkDocument(docs map[string]entry[content.Document], d *content.Document) error {
	if _, ok := s.tenants[d.TenantID()]; !ok {
		return fmt.Errorf("tenant %q: %w", d.TenantID(), domain.ErrConflict)
	}
	if !d.PageType.IsZero() {
		if _, ok := s.docs[content.CollectionPageTypes][d.PageType.ID()]; !ok {
			return fmt.Errorf("page type %q: %w", d.PageType.ID(), domain.ErrConflict)
		}
	}
	if !d.Collection.HasSlug() {
		return nil
	}
	for id, e := range docs {
		if id != d.ID && e.v.TenantID() == d.TenantID() && e.v.Slug == d.Slug {
			return fmt.Errorf("slug %q in tenant %s: %w", d.Slug, d.TenantID(), domain.ErrDuplicate)
		}
	}
	return nil
}

func stripExpansion(d content.Document) content.Document {
	d.Tenant = domain.RefTo(d.Tenant.ID())
	d.PageType = domain.RefTo(d.PageType.ID())
	return d
}

func documentSortKey(d *content.Document, field string) (string, bool) {
	switch field {
	case "title":
		return d.Title, true
	case "name":
		return d.Name, true
	case "slug":
		return d.Slug, true
	case "created_at":
		return d.CreatedAt.Format(time.RFC3339Nano), true
	case "updated_at":
		return d.UpdatedAt.Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// find filters, sorts and pages the records of one table. The total is the
// number of matches before paging.
func find[T any](
	table map[string]entry[T],
	q database.Query,
	value func(*T, string) ([]any, bool),
	sortKey func(*T, string) (string, bool),
) ([]T, int, error) {
	matched := make([]entry[T], 0, len(table))
	for _, e := range table {
		v := e.v
		ok, err := query.Match(q.Where, func(path string) ([]any, bool) { return value(&v, path) })
		if err != nil {
			return nil, 0, err
		}
		if ok {
			matched = append(matched, e)
		}
	}

	field, desc := strings.CutPrefix(q.Sort, "-")
	if field != "" {
		if _, ok := sortKey(new(T), field); !ok {
			return nil, 0, domain.NewValidationError("sort", fmt.Sprintf("cannot sort by %q", field))
		}
	}
	slices.SortFunc(matched, func(a, b entry[T]) int {
		if field != "" {
			ka, _ := sortKey(&a.v, field)
			kb, _ := sortKey(&b.v, field)
			if c := cmp.Compare(ka, kb); c != 0 {
				if desc {
					return -c
				}
				return c
			}
		}
		return cmp.Compare(a.seq, b.seq)
	})

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	out := make([]T, 0, end-start)
	for _, e := range matched[start:end] {
		out = append(out, e.v)
	}
	return out, total, nil
}
