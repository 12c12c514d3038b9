package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/content"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// validID reports whether id can name a row. Malformed IDs are reported as
// not found instead of surfacing a cast error from the database.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// --- Documents ---

// documentFields lists every Document attribute in scan order. Each table
// stores a subset; the rest are selected as constants.
var documentFields = []struct {
	field, column, absent string
}{
	{"tenant", "tenant_id", "NULL::uuid"},
	{"page_type", "page_type_id", "NULL::uuid"},
	{"title", "title", "''"},
	{"name", "name", "''"},
	{"slug", "slug", "''"},
	{"status", "status", "''"},
	{"description", "description", "''"},
	{"content", "content", "NULL::jsonb"},
	{"fields", "fields", "NULL::jsonb"},
	{"is_default", "is_default", "FALSE"},
	{"alt", "alt", "''"},
	{"filename", "filename", "''"},
	{"mime_type", "mime_type", "''"},
	{"url", "url", "''"},
}

// docTable describes the table behind one collection.
type docTable struct {
	name   string
	stored []string
	fields fieldMap
	sorts  map[string]string
}

func newDocTable(name string, stored ...string) docTable {
	t := docTable{
		name:   name,
		stored: stored,
		fields: fieldMap{
			"id":            {expr: "x.id", kind: kindUUID},
			"created_at":    {expr: "x.created_at", kind: kindTime},
			"updated_at":    {expr: "x.updated_at", kind: kindTime},
			"tenant.slug":   tenantRelation("slug"),
			"tenant.domain": tenantRelation("domain"),
			"tenant.name":   tenantRelation("name"),
		},
		sorts: map[string]string{"created_at": "x.created_at", "updated_at": "x.updated_at"},
	}
	for _, f := range documentFields {
		if !slices.Contains(stored, f.field) {
			continue
		}
		col := column{expr: "x." + f.column}
		switch f.field {
		case "tenant", "page_type":
			col.kind = kindUUID
		case "is_default":
			col.kind = kindBool
		case "content", "fields", "description", "alt", "url":
			continue
		case "title", "name", "slug":
			t.sorts[f.field] = col.expr
		}
		t.fields[f.field] = col
	}
	return t
}

func (t docTable) selectList() string {
	cols := []string{"x.id"}
	for _, f := range documentFields {
		if slices.Contains(t.stored, f.field) {
			cols = append(cols, "x."+f.column)
		} else {
			cols = append(cols, f.absent)
		}
	}
	return strings.Join(append(cols, "x.created_at", "x.updated_at"), ", ")
}

var docTables = map[content.Collection]docTable{
	content.CollectionPages: newDocTable("pages",
		"tenant", "page_type", "title", "slug", "status", "description", "content"),
	content.CollectionPosts: newDocTable("posts",
		"tenant", "title", "slug", "status", "description", "content"),
	content.CollectionPageTypes: newDocTable("page_types",
		"tenant", "name", "slug", "fields", "is_default"),
	content.CollectionMedia: newDocTable("media",
		"tenant", "alt", "filename", "mime_type", "url"),
}

func tableFor(c content.Collection) (docTable, error) {
	t, ok := docTables[c]
	if !ok {
		return docTable{}, domain.NewValidationError("collection", fmt.Sprintf("unknown collection %q", c))
	}
	return t, nil
}

func documentValue(d *content.Document, field string) any {
	switch field {
	case "tenant":
		return d.TenantID()
	case "page_type":
		return nullIfEmpty(d.PageType.ID())
	case "title":
		return d.Title
	case "name":
		return d.Name
	case "slug":
		return d.Slug
	case "status":
		return string(d.Status)
	case "description":
		return d.Description
	case "content":
		return nullJSON(d.Content)
	case "fields":
		return nullJSON(d.Fields)
	case "is_default":
		return d.IsDefault
	case "alt":
		return d.Alt
	case "filename":
		return d.Filename
	case "mime_type":
		return d.MimeType
	case "url":
		return d.URL
	default:
		return nil
	}
}

func scanDocument(row scannable, c content.Collection) (content.Document, error) {
	d := content.Document{Collection: c}
	var (
		tenantID, pageTypeID *string
		status               string
		body, fields         []byte
	)
	err := row.Scan(&d.ID, &tenantID, &pageTypeID, &d.Title, &d.Name, &d.Slug, &status, &d.Description,
		&body, &fields, &d.IsDefault, &d.Alt, &d.Filename, &d.MimeType, &d.URL, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, err
	}
	if tenantID != nil {
		d.Tenant = domain.RefTo(*tenantID)
	}
	if pageTypeID != nil {
		d.PageType = domain.RefTo(*pageTypeID)
	}
	d.Status = content.Status(status)
	if len(body) > 0 {
		d.Content = body
	}
	if len(fields) > 0 {
		d.Fields = fields
	}
	return d, nil
}

func (s *Store) FindDocuments(ctx context.Context, c content.Collection, q database.Query) ([]content.Document, int, error) {
	t, err := tableFor(c)
	if err != nil {
		return nil, 0, err
	}
	comp := newCompiler(t.fields)
	cond, err := comp.compile(q.Where)
	if err != nil {
		return nil, 0, err
	}
	order, err := orderBy(t.sorts, q.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+t.name+" x WHERE "+cond, comp.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", t.name, err)
	}

	page := comp.limitOffset(q.Limit, q.Offset)
	rows, err := s.pool.Query(ctx,
		"SELECT "+t.selectList()+" FROM "+t.name+" x WHERE "+cond+" ORDER BY "+order+page, comp.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", t.name, err)
	}
	defer rows.Close()

	var docs []content.Document
	for rows.Next() {
		d, err := scanDocument(rows, c)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", c.Noun(), err)
		}
		docs = append(docs, d)
	}
	return orEmpty(docs), total, rows.Err()
}

func (s *Store) GetDocument(ctx context.Context, c content.Collection, id string) (*content.Document, error) {
	t, err := tableFor(c)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, fmt.Errorf("get %s %s: %w", c.Noun(), id, domain.ErrNotFound)
	}
	d, err := scanDocument(s.pool.QueryRow(ctx,
		"SELECT "+t.selectList()+" FROM "+t.name+" x WHERE x.id = $1", id), c)
	if err != nil {
		return nil, wrapErr(err, "get %s %s", c.Noun(), id)
	}
	return &d, nil
}

func (s *Store) CreateDocument(ctx context.Context, d *content.Document) error {
	t, err := tableFor(d.Collection)
	if err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	cols := []string{"id"}
	args := []any{d.ID}
	marks := []string{"$1"}
	for _, f := range documentFields {
		if !slices.Contains(t.stored, f.field) {
			continue
		}
		cols = append(cols, f.column)
		args = append(args, documentValue(d, f.field))
		marks = append(marks, fmt.Sprintf("$%d", len(args)))
	}
	err = s.pool.QueryRow(ctx,
		"INSERT INTO "+t.name+" ("+strings.Join(cols, ", ")+") VALUES ("+strings.Join(marks, ", ")+
			") RETURNING created_at, updated_at", args...,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create %s", d.Collection.Noun())
	}
	return nil
}

func (s *Store) UpdateDocument(ctx context.Context, d *content.Document) error {
	t, err := tableFor(d.Collection)
	if err != nil {
		return err
	}
	if !validID(d.ID) {
		return fmt.Errorf("update %s %s: %w", d.Collection.Noun(), d.ID, domain.ErrNotFound)
	}
	args := []any{d.ID}
	sets := make([]string, 0, len(t.stored)+1)
	for _, f := range documentFields {
		if !slices.Contains(t.stored, f.field) {
			continue
		}
		args = append(args, documentValue(d, f.field))
		sets = append(sets, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	sets = append(sets, "updated_at = now()")
	err = s.pool.QueryRow(ctx,
		"UPDATE "+t.name+" SET "+strings.Join(sets, ", ")+" WHERE id = $1 RETURNING created_at, updated_at", args...,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return wrapErr(err, "update %s %s", d.Collection.Noun(), d.ID)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, c content.Collection, id string) error {
	t, err := tableFor(c)
	if err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("delete %s %s: %w", c.Noun(), id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM "+t.name+" WHERE id = $1", id)
	return execExpectOne(tag, err, "delete %s %s", c.Noun(), id)
}
