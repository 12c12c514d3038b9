package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

const userColumns = `x.id, x.email, x.name, x.password_hash, x.roles, x.created_at, x.updated_at`

var userSorts = map[string]string{
	"email":      "x.email",
	"name":       "x.name",
	"created_at": "x.created_at",
}

func scanUser(row scannable) (user.User, error) {
	var u user.User
	var roles []string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &roles, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return u, err
	}
	u.Roles = make([]user.Role, len(roles))
	for i, r := range roles {
		u.Roles[i] = user.Role(r)
	}
	u.Tenants = []user.Membership{}
	return u, nil
}

// loadMemberships attaches memberships to users, preserving their order.
func (s *Store) loadMemberships(ctx context.Context, users []user.User) error {
	if len(users) == 0 {
		return nil
	}
	index := make(map[string]int, len(users))
	ids := make([]string, len(users))
	for i := range users {
		index[users[i].ID] = i
		ids[i] = users[i].ID
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, tenant_id, roles FROM user_tenants
		 WHERE user_id = ANY($1::uuid[]) ORDER BY user_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, tenantID string
		var roles []string
		if err := rows.Scan(&userID, &tenantID, &roles); err != nil {
			return fmt.Errorf("scan membership: %w", err)
		}
		m := user.Membership{Tenant: domain.RefTo(tenantID), Roles: make([]user.TenantRole, len(roles))}
		for i, r := range roles {
			m.Roles[i] = user.TenantRole(r)
		}
		u := &users[index[userID]]
		u.Tenants = append(u.Tenants, m)
	}
	return rows.Err()
}

func writeMemberships(ctx context.Context, tx pgx.Tx, u *user.User) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_tenants WHERE user_id = $1`, u.ID); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}
	for i, m := range u.Tenants {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_tenants (user_id, tenant_id, roles, position) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, tenant_id) DO UPDATE SET roles = EXCLUDED.roles`,
			u.ID, m.Tenant.ID(), pgTextArray(m.Roles), i)
		if err != nil {
			return wrapErr(err, "insert membership %s", m.Tenant.ID())
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx,
		`INSERT INTO users (id, email, name, password_hash, roles)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.PasswordHash, pgTextArray(u.Roles),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create user %s", u.Email)
	}
	if err := writeMemberships(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users x WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	users := []user.User{u}
	if err := s.loadMemberships(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	if !validID(id) {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	u, err := s.getUser(ctx, `x.id = $1`, id)
	if err != nil {
		return nil, wrapErr(err, "get user %s", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := s.getUser(ctx, `lower(x.email) = lower($1)`, email)
	if err != nil {
		return nil, wrapErr(err, "get user by email %s", email)
	}
	return u, nil
}

func (s *Store) FindUsers(ctx context.Context, q database.Query) ([]user.User, int, error) {
	comp := newCompiler(userFields)
	cond, err := comp.compile(q.Where)
	if err != nil {
		return nil, 0, err
	}
	order, err := orderBy(userSorts, q.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users x WHERE `+cond, comp.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	page := comp.limitOffset(q.Limit, q.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users x WHERE `+cond+` ORDER BY `+order+page, comp.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find users: %w", err)
	}
	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("find users: %w", err)
	}
	if err := s.loadMemberships(ctx, users); err != nil {
		return nil, 0, err
	}
	return orEmpty(users), total, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	if !validID(u.ID) {
		return fmt.Errorf("update user %s: %w", u.ID, domain.ErrNotFound)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx,
		`UPDATE users SET email = $2, name = $3, password_hash = $4, roles = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.PasswordHash, pgTextArray(u.Roles),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return wrapErr(err, "update user %s", u.ID)
	}
	if err := writeMemberships(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("delete user %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete user %s", id)
}
