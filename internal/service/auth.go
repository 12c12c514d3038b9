package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/TenantCMS/internal/config"
	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/user"
	"github.com/Strob0t/TenantCMS/internal/port/database"
)

// AuthService handles password login and bearer tokens.
type AuthService struct {
	store  database.Store
	cfg    *config.Auth
	secret []byte
	now    func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, cfg *config.Auth) *AuthService {
	return &AuthService{
		store:  store,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		now:    time.Now,
	}
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthenticated)

func (s *AuthService) hash(password string) (string, error) {
	return hashPassword(password, s.cfg.BcryptCost)
}

// Register creates a user with a bcrypt-hashed password. It applies no
// access policy; callers are the user service, the CLI and bootstrapping.
func (s *AuthService) Register(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []user.Role{user.RoleUser}
	}
	tenants := req.Tenants
	if tenants == nil {
		tenants = []user.Membership{}
	}
	u := &user.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Roles:        roles,
		Tenants:      tenants,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", req.Email, err)
	}
	return u, nil
}

// Login checks the credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.NewValidationError("", err.Error())
	}

	u, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	token, err := s.sign(u)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return &user.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(s.cfg.AccessTokenExpiry.Seconds()),
		User:        *u,
	}, nil
}

func (s *AuthService) sign(u *user.User) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   u.ID,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenExpiry)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies a bearer token and loads its user. The user is read
// from the store on every call so role and membership changes apply at once.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*user.User, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w: %w", domain.ErrUnauthenticated, err)
	}

	u, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("token subject %s: %w", claims.Subject, domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// SeedSuperAdmin creates the configured super-admin when no user exists yet.
func (s *AuthService) SeedSuperAdmin(ctx context.Context) error {
	if s.cfg.SuperAdminEmail == "" || s.cfg.SuperAdminPassword == "" {
		return nil
	}
	_, total, err := s.store.FindUsers(ctx, database.Query{Limit: 1})
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if total > 0 {
		return nil
	}

	u, err := s.Register(ctx, &user.CreateRequest{
		Email:    s.cfg.SuperAdminEmail,
		Name:     "Super Admin",
		Password: s.cfg.SuperAdminPassword,
		Roles:    []user.Role{user.RoleSuperAdmin},
	})
	if err != nil {
		return fmt.Errorf("seed super-admin: %w", err)
	}
	slog.Info("seeded super-admin", "email", u.Email)
	return nil
}
