// Package auth provides authentication and authorization support.
// Tokens are HS256 signed JWTs carrying the user, tenant, email and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/types/role"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
)

// DefaultTTL is the lifetime of a token when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// CookieName is the cookie that carries the token for browser clients.
const CookieName = "token"

// Erros padronizados do pacote de autenticação
var (
	ErrForbidden     = errors.New("attempted action is not allowed")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("signing secret is required")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// UserID returns the subject of the claims as a user id.
func (c Claims) UserID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}

// TenantUUID returns the tenant of the claims.
func (c Claims) TenantUUID() uuid.UUID {
	id, _ := uuid.Parse(c.TenantID)
	return id
}

// Config represents information required to initialize auth.
type Config struct {
	Log    *logger.Logger
	Secret string
	Issuer string
	TTL    time.Duration
}

// Auth is used to authenticate clients.
type Auth struct {
	log    *logger.Logger
	secret []byte
	method jwt.SigningMethod
	parser *jwt.Parser
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Auth to support authentication/authorization.
func New(cfg Config) (*Auth, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	a := Auth{
		log:    cfg.Log,
		secret: []byte(cfg.Secret),
		method: jwt.SigningMethodHS256,
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return a.now() }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	a.parser = jwt.NewParser(opts...)

	return &a, nil
}

// Issuer provides the configured issuer used to authenticate tokens.
func (a *Auth) Issuer() string {
	return a.issuer
}

// TTL provides the lifetime of issued tokens.
func (a *Auth) TTL() time.Duration {
	return a.ttl
}

// GenerateToken generates a signed JWT token string for the user.
func (a *Auth) GenerateToken(userID uuid.UUID, tenantID uuid.UUID, email string, r role.Role) (string, error) {
	now := a.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    a.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID: tenantID.String(),
		Email:    email,
		Role:     r.String(),
	}

	token := jwt.NewWithClaims(a.method, claims)

	str, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return str, nil
}

// Authenticate verifies the token and returns the claims exactly as issued.
// Every failure is reported as ErrInvalidToken.
func (a *Auth) Authenticate(ctx context.Context, tokenStr string) (Claims, error) {
	var claims Claims
	token, err := a.parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		a.log.Info(ctx, "**Authenticate-FAILED**", "ERROR", err)
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return Claims{}, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}

	if _, err := uuid.Parse(claims.TenantID); err != nil {
		return Claims{}, fmt.Errorf("%w: tenant: %w", ErrInvalidToken, err)
	}

	// Valida se a Role que está no token é uma Role conhecida pelo sistema.
	if _, err := role.Parse(claims.Role); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return claims, nil
}

// Authorize checks if the claims possess ONE OF the required roles.
func (a *Auth) Authorize(ctx context.Context, claims Claims, allowedRoles ...role.Role) error {
	// Se nenhuma role for passada na rota, bloqueia por padrão.
	if len(allowedRoles) == 0 {
		return fmt.Errorf("%w: no roles authorized for this endpoint", ErrForbidden)
	}

	r, err := role.Parse(claims.Role)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}

	if !r.In(allowedRoles...) {
		return fmt.Errorf("%w: user role %q is not in the allowed list %v", ErrForbidden, claims.Role, allowedRoles)
	}

	return nil
}
