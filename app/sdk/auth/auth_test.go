package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/types/role"
	"github.com/jcpaschoal/tenantauth/foundation/logger"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func newTestAuth(t *testing.T, secret string) *Auth {
	t.Helper()

	a, err := New(Config{
		Log:    logger.New(io.Discard, logger.LevelInfo, "TEST", nil),
		Secret: secret,
		Issuer: "tenantauth",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return a
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("New() = %v, want ErrMissingSecret", err)
	}
}

func TestRoundTrip(t *testing.T) {
	a := newTestAuth(t, testSecret)

	userID, tenantID := uuid.New(), uuid.New()

	token, err := a.GenerateToken(userID, tenantID, "a@b.com", role.Admin)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	claims, err := a.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}

	if claims.UserID() != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID(), userID)
	}
	if claims.TenantUUID() != tenantID {
		t.Errorf("TenantID = %s, want %s", claims.TenantUUID(), tenantID)
	}
	if claims.Email != "a@b.com" || claims.Role != "ADMIN" || claims.Issuer != "tenantauth" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != DefaultTTL {
		t.Errorf("token lifetime = %s, want %s", ttl, DefaultTTL)
	}
}

func TestExpiredToken(t *testing.T) {
	a := newTestAuth(t, testSecret)

	issued := time.Now()
	a.now = func() time.Time { return issued }

	token, err := a.GenerateToken(uuid.New(), uuid.New(), "a@b.com", role.Member)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	a.now = func() time.Time { return issued.Add(DefaultTTL - time.Minute) }
	if _, err := a.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("Authenticate() before expiry error: %v", err)
	}

	a.now = func() time.Time { return issued.Add(DefaultTTL + time.Second) }
	if _, err := a.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Authenticate() after expiry = %v, want ErrInvalidToken", err)
	}
}

func TestTamperedToken(t *testing.T) {
	a := newTestAuth(t, testSecret)

	token, err := a.GenerateToken(uuid.New(), uuid.New(), "a@b.com", role.Member)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	for i := range len(token) {
		if token[i] == '.' {
			continue
		}

		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}

		if _, err := a.Authenticate(context.Background(), string(b)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Authenticate() with byte %d altered = %v, want ErrInvalidToken", i, err)
		}
	}
}

func TestRejectedTokens(t *testing.T) {
	a := newTestAuth(t, testSecret)
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "tenantauth",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID: uuid.NewString(),
		Email:    "a@b.com",
		Role:     "ADMIN",
	}

	sign := func(method jwt.SigningMethod, key any, c Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}

	otherIssuer := claims
	otherIssuer.Issuer = "someone-else"

	badRole := claims
	badRole.Role = "ROOT"

	badSubject := claims
	badSubject.Subject = "not-a-uuid"

	noExpiry := claims
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: sign(jwt.SigningMethodHS256, []byte("other-secret"), claims)},
		{name: "wrong algorithm", token: sign(jwt.SigningMethodHS512, []byte(testSecret), claims)},
		{name: "alg none", token: sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims)},
		{name: "wrong issuer", token: sign(jwt.SigningMethodHS256, []byte(testSecret), otherIssuer)},
		{name: "unknown role", token: sign(jwt.SigningMethodHS256, []byte(testSecret), badRole)},
		{name: "bad subject", token: sign(jwt.SigningMethodHS256, []byte(testSecret), badSubject)},
		{name: "no expiry", token: sign(jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Authenticate(context.Background(), tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Authenticate() = %v, want ErrInvalidToken", err)
			}
		})
	}

	good := sign(jwt.SigningMethodHS256, []byte(testSecret), claims)
	got, err := a.Authenticate(context.Background(), good)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}

	if diff := cmp.Diff(claims.Email, got.Email); diff != "" {
		t.Errorf("email mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthorize(t *testing.T) {
	a := newTestAuth(t, testSecret)
	ctx := context.Background()

	member := Claims{Role: "MEMBER"}

	if err := a.Authorize(ctx, member, role.Admin, role.Member); err != nil {
		t.Errorf("Authorize(member in set) = %v", err)
	}

	if err := a.Authorize(ctx, member, role.Admin); !errors.Is(err, ErrForbidden) {
		t.Errorf("Authorize(member not in set) = %v, want ErrForbidden", err)
	}

	if err := a.Authorize(ctx, member); !errors.Is(err, ErrForbidden) {
		t.Errorf("Authorize(empty set) = %v, want ErrForbidden", err)
	}

	if err := a.Authorize(ctx, Claims{Role: "ROOT"}, role.Admin); !errors.Is(err, ErrForbidden) {
		t.Errorf("Authorize(unknown role) = %v, want ErrForbidden", err)
	}
}
