package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/adminwatch/internal/apperror"
	"github.com/smallbiznis/adminwatch/internal/clock"
	"github.com/smallbiznis/adminwatch/internal/config"
)

var (
	ErrInvalidToken = fmt.Errorf("%w: invalid_token", apperror.ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("%w: token_expired", apperror.ErrUnauthorized)
	ErrMissingToken = fmt.Errorf("%w: missing_token", apperror.ErrUnauthorized)
	ErrNoSecret     = errors.New("auth jwt secret is not configured")
)

// AdminClaims identifies the admin behind a bearer token. Role and country
// assignment are never taken from the token.
type AdminClaims struct {
	AdminID string `json:"admin_id"`
	jwt.RegisteredClaims
}

// ParsedAdminID returns the admin identity id.
func (c *AdminClaims) ParsedAdminID() (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.AdminID))
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// TokenManager issues and verifies HS256 admin tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenManager(cfg config.Config, clk clock.Clock) (*TokenManager, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrNoSecret
		}
		secret = "adminwatch-dev-secret"
	}
	ttl := cfg.AuthTokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// GenerateAdminToken signs a token for adminID.
func (m *TokenManager) GenerateAdminToken(adminID snowflake.ID) (string, error) {
	now := m.clock.Now()
	claims := AdminClaims{
		AdminID: adminID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseAdminToken validates a token and returns its claims.
func (m *TokenManager) ParseAdminToken(tokenString string) (*AdminClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
