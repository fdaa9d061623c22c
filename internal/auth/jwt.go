package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig holds JWT signing configuration. The secret must be set from
// the environment in production.
type TokenConfig struct {
	Secret   string
	Lifetime time.Duration
	Issuer   string
}

// DefaultTokenConfig returns development defaults.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:   "chatflow-dev-secret-change-in-production",
		Lifetime: 24 * time.Hour,
		Issuer:   "chatflow",
	}
}

// Claims carries the verified caller identity. The store trusts the
// username extracted here absolutely; all authorization decisions beyond
// identity live in the state manager.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies access tokens.
type TokenManager struct {
	cfg TokenConfig
}

// NewTokenManager creates a token manager with the given configuration.
func NewTokenManager(cfg TokenConfig) *TokenManager {
	if cfg.Secret == "" {
		cfg = DefaultTokenConfig()
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 24 * time.Hour
	}
	return &TokenManager{cfg: cfg}
}

// Issue signs a token for the given username.
func (t *TokenManager) Issue(username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.Lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.cfg.Secret))
}

// Verify parses a token and returns the username it asserts.
func (t *TokenManager) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(t.cfg.Secret), nil
	})
	if err != nil || !token.Valid || claims.Username == "" {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}
