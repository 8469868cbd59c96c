package auth

import (
	"errors"
	"fmt"
	"time"

	"call-console/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clockSkew is tolerated on exp/iat checks.
const clockSkew = 30 * time.Second

var (
	ErrTokenType    = errors.New("auth: unexpected token type")
	ErrTokenSubject = errors.New("auth: token carries no operator")
)

// Manager issues and verifies HS256 operator tokens.
type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IssuePair signs an access token for s and a refresh token that carries no role.
func (m *Manager) IssuePair(now time.Time, s Session) (TokenPair, error) {
	if !s.Valid() {
		return TokenPair{}, errors.New("auth: session needs operator and role")
	}
	access, err := m.sign(now, TokenTypeAccess, s, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(now, TokenTypeRefresh, Session{OperatorID: s.OperatorID, Email: s.Email}, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: now.Add(m.accessTTL)}, nil
}

// Verify parses a token of the expected type as of now.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(tokenString, &claims, m.key, opts...); err != nil {
		return Claims{}, err
	}
	if claims.TokenType != expected {
		return Claims{}, fmt.Errorf("%w: got %q", ErrTokenType, claims.TokenType)
	}
	if claims.OperatorID == "" || claims.Subject != claims.OperatorID {
		return Claims{}, ErrTokenSubject
	}
	if expected == TokenTypeAccess && claims.Role == "" {
		return Claims{}, errors.New("auth: access token without role")
	}
	return claims, nil
}

// Refresh verifies a refresh token and issues a new pair with the operator's
// current role.
func (m *Manager) Refresh(refreshToken string, role string, now time.Time) (TokenPair, error) {
	claims, err := m.Verify(refreshToken, TokenTypeRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}
	return m.IssuePair(now, Session{OperatorID: claims.OperatorID, Email: claims.Email, Role: role})
}

func (m *Manager) key(*jwt.Token) (any, error) { return m.secret, nil }

func (m *Manager) sign(now time.Time, typ TokenType, s Session, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.OperatorID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OperatorID: s.OperatorID,
		Email:      s.Email,
		Role:       s.Role,
		TokenType:  typ,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
