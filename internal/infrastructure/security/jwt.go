package security

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by access tokens. OrigIat keeps the issue time of the
// first token in a refresh chain, bounding how long a token can be kept
// alive through refreshes.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	Email     string `json:"email"`
	Superuser bool   `json:"superuser,omitempty"`
	OrigIat   int64  `json:"orig_iat"`
}

// JWTManager signs and verifies access tokens (HS256).
type JWTManager struct {
	secret        []byte
	issuer        string
	lifetime      time.Duration
	refreshWindow time.Duration
}

func NewJWTManager(secret, issuer string, lifetime, refreshWindow time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		issuer:        issuer,
		lifetime:      lifetime,
		refreshWindow: refreshWindow,
	}
}

func (m *JWTManager) Lifetime() time.Duration {
	return m.lifetime
}

func (m *JWTManager) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Issue creates a fresh token for the user.
func (m *JWTManager) Issue(username, email string, superuser bool) (string, *Claims, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", nil, err
	}
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    m.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		Username:  username,
		Email:     email,
		Superuser: superuser,
		OrigIat:   now.Unix(),
	}
	token, err := m.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Refresh reissues a token from still-valid claims, preserving the
// original issue time. Fails with ErrTokenExpired once the refresh
// window counted from the first issue has passed.
func (m *JWTManager) Refresh(claims *Claims) (string, *Claims, error) {
	if time.Now().UTC().After(time.Unix(claims.OrigIat, 0).Add(m.refreshWindow)) {
		return "", nil, ErrTokenExpired
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return "", nil, err
	}
	now := time.Now().UTC()
	renewed := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    m.issuer,
			Subject:   claims.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		Username:  claims.Username,
		Email:     claims.Email,
		Superuser: claims.Superuser,
		OrigIat:   claims.OrigIat,
	}
	token, err := m.sign(renewed)
	if err != nil {
		return "", nil, err
	}
	return token, renewed, nil
}

// Parse verifies the token signature and expiry and returns its claims.
func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
