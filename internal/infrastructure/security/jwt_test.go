package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestIssueAndParse(t *testing.T) {
	m := NewJWTManager("test-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
	token, claims, err := m.Issue("marie", "marie@example.com", false)
	if !assert.NoError(t, err) {
		return
	}
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, claims.ID)

	parsed, err := m.Parse(token)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "marie", parsed.Username)
	assert.Equal(t, "marie@example.com", parsed.Email)
	assert.Equal(t, "bugtrack", parsed.Issuer)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.False(t, parsed.Superuser)
	assert.Equal(t, claims.IssuedAt.Unix(), parsed.OrigIat)
}

func TestParseExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", "bugtrack", -time.Minute, 168*time.Hour)
	token, _, err := m.Issue("marie", "marie@example.com", false)
	if !assert.NoError(t, err) {
		return
	}
	_, err = m.Parse(token)
	assert.Equal(t, ErrTokenExpired, err)
}

func TestParseTamperedToken(t *testing.T) {
	m := NewJWTManager("test-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
	other := NewJWTManager("other-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
	token, _, err := other.Issue("marie", "marie@example.com", true)
	if !assert.NoError(t, err) {
		return
	}
	_, err = m.Parse(token)
	assert.Equal(t, ErrTokenInvalid, err)

	_, err = m.Parse("not-a-token")
	assert.Equal(t, ErrTokenInvalid, err)
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	m := NewJWTManager("test-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "marie"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if !assert.NoError(t, err) {
		return
	}
	_, err = m.Parse(token)
	assert.Equal(t, ErrTokenInvalid, err)
}

func TestRefreshKeepsOriginalIssueTime(t *testing.T) {
	m := NewJWTManager("test-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
	token, claims, err := m.Issue("marie", "marie@example.com", true)
	if !assert.NoError(t, err) {
		return
	}
	renewedToken, renewed, err := m.Refresh(claims)
	if !assert.NoError(t, err) {
		return
	}
	assert.NotEqual(t, token, renewedToken)
	assert.NotEqual(t, claims.ID, renewed.ID)
	assert.Equal(t, claims.OrigIat, renewed.OrigIat)
	assert.Equal(t, "marie", renewed.Username)
	assert.True(t, renewed.Superuser)

	parsed, err := m.Parse(renewedToken)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, claims.OrigIat, parsed.OrigIat)
}

func TestRefreshOutsideWindow(t *testing.T) {
	m := NewJWTManager("test-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
	_, claims, err := m.Issue("marie", "marie@example.com", false)
	if !assert.NoError(t, err) {
		return
	}
	claims.OrigIat = time.Now().UTC().Add(-169 * time.Hour).Unix()
	_, _, err = m.Refresh(claims)
	assert.Equal(t, ErrTokenExpired, err)
}
