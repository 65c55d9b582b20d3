package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/security"
	"github.com/bugtrack/bugtrack-server/internal/mock"
)

func newTestService(t *testing.T) (*AuthService, *mock.AccountsRepository) {
	t.Helper()
	repo := mock.NewAccountsRepository()
	manager := security.NewJWTManager("test-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
	s := NewAuthService(zap.NewNop().Sugar(), repo, manager, mock.NewTokenStore())
	t.Cleanup(s.Close)
	return s, repo
}

func contextWithToken(token string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "JWT "+token)
	}
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func addAccount(t *testing.T, repo *mock.AccountsRepository, username, password string, active bool) domain.Account {
	t.Helper()
	account, err := domain.NewAccount(username, username+"@example.com", "", "", password)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	if active {
		assert.NoError(t, account.Activate())
	}
	assert.NoError(t, repo.Create(account))
	return account
}

func TestAuthenticate(t *testing.T) {
	s, repo := newTestService(t)
	addAccount(t, repo, "marie", "radium1898", true)
	addAccount(t, repo, "dormant", "pw", false)

	account, err := s.Authenticate("marie", "radium1898")
	if assert.NoError(t, err) {
		assert.Equal(t, "marie", account.Username)
	}

	_, err = s.Authenticate("marie", "wrong")
	assert.Equal(t, ErrInvalidPassword, err)

	_, err = s.Authenticate("nobody", "pw")
	assert.Equal(t, ErrUserNotFound, err)

	_, err = s.Authenticate("dormant", "pw")
	assert.Equal(t, ErrUserNotFound, err)
}

func TestGetUserFromToken(t *testing.T) {
	s, repo := newTestService(t)
	account := addAccount(t, repo, "marie", "radium1898", true)

	token, _, err := s.LoginUser(contextWithToken(""), account)
	if !assert.NoError(t, err) {
		return
	}

	user, err := s.GetUser(contextWithToken(token))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "marie", user.Username)
	assert.True(t, user.IsAuthenticated)
	assert.False(t, user.IsGuest)
}

func TestGetUserWithoutToken(t *testing.T) {
	s, _ := newTestService(t)
	user, err := s.GetUser(contextWithToken(""))
	if assert.NoError(t, err) {
		assert.True(t, user.IsGuest)
	}
}

func TestLogoutRevokes(t *testing.T) {
	s, repo := newTestService(t)
	account := addAccount(t, repo, "marie", "radium1898", true)
	token, _, err := s.LoginUser(contextWithToken(""), account)
	if !assert.NoError(t, err) {
		return
	}

	_, err = s.GetClaims(contextWithToken(token))
	assert.NoError(t, err)

	assert.NoError(t, s.LogoutUser(contextWithToken(token)))

	_, err = s.GetClaims(contextWithToken(token))
	assert.Equal(t, ErrTokenRevoked, err)
}

func TestRefreshTokenKeepsIdentity(t *testing.T) {
	s, repo := newTestService(t)
	account := addAccount(t, repo, "marie", "radium1898", true)
	token, claims, err := s.LoginUser(contextWithToken(""), account)
	if !assert.NoError(t, err) {
		return
	}

	renewedToken, renewed, err := s.RefreshToken(contextWithToken(token))
	if !assert.NoError(t, err) {
		return
	}
	assert.NotEqual(t, token, renewedToken)
	assert.Equal(t, claims.OrigIat, renewed.OrigIat)
	assert.Equal(t, "marie", renewed.Username)
}

func TestGetTokenSchemes(t *testing.T) {
	s, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer abc")
	c := echo.New().NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "abc", s.GetToken(c))

	req.Header.Set(echo.HeaderAuthorization, "JWT abc")
	assert.Equal(t, "abc", s.GetToken(c))

	req.Header.Set(echo.HeaderAuthorization, "Basic abc")
	assert.Equal(t, "", s.GetToken(c))

	req.Header.Del(echo.HeaderAuthorization)
	assert.Equal(t, "", s.GetToken(c))
}
