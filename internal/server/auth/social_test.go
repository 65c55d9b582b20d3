package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bugtrack/bugtrack-server/internal/domain"
)

func newTestVerifier(handler http.Handler) (*SocialVerifier, *httptest.Server) {
	server := httptest.NewServer(handler)
	v := NewSocialVerifier()
	v.googleUserinfoURL = server.URL + "/oauth2/v3/userinfo"
	v.githubUserURL = server.URL + "/user"
	v.githubEmailsURL = server.URL + "/user/emails"
	return v, server
}

func TestVerifyGoogle(t *testing.T) {
	v, server := newTestVerifier(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/v3/userinfo", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer good-token":
			w.Write([]byte(`{"email": "grace@example.com", "email_verified": true, "name": "Grace Hopper"}`))
		case "Bearer unverified-token":
			w.Write([]byte(`{"email": "grace@example.com", "email_verified": false}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	profile, err := v.Verify(context.Background(), "google", "good-token")
	if assert.NoError(t, err) {
		assert.Equal(t, "grace@example.com", profile.Email)
		assert.Equal(t, "Grace Hopper", profile.Name)
	}

	_, err = v.Verify(context.Background(), "google", "unverified-token")
	assert.Equal(t, ErrEmailNotVerified, err)

	_, err = v.Verify(context.Background(), "google", "expired-token")
	assert.Equal(t, ErrSocialTokenDenied, err)

	_, err = v.Verify(context.Background(), "gitlab", "good-token")
	assert.Equal(t, ErrUnknownProvider, err)
}

func TestVerifyGithubPrivateEmail(t *testing.T) {
	v, server := newTestVerifier(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			w.Write([]byte(`{"login": "ghopper", "name": "", "email": ""}`))
		case "/user/emails":
			w.Write([]byte(`[
				{"email": "old@example.com", "primary": false, "verified": true},
				{"email": "grace@example.com", "primary": true, "verified": true}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	profile, err := v.Verify(context.Background(), "github", "good-token")
	if assert.NoError(t, err) {
		assert.Equal(t, "grace@example.com", profile.Email)
		// login stands in for a missing display name
		assert.Equal(t, "ghopper", profile.Name)
	}
}

func TestAuthenticateSocialCreatesAccount(t *testing.T) {
	s, repo := newTestService(t)

	profile := SocialProfile{Email: "grace@example.com", Name: "Grace Hopper"}
	account, err := s.AuthenticateSocial(context.Background(), profile)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "Grace_Hopper", account.Username)
	assert.Equal(t, "Grace", account.FirstName)
	assert.Equal(t, "Hopper", account.LastName)
	assert.True(t, account.Active)
	assert.Empty(t, account.Password)

	stored, err := repo.GetByUsername("Grace_Hopper")
	if assert.NoError(t, err) {
		assert.Equal(t, "grace@example.com", stored.Email)
	}

	// second login with the same email reuses the account
	again, err := s.AuthenticateSocial(context.Background(), profile)
	if assert.NoError(t, err) {
		assert.Equal(t, account.Username, again.Username)
	}
}

func TestAuthenticateSocialUsernameCollision(t *testing.T) {
	s, repo := newTestService(t)

	taken, err := domain.NewAccount("Grace_Hopper", "other@example.com", "", "", "pw")
	if !assert.NoError(t, err) {
		return
	}
	assert.NoError(t, taken.Activate())
	assert.NoError(t, repo.Create(taken))

	account, err := s.AuthenticateSocial(context.Background(), SocialProfile{
		Email: "grace@example.com",
		Name:  "Grace Hopper",
	})
	if assert.NoError(t, err) {
		assert.Equal(t, "Grace_Hopper2", account.Username)
		assert.Equal(t, "grace@example.com", account.Email)
	}
}

func TestAuthenticateSocialInactiveAccount(t *testing.T) {
	s, repo := newTestService(t)
	addAccount(t, repo, "dormant", "pw", false)

	_, err := s.AuthenticateSocial(context.Background(), SocialProfile{
		Email: "dormant@example.com",
		Name:  "Dormant User",
	})
	assert.Equal(t, ErrUserNotFound, err)
}
