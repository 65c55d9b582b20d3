package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bugtrack/bugtrack-server/internal/application"
	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/security"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/ws"
	"github.com/bugtrack/bugtrack-server/internal/mock"
	"github.com/bugtrack/bugtrack-server/internal/server/auth"
)

// Server construction registers prometheus collectors in the global
// registry, so a single instance is shared across tests.
var (
	setupOnce     sync.Once
	testSrv       *Server
	accountsEmail *mock.EmailService
)

func createAccount(repo domain.AccountsRepository, username, password string, superuser bool) error {
	account, err := domain.NewAccount(username, username+"@example.com", "", "", password)
	if err != nil {
		return err
	}
	account.IsSuperuser = superuser
	if err := account.Activate(); err != nil {
		return err
	}
	return repo.Create(account)
}

func testServer(t *testing.T) *Server {
	setupOnce.Do(func() {
		log := zap.NewNop().Sugar()
		accountsRepo := mock.NewAccountsRepository()
		for _, u := range []struct {
			name      string
			superuser bool
		}{
			{"admin", true}, {"marie", false}, {"pierre", false}, {"outsider", false},
		} {
			if err := createAccount(accountsRepo, u.name, u.name+"-password", u.superuser); err != nil {
				t.Fatalf("create account %s: %v", u.name, err)
			}
		}

		accountsEmail = &mock.EmailService{}
		accountsTokenGen := security.NewTokenGenerator("test-secret", "accounts", time.Hour)
		accountsService := application.NewAccountsService(accountsEmail, accountsRepo, accountsTokenGen)

		invitationsTokenGen := security.NewTokenGenerator("test-secret", "invitations", time.Hour)
		tracker := application.NewTrackerService(
			log,
			mock.NewTeamsRepository(),
			mock.NewProjectsRepository(),
			mock.NewTicketsRepository(),
			accountsRepo,
			&mock.TrackerEmailService{},
			nil,
			invitationsTokenGen,
		)

		jwtManager := security.NewJWTManager("test-secret", "bugtrack", 10*time.Hour, 168*time.Hour)
		authService := auth.NewAuthService(log, accountsRepo, jwtManager, mock.NewTokenStore())

		testSrv = NewServer(
			log,
			Config{SignupAPI: true, SiteURL: "http://localhost", MaxAttachmentSize: 1 << 20, MaxAvatarSize: 1 << 20},
			authService,
			auth.NewSocialVerifier(),
			accountsService,
			tracker,
			nil,
			ws.NewActivityHub(log),
		)
	})
	return testSrv
}

func doJSON(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "JWT "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, s *Server, username, password string) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	if !assert.Equal(t, http.StatusOK, rec.Code) {
		t.FailNow()
	}
	var data TokenData
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data)) {
		t.FailNow()
	}
	return data.Token
}

func TestLogin(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", `{"username":"marie","password":"marie-password"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var data TokenData
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data)) {
		return
	}
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, "marie", data.User.Username)
	assert.Equal(t, "marie@example.com", data.User.Email)
}

func TestLoginBadCredentials(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", `{"username":"marie","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", `{"username":"nobody","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", `{"username":"marie"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorizationSchemes(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "marie", "marie-password")

	for _, scheme := range []string{"JWT", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.Header.Set(echo.HeaderAuthorization, scheme+" "+token)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var user domain.User
		if assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user)) {
			assert.Equal(t, "marie", user.Username)
		}
	}
}

func TestSessionUserWithoutToken(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/auth/user", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var user domain.User
	if assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user)) {
		assert.True(t, user.IsGuest)
		assert.Empty(t, user.Username)
	}
}

func TestLoginRequired(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/teams", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/teams", "garbage-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSuperuserAccess(t *testing.T) {
	s := testServer(t)
	marieToken := login(t, s, "marie", "marie-password")
	adminToken := login(t, s, "admin", "admin-password")

	rec := doJSON(t, s, http.MethodGet, "/api/auth/is_superuser", marieToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/auth/is_superuser", adminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/admin/users", marieToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/admin/users", adminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyToken(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "marie", "marie-password")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/verify", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var data TokenData
	if assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data)) {
		assert.Equal(t, token, data.Token)
		assert.Equal(t, "marie", data.User.Username)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/auth/verify", "garbage-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/verify", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "marie", "marie-password")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/refresh", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var data TokenData
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data)) {
		return
	}
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, "marie", data.User.Username)

	rec = doJSON(t, s, http.MethodGet, "/api/auth/is_authenticated", data.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "pierre", "pierre-password")

	rec := doJSON(t, s, http.MethodGet, "/api/auth/is_authenticated", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/logout", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/auth/is_authenticated", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignUpAndActivate(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/accounts/signup", "",
		`{"username":"irene","email":"irene@example.com","password1":"secret123","password2":"secret123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// activation link not used yet, login rejected
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", `{"username":"irene","password":"secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	if !assert.NotEmpty(t, accountsEmail.ActivationEmails) {
		return
	}
	sent := accountsEmail.ActivationEmails[len(accountsEmail.ActivationEmails)-1]
	assert.Equal(t, "irene", sent.Account.Username)

	rec = doJSON(t, s, http.MethodPost, "/api/accounts/activate?uid="+sent.UID+"&token="+sent.Token, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	login(t, s, "irene", "secret123")
}

func TestSignUpPasswordMismatch(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/accounts/signup", "",
		`{"username":"joliot","email":"joliot@example.com","password1":"secret123","password2":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAvailability(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/accounts/check?field=username&value=marie", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":false}`, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/accounts/check?field=username&value=free-name", "", "")
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/accounts/check?field=color&value=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamAndProjectFlow(t *testing.T) {
	s := testServer(t)
	marie := login(t, s, "marie", "marie-password")
	outsider := login(t, s, "outsider", "outsider-password")

	rec := doJSON(t, s, http.MethodPost, "/api/teams", marie, `{"title":"Radium Lab"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var team TeamData
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &team)) {
		return
	}
	assert.Equal(t, "radium-lab", team.Slug)

	rec = doJSON(t, s, http.MethodGet, "/api/teams", marie, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var teams []TeamData
	if assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &teams)) {
		assert.Len(t, teams, 1)
	}

	// non-members don't see the team
	rec = doJSON(t, s, http.MethodGet, "/api/teams/radium-lab", outsider, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/teams/radium-lab/projects", marie, `{"title":"Polonium"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/teams/radium-lab/projects/polonium/tickets", marie,
		`{"title":"Glowing too much","priority":2}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var ticket TicketData
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket)) {
		return
	}
	assert.Equal(t, "glowing-too-much", ticket.Slug)

	rec = doJSON(t, s, http.MethodPut, "/api/teams/radium-lab/projects/polonium/tickets/glowing-too-much/assign",
		marie, `{"developer":"marie"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/tickets/assigned", marie, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var assigned []TicketData
	if assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assigned)) {
		assert.Len(t, assigned, 1)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/teams/radium-lab/projects/polonium/tickets/glowing-too-much/close",
		marie, `{"resolution":"shielded"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var closed TicketData
	if assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed)) {
		assert.False(t, closed.IsOpen)
		assert.Equal(t, "shielded", closed.Resolution)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/teams/radium-lab/projects/polonium/tickets/missing", marie, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
