package application

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/security"
	"github.com/bugtrack/bugtrack-server/internal/mock"
)

func newAccountsService() (*AccountsService, *mock.AccountsRepository, *mock.EmailService) {
	repo := mock.NewAccountsRepository()
	email := &mock.EmailService{}
	tokenGen := security.NewTokenGenerator("test-secret", "accounts", time.Hour)
	return NewAccountsService(email, repo, tokenGen), repo, email
}

func TestSignupSendsActivationEmail(t *testing.T) {
	s, repo, email := newAccountsService()
	err := s.NewAccount("marie", "marie@example.com", "Marie", "Curie", "radium1898")
	if !assert.NoError(t, err) {
		return
	}
	account, err := repo.GetByUsername("marie")
	if !assert.NoError(t, err) {
		return
	}
	assert.False(t, account.IsActive())

	if !assert.Len(t, email.ActivationEmails, 1) {
		return
	}
	sent := email.ActivationEmails[0]
	assert.Equal(t, "marie", sent.Account.Username)
	assert.Equal(t, base64.URLEncoding.EncodeToString([]byte("marie")), sent.UID)
	assert.NotEmpty(t, sent.Token)
}

func TestSignupDuplicateUsername(t *testing.T) {
	s, _, _ := newAccountsService()
	assert.NoError(t, s.NewAccount("marie", "marie@example.com", "", "", "pw1"))
	err := s.NewAccount("marie", "other@example.com", "", "", "pw2")
	assert.Equal(t, domain.ErrAccountExists, err)
}

func TestActivateAccount(t *testing.T) {
	s, repo, email := newAccountsService()
	if !assert.NoError(t, s.NewAccount("marie", "marie@example.com", "", "", "pw")) {
		return
	}
	sent := email.ActivationEmails[0]

	assert.NoError(t, s.Activate(sent.UID, sent.Token))
	account, _ := repo.GetByUsername("marie")
	assert.True(t, account.IsActive())

	assert.Equal(t, domain.ErrAccountActive, s.Activate(sent.UID, sent.Token))
}

func TestActivateWithInvalidToken(t *testing.T) {
	s, _, email := newAccountsService()
	if !assert.NoError(t, s.NewAccount("marie", "marie@example.com", "", "", "pw")) {
		return
	}
	sent := email.ActivationEmails[0]
	assert.Equal(t, ErrInvalidToken, s.Activate(sent.UID, "1abcd-ffffffff"))
	assert.Equal(t, ErrInvalidToken, s.Activate("%%%", sent.Token))
}

func TestPasswordResetFlow(t *testing.T) {
	s, repo, email := newAccountsService()
	if !assert.NoError(t, s.NewAccount("marie", "marie@example.com", "", "", "pw")) {
		return
	}
	activation := email.ActivationEmails[0]
	if !assert.NoError(t, s.Activate(activation.UID, activation.Token)) {
		return
	}

	if !assert.NoError(t, s.RequestPasswordReset("marie@example.com")) {
		return
	}
	if !assert.Len(t, email.PasswordResetEmails, 1) {
		return
	}
	reset := email.PasswordResetEmails[0]
	assert.NoError(t, s.SetNewPassword(reset.UID, reset.Token, "new-password"))

	account, _ := repo.GetByUsername("marie")
	assert.True(t, account.CheckPassword("new-password"))
	assert.False(t, account.CheckPassword("pw"))

	// password change invalidates the token
	assert.Equal(t, ErrInvalidToken, s.SetNewPassword(reset.UID, reset.Token, "another"))
}

func TestPasswordResetInactiveAccount(t *testing.T) {
	s, _, _ := newAccountsService()
	if !assert.NoError(t, s.NewAccount("marie", "marie@example.com", "", "", "pw")) {
		return
	}
	assert.Equal(t, ErrNotActiveAccount, s.RequestPasswordReset("marie@example.com"))
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	s, _, _ := newAccountsService()
	assert.Equal(t, domain.ErrAccountNotFound, s.RequestPasswordReset("nobody@example.com"))
}

func TestActivateWithoutPassword(t *testing.T) {
	s, _, email := newAccountsService()
	if !assert.NoError(t, s.NewAccount("marie", "marie@example.com", "", "", "")) {
		return
	}
	sent := email.ActivationEmails[0]
	assert.Equal(t, ErrPasswordNotSet, s.Activate(sent.UID, sent.Token))
}

func TestSupportEmails(t *testing.T) {
	s, _, _ := newAccountsService()
	assert.True(t, s.SupportEmails())
	repo := mock.NewAccountsRepository()
	noEmail := NewAccountsService(nil, repo, security.NewTokenGenerator("k", "accounts", time.Hour))
	assert.False(t, noEmail.SupportEmails())
}
