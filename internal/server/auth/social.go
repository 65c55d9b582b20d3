package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bugtrack/bugtrack-server/internal/domain"
)

var (
	ErrUnknownProvider   = errors.New("Unknown provider")
	ErrSocialTokenDenied = errors.New("Provider rejected the token")
	ErrEmailNotVerified  = errors.New("Email address is not verified")
)

// SocialProfile is the identity reported by an OAuth provider.
type SocialProfile struct {
	Email string
	Name  string
}

// SocialVerifier exchanges a provider access token for the profile it
// belongs to by calling the provider's userinfo endpoint.
type SocialVerifier struct {
	client *http.Client

	googleUserinfoURL string
	githubUserURL     string
	githubEmailsURL   string
}

func NewSocialVerifier() *SocialVerifier {
	return &SocialVerifier{
		client:            &http.Client{Timeout: 10 * time.Second},
		googleUserinfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		githubUserURL:     "https://api.github.com/user",
		githubEmailsURL:   "https://api.github.com/user/emails",
	}
}

func (v *SocialVerifier) Verify(ctx context.Context, provider, accessToken string) (SocialProfile, error) {
	switch strings.ToLower(provider) {
	case "google":
		return v.verifyGoogle(ctx, accessToken)
	case "github":
		return v.verifyGithub(ctx, accessToken)
	}
	return SocialProfile{}, ErrUnknownProvider
}

func (v *SocialVerifier) get(ctx context.Context, url, accessToken string, data interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrSocialTokenDenied
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider request: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(data)
}

func (v *SocialVerifier) verifyGoogle(ctx context.Context, accessToken string) (SocialProfile, error) {
	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := v.get(ctx, v.googleUserinfoURL, accessToken, &info); err != nil {
		return SocialProfile{}, err
	}
	if info.Email == "" || !info.EmailVerified {
		return SocialProfile{}, ErrEmailNotVerified
	}
	return SocialProfile{Email: info.Email, Name: info.Name}, nil
}

func (v *SocialVerifier) verifyGithub(ctx context.Context, accessToken string) (SocialProfile, error) {
	var info struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := v.get(ctx, v.githubUserURL, accessToken, &info); err != nil {
		return SocialProfile{}, err
	}
	if info.Name == "" {
		info.Name = info.Login
	}
	if info.Email == "" {
		// primary email is not public, list verified addresses
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := v.get(ctx, v.githubEmailsURL, accessToken, &emails); err != nil {
			return SocialProfile{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				info.Email = e.Email
				break
			}
		}
	}
	if info.Email == "" {
		return SocialProfile{}, ErrEmailNotVerified
	}
	return SocialProfile{Email: info.Email, Name: info.Name}, nil
}

// AuthenticateSocial finds the account matching a verified social
// profile, creating an active password-less account on first login.
func (s *AuthService) AuthenticateSocial(ctx context.Context, profile SocialProfile) (domain.Account, error) {
	account, err := s.accounts.GetByEmail(profile.Email)
	if err == nil {
		if !account.Active {
			return domain.Account{}, ErrUserNotFound
		}
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Account{}, err
	}
	username := domain.UsernameFromDisplayName(profile.Name, profile.Email)
	firstName, lastName := splitName(profile.Name)
	account, err = domain.NewAccount(username, profile.Email, firstName, lastName, "")
	if err != nil {
		return domain.Account{}, err
	}
	if err := account.Activate(); err != nil {
		return domain.Account{}, err
	}
	for i := 1; ; i++ {
		err = s.accounts.Create(account)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, domain.ErrAccountExists) || i >= 10 {
			return domain.Account{}, err
		}
		// username taken by another account, email is still free
		account.Username = fmt.Sprintf("%s%d", username, i+1)
	}
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
