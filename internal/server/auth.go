package server

import (
	"errors"
	"net/http"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/security"
	"github.com/bugtrack/bugtrack-server/internal/server/auth"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type TokenData struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleLogin() func(echo.Context) error {
	type LoginForm struct {
		Username string `json:"username" form:"username" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(LoginForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		account, err := s.auth.Authenticate(form.Username, form.Password)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Please provide valid credentials")
		}
		token, _, err := s.auth.LoginUser(c, account)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, TokenData{Token: token, User: auth.AccountToUser(account)})
	}
}

func (s *Server) handleSocialLogin() func(echo.Context) error {
	type SocialForm struct {
		Provider    string `json:"provider" form:"provider" validate:"required"`
		AccessToken string `json:"access_token" form:"access_token" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(SocialForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		ctx := c.Request().Context()
		profile, err := s.social.Verify(ctx, form.Provider, form.AccessToken)
		if err != nil {
			if errors.Is(err, auth.ErrUnknownProvider) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			if errors.Is(err, auth.ErrSocialTokenDenied) || errors.Is(err, auth.ErrEmailNotVerified) {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			return err
		}
		account, err := s.auth.AuthenticateSocial(ctx, profile)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Account is not active")
			}
			return err
		}
		token, _, err := s.auth.LoginUser(c, account)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, TokenData{Token: token, User: auth.AccountToUser(account)})
	}
}

func (s *Server) handleRefreshToken(c echo.Context) error {
	token, _, err := s.auth.RefreshToken(c)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) || errors.Is(err, security.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenRevoked) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TokenData{Token: token, User: user})
}

// handleVerifyToken reports whether the request carries a valid token.
func (s *Server) handleVerifyToken(c echo.Context) error {
	claims, err := s.auth.GetClaims(c)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) || errors.Is(err, security.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenRevoked) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	if claims == nil {
		return echo.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, TokenData{Token: s.auth.GetToken(c), User: domain.User{
		Username:        claims.Username,
		Email:           claims.Email,
		IsSuperuser:     claims.Superuser,
		IsAuthenticated: true,
	}})
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := s.auth.LogoutUser(c); err != nil {
		s.log.Errorw("logout", "error", err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleGetSessionUser(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) || errors.Is(err, security.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenRevoked) {
			user = domain.User{IsGuest: true}
		} else {
			return err
		}
	}
	return c.JSON(http.StatusOK, user)
}
