package server

import (
	"errors"
	"fmt"

	"github.com/bugtrack/bugtrack-server/internal/infrastructure/security"
	"github.com/bugtrack/bugtrack-server/internal/server/auth"
	"github.com/labstack/echo/v4"
)

func LoginRequiredMiddlewareWithConfig(a *auth.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := a.GetClaims(c)
			if err != nil {
				if errors.Is(err, security.ErrTokenExpired) || errors.Is(err, security.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenRevoked) {
					return echo.ErrUnauthorized
				}
				return fmt.Errorf("login required middleware: %w", err)
			}
			if claims == nil {
				return echo.ErrUnauthorized
			}
			return next(c)
		}
	}
}

func SuperuserAccessMiddleware(a *auth.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.GetUser(c)
			if err != nil {
				return fmt.Errorf("superuser access middleware: %w", err)
			}
			if !user.IsSuperuser {
				return echo.ErrForbidden
			}
			return next(c)
		}
	}
}
