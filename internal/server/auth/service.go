package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/security"
	"github.com/go-redis/redis/v8"
	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUserNotFound    = errors.New("User not found")
	ErrInvalidPassword = errors.New("Password doesn't match")
	ErrTokenRevoked    = errors.New("Token is revoked")
)

// TokenStore keeps revoked token IDs until their natural expiration.
type TokenStore interface {
	Revoke(ctx context.Context, jti string, expiration time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func (s *RedisTokenStore) key(jti string) string {
	return "revoked:" + jti
}

func (s *RedisTokenStore) Revoke(ctx context.Context, jti string, expiration time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(jti), "1", expiration).Err(); err != nil {
		return fmt.Errorf("redis revoke token: %v", err)
	}
	return nil
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.rdb.Get(ctx, s.key(jti)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis get token: %v", err)
	}
	return true, nil
}

type AuthService struct {
	logger   *zap.SugaredLogger
	accounts domain.AccountsRepository
	tokens   *security.JWTManager
	store    TokenStore
	cache    *ttlcache.Cache[string, domain.Account]
	group    singleflight.Group
}

func NewAuthService(logger *zap.SugaredLogger, accounts domain.AccountsRepository, tokens *security.JWTManager, store TokenStore) *AuthService {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, domain.Account](45 * time.Second),
		ttlcache.WithDisableTouchOnHit[string, domain.Account](),
	)
	go cache.Start()
	return &AuthService{
		logger:   logger,
		accounts: accounts,
		tokens:   tokens,
		store:    store,
		cache:    cache,
	}
}

func (s *AuthService) Close() {
	s.cache.Stop()
}

func (s *AuthService) TokenLifetime() time.Duration {
	return s.tokens.Lifetime()
}

// GetToken extracts the access token from the Authorization header.
// Both "JWT <token>" and "Bearer <token>" schemes are accepted.
func (s *AuthService) GetToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "jwt" && scheme != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetClaims parses and validates the request's token. Returns nil claims
// (and nil error) for requests without a token.
func (s *AuthService) GetClaims(c echo.Context) (*security.Claims, error) {
	claims, saved := c.Get("claims").(*security.Claims)
	if saved {
		return claims, nil
	}
	token := s.GetToken(c)
	if token == "" {
		c.Set("claims", nil)
		return nil, nil
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.store.IsRevoked(c.Request().Context(), claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	c.Set("claims", claims)
	return claims, nil
}

func (s *AuthService) loadUserAccount(c *ttlcache.Cache[string, domain.Account], username string) *ttlcache.Item[string, domain.Account] {
	v, err, _ := s.group.Do(username, func() (interface{}, error) {
		s.logger.Debugw("loadUserAccount", "name", username)
		return s.accounts.GetByUsername(username)
	})
	if err != nil {
		return nil
	}
	return c.Set(username, v.(domain.Account), ttlcache.DefaultTTL)
}

func (s *AuthService) getUserAccount(username string) (domain.Account, error) {
	item := s.cache.Get(username, ttlcache.WithLoader[string, domain.Account](ttlcache.LoaderFunc[string, domain.Account](s.loadUserAccount)))
	if item == nil {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return item.Value(), nil
}

func (s *AuthService) GetUser(c echo.Context) (domain.User, error) {
	u, saved := c.Get("user").(domain.User)
	if saved {
		return u, nil
	}
	claims, err := s.GetClaims(c)
	if err != nil {
		return domain.User{}, err
	}
	if claims == nil {
		return domain.User{IsGuest: true}, nil
	}
	account, err := s.getUserAccount(claims.Username)
	if err != nil {
		return domain.User{}, fmt.Errorf("auth: get token user: %w", err)
	}
	if !account.Active {
		return domain.User{IsGuest: true}, nil
	}
	u = AccountToUser(account)
	c.Set("user", u)
	return u, nil
}

func (s *AuthService) Authenticate(username, password string) (domain.Account, error) {
	account, err := s.accounts.GetByUsername(username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Account{}, ErrUserNotFound
		}
		return domain.Account{}, err
	}
	if !account.Active {
		return domain.Account{}, ErrUserNotFound
	}
	if !account.CheckPassword(password) {
		return domain.Account{}, ErrInvalidPassword
	}
	return account, nil
}

// LoginUser issues a fresh access token for the account and records the
// login time.
func (s *AuthService) LoginUser(c echo.Context, userAccount domain.Account) (string, *security.Claims, error) {
	token, claims, err := s.tokens.Issue(userAccount.Username, userAccount.Email, userAccount.IsSuperuser)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	now := time.Now().UTC()
	userAccount.LastLogin = &now
	if err := s.accounts.Update(userAccount); err != nil {
		// not a critical issue, just log error and continue
		s.logger.Errorw("update user.last_login", zap.Error(err))
	}
	return token, claims, nil
}

// RefreshToken exchanges a valid token for a new one with the original
// issue time carried over.
func (s *AuthService) RefreshToken(c echo.Context) (string, *security.Claims, error) {
	claims, err := s.GetClaims(c)
	if err != nil {
		return "", nil, err
	}
	if claims == nil {
		return "", nil, security.ErrTokenInvalid
	}
	return s.tokens.Refresh(claims)
}

// LogoutUser revokes the request's token for the remainder of its
// lifetime.
func (s *AuthService) LogoutUser(c echo.Context) error {
	claims, err := s.GetClaims(c)
	if err != nil || claims == nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.store.Revoke(c.Request().Context(), claims.ID, ttl); err != nil {
		return err
	}
	c.Set("claims", nil)
	c.Set("user", nil)
	return nil
}

func AccountToUser(account domain.Account) domain.User {
	return domain.User{
		Username:        account.Username,
		Email:           account.Email,
		FirstName:       account.FirstName,
		LastName:        account.LastName,
		IsSuperuser:     account.IsSuperuser,
		IsGuest:         false,
		IsAuthenticated: true,
	}
}
