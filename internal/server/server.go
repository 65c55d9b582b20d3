package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bugtrack/bugtrack-server/internal/application"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/storage"
	"github.com/bugtrack/bugtrack-server/internal/infrastructure/ws"
	"github.com/bugtrack/bugtrack-server/internal/server/auth"
	_ "github.com/jackc/pgx/v4/stdlib"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Config struct {
	Debug             bool
	SiteURL           string
	SecretKey         string
	SignupAPI         bool
	MaxAttachmentSize int64
	MaxAvatarSize     int64
}

type Server struct {
	Config          Config
	echo            *echo.Echo
	log             *zap.SugaredLogger
	auth            *auth.AuthService
	social          *auth.SocialVerifier
	accountsService *application.AccountsService
	tracker         *application.TrackerService
	storage         *storage.ObjectStorage
	activity        *ws.ActivityHub
}

type JSONSerializer struct{}

// Serialize converts an interface into a json and writes it to the response.
// You can optionally use the indent parameter to produce pretty JSONs.
func (d JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsoniter.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize reads a JSON from a request body and converts it into an interface.
func (d JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := jsoniter.NewDecoder(c.Request().Body).Decode(i)
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Unmarshal type error: expected=%v, got=%v, field=%v, offset=%v", ute.Type, ute.Value, ute.Field, ute.Offset)).SetInternal(err)
	} else if se, ok := err.(*json.SyntaxError); ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Syntax error: offset=%v, error=%v", se.Offset, se.Error())).SetInternal(err)
	}
	return err
}

func NewServer(
	log *zap.SugaredLogger,
	cfg Config,
	as *auth.AuthService,
	social *auth.SocialVerifier,
	accountsService *application.AccountsService,
	tracker *application.TrackerService,
	store *storage.ObjectStorage,
	activity *ws.ActivityHub,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = &JSONSerializer{}

	p := prometheus.NewPrometheus("api", nil)
	p.Use(e)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		if code == http.StatusInternalServerError {
			log.Error(err)
		}
	}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup: "header:X-CSRF-Token",
			CookieName:  "csrftoken",
			Skipper: func(c echo.Context) bool {
				// token auth, no cookies to protect
				return true
			},
		}),
	)
	s := &Server{
		Config:          cfg,
		log:             log,
		echo:            e,
		auth:            as,
		social:          social,
		accountsService: accountsService,
		tracker:         tracker,
		storage:         store,
		activity:        activity,
	}
	s.AddRoutes(e)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.auth.Close()
	return s.echo.Shutdown(ctx)
}
