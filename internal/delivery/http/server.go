// Package http hosts the loopback endpoint that receives the browser
// sign-in redirect and hands the token pair to the session.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"backer/config"
	"backer/internal/delivery"
	"backer/internal/domain/lifecycle"
	"backer/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	slogecho "github.com/samber/slog-echo"
	"go.uber.org/fx"
)

const fallbackPort = 53682

const signInSuccessPage = `<!DOCTYPE html>
<html><head><title>Signed in</title></head>
<body><h1>Signed in</h1><p>You can close this tab and return to the terminal.</p></body></html>`

const signInFailurePage = `<!DOCTYPE html>
<html><head><title>Sign-in failed</title></head>
<body><h1>Sign-in failed</h1><p>The redirect did not carry a complete token pair. Return to the terminal and retry.</p></body></html>`

// ServerParams holds dependencies for the callback server, injected by Fx.
type ServerParams struct {
	fx.In
	fx.Lifecycle

	Config  *config.Config
	Logger  *slog.Logger
	Session usecase.SessionUsecase
}

var _ delivery.Delivery = (*CallbackServer)(nil)

// CallbackServer is a short-lived loopback HTTP server. The browser sign-in
// page redirects to it once with the token pair in the query string; the
// outcome of that single callback is published on Result.
type CallbackServer struct {
	cfg     *config.Config
	logger  *slog.Logger
	session usecase.SessionUsecase
	server  *echo.Echo
	port    int
	results chan error
}

// NewServer is the constructor for CallbackServer.
func NewServer(params ServerParams) *CallbackServer {
	server := newCallbackServer(params.Config, params.Logger, params.Session)

	params.Append(fx.Hook{
		OnStop: server.stop,
	})

	return server
}

func newCallbackServer(cfg *config.Config, logger *slog.Logger, session usecase.SessionUsecase) *CallbackServer {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(slogecho.New(logger))
	echoServer.Use(middleware.Recover())

	port := fallbackPort
	if cfg.Callback != nil && cfg.Callback.Port != 0 {
		port = cfg.Callback.Port
	}

	server := &CallbackServer{
		cfg:     cfg,
		logger:  logger,
		session: session,
		server:  echoServer,
		port:    port,
		results: make(chan error, 1),
	}

	echoServer.GET("/callback", server.handleCallback)

	return server
}

// Serve blocks until the server is shut down through the lifecycle hook.
func (s *CallbackServer) Serve(ctx context.Context) error {
	hostPort := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port))
	s.logger.Info("Starting sign-in callback server", slog.String("hostPort", hostPort))
	if err := s.server.Start(hostPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to serve sign-in callback")
	}

	return nil
}

func (s *CallbackServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down sign-in callback server")

	return errors.WithStack(s.server.Shutdown(shutdownCtx))
}

// SignInURL builds the platform sign-in URL carrying this server's loopback
// address as the redirect target.
func (s *CallbackServer) SignInURL() (string, error) {
	if s.cfg.Callback == nil || s.cfg.Callback.SignInURL == "" {
		return "", errors.New("callback.signInUrl is not configured")
	}

	parsed, err := url.Parse(s.cfg.Callback.SignInURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid callback.signInUrl")
	}

	query := parsed.Query()
	query.Set("redirect_uri", fmt.Sprintf("http://127.0.0.1:%d/callback", s.port))
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// Result delivers the outcome of the first completed callback.
func (s *CallbackServer) Result() <-chan error {
	return s.results
}

func (s *CallbackServer) handleCallback(c echo.Context) error {
	accessToken := c.QueryParam("access_token")
	refreshToken := c.QueryParam("refresh_token")

	if err := s.session.LoginWithTokens(c.Request().Context(), accessToken, refreshToken); err != nil {
		s.logger.Warn("Sign-in callback rejected", slog.Any("error", err))
		s.report(err)

		return c.HTML(http.StatusBadRequest, signInFailurePage)
	}

	s.report(nil)

	return c.HTML(http.StatusOK, signInSuccessPage)
}

// report never blocks: only the first outcome matters to the waiting CLI.
func (s *CallbackServer) report(err error) {
	select {
	case s.results <- err:
	default:
	}
}
