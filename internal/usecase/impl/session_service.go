// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"
	"sync"

	"backer/config"
	clientcontext "backer/internal/delivery/context"
	"backer/internal/domain/entity"
	domainerrors "backer/internal/domain/errors"
	"backer/internal/domain/repository"
	"backer/internal/domain/service"
	"backer/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	creds    repository.CredentialRepository
	gateway  service.AuthGateway
	resolver usecase.PermissionUsecase
	validate *validator.Validate
	logger   *slog.Logger

	mu            sync.RWMutex
	loaded        bool
	authenticated bool
	user          *entity.User
}

// SessionServiceParams holds dependencies for sessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	Creds    repository.CredentialRepository
	Gateway  service.AuthGateway
	Resolver usecase.PermissionUsecase
	Config   *config.Config
	Logger   *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		creds:    params.Creds,
		gateway:  params.Gateway,
		resolver: params.Resolver,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return clientcontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Init settles the authenticated/unauthenticated state from the store.
// A store that cannot be read reports empty credentials, so the worst
// failure mode is starting signed out.
func (srv *sessionService) Init(ctx context.Context) error {
	stored := srv.creds.Load(ctx)

	srv.mu.Lock()
	srv.authenticated = stored.AccessToken != ""
	srv.loaded = true
	srv.mu.Unlock()

	srv.log(ctx).Debug("Session initialized", slog.Bool("authenticated", stored.AccessToken != ""))

	return nil
}

// Login orchestrates the email/password login flow.
func (srv *sessionService) Login(ctx context.Context, input *usecase.LoginInput) error {
	if err := srv.validate.Struct(input); err != nil {
		srv.log(ctx).Warn("Login input rejected", slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrValidationFailed, "login input is invalid")
	}

	pair, err := srv.gateway.Login(ctx, input.Email, input.Password)
	if err != nil {
		srv.log(ctx).Warn("Login failed", slog.String("email", input.Email), slog.Any("error", err))

		return errors.Wrap(err, "login failed")
	}

	return srv.install(ctx, pair)
}

// LoginWithTokens installs an externally obtained pair (browser callback).
func (srv *sessionService) LoginWithTokens(ctx context.Context, accessToken, refreshToken string) error {
	pair := entity.Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	if !pair.Complete() {
		return errors.Wrap(domainerrors.ErrIncompleteTokenPair, "cannot open a session")
	}

	return srv.install(ctx, pair)
}

// install persists the pair and flips the session to authenticated.
func (srv *sessionService) install(ctx context.Context, pair entity.Credentials) error {
	if err := srv.creds.Save(ctx, pair); err != nil {
		srv.log(ctx).Error("Failed to persist credentials", slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrStorageUnavailable, err.Error())
	}

	srv.mu.Lock()
	srv.authenticated = true
	srv.loaded = true
	srv.user = nil
	srv.mu.Unlock()

	// A fresh pair may carry a different claim set; resolve it anew.
	srv.resolver.Reset()

	srv.log(ctx).Info("Session opened")

	return nil
}

// Logout ends the session. The remote revoke is best-effort: local state is
// cleared no matter what, so the user can always sign out while offline.
func (srv *sessionService) Logout(ctx context.Context) error {
	remoteErr := srv.gateway.Logout(ctx)
	if remoteErr != nil {
		srv.log(ctx).Warn("Remote logout failed, clearing local session anyway", slog.Any("error", remoteErr))
	}

	if err := srv.creds.Clear(ctx); err != nil {
		srv.log(ctx).Error("Failed to clear credential store", slog.Any("error", err))
	}

	srv.mu.Lock()
	srv.authenticated = false
	srv.user = nil
	srv.mu.Unlock()

	srv.resolver.Reset()

	srv.log(ctx).Info("Session closed")

	if remoteErr != nil {
		return domainerrors.ErrRemoteLogoutFailed.WrapMessage(remoteErr.Error())
	}

	return nil
}

// IsAuthenticated reports whether a credential pair is installed.
func (srv *sessionService) IsAuthenticated() bool {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	return srv.authenticated
}

// IsLoaded reports whether Init has completed.
func (srv *sessionService) IsLoaded() bool {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	return srv.loaded
}

// CurrentUser lazily fetches and caches the profile snapshot.
func (srv *sessionService) CurrentUser(ctx context.Context) (*entity.User, error) {
	srv.mu.RLock()
	cached := srv.user
	authenticated := srv.authenticated
	srv.mu.RUnlock()

	if cached != nil {
		return cached, nil
	}
	if !authenticated {
		return nil, errors.Wrap(domainerrors.ErrUnauthenticated, "cannot fetch profile")
	}

	user, err := srv.gateway.FetchProfile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch current user")
	}

	srv.mu.Lock()
	srv.user = user
	srv.mu.Unlock()

	return user, nil
}
