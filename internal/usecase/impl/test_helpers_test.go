package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"backer/config"
	"backer/internal/domain/entity"
	"backer/internal/domain/service"

	"github.com/google/uuid"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(adminBypass bool) *config.Config {
	return &config.Config{
		Auth: &config.AuthConfig{AdminBypassEnabled: adminBypass},
	}
}

// memCredentialRepo is an in-memory CredentialRepository for tests.
type memCredentialRepo struct {
	mu      sync.Mutex
	creds   entity.Credentials
	saveErr error
}

func (r *memCredentialRepo) Load(_ context.Context) entity.Credentials {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.creds
}

func (r *memCredentialRepo) Save(_ context.Context, creds entity.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}
	r.creds = creds

	return nil
}

func (r *memCredentialRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creds = entity.Credentials{}

	return nil
}

// fakeGateway is a hand-rolled AuthGateway double with per-call hooks and
// call counters.
type fakeGateway struct {
	loginFn        func(ctx context.Context, email, password string) (entity.Credentials, error)
	logoutFn       func(ctx context.Context) error
	permissionsFn  func(ctx context.Context, userID uuid.UUID) ([]string, error)
	projectRolesFn func(ctx context.Context, projectID int64) (entity.ProjectRoles, error)
	profileFn      func(ctx context.Context) (*entity.User, error)

	mu               sync.Mutex
	permissionsCalls int
}

func (g *fakeGateway) Login(ctx context.Context, email, password string) (entity.Credentials, error) {
	if g.loginFn == nil {
		return entity.Credentials{}, nil
	}

	return g.loginFn(ctx, email, password)
}

func (g *fakeGateway) Logout(ctx context.Context) error {
	if g.logoutFn == nil {
		return nil
	}

	return g.logoutFn(ctx)
}

func (g *fakeGateway) FetchUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	g.mu.Lock()
	g.permissionsCalls++
	g.mu.Unlock()

	if g.permissionsFn == nil {
		return nil, nil
	}

	return g.permissionsFn(ctx, userID)
}

func (g *fakeGateway) FetchProjectRoles(ctx context.Context, projectID int64) (entity.ProjectRoles, error) {
	if g.projectRolesFn == nil {
		return entity.ProjectRoles{}, nil
	}

	return g.projectRolesFn(ctx, projectID)
}

func (g *fakeGateway) FetchProfile(ctx context.Context) (*entity.User, error) {
	if g.profileFn == nil {
		return &entity.User{}, nil
	}

	return g.profileFn(ctx)
}

func (g *fakeGateway) permissionFetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.permissionsCalls
}

// fakeDecoder returns canned claims.
type fakeDecoder struct {
	claims *service.TokenClaims
	err    error
}

func (d *fakeDecoder) Decode(_ string) (*service.TokenClaims, error) {
	if d.err != nil {
		return nil, d.err
	}

	return d.claims, nil
}
