package impl

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"backer/config"
	clientcontext "backer/internal/delivery/context"
	"backer/internal/domain/entity"
	domainerrors "backer/internal/domain/errors"
	"backer/internal/domain/repository"
	"backer/internal/domain/service"
	"backer/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// permissionSource records how the session's permission set was resolved.
type permissionSource int

const (
	sourceUnloaded permissionSource = iota
	sourceEmpty
	sourceToken
	sourceServer
)

// permissionService implements the PermissionUsecase interface.
//
// Resolution runs at most once per session (Load is idempotent after it
// settles). The per-project role cache is additive: entries are only ever
// overwritten per project id, and dropped as a whole on Reset.
type permissionService struct {
	creds       repository.CredentialRepository
	decoder     service.TokenDecoder
	gateway     service.AuthGateway
	adminBypass bool
	logger      *slog.Logger

	mu           sync.RWMutex
	source       permissionSource
	subject      uuid.UUID
	roles        entity.Roles
	permissions  []string
	projectRoles map[int64]entity.ProjectRoles
}

// PermissionServiceParams holds dependencies for permissionService, injected by Fx.
type PermissionServiceParams struct {
	fx.In

	Creds   repository.CredentialRepository
	Decoder service.TokenDecoder
	Gateway service.AuthGateway
	Config  *config.Config
	Logger  *slog.Logger
}

// NewPermissionService is the constructor for permissionService.
func NewPermissionService(params PermissionServiceParams) usecase.PermissionUsecase {
	adminBypass := false
	if params.Config != nil && params.Config.Auth != nil {
		adminBypass = params.Config.Auth.AdminBypassEnabled
	}

	return &permissionService{
		creds:        params.Creds,
		decoder:      params.Decoder,
		gateway:      params.Gateway,
		adminBypass:  adminBypass,
		logger:       params.Logger,
		projectRoles: make(map[int64]entity.ProjectRoles),
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *permissionService) log(ctx context.Context) *slog.Logger {
	return clientcontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Load resolves the permission set for the current session.
//
// The access token is decoded locally first; a token that embeds its
// permission list settles resolution with zero network calls. A token that
// only names a subject triggers one permission fetch. Every failure path
// settles into the empty set: callers see "no permissions", never an error
// state.
func (srv *permissionService) Load(ctx context.Context) error {
	srv.mu.Lock()
	if srv.source != sourceUnloaded {
		srv.mu.Unlock()

		return nil
	}
	srv.mu.Unlock()

	token := srv.creds.Load(ctx).AccessToken
	if token == "" {
		srv.settle(sourceEmpty, uuid.Nil, nil, nil)

		return nil
	}

	claims, err := srv.decoder.Decode(token)
	if err != nil {
		srv.log(ctx).Warn("Access token undecodable, resolving to empty permission set", slog.Any("error", err))
		srv.settle(sourceEmpty, uuid.Nil, nil, nil)

		return nil
	}

	if claims.HasEmbeddedPermissions() {
		srv.settle(sourceToken, claims.Subject, entity.RolesFromStrings(claims.Roles), claims.Permissions)
		srv.log(ctx).Debug("Permissions resolved from token claims", slog.Int("count", len(claims.Permissions)))

		return nil
	}

	if claims.Subject == uuid.Nil {
		srv.settle(sourceEmpty, uuid.Nil, entity.RolesFromStrings(claims.Roles), nil)

		return nil
	}

	permissions, err := srv.gateway.FetchUserPermissions(ctx, claims.Subject)
	if err != nil {
		// Not retried: the session runs permission-less until re-login.
		srv.log(ctx).Warn("Permission fetch failed, resolving to empty permission set",
			slog.Any("user_id", claims.Subject), slog.Any("error", err))
		srv.settle(sourceEmpty, claims.Subject, entity.RolesFromStrings(claims.Roles), nil)

		return nil
	}

	srv.settle(sourceServer, claims.Subject, entity.RolesFromStrings(claims.Roles), permissions)
	srv.log(ctx).Debug("Permissions resolved from server", slog.Int("count", len(permissions)))

	return nil
}

func (srv *permissionService) settle(source permissionSource, subject uuid.UUID, roles entity.Roles, permissions []string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.source = source
	srv.subject = subject
	srv.roles = roles
	srv.permissions = permissions
}

// IsLoaded reports whether resolution has settled.
func (srv *permissionService) IsLoaded() bool {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	return srv.source != sourceUnloaded
}

// HasRole checks membership in the resolved role set.
func (srv *permissionService) HasRole(role entity.Role) bool {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	if srv.source == sourceUnloaded {
		return false
	}

	return srv.roles.Contains(role)
}

// HasPermission checks membership in the resolved permission set.
func (srv *permissionService) HasPermission(permission string) bool {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	if srv.source == sourceUnloaded {
		return false
	}

	return slices.Contains(srv.permissions, permission)
}

// FetchProjectRoles fetches and caches the user's standing on one project.
func (srv *permissionService) FetchProjectRoles(ctx context.Context, projectID int64) (entity.ProjectRoles, error) {
	standing, err := srv.gateway.FetchProjectRoles(ctx, projectID)
	if err != nil {
		// The prior cache entry, if any, stays authoritative.
		srv.log(ctx).Warn("Project role fetch failed, keeping cached standing",
			slog.Int64("project_id", projectID), slog.Any("error", err))

		return entity.ProjectRoles{}, errors.Wrap(domainerrors.ErrPermissionFetchFailed, err.Error())
	}

	srv.mu.Lock()
	srv.projectRoles[projectID] = standing
	srv.mu.Unlock()

	return standing, nil
}

// IsProjectCreator prefers the cached per-project standing; without one it
// falls back to comparing the session subject against the project's stored
// creator id.
func (srv *permissionService) IsProjectCreator(project *entity.Project) bool {
	if project == nil {
		return false
	}

	srv.mu.RLock()
	defer srv.mu.RUnlock()

	if standing, ok := srv.projectRoles[project.ID]; ok {
		return standing.Creator()
	}

	return srv.subject != uuid.Nil && srv.subject == project.CreatorID
}

// CanEditProject reports whether the user may edit the project's campaign.
func (srv *permissionService) CanEditProject(project *entity.Project) bool {
	return srv.canActAsCreator(project)
}

// CanManageProject reports whether the user may manage the project
// (rewards, updates, payouts).
func (srv *permissionService) CanManageProject(project *entity.Project) bool {
	return srv.canActAsCreator(project)
}

func (srv *permissionService) canActAsCreator(project *entity.Project) bool {
	if srv.IsProjectCreator(project) {
		return true
	}

	// Platform policy is creator-only; the bypass is an explicit opt-in.
	return srv.adminBypass && srv.HasRole(entity.RoleAdmin)
}

// CanAdministerProject reports whether the user holds the platform-wide
// "Admin" role, independent of project ownership.
func (srv *permissionService) CanAdministerProject() bool {
	return srv.HasRole(entity.RoleAdmin)
}

// Reset drops all resolved state and caches.
func (srv *permissionService) Reset() {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.source = sourceUnloaded
	srv.subject = uuid.Nil
	srv.roles = nil
	srv.permissions = nil
	srv.projectRoles = make(map[int64]entity.ProjectRoles)
}
