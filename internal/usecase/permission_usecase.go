package usecase

import (
	"context"

	"backer/internal/domain/entity"
)

// PermissionUsecase resolves the signed-in user's advisory roles and
// permissions. Resolution settles exactly once per session into one of
// three terminal states: permissions read from token claims, permissions
// fetched from the server, or an empty set. All three expose the same read
// contract once IsLoaded reports true.
//
// Results are advisory: they drive what the UI offers, while the server
// re-checks authorization on every protected call.
type PermissionUsecase interface {
	// Load resolves the permission set. Before Load completes, every
	// check answers false.
	Load(ctx context.Context) error

	// IsLoaded reports whether resolution has settled.
	IsLoaded() bool

	// HasRole and HasPermission are pure membership checks against the
	// resolved sets.
	HasRole(role entity.Role) bool
	HasPermission(permission string) bool

	// FetchProjectRoles fetches and caches the user's standing on one
	// project, overwriting any prior entry for that project id. A failed
	// fetch leaves the prior entry (or absence) unchanged.
	FetchProjectRoles(ctx context.Context, projectID int64) (entity.ProjectRoles, error)

	// IsProjectCreator prefers the cached per-project standing and falls
	// back to comparing the session subject against the project's stored
	// creator id.
	IsProjectCreator(project *entity.Project) bool

	// CanEditProject and CanManageProject are true for the project's
	// creator. When the admin bypass is enabled by configuration, the
	// "Admin" role also passes.
	CanEditProject(project *entity.Project) bool
	CanManageProject(project *entity.Project) bool

	// CanAdministerProject is true for the "Admin" role regardless of
	// project ownership.
	CanAdministerProject() bool

	// Reset drops all resolved state and caches. Called on logout.
	Reset()
}
