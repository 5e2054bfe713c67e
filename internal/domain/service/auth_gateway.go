package service

import (
	"context"

	"backer/internal/domain/entity"

	"github.com/google/uuid"
)

// AuthGateway is the client's view of the platform's authentication and
// authorization endpoints. Calls made through an authorized gateway carry
// the bearer token and are transparently retried once after a token
// refresh when the server answers 401.
type AuthGateway interface {
	// Login exchanges email/password for a credential pair.
	Login(ctx context.Context, email, password string) (entity.Credentials, error)

	// Logout revokes the session server-side. Best-effort: callers clear
	// local state regardless of the outcome.
	Logout(ctx context.Context) error

	// FetchUserPermissions returns the fine-grained permission strings
	// granted to the given account.
	FetchUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)

	// FetchProjectRoles returns the signed-in user's standing on one project.
	FetchProjectRoles(ctx context.Context, projectID int64) (entity.ProjectRoles, error)

	// FetchProfile returns the signed-in user's profile snapshot.
	FetchProfile(ctx context.Context) (*entity.User, error)
}
