// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"backer/internal/domain/entity"
)

// SessionUsecase owns the tab-lifetime authentication state. It is the only
// component that mutates the stored credential pair; everything else reads
// session state through it.
type SessionUsecase interface {
	// Init reads the credential store once at startup and settles the
	// authenticated/unauthenticated state. Safe to call once per process.
	Init(ctx context.Context) error

	// Login exchanges email/password for a credential pair and persists it.
	Login(ctx context.Context, input *LoginInput) error

	// LoginWithTokens installs an externally obtained pair (browser
	// sign-in callback). Both tokens must be present.
	LoginWithTokens(ctx context.Context, accessToken, refreshToken string) error

	// Logout revokes the session remotely (best-effort) and always clears
	// local state. A non-nil error means the remote revoke failed while
	// local cleanup still succeeded.
	Logout(ctx context.Context) error

	// IsAuthenticated reports whether a credential pair is installed.
	IsAuthenticated() bool

	// IsLoaded reports whether Init has completed.
	IsLoaded() bool

	// CurrentUser lazily fetches and caches the profile snapshot.
	CurrentUser(ctx context.Context) (*entity.User, error)
}

// LoginInput carries the credentials for an email/password login.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=1"`
}
