package impl

import (
	"context"
	"testing"

	"backer/internal/domain/entity"
	domainerrors "backer/internal/domain/errors"
	"backer/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(creds *memCredentialRepo, gateway *fakeGateway) usecase.SessionUsecase {
	resolver := NewPermissionService(PermissionServiceParams{
		Creds:   creds,
		Decoder: &fakeDecoder{},
		Gateway: gateway,
		Config:  newTestConfig(false),
		Logger:  newDiscardLogger(),
	})

	return NewSessionService(SessionServiceParams{
		Creds:    creds,
		Gateway:  gateway,
		Resolver: resolver,
		Config:   newTestConfig(false),
		Logger:   newDiscardLogger(),
	})
}

func TestSessionService_InitWithStoredPair(t *testing.T) {
	creds := &memCredentialRepo{creds: entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}}
	service := newSessionService(creds, &fakeGateway{})

	require.NoError(t, service.Init(context.Background()))

	assert.True(t, service.IsLoaded())
	assert.True(t, service.IsAuthenticated())
}

func TestSessionService_InitWithEmptyStore(t *testing.T) {
	service := newSessionService(&memCredentialRepo{}, &fakeGateway{})

	require.NoError(t, service.Init(context.Background()))

	assert.True(t, service.IsLoaded())
	assert.False(t, service.IsAuthenticated())
}

func TestSessionService_LoginPersistsPair(t *testing.T) {
	creds := &memCredentialRepo{}
	gateway := &fakeGateway{
		loginFn: func(ctx context.Context, email, password string) (entity.Credentials, error) {
			return entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}, nil
		},
	}
	service := newSessionService(creds, gateway)
	ctx := context.Background()

	err := service.Login(ctx, &usecase.LoginInput{Email: "jo@example.com", Password: "hunter2"})
	require.NoError(t, err)

	assert.True(t, service.IsAuthenticated())
	assert.Equal(t, entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}, creds.Load(ctx))
}

func TestSessionService_LoginValidatesInput(t *testing.T) {
	creds := &memCredentialRepo{}
	service := newSessionService(creds, &fakeGateway{})

	err := service.Login(context.Background(), &usecase.LoginInput{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.False(t, service.IsAuthenticated())
}

func TestSessionService_LoginFailureStaysSignedOut(t *testing.T) {
	creds := &memCredentialRepo{}
	gateway := &fakeGateway{
		loginFn: func(ctx context.Context, email, password string) (entity.Credentials, error) {
			return entity.Credentials{}, domainerrors.ErrInvalidCredentials
		},
	}
	service := newSessionService(creds, gateway)
	ctx := context.Background()

	err := service.Login(ctx, &usecase.LoginInput{Email: "jo@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.False(t, service.IsAuthenticated())
	assert.True(t, creds.Load(ctx).Empty())
}

func TestSessionService_LoginWithTokensRejectsPartialPair(t *testing.T) {
	service := newSessionService(&memCredentialRepo{}, &fakeGateway{})

	err := service.LoginWithTokens(context.Background(), "A1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrIncompleteTokenPair)
	assert.False(t, service.IsAuthenticated())
}

func TestSessionService_LogoutClearsLocalState(t *testing.T) {
	creds := &memCredentialRepo{creds: entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}}
	service := newSessionService(creds, &fakeGateway{})
	ctx := context.Background()
	require.NoError(t, service.Init(ctx))

	require.NoError(t, service.Logout(ctx))

	assert.False(t, service.IsAuthenticated())
	assert.True(t, creds.Load(ctx).Empty())
}

func TestSessionService_LogoutSucceedsLocallyWhenOffline(t *testing.T) {
	creds := &memCredentialRepo{creds: entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}}
	gateway := &fakeGateway{
		logoutFn: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	}
	service := newSessionService(creds, gateway)
	ctx := context.Background()
	require.NoError(t, service.Init(ctx))

	err := service.Logout(ctx)

	// The returned error reports the failed remote step, but local cleanup
	// ran regardless.
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrRemoteLogoutFailed)
	assert.False(t, service.IsAuthenticated())
	assert.True(t, creds.Load(ctx).Empty())
}

func TestSessionService_CurrentUserCachesProfile(t *testing.T) {
	creds := &memCredentialRepo{creds: entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}}
	profileCalls := 0
	gateway := &fakeGateway{
		profileFn: func(ctx context.Context) (*entity.User, error) {
			profileCalls++

			return &entity.User{Name: "Jo"}, nil
		},
	}
	service := newSessionService(creds, gateway)
	ctx := context.Background()
	require.NoError(t, service.Init(ctx))

	user, err := service.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jo", user.Name)

	_, err = service.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, profileCalls)
}

func TestSessionService_CurrentUserRequiresSession(t *testing.T) {
	service := newSessionService(&memCredentialRepo{}, &fakeGateway{})
	require.NoError(t, service.Init(context.Background()))

	_, err := service.CurrentUser(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
}
