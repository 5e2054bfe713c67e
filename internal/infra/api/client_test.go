package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backer/config"
	"backer/internal/domain/entity"
	domainerrors "backer/internal/domain/errors"
	"backer/internal/domain/repository"
	"backer/internal/domain/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) (service.AuthGateway, repository.CredentialRepository) {
	t.Helper()

	store := newTestStore(t)
	cfg := &config.Config{}
	cfg.API.BaseURL = baseURL

	gateway := NewClient(ClientParams{Config: cfg, Creds: store, Logger: discardLogger()})

	return gateway, store
}

func TestClient_LoginReturnsPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jo@example.com", body["email"])
		assert.Equal(t, "hunter2", body["password"])

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "A1",
			"refresh_token": "R1",
		})
	}))
	defer server.Close()

	gateway, _ := newTestClient(t, server.URL)

	creds, err := gateway.Login(context.Background(), "jo@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}, creds)
}

func TestClient_LoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	gateway, _ := newTestClient(t, server.URL)

	_, err := gateway.Login(context.Background(), "jo@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestClient_LoginMissingTokenIsIncompletePair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "A1"})
	}))
	defer server.Close()

	gateway, _ := newTestClient(t, server.URL)

	_, err := gateway.Login(context.Background(), "jo@example.com", "hunter2")
	assert.ErrorIs(t, err, domainerrors.ErrIncompleteTokenPair)
}

func TestClient_RefreshUpdatesAccessTokenOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/refresh", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "R1", body["refresh_token"])

		json.NewEncoder(w).Encode(map[string]string{"access_token": "A2"})
	}))
	defer server.Close()

	gateway, store := newTestClient(t, server.URL)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}))

	client, ok := gateway.(*Client)
	require.True(t, ok)

	token, err := client.RefreshAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A2", token)

	// The refresh token survives; only the access half is replaced.
	assert.Equal(t, entity.Credentials{AccessToken: "A2", RefreshToken: "R1"}, store.Load(ctx))
}

func TestClient_RefreshWithoutTokenFailsImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("refresh endpoint must not be called without a stored token")
	}))
	defer server.Close()

	gateway, _ := newTestClient(t, server.URL)
	client := gateway.(*Client)

	_, err := client.RefreshAccessToken(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrNoRefreshToken)
}

func TestClient_RefreshRejectionLeavesStoreUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	gateway, store := newTestClient(t, server.URL)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}))

	client := gateway.(*Client)

	_, err := client.RefreshAccessToken(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshFailed)
	assert.Equal(t, entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}, store.Load(ctx))
}

func TestClient_FetchUserPermissions(t *testing.T) {
	userID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/role-permissions/"+userID.String()+"/permissions", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    http.StatusOK,
			"data":    map[string]any{"permissions": []string{"view_projects", "back_projects"}},
		})
	}))
	defer server.Close()

	gateway, _ := newTestClient(t, server.URL)

	perms, err := gateway.FetchUserPermissions(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"view_projects", "back_projects"}, perms)
}

func TestClient_FetchProjectRoles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/projects/42/roles", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    http.StatusOK,
			"data":    map[string]any{"roles": []string{"creator"}, "isCreator": true},
		})
	}))
	defer server.Close()

	gateway, _ := newTestClient(t, server.URL)

	roles, err := gateway.FetchProjectRoles(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, roles.IsCreator)
	assert.True(t, roles.Roles.Contains(entity.RoleCreator))
}

func TestClient_EnvelopeErrorBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"code":    http.StatusForbidden,
			"message": "Permission denied",
			"error":   map[string]string{"code": "FORBIDDEN", "details": "not a collaborator"},
		})
	}))
	defer server.Close()

	gateway, _ := newTestClient(t, server.URL)

	_, err := gateway.FetchProjectRoles(context.Background(), 7)
	require.Error(t, err)

	var apiErr *domainerrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.HTTPCode())
	assert.Equal(t, "FORBIDDEN", apiErr.ErrorCode())
}

func TestClient_AuthorizedCallRefreshesTransparently(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "A2"})
	})
	mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    http.StatusOK,
			"data":    map[string]any{"user": map[string]any{"id": uuid.New(), "name": "Jo"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gateway, store := newTestClient(t, server.URL)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, entity.Credentials{AccessToken: "A1", RefreshToken: "R1"}))

	user, err := gateway.FetchProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jo", user.Name)
	assert.Equal(t, "A2", store.Load(ctx).AccessToken)
}
