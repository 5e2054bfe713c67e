// Package api implements the platform's REST gateway and the authorized
// HTTP transport the rest of the client rides on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"backer/config"
	clientcontext "backer/internal/delivery/context"
	"backer/internal/domain/entity"
	domainerrors "backer/internal/domain/errors"
	"backer/internal/domain/repository"
	"backer/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	loginPath       = "/api/v1/auth/login"
	refreshPath     = "/api/v1/auth/refresh"
	logoutPath      = "/api/v1/auth/logout"
	permissionsPath = "/api/v1/role-permissions/%s/permissions"
	projectRolePath = "/api/v1/projects/%d/roles"
	profilePath     = "/api/v1/users/me"
)

// Client implements service.AuthGateway against the platform REST API.
//
// It keeps two HTTP clients: an authorized one whose Transport attaches the
// bearer token and drives the refresh-on-401 cycle, and a raw one for the
// auth endpoints themselves (login and refresh must never recurse into the
// refresh cycle).
type Client struct {
	baseURL string
	authed  *http.Client
	raw     *http.Client
	creds   repository.CredentialRepository
	logger  *slog.Logger
}

// ClientParams holds dependencies for Client, injected by Fx.
type ClientParams struct {
	fx.In

	Config *config.Config
	Creds  repository.CredentialRepository
	Logger *slog.Logger
}

// NewClient is the constructor for Client.
func NewClient(params ClientParams) service.AuthGateway {
	c := &Client{
		baseURL: params.Config.API.BaseURL,
		creds:   params.Creds,
		logger:  params.Logger,
	}

	c.raw = &http.Client{Timeout: params.Config.API.Timeout}
	c.authed = &http.Client{
		Timeout:   params.Config.API.Timeout,
		Transport: NewTransport(nil, params.Creds, c.RefreshAccessToken, params.Logger),
	}

	return c
}

// log returns a request-scoped logger if available, otherwise falls back to the client's logger.
func (c *Client) log(ctx context.Context) *slog.Logger {
	return clientcontext.GetLoggerOrDefault(ctx, c.logger)
}

// loginResponse is the bare token payload the auth endpoints return.
type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges email/password for a credential pair. The caller (the
// session) is responsible for persisting the pair.
func (c *Client) Login(ctx context.Context, email, password string) (entity.Credentials, error) {
	c.log(ctx).Info("Logging in", slog.String("email", email))

	body := map[string]string{"email": email, "password": password}

	var out loginResponse
	if err := c.doJSON(ctx, c.raw, http.MethodPost, loginPath, body, &out); err != nil {
		if domainerrors.IsUnauthorized(err) {
			return entity.Credentials{}, domainerrors.ErrInvalidCredentials.WrapMessage("login rejected")
		}

		return entity.Credentials{}, errors.Wrap(err, "login request failed")
	}

	creds := entity.Credentials{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if !creds.Complete() {
		return entity.Credentials{}, domainerrors.ErrIncompleteTokenPair.WrapMessage("login response missing a token")
	}

	return creds, nil
}

// refreshResponse carries the replacement access token.
type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// RefreshAccessToken runs the refresh protocol: read the refresh token from
// the store, exchange it, persist the new access token alongside the
// existing refresh token, and return it.
//
// On failure the store is left untouched. Whether a terminal refresh
// failure should end the session is the session owner's decision, not the
// protocol's.
func (c *Client) RefreshAccessToken(ctx context.Context) (string, error) {
	stored := c.creds.Load(ctx)
	if stored.RefreshToken == "" {
		return "", domainerrors.ErrNoRefreshToken.WrapMessage("cannot refresh")
	}

	c.log(ctx).Debug("Refreshing access token")

	body := map[string]string{"refresh_token": stored.RefreshToken}

	var out refreshResponse
	if err := c.doJSON(ctx, c.raw, http.MethodPost, refreshPath, body, &out); err != nil {
		return "", domainerrors.ErrRefreshFailed.WrapMessage(err.Error())
	}
	if out.AccessToken == "" {
		return "", domainerrors.ErrRefreshFailed.WrapMessage("refresh response missing access token")
	}

	if err := c.creds.Save(ctx, entity.Credentials{
		AccessToken:  out.AccessToken,
		RefreshToken: stored.RefreshToken,
	}); err != nil {
		return "", errors.Wrap(err, "failed to persist refreshed token")
	}

	c.log(ctx).Debug("Access token refreshed")

	return out.AccessToken, nil
}

// Logout revokes the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	c.log(ctx).Info("Revoking session")

	if err := c.doJSON(ctx, c.authed, http.MethodDelete, logoutPath, nil, nil); err != nil {
		return errors.Wrap(err, "logout request failed")
	}

	return nil
}

// FetchUserPermissions returns the fine-grained permissions for one account.
func (c *Client) FetchUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var data struct {
		Permissions []string `json:"permissions"`
	}

	path := fmt.Sprintf(permissionsPath, userID)
	if err := c.doEnvelope(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, errors.Wrap(err, "failed to fetch user permissions")
	}

	return data.Permissions, nil
}

// FetchProjectRoles returns the signed-in user's standing on one project.
func (c *Client) FetchProjectRoles(ctx context.Context, projectID int64) (entity.ProjectRoles, error) {
	var data struct {
		Roles     []string `json:"roles"`
		IsCreator bool     `json:"isCreator"`
	}

	path := fmt.Sprintf(projectRolePath, projectID)
	if err := c.doEnvelope(ctx, http.MethodGet, path, nil, &data); err != nil {
		return entity.ProjectRoles{}, errors.Wrapf(err, "failed to fetch roles for project %d", projectID)
	}

	return entity.ProjectRoles{
		Roles:     entity.RolesFromStrings(data.Roles),
		IsCreator: data.IsCreator,
	}, nil
}

// FetchProfile returns the signed-in user's profile snapshot.
func (c *Client) FetchProfile(ctx context.Context) (*entity.User, error) {
	var data struct {
		User entity.User `json:"user"`
	}

	if err := c.doEnvelope(ctx, http.MethodGet, profilePath, nil, &data); err != nil {
		return nil, errors.Wrap(err, "failed to fetch profile")
	}

	return &data.User, nil
}

// envelope is the platform's unified response wrapper for resource
// endpoints. The auth endpoints return bare payloads instead.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"error"`
}

// doEnvelope issues an authorized request and unwraps the platform's
// response envelope into out.
func (c *Client) doEnvelope(ctx context.Context, method, path string, body, out any) error {
	var env envelope
	if err := c.doJSON(ctx, c.authed, method, path, body, &env); err != nil {
		return err
	}

	if !env.Success {
		code, details := "", ""
		if env.Error != nil {
			code, details = env.Error.Code, env.Error.Details
		}

		return domainerrors.NewAPIError(env.Code, code, env.Message, details)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, "failed to decode response data")
		}
	}

	return nil
}

// doJSON issues one JSON request and decodes a 2xx response body into out.
// Non-2xx responses become *domainerrors.APIError carrying the original
// status and whatever error envelope the server included.
func (c *Client) doJSON(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}

	return nil
}

// apiErrorFromResponse maps a non-2xx response to a domain APIError,
// preferring the server's error envelope when one is present.
func apiErrorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		return domainerrors.NewAPIError(resp.StatusCode, env.Error.Code, env.Message, env.Error.Details)
	}

	return domainerrors.NewAPIError(resp.StatusCode, "", http.StatusText(resp.StatusCode), string(raw))
}
