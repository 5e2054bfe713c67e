package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	clientcontext "backer/internal/delivery/context"
	"backer/internal/domain/repository"

	"golang.org/x/sync/singleflight"
)

// retryMarkerKey marks a request chain that has already been through the
// refresh-and-retry cycle, so the cycle runs at most once per original
// request.
type retryMarkerKey struct{}

// RefreshFunc exchanges the stored refresh token for a new access token.
type RefreshFunc func(ctx context.Context) (string, error)

// Transport is an http.RoundTripper that makes every outbound call carry
// the platform's authorization conventions:
//
//   - the current access token is attached as a Bearer header;
//   - an X-Request-Id header is attached for server-side correlation;
//   - a 401 response triggers one token refresh followed by one retry of
//     the original request. A second 401, or a failed refresh, is returned
//     to the caller unchanged.
//
// Concurrent 401s from parallel requests share a single in-flight refresh
// call; each waiter retries with the token that refresh produced.
//
// The transport never touches Content-Type: multipart callers keep the
// boundary their writer generated.
type Transport struct {
	base    http.RoundTripper
	creds   repository.CredentialRepository
	refresh RefreshFunc
	logger  *slog.Logger
	group   singleflight.Group
}

// NewTransport is the constructor for Transport.
func NewTransport(base http.RoundTripper, creds repository.CredentialRepository, refresh RefreshFunc, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{
		base:    base,
		creds:   creds,
		refresh: refresh,
		logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	authorized := t.authorize(req, t.creds.Load(ctx).AccessToken)

	resp, err := t.base.RoundTrip(authorized)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || retried(ctx) {
		return resp, nil
	}

	newToken, refreshErr := t.refreshAccessToken(ctx)
	if refreshErr != nil {
		// Terminal: hand the original 401 back to the caller. Tokens are
		// left in place; ending the session is the session owner's call.
		t.logger.Debug("Token refresh failed, propagating 401",
			slog.String("url", req.URL.Path), slog.Any("error", refreshErr))

		return resp, nil
	}

	retry, ok := t.replayable(req, newToken)
	if !ok {
		// The body cannot be replayed; the original 401 stands.
		return resp, nil
	}

	drain(resp)

	return t.base.RoundTrip(retry)
}

// authorize clones the request and attaches the bearer and request-id
// headers. The clone keeps the original request untouched so it can be
// replayed after a refresh.
func (t *Transport) authorize(req *http.Request, accessToken string) *http.Request {
	r := req.Clone(req.Context())

	if r.Header.Get(clientcontext.HeaderXRequestID) == "" {
		r.Header.Set(clientcontext.HeaderXRequestID, clientcontext.GetRequestID(r.Context()))
	}
	if accessToken != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return r
}

// replayable builds the one-shot retry request carrying the refreshed
// token. It reports false when the original body cannot be reproduced.
func (t *Transport) replayable(req *http.Request, accessToken string) (*http.Request, bool) {
	retry := req.Clone(context.WithValue(req.Context(), retryMarkerKey{}, true))

	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, false
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, false
		}
		retry.Body = body
	}

	if retry.Header.Get(clientcontext.HeaderXRequestID) == "" {
		retry.Header.Set(clientcontext.HeaderXRequestID, clientcontext.GetRequestID(req.Context()))
	}
	retry.Header.Set("Authorization", "Bearer "+accessToken)

	return retry, true
}

// refreshAccessToken coalesces concurrent refresh attempts into a single
// in-flight call shared by all waiters.
func (t *Transport) refreshAccessToken(ctx context.Context) (string, error) {
	token, err, _ := t.group.Do("refresh", func() (any, error) {
		return t.refresh(ctx)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func retried(ctx context.Context) bool {
	marked, _ := ctx.Value(retryMarkerKey{}).(bool)

	return marked
}

// drain discards and closes a response body that will not be returned to
// the caller, keeping the underlying connection reusable.
func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
