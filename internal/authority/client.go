// Package authority mediates claims mutations and queries against the remote
// claims authority. The authority is the source of truth for authorization
// state; records embedded in tokens are only its eventually-consistent
// shadow.
//
// Wire contract (owned by this client, JSON over HTTP):
//
//	PUT    {base}/v1/claims/{principalID}   set (full replace)
//	PATCH  {base}/v1/claims/{principalID}   update (server-side merge)
//	GET    {base}/v1/claims/{principalID}   fetch authority view
//	DELETE {base}/v1/claims/{principalID}   remove custom claims
//	GET    {base}/healthz                   liveness
//
// Calls fail with ErrUnauthorized, ErrNotFound, or a wrapped transport error.
// There are no retries at this layer: mutating a principal's claims is not
// idempotent from the caller's point of view, and the caller owns the retry
// decision.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lumina-lms/lumina-authz/internal/claims"
	"github.com/lumina-lms/lumina-authz/internal/session"
	"github.com/lumina-lms/lumina-authz/internal/token"
)

var (
	// ErrUnauthorized indicates the authority rejected the caller's
	// administrative credentials.
	ErrUnauthorized = errors.New("authority: unauthorized")
	// ErrNotFound indicates the principal is unknown to the authority.
	ErrNotFound = errors.New("authority: principal not found")
)

// Client issues claims operations against the remote authority.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     session.TokenSource
	reads      singleflight.Group
}

// NewClient constructs a client. The token source backs
// CurrentPrincipalClaims and may be nil for purely administrative callers.
func NewClient(baseURL, apiKey string, tokens session.TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: tokens,
	}
}

// SetClaims fully replaces the principal's claims at the authority. The new
// state becomes visible in tokens only after the provider's next refresh.
func (c *Client) SetClaims(ctx context.Context, principalID string, rec claims.Record) error {
	body, err := json.Marshal(rec.AsMap())
	if err != nil {
		return fmt.Errorf("authority: encode claims: %w", err)
	}
	return c.mutate(ctx, http.MethodPut, principalID, body)
}

// UpdateClaims merges the partial update onto the principal's existing
// record, server-side.
func (c *Client) UpdateClaims(ctx context.Context, principalID string, updates claims.Update) error {
	body, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("authority: encode update: %w", err)
	}
	return c.mutate(ctx, http.MethodPatch, principalID, body)
}

// RemoveClaims deletes the principal's custom claims. Future token refreshes
// embed role-default or empty claims.
func (c *Client) RemoveClaims(ctx context.Context, principalID string) error {
	return c.mutate(ctx, http.MethodDelete, principalID, nil)
}

// GetClaims returns the authority's current view of the principal.
// Concurrent reads for the same principal are collapsed into one round-trip.
func (c *Client) GetClaims(ctx context.Context, principalID string) (*claims.Record, error) {
	v, err, _ := c.reads.Do(principalID, func() (any, error) {
		return c.fetch(ctx, principalID)
	})
	if err != nil {
		return nil, err
	}
	// The singleflight result is shared between callers; hand out copies.
	return v.(*claims.Record).Clone(), nil
}

// HealthCheck probes the authority's liveness endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authority: health check: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("authority: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// CurrentPrincipalClaims decodes the claims embedded in the session's
// current token, without any authority round-trip. It returns nil when there
// is no active session or the token is unusable; the caller treats nil as an
// anonymous principal. Every call re-reads the token source so the result
// always reflects the latest refresh.
func (c *Client) CurrentPrincipalClaims(ctx context.Context) (*claims.Record, error) {
	if c.tokens == nil {
		return nil, nil
	}
	signed, err := c.tokens.CurrentToken(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("authority: read current token: %w", err)
	}
	return token.ExtractClaims(signed), nil
}

func (c *Client) mutate(ctx context.Context, method, principalID string, body []byte) error {
	if principalID == "" {
		return fmt.Errorf("authority: principal id required")
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.claimsURL(principalID), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authority: %s claims: %w", method, err)
	}
	defer drain(resp)
	return statusError(resp.StatusCode, principalID)
}

func (c *Client) fetch(ctx context.Context, principalID string) (*claims.Record, error) {
	if principalID == "" {
		return nil, fmt.Errorf("authority: principal id required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.claimsURL(principalID), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authority: get claims: %w", err)
	}
	defer drain(resp)
	if err := statusError(resp.StatusCode, principalID); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("authority: decode claims for %s: %w", principalID, err)
	}
	return claims.RecordFromMap(raw), nil
}

func (c *Client) claimsURL(principalID string) string {
	return fmt.Sprintf("%s/v1/claims/%s", c.baseURL, principalID)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func statusError(code int, principalID string) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w (principal %s)", ErrUnauthorized, principalID)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w (principal %s)", ErrNotFound, principalID)
	case code >= 400:
		return fmt.Errorf("authority: returned status %d for principal %s", code, principalID)
	default:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
