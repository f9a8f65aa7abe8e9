package authority_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-authz/internal/authority"
	"github.com/lumina-lms/lumina-authz/internal/claims"
	"github.com/lumina-lms/lumina-authz/internal/session"
	_ "github.com/lumina-lms/lumina-authz/testing"
)

type capturedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, respond any) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&captured.body)
		}
		w.WriteHeader(status)
		if respond != nil {
			_ = json.NewEncoder(w).Encode(respond)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestSetClaims(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusNoContent, nil)
	client := authority.NewClient(srv.URL, "admin-key", nil)

	rec := claims.NewDefaultRecord(claims.RoleInstructor, nil)
	require.NoError(t, client.SetClaims(context.Background(), "user-1", rec))

	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/v1/claims/user-1", captured.path)
	assert.Equal(t, "Bearer admin-key", captured.auth)
	assert.Equal(t, "instructor", captured.body["role"])
}

func TestUpdateClaims(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusNoContent, nil)
	client := authority.NewClient(srv.URL, "", nil)

	active := false
	require.NoError(t, client.UpdateClaims(context.Background(), "user-2", claims.Update{IsActive: &active}))

	assert.Equal(t, http.MethodPatch, captured.method)
	assert.Equal(t, "/v1/claims/user-2", captured.path)
	assert.Equal(t, false, captured.body["isActive"])
	assert.NotContains(t, captured.body, "role", "absent fields must not be sent")
}

func TestRemoveClaims(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusNoContent, nil)
	client := authority.NewClient(srv.URL, "", nil)

	require.NoError(t, client.RemoveClaims(context.Background(), "user-3"))
	assert.Equal(t, http.MethodDelete, captured.method)
}

func TestGetClaims(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, map[string]any{
		"role":        "franchise_admin",
		"permissions": []string{"MANAGE_USERS"},
		"isActive":    true,
	})
	client := authority.NewClient(srv.URL, "", nil)

	rec, err := client.GetClaims(context.Background(), "user-4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, claims.RoleFranchiseAdmin, rec.Role)
	assert.Equal(t, []claims.Permission{claims.PermManageUsers}, rec.Permissions)
}

func TestUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusForbidden, nil)
	client := authority.NewClient(srv.URL, "bad-key", nil)

	err := client.SetClaims(context.Background(), "user-5", claims.NewDefaultRecord(claims.RoleStudent, nil))
	assert.ErrorIs(t, err, authority.ErrUnauthorized)
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, nil)
	client := authority.NewClient(srv.URL, "", nil)

	_, err := client.GetClaims(context.Background(), "ghost")
	assert.ErrorIs(t, err, authority.ErrNotFound)
}

func TestTransportError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, nil)
	srv.Close()
	client := authority.NewClient(srv.URL, "", nil)

	err := client.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, authority.ErrUnauthorized)
	assert.NotErrorIs(t, err, authority.ErrNotFound)
}

func TestHealthCheck(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, map[string]string{"status": "ok"})
	client := authority.NewClient(srv.URL, "", nil)

	require.NoError(t, client.HealthCheck(context.Background()))
	assert.Equal(t, "/healthz", captured.path)
}

func TestMutationRequiresPrincipalID(t *testing.T) {
	client := authority.NewClient("http://127.0.0.1:0", "", nil)
	assert.Error(t, client.RemoveClaims(context.Background(), ""))
}

func TestCurrentPrincipalClaims(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role":        "instructor",
		"permissions": []string{"VIEW_COURSES"},
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	source := session.SourceFunc(func(ctx context.Context) (string, error) {
		return signed, nil
	})
	client := authority.NewClient("http://127.0.0.1:0", "", source)

	rec, err := client.CurrentPrincipalClaims(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, claims.RoleInstructor, rec.Role)
}

func TestCurrentPrincipalClaimsNoSession(t *testing.T) {
	source := session.SourceFunc(func(ctx context.Context) (string, error) {
		return "", session.ErrNoSession
	})
	client := authority.NewClient("http://127.0.0.1:0", "", source)

	rec, err := client.CurrentPrincipalClaims(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}
