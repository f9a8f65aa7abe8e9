package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-authz/internal/authority"
	"github.com/lumina-lms/lumina-authz/internal/authz"
	"github.com/lumina-lms/lumina-authz/internal/claims"
	"github.com/lumina-lms/lumina-authz/internal/guard"
	"github.com/lumina-lms/lumina-authz/internal/propagation"
	_ "github.com/lumina-lms/lumina-authz/testing"
)

// fakeAuthority models an authority whose freshly-set claims take a few
// reads to become visible, the way a distributed token backend behaves
// right after sign-up.
type fakeAuthority struct {
	mu           sync.Mutex
	reads        int
	visibleAfter int
	record       claims.Record
}

func (f *fakeAuthority) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.reads++
		if f.reads < f.visibleAfter {
			placeholder := map[string]any{"role": "pending", "isActive": true}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(placeholder)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.record.AsMap())
	})
}

type pollingSource struct {
	client      *authority.Client
	principalID string
}

func (s pollingSource) CurrentPrincipalClaims(ctx context.Context) (*claims.Record, error) {
	return s.client.GetClaims(ctx, s.principalID)
}

func TestSignInWaitsForPropagationThenRenders(t *testing.T) {
	backend := &fakeAuthority{
		visibleAfter: 4,
		record:       claims.NewDefaultRecord(claims.RoleInstructor, nil),
	}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := authority.NewClient(srv.URL, "", nil)
	source := pollingSource{client: client, principalID: "principal-1"}

	recCh := make(chan *claims.Record, 1)
	episode := propagation.Begin(context.Background(), source, propagation.Config{
		Interval:      5 * time.Millisecond,
		MaxAttempts:   50,
		FallbackAfter: time.Second,
	}, func(rec *claims.Record) {
		recCh <- rec
	}, func(err error) {
		t.Errorf("unexpected timeout: %v", err)
	})

	select {
	case <-episode.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("episode did not terminate")
	}
	require.Equal(t, propagation.StateResolved, episode.State())

	var rec *claims.Record
	select {
	case rec = <-recCh:
	case <-time.After(time.Second):
		t.Fatal("resolved continuation never fired")
	}
	require.NotNil(t, rec)
	assert.Equal(t, claims.RoleInstructor, rec.Role)

	// The resolved record drives route decisions immediately.
	decision := guard.Decide(false, true, rec, guard.Requirement{Permissions: []claims.Permission{claims.PermGradeAssignments}})
	assert.Equal(t, guard.DecisionRender, decision)

	decision = guard.Decide(false, true, rec, guard.Requirement{Role: claims.RoleSuperAdmin})
	assert.Equal(t, guard.DecisionRedirectUnauthorized, decision)
}

func TestSignInTimesOutWhenClaimsNeverArrive(t *testing.T) {
	backend := &fakeAuthority{visibleAfter: 1 << 30}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := authority.NewClient(srv.URL, "", nil)
	source := pollingSource{client: client, principalID: "principal-2"}

	errCh := make(chan error, 1)
	episode := propagation.Begin(context.Background(), source, propagation.Config{
		Interval:      time.Millisecond,
		MaxAttempts:   10,
		FallbackAfter: 50 * time.Millisecond,
	}, func(rec *claims.Record) {
		t.Errorf("unexpected resolution: %+v", rec)
	}, func(err error) {
		errCh <- err
	})

	select {
	case <-episode.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("episode did not terminate")
	}
	require.Equal(t, propagation.StateTimedOut, episode.State())

	select {
	case err := <-errCh:
		var timeoutErr *propagation.TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Equal(t, 10, timeoutErr.Attempts)
	case <-time.After(time.Second):
		t.Fatal("timeout continuation never fired")
	}

	// A principal stuck on placeholder claims never clears the guard.
	rec := claims.NewDefaultRecord(claims.RolePending, nil)
	decision := guard.Decide(false, true, &rec, guard.Requirement{Permissions: []claims.Permission{claims.PermViewCourses}})
	assert.NotEqual(t, guard.DecisionRender, decision)
}

var _ authz.ClaimsSource = pollingSource{}
