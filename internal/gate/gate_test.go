package gate

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	httpclient "loan-console/internal/common/http"
	"loan-console/internal/models"
	"loan-console/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T, handler http.HandlerFunc) (*Gate, *session.Manager, *httpclient.Client, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := httpclient.NewClient(srv.URL)
	store := session.NewMemoryStore()
	mgr := session.NewManager(client, store, nil)
	return New(mgr, "", nil), mgr, client, store
}

func TestGate_LoadingBeforeStart(t *testing.T) {
	g, _, _, _ := newGate(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Equal(t, StateLoading, g.State())
	assert.Equal(t, Decision{Action: ActionPlaceholder}, g.Decide())
}

func TestGate_RestoreWithoutToken(t *testing.T) {
	g, _, client, _ := newGate(t, func(w http.ResponseWriter, r *http.Request) {})

	state := g.Start(context.Background(), client)
	defer g.Stop()

	assert.Equal(t, StateUnauthenticated, state)
	assert.Equal(t, Decision{Action: ActionRedirect, Redirect: DefaultLoginPath}, g.Decide())
}

func TestGate_RestoreWithToken(t *testing.T) {
	g, _, client, store := newGate(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, store.Set(context.Background(), session.KeyAccessToken, "tok"))

	state := g.Start(context.Background(), client)
	defer g.Stop()

	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, ActionRender, g.Decide().Action)
	assert.Equal(t, "tok", client.BearerToken())
}

func TestGate_FollowsSignInAndSignOut(t *testing.T) {
	g, mgr, client, _ := newGate(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	})
	ctx := context.Background()
	g.Start(ctx, client)
	defer g.Stop()

	_, err := mgr.SignIn(ctx, "admin@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, g.State())

	require.NoError(t, mgr.SignOut(ctx))
	assert.Equal(t, StateUnauthenticated, g.State())
}

func TestGate_UnauthorizedResponseForcesSignOut(t *testing.T) {
	g, mgr, client, store := newGate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	})
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, session.KeyAccessToken, "expired"))

	g.Start(ctx, client)
	defer g.Stop()
	require.Equal(t, StateAuthenticated, g.State())

	err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, nil)
	require.Error(t, err)

	assert.Equal(t, StateUnauthenticated, g.State())
	assert.False(t, mgr.IsAuthenticated(ctx))
	assert.Equal(t, "", client.BearerToken())
}

type failingSession struct{}

func (failingSession) Restore(context.Context) (models.Session, error) {
	return models.Session{}, stderrors.New("storage unavailable")
}
func (failingSession) SignOut(context.Context) error { return nil }
func (failingSession) Subscribe(func(models.Session)) func() {
	return func() {}
}

func TestGate_RestoreErrorIsUnauthenticated(t *testing.T) {
	g := New(failingSession{}, "/signin", nil)

	assert.Equal(t, StateUnauthenticated, g.Start(context.Background(), nil))
	assert.Equal(t, "/signin", g.Decide().Redirect)
}
