package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"loan-console/internal/common/errors"
	httpclient "loan-console/internal/common/http"
	"loan-console/internal/common/logger"
	"loan-console/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockTransport struct {
	mock.Mock
	token string
}

func (m *MockTransport) Do(ctx context.Context, req httpclient.Request, out interface{}) error {
	args := m.Called(ctx, req, out)
	if fn, ok := args.Get(1).(func(interface{})); ok && fn != nil {
		fn(out)
	}
	return args.Error(0)
}

func (m *MockTransport) SetBearerToken(token string) { m.token = token }
func (m *MockTransport) ClearBearerToken()           { m.token = "" }

func signInReturns(token string) func(interface{}) {
	return func(out interface{}) {
		out.(*models.SignInResponse).AccessToken = token
	}
}

func signedToken(t *testing.T, email string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// ==========================
// SignIn
// ==========================

func TestSignIn_Success(t *testing.T) {
	transport := &MockTransport{}
	transport.On("Do", mock.Anything, mock.MatchedBy(func(r httpclient.Request) bool {
		body := r.Body.(models.SignInRequest)
		return r.Method == http.MethodPost && r.Path == SignInPath && r.Anonymous &&
			body.Email == "admin@example.com" && body.Password == "password123"
	}), mock.Anything).Return(nil, signInReturns("tok-abc"))

	store := NewMemoryStore()
	mgr := NewManager(transport, store, logger.NewTestLogger(t))

	var seen []models.Session
	mgr.Subscribe(func(s models.Session) { seen = append(seen, s) })

	s, err := mgr.SignIn(context.Background(), " admin@example.com ", "password123")
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", s.Token)
	require.NotNil(t, s.User)
	assert.Equal(t, "admin@example.com", s.User.Email)
	assert.Equal(t, "tok-abc", transport.token)
	assert.True(t, mgr.IsAuthenticated(context.Background()))
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Authenticated())
	transport.AssertExpectations(t)
}

func TestSignIn_ValidatesBeforeNetwork(t *testing.T) {
	transport := &MockTransport{}
	mgr := NewManager(transport, NewMemoryStore(), nil)

	_, err := mgr.SignIn(context.Background(), "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	std := errors.Normalize(err)
	assert.Contains(t, std.Fields, "email")
	assert.Contains(t, std.Fields, "password")
	transport.AssertNotCalled(t, "Do", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignIn_RejectedCredentials(t *testing.T) {
	transport := &MockTransport{}
	transport.On("Do", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.NewAuthError("Unauthorized"), nil)

	store := NewMemoryStore()
	mgr := NewManager(transport, store, nil)

	_, err := mgr.SignIn(context.Background(), "admin@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAuth)
	assert.Equal(t, "invalid email or password", errors.UserMessage(err))
	assert.False(t, mgr.Current().Authenticated())
	assert.Equal(t, 0, store.Writes())
}

func TestSignIn_MissingTokenIsServiceError(t *testing.T) {
	transport := &MockTransport{}
	transport.On("Do", mock.Anything, mock.Anything, mock.Anything).Return(nil, signInReturns(""))

	mgr := NewManager(transport, NewMemoryStore(), nil)

	_, err := mgr.SignIn(context.Background(), "admin@example.com", "password123")
	assert.ErrorIs(t, err, errors.ErrService)
	assert.Equal(t, "", transport.token)
}

// ==========================
// SignOut
// ==========================

func TestSignOut_IsIdempotent(t *testing.T) {
	transport := &MockTransport{}
	transport.On("Do", mock.Anything, mock.Anything, mock.Anything).Return(nil, signInReturns("tok-abc"))

	store := NewMemoryStore()
	mgr := NewManager(transport, store, nil)
	ctx := context.Background()

	_, err := mgr.SignIn(ctx, "admin@example.com", "password123")
	require.NoError(t, err)

	notifications := 0
	mgr.Subscribe(func(models.Session) { notifications++ })

	require.NoError(t, mgr.SignOut(ctx))
	writesAfterFirst := store.Writes()
	assert.False(t, mgr.IsAuthenticated(ctx))
	assert.False(t, mgr.Current().Authenticated())
	assert.Nil(t, mgr.Current().User)
	assert.Equal(t, "", transport.token)

	require.NoError(t, mgr.SignOut(ctx))
	assert.Equal(t, writesAfterFirst, store.Writes())
	assert.Equal(t, 1, notifications)
}

func corruptStateFile(t *testing.T) *FileStore {
	t.Helper()
	path := t.TempDir() + "/state.json"
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	return NewFileStore(path)
}

func TestSignOut_CorruptStateIsCleared(t *testing.T) {
	store := corruptStateFile(t)
	transport := &MockTransport{token: "stale"}
	mgr := NewManager(transport, store, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, mgr.SignOut(ctx))
	assert.Equal(t, "", transport.token)
	assert.False(t, mgr.Current().Authenticated())

	_, ok, err := store.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	// now a plain no-op
	require.NoError(t, mgr.SignOut(ctx))
}

func TestSignIn_OverCorruptState(t *testing.T) {
	transport := &MockTransport{}
	transport.On("Do", mock.Anything, mock.Anything, mock.Anything).Return(nil, signInReturns("tok-abc"))
	store := corruptStateFile(t)
	mgr := NewManager(transport, store, nil)
	ctx := context.Background()

	_, err := mgr.SignIn(ctx, "admin@example.com", "password123")
	require.NoError(t, err)

	v, ok, err := store.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-abc", v)
}

// ==========================
// Restore / round trip
// ==========================

func TestRestore_CorruptStateSignsOut(t *testing.T) {
	store := corruptStateFile(t)
	transport := &MockTransport{token: "leftover"}
	mgr := NewManager(transport, store, logger.NewTestLogger(t))

	s, err := mgr.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
	assert.Equal(t, "", transport.token)

	_, _, err = store.Get(context.Background(), KeyAccessToken)
	assert.NoError(t, err)
}

func TestTokenRoundTrip_RestoredTokenIsSentOnNextRequest(t *testing.T) {
	token := signedToken(t, "admin@example.com")
	var authHeaders []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SignInPath:
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": token})
		default:
			authHeaders = append(authHeaders, r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	store := NewFileStore(t.TempDir() + "/state.json")
	ctx := context.Background()

	first := NewManager(httpclient.NewClient(srv.URL), store, nil)
	_, err := first.SignIn(ctx, "admin@example.com", "password123")
	require.NoError(t, err)

	// simulated restart: fresh transport and manager over the same storage
	client := httpclient.NewClient(srv.URL)
	second := NewManager(client, store, nil)
	s, err := second.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.User)
	assert.Equal(t, "admin@example.com", s.User.Email)

	require.NoError(t, client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, nil))
	assert.Equal(t, []string{"Bearer " + token}, authHeaders)
}

func TestRestore_NoToken(t *testing.T) {
	transport := &MockTransport{token: "leftover"}
	mgr := NewManager(transport, NewMemoryStore(), nil)

	s, err := mgr.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User)
	assert.Equal(t, "", transport.token)
}

func TestRestore_OpaqueTokenStillAuthenticates(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), KeyAccessToken, "not-a-jwt"))

	mgr := NewManager(&MockTransport{}, store, nil)
	s, err := mgr.Restore(context.Background())
	require.NoError(t, err)

	assert.True(t, s.Authenticated())
	assert.NotNil(t, s.User)
	assert.Equal(t, "", s.User.Email)
}

// ==========================
// Preferences
// ==========================

func TestSidebarCollapsed(t *testing.T) {
	mgr := NewManager(&MockTransport{}, NewMemoryStore(), nil)
	ctx := context.Background()

	collapsed, err := mgr.SidebarCollapsed(ctx)
	require.NoError(t, err)
	assert.False(t, collapsed)

	require.NoError(t, mgr.SetSidebarCollapsed(ctx, true))
	collapsed, err = mgr.SidebarCollapsed(ctx)
	require.NoError(t, err)
	assert.True(t, collapsed)
}

func TestUserFromToken(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops@example.com",
		"name": "Ops Team",
	}).SignedString([]byte("x"))
	require.NoError(t, err)

	u := userFromToken(tok)
	assert.Equal(t, "ops@example.com", u.Email)
	assert.Equal(t, "Ops Team", u.DisplayName)
}
