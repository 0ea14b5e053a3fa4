// Package session holds the console's authentication state: the bearer
// token, the user derived from it, and the persisted UI preferences.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"loan-console/internal/common/errors"
	httpclient "loan-console/internal/common/http"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/metrics"
	"loan-console/internal/common/validation"
	"loan-console/internal/models"
)

// SignInPath is served at the backend root, outside the API prefix.
const SignInPath = "/users/sign_in"

// Transport is the part of the HTTP client the session drives.
type Transport interface {
	Do(ctx context.Context, req httpclient.Request, out interface{}) error
	SetBearerToken(token string)
	ClearBearerToken()
}

// Manager owns the session. It is safe for concurrent use; subscribers are
// called outside its lock, in registration order.
type Manager struct {
	transport Transport
	store     Store
	log       logger.Logger

	mu      sync.Mutex
	current models.Session

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(models.Session)
}

func NewManager(transport Transport, store Store, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Manager{
		transport: transport,
		store:     store,
		log:       log.WithFields(map[string]interface{}{"component": "session"}),
		subs:      make(map[int]func(models.Session)),
	}
}

// Current returns a copy of the session.
func (m *Manager) Current() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.current)
}

// Subscribe registers fn for every session transition and returns a func
// that unregisters it.
func (m *Manager) Subscribe(fn func(models.Session)) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(s models.Session) {
	m.subMu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(models.Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(copySession(s))
	}
}

// SignIn exchanges credentials for a token, persists it and installs it as
// the transport's default credential.
func (m *Manager) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	email = strings.TrimSpace(email)
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required"
	} else if !validation.ValidateEmail(email) {
		fields["email"] = "Email is invalid"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return models.Session{}, errors.NewValidationError(fields)
	}

	var resp models.SignInResponse
	err := m.transport.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      SignInPath,
		Body:      models.SignInRequest{Email: email, Password: password},
		Anonymous: true,
	}, &resp)
	if err != nil {
		if errors.KindOf(err) == errors.ErrCodeAuth {
			m.log.Info("sign-in rejected", map[string]interface{}{"email": email})
			return models.Session{}, errors.NewAuthError("invalid email or password")
		}
		return models.Session{}, err
	}
	if resp.AccessToken == "" {
		return models.Session{}, errors.NewServiceError(http.StatusOK, "Sign-in response did not include an access token", "")
	}

	if err := m.store.Set(ctx, KeyAccessToken, resp.AccessToken); err != nil {
		return models.Session{}, fmt.Errorf("persist access token: %w", err)
	}

	m.mu.Lock()
	m.transport.SetBearerToken(resp.AccessToken)
	m.current = models.Session{Token: resp.AccessToken, User: userFromEmail(email)}
	s := copySession(m.current)
	m.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues("sign_in").Inc()
	m.log.Info("signed in", map[string]interface{}{"email": email})
	m.notify(s)
	return s, nil
}

// SignOut forgets the token everywhere. Signing out with nothing held
// touches neither storage nor subscribers.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	held := m.current.Token != ""
	_, persisted, err := m.store.Get(ctx, KeyAccessToken)
	if err != nil {
		// unreadable state still has to be cleared
		m.log.Warn("session store unreadable on sign-out", map[string]interface{}{"error": err.Error()})
		persisted = true
	}
	if !held && !persisted {
		m.mu.Unlock()
		return nil
	}
	if persisted {
		if err := m.store.Delete(ctx, KeyAccessToken); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("delete access token: %w", err)
		}
	}
	m.transport.ClearBearerToken()
	m.current = models.Session{}
	m.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues("sign_out").Inc()
	m.log.Info("signed out", nil)
	m.notify(models.Session{})
	return nil
}

// IsAuthenticated reports whether a token is persisted. It does not check
// the token with the backend.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	token, ok, err := m.store.Get(ctx, KeyAccessToken)
	if err != nil {
		m.log.Warn("session store unavailable", map[string]interface{}{"error": err.Error()})
		return false
	}
	return ok && token != ""
}

// Restore loads a persisted token and installs it, so the first protected
// request after start-up already carries the credential.
func (m *Manager) Restore(ctx context.Context) (models.Session, error) {
	token, ok, err := m.store.Get(ctx, KeyAccessToken)
	if stderrors.Is(err, ErrCorruptState) {
		m.log.Warn("discarding corrupt session state", map[string]interface{}{"error": err.Error()})
		if err := m.store.Delete(ctx, KeyAccessToken); err != nil {
			return models.Session{}, fmt.Errorf("reset session state: %w", err)
		}
		token, ok, err = "", false, nil
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("read access token: %w", err)
	}

	m.mu.Lock()
	if ok && token != "" {
		m.transport.SetBearerToken(token)
		m.current = models.Session{Token: token, User: userFromToken(token)}
	} else {
		m.transport.ClearBearerToken()
		m.current = models.Session{}
	}
	s := copySession(m.current)
	m.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues("restore").Inc()
	m.log.Debug("session restored", map[string]interface{}{"authenticated": s.Authenticated()})
	m.notify(s)
	return s, nil
}

// SidebarCollapsed reads the persisted sidebar preference; absent means expanded.
func (m *Manager) SidebarCollapsed(ctx context.Context) (bool, error) {
	v, ok, err := m.store.Get(ctx, KeySidebarCollapsed)
	if err != nil || !ok {
		return false, err
	}
	collapsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, nil
	}
	return collapsed, nil
}

func (m *Manager) SetSidebarCollapsed(ctx context.Context, collapsed bool) error {
	return m.store.Set(ctx, KeySidebarCollapsed, strconv.FormatBool(collapsed))
}

func copySession(s models.Session) models.Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
