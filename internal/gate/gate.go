// Package gate decides whether a protected view may render.
package gate

import (
	"context"
	"sync"

	"loan-console/internal/common/logger"
	"loan-console/internal/models"
)

type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

type Action int

const (
	ActionPlaceholder Action = iota
	ActionRender
	ActionRedirect
)

// Decision is what a protected view should do right now.
type Decision struct {
	Action   Action
	Redirect string
}

// Session is the part of the session manager the gate consumes.
type Session interface {
	Restore(ctx context.Context) (models.Session, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(models.Session)) func()
}

// Unauthorized is implemented by the transport.
type Unauthorized interface {
	OnUnauthorized(fn func(error)) func()
}

const DefaultLoginPath = "/login"

// Gate starts in Loading and stays there until Start has restored the session.
type Gate struct {
	session   Session
	loginPath string
	log       logger.Logger

	mu    sync.RWMutex
	state State

	unsubscribe []func()
}

func New(session Session, loginPath string, log logger.Logger) *Gate {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Gate{
		session:   session,
		loginPath: loginPath,
		log:       log.WithFields(map[string]interface{}{"component": "gate"}),
		state:     StateLoading,
	}
}

// Start subscribes to session changes, and to 401s from unauthorized when
// given, then restores the persisted session. A restore failure leaves the
// gate Unauthenticated.
func (g *Gate) Start(ctx context.Context, unauthorized Unauthorized) State {
	g.unsubscribe = append(g.unsubscribe, g.session.Subscribe(func(s models.Session) {
		if s.Authenticated() {
			g.set(StateAuthenticated)
		} else {
			g.set(StateUnauthenticated)
		}
	}))

	if unauthorized != nil {
		g.unsubscribe = append(g.unsubscribe, unauthorized.OnUnauthorized(func(err error) {
			g.log.Warn("backend rejected credential, signing out", map[string]interface{}{"error": err.Error()})
			if signOutErr := g.session.SignOut(context.Background()); signOutErr != nil {
				g.log.Error("forced sign-out failed", map[string]interface{}{"error": signOutErr.Error()})
			}
			g.set(StateUnauthenticated)
		}))
	}

	if _, err := g.session.Restore(ctx); err != nil {
		g.log.Warn("session restore failed", map[string]interface{}{"error": err.Error()})
		g.set(StateUnauthenticated)
	}
	return g.State()
}

// Stop detaches the gate from its subscriptions.
func (g *Gate) Stop() {
	for _, fn := range g.unsubscribe {
		fn()
	}
	g.unsubscribe = nil
}

func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gate) set(s State) {
	g.mu.Lock()
	prev := g.state
	g.state = s
	g.mu.Unlock()
	if prev != s {
		g.log.Debug("gate state changed", map[string]interface{}{"from": prev.String(), "to": s.String()})
	}
}

// Decide maps the current state to an action for a protected view.
func (g *Gate) Decide() Decision {
	switch g.State() {
	case StateAuthenticated:
		return Decision{Action: ActionRender}
	case StateUnauthenticated:
		return Decision{Action: ActionRedirect, Redirect: g.loginPath}
	default:
		return Decision{Action: ActionPlaceholder}
	}
}
