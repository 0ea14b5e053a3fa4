// Package stub is an in-memory stand-in for the loan-origination backend.
// It serves the same routes and JSON shapes so the console can be developed
// and tested without the real service.
package stub

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/bcrypt"

	"loan-console/internal/common/logger"
	"loan-console/internal/models"
)

const (
	DefaultEmail    = "admin@example.com"
	DefaultPassword = "password123"
	// DefaultAddressID is the pre-verified address every fresh server holds.
	DefaultAddressID = 42
	// DefaultUserPassword is assigned when a user is created without one.
	DefaultUserPassword = "12345678"
)

// timeLayout has a fixed-width fraction so timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Decision is the canned answer of the decision service.
type Decision struct {
	Decision       string
	FundingOptions []models.FundingOption
}

type account struct {
	user         models.User
	passwordHash []byte
}

type Server struct {
	mu        sync.Mutex
	tokens    *TokenManager
	log       logger.Logger
	router    chi.Router
	origins   []string
	users     map[int64]*account
	apps      map[int64]*models.LoanApplication
	addresses map[int64]models.Address
	eligible  map[string]int64
	decision  Decision
	outage    bool
	lastID    map[string]int64
	now       func() time.Time
}

type Option func(*Server)

func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithUser adds a sign-in account.
func WithUser(email, password, role string) Option {
	return func(s *Server) { s.addUser(email, password, role) }
}

// WithAddress makes query an eligible address resolving to addr.
func WithAddress(query string, addr models.Address) Option {
	return func(s *Server) { s.addAddress(query, addr) }
}

// WithDecision replaces the canned decision-service answer.
func WithDecision(decision string, options ...models.FundingOption) Option {
	return func(s *Server) { s.decision = Decision{Decision: decision, FundingOptions: options} }
}

// WithLocationOutage makes every address check fail as if the upstream
// location service were down.
func WithLocationOutage() Option {
	return func(s *Server) { s.outage = true }
}

// WithCORS allows browser clients from the given origins.
func WithCORS(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func WithSecret(secret string) Option {
	return func(s *Server) { s.tokens = NewTokenManager(secret, "loan-stub", 24*time.Hour) }
}

// New returns a server seeded with the default admin account, the
// pre-verified address 42 and an eligible canned decision.
func New(opts ...Option) *Server {
	s := &Server{
		tokens:    NewTokenManager("stub-secret", "loan-stub", 24*time.Hour),
		log:       logger.NewNoOpLogger(),
		users:     map[int64]*account{},
		apps:      map[int64]*models.LoanApplication{},
		addresses: map[int64]models.Address{},
		eligible:  map[string]int64{},
		lastID:    map[string]int64{},
		now:       func() time.Time { return time.Now().UTC() },
		decision: Decision{
			Decision: models.DecisionEligible,
			FundingOptions: []models.FundingOption{
				fundingOption(5, "6.5", "4891.12"),
				fundingOption(10, "7.25", "2935.40"),
			},
		},
	}
	s.addUser(DefaultEmail, DefaultPassword, models.RoleAdmin)
	s.addAddress("1 Main St, Alameda, CA 94501", models.Address{
		ID:     DefaultAddressID,
		Street: "1 Main St",
		City:   "Alameda",
		State:  "CA",
		County: "Alameda",
		Zip:    "94501",
	})

	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// RotateSecret invalidates every token issued so far.
func (s *Server) RotateSecret(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = NewTokenManager(secret, "loan-stub", 24*time.Hour)
}

// Application returns the stored record, ssn included.
func (s *Server) Application(id int64) (models.LoanApplication, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return models.LoanApplication{}, false
	}
	return *app, true
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Post("/users/sign_in", s.handleSignIn)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Route("/application_services", func(r chi.Router) {
			r.Get("/", s.handleListApplications)
			r.Post("/", s.handleCreateApplication)
			r.Post("/address_check", s.handleAddressCheck)
			r.Get("/{id}", s.handleShowApplication)
			r.Put("/{id}", s.handleUpdateApplication)
			r.Patch("/{id}", s.handlePatchApplication)
			r.Get("/{id}/decision_check", s.handleDecisionCheck)
		})
		r.Post("/location_services", s.handleLocationCheck)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleShowUser)
			r.Put("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})
		r.Get("/dashboard", s.handleDashboard)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("stub request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"requestId":  r.Header.Get("X-Request-ID"),
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		s.mu.Lock()
		tokens := s.tokens
		s.mu.Unlock()
		if _, err := tokens.Verify(token); err != nil {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ==========================
// Seed and id helpers; callers hold s.mu or run inside New
// ==========================

func (s *Server) nextID(kind string) int64 {
	s.lastID[kind]++
	return s.lastID[kind]
}

func (s *Server) addUser(email, password, role string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	id := s.nextID("user")
	now := s.now().Format(timeLayout)
	s.users[id] = &account{
		user: models.User{
			ID:        id,
			Email:     email,
			FirstName: strings.Split(email, "@")[0],
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
}

func (s *Server) addAddress(query string, addr models.Address) {
	if addr.ID == 0 {
		addr.ID = s.nextID("address")
	} else if addr.ID > s.lastID["address"] {
		s.lastID["address"] = addr.ID
	}
	s.addresses[addr.ID] = addr
	s.eligible[normalizeQuery(query)] = addr.ID
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// ==========================
// Response helpers
// ==========================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeErrors(w http.ResponseWriter, status int, errs any) {
	writeJSON(w, status, map[string]any{"errors": errs})
}
