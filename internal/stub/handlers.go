package stub

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"loan-console/internal/models"
)

// ==========================
// Sign-in
// ==========================

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.findByEmail(in.Email)
	if acct == nil || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(in.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.tokens.Generate(acct.user)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	acct.user.SignInCount++
	acct.user.LastSignInAt = s.now().Format(timeLayout)
	writeJSON(w, http.StatusOK, models.SignInResponse{AccessToken: token})
}

func (s *Server) findByEmail(email string) *account {
	for _, acct := range s.users {
		if strings.EqualFold(acct.user.Email, strings.TrimSpace(email)) {
			return acct
		}
	}
	return nil
}

// ==========================
// Address eligibility
// ==========================

// resolveAddress answers an eligibility query: the address, whether it is
// eligible, and whether the upstream location service is down.
func (s *Server) resolveAddress(query string) (addr models.Address, eligible, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outage {
		return models.Address{}, false, true
	}
	id, ok := s.eligible[normalizeQuery(query)]
	if !ok {
		return models.Address{}, false, false
	}
	return s.addresses[id], true, false
}

func (s *Server) writeEligibility(w http.ResponseWriter, query string) {
	addr, eligible, down := s.resolveAddress(query)
	switch {
	case down:
		writeMessage(w, http.StatusInternalServerError, "Location service error")
	case !eligible:
		writeMessage(w, http.StatusNotFound, "Address not eligible.")
	default:
		writeJSON(w, http.StatusOK, addr)
	}
}

func (s *Server) handleLocationCheck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Location service error")
		return
	}
	s.writeEligibility(w, body.Address)
}

// handleAddressCheck is the legacy multipart variant.
func (s *Server) handleAddressCheck(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Location service error")
		return
	}
	s.writeEligibility(w, r.FormValue("address"))
}

// ==========================
// Users
// ==========================

type userBody struct {
	models.UserInput
}

func (b userBody) missing() map[string]string {
	fields := map[string]string{}
	for name, value := range map[string]string{
		"email":     b.Email,
		"firstName": b.FirstName,
		"lastName":  b.LastName,
		"role":      b.Role,
	} {
		if strings.TrimSpace(value) == "" {
			fields[name] = "can't be blank"
		}
	}
	return fields
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := make([]models.User, 0, len(s.users))
	for _, acct := range s.users {
		list = append(list, acct.user)
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleShowUser(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	acct, ok := s.users[id]
	var out models.User
	if ok {
		out = acct.user
	}
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, "Malformed JSON: "+err.Error())
		return
	}
	if fields := body.missing(); len(fields) > 0 {
		writeErrors(w, http.StatusUnprocessableEntity, fields)
		return
	}
	password := body.Password
	if password == "" {
		password = DefaultUserPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmail(body.Email) != nil {
		writeErrors(w, http.StatusUnprocessableEntity, "Email has already been taken")
		return
	}
	now := s.now().Format(timeLayout)
	acct := &account{
		user: models.User{
			ID:        s.nextID("user"),
			Email:     body.Email,
			FirstName: body.FirstName,
			LastName:  body.LastName,
			Role:      body.Role,
			Contact:   body.Contact,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.users[acct.user.ID] = acct
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var body userBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, "Malformed JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if fields := body.missing(); len(fields) > 0 {
		writeErrors(w, http.StatusUnprocessableEntity, fields)
		return
	}
	if other := s.findByEmail(body.Email); other != nil && other != acct {
		writeErrors(w, http.StatusUnprocessableEntity, "Email has already been taken")
		return
	}
	if body.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
		if err != nil {
			writeErrors(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		acct.passwordHash = hash
	}
	acct.user.Email = body.Email
	acct.user.FirstName = body.FirstName
	acct.user.LastName = body.LastName
	acct.user.Role = body.Role
	acct.user.Contact = body.Contact
	acct.user.UpdatedAt = s.now().Format(timeLayout)
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	_, ok := s.users[id]
	delete(s.users, id)
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeMessage(w, http.StatusOK, "User deleted successfully")
}

// ==========================
// Dashboard
// ==========================

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	all := make([]models.LoanApplication, 0, len(s.apps))
	var stats models.Statistics
	for _, app := range s.apps {
		all = append(all, public(app))
		stats.Total++
		switch app.Status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusApproved:
			stats.Approved++
		case models.StatusRejected:
			stats.Rejected++
		}
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].ID > all[j].ID
	})
	if len(all) > 10 {
		all = all[:10]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recentApplications": all,
		"statistics":         stats,
	})
}
