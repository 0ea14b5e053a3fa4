package stub

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"loan-console/internal/models"
)

// applicationBody is what create and update accept. Status is decoded so it
// can be ignored explicitly: only the decision check changes it.
type applicationBody struct {
	FirstName           string              `json:"firstName"`
	LastName            string              `json:"lastName"`
	DateOfBirth         string              `json:"dateOfBirth"`
	SSN                 string              `json:"ssn"`
	Email               string              `json:"email"`
	Phone               string              `json:"phone"`
	Income              decimal.NullDecimal `json:"income"`
	IncomeType          string              `json:"incomeType"`
	RequestedLoanAmount decimal.NullDecimal `json:"requestedLoanAmount"`
	AddressID           int64               `json:"addressId"`
	Address             *struct {
		ID int64 `json:"id"`
	} `json:"address"`
	Status string `json:"status"`
}

func (b applicationBody) addressID() int64 {
	if b.Address != nil && b.Address.ID != 0 {
		return b.Address.ID
	}
	return b.AddressID
}

func (b applicationBody) missing() map[string]string {
	fields := map[string]string{}
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			fields[name] = "can't be blank"
		}
	}
	check("firstName", b.FirstName)
	check("lastName", b.LastName)
	check("dateOfBirth", b.DateOfBirth)
	check("email", b.Email)
	check("phone", b.Phone)
	check("incomeType", b.IncomeType)
	if !b.RequestedLoanAmount.Valid {
		fields["requestedLoanAmount"] = "can't be blank"
	}
	return fields
}

// maskedSSN reports whether ssn is the redacted form shown in edit forms,
// which must not overwrite the stored value.
func maskedSSN(ssn string) bool {
	return ssn == "" || strings.HasPrefix(ssn, "X") || strings.HasPrefix(ssn, "*")
}

// public strips the write-only ssn.
func public(app *models.LoanApplication) models.LoanApplication {
	out := *app
	out.SSN = ""
	return out
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size := 0, models.DefaultPageSize
	var err error
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid page"})
			return
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid size"})
			return
		}
	}
	status := q.Get("status")

	s.mu.Lock()
	matched := make([]models.LoanApplication, 0, len(s.apps))
	for _, app := range s.apps {
		if status == "" || string(app.Status) == status {
			matched = append(matched, public(app))
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, models.Page[models.LoanApplication]{
		Content:       matched[start:end],
		Number:        page,
		Size:          size,
		TotalPages:    (total + size - 1) / size,
		TotalElements: int64(total),
	})
}

func (s *Server) handleShowApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	s.mu.Lock()
	app, found := s.apps[id]
	var out models.LoanApplication
	if found {
		out = public(app)
	}
	s.mu.Unlock()
	if !ok || !found {
		writeMessage(w, http.StatusNotFound, "Loan application not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var body applicationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, "Malformed JSON: "+err.Error())
		return
	}
	if fields := body.missing(); len(fields) > 0 {
		writeErrors(w, http.StatusUnprocessableEntity, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var addr *models.Address
	if id := body.addressID(); id != 0 {
		a, ok := s.addresses[id]
		if !ok {
			writeErrors(w, http.StatusUnprocessableEntity, "Address not found")
			return
		}
		addr = &a
	}

	now := s.now().Format(timeLayout)
	app := &models.LoanApplication{
		ID:                  s.nextID("application"),
		FirstName:           body.FirstName,
		LastName:            body.LastName,
		DateOfBirth:         body.DateOfBirth,
		SSN:                 body.SSN,
		Email:               body.Email,
		Phone:               body.Phone,
		Income:              body.Income,
		IncomeType:          body.IncomeType,
		RequestedLoanAmount: body.RequestedLoanAmount.Decimal,
		Address:             addr,
		Status:              models.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.apps[app.ID] = app
	writeJSON(w, http.StatusOK, public(app))
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var body applicationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, "Malformed JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Loan application not found")
		return
	}
	if fields := body.missing(); len(fields) > 0 {
		writeErrors(w, http.StatusUnprocessableEntity, fields)
		return
	}
	if addrID := body.addressID(); addrID != 0 {
		a, found := s.addresses[addrID]
		if !found {
			writeErrors(w, http.StatusUnprocessableEntity, "Address not found")
			return
		}
		app.Address = &a
	}

	app.FirstName = body.FirstName
	app.LastName = body.LastName
	app.DateOfBirth = body.DateOfBirth
	app.Email = body.Email
	app.Phone = body.Phone
	app.Income = body.Income
	app.IncomeType = body.IncomeType
	app.RequestedLoanAmount = body.RequestedLoanAmount.Decimal
	if !maskedSSN(body.SSN) {
		app.SSN = body.SSN
	}
	app.UpdatedAt = s.now().Format(timeLayout)
	writeJSON(w, http.StatusOK, public(app))
}

// handlePatchApplication applies only the keys present in the body.
func (s *Server) handlePatchApplication(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, "Malformed JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Loan application not found")
		return
	}

	merged := *app
	strField := map[string]*string{
		"firstName":   &merged.FirstName,
		"lastName":    &merged.LastName,
		"dateOfBirth": &merged.DateOfBirth,
		"email":       &merged.Email,
		"phone":       &merged.Phone,
		"incomeType":  &merged.IncomeType,
	}
	for key, value := range raw {
		var err error
		switch key {
		case "income":
			err = json.Unmarshal(value, &merged.Income)
		case "requestedLoanAmount":
			err = json.Unmarshal(value, &merged.RequestedLoanAmount)
		case "ssn":
			var ssn string
			if err = json.Unmarshal(value, &ssn); err == nil && !maskedSSN(ssn) {
				merged.SSN = ssn
			}
		case "address":
			var ref struct {
				ID int64 `json:"id"`
			}
			if err = json.Unmarshal(value, &ref); err == nil {
				a, found := s.addresses[ref.ID]
				if !found {
					writeErrors(w, http.StatusUnprocessableEntity, "Address not found")
					return
				}
				merged.Address = &a
			}
		case "status":
			// server-owned
		default:
			if dst, known := strField[key]; known {
				err = json.Unmarshal(value, dst)
			}
		}
		if err != nil {
			writeErrors(w, http.StatusUnprocessableEntity, map[string]string{key: "is invalid"})
			return
		}
	}
	merged.UpdatedAt = s.now().Format(timeLayout)
	*app = merged
	writeJSON(w, http.StatusOK, public(app))
}

func (s *Server) handleDecisionCheck(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	switch {
	case !ok:
		writeMessage(w, http.StatusNotFound, "Loan application not found")
		return
	case app.SSN == "":
		writeMessage(w, http.StatusBadRequest, "SSN is required for decision check")
		return
	case app.Address == nil:
		writeMessage(w, http.StatusBadRequest, "Address is required for decision check")
		return
	}

	request, _ := json.Marshal(map[string]any{
		"applicationId":       app.ID,
		"firstName":           app.FirstName,
		"lastName":            app.LastName,
		"dateOfBirth":         app.DateOfBirth,
		"ssn":                 app.SSN,
		"income":              app.Income,
		"incomeType":          app.IncomeType,
		"requestedLoanAmount": app.RequestedLoanAmount,
		"address":             app.Address,
	})
	response, _ := json.Marshal(s.decisionResponse())
	// the backend stores the decision-service body as a string column
	responseText, _ := json.Marshal(string(response))

	now := s.now().Format(timeLayout)
	decision := models.ApplicationDecision{
		ID:        s.nextID("decision"),
		Decision:  s.decision.Decision,
		Request:   request,
		Response:  responseText,
		CreatedAt: now,
		UpdatedAt: now,
	}
	app.ApplicationDecisions = append(app.ApplicationDecisions, decision)
	app.LastApplicationDecision = &decision
	if decision.Decision == models.DecisionEligible {
		app.Status = models.StatusApproved
	} else {
		app.Status = models.StatusRejected
	}
	app.UpdatedAt = now
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) decisionResponse() map[string]any {
	options := make([]map[string]any, 0, len(s.decision.FundingOptions))
	for _, opt := range s.decision.FundingOptions {
		options = append(options, map[string]any{
			"years":         opt.Years,
			"interest_rate": opt.InterestRate,
			"emi":           opt.EMI,
		})
	}
	return map[string]any{
		"final_decision":  s.decision.Decision,
		"funding_options": options,
	}
}

func fundingOption(years int, rate, emi string) models.FundingOption {
	return models.FundingOption{
		Years:        years,
		InterestRate: decimal.RequireFromString(rate),
		EMI:          decimal.RequireFromString(emi),
	}
}
