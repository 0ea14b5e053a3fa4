// cmd/console/commands.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"loan-console/internal/api/applications"
	"loan-console/internal/common/errors"
	"loan-console/internal/gate"
	"loan-console/internal/models"
	"loan-console/internal/view"
)

// maskedSSN stands in for the stored ssn on updates. The backend never
// returns the real value and ignores one starting with "X".
const maskedSSN = "XXX-XX-XXXX"

func (c *console) dispatch(ctx context.Context, args []string) int {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.login(ctx, rest)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami(ctx)
	case "help", "-h", "--help":
		usage(c.stdout)
		return exitOK
	}

	// everything else is a protected view
	if code, ok := c.requireSession(ctx); !ok {
		return code
	}
	switch cmd {
	case "apps":
		return c.appsCommand(ctx, rest)
	case "address-check":
		return c.addressCheck(ctx, rest)
	case "users":
		return c.usersCommand(ctx, rest)
	case "dashboard":
		return c.dashboardCommand(ctx, rest)
	case "sidebar":
		return c.sidebar(ctx, rest)
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n\n", cmd)
		usage(c.stderr)
		return exitUsage
	}
}

// requireSession runs the auth gate and refuses protected commands unless
// it lets the view render.
func (c *console) requireSession(ctx context.Context) (int, bool) {
	c.gate.Start(ctx, c.client)
	decision := c.gate.Decide()
	if decision.Action == gate.ActionRender {
		return exitOK, true
	}
	c.banner.Show(errors.NewAuthError("Not signed in"))
	fmt.Fprintf(c.stderr, "%s\nrun `console login` (%s)\n", c.banner.String(), decision.Redirect)
	return exitSignedIn, false
}

func newFlagSet(c *console, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// ==========================
// Session commands
// ==========================

func (c *console) login(ctx context.Context, args []string) int {
	fs := newFlagSet(c, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("LOAN_CONSOLE_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	s, err := c.session.SignIn(ctx, *email, *password)
	if err != nil {
		return c.fail(err)
	}
	return c.render(s)
}

func (c *console) logout(ctx context.Context) int {
	if _, err := c.session.Restore(ctx); err != nil {
		c.log.Warn("restore before sign-out failed", map[string]interface{}{"error": err.Error()})
	}
	if err := c.session.SignOut(ctx); err != nil {
		return c.fail(err)
	}
	return c.render(map[string]bool{"authenticated": false})
}

func (c *console) whoami(ctx context.Context) int {
	state := c.gate.Start(ctx, c.client)
	s := c.session.Current()
	return c.render(map[string]interface{}{
		"state":       state.String(),
		"currentUser": s.User,
	})
}

func (c *console) sidebar(ctx context.Context, args []string) int {
	collapsed, err := c.session.SidebarCollapsed(ctx)
	if err != nil {
		return c.fail(err)
	}
	if len(args) > 0 {
		switch args[0] {
		case "collapse":
			collapsed = true
		case "expand":
			collapsed = false
		case "toggle":
			collapsed = !collapsed
		default:
			fmt.Fprintf(c.stderr, "sidebar: unknown action %q\n", args[0])
			return exitUsage
		}
		if err := c.session.SetSidebarCollapsed(ctx, collapsed); err != nil {
			return c.fail(err)
		}
	}
	return c.render(map[string]bool{"collapsed": collapsed})
}

// ==========================
// Loan applications
// ==========================

func (c *console) appsCommand(ctx context.Context, args []string) int {
	if len(args) == 0 {
		usage(c.stderr)
		return exitUsage
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		fs := newFlagSet(c, "apps list")
		status := fs.String("status", "", "pending, approved or rejected")
		page := fs.Int("page", 1, "1-based page number")
		size := fs.Int("size", 0, "page size (backend default when 0)")
		if err := fs.Parse(rest); err != nil {
			return exitUsage
		}
		if *page < 1 {
			return c.fail(errors.NewValidationError(map[string]string{"page": "Page must be at least 1"}))
		}
		p, err := c.apps.List(ctx, applications.ListParams{Status: *status, Page: *page - 1, Size: *size})
		if err != nil {
			return c.fail(err)
		}
		return c.render(map[string]interface{}{
			"content":       p.Content,
			"page":          p.DisplayNumber(),
			"totalPages":    p.TotalPages,
			"totalElements": p.TotalElements,
			"hasNext":       p.HasNext(),
			"hasPrev":       p.HasPrev(),
		})

	case "get", "decision":
		fs := newFlagSet(c, "apps "+sub)
		id := fs.Int64("id", 0, "application id")
		if err := fs.Parse(rest); err != nil {
			return exitUsage
		}
		var app *models.LoanApplication
		var err error
		if sub == "get" {
			app, err = c.apps.Get(ctx, *id)
		} else {
			app, err = c.apps.DecisionCheck(ctx, *id)
		}
		if err != nil {
			return c.fail(err)
		}
		return c.render(app)

	case "create", "update":
		return c.saveApplication(ctx, sub, rest)

	case "patch":
		fs := newFlagSet(c, "apps patch")
		id := fs.Int64("id", 0, "application id")
		set := keyValues{}
		fs.Var(set, "set", "field=value, repeatable")
		if err := fs.Parse(rest); err != nil {
			return exitUsage
		}
		fields, err := set.patchFields()
		if err != nil {
			return c.fail(err)
		}
		app, err := c.apps.Patch(ctx, *id, fields)
		if err != nil {
			return c.fail(err)
		}
		return c.render(app)

	case "address-check":
		fs := newFlagSet(c, "apps address-check")
		address := fs.String("address", "", "free-form address")
		if err := fs.Parse(rest); err != nil {
			return exitUsage
		}
		addr, err := c.apps.AddressCheck(ctx, *address)
		return c.renderAddress(addr, err)

	default:
		fmt.Fprintf(c.stderr, "apps: unknown subcommand %q\n", sub)
		return exitUsage
	}
}

func (c *console) saveApplication(ctx context.Context, sub string, args []string) int {
	fs := newFlagSet(c, "apps "+sub)
	id := fs.Int64("id", 0, "application id (update only)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	dob := fs.String("dob", "", "date of birth, YYYY-MM-DD")
	ssn := fs.String("ssn", "", "social security number")
	email := fs.String("email", "", "email")
	phone := fs.String("phone", "", "phone")
	income := fs.String("income", "", "annual income")
	incomeType := fs.String("income-type", "", strings.Join(models.IncomeTypes, ", "))
	amount := fs.String("amount", "", "requested loan amount")
	addressID := fs.Int64("address-id", 0, "id of an eligible address")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	var in models.ApplicationInput
	if sub == "update" {
		existing, err := c.apps.Get(ctx, *id)
		if err != nil {
			return c.fail(err)
		}
		in = models.InputFromApplication(*existing)
		if in.SSN == "" {
			in.SSN = maskedSSN
		}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	overlay := func(name string, dst *string, v string) {
		if set[name] {
			*dst = v
		}
	}
	overlay("first", &in.FirstName, *first)
	overlay("last", &in.LastName, *last)
	overlay("dob", &in.DateOfBirth, *dob)
	overlay("ssn", &in.SSN, *ssn)
	overlay("email", &in.Email, *email)
	overlay("phone", &in.Phone, *phone)
	overlay("income-type", &in.IncomeType, *incomeType)
	if set["address-id"] {
		in.AddressID = *addressID
	}

	moneyErrs := map[string]string{}
	if set["income"] {
		v, err := models.ParseMoney(*income)
		if err != nil {
			moneyErrs["income"] = "Income is invalid"
		}
		in.Income = v
	}
	if set["amount"] {
		v, err := models.ParseMoney(*amount)
		if err != nil {
			moneyErrs["requestedLoanAmount"] = "Requested loan amount is invalid"
		}
		in.RequestedLoanAmount = v
	}
	if len(moneyErrs) > 0 {
		return c.fail(errors.NewValidationError(moneyErrs))
	}

	var app *models.LoanApplication
	var err error
	if sub == "create" {
		app, err = c.apps.Create(ctx, in)
	} else {
		app, err = c.apps.Update(ctx, *id, in)
	}
	if err != nil {
		return c.fail(err)
	}
	return c.render(app)
}

// keyValues collects repeated -set field=value flags.
type keyValues map[string]string

func (kv keyValues) String() string {
	parts := make([]string, 0, len(kv))
	for k, v := range kv {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (kv keyValues) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected field=value, got %q", s)
	}
	kv[strings.TrimSpace(k)] = v
	return nil
}

// patchFields converts money fields to numbers and address-id to a reference.
func (kv keyValues) patchFields() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(kv))
	for k, v := range kv {
		switch k {
		case "income", "requestedLoanAmount":
			d, err := models.ParseMoney(v)
			if err != nil || d == nil {
				return nil, errors.NewValidationError(map[string]string{k: "must be a number"})
			}
			out[k] = d
		case "addressId":
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return nil, errors.NewValidationError(map[string]string{k: "must be a positive id"})
			}
			out["address"] = map[string]int64{"id": id}
		default:
			out[k] = v
		}
	}
	return out, nil
}

// ==========================
// Locations
// ==========================

func (c *console) addressCheck(ctx context.Context, args []string) int {
	fs := newFlagSet(c, "address-check")
	address := fs.String("address", "", "free-form address")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	addr, err := c.locations.CheckAddress(ctx, *address)
	return c.renderAddress(addr, err)
}

// renderAddress shows an ineligible address as an informational banner, not
// a failure of the tool.
func (c *console) renderAddress(addr *models.Address, err error) int {
	if err != nil {
		code := c.fail(err)
		if errors.KindOf(err) == errors.ErrCodeNotEligible {
			return exitOK
		}
		return code
	}
	return c.render(map[string]interface{}{
		"id":          addr.ID,
		"fullAddress": addr.FullAddress(),
		"address":     addr,
	})
}

// ==========================
// Users
// ==========================

func (c *console) usersCommand(ctx context.Context, args []string) int {
	if len(args) == 0 {
		usage(c.stderr)
		return exitUsage
	}
	sub, rest := args[0], args[1:]
	fs := newFlagSet(c, "users "+sub)
	id := fs.Int64("id", 0, "user id")
	email := fs.String("email", "", "email")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	role := fs.String("role", "", strings.Join(models.Roles, " or "))
	contact := fs.String("contact", "", "contact number")
	password := fs.String("password", "", "password (default assigned by the backend on create)")
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}

	switch sub {
	case "list":
		list, err := c.users.List(ctx)
		if err != nil {
			return c.fail(err)
		}
		return c.render(list)
	case "get":
		u, err := c.users.Get(ctx, *id)
		if err != nil {
			return c.fail(err)
		}
		return c.render(u)
	case "delete":
		if err := c.users.Delete(ctx, *id); err != nil {
			return c.fail(err)
		}
		return c.render(map[string]interface{}{"deleted": *id})
	case "create", "update":
		in := models.UserInput{Email: *email, FirstName: *first, LastName: *last, Role: *role, Contact: *contact, Password: *password}
		var u *models.User
		var err error
		if sub == "create" {
			u, err = c.users.Create(ctx, in)
		} else {
			existing, getErr := c.users.Get(ctx, *id)
			if getErr != nil {
				return c.fail(getErr)
			}
			u, err = c.users.Update(ctx, *id, mergeUser(*existing, in))
		}
		if err != nil {
			return c.fail(err)
		}
		return c.render(u)
	default:
		fmt.Fprintf(c.stderr, "users: unknown subcommand %q\n", sub)
		return exitUsage
	}
}

// mergeUser keeps the stored value for every field left empty.
func mergeUser(existing models.User, in models.UserInput) models.UserInput {
	pick := func(v, fallback string) string {
		if v != "" {
			return v
		}
		return fallback
	}
	return models.UserInput{
		Email:     pick(in.Email, existing.Email),
		FirstName: pick(in.FirstName, existing.FirstName),
		LastName:  pick(in.LastName, existing.LastName),
		Role:      pick(in.Role, existing.Role),
		Contact:   pick(in.Contact, existing.Contact),
		Password:  in.Password,
	}
}

// ==========================
// Dashboard
// ==========================

func (c *console) dashboardCommand(ctx context.Context, args []string) int {
	fs := newFlagSet(c, "dashboard")
	watch := fs.Duration("watch", 0, "refresh interval; 0 fetches once")
	count := fs.Int("count", 0, "stop after N refreshes when watching (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *watch <= 0 {
		d, err := c.dashboard.Get(ctx)
		if err != nil {
			return c.fail(err)
		}
		return c.render(d)
	}
	return c.watchDashboard(ctx, *watch, *count)
}

// watchDashboard refetches on every tick without waiting for the previous
// fetch. A slow response that arrives after a newer request was issued is
// dropped.
func (c *console) watchDashboard(ctx context.Context, interval time.Duration, count int) int {
	var (
		gen  view.Generation
		wg   sync.WaitGroup
		mu   sync.Mutex
		code = exitOK
	)
	fetch := func() {
		tag := gen.Next()
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := c.dashboard.Get(ctx)
			applied := gen.Apply(tag, func() {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					code = c.fail(err)
					return
				}
				code = c.render(d)
			})
			if !applied {
				c.log.Debug("dropped stale dashboard response", map[string]interface{}{"generation": tag})
			}
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	fetch()
	for n := 1; count == 0 || n < count; n++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return code
		case <-ticker.C:
			fetch()
		}
	}
	wg.Wait()
	return code
}
