package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"loan-console/internal/stub"
)

type harness struct {
	t          *testing.T
	configPath string
	statePath  string
}

func newHarness(t *testing.T, opts ...stub.Option) *harness {
	ts := httptest.NewServer(stub.New(opts...).Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	state := filepath.Join(dir, "state.json")
	cfg := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
api:
  base_url: %s
session:
  store: file
  path: %s
logging:
  level: error
`, ts.URL, state)
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return &harness{t: t, configPath: cfg, statePath: state}
}

func (h *harness) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", h.configPath}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) login() {
	code, _, stderr := h.run("login", "-email", stub.DefaultEmail, "-password", stub.DefaultPassword)
	require.Equal(h.t, exitOK, code, stderr)
}

func createArgs() []string {
	return []string{"apps", "create",
		"-first", "Jane", "-last", "Doe", "-dob", "1990-04-01", "-ssn", "123-45-6789",
		"-email", "jane@example.com", "-phone", "555-0100", "-income", "85000",
		"-income-type", "Salary", "-amount", "250000", "-address-id", strconv.Itoa(stub.DefaultAddressID),
	}
}

func TestProtectedCommandNeedsLogin(t *testing.T) {
	h := newHarness(t)

	code, stdout, stderr := h.run("dashboard")
	assert.Equal(t, exitSignedIn, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Not signed in")
	assert.Contains(t, stderr, "/login")
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)
	h.login()

	raw, err := os.ReadFile(h.statePath)
	require.NoError(t, err)
	assert.NotEmpty(t, gjson.GetBytes(raw, "access_token").String())

	code, stdout, _ := h.run("whoami")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "authenticated", gjson.Get(stdout, "state").String())
	assert.Equal(t, stub.DefaultEmail, gjson.Get(stdout, "currentUser.email").String())
}

func TestBadLogin(t *testing.T) {
	h := newHarness(t)

	code, _, stderr := h.run("login", "-email", stub.DefaultEmail, "-password", "nope-nope")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "[error] invalid email or password")
}

func TestApplicationLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login()

	code, stdout, stderr := h.run(createArgs()...)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "pending", gjson.Get(stdout, "status").String())
	id := gjson.Get(stdout, "id").String()

	code, stdout, stderr = h.run("apps", "update", "-id", id, "-phone", "555-0199")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "555-0199", gjson.Get(stdout, "phone").String())
	assert.Equal(t, "pending", gjson.Get(stdout, "status").String())

	code, stdout, _ = h.run("apps", "patch", "-id", id, "-set", "status=approved", "-set", "lastName=Roe")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "pending", gjson.Get(stdout, "status").String())
	assert.Equal(t, "Roe", gjson.Get(stdout, "lastName").String())

	code, stdout, stderr = h.run("apps", "decision", "-id", id)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "eligible", gjson.Get(stdout, "lastApplicationDecision.decision").String())
	assert.Equal(t, "approved", gjson.Get(stdout, "status").String())

	code, stdout, _ = h.run("apps", "list", "-status", "approved")
	require.Equal(t, exitOK, code)
	assert.Equal(t, int64(1), gjson.Get(stdout, "page").Int())
	assert.Equal(t, int64(1), gjson.Get(stdout, "totalElements").Int())
}

func TestCreateValidationBanner(t *testing.T) {
	h := newHarness(t)
	h.login()

	code, stdout, stderr := h.run("apps", "create", "-last", "Doe")
	assert.Equal(t, exitError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "[error]")
	assert.Contains(t, stderr, "firstName: First name is required")
	assert.Contains(t, stderr, "ssn: SSN is required")
}

func TestAddressCheckSeverity(t *testing.T) {
	h := newHarness(t)
	h.login()

	code, stdout, _ := h.run("address-check", "-address", "1 Main St, Alameda, CA 94501")
	require.Equal(t, exitOK, code)
	assert.Equal(t, int64(stub.DefaultAddressID), gjson.Get(stdout, "id").Int())
	assert.Equal(t, "1 Main St, CA, Alameda 94501", gjson.Get(stdout, "fullAddress").String())

	code, _, stderr := h.run("address-check", "-address", "1 Nowhere Rd")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "[info] Address not eligible.")
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.login()

	for i := 0; i < 2; i++ {
		code, stdout, stderr := h.run("logout")
		require.Equal(t, exitOK, code, stderr)
		assert.False(t, gjson.Get(stdout, "authenticated").Bool())
	}

	code, stdout, _ := h.run("whoami")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "unauthenticated", gjson.Get(stdout, "state").String())
}

func TestSidebarPreference(t *testing.T) {
	h := newHarness(t)
	h.login()

	code, stdout, _ := h.run("sidebar", "toggle")
	require.Equal(t, exitOK, code)
	assert.True(t, gjson.Get(stdout, "collapsed").Bool())

	_, stdout, _ = h.run("sidebar")
	assert.True(t, gjson.Get(stdout, "collapsed").Bool())
}

func TestDashboardWatch(t *testing.T) {
	h := newHarness(t)
	h.login()

	code, stdout, stderr := h.run("dashboard", "-watch", "20ms", "-count", "3")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"statistics"`)
}
