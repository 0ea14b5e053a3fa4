package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"loan-console/internal/common/errors"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Credential handling
// ==========================

func TestClient_BearerTokenOnlyWhenSet(t *testing.T) {
	var lastAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth.Store(r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))
		w.Header().Set("Content-Type", ContentTypeJSON)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithLogger(logger.NewTestLogger(t)))
	ctx := context.Background()

	require.NoError(t, client.Do(ctx, Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, nil))
	assert.Equal(t, "", lastAuth.Load())

	client.SetBearerToken("tok-123")
	require.NoError(t, client.Do(ctx, Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, nil))
	assert.Equal(t, "Bearer tok-123", lastAuth.Load())

	require.NoError(t, client.Do(ctx, Request{Method: http.MethodPost, Path: "/users/sign_in", Anonymous: true}, nil))
	assert.Equal(t, "", lastAuth.Load())

	client.ClearBearerToken()
	require.NoError(t, client.Do(ctx, Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, nil))
	assert.Equal(t, "", lastAuth.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_CustomHTTPClient(t *testing.T) {
	var seen []string
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r.Method+" "+r.URL.String())
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{ContentTypeJSON}},
			Body:       io.NopCloser(strings.NewReader(`{"total":3}`)),
			Request:    r,
		}, nil
	})}

	client := NewClient("http://backend.invalid", WithHTTPClient(hc))
	var out struct {
		Total int `json:"total"`
	}
	require.NoError(t, client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, &out))
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, []string{"GET http://backend.invalid/api/v1/dashboard"}, seen)
}

// ==========================
// Encoding / decoding
// ==========================

func TestClient_JSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Content-Type"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		var in map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in["id"] = 9
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/v1/users",
		Query:  url.Values{"page": {"2"}},
		Body:   map[string]string{"name": "Jane"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, 9, out.ID)
	assert.Equal(t, "Jane", out.Name)
}

func TestClient_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "1 Main St", r.FormValue("address"))
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.Do(context.Background(), Request{
		Method:      http.MethodPost,
		Path:        "/api/v1/application_services/address_check",
		Body:        Form{"address": "1 Main St"},
		ContentType: ContentTypeMultipart,
	}, nil)
	assert.NoError(t, err)

	err = client.Do(context.Background(), Request{
		Method:      http.MethodPost,
		Path:        "/x",
		Body:        map[string]string{"address": "1 Main St"},
		ContentType: ContentTypeMultipart,
	}, nil)
	assert.Error(t, err)
}

func TestClient_MalformedBodyIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]interface{}
	err := NewClient(srv.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, &out)

	assert.ErrorIs(t, err, errors.ErrService)
}

// ==========================
// Error mapping
// ==========================

func TestErrorFromResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    errors.ErrorCode
		message string
		fields  map[string]string
	}{
		{"401 message", 401, `{"message":"invalid email or password"}`, errors.ErrCodeAuth, "invalid email or password", nil},
		{"404 message", 404, `{"message":"Address not eligible."}`, errors.ErrCodeNotFound, "Address not eligible.", nil},
		{"422 string errors", 422, `{"errors":"Email can't be blank"}`, errors.ErrCodeValidation, "Email can't be blank", nil},
		{"422 list errors", 422, `{"errors":["a","b"]}`, errors.ErrCodeValidation, "a; b", nil},
		{"400 field errors", 400, `{"errors":{"email":["is invalid"],"ssn":"is required"}}`, errors.ErrCodeValidation, "is invalid; is required",
			map[string]string{"email": "is invalid", "ssn": "is required"}},
		{"500 error key", 500, `{"error":"boom"}`, errors.ErrCodeService, "boom", nil},
		{"502 html", 502, `<html>bad gateway</html>`, errors.ErrCodeService, "Service error", nil},
		{"404 empty", 404, ``, errors.ErrCodeNotFound, "Not found", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ErrorFromResponse(tt.status, []byte(tt.body))
			assert.Equal(t, tt.kind, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.status, err.StatusCode)
			if tt.fields != nil {
				assert.Equal(t, tt.fields, err.Fields)
			}
		})
	}
}

func TestClient_UnauthorizedBroadcastOncePerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	client.SetBearerToken("stale")

	var calls int32
	unsubscribe := client.OnUnauthorized(func(err error) {
		atomic.AddInt32(&calls, 1)
		assert.ErrorIs(t, err, errors.ErrAuth)
	})

	err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/users"}, nil)
	assert.ErrorIs(t, err, errors.ErrAuth)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// anonymous 401 (bad sign-in) is not broadcast
	_ = client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/users/sign_in", Anonymous: true}, nil)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	unsubscribe()
	_ = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/users"}, nil)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	err := NewClient(base).Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/dashboard"}, nil)
	assert.ErrorIs(t, err, errors.ErrNetwork)
}

func TestClient_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewClient(srv.URL).Do(ctx, Request{Method: http.MethodGet, Path: "/slow"}, nil)
	assert.ErrorIs(t, err, errors.ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ==========================
// Instrumentation
// ==========================

func TestClient_RateLimitAndMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	counter := metrics.TransportRequests.WithLabelValues(http.MethodGet, "/api/v1/users/:id", "200")
	before := testutil.ToFloat64(counter)

	client := NewClient(srv.URL, WithRateLimit(1000, 1))
	for i := 0; i < 3; i++ {
		require.NoError(t, client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/users/42"}, nil))
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/v1/users/:id", RouteLabel("/api/v1/users/7"))
	assert.Equal(t, "/api/v1/application_services/:id/decision_check", RouteLabel("/api/v1/application_services/12/decision_check"))
	assert.Equal(t, "/api/v1/application_services", RouteLabel("/api/v1/application_services?page=2"))
}
