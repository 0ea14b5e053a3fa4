// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"loan-console/internal/common/errors"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"

	HeaderRequestID = "X-Request-ID"
)

// Request describes one backend call. Path is relative to the base URL.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        interface{}
	ContentType string
	// Anonymous requests carry no bearer token and a 401 on them is not
	// broadcast (sign-in with bad credentials must not force a sign-out).
	Anonymous bool
}

// Form is a multipart body of scalar fields.
type Form map[string]string

// Option configures a Client.
type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRateLimit paces outgoing requests; rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Client is the single HTTP transport shared by every API module. It holds
// the default bearer credential installed by the session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger

	mu    sync.RWMutex
	token string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(error)
}

// NewClient creates a transport for baseURL. A zero timeout means the
// request lives as long as its context.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        logger.NewNoOpLogger(),
		subs:       make(map[int]func(error)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetBearerToken installs the default credential for subsequent requests.
func (c *Client) SetBearerToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) ClearBearerToken() {
	c.SetBearerToken("")
}

func (c *Client) BearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized registers fn to run once for every authenticated request
// answered with 401. The returned func unregisters it.
func (c *Client) OnUnauthorized(fn func(error)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Client) broadcastUnauthorized(err error) {
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(error), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

// Do sends req and decodes a 2xx JSON body into out (which may be nil).
// Failures are *errors.StandardError values: NETWORK_ERROR when no response
// arrived, otherwise a kind derived from the status code.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.NewNetworkError(err)
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	requestID := httpReq.Header.Get(HeaderRequestID)
	route := RouteLabel(req.Path)
	log := c.log.WithFields(map[string]interface{}{
		"method":     req.Method,
		"route":      route,
		"request_id": requestID,
	})

	metrics.TransportRequestsInFlight.Inc()
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	metrics.TransportRequestsInFlight.Dec()
	metrics.TransportRequestDuration.WithLabelValues(req.Method, route).Observe(elapsed.Seconds())

	if err != nil {
		metrics.TransportRequests.WithLabelValues(req.Method, route, "network_error").Inc()
		log.Warn("request failed", map[string]interface{}{"error": err.Error()})
		return errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TransportRequests.WithLabelValues(req.Method, route, "network_error").Inc()
		return errors.NewNetworkError(err)
	}

	metrics.TransportRequests.WithLabelValues(req.Method, route, strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug("request completed", map[string]interface{}{
		"status":      resp.StatusCode,
		"duration_ms": elapsed.Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		stdErr := ErrorFromResponse(resp.StatusCode, body)
		if resp.StatusCode == http.StatusUnauthorized && !req.Anonymous {
			c.broadcastUnauthorized(stdErr)
		}
		return stdErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewMalformedResponseError(err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := req.ContentType
	if req.Body != nil {
		switch contentType {
		case ContentTypeMultipart:
			form, ok := req.Body.(Form)
			if !ok {
				return nil, fmt.Errorf("multipart body must be http.Form, got %T", req.Body)
			}
			buf, ct, err := encodeMultipart(form)
			if err != nil {
				return nil, fmt.Errorf("encode multipart body: %w", err)
			}
			body, contentType = buf, ct
		default:
			payload, err := json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			body, contentType = bytes.NewReader(payload), ContentTypeJSON
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", ContentTypeJSON)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())

	if !req.Anonymous {
		if token := c.BearerToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func encodeMultipart(form Form) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, form[k]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// ErrorFromResponse maps a non-2xx response to a typed error. The message
// comes from "message", "error" or a string/list "errors" field; an object
// "errors" field becomes per-field detail.
func ErrorFromResponse(status int, body []byte) *errors.StandardError {
	message, fields, details := parseErrorBody(body)

	switch {
	case status == http.StatusUnauthorized:
		return errors.NewAuthError(message)
	case status == http.StatusNotFound:
		return errors.NewNotFoundError(message)
	case status >= 400 && status < 500:
		return errors.NewRejectedError(status, message, fields)
	default:
		return errors.NewServiceError(status, message, details)
	}
}

func parseErrorBody(body []byte) (message string, fields map[string]string, details string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil, ""
	}
	if !gjson.ValidBytes(trimmed) {
		return "", nil, truncate(string(trimmed), 200)
	}

	parsed := gjson.ParseBytes(trimmed)
	if parsed.Type == gjson.String {
		return parsed.String(), nil, ""
	}

	message = parsed.Get("message").String()
	if message == "" {
		message = parsed.Get("error").String()
	}

	errs := parsed.Get("errors")
	switch {
	case errs.IsObject():
		fields = map[string]string{}
		errs.ForEach(func(key, value gjson.Result) bool {
			if value.IsArray() {
				fields[key.String()] = value.Get("0").String()
			} else {
				fields[key.String()] = value.String()
			}
			return true
		})
	case errs.IsArray():
		msgs := []string{}
		for _, e := range errs.Array() {
			msgs = append(msgs, e.String())
		}
		if message == "" {
			message = strings.Join(msgs, "; ")
		}
	case errs.Type == gjson.String && message == "":
		message = errs.String()
	}
	return message, fields, ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// RouteLabel collapses numeric path segments so metrics stay low-cardinality:
// /api/v1/users/7 -> /api/v1/users/:id.
func RouteLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for numericSegment.MatchString(path) {
		path = numericSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}
