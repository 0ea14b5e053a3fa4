// Package api holds what the domain API modules share: the transport
// contract, path building and the eligibility error split.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"loan-console/internal/common/errors"
	httpclient "loan-console/internal/common/http"
)

// DefaultPrefix is where the backend mounts its JSON API.
const DefaultPrefix = "/api/v1"

// Transport is the only thing an API module needs from the HTTP client.
type Transport interface {
	Do(ctx context.Context, req httpclient.Request, out interface{}) error
}

// Path joins the API prefix and path segments: Path("/api/v1", "users", 7)
// is "/api/v1/users/7".
func Path(prefix string, parts ...interface{}) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	var sb strings.Builder
	sb.WriteString("/" + strings.Trim(prefix, "/"))
	for _, p := range parts {
		sb.WriteByte('/')
		switch v := p.(type) {
		case string:
			sb.WriteString(strings.Trim(v, "/"))
		case int:
			sb.WriteString(strconv.Itoa(v))
		case int64:
			sb.WriteString(strconv.FormatInt(v, 10))
		}
	}
	return sb.String()
}

// RequireID rejects a missing record id before any request is made.
func RequireID(id int64) error {
	if id <= 0 {
		return errors.NewValidationError(map[string]string{"id": "ID is required"})
	}
	return nil
}

// ClassifyEligibility splits an address-check failure: 404 means the address
// is not eligible (an expected business outcome), every other response is a
// service error. Network errors and 401s pass through untouched; a 401 is
// handled by the forced sign-out.
func ClassifyEligibility(err error) error {
	if err == nil {
		return nil
	}
	std := errors.Normalize(err)
	switch std.Code {
	case errors.ErrCodeNetwork, errors.ErrCodeAuth, errors.ErrCodeNotEligible:
		return err
	case errors.ErrCodeNotFound:
		return errors.WithCode(std, errors.ErrCodeNotEligible)
	default:
		if std.StatusCode == http.StatusNotFound {
			return errors.WithCode(std, errors.ErrCodeNotEligible)
		}
		msg := std.Message
		if msg == "" || std.Code == errors.ErrCodeInternal {
			msg = "Location service error"
		}
		return errors.NewServiceError(std.StatusCode, msg, std.Details)
	}
}

// NotFoundFromRejection turns a 4xx whose message says "not found" into a
// NotFound error; some backend endpoints answer a missing record with 400
// or 422 instead of 404.
func NotFoundFromRejection(err error) error {
	if err == nil {
		return nil
	}
	std := errors.Normalize(err)
	if std.Code == errors.ErrCodeValidation && std.StatusCode >= 400 &&
		strings.Contains(strings.ToLower(std.Message), "not found") {
		return errors.WithCode(std, errors.ErrCodeNotFound)
	}
	return err
}
