package locations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"loan-console/internal/common/errors"
	httpclient "loan-console/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAddress_EligibilitySplit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/location_services", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch body["address"] {
		case "1 Main St, Alameda CA":
			_, _ = w.Write([]byte(`{"id":42,"street":"1 Main St","city":"Alameda","state":"CA","county":"Alameda","zip":"94501"}`))
		case "10 Desert Rd":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Address not eligible."}`))
		case "bad gateway":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"Location service error"}`))
		}
	}))
	defer srv.Close()

	svc := NewService(ServiceDependencies{Transport: httpclient.NewClient(srv.URL)})
	ctx := context.Background()

	addr, err := svc.CheckAddress(ctx, " 1 Main St, Alameda CA ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), addr.ID)
	assert.Equal(t, "Alameda", addr.County)

	_, err = svc.CheckAddress(ctx, "10 Desert Rd")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotEligible)
	assert.NotErrorIs(t, err, errors.ErrService)
	assert.Equal(t, errors.SeverityInfo, errors.SeverityOf(err))
	assert.Equal(t, "Address not eligible.", errors.UserMessage(err))

	for _, address := range []string{"bad gateway", "geocoder down"} {
		_, err = svc.CheckAddress(ctx, address)
		assert.ErrorIs(t, err, errors.ErrService, address)
		assert.NotErrorIs(t, err, errors.ErrNotEligible, address)
		assert.Equal(t, errors.SeverityError, errors.SeverityOf(err))
	}
	assert.Equal(t, "Location service error", errors.UserMessage(err))
}

func TestCheckAddress_EmptyAddress(t *testing.T) {
	svc := NewService(ServiceDependencies{Transport: httpclient.NewClient("http://127.0.0.1:1")})

	_, err := svc.CheckAddress(context.Background(), "   ")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCheckAddress_NetworkFailureStaysDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	svc := NewService(ServiceDependencies{Transport: httpclient.NewClient(url)})

	_, err := svc.CheckAddress(context.Background(), "1 Main St")
	assert.ErrorIs(t, err, errors.ErrNetwork)
}
