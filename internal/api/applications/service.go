package applications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"loan-console/internal/api"
	"loan-console/internal/common/errors"
	httpclient "loan-console/internal/common/http"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/observability"
	"loan-console/internal/models"

	"github.com/tidwall/gjson"
)

const module = "applications"

type Service struct {
	transport api.Transport
	logger    logger.Logger
	obs       *observability.Observability
	prefix    string
}

func NewService(deps ServiceDependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		transport: deps.Transport,
		logger:    log.WithFields(map[string]interface{}{"module": module}),
		obs:       deps.Observability,
		prefix:    deps.APIPrefix,
	}
}

func (s *Service) path(parts ...interface{}) string {
	return api.Path(s.prefix, append([]interface{}{"application_services"}, parts...)...)
}

// List fetches one page of applications, optionally filtered by status.
// A bare JSON array from the backend is treated as a single complete page.
func (s *Service) List(ctx context.Context, params ListParams) (page models.Page[models.LoanApplication], err error) {
	defer s.obs.Track(ctx, module, "list", time.Now(), &err)

	fields := map[string]string{}
	if params.Page < 0 {
		fields["page"] = "Page must not be negative"
	}
	if params.Size < 0 {
		fields["size"] = "Size must be positive"
	}
	if params.Status != "" && !validStatus(params.Status) {
		fields["status"] = "Status must be one of pending, approved, rejected"
	}
	if len(fields) > 0 {
		return page, errors.NewValidationError(fields)
	}
	size := params.Size
	if size == 0 {
		size = models.DefaultPageSize
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("size", strconv.Itoa(size))
	if params.Status != "" {
		query.Set("status", params.Status)
	}

	var raw json.RawMessage
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: s.path(), Query: query}, &raw); err != nil {
		return page, err
	}
	return normalizeList(raw)
}

func normalizeList(raw json.RawMessage) (models.Page[models.LoanApplication], error) {
	parsed := gjson.ParseBytes(raw)
	switch {
	case parsed.IsArray():
		var items []models.LoanApplication
		if err := json.Unmarshal(raw, &items); err != nil {
			return models.Page[models.LoanApplication]{}, errors.NewMalformedResponseError(err)
		}
		return models.SinglePage(items), nil
	case parsed.IsObject() && parsed.Get("content").IsArray():
		var page models.Page[models.LoanApplication]
		if err := json.Unmarshal(raw, &page); err != nil {
			return models.Page[models.LoanApplication]{}, errors.NewMalformedResponseError(err)
		}
		if page.Content == nil {
			page.Content = []models.LoanApplication{}
		}
		if page.TotalPages == 0 && len(page.Content) > 0 {
			page.TotalPages = 1
		}
		return page, nil
	default:
		return models.Page[models.LoanApplication]{}, errors.NewServiceError(0, "Unexpected list response from server", truncate(string(raw)))
	}
}

// Get fetches one application.
func (s *Service) Get(ctx context.Context, id int64) (app *models.LoanApplication, err error) {
	defer s.obs.Track(ctx, module, "get", time.Now(), &err)

	if err = api.RequireID(id); err != nil {
		return nil, err
	}
	app = &models.LoanApplication{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: s.path(id)}, app); err != nil {
		return nil, api.NotFoundFromRejection(err)
	}
	return app, nil
}

// Create validates the form locally and submits it. The backend assigns
// status "pending".
func (s *Service) Create(ctx context.Context, input models.ApplicationInput) (app *models.LoanApplication, err error) {
	defer s.obs.Track(ctx, module, "create", time.Now(), &err)

	if err = ValidateInput(input, true); err != nil {
		return nil, err
	}
	app = &models.LoanApplication{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: s.path(), Body: input}, app); err != nil {
		return nil, err
	}
	s.logger.Info("application created", map[string]interface{}{"id": app.ID, "addressId": input.AddressID})
	return app, nil
}

// Update replaces the writable fields of an application. Status is never sent.
func (s *Service) Update(ctx context.Context, id int64, input models.ApplicationInput) (app *models.LoanApplication, err error) {
	defer s.obs.Track(ctx, module, "update", time.Now(), &err)

	if err = api.RequireID(id); err != nil {
		return nil, err
	}
	if err = ValidateInput(input, false); err != nil {
		return nil, err
	}
	app = &models.LoanApplication{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodPut, Path: s.path(id), Body: input}, app); err != nil {
		return nil, api.NotFoundFromRejection(err)
	}
	s.logger.Info("application updated", map[string]interface{}{"id": id})
	return app, nil
}

// Patch sends a partial update. A "status" key is dropped: status changes
// only through the decision check.
func (s *Service) Patch(ctx context.Context, id int64, fields map[string]interface{}) (app *models.LoanApplication, err error) {
	defer s.obs.Track(ctx, module, "patch", time.Now(), &err)

	if err = api.RequireID(id); err != nil {
		return nil, err
	}
	body := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if strings.EqualFold(k, "status") {
			continue
		}
		body[k] = v
	}
	if len(body) == 0 {
		return nil, errors.NewValidationError(map[string]string{"fields": "No fields to update"})
	}
	if err = ValidatePatch(body); err != nil {
		return nil, err
	}

	app = &models.LoanApplication{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodPatch, Path: s.path(id), Body: body}, app); err != nil {
		return nil, api.NotFoundFromRejection(err)
	}
	return app, nil
}

// AddressCheck runs the legacy multipart eligibility check. It fails with
// NOT_ELIGIBLE or SERVICE_ERROR exactly like locations.CheckAddress.
func (s *Service) AddressCheck(ctx context.Context, address string) (addr *models.Address, err error) {
	defer s.obs.Track(ctx, module, "address_check", time.Now(), &err)

	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.NewValidationError(map[string]string{"address": "Address is required"})
	}
	addr = &models.Address{}
	err = s.transport.Do(ctx, httpclient.Request{
		Method:      http.MethodPost,
		Path:        s.path("address_check"),
		Body:        httpclient.Form{"address": address},
		ContentType: httpclient.ContentTypeMultipart,
	}, addr)
	if err != nil {
		err = api.ClassifyEligibility(err)
		return nil, err
	}
	return addr, nil
}

func validStatus(status string) bool {
	switch models.ApplicationStatus(status) {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		return true
	}
	return false
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
