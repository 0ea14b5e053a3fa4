// Package locations checks whether an address is eligible for financing.
package locations

import (
	"context"
	"net/http"
	"strings"
	"time"

	"loan-console/internal/api"
	"loan-console/internal/common/errors"
	httpclient "loan-console/internal/common/http"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/observability"
	"loan-console/internal/models"
)

const module = "locations"

type ServiceDependencies struct {
	Transport     api.Transport
	Logger        logger.Logger
	Observability *observability.Observability
	APIPrefix     string
}

type checkRequest struct {
	Address string `json:"address"`
}

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

// CheckAddress submits a free-form address. An eligible address comes back
// saved, with the id a new application must reference. An ineligible one
// fails with NOT_ELIGIBLE; any other failure is a SERVICE_ERROR.
func (s *Service) CheckAddress(ctx context.Context, address string) (addr *models.Address, err error) {
	defer s.obs.Track(ctx, module, "check_address", time.Now(), &err)

	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.NewValidationError(map[string]string{"address": "Address is required"})
	}

	addr = &models.Address{}
	err = s.transport.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   api.Path(s.prefix, "location_services"),
		Body:   checkRequest{Address: address},
	}, addr)
	if err != nil {
		err = api.ClassifyEligibility(err)
		s.logger.Debug("address check failed", map[string]interface{}{"kind": string(errors.KindOf(err))})
		return nil, err
	}
	if addr.ID == 0 {
		return nil, errors.NewServiceError(0, "Location service returned no address", "")
	}
	s.logger.Info("address eligible", map[string]interface{}{"addressId": addr.ID})
	return addr, nil
}
