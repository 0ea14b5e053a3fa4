// Package dashboard fetches the summary shown on the console home view.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"loan-console/internal/api"
	httpclient "loan-console/internal/common/http"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/observability"
	"loan-console/internal/models"
)

const module = "dashboard"

type ServiceDependencies struct {
	Transport     api.Transport
	Logger        logger.Logger
	Observability *observability.Observability
	APIPrefix     string
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

// Get fetches the dashboard. Every call goes to the backend.
func (s *Service) Get(ctx context.Context) (dash *models.Dashboard, err error) {
	defer s.obs.Track(ctx, module, "get", time.Now(), &err)

	dash = &models.Dashboard{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: api.Path(s.prefix, "dashboard")}, dash); err != nil {
		return nil, err
	}
	if dash.RecentApplications == nil {
		dash.RecentApplications = []models.LoanApplication{}
	}
	s.logger.Debug("dashboard loaded", map[string]interface{}{
		"recent": len(dash.RecentApplications),
		"total":  dash.Statistics.Total,
	})
	return dash, nil
}
