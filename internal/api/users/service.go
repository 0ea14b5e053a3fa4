package users

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

const module = "users"

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
	return api.Path(s.prefix, append([]interface{}{"users"}, parts...)...)
}

// List returns every user account. The backend does not paginate users.
func (s *Service) List(ctx context.Context) (list []models.User, err error) {
	defer s.obs.Track(ctx, module, "list", time.Now(), &err)

	list = []models.User{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: s.path()}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (user *models.User, err error) {
	defer s.obs.Track(ctx, module, "get", time.Now(), &err)

	if err = api.RequireID(id); err != nil {
		return nil, err
	}
	user = &models.User{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: s.path(id)}, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Create adds an account. Without a password the backend assigns its default.
func (s *Service) Create(ctx context.Context, input models.UserInput) (user *models.User, err error) {
	defer s.obs.Track(ctx, module, "create", time.Now(), &err)

	if err = ValidateInput(input); err != nil {
		return nil, err
	}
	user = &models.User{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: s.path(), Body: input}, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", map[string]interface{}{"id": user.ID, "role": user.Role})
	return user, nil
}

// Update replaces the account fields. An empty password keeps the current one.
func (s *Service) Update(ctx context.Context, id int64, input models.UserInput) (user *models.User, err error) {
	defer s.obs.Track(ctx, module, "update", time.Now(), &err)

	if err = api.RequireID(id); err != nil {
		return nil, err
	}
	if err = ValidateInput(input); err != nil {
		return nil, err
	}
	user = &models.User{}
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodPut, Path: s.path(id), Body: input}, user); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", map[string]interface{}{"id": id})
	return user, nil
}

// Delete removes the account immediately; there is no undo.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer s.obs.Track(ctx, module, "delete", time.Now(), &err)

	if err = api.RequireID(id); err != nil {
		return err
	}
	var ack deleteResponse
	if err = s.transport.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: s.path(id)}, &ack); err != nil {
		return err
	}
	s.logger.Info("user deleted", map[string]interface{}{"id": id, "message": ack.Message})
	return nil
}
