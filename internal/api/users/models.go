package users

import (
	"loan-console/internal/api"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/observability"
)

type ServiceDependencies struct {
	Transport     api.Transport
	Logger        logger.Logger
	Observability *observability.Observability
	APIPrefix     string
}

// deleteResponse is the backend acknowledgement for a delete.
type deleteResponse struct {
	Message string `json:"message"`
}
