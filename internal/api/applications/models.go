package applications

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

// ListParams selects one page of applications. Page is 0-based; Size 0
// means the backend default.
type ListParams struct {
	Status string
	Page   int
	Size   int
}
