package middleware

import (
	"github.com/gorilla/mux"

	"github.com/R3E-Network/person_service/internal/app/metrics"
)

// MetricsMiddleware records HTTP metrics for each request, labelled with the
// matched route template.
func MetricsMiddleware() mux.MiddlewareFunc {
	return metrics.InstrumentHandler
}
