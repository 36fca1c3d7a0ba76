package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/R3E-Network/person_service/pkg/logger"
)

// RecoveryMiddleware turns handler panics into 500 responses.
type RecoveryMiddleware struct {
	log *logger.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware(log *logger.Logger) *RecoveryMiddleware {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return &RecoveryMiddleware{log: log}
}

// Handler returns the recovery middleware handler
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			m.log.WithFields(map[string]interface{}{
				"panic":    rec,
				"path":     r.URL.Path,
				"trace_id": TraceID(r.Context()),
				"stack":    string(debug.Stack()),
			}).Error("handler panicked")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal server error"}` + "\n"))
		}()
		next.ServeHTTP(w, r)
	})
}
