package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	app "github.com/R3E-Network/person_service/internal/app"
	"github.com/R3E-Network/person_service/internal/app/dto"
	"github.com/R3E-Network/person_service/internal/app/metrics"
	"github.com/R3E-Network/person_service/internal/app/services/persons"
	"github.com/R3E-Network/person_service/internal/middleware"
	"github.com/R3E-Network/person_service/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options controls the middleware wrapped around the routes.
type Options struct {
	Log         *logger.Logger
	CORSOrigins []string
	RateLimiter *middleware.RateLimiter
}

// handler bundles HTTP endpoints for the person service.
type handler struct {
	persons *persons.Service
	log     *logger.Logger
}

// NewHandler returns the HTTP surface of the application.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{persons: application.Persons, log: log}

	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware(), middleware.NewRecoveryMiddleware(log).Handler)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	// Fixed-segment routes are registered before /person/{id}.
	p := router.PathPrefix("/person").Subrouter()
	p.HandleFunc("", h.add).Methods(http.MethodPost)
	p.HandleFunc("/children", h.findChildren).Methods(http.MethodGet)
	p.HandleFunc("/population/city", h.cityPopulation).Methods(http.MethodGet)
	p.HandleFunc("/city/{city}", h.findByCity).Methods(http.MethodGet)
	p.HandleFunc("/name/{name}", h.findByName).Methods(http.MethodGet)
	p.HandleFunc("/ages/{minAge}/{maxAge}", h.findByAgeRange).Methods(http.MethodGet)
	p.HandleFunc("/salary/{min}/{max}", h.findBySalary).Methods(http.MethodGet)
	p.HandleFunc("/{id}/name/{name}", h.updateName).Methods(http.MethodPut)
	p.HandleFunc("/{id}/address", h.updateAddress).Methods(http.MethodPut)
	p.HandleFunc("/{id}", h.findByID).Methods(http.MethodGet)
	p.HandleFunc("/{id}", h.remove).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Errorf("route not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	var out http.Handler = router
	if opts.RateLimiter != nil {
		out = opts.RateLimiter.Handler(out)
	}
	if len(opts.CORSOrigins) > 0 {
		out = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(out)
	}
	return middleware.NewTracingMiddleware(log).Handler(out)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.persons.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (h *handler) add(w http.ResponseWriter, r *http.Request) {
	var payload dto.Person
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	added, err := h.persons.Add(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, added)
}

func (h *handler) findByID(w http.ResponseWriter, r *http.Request) {
	id, ok := intVar(w, r, "id")
	if !ok {
		return
	}
	out, err := h.persons.FindByID(r.Context(), id)
	h.respond(w, r, out, err)
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := intVar(w, r, "id")
	if !ok {
		return
	}
	out, err := h.persons.Remove(r.Context(), id)
	h.respond(w, r, out, err)
}

func (h *handler) updateName(w http.ResponseWriter, r *http.Request) {
	id, ok := intVar(w, r, "id")
	if !ok {
		return
	}
	out, err := h.persons.UpdateName(r.Context(), id, mux.Vars(r)["name"])
	h.respond(w, r, out, err)
}

func (h *handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := intVar(w, r, "id")
	if !ok {
		return
	}
	var addr dto.Address
	if err := decodeJSON(r.Body, &addr); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("address: %w", err))
		return
	}
	out, err := h.persons.UpdateAddress(r.Context(), id, addr)
	h.respond(w, r, out, err)
}

func (h *handler) findByCity(w http.ResponseWriter, r *http.Request) {
	out, err := h.persons.FindByCity(r.Context(), mux.Vars(r)["city"])
	h.respond(w, r, out, err)
}

func (h *handler) findByName(w http.ResponseWriter, r *http.Request) {
	out, err := h.persons.FindByName(r.Context(), mux.Vars(r)["name"])
	h.respond(w, r, out, err)
}

func (h *handler) findByAgeRange(w http.ResponseWriter, r *http.Request) {
	minAge, ok := intVar(w, r, "minAge")
	if !ok {
		return
	}
	maxAge, ok := intVar(w, r, "maxAge")
	if !ok {
		return
	}
	out, err := h.persons.FindByAgeRange(r.Context(), minAge, maxAge)
	h.respond(w, r, out, err)
}

func (h *handler) findBySalary(w http.ResponseWriter, r *http.Request) {
	min, ok := intVar(w, r, "min")
	if !ok {
		return
	}
	max, ok := intVar(w, r, "max")
	if !ok {
		return
	}
	out, err := h.persons.FindEmployeesBySalary(r.Context(), min, max)
	h.respond(w, r, out, err)
}

func (h *handler) findChildren(w http.ResponseWriter, r *http.Request) {
	out, err := h.persons.FindChildren(r.Context())
	h.respond(w, r, out, err)
}

func (h *handler) cityPopulation(w http.ResponseWriter, r *http.Request) {
	out, err := h.persons.CityPopulation(r.Context())
	h.respond(w, r, out, err)
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(map[string]interface{}{
			"path":     r.URL.Path,
			"trace_id": middleware.TraceID(r.Context()),
		}).Error("request failed")
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, persons.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dto.ErrUnknownType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func intVar(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := mux.Vars(r)[name]
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s must be an integer, got %q", name, raw))
		return 0, false
	}
	return v, true
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
