// Package webservice exposes vehicle lookups over HTTP to calling
// applications. It is an embeddable surface: the host constructs a registry
// client, hands it to New and calls Serve.
package webservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkock/autolookup/config"
	"github.com/mkock/autolookup/registry"
	"github.com/mkock/autolookup/vehicle"
)

// Error codes included in JSON error responses.
const (
	errJSONEncoding = iota * 100
	errValidation
	errLookup
)

// Lookuper is the part of the registry client the web service depends on.
type Lookuper interface {
	LookupRegNr(ctx context.Context, regNr string) (vehicle.Info, error)
	LookupVIN(ctx context.Context, vin string) (vehicle.Info, error)
	Status() registry.Status
}

// WebServer represents the REST-API part of the lookup service.
type WebServer struct {
	startTime time.Time
	client    Lookuper
	cnf       config.Config
	logger    *log.Logger
	registry  *prometheus.Registry
	metrics   *metrics
	mux       chi.Router
}

// APIError is the error returned to clients whenever a lookup or an internal operation fails.
type APIError struct {
	HTTPCode int               `json:"-"`
	Code     int               `json:"code,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details,omitempty"`
}

// New initialises a new webserver. You need to start it by calling Serve().
func New(client Lookuper, cnf config.Config, logger *log.Logger) *WebServer {
	if logger == nil {
		logger = log.Default()
	}
	reg := prometheus.NewRegistry()
	srv := &WebServer{
		startTime: time.Now(),
		client:    client,
		cnf:       cnf,
		logger:    logger,
		registry:  reg,
		metrics:   newMetrics(reg),
	}
	srv.mux = srv.setupMux()
	return srv
}

// Handler returns the full HTTP handler, which hosts can mount into a larger mux.
func (srv *WebServer) Handler() http.Handler {
	return srv.mux
}

// setupMux registers all the endpoints that the web server makes available.
func (srv *WebServer) setupMux() chi.Router {
	r := chi.NewRouter()
	r.Use(srv.requestID, srv.logRequests)
	r.Get("/", srv.handleStatus)
	r.Get("/status", srv.handleStatus)
	r.Get("/lookup", srv.handleLookup)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}))
	return r
}

// JSONError serves the given error as JSON.
func (srv *WebServer) JSONError(w http.ResponseWriter, handlerErr APIError) {
	data := struct {
		Err APIError `json:"error"`
	}{handlerErr}
	d, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Internal Server Error", 500)
		return
	}
	if ra, ok := handlerErr.Details[registry.DetailRetryAfter]; ok {
		w.Header().Set("Retry-After", ra)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(handlerErr.HTTPCode)
	fmt.Fprint(w, string(d))
}

type requestIDKey struct{}

// requestID tags every request with a fresh id, for log correlation.
func (srv *WebServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func reqID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type statusLogger struct {
	http.ResponseWriter
	status int
}

func (slog *statusLogger) WriteHeader(status int) {
	slog.status = status
	slog.ResponseWriter.WriteHeader(status)
}

// logRequests logs the HTTP method and URL of each request, along with the status code and duration.
func (srv *WebServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logWriter := statusLogger{w, 200}
		start := time.Now()
		next.ServeHTTP(&logWriter, r)
		srv.logger.Info("request handled",
			"method", r.Method,
			"uri", r.RequestURI,
			"status", logWriter.status,
			"duration", time.Since(start).Truncate(time.Millisecond),
			"requestID", reqID(r.Context()),
		)
	})
}

// Serve starts the web server. It never returns unless interrupted.
func (srv *WebServer) Serve() error {
	srv.startTime = time.Now()
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", srv.cnf.WebService.Port),
		Handler: srv.mux,
	}
	errs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()
	srv.logger.Info("web service listening", "port", srv.cnf.WebService.Port)
	// Prepare a channel for service interruption using SIGINT/SIGTERM.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		return err
	case <-sigs:
	}
	srv.logger.Info("interrupted, shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
