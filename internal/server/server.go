// Package server exposes compilation, interpolation and schema lookups over
// HTTP, plus health and Prometheus endpoints.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paveg/adxql/internal/errors"
	"github.com/paveg/adxql/internal/expression"
	"github.com/paveg/adxql/internal/kql"
	"github.com/paveg/adxql/internal/macros"
	"github.com/paveg/adxql/internal/monitoring"
	"github.com/paveg/adxql/internal/schema"
	"github.com/paveg/adxql/internal/validation"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// Server serves the HTTP API.
type Server struct {
	resolver  *schema.Resolver
	metrics   *monitoring.Metrics
	gatherer  prometheus.Gatherer
	logger    log.Logger
	defaultDB string
	schemaTTL time.Duration
	onRefresh func()

	router *mux.Router
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink and the gatherer served on /metrics.
// Without a gatherer /metrics is not registered.
func WithMetrics(m *monitoring.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithDefaultDatabase sets the database used when a request names none.
func WithDefaultDatabase(db string) Option {
	return func(s *Server) {
		s.defaultDB = db
	}
}

// WithSchemaTTL makes Run re-resolve the schema at this interval.
func WithSchemaTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.schemaTTL = ttl
	}
}

// WithRefreshHook registers fn to run before every schema refresh, for
// example to drop the provider's response cache.
func WithRefreshHook(fn func()) Option {
	return func(s *Server) {
		s.onRefresh = fn
	}
}

// New creates a server listening on addr.
func New(addr string, resolver *schema.Resolver, opts ...Option) *Server {
	s := &Server{
		resolver: resolver,
		logger:   log.NewNopLogger(),
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetrics(nil)
	}

	s.router.Path("/api/compile").Methods(http.MethodPost).HandlerFunc(s.handleCompile)
	s.router.Path("/api/interpolate").Methods(http.MethodPost).HandlerFunc(s.handleInterpolate)
	s.router.Path("/api/schema/databases").Methods(http.MethodGet).HandlerFunc(s.handleDatabases)
	s.router.Path("/api/schema/refresh").Methods(http.MethodPost).HandlerFunc(s.handleRefresh)
	s.router.Path("/api/schema/{database}/tables").Methods(http.MethodGet).HandlerFunc(s.handleTables)
	s.router.Path("/api/schema/{database}/functions").Methods(http.MethodGet).HandlerFunc(s.handleFunctions)
	s.router.Path("/api/schema/{database}/{table}/columns").Methods(http.MethodGet).HandlerFunc(s.handleColumns)
	s.router.Path("/health").Methods(http.MethodGet).HandlerFunc(s.handleHealth)
	if s.gatherer != nil {
		s.router.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, refreshing the schema every schema
// TTL when one is set.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "server listening", "addr", s.server.Addr)
		errc <- s.server.ListenAndServe()
	}()

	var refresh <-chan time.Time
	if s.schemaTTL > 0 {
		ticker := time.NewTicker(s.schemaTTL)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case err := <-errc:
			if stderrors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-refresh:
			s.reset()
			if err := s.resolver.ResolveAndCacheSchema(ctx); err != nil {
				level.Warn(s.logger).Log("msg", "periodic schema refresh failed", "err", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return s.server.Shutdown(shutdownCtx)
		}
	}
}

// Stop closes the listener immediately.
func (s *Server) Stop() error {
	return s.server.Close()
}

type compileRequest struct {
	Expression expression.QueryExpression `json:"expression"`
	Database   string                     `json:"database"`
	Validate   bool                       `json:"validate"`
}

type queryResponse struct {
	Query string `json:"query"`
}

type validationResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if !s.decode(w, r, &req) {
		return
	}

	db := req.Database
	if db == "" {
		db = s.defaultDB
	}

	// A missing schema still compiles, with the default time column, but
	// cannot be validated against.
	if err := s.resolver.ResolveAndCacheSchema(r.Context()); err != nil {
		unavailable := errors.NewSchemaUnavailableError("compile", err)
		if req.Validate {
			s.writeJSON(w, http.StatusServiceUnavailable, validationResponse{
				Message: unavailable.Error(),
				Errors:  []string{err.Error()},
			})
			return
		}
		level.Warn(s.logger).Log("msg", "compiling without schema", "err", unavailable)
	}
	columns := s.resolver.GetColumnsForTable(db, req.Expression.Table())

	if req.Validate {
		var tables []string
		if s.resolver.IsCached() {
			tables = s.resolver.GetTablesForDatabase(db)
		}
		if errs := validation.ValidateQuery(req.Expression, tables, columns); len(errs) > 0 {
			resp := validationResponse{Message: "invalid expression"}
			for _, err := range errs {
				resp.Errors = append(resp.Errors, err.Error())
			}
			s.writeJSON(w, http.StatusBadRequest, resp)
			return
		}
	}

	var query string
	_ = s.metrics.RecordOperation("compile", func() error {
		query = kql.Compile(req.Expression, columns)
		return nil
	})
	s.writeJSON(w, http.StatusOK, queryResponse{Query: query})
}

type interpolateRequest struct {
	Query     string              `json:"query"`
	Variables map[string][]string `json:"variables"`
	Scoped    macros.ScopedVars   `json:"scoped"`
	From      *time.Time          `json:"from"`
	To        *time.Time          `json:"to"`
}

func (s *Server) handleInterpolate(w http.ResponseWriter, r *http.Request) {
	var req interpolateRequest
	if !s.decode(w, r, &req) {
		return
	}

	var tr *macros.TimeRange
	if req.From != nil && req.To != nil {
		tr = &macros.TimeRange{From: *req.From, To: *req.To}
	}

	var query string
	_ = s.metrics.RecordOperation("interpolate", func() error {
		i := macros.New(macros.NewTemplateVariables(req.Variables))
		query = i.ApplyTemplateVariables(req.Query, req.Scoped, tr)
		return nil
	})
	s.writeJSON(w, http.StatusOK, queryResponse{Query: query})
}

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	if !s.resolve(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"databases": s.resolver.GetDatabases()})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	if !s.resolve(w, r) {
		return
	}
	db := mux.Vars(r)["database"]
	s.writeJSON(w, http.StatusOK, map[string][]string{"tables": s.resolver.GetTablesForDatabase(db)})
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	if !s.resolve(w, r) {
		return
	}
	db := mux.Vars(r)["database"]
	s.writeJSON(w, http.StatusOK, map[string][]schema.Function{"functions": s.resolver.GetFunctionsForDatabase(db)})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	if !s.resolve(w, r) {
		return
	}
	vars := mux.Vars(r)
	columns := s.resolver.GetColumnsForTable(vars["database"], vars["table"])

	if r.URL.Query().Get("format") == "arrow" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(schema.ArrowSchema(columns).String())); err != nil {
			level.Warn(s.logger).Log("msg", "failed to write response", "err", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]schema.Column{"columns": columns})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.reset()
	if !s.resolve(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"databases": s.resolver.GetDatabases()})
}

func (s *Server) reset() {
	if s.onRefresh != nil {
		s.onRefresh()
	}
	s.resolver.Reset()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"schema":    s.resolver.IsCached(),
	})
}

// resolve makes sure the schema is loaded, answering with the fetch error
// otherwise.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) bool {
	err := s.metrics.RecordOperation("resolve_schema", func() error {
		return s.resolver.ResolveAndCacheSchema(r.Context())
	})
	if err == nil {
		return true
	}

	var fe *errors.FetchError
	if !stderrors.As(err, &fe) {
		fe = errors.NewFetchError(0, err)
	}
	s.writeJSON(w, http.StatusBadGateway, fe)
	return false
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		qe := errors.NewInvalidExpressionError("decode", "", err.Error())
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": qe.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Warn(s.logger).Log("msg", "failed to encode response", "err", err)
	}
}
