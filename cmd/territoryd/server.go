package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/fieldcompass/territory-engine/infra/distlock"
	svcerrors "github.com/fieldcompass/territory-engine/infrastructure/errors"
	"github.com/fieldcompass/territory-engine/infrastructure/httputil"
	"github.com/fieldcompass/territory-engine/infrastructure/logging"
	"github.com/fieldcompass/territory-engine/infrastructure/metrics"
	"github.com/fieldcompass/territory-engine/infrastructure/middleware"
	svchealth "github.com/fieldcompass/territory-engine/infrastructure/service"
	"github.com/fieldcompass/territory-engine/internal/assign/domain"
	"github.com/fieldcompass/territory-engine/internal/assign/engine"
	assignerrors "github.com/fieldcompass/territory-engine/internal/assign/errors"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
	"github.com/fieldcompass/territory-engine/internal/assign/solve"
)

var reqValidate = validator.New()

// server wires the assignment engine behind an HTTP API and remembers the
// most recent run per build so GET /builds/{id} has something to answer
// with, since repo.Repository exposes no read path for assignments.
type server struct {
	engine *engine.Engine
	repo   repo.Repository
	locker *distlock.Locker
	logger *logging.Logger
	tokens map[string]bool

	deepHealth *svchealth.DeepHealthChecker
	probes     *svchealth.ProbeManager
	startedAt  time.Time

	mu      sync.RWMutex
	results map[string]*buildRecord
}

type buildRecord struct {
	Status    string               `json:"status"`
	Result    *engine.EngineResult `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	StartedAt time.Time            `json:"started_at"`
	EndedAt   time.Time            `json:"ended_at,omitempty"`
}

func newServer(e *engine.Engine, r repo.Repository, locker *distlock.Locker, logger *logging.Logger, m *metrics.Metrics, tokens []string, db *sql.DB) *server {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	_ = m // reserved for a future /metrics scrape target; Prometheus registration is process-global

	deepHealth := svchealth.NewDeepHealthChecker(5 * time.Second)
	if db != nil {
		deepHealth.Register("postgres", svchealth.DatabaseHealthCheck("postgres", db.PingContext))
	}

	probes := svchealth.NewProbeManager(10 * time.Second)
	probes.SetReady(true)
	probes.SetLive(true)

	return &server{
		engine:     e,
		repo:       r,
		locker:     locker,
		logger:     logger,
		tokens:     tokenSet,
		deepHealth: deepHealth,
		probes:     probes,
		startedAt:  time.Now(),
		results:    make(map[string]*buildRecord),
	}
}

func (s *server) router() http.Handler {
	r := mux.NewRouter()

	health := middleware.NewHealthChecker("territoryd")
	r.Handle("/healthz", health.Handler()).Methods(http.MethodGet)
	r.Handle("/healthz/deep", svchealth.DeepHealthHandler(s.deepHealth, "territoryd", "", false, func() time.Duration {
		return time.Since(s.startedAt)
	})).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.probes.ReadinessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/livez", s.probes.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	validation := middleware.NewValidationMiddleware(middleware.ValidationConfig{
		MaxBodySize:    1 << 20,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		ContentTypes:   []string{"application/json"},
	})

	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.NewCORSMiddleware(nil).Handler)
	api.Use(middleware.NewSecurityHeadersMiddleware(nil).Handler)
	api.Use(middleware.NewRateLimiter(5, 10, s.logger).Handler)
	api.Use(middleware.NewTimeoutMiddleware(90 * time.Second).Handler)
	api.Use(middleware.LoggingMiddleware(s.logger))
	api.Use(validation.Handler)
	if len(s.tokens) > 0 {
		api.Use(s.authenticate)
	}

	api.HandleFunc("/builds/{id}/run", s.handleRun).Methods(http.MethodPost)
	api.HandleFunc("/builds/{id}", s.handleGet).Methods(http.MethodGet)

	return r
}

func (s *server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || !s.tokens[token] {
			err := svcerrors.Unauthorized("missing or invalid bearer token")
			httputil.WriteErrorResponse(w, r, err.HTTPStatus, string(err.Code), err.Message, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type runRequest struct {
	Model      domain.OptimizationModel `json:"model,omitempty" validate:"omitempty,oneof=waterfall relaxed_optimization"`
	SolverMode string                   `json:"solver_mode,omitempty" validate:"omitempty,oneof=browser cloud"`
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	buildID := mux.Vars(r)["id"]
	if strings.TrimSpace(buildID) == "" {
		err := svcerrors.MissingParameter("id")
		httputil.WriteErrorResponse(w, r, err.HTTPStatus, string(err.Code), err.Message, err.Details)
		return
	}

	var req runRequest
	if r.ContentLength > 0 {
		body, readErr := httputil.ReadAllStrict(r.Body, 1<<20)
		if readErr != nil {
			err := svcerrors.InvalidInput("body", readErr.Error())
			httputil.WriteErrorResponse(w, r, err.HTTPStatus, string(err.Code), err.Message, err.Details)
			return
		}
		if len(body) > 0 {
			if jsonErr := json.Unmarshal(body, &req); jsonErr != nil {
				err := svcerrors.InvalidFormat("body", "json")
				httputil.WriteErrorResponse(w, r, err.HTTPStatus, string(err.Code), err.Message, err.Details)
				return
			}
			if validateErr := reqValidate.Struct(req); validateErr != nil {
				err := svcerrors.InvalidInput("body", validateErr.Error())
				httputil.WriteErrorResponse(w, r, err.HTTPStatus, string(err.Code), err.Message, err.Details)
				return
			}
		}
	}

	lock, err := s.locker.Acquire(r.Context(), buildID)
	if err != nil {
		if err == distlock.ErrLocked {
			lerr := svcerrors.BuildLocked(buildID)
			httputil.WriteErrorResponse(w, r, lerr.HTTPStatus, string(lerr.Code), lerr.Message, lerr.Details)
			return
		}
		lerr := svcerrors.Internal("acquire build lock", err)
		httputil.WriteErrorResponse(w, r, lerr.HTTPStatus, string(lerr.Code), lerr.Message, nil)
		return
	}
	defer lock.Release(r.Context())

	s.setRecord(buildID, &buildRecord{Status: "running", StartedAt: time.Now()})

	opts := engine.RunOptions{ModelOverride: req.Model}
	if req.SolverMode != "" {
		opts.SolverModeOverride = solve.Mode(req.SolverMode)
	}
	result, runErr := s.engine.Run(r.Context(), buildID, opts)
	if runErr != nil {
		s.setRecord(buildID, &buildRecord{Status: "failed", Error: runErr.Error(), EndedAt: time.Now()})
		status, code := classifyEngineError(runErr)
		httputil.WriteErrorResponse(w, r, status, code, runErr.Error(), nil)
		return
	}

	all := append(append([]domain.Assignment(nil), result.CustomerAssignments...), result.ProspectAssignments...)
	if persistErr := s.repo.PersistAssignments(r.Context(), buildID, all); persistErr != nil {
		s.setRecord(buildID, &buildRecord{Status: "failed", Error: persistErr.Error(), EndedAt: time.Now()})
		perr := svcerrors.DatabaseError("persist assignments", persistErr)
		httputil.WriteErrorResponse(w, r, perr.HTTPStatus, string(perr.Code), perr.Message, perr.Details)
		return
	}

	s.setRecord(buildID, &buildRecord{Status: "completed", Result: result, EndedAt: time.Now()})
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	buildID := mux.Vars(r)["id"]
	s.mu.RLock()
	rec, ok := s.results[buildID]
	s.mu.RUnlock()
	if !ok {
		err := svcerrors.NotFound("build", buildID)
		httputil.WriteErrorResponse(w, r, err.HTTPStatus, string(err.Code), err.Message, err.Details)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	buildCount := len(s.results)
	s.mu.RUnlock()

	stats := svchealth.NewStatsCollector().
		Add("uptime_seconds", time.Since(s.startedAt).Seconds()).
		Add("builds_tracked", buildCount).
		Add("auth_required", len(s.tokens) > 0).
		MustBuild()
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (s *server) setRecord(buildID string, rec *buildRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.results[buildID]; ok && rec.StartedAt.IsZero() {
		rec.StartedAt = existing.StartedAt
	}
	s.results[buildID] = rec
}

// classifyEngineError maps the engine's closed error taxonomy to an HTTP
// status and response code, falling back to 500 for anything it doesn't
// wrap in an *errors.EngineError.
func classifyEngineError(err error) (int, string) {
	ee, ok := assignerrors.As(err)
	if !ok {
		return http.StatusInternalServerError, string(svcerrors.ErrCodeInternal)
	}
	switch ee.Code {
	case assignerrors.ConfigError, assignerrors.DataLoadError:
		return http.StatusBadRequest, string(ee.Code)
	case assignerrors.NoEligibleReps, assignerrors.ScaleExceeded:
		return http.StatusUnprocessableEntity, string(ee.Code)
	case assignerrors.SolverTimeout:
		return http.StatusGatewayTimeout, string(ee.Code)
	case assignerrors.Cancelled:
		return http.StatusRequestTimeout, string(ee.Code)
	default:
		return http.StatusInternalServerError, string(ee.Code)
	}
}
