package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/reconai/internal/app"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/tracker"

	_ "github.com/raysh454/reconai/internal/server/docs" // registers the swagger spec
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Server is the HTTP + WebSocket API surface over an Application.
type Server struct {
	cfg      Config
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
	origins  map[string]struct{}
	anyOrig  bool
}

// NewServer routes the API onto application. The caller owns application and
// shuts it down.
func NewServer(cfg Config, application *app.Application) (*Server, error) {
	if application == nil || application.Orch == nil {
		return nil, errors.New("server: application is not built")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	s := &Server{
		cfg:     cfg,
		app:     application,
		router:  chi.NewRouter(),
		logger:  logger.With(logging.Component("server")),
		origins: map[string]struct{}{},
	}
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			s.anyOrig = true
		default:
			s.origins[o] = struct{}{}
		}
	}
	if len(s.origins) == 0 {
		s.anyOrig = true
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowOrigin(origin)
		},
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/health", s.optionsHandler("GET"))
	r.Options("/api/modules", s.optionsHandler("GET"))
	r.Options("/api/scan", s.optionsHandler("POST"))
	r.Options("/api/scan/{scanID}", s.optionsHandler("GET, DELETE"))
	r.Options("/api/scan/{scanID}/diff", s.optionsHandler("GET"))
	r.Options("/api/scan/{scanID}/findings", s.optionsHandler("GET"))
	r.Options("/api/scans", s.optionsHandler("GET"))
	r.Options("/api/stats", s.optionsHandler("GET"))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/modules", s.handleModules)

	// Scans
	r.Post("/api/scan", s.handleCreateScan)
	r.Get("/api/scan/{scanID}", s.handleGetScan)
	r.Delete("/api/scan/{scanID}", s.handleCancelScan)
	r.Get("/api/scan/{scanID}/diff", s.handleDiffScan)
	r.Get("/api/scan/{scanID}/findings", s.handleListFindings)
	r.Get("/api/scans", s.handleListScans)
	r.Get("/api/stats", s.handleStats)

	// WebSocket for scan progress
	r.Get("/ws/scan", s.handleScanWS)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) allowOrigin(origin string) bool {
	if s.anyOrig {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.anyOrig {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin := r.Header.Get("Origin"); origin != "" && s.allowOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorStatus maps orchestrator and store errors onto HTTP statuses.
func errorStatus(err error) int {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, tracker.ErrTargetMismatch):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrScanNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op, logging.Err(err))
	} else {
		s.logger.Warn(op, logging.Err(err))
	}
	writeError(w, status, err.Error())
}

func parseLimit(r *http.Request) int {
	limit := defaultListLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = min(v, maxListLimit)
		}
	}
	return limit
}

// --- HTTP handlers ---

// handleHealth godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	analysis := "none"
	if s.app.Comps.Analyzer != nil {
		analysis = s.app.Comps.Analyzer.Name()
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.cfg.Version,
		Features: HealthFeatures{
			Analysis:    analysis,
			Persistence: s.app.Comps.Store != nil,
			Modules:     s.app.Orch.Registry().Names(),
		},
		Timestamp: time.Now().UTC(),
	})
}

// handleModules godoc
// @Summary List registered modules
// @Tags modules
// @Produce json
// @Success 200 {object} ModulesResponse
// @Router /api/modules [get]
func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModulesResponse{Modules: s.app.Orch.Registry().Entries()})
}

// handleCreateScan godoc
// @Summary Run a scan
// @Description Runs the scan and returns it once terminal. With async=true the
// @Description pending scan is returned immediately with 202.
// @Tags scans
// @Accept json
// @Produce json
// @Param request body ScanRequest true "Scan request"
// @Param async query bool false "Return before the scan finishes"
// @Success 200 {object} model.Scan
// @Success 202 {object} model.Scan
// @Failure 400 {object} ErrorResponse
// @Router /api/scan [post]
func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding scan request", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req := model.ScanRequest{
		Target:     body.Target,
		TargetType: body.TargetType,
		ScanType:   body.ScanType,
		Modules:    body.Modules,
		Params:     body.Params,
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		scan, _, err := s.app.Orch.StartScan(context.Background(), req)
		if err != nil {
			s.fail(w, "starting scan", err)
			return
		}
		s.logger.Info("started scan", logging.Field{Key: "scan_id", Value: scan.ID})
		writeJSON(w, http.StatusAccepted, scan)
		return
	}

	scan, err := s.app.Orch.Scan(r.Context(), req)
	if err != nil {
		s.fail(w, "running scan", err)
		return
	}
	s.logger.Info("finished scan",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "status", Value: scan.Status})
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScan godoc
// @Summary Get a scan
// @Tags scans
// @Produce json
// @Param scanID path string true "Scan ID"
// @Success 200 {object} model.Scan
// @Failure 404 {object} ErrorResponse
// @Router /api/scan/{scanID} [get]
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.app.Orch.GetScan(r.Context(), chi.URLParam(r, "scanID"))
	if err != nil {
		s.fail(w, "getting scan", err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleCancelScan godoc
// @Summary Cancel a scan
// @Tags scans
// @Param scanID path string true "Scan ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/scan/{scanID} [delete]
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")
	if s.app.Orch.CancelScan(scanID) {
		s.logger.Info("cancelled scan", logging.Field{Key: "scan_id", Value: scanID})
		writeJSON(w, http.StatusNoContent, nil)
		return
	}
	if _, err := s.app.Orch.GetScan(r.Context(), scanID); err != nil {
		s.fail(w, "cancelling scan", err)
		return
	}
	writeError(w, http.StatusConflict, "scan already finished")
}

// handleDiffScan godoc
// @Summary Diff a scan against an earlier one
// @Description Without base the previous stored scan of the same target is used.
// @Tags scans
// @Produce json
// @Param scanID path string true "Scan ID"
// @Param base query string false "Base scan ID"
// @Success 200 {object} tracker.ScanDiff
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/scan/{scanID}/diff [get]
func (s *Server) handleDiffScan(w http.ResponseWriter, r *http.Request) {
	d, err := s.app.DiffScan(r.Context(), chi.URLParam(r, "scanID"), r.URL.Query().Get("base"))
	if err != nil {
		s.fail(w, "diffing scan", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleListFindings godoc
// @Summary List a scan's stored findings
// @Tags history
// @Produce json
// @Param scanID path string true "Scan ID"
// @Success 200 {array} store.Finding
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/scan/{scanID}/findings [get]
func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	st := s.app.Comps.Store
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	scanID := chi.URLParam(r, "scanID")
	if _, err := s.app.Orch.GetScan(r.Context(), scanID); err != nil {
		s.fail(w, "listing findings", err)
		return
	}
	fs, err := st.ListFindings(r.Context(), scanID)
	if err != nil {
		s.fail(w, "listing findings", err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

// handleListScans godoc
// @Summary List recent scans
// @Tags history
// @Produce json
// @Param limit query int false "Maximum scans to return" default(10)
// @Success 200 {array} model.Scan
// @Router /api/scans [get]
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	if st := s.app.Comps.Store; st != nil {
		scans, err := st.ListRecentScans(r.Context(), limit)
		if err != nil {
			s.fail(w, "listing scans", err)
			return
		}
		writeJSON(w, http.StatusOK, scans)
		return
	}
	scans := s.app.Orch.ListScans()
	if len(scans) > limit {
		scans = scans[:limit]
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleStats godoc
// @Summary Aggregate statistics over stored scans
// @Tags history
// @Produce json
// @Success 200 {object} store.Stats
// @Failure 503 {object} ErrorResponse
// @Router /api/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.app.Comps.Store
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	stats, err := st.Stats(r.Context())
	if err != nil {
		s.fail(w, "computing stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// WebSockets

// scanRequestFromQuery reads target, target_type, scan_type, a comma
// separated modules list and repeated param=key:value pairs.
func scanRequestFromQuery(r *http.Request) model.ScanRequest {
	q := r.URL.Query()
	req := model.ScanRequest{
		Target:     q.Get("target"),
		TargetType: q.Get("target_type"),
		ScanType:   q.Get("scan_type"),
	}
	if mods := q.Get("modules"); mods != "" {
		for _, m := range strings.Split(mods, ",") {
			if m = strings.TrimSpace(m); m != "" {
				req.Modules = append(req.Modules, m)
			}
		}
	}
	for _, p := range q["param"] {
		k, v, ok := strings.Cut(p, ":")
		if !ok || k == "" {
			continue
		}
		if req.Params == nil {
			req.Params = map[string]string{}
		}
		req.Params[k] = v
	}
	return req
}

// handleScanWS starts a scan and streams it: the pending scan, every event,
// then the terminal scan. A failed write cancels the scan.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	req := scanRequestFromQuery(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	scan, events, err := s.app.Orch.StartScan(context.Background(), req)
	if err != nil {
		s.logger.Warn("starting scan", logging.Err(err))
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started scan", logging.Field{Key: "scan_id", Value: scan.ID})
	_ = conn.WriteJSON(scan)

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel scan
			s.app.Orch.CancelScan(scan.ID)
			return
		}
	}

	final, err := s.app.Orch.GetScan(context.Background(), scan.ID)
	if err != nil {
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}
	_ = conn.WriteJSON(final)
}
