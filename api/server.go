// Package api provides the HTTP REST API server for calcthis.
//
// It exposes endpoints for browsing the calculator catalog, validating and
// running calculations, usage guides, QA runs, benchmark market rates,
// Prometheus metrics and WebSocket event streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/catalog"
	"github.com/seenimoa/calcthis/internal/config"
	"github.com/seenimoa/calcthis/internal/help"
	"github.com/seenimoa/calcthis/internal/infra"
	"github.com/seenimoa/calcthis/internal/logging"
	"github.com/seenimoa/calcthis/internal/marketdata"
	"github.com/seenimoa/calcthis/internal/qa"
	"github.com/seenimoa/calcthis/internal/report"
	"github.com/seenimoa/calcthis/pkg/models"
)

// Deps are the collaborators a Server is built from. Registry is required.
type Deps struct {
	Registry *calculator.Registry
	Manifest *catalog.Manifest // category names; optional
	Rates    marketdata.Source // nil disables the rates endpoints
	Metrics  *Metrics          // created when nil
	Logger   *zap.Logger
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	reg      *calculator.Registry
	manifest *catalog.Manifest
	rates    marketdata.Source
	checker  *marketdata.Checker
	metrics  *Metrics
	limiter  *infra.KeyedLimiter
	wsHub    *WSHub
	logger   *zap.Logger
	version  string
	started  time.Time

	qaMu      sync.Mutex
	qaRunning bool
	qaLast    *qa.Summary
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: config is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("api: calculator registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	deps.Metrics.TrackRegistry(deps.Registry)

	srv := &Server{
		cfg:      cfg,
		reg:      deps.Registry,
		manifest: deps.Manifest,
		rates:    deps.Rates,
		checker:  marketdata.NewChecker(cfg.MarketData.MaxAgeDays),
		metrics:  deps.Metrics,
		wsHub:    NewWSHub(deps.Logger),
		logger:   deps.Logger.Named("api"),
		version:  deps.Version,
		started:  time.Now(),
	}
	if cfg.API.RateLimit > 0 {
		window := time.Duration(cfg.API.RateWindowSec) * time.Second
		srv.limiter = infra.NewKeyedLimiter(cfg.API.RateLimit, window)
	}

	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and the websocket hub, and shuts both
// down gracefully once ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.wsHub.Run(hubCtx)
	go s.reg.RunCacheCleanup(hubCtx, s.cfg.Cache.Duration())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	httpSrv.SetKeepAlivesEnabled(false)
	err := httpSrv.Shutdown(shutdownCtx)
	stopHub()
	<-s.wsHub.Done()
	return err
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.cfg.API.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.Middleware(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimit)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// The websocket route must not sit behind the timeout middleware.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/calculators", s.handleListCalculators)
			r.Get("/calculators/{id}", s.handleGetCalculator)
			r.Get("/calculators/{id}/guide", s.handleGuide)
			r.Get("/calculators/{id}/tutorial", s.handleTutorial)
			r.Post("/calculators/{id}/validate", s.handleValidate)
			r.Post("/calculators/{id}/calculate", s.handleCalculate)

			r.Get("/categories", s.handleCategories)

			r.Post("/qa/run", s.handleQARun)
			r.Get("/qa/report", s.handleQAReport)

			r.Get("/rates", s.handleRates)
			r.Get("/rates/quality", s.handleRatesQuality)

			r.Get("/config", s.handleGetConfig)
			r.Put("/config", s.handleUpdateConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// rateLimit rejects clients that exceed the configured request budget.
// Clients are keyed on the connection address, which RealIP rewrites only
// when proxy headers are trusted.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(logging.ClientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(s.cfg.API.RateWindowSec))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CalculatorList is the body of GET /api/v1/calculators.
type CalculatorList struct {
	Calculators []calculator.Info `json:"calculators"`
	Total       int               `json:"total"`
}

// CategoryInfo describes one category and how many calculators it holds.
type CategoryInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Count       int    `json:"count"`
}

// ValidateResponse is the body of POST /calculators/{id}/validate.
type ValidateResponse struct {
	Validation models.ValidationResult `json:"validation"`
	Issues     []calculator.FieldIssue `json:"issues"`
}

// AppliedRate reports a market rate substituted for an omitted rate input.
type AppliedRate struct {
	Key    string  `json:"key"`
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
}

// CalculateResponse is the body of POST /calculators/{id}/calculate.
type CalculateResponse struct {
	ID         string         `json:"id"`
	Output     *models.Output `json:"output"`
	MarketRate *AppliedRate   `json:"market_rate,omitempty"`
}

// QARunRequest is the optional body of POST /api/v1/qa/run.
type QARunRequest struct {
	Calculators []string `json:"calculators"`
}

// RatesQualityResponse is the body of GET /api/v1/rates/quality.
type RatesQualityResponse struct {
	Reports []marketdata.QualityReport `json:"reports"`
	Summary marketdata.QualitySummary  `json:"summary"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":      "ok",
			"version":     s.version,
			"calculators": s.reg.Len(),
			"market_data": s.rates != nil,
			"ws_clients":  s.wsHub.ClientCount(),
			"uptime_sec":  int(time.Since(s.started).Seconds()),
		},
	})
}

func (s *Server) handleListCalculators(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	q := r.URL.Query().Get("q")

	var infos []calculator.Info
	if category != "" {
		infos = s.reg.ListByCategory(category)
	} else {
		infos = s.reg.List()
	}
	if q != "" {
		matched := infos[:0:0]
		for _, info := range infos {
			if info.Matches(q) {
				matched = append(matched, info)
			}
		}
		infos = matched
	}
	if infos == nil {
		infos = []calculator.Info{}
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    CalculatorList{Calculators: infos, Total: len(infos)},
	})
}

func (s *Server) handleGetCalculator(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: c.Info()})
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	info := c.Info()

	if field := r.URL.Query().Get("field"); field != "" {
		fh, err := help.ContextualHelp(info, field)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: fh})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: help.UsageGuide(info)})
}

func (s *Server) handleTutorial(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: help.NewTutorial(c.Info())})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	in, err := decodeInputs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issues := calculator.QuickValidate(c.Info().Fields, in)
	if issues == nil {
		issues = []calculator.FieldIssue{}
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ValidateResponse{Validation: c.Validate(in), Issues: issues},
	})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	info := c.Info()

	in, err := decodeInputs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var applied *AppliedRate
	if useMarketRate(r) && s.rates != nil {
		filled, ok, err := marketdata.ApplyDefaultRate(r.Context(), s.rates, info, in)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if ok {
			in = filled
			applied = &AppliedRate{Key: info.MarketRate, Rate: *in.Rate, Source: s.rates.Name()}
		}
	}

	out, err := s.reg.Calculate(r.Context(), info.ID, in)
	if err != nil {
		s.writeCalcError(w, err)
		return
	}

	resp := CalculateResponse{ID: uuid.NewString(), Output: out, MarketRate: applied}
	s.wsHub.Broadcast(WSMessage{
		Type: EventCalculationComplete,
		Data: map[string]any{
			"id":         resp.ID,
			"calculator": info.ID,
			"result":     out.Results.Result,
			"riskLevel":  out.Analysis.RiskLevel,
			"cached":     out.Cached,
		},
	})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	counts := s.reg.Categories()
	cats := make([]CategoryInfo, 0, len(counts))
	for id, n := range counts {
		ci := CategoryInfo{ID: id, Name: id, Count: n}
		if s.manifest != nil {
			if c, ok := s.manifest.Category(id); ok {
				ci.Name, ci.Description, ci.Icon = c.Name, c.Description, c.Icon
			}
		}
		cats = append(cats, ci)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cats})
}

func (s *Server) handleQARun(w http.ResponseWriter, r *http.Request) {
	var req QARunRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	s.qaMu.Lock()
	if s.qaRunning {
		s.qaMu.Unlock()
		writeError(w, http.StatusConflict, "a QA run is already in progress")
		return
	}
	s.qaRunning = true
	s.qaMu.Unlock()
	defer func() {
		s.qaMu.Lock()
		s.qaRunning = false
		s.qaMu.Unlock()
	}()

	runner := qa.NewRunner(qa.Options{
		Concurrency: s.cfg.QA.Concurrency,
		Tolerance:   s.cfg.QA.Tolerance,
		MaxCalcTime: s.cfg.QA.MaxCalcTime(),
		Timeout:     s.cfg.QA.Timeout(),
		Calculators: req.Calculators,
		Logger:      s.logger,
		OnProgress: func(p qa.Progress) {
			s.wsHub.Broadcast(WSMessage{
				Type: EventQAProgress,
				Data: map[string]any{
					"run_id":     p.RunID,
					"completed":  p.Completed,
					"total":      p.Total,
					"calculator": p.Report.CalculatorID,
					"status":     p.Report.Status,
					"score":      p.Report.Score,
				},
			})
		},
	})

	sum, err := runner.Run(r.Context(), s.reg)
	if err != nil {
		var notFound *calculator.ErrCalculatorNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.qaMu.Lock()
	s.qaLast = sum
	s.qaMu.Unlock()

	s.wsHub.Broadcast(WSMessage{
		Type: EventQAComplete,
		Data: map[string]any{"run_id": sum.RunID, "average_score": sum.AverageScore},
	})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sum})
}

func (s *Server) handleQAReport(w http.ResponseWriter, r *http.Request) {
	s.qaMu.Lock()
	sum := s.qaLast
	s.qaMu.Unlock()

	if sum == nil {
		writeError(w, http.StatusNotFound, "no QA run has completed yet")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sum})
		return
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := report.DefaultConfig()
	cfg.Format = f
	cfg.FailuresOnly = r.URL.Query().Get("failures") == "true"
	out, err := report.Generate(sum, cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ct := "text/plain; charset=utf-8"
	if f == report.FormatHTML {
		ct = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if s.rates == nil {
		writeError(w, http.StatusServiceUnavailable, "no market data source configured")
		return
	}
	snap, err := s.rates.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

// handleRatesQuality checks each underlying source on its own so that a bad
// feed is visible even when a merged snapshot looks healthy.
func (s *Server) handleRatesQuality(w http.ResponseWriter, r *http.Request) {
	if s.rates == nil {
		writeError(w, http.StatusServiceUnavailable, "no market data source configured")
		return
	}

	sources := []marketdata.Source{s.rates}
	if m, ok := s.rates.(*marketdata.MultiSource); ok {
		sources = m.Sources()
	}

	reports := make([]marketdata.QualityReport, len(sources))
	g, ctx := errgroup.WithContext(r.Context())
	for i, src := range sources {
		g.Go(func() error {
			snap, err := src.Snapshot(ctx)
			if err != nil {
				s.logger.Warn("rate source unavailable", zap.String("source", src.Name()), zap.Error(err))
				snap = nil
			}
			reports[i] = s.checker.Check(src.Name(), snap)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    RatesQualityResponse{Reports: reports, Summary: marketdata.Summarize(reports)},
	})
}

// ============================================================
// Helpers
// ============================================================

// lookup resolves the {id} URL parameter, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (calculator.Calculator, bool) {
	c, err := s.reg.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return c, true
}

// writeCalcError maps calculation errors onto HTTP status codes.
func (s *Server) writeCalcError(w http.ResponseWriter, err error) {
	var (
		verr     *calculator.ErrValidation
		notFound *calculator.ErrCalculatorNotFound
		missing  *calculator.ErrMissingInput
		divZero  *catalog.ErrDivisionByZero
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Error:   "validation failed",
			Data:    models.ValidationResult{IsValid: false, Errors: verr.Errors},
		})
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &missing), errors.As(err, &divZero):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("calculation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeInputs reads an Inputs JSON body. An empty body means no inputs.
func decodeInputs(r *http.Request) (models.Inputs, error) {
	var in models.Inputs
	if r.Body == nil {
		return in, nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		return in, fmt.Errorf("invalid request body: %w", err)
	}
	return in, nil
}

func useMarketRate(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("market_rate"))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to write JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
