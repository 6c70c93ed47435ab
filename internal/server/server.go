// Package server exposes scoring, analysis and stored days over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/christopherklint97/dayscore/internal/ai"
	"github.com/christopherklint97/dayscore/internal/collector"
	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/observability"
	"github.com/christopherklint97/dayscore/internal/patterns"
	"github.com/christopherklint97/dayscore/internal/report"
	"github.com/christopherklint97/dayscore/internal/scoring"
	"github.com/christopherklint97/dayscore/internal/store"
)

const (
	defaultWeekDays = 7
	maxWeekDays     = 366
)

// Server provides HTTP endpoints for dayscore.
type Server struct {
	echo     *echo.Echo
	db       *store.DB
	scorer   *scoring.Scorer
	analyzer *patterns.Analyzer
	builder  *report.Builder
	narrator ai.Narrator
	logger   *slog.Logger
	addr     string
	now      func() time.Time
}

// Options configures a Server. Scorer defaults to the default weights and
// Narrator may be nil.
type Options struct {
	Addr     string
	Scorer   *scoring.Scorer
	Narrator ai.Narrator
	Logger   *slog.Logger
}

// NewServer creates a new HTTP server backed by db.
func NewServer(db *store.DB, opts Options) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8484"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := opts.Logger
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the error so the logged status is the real one.
				c.Error(err)
			}
			logger.Info("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	})

	s := &Server{
		echo:     e,
		db:       db,
		scorer:   opts.Scorer,
		analyzer: patterns.NewAnalyzer(opts.Scorer),
		builder:  report.NewBuilder(opts.Scorer, logger),
		narrator: opts.Narrator,
		logger:   logger,
		addr:     opts.Addr,
		now:      time.Now,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/score", s.handleScore)
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/days/:date", s.handleDay)
	v1.GET("/week", s.handleWeek)
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AnalyzeResponse is the response body for POST /api/v1/analyze.
type AnalyzeResponse struct {
	patterns.Analysis
	Summary *patterns.Summary `json:"summary,omitempty"`
}

// DayResponse is the response body for GET /api/v1/days/:date.
type DayResponse struct {
	Metrics metrics.DailyMetrics `json:"metrics"`
	Result  scoring.Result       `json:"result"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleScore scores a single posted day. Nothing is stored.
func (s *Server) handleScore(c echo.Context) error {
	var m metrics.DailyMetrics
	if err := c.Bind(&m); err != nil {
		s.logger.Warn("invalid score request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result := s.scorer.Evaluate(m)
	observability.RecordDailyScore(result.Score, result.Grade)
	return c.JSON(http.StatusOK, result)
}

// handleAnalyze analyzes a posted period. An empty period gets the neutral
// analysis and no summary.
func (s *Server) handleAnalyze(c echo.Context) error {
	var week []metrics.DailyMetrics
	if err := c.Bind(&week); err != nil {
		s.logger.Warn("invalid analyze request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be an array of daily metrics")
	}

	resp := AnalyzeResponse{Analysis: s.analyzer.Analyze(week)}
	if len(week) > 0 {
		summary := s.analyzer.Aggregate(week)
		resp.Summary = &summary
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDay(c echo.Context) error {
	date, err := metrics.ResolveDate(c.Param("date"), s.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	_, ok, err := s.db.GetDay(date)
	if err != nil {
		return fmt.Errorf("reading day %s: %w", date, err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no data stored for %s", date))
	}

	m, err := collector.Day(c.Request().Context(), s.db, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DayResponse{Metrics: m, Result: s.scorer.Evaluate(m)})
}

// handleWeek reports on stored days. Query parameters: end (date, default
// today), days (default 7) and narrate (bool, default false).
func (s *Server) handleWeek(c echo.Context) error {
	end, err := metrics.ResolveDate(c.QueryParam("end"), s.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	days := defaultWeekDays
	if v := c.QueryParam("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 || days > maxWeekDays {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", maxWeekDays))
		}
	}

	var narrator ai.Narrator
	if v := c.QueryParam("narrate"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "narrate must be a boolean")
		}
		if on {
			narrator = s.narrator
		}
	}

	ctx := c.Request().Context()
	week, err := collector.Week(ctx, s.db, end, days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.builder.Build(ctx, week, narrator))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.addr)
	return s.echo.Start(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
