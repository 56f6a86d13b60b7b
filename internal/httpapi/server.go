package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/auth"
	"horse.fit/vantage/internal/config"
	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/scheduler"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StatsStore serves the corpus stats endpoint. *db.Store satisfies it.
type StatsStore interface {
	CorpusStats(ctx context.Context) (db.Stats, error)
}

// CycleScheduler is the scheduler surface exposed over HTTP.
type CycleScheduler interface {
	Start(ctx context.Context)
	Stop()
	Status() scheduler.Status
	TriggerUser(ctx context.Context, userID string) error
}

type Server struct {
	sched  CycleScheduler
	store  StatsStore
	cfg    *config.Manager
	logger zerolog.Logger
	opts   Options

	// baseCtx parents dispatched cycles so they outlive the HTTP request that
	// triggered them.
	baseCtx context.Context
}

func NewServer(sched CycleScheduler, store StatsStore, cfg *config.Manager, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8091
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		sched:   sched,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		baseCtx: context.Background(),
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.sched == nil {
		return fmt.Errorf("server is not initialized")
	}
	s.baseCtx = context.WithoutCancel(ctx)

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("vantage api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("vantage api server stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/scheduler", s.handleSchedulerStatus)

	protected := api.Group("", s.requireToken)
	protected.POST("/scheduler/start", s.handleSchedulerStart)
	protected.POST("/scheduler/stop", s.handleSchedulerStop)
	protected.POST("/cycles/:user_id", s.handleTriggerCycle)

	return e
}

// requireToken authenticates mutating routes with the configured bearer
// token. With no token hash configured, mutation over HTTP stays disabled.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenHash := s.cfg.Current().APITokenHash
		if strings.TrimSpace(tokenHash) == "" {
			return fail(c, http.StatusForbidden, "Mutating API is disabled: no API token configured", nil)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !auth.VerifyToken(token, tokenHash) {
			return fail(c, http.StatusUnauthorized, "Invalid or missing API token", nil)
		}
		return next(c)
	}
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "vantage",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.store.CorpusStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, map[string]any{
		"mentions":          stats.Mentions,
		"topics":            stats.Topics,
		"issues":            stats.Issues,
		"topic_assignments": stats.TopicAssignments,
		"issue_assignments": stats.IssueAssignments,
		"running_cycles":    stats.RunningCycles,
		"last_cycle_at":     stats.LastCycleAt,
	})
}

func (s *Server) handleSchedulerStatus(c echo.Context) error {
	return success(c, s.sched.Status())
}

func (s *Server) handleSchedulerStart(c echo.Context) error {
	s.sched.Start(s.baseCtx)
	return success(c, s.sched.Status())
}

func (s *Server) handleSchedulerStop(c echo.Context) error {
	s.sched.Stop()
	return success(c, s.sched.Status())
}

func (s *Server) handleTriggerCycle(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return fail(c, http.StatusBadRequest, "user_id is required", nil)
	}

	if err := s.sched.TriggerUser(s.baseCtx, userID); err != nil {
		return fail(c, http.StatusConflict, err.Error(), nil)
	}
	return c.JSON(http.StatusAccepted, successEnvelope{
		Status: "success",
		Data:   map[string]any{"user_id": userID, "dispatched": true},
	})
}
