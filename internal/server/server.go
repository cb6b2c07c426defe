// Package server exposes the assistant over HTTP: JSON chat, SSE streaming,
// auth and the calendar feed.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daybreak-hq/daybreak/config"
	"github.com/daybreak-hq/daybreak/internal/agent"
	"github.com/daybreak-hq/daybreak/internal/history"
	"github.com/daybreak-hq/daybreak/internal/llm"
	"github.com/daybreak-hq/daybreak/internal/runtime"
	"github.com/daybreak-hq/daybreak/internal/store"
	"github.com/daybreak-hq/daybreak/internal/telemetry"
	"github.com/daybreak-hq/daybreak/internal/tools"
)

// Server wires every component behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	store    *store.FileStore
	history  history.Store
	registry *llm.Registry
	tools    *tools.Registry
	orch     *agent.Orchestrator
	metrics  *telemetry.Metrics
	logger   *log.Logger
	secret   []byte
	echo     *echo.Echo
}

// New assembles the server. The JWT secret must be configured.
func New(cfg *config.Config, st *store.FileStore, hist history.Store, registry *llm.Registry, metrics *telemetry.Metrics, logger *log.Logger) (*Server, error) {
	if cfg.Server.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	reg := tools.DefaultRegistry()
	s := &Server{
		cfg:      cfg,
		store:    st,
		history:  hist,
		registry: registry,
		tools:    reg,
		metrics:  metrics,
		logger:   logger,
		secret:   []byte(cfg.Server.JWTSecret),
	}
	s.orch = &agent.Orchestrator{
		Tools:    reg,
		History:  hist,
		Metrics:  metrics,
		Logger:   log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
		ContextN: cfg.History.Context,
	}
	s.echo = s.buildEcho()
	return s, nil
}

// Handler returns the http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks serving on the configured address.
func (s *Server) Start() error {
	s.logger.Printf("listening on %s", s.cfg.Server.Address)
	return s.echo.Start(s.cfg.Server.Address)
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/calendar/:token", s.calendarFeed)

	api := e.Group("/api")
	auth := &AuthHandler{Store: s.store, Secret: s.secret}
	auth.Register(api.Group("/auth"))

	authed := api.Group("")
	authed.Use(runtime.EchoAuthMiddleware(s.secret))
	authed.GET("/me", s.me)
	authed.PUT("/me/provider", s.setProvider)
	authed.GET("/calendar/links", s.calendarLinks)
	authed.POST("/assistant/chat", s.chat)
	authed.GET("/assistant/chat/stream", s.chatStream)
	authed.POST("/assistant/chat/stream", s.chatStream)
	return e
}

func (s *Server) me(c echo.Context) error {
	userID := c.Get("user_id").(string)
	rec, err := s.store.User(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"user_id":  rec.ID,
		"email":    rec.Email,
		"provider": rec.Provider,
	})
}

func (s *Server) setProvider(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req struct {
		Provider string `json:"provider"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch req.Provider {
	case "", llm.ProviderOpenAI, llm.ProviderGroq, llm.ProviderGemini:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown provider %q", req.Provider))
	}
	if err := s.store.SetProvider(userID, req.Provider); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
