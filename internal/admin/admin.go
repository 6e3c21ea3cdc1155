// Package admin exposes a small HTTP status API next to the IRC
// listener: health, registry stats, channel listing, recorded history
// and Prometheus metrics. The IRC core never depends on it.
package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goircd/ircd/internal/history"
	"github.com/goircd/ircd/irc"
)

// Server is the admin HTTP server.
type Server struct {
	echo    *echo.Echo
	ircd    *irc.Server
	store   *history.Store
	bind    string
	started time.Time
}

// New creates the admin server. store may be nil when history is
// disabled.
func New(bind string, ircd *irc.Server, store *history.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		ircd:    ircd,
		store:   store,
		bind:    bind,
		started: time.Now(),
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/api/stats", s.handleStats)
	e.GET("/api/channels", s.handleChannels)
	e.GET("/api/history", s.handleHistory)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start serves until Shutdown. It blocks, mirroring http.Server.
func (s *Server) Start() error {
	err := s.echo.Start(s.bind)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(c echo.Context) error {
	snap, err := s.ircd.GetSnapshot()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"started_at": snap.StartedAt,
		"uptime":     time.Since(snap.StartedAt).String(),
		"sessions":   snap.Sessions,
		"channels":   len(snap.Channels),
	})
}

func (s *Server) handleChannels(c echo.Context) error {
	snap, err := s.ircd.GetSnapshot()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	channels := snap.Channels
	if channels == nil {
		channels = []irc.ChannelSummary{}
	}
	return c.JSON(http.StatusOK, channels)
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is disabled")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := s.store.Recent(c.QueryParam("channel"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if events == nil {
		events = []history.Event{}
	}
	return c.JSON(http.StatusOK, events)
}
