// Package httpapi exposes a small read-only admin surface alongside the
// Mumble listener: a health probe and a presence snapshot. It never touches
// session state directly, only the presence store's own read methods
// (PeerCount and Snapshot).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mumbled/internal/presence"
)

// Server is the Echo application backing the admin API.
type Server struct {
	echo  *echo.Echo
	store *presence.Store
}

// New constructs the admin API app and registers its routes.
func New(store *presence.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, store: store}
	s.registerRoutes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			slog.Debug("admin api request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/api/stats", s.handleStats)
}

// Run starts Echo and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down admin api")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Peers  int    `json:"peers"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Peers:  s.store.PeerCount(),
	})
}

type statsResponse struct {
	Peers           int            `json:"peers"`
	Channels        int            `json:"channels"`
	PeersPerChannel map[uint32]int `json:"peers_per_channel"`
}

func (s *Server) handleStats(c echo.Context) error {
	snap := s.store.Snapshot()
	return c.JSON(http.StatusOK, statsResponse{
		Peers:           snap.Peers,
		Channels:        snap.Channels,
		PeersPerChannel: snap.PeersPerChannel,
	})
}
