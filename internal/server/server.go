package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/terra-graph/newsgraph/internal/util"
	"github.com/terra-graph/newsgraph/pkg/logger"
	"github.com/terra-graph/newsgraph/pkg/store"
)

// Server exposes the read-only graph API. There is no write surface; all
// mutation happens through the worker pipelines.
type Server struct {
	storage store.Storage
}

// New creates a Server on the given storage.
func New(storage store.Storage) *Server {
	return &Server{storage: storage}
}

// Run starts the HTTP listener and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())

	s.registerRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
