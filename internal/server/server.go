// Package server is the HTTP surface of the analysis proxy. It also serves
// positioned repository graphs for the render layer.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/config"
	"github.com/rohankatakam/repograph/internal/logging"
	"github.com/rohankatakam/repograph/internal/models"
)

// Analyzer explains a piece of code
type Analyzer interface {
	Analyze(ctx context.Context, code string) (string, error)
}

// RepoFetcher lists a repository at a branch
type RepoFetcher interface {
	FetchSnapshot(ctx context.Context, owner, repo, branch string) (*models.Snapshot, error)
}

// Server wires the proxy handlers into a gin engine
type Server struct {
	cfg      config.ServerConfig
	branch   string
	analyzer Analyzer
	repos    RepoFetcher
	logger   *logrus.Logger
	engine   *gin.Engine
}

// New creates the server. repos may be nil, in which case /api/graph is not
// registered.
func New(cfg config.ServerConfig, branch string, analyzer Analyzer, repos RepoFetcher, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		cfg:      cfg,
		branch:   branch,
		analyzer: analyzer,
		repos:    repos,
		logger:   logger,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(s.logger), cors(s.cfg.AllowedOrigins))

	router.GET("/health", s.handleHealth)
	router.POST("/analyze-code", limitBody(s.cfg.MaxBodyBytes), s.handleAnalyzeCode)

	if s.repos != nil {
		api := router.Group("/api")
		{
			api.GET("/graph", s.handleGraph)
		}
	}
	return router
}

// Handler returns the http.Handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is canceled, then drains
// in-flight requests for up to ten seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.Addr).Info("analysis proxy listening")
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down analysis proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
