package ui

import (
	"context"
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"treblereport/internal/config"
	"treblereport/internal/report"
	"treblereport/internal/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Server is the dashboard HTTP API
type Server struct {
	router    *gin.Engine
	cfg       *config.Config
	sessions  session.Store
	cache     *session.ParseCache
	defaults  report.Defaults
	templates *template.Template
}

// NewServer wires the routes over the given session store and parse cache
func NewServer(cfg *config.Config, sessions session.Store, cache *session.ParseCache, defaults report.Defaults) (*Server, error) {
	gin.SetMode(cfg.Server.GinMode)

	templates, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:    gin.Default(),
		cfg:       cfg,
		sessions:  sessions,
		cache:     cache,
		defaults:  defaults,
		templates: templates,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.MaxMultipartMemory = s.cfg.Upload.MaxBytes()
	s.router.Use(limitBody(s.cfg.Upload.MaxBytes()))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.SetHTMLTemplate(s.templates)
	s.router.GET("/", s.handleIndex)
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api/datasets")
	api.POST("", s.handleUpload)
	api.GET("/:id", s.handleGetDataset)
	api.DELETE("/:id", s.handleDeleteDataset)
	api.GET("/:id/months", s.handleMonths)
	api.POST("/:id/report", s.handleReport)
	api.GET("/:id/export/:kind", s.handleExport)
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting report dashboard on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("Shutting down report dashboard")
		return srv.Shutdown(shutdownCtx)
	}
}

// limitBody caps request bodies; larger uploads fail while being read
func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+1<<20)
		}
		c.Next()
	}
}
