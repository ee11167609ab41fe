// Package portal serves the dealer registration portal: the registration
// page, the JSON API behind it and the admin screens, and the per-form scan
// sessions that feed the engine number field.
package portal

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/bikereg/internal/config"
	"github.com/zulandar/bikereg/internal/registry"
)

// StartOpts holds configuration for the portal server.
type StartOpts struct {
	Registry     *registry.Registry
	Sessions     *SessionManager
	Housekeeping config.HousekeepingConfig
	Port         int
	Out          io.Writer
}

// Start launches the portal HTTP server and its housekeeping jobs. It blocks
// until ctx is cancelled, then shuts down gracefully and tears down every
// open scan session.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Registry == nil {
		return fmt.Errorf("portal: registry is required")
	}
	if opts.Sessions == nil {
		return fmt.Errorf("portal: session manager is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.Registry, opts.Sessions)
	if err != nil {
		return err
	}

	hk, err := startHousekeeping(opts.Registry, opts.Sessions, opts.Housekeeping)
	if err != nil {
		return err
	}
	defer hk.Stop()
	defer opts.Sessions.CloseAll()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Portal running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("portal: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with templates and every route
// registered.
func NewRouter(reg *registry.Registry, sessions *SessionManager) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, reg, sessions)
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
