package container

import (
	"context"
	"fmt"
	"sync"

	"treblereport/internal"
	"treblereport/internal/config"
	"treblereport/internal/report"
	"treblereport/internal/session"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Session state
	Sessions session.Store
	Cache    *session.ParseCache

	cancelCleanup context.CancelFunc
	cleanupDone   sync.WaitGroup
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.LogLevel))
	logger := internal.DefaultLogger.With("Container")

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Sessions: session.NewMemoryStore(),
		Cache:    session.NewParseCache(),
	}
	return c, nil
}

// ReportDefaults are the request defaults derived from configuration
func (c *Container) ReportDefaults() report.Defaults {
	return report.Defaults{
		ParseMode:       c.Config.Report.DefaultParseMode,
		UniqueKeyColumn: c.Config.Report.UniqueKeyColumn,
		Locale:          c.Config.Report.Locale,
	}
}

// StartCleanup expires idle sessions in the background until Shutdown
func (c *Container) StartCleanup(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelCleanup = cancel
	c.cleanupDone.Add(1)
	go func() {
		defer c.cleanupDone.Done()
		session.RunCleanup(ctx, c.Sessions, c.Config.Session.CleanupInterval, c.Config.Session.TTL)
	}()
	c.Logger.Info("session cleanup started (ttl=%s, every %s)", c.Config.Session.TTL, c.Config.Session.CleanupInterval)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.cancelCleanup != nil {
		c.cancelCleanup()
	}

	done := make(chan struct{})
	go func() {
		c.cleanupDone.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
