package internal

import (
	"bitwise74/course-archive/config"
	"bitwise74/course-archive/db"
	"bitwise74/course-archive/internal/catalog"
	"bitwise74/course-archive/internal/service"
	"bitwise74/course-archive/internal/session"
	"bitwise74/course-archive/internal/storage"
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"gorm.io/gorm"
)

// Deps is handed to every handler. Nothing in it changes after startup.
type Deps struct {
	mu      sync.Mutex
	closers []func()

	Config   *config.Config
	DB       *gorm.DB
	Catalog  *catalog.Catalog
	Store    storage.Store
	Uploader *service.Uploader
	Sessions session.Service
	Provider session.Provider
	// Upstream talks to the object store behind the download proxy
	Upstream *http.Client
}

// NewDeps connects to the database and the object store selected in cfg
func NewDeps(ctx context.Context, cfg *config.Config) (*Deps, error) {
	conn, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage, %w", err)
	}

	// Only the wait for headers is bounded, bodies can be hundreds of MiB
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Upstream.Timeout

	d := &Deps{
		Config:   cfg,
		DB:       conn,
		Catalog:  catalog.New(conn),
		Store:    store,
		Uploader: service.NewUploader(store),
		Sessions: session.NewManager(cfg.Session, cfg.Host.SSLEnabled),
		Provider: session.NewGoogleProvider(cfg.OAuth, cfg.Auth.Domain),
		Upstream: &http.Client{Transport: transport},
	}

	d.OnClose(transport.CloseIdleConnections)
	if sqlDB, err := conn.DB(); err == nil {
		d.OnClose(func() { sqlDB.Close() })
	}

	return d, nil
}

// OnClose registers fn to run on Close, e.g. to stop a background goroutine
// started while building the router
func (d *Deps) OnClose(fn func()) {
	d.mu.Lock()
	d.closers = append(d.closers, fn)
	d.mu.Unlock()
}

// Close runs the registered functions in reverse order. Calling it again is
// a no-op.
func (d *Deps) Close() {
	d.mu.Lock()
	closers := d.closers
	d.closers = nil
	d.mu.Unlock()

	for _, fn := range slices.Backward(closers) {
		fn()
	}
}
