package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"lraide/adapters/blobstore"
	"lraide/adapters/sqlstore"
	olsadapter "lraide/adapters/stats/regression"
	"lraide/internal"
	"lraide/internal/api"
	"lraide/internal/config"
	"lraide/internal/metrics"
	"lraide/internal/session"
	"lraide/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB      *sqlx.DB
	Metrics *metrics.Metrics

	// Snapshot storage: SQL when a driver is configured, else local files
	Snapshots ports.SnapshotRepository

	// Engine
	Registry *session.Registry

	// Presentation
	Server *api.Server
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)),
	}
	if cfg.Metrics.Enabled {
		c.Metrics = metrics.New(true)
	}
	return c, nil
}

// Init opens snapshot storage and builds the engine and HTTP server.
func (c *Container) Init(ctx context.Context) error {
	if err := c.initStorage(ctx); err != nil {
		return fmt.Errorf("failed to initialize snapshot storage: %w", err)
	}
	c.initEngine()
	c.Server = api.NewServer(api.Deps{
		Registry:  c.Registry,
		Snapshots: c.Snapshots,
		Metrics:   c.Metrics,
		Logger:    c.Logger,
	})
	c.Logger.Info("container initialized (storage=%s, metrics=%t)", c.storageKind(), c.Metrics != nil)
	return nil
}

// InitEngine builds only the session registry, for one-shot CLI commands.
func (c *Container) InitEngine() *session.Registry {
	c.initEngine()
	return c.Registry
}

func (c *Container) initEngine() {
	if c.Registry != nil {
		return
	}
	opts := session.Options{
		Fitter:    olsadapter.NewOLS(),
		Tolerance: c.Config.Engine.FitTolerance,
		Padding:   c.Config.Engine.DomainPadding,
		ZoomStep:  c.Config.Engine.ZoomStep,
		Logger:    c.Logger,
	}
	if c.Metrics != nil {
		opts.Observer = c.Metrics
	}
	c.Registry = session.NewRegistry(opts)
}

// InitStorage opens only the snapshot repository.
func (c *Container) InitStorage(ctx context.Context) (ports.SnapshotRepository, error) {
	if err := c.initStorage(ctx); err != nil {
		return nil, err
	}
	return c.Snapshots, nil
}

func (c *Container) initStorage(ctx context.Context) error {
	if c.Snapshots != nil {
		return nil
	}
	st := c.Config.Storage
	if st.DBDriver != "" {
		db, err := sqlstore.Open(ctx, st.DBDriver, st.DBURL)
		if err != nil {
			return err
		}
		c.DB = db
		c.Snapshots = sqlstore.NewSnapshotRepository(db)
		return nil
	}
	store, err := blobstore.NewSnapshotStore(st.SnapshotDir)
	if err != nil {
		return err
	}
	c.Snapshots = store
	return nil
}

func (c *Container) storageKind() string {
	if c.DB != nil {
		return c.Config.Storage.DBDriver
	}
	return "files:" + c.Config.Storage.SnapshotDir
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Registry != nil {
		for _, s := range c.Registry.List() {
			if s.ForkOf() == "" {
				_ = c.Registry.Close(s.ID())
			}
		}
	}

	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
