package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/vagrant-fusion/internal/api"
	"github.com/eugenenazirov/vagrant-fusion/internal/compute"
	"github.com/eugenenazirov/vagrant-fusion/internal/config"
	"github.com/eugenenazirov/vagrant-fusion/internal/credentials"
	"github.com/eugenenazirov/vagrant-fusion/internal/storage"
)

// ErrInvalidProviderConfig is returned when the provider documents load but
// fail validation.
var ErrInvalidProviderConfig = errors.New("invalid provider configuration")

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	loader  *ProviderLoader
	backend compute.Backend
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// Option customises App construction.
type Option func(*options)

type options struct {
	backend compute.Backend
	env     credentials.Environment
}

// WithBackend replaces the EC2 backend.
func WithBackend(backend compute.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithEnvironment replaces the process environment used for credential
// resolution.
func WithEnvironment(env credentials.Environment) Option {
	return func(o *options) {
		o.env = env
	}
}

// NewLoader returns the provider loader described by cfg.
func NewLoader(cfg config.Config, env credentials.Environment, logger *zap.Logger) *ProviderLoader {
	if env == nil {
		env = credentials.OSEnvironment{}
	}
	return &ProviderLoader{
		Files:   cfg.ProviderFiles,
		Profile: cfg.FusionProfile,
		Dir:     cfg.FusionDir,
		Env:     env,
		Logger:  logger,
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = compute.NewEC2Backend(
			compute.WithLogger(logger),
			compute.WithRateLimit(cfg.CloudRateLimitRPS, cfg.CloudRateLimitBurst),
		)
	}

	loader := NewLoader(cfg, o.env, logger)
	store := storage.NewMemoryStorage()
	if len(cfg.ProviderFiles) > 0 {
		if err := loadInitial(store, loader); err != nil {
			return nil, err
		}
		logger.Info("provider configuration loaded", zap.Strings("files", cfg.ProviderFiles))
	}

	handler := api.NewHandler(store, loader, o.backend, api.WithHandlerLogger(logger))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		loader:  loader,
		backend: o.backend,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, apiRouter),
	}, nil
}

func loadInitial(store storage.Storage, loader *ProviderLoader) error {
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load provider configuration: %w", err)
	}
	errs, err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("failed to validate provider configuration: %w", err)
	}
	if !errs.Empty() {
		return fmt.Errorf("%w:\n%s", ErrInvalidProviderConfig, errs)
	}
	if err := store.SetConfig(cfg, loader.Files...); err != nil {
		return fmt.Errorf("failed to store provider configuration: %w", err)
	}
	return nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Loader returns the provider loader the application was built with.
func (a *App) Loader() *ProviderLoader {
	return a.loader
}

// Backend returns the compute backend used by machine actions.
func (a *App) Backend() compute.Backend {
	return a.backend
}
