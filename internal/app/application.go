package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"chatflow/internal/api"
	"chatflow/internal/auth"
	"chatflow/internal/config"
	"chatflow/internal/database"
	"chatflow/internal/state"
	"chatflow/pkg/interfaces"
)

// Application coordinates all system components. Initialization order:
// sink → state manager → auth → API → HTTP.
type Application struct {
	config     *config.Config
	sink       *database.Manager // nil when persistence is disabled
	store      *state.Manager
	authSvc    *auth.Service
	apiServer  *api.Server
	httpServer *http.Server
}

// New builds the application from configuration.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var sinkManager *database.Manager
	var sink interfaces.Sink
	if cfg.Database != nil && cfg.Database.Path != "" {
		var err error
		sinkManager, err = database.NewManager(&database.Config{
			Path:        cfg.Database.Path,
			QueueSize:   cfg.Database.QueueSize,
			MaxConns:    10,
			ConnMaxLife: time.Hour,
		})
		if err != nil {
			// The sink is best-effort; the store must come up without it.
			log.Printf("Persistence sink unavailable, continuing without it: %v", err)
		} else {
			sink = sinkManager
		}
	}

	// The state manager stores password hashes opaquely and delegates
	// comparison to the auth layer's hasher.
	store := state.NewManager(&state.Config{
		PresenceWindow: cfg.Chat.PresenceWindow,
		RecentWindow:   cfg.Chat.RecentWindow,
		VerifyPassword: auth.NewPasswordHasher().Verify,
	}, sink)

	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret:   cfg.Auth.Secret,
		Lifetime: cfg.Auth.TokenLifetime,
		Issuer:   "chatflow",
	})
	authSvc := auth.NewService(store, tokens)

	apiServer := api.NewServer(store, authSvc)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		sink:       sinkManager,
		store:      store,
		authSvc:    authSvc,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start begins serving. It returns once the listener is up or startup
// failed.
func (a *Application) Start(ctx context.Context) error {
	log.Printf("Starting chatflow on %s", a.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("chatflow started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts components down in reverse dependency order: HTTP first so no
// new writes arrive, then the sink so queued writes drain.
func (a *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down chatflow")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			log.Printf("Sink shutdown error: %v", err)
		}
	}

	log.Printf("chatflow shutdown complete")
	return nil
}
