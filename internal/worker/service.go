// Package worker provides the HTTP coaching service for nowadays-coach.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Lartitiz/nowadays-coach/internal/checklist"
	"github.com/Lartitiz/nowadays-coach/internal/coaching"
	"github.com/Lartitiz/nowadays-coach/internal/config"
	"github.com/Lartitiz/nowadays-coach/internal/db/brand"
	"github.com/Lartitiz/nowadays-coach/internal/db/sqlite"
	"github.com/Lartitiz/nowadays-coach/internal/inference"
	"github.com/Lartitiz/nowadays-coach/internal/insights"
	"github.com/Lartitiz/nowadays-coach/internal/profile"
	"github.com/Lartitiz/nowadays-coach/internal/protocol"
	"github.com/Lartitiz/nowadays-coach/internal/worker/sse"
	"github.com/Lartitiz/nowadays-coach/pkg/models"
)

// controllerKey identifies one live controller in the registry.
type controllerKey struct {
	userID   string
	category models.Category
}

// Service is the coaching worker: it owns the stores, the inference client
// and a registry of live session controllers keyed by (user, category).
type Service struct {
	version string
	config  *config.Config

	store      *sqlite.Store
	sessions   *sqlite.SessionStore
	brandStore *brand.Store
	registry   *checklist.Registry
	client     inference.Client
	insights   *insights.Router
	profiles   profile.Provider

	sseBroadcaster *sse.Broadcaster
	router         *chi.Mux
	server         *http.Server

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	ready     atomic.Bool

	mu          sync.RWMutex
	controllers map[controllerKey]*coaching.Controller
}

// NewService wires a worker service over an initialized store and checklist
// registry.
func NewService(cfg *config.Config, version string, store *sqlite.Store, registry *checklist.Registry, client inference.Client) (*Service, error) {
	brandStore, err := brand.NewStore(store.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize brand store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        version,
		config:         cfg,
		store:          store,
		sessions:       sqlite.NewSessionStore(store, registry),
		brandStore:     brandStore,
		registry:       registry,
		client:         client,
		insights:       insights.NewRouter(brandStore, client),
		profiles:       profile.NewStoreProvider(brandStore),
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		controllers:    make(map[controllerKey]*coaching.Controller),
	}

	svc.setupRoutes()
	svc.ready.Store(true)
	return svc, nil
}

// controller returns the live controller for (user, category), creating it on
// first use. Controllers are long-lived; their in-memory session is the
// authoritative copy between saves.
func (s *Service) controller(userID string, category models.Category) *coaching.Controller {
	key := controllerKey{userID: userID, category: category}

	s.mu.RLock()
	ctrl, ok := s.controllers[key]
	s.mu.RUnlock()
	if ok {
		return ctrl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl, ok := s.controllers[key]; ok {
		return ctrl
	}

	ctrl = coaching.NewController(coaching.Config{
		UserID:   userID,
		Category: category,
		Sessions: s.sessions,
		Registry: s.registry,
		Strategy: protocol.ForCategory(category, s.client),
		Router:   s.insights,
		Profile:  s.profiles,
	})
	s.controllers[key] = ctrl
	return ctrl
}

// setupRoutes configures the HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/events", s.sseBroadcaster.HandleSSE)

	s.router.Route("/api/coaching/{category}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/start", s.handleStart)
		r.Post("/answer", s.handleAnswer)
		r.Post("/retry", s.handleRetry)
		r.Post("/reset", s.handleReset)
	})
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.config.WorkerPort).Str("version", s.version).Msg("Coaching worker listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Shutdown stops background work and releases the service context.
func (s *Service) Shutdown() {
	s.cancel()
}
