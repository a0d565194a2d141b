package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/broadcast"
	"github.com/ziadkadry99/privacypilot/internal/certificate"
	"github.com/ziadkadry99/privacypilot/internal/consent"
	"github.com/ziadkadry99/privacypilot/internal/dashboard"
	"github.com/ziadkadry99/privacypilot/internal/db"
	"github.com/ziadkadry99/privacypilot/internal/docstore"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/llm"
	"github.com/ziadkadry99/privacypilot/internal/mcp"
	"github.com/ziadkadry99/privacypilot/internal/metrics"
	"github.com/ziadkadry99/privacypilot/internal/notifications"
	"github.com/ziadkadry99/privacypilot/internal/optimizer"
	"github.com/ziadkadry99/privacypilot/internal/policy"
	"github.com/ziadkadry99/privacypilot/internal/sandbox"
)

// Config holds server configuration.
type Config struct {
	Port     int
	UserID   string // compliance anchor
	SiteID   string
	AllowAll bool // allow all CORS origins (dev mode)
	// SandboxInterval is the simulated tracker ping period; zero disables the loop.
	SandboxInterval time.Duration
	WriteTimeout    time.Duration
}

// Server owns the policy store and every component that reads or feeds it.
type Server struct {
	cfg        Config
	db         *db.DB
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	policy     *policy.Store
	docs       *docstore.Store
	audit      *audit.Store
	trackers   *inventory.Store
	syncer     *consent.Syncer
	hub        *broadcast.Hub
	sandbox    *sandbox.Sandbox
	cert       *certificate.Generator
	mcp        *mcp.Server
	notifier   *notifications.Store
	dispatcher *notifications.Dispatcher
	untrack    func()
	stopWatch  func()
	router     chi.Router
	httpServer *http.Server
}

// New creates the server and all its components. llmProvider may be nil, in
// which case the optimizer always returns its fallback suggestions.
func New(cfg Config, database *db.DB, llmProvider llm.Provider) *Server {
	s := &Server{
		cfg:      cfg,
		db:       database,
		registry: prometheus.NewRegistry(),
		policy:   policy.New(),
		docs:     docstore.NewStore(database),
	}

	s.metrics = metrics.New(s.registry)
	s.untrack = s.metrics.Track(s.policy)
	s.audit = audit.NewStore(s.docs)
	s.trackers = inventory.NewStore(s.docs)
	s.syncer = consent.NewSyncer(s.policy, s.docs, s.audit, consent.SyncerConfig{
		UserID:       cfg.UserID,
		SiteID:       cfg.SiteID,
		WriteTimeout: cfg.WriteTimeout,
	},
		consent.WithMetrics(s.metrics),
		consent.WithPendingHandler(func() {
			log.Printf("consent: no record for %s, awaiting choice", cfg.UserID)
		}),
	)
	s.hub = broadcast.NewHub(s.policy, s.metrics, broadcast.WithAllowedOrigins(s.allowedOrigins()...))
	s.sandbox = sandbox.New(s.policy, s.trackers)
	s.cert = certificate.NewGenerator(cfg.UserID, s.syncer, s.trackers, s.audit)
	s.mcp = mcp.NewServer(s.policy, s.trackers, s.audit, cfg.UserID, s.metrics)
	s.notifier = notifications.NewStore(s.docs)
	s.dispatcher = notifications.NewDispatcher(s.notifier, s.metrics)
	s.dispatcher.Track(s.policy)

	s.router = s.buildRouter(optimizer.New(llmProvider))
	return s
}

// allowedOrigins is shared by CORS and the policy WebSocket.
func (s *Server) allowedOrigins() []string {
	if s.cfg.AllowAll {
		return []string{"*"}
	}
	return []string{"http://localhost:*", "http://127.0.0.1:*"}
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter(opt *optimizer.Optimizer) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Long-lived connections stay outside the request timeout.
	broadcast.RegisterRoutes(r, s.hub)
	mcp.RegisterRoutes(r, s.mcp)
	metrics.RegisterRoutes(r, s.metrics)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		consent.RegisterRoutes(r, s.syncer, s.policy, s.trackers, s.metrics)
		inventory.RegisterRoutes(r, s.trackers)
		audit.RegisterRoutes(r, s.audit, s.cfg.UserID)
		sandbox.RegisterRoutes(r, s.sandbox)
		certificate.RegisterRoutes(r, s.cert)
		optimizer.RegisterRoutes(r, opt)
		notifications.RegisterRoutes(r, s.notifier)
		dashboard.New(s.syncer, s.trackers, s.audit).RegisterRoutes(r)
	})

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.db }

// Policy returns the in-memory policy store.
func (s *Server) Policy() *policy.Store { return s.policy }

// Syncer returns the consent syncer.
func (s *Server) Syncer() *consent.Syncer { return s.syncer }

// Hub returns the policy broadcast hub.
func (s *Server) Hub() *broadcast.Hub { return s.hub }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins watching the stored consent record. The first delivery brings
// the policy in line with what was persisted before the server started.
func (s *Server) Start(ctx context.Context) error {
	stop, err := s.syncer.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting consent sync: %w", err)
	}
	s.stopWatch = stop
	return nil
}

// Run starts the consent watch, the sandbox loop and the HTTP listener, and
// blocks until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("privacypilot server listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.cfg.SandboxInterval > 0 {
		g.Go(func() error {
			s.sandbox.Run(ctx, s.cfg.SandboxInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown gracefully shuts down the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Close stops the consent watch, waits for in-flight durable writes and
// releases every policy subscriber.
func (s *Server) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.syncer.Wait()
	s.dispatcher.Close()
	s.hub.Close()
	s.sandbox.Close()
	s.untrack()
}
