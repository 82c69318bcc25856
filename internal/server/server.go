// Package server assembles the relay from configuration: database, stores,
// backend client, session manager, janitor, and the health endpoint.
package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/calibot/assistant-relay/pkg/access"
	"github.com/calibot/assistant-relay/pkg/assistant"
	"github.com/calibot/assistant-relay/pkg/database/migrate"
	"github.com/calibot/assistant-relay/pkg/health"
	"github.com/calibot/assistant-relay/pkg/relay"
	"github.com/calibot/assistant-relay/pkg/thread"
	threadpg "github.com/calibot/assistant-relay/pkg/thread/postgres"
	"github.com/calibot/assistant-relay/pkg/usage"
	usagepg "github.com/calibot/assistant-relay/pkg/usage/postgres"
	"github.com/calibot/assistant-relay/pkg/userdir"
	userdirpg "github.com/calibot/assistant-relay/pkg/userdir/postgres"
)

// Version is set at build time.
var Version = "dev"

const httpShutdownGrace = 5 * time.Second

// Server is the assembled relay process.
type Server struct {
	// Manager handles inbound messages; the chat platform boundary calls it.
	Manager *relay.Manager

	// Gate is exposed so the platform boundary can refresh bot roles.
	Gate *access.Gate

	// Health tracks readiness for the health endpoints.
	Health *health.Checker

	db       *sql.DB
	janitor  *thread.Janitor
	store    thread.Store
	recorder usage.Recorder
	httpSrv  *http.Server
	logger   *slog.Logger
}

// New assembles a relay from the configuration. The janitor is started and
// the health server, when configured, begins serving; call Close for a clean
// shutdown.
func New(cfg *relay.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{logger: logger}

	if err := s.setupStorage(cfg); err != nil {
		return nil, err
	}

	backend := assistant.NewClient(assistant.Config{
		BaseURL:     cfg.Assistant.BaseURL,
		APIKey:      cfg.Assistant.APIKey,
		AssistantID: cfg.Assistant.AssistantID,
		Timeout:     cfg.Assistant.Timeout,
		Truncation:  cfg.Assistant.Truncation,
	})

	s.Gate = access.NewGate(cfg.Access.AllowedRoles)
	s.Manager = relay.NewManager(relay.ManagerConfig{
		Store:        s.store,
		Backend:      backend,
		Recorder:     s.recorder,
		Directory:    s.directory(cfg),
		Gate:         s.Gate,
		Fetcher:      relay.NewHTTPFetcher(cfg.Relay.DownloadTimeout, cfg.Relay.MaxAttachmentBytes),
		Logger:       logger,
		MessageLimit: cfg.Relay.MessageLimit,
	})

	s.janitor = thread.NewJanitor(s.store, s.Manager.Cache(),
		cfg.Cache.JanitorInterval, cfg.Cache.StaleThreshold, logger)
	s.janitor.Start()

	// A nil *sql.DB must not become a non-nil Pinger.
	var pinger health.Pinger
	if s.db != nil {
		pinger = s.db
	}
	s.Health = health.NewChecker(pinger)
	if cfg.Server.HealthAddress != "" {
		s.serveHealth(cfg.Server.HealthAddress)
	}
	s.Health.SetReady()

	return s, nil
}

// setupStorage opens the database and picks store implementations. An empty
// DSN selects in-memory state with usage going to the log.
func (s *Server) setupStorage(cfg *relay.Config) error {
	if cfg.Database.DSN == "" {
		s.logger.Warn("no database configured, sessions will not survive restarts")
		s.store = thread.NewMemoryStore()
		s.recorder = usage.NewSlogRecorder(s.logger)
		return nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if cfg.Database.Migrate {
		if err := migrate.Run(db); err != nil {
			_ = db.Close()
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	s.db = db
	s.store = threadpg.New(db)
	s.recorder = usagepg.New(db)
	return nil
}

// directory returns the user directory matching the storage mode.
func (s *Server) directory(_ *relay.Config) userdir.Directory {
	if s.db == nil {
		return userdir.NewMemoryDirectory()
	}
	return userdirpg.New(s.db)
}

// serveHealth starts the liveness/readiness HTTP listener.
func (s *Server) serveHealth(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.Health.LivenessHandler())
	mux.HandleFunc("/readyz", s.Health.ReadinessHandler())

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: httpShutdownGrace,
	}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server failed", "error", err)
		}
	}()
}

// Close drains the process: stops the janitor, the health listener, and the
// database.
func (s *Server) Close() error {
	if s.Health != nil {
		s.Health.SetDraining()
	}
	if s.janitor != nil {
		_ = s.janitor.Close()
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
	if s.recorder != nil {
		_ = s.recorder.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}
