/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, the scheduler, and the HTTP
// surface into one process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/api"
	"github.com/friendsincode/cadence/internal/cache"
	"github.com/friendsincode/cadence/internal/config"
	"github.com/friendsincode/cadence/internal/db"
	"github.com/friendsincode/cadence/internal/eventbus"
	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/leadership"
	"github.com/friendsincode/cadence/internal/media"
	"github.com/friendsincode/cadence/internal/recurrence"
	"github.com/friendsincode/cadence/internal/scheduler"
	"github.com/friendsincode/cadence/internal/slots"
	"github.com/friendsincode/cadence/internal/telemetry"
	"github.com/friendsincode/cadence/internal/webhooks"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db                   *gorm.DB
	cache                *cache.Cache
	bus                  events.PubSub
	api                  *api.API
	scheduler            *scheduler.Service
	leaderAwareScheduler *scheduler.LeaderAwareScheduler
	webhookSvc           *webhooks.Service
	mediaSvc             *media.Service

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("cadence-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Bulk uploads can legitimately outlive the request timeout.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/posts/bulk-upload" || r.URL.Path == "/api/v1/uploads/image" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Header deadline protects against slowloris without cutting off
		// large image uploads mid-body.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline' data: blob: https: http:; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.S3Bucket == "" {
		if err := os.MkdirAll(s.cfg.UploadRoot, 0755); err != nil {
			return fmt.Errorf("create upload root %s: %w", s.cfg.UploadRoot, err)
		}
		s.logger.Info().Str("path", s.cfg.UploadRoot).Msg("upload directory ready")
	}

	s.bus = s.buildEventBus()

	// Redis account cache; the app runs fine without it.
	if s.cfg.RedisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		accountCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = accountCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	calc := recurrence.NewCalculator(recurrence.StandardDefaults(), s.cfg.Location())
	slotProvider := slots.New(database, calc, s.logger)

	s.scheduler = scheduler.New(database, slotProvider, s.bus, s.cfg.SchedulerInterval, s.cfg.SchedulerQueueDepth, s.logger)

	if s.cfg.LeaderElectionEnabled {
		electionConfig := leadership.ElectionConfig{
			RedisAddr:       s.cfg.RedisAddr,
			RedisPassword:   s.cfg.RedisPassword,
			RedisDB:         s.cfg.RedisDB,
			ElectionKey:     "cadence:leader:scheduler",
			LeaseDuration:   15 * time.Second,
			RenewalInterval: 5 * time.Second,
			RetryInterval:   2 * time.Second,
			InstanceID:      s.cfg.InstanceID,
		}

		election, err := leadership.NewElection(electionConfig, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}

		s.leaderAwareScheduler = scheduler.NewLeaderAware(s.scheduler, election, s.logger)
		s.DeferClose(func() error { return s.leaderAwareScheduler.Stop() })

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", electionConfig.InstanceID).
			Msg("leader election enabled for scheduler")
	}

	mediaService, err := media.NewService(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("initialize media service: %w", err)
	}
	s.mediaSvc = mediaService

	s.webhookSvc = webhooks.NewService(database, s.bus, s.cfg.MakeWebhookURL, s.cfg.WebhookSecret, s.logger)

	s.api = api.New(database, s.cfg, calc, slotProvider, s.scheduler, mediaService, s.webhookSvc, s.cache, s.bus, s.logger)

	return nil
}

// buildEventBus picks NATS, then redis, then in-process delivery. Both
// distributed backends degrade to local delivery when unreachable.
func (s *Server) buildEventBus() events.PubSub {
	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsBus, err := eventbus.NewNATSBus(natsCfg, s.logger)
		if err == nil {
			s.DeferClose(natsBus.Close)
			return natsBus
		}
		s.logger.Warn().Err(err).Msg("NATS event bus failed, falling back")
	}

	if s.cfg.RedisAddr != "" {
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		redisBus, err := eventbus.NewRedisBus(redisCfg, s.cfg.InstanceID, s.logger)
		if err == nil {
			s.DeferClose(redisBus.Close)
			return redisBus
		}
		s.logger.Warn().Err(err).Msg("redis event bus failed, falling back")
	}

	return events.NewBus()
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Scheduler loop (leader-aware if configured, otherwise direct).
	if s.leaderAwareScheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.leaderAwareScheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("leader-aware scheduler exited")
			}
		}()
	} else {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("scheduler loop exited")
			}
		}()
	}

	// Outbound workflow deliveries.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.webhookSvc.Start(ctx)
	}()

	// Database pool metrics.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached account entries when another
// instance mutates them. Local mutations invalidate inline in the API.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	created := s.bus.Subscribe(events.EventAccountCreated)
	updated := s.bus.Subscribe(events.EventAccountUpdated)
	deleted := s.bus.Subscribe(events.EventAccountDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventAccountCreated, created)
		s.bus.Unsubscribe(events.EventAccountUpdated, updated)
		s.bus.Unsubscribe(events.EventAccountDeleted, deleted)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	invalidate := func(payload events.Payload) {
		accountID, _ := payload["account_id"].(string)
		if accountID == "" {
			return
		}
		userID, _ := payload["user_id"].(string)
		if err := s.cache.InvalidateAccount(ctx, accountID, userID); err != nil {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("cache invalidation failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload := <-created:
			invalidate(payload)
		case payload := <-updated:
			invalidate(payload)
		case payload := <-deleted:
			invalidate(payload)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`
		if s.leaderAwareScheduler != nil {
			if s.leaderAwareScheduler.IsLeader() {
				response += `,"leader":true`
			} else {
				response += `,"leader":false`
			}
		}
		response += `}`
		_, _ = w.Write([]byte(response))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	// Locally stored post images.
	if s.cfg.S3Bucket == "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadRoot)))
		s.router.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
			fileServer.ServeHTTP(w, r)
		})
	}

	s.api.Routes(s.router)
}
