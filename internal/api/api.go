/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface: account and post management for
// authenticated users, workflow callbacks, and cron triggers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/auth"
	"github.com/friendsincode/cadence/internal/cache"
	"github.com/friendsincode/cadence/internal/config"
	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/media"
	"github.com/friendsincode/cadence/internal/recurrence"
	"github.com/friendsincode/cadence/internal/scheduler"
	"github.com/friendsincode/cadence/internal/slots"
	"github.com/friendsincode/cadence/internal/webhooks"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	cfg       *config.Config
	jwtSecret []byte
	calc      *recurrence.Calculator
	slots     *slots.Provider
	scheduler *scheduler.Service
	media     *media.Service
	webhooks  *webhooks.Service
	cache     *cache.Cache
	bus       events.PubSub
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, cfg *config.Config, calc *recurrence.Calculator, slotProvider *slots.Provider, sched *scheduler.Service, mediaSvc *media.Service, webhookSvc *webhooks.Service, accountCache *cache.Cache, bus events.PubSub, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSigningKey),
		calc:      calc,
		slots:     slotProvider,
		scheduler: sched,
		media:     mediaSvc,
		webhooks:  webhookSvc,
		cache:     accountCache,
		bus:       bus,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Session endpoints; register/login issue their own tokens.
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/logout", a.handleLogout)

		// Workflow callbacks (shared-secret header, no session)
		r.Route("/make", func(r chi.Router) {
			r.Use(a.requireWebhookSecret)
			r.Post("/published", a.handleMakePublished)
			r.Post("/caption-generated", a.handleMakeCaptionGenerated)
		})

		// Cron triggers (shared-secret header, no session)
		r.Route("/cron", func(r chi.Router) {
			r.Use(a.requireCronSecret)
			r.Post("/schedule-posts", a.handleCronSchedulePosts)
			r.Get("/ready-today", a.handleCronReadyToday)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Get("/auth/me", a.handleMe)

			pr.Route("/accounts", func(r chi.Router) {
				r.Get("/", a.handleAccountsList)
				r.Post("/", a.handleAccountsCreate)
				r.Post("/preview-slots", a.handlePreviewSlots)
				r.Route("/{accountID}", func(r chi.Router) {
					r.Get("/", a.handleAccountsGet)
					r.Patch("/", a.handleAccountsUpdate)
					r.Delete("/", a.handleAccountsDelete)
					r.Get("/slots", a.handleAccountSlots)
					r.Post("/generate-captions", a.handleGenerateCaptions)
				})
			})

			pr.Route("/posts", func(r chi.Router) {
				r.Get("/", a.handlePostsList)
				r.Post("/", a.handlePostsCreate)
				r.Post("/bulk-upload", a.handlePostsBulkUpload)
				r.Route("/{postID}", func(r chi.Router) {
					r.Get("/", a.handlePostsGet)
					r.Patch("/", a.handlePostsUpdate)
					r.Delete("/", a.handlePostsDelete)
					r.Post("/publish", a.handlePostsPublish)
				})
			})

			pr.Post("/uploads/image", a.handleImageUpload)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

// requireWebhookSecret guards workflow callback endpoints.
func (a *API) requireWebhookSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.WebhookSecret == "" || r.Header.Get("X-Webhook-Secret") != a.cfg.WebhookSecret {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCronSecret guards cron trigger endpoints.
func (a *API) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.CronSecret == "" || r.Header.Get("X-Cron-Secret") != a.cfg.CronSecret {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
