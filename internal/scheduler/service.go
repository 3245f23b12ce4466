/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler keeps every account's posting queue topped up and hands
// posts to delivery when their slot arrives.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/models"
	"github.com/friendsincode/cadence/internal/slots"
	"github.com/friendsincode/cadence/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Service orchestrates recurring post scheduling.
type Service struct {
	db         *gorm.DB
	provider   *slots.Provider
	bus        events.PubSub
	logger     zerolog.Logger
	interval   time.Duration
	queueDepth int

	mu           sync.Mutex
	lastDispatch time.Time
	now          func() time.Time
}

// New constructs the scheduler service. queueDepth is how many scheduled
// posts each account should have waiting at any time.
func New(db *gorm.DB, provider *slots.Provider, bus events.PubSub, interval time.Duration, queueDepth int, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if queueDepth <= 0 {
		queueDepth = 5
	}
	return &Service{
		db:         db,
		provider:   provider,
		bus:        bus,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		interval:   interval,
		queueDepth: queueDepth,
		now:        time.Now,
	}
}

// Run executes the scheduler loop until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Int("queue_depth", s.queueDepth).Msg("scheduler loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass: fill queues, then dispatch due posts.
// Exposed so the cron endpoints can force a pass outside the loop; passes
// are serialized so a forced tick cannot race the ticker goroutine.
func (s *Service) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	telemetry.SchedulerTicksTotal.Inc()

	var accounts []models.Account
	if err := s.db.WithContext(ctx).Find(&accounts).Error; err != nil {
		s.logger.Error().Err(err).Msg("scheduler failed to load accounts")
		telemetry.SchedulerErrorsTotal.WithLabelValues("", "load_accounts").Inc()
		return
	}

	for _, account := range accounts {
		if err := s.topUpAccount(ctx, account); err != nil {
			s.logger.Warn().Err(err).Str("account", account.ID).Msg("account top-up failed")
			telemetry.SchedulerErrorsTotal.WithLabelValues(account.ID, "top_up").Inc()
		}
	}

	s.dispatchDue(ctx)
}

// topUpAccount assigns posting slots to captioned drafts until the account
// holds queueDepth scheduled posts. Drafts without a caption are skipped:
// there is nothing to publish yet.
func (s *Service) topUpAccount(ctx context.Context, account models.Account) error {
	var scheduled int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("account_id = ? AND status = ? AND scheduled_at > ?", account.ID, models.PostScheduled, s.now()).
		Count(&scheduled).Error; err != nil {
		return err
	}

	missing := s.queueDepth - int(scheduled)
	if missing <= 0 {
		return nil
	}

	var drafts []models.Post
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", account.ID, models.PostDraft).
		Order("created_at ASC").
		Limit(missing).
		Find(&drafts).Error; err != nil {
		return err
	}

	ready := drafts[:0]
	for _, draft := range drafts {
		if draft.HasCaption() {
			ready = append(ready, draft)
		}
	}
	if len(ready) == 0 {
		return nil
	}

	slotTimes, err := s.provider.NextAvailableSlots(ctx, account.ID, len(ready), nil)
	if err != nil {
		return err
	}

	for i := range ready {
		if i >= len(slotTimes) {
			break
		}
		slot := slotTimes[i]
		update := map[string]any{
			"status":       models.PostScheduled,
			"scheduled_at": slot,
		}
		if err := s.db.WithContext(ctx).Model(&models.Post{}).
			Where("id = ? AND status = ?", ready[i].ID, models.PostDraft).
			Updates(update).Error; err != nil {
			return err
		}

		telemetry.PostsScheduledTotal.Inc()
		s.logger.Info().
			Str("account", account.ID).
			Str("post", ready[i].ID).
			Time("slot", slot).
			Msg("post scheduled")
		s.bus.Publish(events.EventPostScheduled, events.Payload{
			"post_id":      ready[i].ID,
			"account_id":   account.ID,
			"scheduled_at": slot,
		})
	}
	return nil
}

// dispatchDue emits publish_due for posts whose slot arrived since the last
// pass. The first pass after startup has an open lower bound, so posts that
// came due while the process was down are still dispatched. The post stays
// scheduled until the delivery pipeline confirms it.
func (s *Service) dispatchDue(ctx context.Context) {
	now := s.now()
	since := s.lastDispatch
	s.lastDispatch = now

	var due []models.Post
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at >= ? AND scheduled_at < ?", models.PostScheduled, since, now).
		Order("scheduled_at ASC").
		Find(&due).Error; err != nil {
		s.logger.Error().Err(err).Msg("scheduler failed to load due posts")
		telemetry.SchedulerErrorsTotal.WithLabelValues("", "dispatch_due").Inc()
		return
	}

	for _, post := range due {
		telemetry.PostsPublishDueTotal.Inc()
		s.logger.Info().Str("post", post.ID).Str("account", post.AccountID).Msg("post due for publishing")
		s.bus.Publish(events.EventPostPublishDue, events.Payload{
			"post_id":    post.ID,
			"account_id": post.AccountID,
		})
	}
}
