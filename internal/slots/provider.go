/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package slots resolves an account's stored recurrence configuration into
// concrete future posting slots, anchored on what is already scheduled.
package slots

import (
	"context"
	"errors"
	"time"

	"github.com/friendsincode/cadence/internal/models"
	"github.com/friendsincode/cadence/internal/recurrence"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Provider computes next available posting slots for managed accounts.
type Provider struct {
	db     *gorm.DB
	calc   *recurrence.Calculator
	logger zerolog.Logger
}

// New constructs the slot provider.
func New(db *gorm.DB, calc *recurrence.Calculator, logger zerolog.Logger) *Provider {
	return &Provider{
		db:     db,
		calc:   calc,
		logger: logger.With().Str("component", "slots").Logger(),
	}
}

// NextAvailableSlots returns count future slots for the account, starting
// after the later of startAfter, the latest already-scheduled post, and now.
// A nil startAfter means "no explicit starting point". An unknown account
// yields an empty slice rather than an error so callers can treat a fresh
// or deleted account uniformly.
func (p *Provider) NextAvailableSlots(ctx context.Context, accountID string, count int, startAfter *time.Time) ([]time.Time, error) {
	var account models.Account
	err := p.db.WithContext(ctx).First(&account, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.logger.Debug().Str("account", accountID).Msg("slot request for unknown account")
		return []time.Time{}, nil
	}
	if err != nil {
		return nil, err
	}

	start, err := p.resolveStart(ctx, accountID, startAfter)
	if err != nil {
		return nil, err
	}

	policy := recurrence.ParsePolicy(
		account.PostingPeriod,
		account.PostingFrequency,
		account.PostingDay,
		account.PostingHour,
		p.calc.Defaults(),
	)
	return p.calc.CalculateSlots(policy, count, start), nil
}

// resolveStart picks the anchoring instant: an explicit override wins, then
// the latest scheduled post so new slots extend the existing queue, then now.
func (p *Provider) resolveStart(ctx context.Context, accountID string, startAfter *time.Time) (time.Time, error) {
	if startAfter != nil {
		return *startAfter, nil
	}

	var latest models.Post
	err := p.db.WithContext(ctx).
		Where("account_id = ? AND status = ? AND scheduled_at IS NOT NULL", accountID, models.PostScheduled).
		Order("scheduled_at DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Now(), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return *latest.ScheduledAt, nil
}
