/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package webhooks delivers outbound workflow notifications. Posts whose
// slot has arrived and caption generation requests are pushed to a Make.com
// scenario; the scenario calls back through the API's /api/v1/make endpoints.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/models"
	"github.com/friendsincode/cadence/internal/telemetry"
)

// Outbound event names.
const (
	EventPublishPost     = "publish_post"
	EventGenerateCaption = "generate_caption"
	EventTest            = "test"
)

// PostPayload is the post section of an outbound notification.
type PostPayload struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	AccountName      string     `json:"account_name,omitempty"`
	MakeConnection   string     `json:"make_connection,omitempty"`
	ImageURL         string     `json:"image_url,omitempty"`
	ImageDescription string     `json:"image_description,omitempty"`
	ContextPrompt    string     `json:"context_prompt,omitempty"`
	Caption          string     `json:"caption,omitempty"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
}

// Payload is the body sent to the Make.com scenario.
type Payload struct {
	Event     string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Post      *PostPayload `json:"post,omitempty"`
}

// Service handles webhook delivery.
type Service struct {
	db        *gorm.DB
	bus       events.PubSub
	targetURL string
	secret    string
	logger    zerolog.Logger
	client    *http.Client
}

// NewService creates a new webhook service. targetURL is the Make.com
// scenario trigger; secret signs every delivery when non-empty.
func NewService(db *gorm.DB, bus events.PubSub, targetURL, secret string, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		bus:       bus,
		targetURL: targetURL,
		secret:    secret,
		logger:    logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start begins listening for events to trigger webhooks.
func (s *Service) Start(ctx context.Context) {
	if s.targetURL == "" {
		s.logger.Info().Msg("no webhook target configured, delivery disabled")
		return
	}

	publishDue := s.bus.Subscribe(events.EventPostPublishDue)
	captionReq := s.bus.Subscribe(events.EventCaptionRequested)

	defer func() {
		s.bus.Unsubscribe(events.EventPostPublishDue, publishDue)
		s.bus.Unsubscribe(events.EventCaptionRequested, captionReq)
	}()

	s.logger.Info().Str("target", s.targetURL).Msg("webhook service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("webhook service stopping")
			return

		case payload := <-publishDue:
			s.handlePostEvent(ctx, payload, EventPublishPost)

		case payload := <-captionReq:
			s.handlePostEvent(ctx, payload, EventGenerateCaption)
		}
	}
}

// handlePostEvent loads the post named by a bus payload and delivers it.
func (s *Service) handlePostEvent(ctx context.Context, payload events.Payload, event string) {
	postID, ok := payload["post_id"].(string)
	if !ok || postID == "" {
		return
	}

	var post models.Post
	err := s.db.WithContext(ctx).Preload("Account").First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Str("post", postID).Msg("post vanished before webhook delivery")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("post", postID).Msg("failed to load post for webhook")
		return
	}

	s.Deliver(ctx, event, &post)
}

// Deliver sends one notification for the post and records the attempt.
func (s *Service) Deliver(ctx context.Context, event string, post *models.Post) {
	body, err := json.Marshal(Payload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Post:      postToPayload(post),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("post", post.ID).Msg("failed to marshal webhook payload")
		return
	}

	statusCode, err := s.send(ctx, s.targetURL, event, body)
	errMsg := ""
	outcome := "ok"
	if err != nil {
		errMsg = err.Error()
		outcome = "error"
		s.logger.Warn().Err(err).Str("post", post.ID).Str("event", event).Msg("webhook delivery failed")
	} else {
		s.logger.Debug().Str("post", post.ID).Str("event", event).Int("status", statusCode).Msg("webhook delivered")
	}
	telemetry.WebhookDeliveriesTotal.WithLabelValues(event, outcome).Inc()

	s.logDelivery(event, post.ID, statusCode, errMsg)
}

func (s *Service) send(ctx context.Context, url, event string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Cadence-Webhook/1.0")
	req.Header.Set("X-Cadence-Event", event)
	req.Header.Set("X-Cadence-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))

	if s.secret != "" {
		req.Header.Set("X-Cadence-Signature", s.signPayload(body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// signPayload creates an HMAC-SHA256 signature.
func (s *Service) signPayload(payload []byte) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func postToPayload(post *models.Post) *PostPayload {
	if post == nil {
		return nil
	}

	p := &PostPayload{
		ID:               post.ID,
		AccountID:        post.AccountID,
		ImageURL:         post.ImageURL,
		ImageDescription: post.ImageDescription,
		Caption:          post.Caption(),
		ScheduledAt:      post.ScheduledAt,
	}
	if post.Account != nil {
		p.AccountName = post.Account.Name
		p.MakeConnection = post.Account.MakeConnection
		p.ContextPrompt = post.Account.ContextPrompt
	}
	return p
}

// logDelivery records a webhook delivery attempt.
func (s *Service) logDelivery(event, postID string, statusCode int, errorMsg string) {
	log := &models.WebhookDelivery{
		ID:         uuid.NewString(),
		Event:      event,
		URL:        s.targetURL,
		PostID:     postID,
		StatusCode: statusCode,
		Error:      errorMsg,
	}

	if err := s.db.Create(log).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// TestWebhook sends a test payload to the configured target.
func (s *Service) TestWebhook(ctx context.Context) error {
	if s.targetURL == "" {
		return fmt.Errorf("no webhook target configured")
	}

	body, err := json.Marshal(Payload{
		Event:     EventTest,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if _, err := s.send(ctx, s.targetURL, EventTest, body); err != nil {
		return err
	}
	return nil
}
