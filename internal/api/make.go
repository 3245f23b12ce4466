/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/models"
)

// handleMakePublished is the workflow's confirmation that a post went out.
// The scheduler keeps posts in scheduled state until this callback lands.
func (a *API) handleMakePublished(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostID == "" {
		writeError(w, http.StatusBadRequest, "post_id_required")
		return
	}

	var post models.Post
	err := a.db.WithContext(r.Context()).First(&post, "id = ?", req.PostID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load post failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if post.Status == models.PostPublished {
		// Workflow retries deliver the same callback more than once.
		writeJSON(w, http.StatusOK, post)
		return
	}

	now := time.Now()
	post.Status = models.PostPublished
	post.PublishedAt = &now
	if err := a.db.WithContext(r.Context()).Save(&post).Error; err != nil {
		a.logger.Error().Err(err).Msg("mark published failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventPostPublished, events.Payload{
		"post_id":    post.ID,
		"account_id": post.AccountID,
	})
	a.logger.Info().Str("post_id", post.ID).Msg("post published")

	writeJSON(w, http.StatusOK, post)
}

// handleMakeCaptionGenerated stores the caption the workflow produced for a
// draft.
func (a *API) handleMakeCaptionGenerated(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostID  string `json:"post_id"`
		Caption string `json:"caption"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostID == "" {
		writeError(w, http.StatusBadRequest, "post_id_required")
		return
	}
	if req.Caption == "" {
		writeError(w, http.StatusBadRequest, "caption_required")
		return
	}

	var post models.Post
	err := a.db.WithContext(r.Context()).First(&post, "id = ?", req.PostID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load post failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	post.AICaption = req.Caption
	if err := a.db.WithContext(r.Context()).Save(&post).Error; err != nil {
		a.logger.Error().Err(err).Msg("store caption failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventCaptionGenerated, events.Payload{
		"post_id":    post.ID,
		"account_id": post.AccountID,
	})
	a.logger.Info().Str("post_id", post.ID).Msg("caption stored")

	writeJSON(w, http.StatusOK, post)
}
