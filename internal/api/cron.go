/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/friendsincode/cadence/internal/models"
)

// handleCronSchedulePosts runs one scheduler pass on demand. External cron
// services use it when the deployment cannot run the background loop.
func (a *API) handleCronSchedulePosts(w http.ResponseWriter, r *http.Request) {
	a.scheduler.Tick(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}

type readyPost struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	AccountName    string     `json:"account_name"`
	MakeConnection string     `json:"make_connection"`
	ImageURL       string     `json:"image_url"`
	Caption        string     `json:"caption"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
}

// handleCronReadyToday lists posts whose slot falls on the current calendar
// day in the configured timezone, joined with their account for the workflow.
func (a *API) handleCronReadyToday(w http.ResponseWriter, r *http.Request) {
	loc := a.cfg.Location()
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var posts []models.Post
	if err := a.db.WithContext(r.Context()).
		Preload("Account").
		Where("status = ? AND scheduled_at >= ? AND scheduled_at < ?",
			models.PostScheduled, dayStart, dayEnd).
		Order("scheduled_at ASC").
		Find(&posts).Error; err != nil {
		a.logger.Error().Err(err).Msg("list ready posts failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]readyPost, 0, len(posts))
	for _, post := range posts {
		entry := readyPost{
			ID:          post.ID,
			AccountID:   post.AccountID,
			ImageURL:    post.ImageURL,
			Caption:     post.Caption(),
			ScheduledAt: post.ScheduledAt,
		}
		if post.Account != nil {
			entry.AccountName = post.Account.Name
			entry.MakeConnection = post.Account.MakeConnection
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, out)
}
