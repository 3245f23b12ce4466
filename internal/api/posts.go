/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/auth"
	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/models"
	"github.com/friendsincode/cadence/internal/webhooks"
)

type postCreateRequest struct {
	AccountID        string `json:"account_id"`
	ImageURL         string `json:"image_url"`
	ImageDescription string `json:"image_description"`
	AICaption        string `json:"ai_caption"`
	EditedCaption    string `json:"edited_caption"`
}

type postPatchRequest struct {
	ImageURL         *string `json:"image_url"`
	ImageDescription *string `json:"image_description"`
	AICaption        *string `json:"ai_caption"`
	EditedCaption    *string `json:"edited_caption"`
	Status           *string `json:"status"`
	ScheduledAt      *string `json:"scheduled_at"`
}

func (a *API) handlePostsList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	owned := a.db.WithContext(r.Context()).
		Model(&models.Account{}).
		Select("id").
		Where("user_id = ?", claims.UserID)

	query := a.db.WithContext(r.Context()).Where("account_id IN (?)", owned)

	if accountID := r.URL.Query().Get("account_id"); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		switch models.PostStatus(status) {
		case models.PostDraft, models.PostScheduled, models.PostPublished:
			query = query.Where("status = ?", status)
		default:
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
	}

	var posts []models.Post
	if err := query.Order("created_at DESC").Find(&posts).Error; err != nil {
		a.logger.Error().Err(err).Msg("list posts failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

func (a *API) handlePostsCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req postCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id_required")
		return
	}

	var account models.Account
	err := a.db.WithContext(r.Context()).First(&account, "id = ?", req.AccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && account.UserID != claims.UserID) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load account failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	post := models.Post{
		ID:               uuid.NewString(),
		AccountID:        account.ID,
		ImageURL:         req.ImageURL,
		ImageDescription: req.ImageDescription,
		AICaption:        req.AICaption,
		EditedCaption:    req.EditedCaption,
		Status:           models.PostDraft,
	}
	if err := a.db.WithContext(r.Context()).Create(&post).Error; err != nil {
		a.logger.Error().Err(err).Msg("create post failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.bus.Publish(events.EventPostCreated, events.Payload{
		"post_id":    post.ID,
		"account_id": post.AccountID,
	})

	writeJSON(w, http.StatusCreated, post)
}

func (a *API) handlePostsGet(w http.ResponseWriter, r *http.Request) {
	post, ok := a.loadOwnedPost(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (a *API) handlePostsUpdate(w http.ResponseWriter, r *http.Request) {
	post, ok := a.loadOwnedPost(w, r)
	if !ok {
		return
	}

	var req postPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.ImageURL != nil {
		post.ImageURL = *req.ImageURL
	}
	if req.ImageDescription != nil {
		post.ImageDescription = *req.ImageDescription
	}
	if req.AICaption != nil {
		post.AICaption = *req.AICaption
	}
	if req.EditedCaption != nil {
		post.EditedCaption = *req.EditedCaption
	}
	if req.ScheduledAt != nil {
		if *req.ScheduledAt == "" {
			post.ScheduledAt = nil
		} else {
			at, err := time.Parse(time.RFC3339, *req.ScheduledAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_scheduled_at")
				return
			}
			post.ScheduledAt = &at
			post.Status = models.PostScheduled
		}
	}
	if req.Status != nil {
		switch models.PostStatus(*req.Status) {
		case models.PostDraft:
			post.Status = models.PostDraft
			post.ScheduledAt = nil
		case models.PostScheduled:
			if post.ScheduledAt == nil {
				writeError(w, http.StatusBadRequest, "scheduled_at_required")
				return
			}
			post.Status = models.PostScheduled
		default:
			// published is set by the workflow callback, not by edits.
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
	}

	if err := a.db.WithContext(r.Context()).Save(&post).Error; err != nil {
		a.logger.Error().Err(err).Msg("update post failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (a *API) handlePostsDelete(w http.ResponseWriter, r *http.Request) {
	post, ok := a.loadOwnedPost(w, r)
	if !ok {
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&post).Error; err != nil {
		a.logger.Error().Err(err).Msg("delete post failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Locally stored image goes with the post. Failures are left to the
	// orphan scanner.
	if rel := strings.TrimPrefix(post.ImageURL, "/uploads/"); rel != post.ImageURL && rel != "" {
		if err := a.media.Delete(r.Context(), rel); err != nil {
			a.logger.Warn().Err(err).Str("post_id", post.ID).Msg("image cleanup failed")
		}
	}

	a.bus.Publish(events.EventPostDeleted, events.Payload{
		"post_id":    post.ID,
		"account_id": post.AccountID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handlePostsPublish pushes a post to the workflow immediately, outside its
// slot. Status stays as-is until the workflow confirms via /make/published.
func (a *API) handlePostsPublish(w http.ResponseWriter, r *http.Request) {
	post, ok := a.loadOwnedPost(w, r)
	if !ok {
		return
	}
	if post.Status == models.PostPublished {
		writeError(w, http.StatusConflict, "already_published")
		return
	}
	if !post.HasCaption() {
		writeError(w, http.StatusConflict, "caption_required")
		return
	}

	a.webhooks.Deliver(r.Context(), webhooks.EventPublishPost, &post)

	a.logger.Info().Str("post_id", post.ID).Msg("manual publish requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "delivery_requested"})
}

// handlePostsBulkUpload accepts multiple images in one multipart request,
// creates a draft per image, and asks the workflow for captions.
func (a *API) handlePostsBulkUpload(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(a.cfg.MaxUploadSizeBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}

	accountID := r.FormValue("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id_required")
		return
	}

	var account models.Account
	err := a.db.WithContext(r.Context()).First(&account, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && account.UserID != claims.UserID) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load account failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "images_required")
		return
	}

	created := make([]models.Post, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_file")
			return
		}

		postID := uuid.NewString()
		path, err := a.media.Store(r.Context(), account.ID, postID, header.Filename, file)
		file.Close()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error")
			return
		}

		post := models.Post{
			ID:        postID,
			AccountID: account.ID,
			ImageURL:  a.media.URL(path),
			Status:    models.PostDraft,
		}
		if err := a.db.WithContext(r.Context()).Create(&post).Error; err != nil {
			a.logger.Error().Err(err).Msg("create bulk post failed")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		a.bus.Publish(events.EventPostCreated, events.Payload{
			"post_id":    post.ID,
			"account_id": post.AccountID,
		})
		a.bus.Publish(events.EventCaptionRequested, events.Payload{"post_id": post.ID})
		created = append(created, post)
	}

	a.logger.Info().
		Str("account_id", account.ID).
		Int("posts", len(created)).
		Msg("bulk upload complete")

	writeJSON(w, http.StatusCreated, created)
}

// loadOwnedPost fetches the URL post with its account preloaded and verifies
// the session owns the account. Writes the error response on ok=false.
func (a *API) loadOwnedPost(w http.ResponseWriter, r *http.Request) (models.Post, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return models.Post{}, false
	}

	postID := chi.URLParam(r, "postID")
	if postID == "" {
		writeError(w, http.StatusBadRequest, "post_id_required")
		return models.Post{}, false
	}

	var post models.Post
	err := a.db.WithContext(r.Context()).Preload("Account").First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Post{}, false
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load post failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return models.Post{}, false
	}

	if post.Account == nil || post.Account.UserID != claims.UserID {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Post{}, false
	}

	return post, true
}
