/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/auth"
	"github.com/friendsincode/cadence/internal/models"
)

var allowedImageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
}

// handleImageUpload stores a single image for an account. When post_id names
// an existing draft the stored URL is attached to it, otherwise the caller
// gets the URL back to use on a later post create.
func (a *API) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadSizeBytes())
	if err := r.ParseMultipartForm(a.cfg.MaxUploadSizeBytes()); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
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

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedImageExtensions[ext]; !ok {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_type")
		return
	}

	postID := r.FormValue("post_id")
	attach := false
	var post models.Post
	if postID != "" {
		err := a.db.WithContext(r.Context()).First(&post, "id = ? AND account_id = ?", postID, account.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		if err != nil {
			a.logger.Error().Err(err).Msg("load post failed")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		attach = true
	} else {
		postID = uuid.NewString()
	}

	path, err := a.media.Store(r.Context(), account.ID, postID, header.Filename, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error")
		return
	}
	url := a.media.URL(path)

	if attach {
		if err := a.db.WithContext(r.Context()).Model(&post).Update("image_url", url).Error; err != nil {
			a.logger.Error().Err(err).Msg("attach image failed")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"url":  url,
		"path": path,
	})
}
