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

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/auth"
	"github.com/friendsincode/cadence/internal/models"
)

const sessionTTL = 7 * 24 * time.Hour

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "email_required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	var existing models.User
	err := a.db.WithContext(r.Context()).First(&existing, "email = ?", req.Email).Error
	if err == nil {
		writeError(w, http.StatusConflict, "email_taken")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		a.logger.Error().Err(err).Msg("register lookup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.logger.Error().Err(err).Msg("password hash failed")
		writeError(w, http.StatusInternalServerError, "hash_error")
		return
	}

	user := models.User{
		ID:       uuid.NewString(),
		Email:    req.Email,
		Password: hash,
	}
	if err := a.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		a.logger.Error().Err(err).Msg("create user failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.logger.Info().Str("user_id", user.ID).Msg("user registered")
	a.issueSession(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := a.db.WithContext(r.Context()).First(&user, "email = ?", req.Email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("login lookup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	a.issueSession(w, http.StatusOK, user)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var user models.User
	err := a.db.WithContext(r.Context()).First(&user, "id = ?", claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("me lookup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

func (a *API) issueSession(w http.ResponseWriter, status int, user models.User) {
	token, err := auth.Issue(a.jwtSecret, auth.Claims{UserID: user.ID, Email: user.Email}, sessionTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("issue token failed")
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.cfg.Environment == "production",
	})

	writeJSON(w, status, sessionResponse{
		Token: token,
		User:  userResponse{ID: user.ID, Email: user.Email},
	})
}
