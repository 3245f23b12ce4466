/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/auth"
	"github.com/friendsincode/cadence/internal/cache"
	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/models"
	"github.com/friendsincode/cadence/internal/recurrence"
	"github.com/friendsincode/cadence/internal/telemetry"
)

const maxPreviewSlots = 100

type accountRequest struct {
	Name             *string `json:"name"`
	MakeConnection   *string `json:"make_connection"`
	ContextPrompt    *string `json:"context_prompt"`
	PostingPeriod    *string `json:"posting_period"`
	PostingFrequency *int    `json:"posting_frequency"`
	PostingDay       *string `json:"posting_day"`
	PostingHour      *string `json:"posting_hour"`
}

// accountSummary is the list projection, also what the redis cache stores.
type accountSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	MakeConnection   string `json:"make_connection"`
	PostingPeriod    string `json:"posting_period"`
	PostingFrequency int    `json:"posting_frequency"`
	PostingDay       string `json:"posting_day"`
	PostingHour      string `json:"posting_hour"`
}

func summarize(acc models.Account) accountSummary {
	return accountSummary{
		ID:               acc.ID,
		Name:             acc.Name,
		MakeConnection:   acc.MakeConnection,
		PostingPeriod:    acc.PostingPeriod,
		PostingFrequency: acc.PostingFrequency,
		PostingDay:       acc.PostingDay,
		PostingHour:      acc.PostingHour,
	}
}

func (a *API) handleAccountsList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if a.cache != nil {
		if cached, ok := a.cache.GetUserAccounts(r.Context(), claims.UserID); ok {
			out := make([]accountSummary, 0, len(cached))
			for _, c := range cached {
				out = append(out, accountSummary{
					ID:               c.ID,
					Name:             c.Name,
					MakeConnection:   c.MakeConnection,
					PostingPeriod:    c.PostingPeriod,
					PostingFrequency: c.PostingFrequency,
					PostingDay:       c.PostingDay,
					PostingHour:      c.PostingHour,
				})
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
	}

	var accounts []models.Account
	if err := a.db.WithContext(r.Context()).
		Where("user_id = ?", claims.UserID).
		Order("name ASC").
		Find(&accounts).Error; err != nil {
		a.logger.Error().Err(err).Msg("list accounts failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]accountSummary, 0, len(accounts))
	cached := make([]cache.CachedAccount, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, summarize(acc))
		cached = append(cached, cache.CachedAccount{
			ID:               acc.ID,
			UserID:           acc.UserID,
			Name:             acc.Name,
			MakeConnection:   acc.MakeConnection,
			PostingPeriod:    acc.PostingPeriod,
			PostingFrequency: acc.PostingFrequency,
			PostingDay:       acc.PostingDay,
			PostingHour:      acc.PostingHour,
		})
	}
	if a.cache != nil {
		_ = a.cache.SetUserAccounts(r.Context(), claims.UserID, cached)
	}

	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleAccountsCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == nil || *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	account := models.Account{
		ID:               uuid.NewString(),
		UserID:           claims.UserID,
		Name:             *req.Name,
		PostingPeriod:    string(recurrence.PeriodWeekly),
		PostingFrequency: 1,
		PostingDay:       "monday",
		PostingHour:      "09:00",
	}
	applyAccountPatch(&account, req)

	if err := a.db.WithContext(r.Context()).Create(&account).Error; err != nil {
		a.logger.Error().Err(err).Msg("create account failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateAccount(r, account)
	a.bus.Publish(events.EventAccountCreated, events.Payload{"account_id": account.ID, "user_id": account.UserID})
	a.logger.Info().Str("account_id", account.ID).Msg("account created")

	writeJSON(w, http.StatusCreated, account)
}

func (a *API) handleAccountsGet(w http.ResponseWriter, r *http.Request) {
	account, ok := a.loadOwnedAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) handleAccountsUpdate(w http.ResponseWriter, r *http.Request) {
	account, ok := a.loadOwnedAccount(w, r)
	if !ok {
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	applyAccountPatch(&account, req)

	if err := a.db.WithContext(r.Context()).Save(&account).Error; err != nil {
		a.logger.Error().Err(err).Msg("update account failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateAccount(r, account)
	a.bus.Publish(events.EventAccountUpdated, events.Payload{"account_id": account.ID, "user_id": account.UserID})

	writeJSON(w, http.StatusOK, account)
}

func (a *API) handleAccountsDelete(w http.ResponseWriter, r *http.Request) {
	account, ok := a.loadOwnedAccount(w, r)
	if !ok {
		return
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return tx.Delete(&account).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("delete account failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateAccount(r, account)
	a.bus.Publish(events.EventAccountDeleted, events.Payload{"account_id": account.ID, "user_id": account.UserID})
	a.logger.Info().Str("account_id", account.ID).Msg("account deleted")

	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewSlots computes upcoming slots for an ad-hoc posting policy
// without touching any account. Used by the account form to show the effect
// of a cadence before saving it.
func (a *API) handlePreviewSlots(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Period     string `json:"period"`
		Frequency  int    `json:"frequency"`
		Day        string `json:"day"`
		Hour       string `json:"hour"`
		Count      int    `json:"count"`
		StartAfter string `json:"start_after"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	count := req.Count
	if count <= 0 {
		count = a.cfg.SchedulerQueueDepth
	}
	if count > maxPreviewSlots {
		count = maxPreviewSlots
	}

	startAfter := time.Now()
	if req.StartAfter != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartAfter)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_after")
			return
		}
		startAfter = parsed
	}

	policy := recurrence.ParsePolicy(req.Period, req.Frequency, req.Day, req.Hour, a.calc.Defaults())
	slots := a.calc.CalculateSlots(policy, count, startAfter)
	telemetry.SlotsCalculatedTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// handleAccountSlots returns the next posting slots for an existing account,
// chained from its latest scheduled post.
func (a *API) handleAccountSlots(w http.ResponseWriter, r *http.Request) {
	account, ok := a.loadOwnedAccount(w, r)
	if !ok {
		return
	}

	count := a.cfg.SchedulerQueueDepth
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_count")
			return
		}
		count = parsed
	}
	if count > maxPreviewSlots {
		count = maxPreviewSlots
	}

	var startAfter *time.Time
	if raw := r.URL.Query().Get("start_after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_after")
			return
		}
		startAfter = &parsed
	}

	slots, err := a.slots.NextAvailableSlots(r.Context(), account.ID, count, startAfter)
	if err != nil {
		a.logger.Error().Err(err).Str("account_id", account.ID).Msg("slot lookup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	telemetry.SlotsCalculatedTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"slots":      slots,
	})
}

// handleGenerateCaptions requests AI captions for every captionless draft of
// the account. The workflow calls back on /make/caption-generated.
func (a *API) handleGenerateCaptions(w http.ResponseWriter, r *http.Request) {
	account, ok := a.loadOwnedAccount(w, r)
	if !ok {
		return
	}

	var drafts []models.Post
	if err := a.db.WithContext(r.Context()).
		Where("account_id = ? AND status = ? AND ai_caption = '' AND edited_caption = ''",
			account.ID, models.PostDraft).
		Order("created_at ASC").
		Find(&drafts).Error; err != nil {
		a.logger.Error().Err(err).Msg("load captionless drafts failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	for _, post := range drafts {
		a.bus.Publish(events.EventCaptionRequested, events.Payload{"post_id": post.ID})
	}

	a.logger.Info().
		Str("account_id", account.ID).
		Int("posts", len(drafts)).
		Msg("caption generation requested")

	writeJSON(w, http.StatusAccepted, map[string]any{"requested": len(drafts)})
}

// loadOwnedAccount fetches the URL account and verifies the session owns it.
// Writes the error response itself when it returns ok=false.
func (a *API) loadOwnedAccount(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return models.Account{}, false
	}

	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id_required")
		return models.Account{}, false
	}

	var account models.Account
	err := a.db.WithContext(r.Context()).First(&account, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Account{}, false
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load account failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return models.Account{}, false
	}

	// Foreign accounts look like missing ones.
	if account.UserID != claims.UserID {
		writeError(w, http.StatusNotFound, "not_found")
		return models.Account{}, false
	}

	return account, true
}

func (a *API) invalidateAccount(r *http.Request, account models.Account) {
	if a.cache == nil {
		return
	}
	if err := a.cache.InvalidateAccount(r.Context(), account.ID, account.UserID); err != nil {
		a.logger.Warn().Err(err).Str("account_id", account.ID).Msg("cache invalidation failed")
	}
}

func applyAccountPatch(account *models.Account, req accountRequest) {
	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.MakeConnection != nil {
		account.MakeConnection = *req.MakeConnection
	}
	if req.ContextPrompt != nil {
		account.ContextPrompt = *req.ContextPrompt
	}
	if req.PostingPeriod != nil {
		account.PostingPeriod = *req.PostingPeriod
	}
	if req.PostingFrequency != nil {
		account.PostingFrequency = *req.PostingFrequency
	}
	if req.PostingDay != nil {
		account.PostingDay = *req.PostingDay
	}
	if req.PostingHour != nil {
		account.PostingHour = *req.PostingHour
	}
}
