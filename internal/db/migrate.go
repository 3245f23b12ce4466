/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/cadence/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Post{},
		&models.WebhookDelivery{},
	); err != nil {
		return err
	}

	if err := normalizeLegacyStatuses(database); err != nil {
		return err
	}

	return nil
}

// normalizeLegacyStatuses folds older free-form status spellings into the
// three canonical values so queries filtering on status stay exact.
func normalizeLegacyStatuses(database *gorm.DB) error {
	if err := database.Exec(
		"UPDATE posts SET status = ? WHERE LOWER(TRIM(status)) IN ?",
		models.PostScheduled, []string{"queued", "pending"},
	).Error; err != nil {
		return fmt.Errorf("normalize legacy scheduled status: %w", err)
	}
	if err := database.Exec(
		"UPDATE posts SET status = ? WHERE LOWER(TRIM(status)) = ?",
		models.PostPublished, "posted",
	).Error; err != nil {
		return fmt.Errorf("normalize legacy published status: %w", err)
	}
	return nil
}
