/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// WebhookDelivery records one outbound workflow notification attempt.
type WebhookDelivery struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Event      string `gorm:"type:varchar(64);index"`
	URL        string
	PostID     string `gorm:"type:uuid;index"`
	StatusCode int
	Error      string `gorm:"type:text"`
	CreatedAt  time.Time
}
