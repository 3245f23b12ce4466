/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// User represents an authenticated account owner.
type User struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account is a managed posting account with its recurrence configuration.
// The posting_* columns are stored as text and parsed into a recurrence
// policy at use; malformed values fall back to calculator defaults rather
// than failing.
type Account struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	UserID         string `gorm:"type:uuid;index"`
	Name           string `gorm:"index"`
	MakeConnection string `gorm:"type:varchar(128)"`
	ContextPrompt  string `gorm:"type:text"`

	// Recurrence configuration.
	PostingPeriod    string `gorm:"type:varchar(16)"` // day, week, month
	PostingFrequency int
	PostingDay       string `gorm:"type:varchar(64)"` // weekday CSV or day of month
	PostingHour      string `gorm:"type:varchar(8)"`  // HH:MM

	CreatedAt time.Time
	UpdatedAt time.Time

	User *User `gorm:"foreignKey:UserID"`
}

// PostStatus tracks a post through its publishing lifecycle.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
)

// Post is a single piece of content attached to an account.
type Post struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	AccountID        string `gorm:"type:uuid;index"`
	ImageURL         string
	ImageDescription string     `gorm:"type:text"`
	AICaption        string     `gorm:"type:text"`
	EditedCaption    string     `gorm:"type:text"`
	Status           PostStatus `gorm:"type:varchar(16);index"`
	ScheduledAt      *time.Time `gorm:"index"`
	PublishedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Account *Account `gorm:"foreignKey:AccountID"`
}

// Caption returns the caption to publish, preferring the manual edit.
func (p Post) Caption() string {
	if p.EditedCaption != "" {
		return p.EditedCaption
	}
	return p.AICaption
}

// HasCaption reports whether the post is ready for scheduling.
func (p Post) HasCaption() bool {
	return p.Caption() != ""
}
