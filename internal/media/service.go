/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media stores uploaded post images on the local filesystem or in
// S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/cadence/internal/config"
)

// Storage interface abstracts file storage operations.
type Storage interface {
	Store(ctx context.Context, accountID, postID, filename string, file io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
	URL(path string) string
	CheckAccess(ctx context.Context) error
}

// Service manages uploaded image storage.
type Service struct {
	storage Storage
	logger  zerolog.Logger
}

// NewService creates a media service using filesystem or S3 storage based on config.
func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	var storage Storage

	// Use S3 storage if bucket is configured
	if cfg.S3Bucket != "" {
		s3cfg := S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		}

		if s3cfg.AccessKeyID == "" || s3cfg.SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, some operations may fail")
		}

		s3Storage, err := NewS3Storage(context.Background(), s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		storage = s3Storage
	} else {
		// Default to filesystem storage
		storage = NewFilesystemStorage(cfg.UploadRoot, logger)
	}

	return &Service{
		storage: storage,
		logger:  logger,
	}, nil
}

// Store saves an uploaded file and returns the storage path.
func (s *Service) Store(ctx context.Context, accountID, postID, filename string, file io.Reader) (string, error) {
	path, err := s.storage.Store(ctx, accountID, postID, filename, file)
	if err != nil {
		s.logger.Error().Err(err).
			Str("account_id", accountID).
			Str("post_id", postID).
			Msg("image store failed")
		return "", fmt.Errorf("store image: %w", err)
	}

	s.logger.Info().
		Str("account_id", accountID).
		Str("post_id", postID).
		Str("path", path).
		Msg("image stored")

	return path, nil
}

// Delete removes an image from storage.
func (s *Service) Delete(ctx context.Context, path string) error {
	if err := s.storage.Delete(ctx, path); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("image delete failed")
		return fmt.Errorf("delete image: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("image deleted")
	return nil
}

// URL returns the accessible URL for a stored image.
func (s *Service) URL(path string) string {
	return s.storage.URL(path)
}

// CheckStorageAccess verifies that the storage backend is accessible.
func (s *Service) CheckStorageAccess() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.storage.CheckAccess(ctx)
}

// buildImagePath constructs a hierarchical storage path for an image.
// Structure: account_id/post_id[0:2]/post_id[2:4]/post_id.ext keeps any one
// directory from accumulating too many files.
func buildImagePath(accountID, postID, extension string) string {
	if len(postID) < 4 {
		return filepath.Join(accountID, postID+extension)
	}
	return filepath.Join(accountID, postID[0:2], postID[2:4], postID+extension)
}

// imageExtension extracts a safe lowercase extension from an upload filename.
func imageExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ".bin"
	}
}
