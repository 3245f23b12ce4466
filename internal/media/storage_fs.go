/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemStorage implements Storage using local filesystem.
type FilesystemStorage struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStorage creates a filesystem-based storage backend.
func NewFilesystemStorage(rootDir string, logger zerolog.Logger) *FilesystemStorage {
	return &FilesystemStorage{
		rootDir: rootDir,
		logger:  logger,
	}
}

// Store saves a file to the local filesystem.
func (fs *FilesystemStorage) Store(ctx context.Context, accountID, postID, filename string, file io.Reader) (string, error) {
	relativePath := buildImagePath(accountID, postID, imageExtension(filename))
	fullPath := filepath.Join(fs.rootDir, relativePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create directories: %w", err)
	}

	dest, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		os.Remove(fullPath) // Clean up on failure
		return "", fmt.Errorf("write file: %w", err)
	}

	fs.logger.Debug().
		Str("path", fullPath).
		Str("account_id", accountID).
		Str("post_id", postID).
		Msg("filesystem storage: file stored")

	// Relative path goes in the database; the upload root is joined on read.
	return relativePath, nil
}

// Delete removes a file from the filesystem.
func (fs *FilesystemStorage) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(fs.rootDir, path)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Msg("filesystem storage: file deleted")
	return nil
}

// URL returns the serving path for a stored file.
func (fs *FilesystemStorage) URL(path string) string {
	return "/uploads/" + filepath.ToSlash(path)
}

// CheckAccess verifies the storage directory exists and is accessible.
func (fs *FilesystemStorage) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("upload root directory does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access upload root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload root is not a directory: %s", fs.rootDir)
	}
	return nil
}
