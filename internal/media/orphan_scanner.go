/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/friendsincode/cadence/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ScanResult summarizes one orphan scan pass.
type ScanResult struct {
	ScannedFiles int           `json:"scanned_files"`
	Orphans      int           `json:"orphans"`
	Removed      int           `json:"removed"`
	OrphanPaths  []string      `json:"orphan_paths,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// OrphanScanner finds uploaded images no post references anymore. Deleted
// posts leave their file behind when delivery already copied it; the scanner
// reclaims that space.
type OrphanScanner struct {
	db         *gorm.DB
	uploadRoot string
	logger     zerolog.Logger
}

// NewOrphanScanner creates a new orphan scanner.
func NewOrphanScanner(db *gorm.DB, uploadRoot string, logger zerolog.Logger) *OrphanScanner {
	return &OrphanScanner{
		db:         db,
		uploadRoot: uploadRoot,
		logger:     logger.With().Str("component", "orphan_scanner").Logger(),
	}
}

// ScanForOrphans walks the upload root and reports files not referenced by
// any post. With remove set, orphans are deleted as they are found.
func (s *OrphanScanner) ScanForOrphans(ctx context.Context, remove bool) (*ScanResult, error) {
	startTime := time.Now()
	result := &ScanResult{}

	s.logger.Info().Str("upload_root", s.uploadRoot).Bool("remove", remove).Msg("starting orphan scan")

	referenced, err := s.referencedPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("load referenced paths: %w", err)
	}

	err = filepath.WalkDir(s.uploadRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.uploadRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		result.ScannedFiles++

		if _, ok := referenced[rel]; ok {
			return nil
		}

		result.Orphans++
		result.OrphanPaths = append(result.OrphanPaths, rel)

		if remove {
			if err := os.Remove(path); err != nil {
				s.logger.Warn().Err(err).Str("path", rel).Msg("failed to remove orphan file")
				return nil
			}
			result.Removed++
			s.logger.Debug().Str("path", rel).Msg("removed orphan file")
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			result.Duration = time.Since(startTime)
			return result, nil
		}
		return nil, fmt.Errorf("walk upload root: %w", err)
	}

	result.Duration = time.Since(startTime)
	s.logger.Info().
		Int("scanned", result.ScannedFiles).
		Int("orphans", result.Orphans).
		Int("removed", result.Removed).
		Dur("duration", result.Duration).
		Msg("orphan scan complete")

	return result, nil
}

// referencedPaths collects the relative upload path of every post image.
// Stored URLs look like "/uploads/<account>/<aa>/<bb>/<post>.<ext>".
func (s *OrphanScanner) referencedPaths(ctx context.Context) (map[string]struct{}, error) {
	var urls []string
	if err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("image_url != ''").
		Pluck("image_url", &urls).Error; err != nil {
		return nil, err
	}

	paths := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		rel := strings.TrimPrefix(url, "/uploads/")
		rel = strings.TrimPrefix(rel, "/")
		if rel != "" {
			paths[rel] = struct{}{}
		}
	}
	return paths, nil
}
