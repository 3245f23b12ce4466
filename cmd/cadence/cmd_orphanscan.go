/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/cadence/internal/db"
	"github.com/friendsincode/cadence/internal/media"
)

var orphanScanRemove bool

var orphanScanCmd = &cobra.Command{
	Use:   "orphan-scan",
	Short: "Find uploaded images no post references",
	Long: `Walk the upload root and report image files that no post references.

Deleted posts can leave their image behind. By default the scan only
reports; pass --remove to delete the orphans.
`,
	RunE: runOrphanScan,
}

func init() {
	orphanScanCmd.Flags().BoolVar(&orphanScanRemove, "remove", false, "Delete orphaned files")
	rootCmd.AddCommand(orphanScanCmd)
}

func runOrphanScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.S3Bucket != "" {
		return fmt.Errorf("orphan scan only supports filesystem storage")
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	scanner := media.NewOrphanScanner(database, cfg.UploadRoot, logger)
	result, err := scanner.ScanForOrphans(cmd.Context(), orphanScanRemove)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	fmt.Printf("Scanned %d files in %s: %d orphans, %d removed\n",
		result.ScannedFiles, result.Duration.Round(time.Millisecond), result.Orphans, result.Removed)
	for _, path := range result.OrphanPaths {
		fmt.Println("  " + path)
	}
	return nil
}
