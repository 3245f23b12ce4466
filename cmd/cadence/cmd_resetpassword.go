/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/auth"
	"github.com/friendsincode/cadence/internal/db"
	"github.com/friendsincode/cadence/internal/models"
)

var resetPasswordValue string

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password <email>",
	Short: "Reset a user's password",
	Long: `Reset the password of an existing user.

The new password is read from the --password flag, or prompted for
interactively when the flag is omitted.

Examples:
  cadence reset-password owner@example.com
  cadence reset-password owner@example.com --password 'new-password'
`,
	Args: cobra.ExactArgs(1),
	RunE: runResetPassword,
}

func init() {
	resetPasswordCmd.Flags().StringVarP(&resetPasswordValue, "password", "p", "", "New password (prompted when omitted)")
	rootCmd.AddCommand(resetPasswordCmd)
}

func runResetPassword(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(args[0]))

	password := resetPasswordValue
	if password == "" {
		fmt.Print("New password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	var user models.User
	err = database.First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("no user with email %s", email)
	}
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := database.Model(&user).Update("password", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("password reset")
	fmt.Printf("Password updated for %s\n", user.Email)
	return nil
}
