/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fleetsign/fleetsign/internal/auth"
	"github.com/fleetsign/fleetsign/internal/db"
	"github.com/fleetsign/fleetsign/internal/models"
)

var (
	userAddEmail    string
	userAddRole     string
	userAddPassword string
)

var userAddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create a user account",
	Long: `Create an admin or terminal account.

The password is read from --password or prompted for interactively.

Examples:
  fleetsign useradd --email admin@example.com --role admin
  fleetsign useradd --email tablet-7@fleet.example.com --role terminal
`,
	RunE: runUserAdd,
}

func init() {
	userAddCmd.Flags().StringVar(&userAddEmail, "email", "", "Account email (required)")
	userAddCmd.Flags().StringVar(&userAddRole, "role", string(models.RoleAdmin), "Account role: admin or terminal")
	userAddCmd.Flags().StringVar(&userAddPassword, "password", "", "Account password (prompted if omitted)")
	rootCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if userAddEmail == "" {
		return fmt.Errorf("--email is required")
	}
	role := models.RoleName(strings.ToLower(userAddRole))
	if role != models.RoleAdmin && role != models.RoleTerminal {
		return fmt.Errorf("unsupported role %q", userAddRole)
	}

	password := userAddPassword
	if password == "" {
		fmt.Print("Password: ")
		reader := bufio.NewReader(os.Stdin)
		raw, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(raw, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	user := models.User{
		ID:       uuid.NewString(),
		Email:    userAddEmail,
		Password: hashed,
		Role:     role,
	}
	if err := database.Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	logger.Info().Str("user_id", user.ID).Str("email", user.Email).Str("role", string(role)).Msg("user created")
	return nil
}
