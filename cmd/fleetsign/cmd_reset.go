/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetsign/fleetsign/internal/db"
	"github.com/fleetsign/fleetsign/internal/models"
)

var (
	resetForce       bool
	resetDeleteMedia bool
	resetKeepUsers   int
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database and optionally delete all media",
	Long: `Reset FleetSign to a fresh state.

This command will:
- Drop all tables from the database (except optionally preserved users)
- Re-create empty tables
- Optionally delete all uploaded media files

WARNING: This action is irreversible! All data will be lost.

Examples:
  # Interactive reset (will prompt for confirmation)
  fleetsign reset

  # Force reset without confirmation
  fleetsign reset --force

  # Reset and delete all media files
  fleetsign reset --force --delete-media

  # Reset but keep up to 3 admin users
  fleetsign reset --force --keep-users=3
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	resetCmd.Flags().BoolVar(&resetDeleteMedia, "delete-media", false, "Also delete all uploaded media files")
	resetCmd.Flags().IntVar(&resetKeepUsers, "keep-users", 0, "Number of admin users to preserve (0 = delete all)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !resetForce {
		fmt.Println("\nWARNING: this will DELETE ALL DATA from FleetSign:")
		if resetKeepUsers > 0 {
			fmt.Printf("  - All users EXCEPT the first %d admin user(s)\n", resetKeepUsers)
		} else {
			fmt.Println("  - All users and accounts")
		}
		fmt.Println("  - The shared playlist")
		fmt.Println("  - All advertisers and drivers")
		fmt.Println("  - All terminal presence records")
		if resetDeleteMedia {
			fmt.Println("  - ALL UPLOADED MEDIA FILES")
		}
		fmt.Println("\nThis action CANNOT be undone!")
		fmt.Print("\nType 'yes' to confirm reset: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	logger.Info().
		Bool("delete_media", resetDeleteMedia).
		Int("keep_users", resetKeepUsers).
		Msg("Starting database reset")

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	defer sqlDB.Close()

	var preservedUsers []models.User
	if resetKeepUsers > 0 {
		logger.Info().Int("count", resetKeepUsers).Msg("Preserving admin users")

		database.Where("role = ?", models.RoleAdmin).
			Order("created_at ASC").
			Limit(resetKeepUsers).
			Find(&preservedUsers)

		for _, u := range preservedUsers {
			logger.Info().
				Str("user_id", u.ID).
				Str("email", u.Email).
				Msg("Preserving user")
		}
	}

	tables := []interface{}{
		&models.TerminalPresence{},
		&models.PlaylistRecord{},
		&models.Driver{},
		&models.Advertiser{},
		&models.User{},
	}

	logger.Info().Msg("Dropping all tables")
	for _, table := range tables {
		if err := database.Migrator().DropTable(table); err != nil {
			// Table might not exist
			logger.Debug().Err(err).Msgf("drop table (may not exist)")
		}
	}

	if resetDeleteMedia && cfg.MediaRoot != "" {
		logger.Info().Str("path", cfg.MediaRoot).Msg("Deleting media files...")

		err := filepath.Walk(cfg.MediaRoot, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if path == cfg.MediaRoot {
				return nil
			}
			if !info.IsDir() {
				if err := os.Remove(path); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("failed to delete file")
				}
			}
			return nil
		})
		if err != nil {
			logger.Warn().Err(err).Msg("error walking media directory")
		}

		cleanEmptyDirs(cfg.MediaRoot)
		logger.Info().Msg("Media files deleted")
	}

	logger.Info().Msg("Creating fresh database schema")
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(preservedUsers) > 0 {
		logger.Info().Int("count", len(preservedUsers)).Msg("Restoring preserved users")
		for _, u := range preservedUsers {
			u.UpdatedAt = u.CreatedAt

			if err := database.Create(&u).Error; err != nil {
				logger.Error().Err(err).Str("email", u.Email).Msg("failed to restore user")
			} else {
				logger.Info().
					Str("user_id", u.ID).
					Str("email", u.Email).
					Msg("User restored")
			}
		}
	}

	logger.Info().Msg("Reset complete")
	fmt.Println()
	fmt.Println("FleetSign has been reset to a fresh state.")
	fmt.Println("Next steps:")
	fmt.Println("  1. Create an admin account: fleetsign useradd --email admin@example.com --role admin")
	fmt.Println("  2. Start the server: fleetsign serve")
	fmt.Println()

	return nil
}

// cleanEmptyDirs removes empty directories recursively
func cleanEmptyDirs(root string) {
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() || path == root {
			return nil
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil
		}

		if len(entries) == 0 {
			os.Remove(path)
		}
		return nil
	})
}
