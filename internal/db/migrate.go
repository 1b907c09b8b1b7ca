/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"github.com/fleetsign/fleetsign/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.User{},
		&models.Advertiser{},
		&models.Driver{},
		&models.PlaylistRecord{},
		&models.TerminalPresence{},
		&models.AuditLog{},
	)
}
