package models

import "time"

// RoleName enumerates the access roles.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleTerminal RoleName = "terminal"
)

// User represents an authenticated account.
type User struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	Password  string
	Role      RoleName `gorm:"type:varchar(16)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Advertiser is a client whose media rotates on the terminals.
type Advertiser struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"index"`
	Email     string `gorm:"index"`
	Phone     string `gorm:"type:varchar(32)"`
	Plan      string `gorm:"type:varchar(32)"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Driver operates a vehicle carrying a player terminal.
type Driver struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Name       string `gorm:"index"`
	Vehicle    string
	Phone      string `gorm:"type:varchar(32)"`
	TerminalID string `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlaylistRecord is the single named record holding the shared ordered list.
// Entries is the JSON-encoded ordered list; every write replaces it whole.
type PlaylistRecord struct {
	Name      string `gorm:"primaryKey;type:varchar(64)"`
	Entries   []byte `gorm:"type:bytes"`
	Revision  int64
	UpdatedAt time.Time
}

// AuditAction enumerates audited operations.
type AuditAction string

const (
	AuditActionEntryAppend AuditAction = "playlist.entry.append"
	AuditActionEntryRemove AuditAction = "playlist.entry.remove"
	AuditActionEntrySwap   AuditAction = "playlist.entry.swap"
	AuditActionMediaIngest AuditAction = "media.ingest"
	AuditActionMediaDelete AuditAction = "media.delete"
)

// AuditLog is a persisted record of a mutating operation.
type AuditLog struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"index" json:"timestamp"`
	Action    AuditAction    `gorm:"type:varchar(64);index" json:"action"`
	UserID    string         `gorm:"index" json:"user_id,omitempty"`
	Details   map[string]any `gorm:"serializer:json" json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TerminalPresence records a player terminal's operational status.
// Read by dashboards only, never by the playback loop.
type TerminalPresence struct {
	TerminalID string `gorm:"primaryKey;type:varchar(64)"`
	Status     string `gorm:"type:varchar(16)"`
	LastSeen   time.Time
}
