package models

import (
	"time"
)

type User struct {
	ID           string    `gorm:"primaryKey"                json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	PasswordSalt []byte    `gorm:"not null"                  json:"-"`
	Roles        []string  `gorm:"serializer:json;not null"  json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken is never deleted: used and invalidated records stay in the
// table so a replayed token can be recognized later.
type RefreshToken struct {
	Token         string    `gorm:"primaryKey"          json:"token"`
	UserID        string    `gorm:"index;not null"      json:"user_id"`
	IsUsed        bool      `gorm:"not null;default:false" json:"is_used"`
	IsInvalidated bool      `gorm:"not null;default:false" json:"is_invalidated"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `gorm:"not null"            json:"expires_at"`
}

type Design struct {
	ID         string    `gorm:"primaryKey"     json:"id"`
	Name       string    `gorm:"not null"       json:"name"`
	CanvasData string    `json:"canvas_data,omitempty"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Category   string    `gorm:"index"          json:"category"`
	OwnerID    string    `gorm:"index"          json:"owner_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditLogEntry is not persisted here, it is the payload published to the
// audit topic.
type AuditLogEntry struct {
	LogID     string    `json:"log_id"`
	Action    string    `json:"action"`
	UserID    string    `json:"user_id"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}
