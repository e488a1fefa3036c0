package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the directory record the chat core reads. Accounts are managed elsewhere.
type User struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"size:100"`
	NickName   string    `gorm:"size:50;index"`
	AvatarURL  string
	Private    bool `gorm:"not null"`
	IsOnline   bool `gorm:"not null"`
	LastSeenAt *time.Time
	CreatedAt  time.Time
}

type UserBlock struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	BlockedID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}
