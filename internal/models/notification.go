package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationReaction NotificationKind = "MESSAGE_REACTION"
	NotificationNewChat  NotificationKind = "NEW_CHAT"
)

type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1"`
	ActorID   uuid.UUID        `gorm:"type:uuid;not null"`
	Kind      NotificationKind `gorm:"size:32;not null"`
	ChatID    *uuid.UUID       `gorm:"type:uuid"`
	MessageID *string          `gorm:"size:26"`
	Body      string
	Read      bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"index:idx_notifications_user_created,priority:2"`
}
