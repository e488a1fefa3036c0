package models

import (
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaImage MediaKind = "IMAGE"
	MediaVideo MediaKind = "VIDEO"
	MediaAudio MediaKind = "AUDIO"
	MediaFile  MediaKind = "FILE"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaAudio, MediaFile:
		return true
	}
	return false
}

type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageMedia MessageType = "MEDIA"
)

type Message struct {
	ID          string      `gorm:"primaryKey;size:26"` // ULID
	ChatRoomID  uuid.UUID   `gorm:"type:uuid;not null;index:idx_messages_room_created,priority:1"`
	SenderID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	Text        string      `gorm:"type:text"`
	MediaURL    *string     `gorm:"type:text"`
	MediaKind   *MediaKind  `gorm:"size:8"`
	MessageType MessageType `gorm:"size:8;not null"`
	Edited      bool        `gorm:"not null"`
	CreatedAt   time.Time   `gorm:"index:idx_messages_room_created,priority:2"`
	UpdatedAt   time.Time

	Reactions []Reaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

type Reaction struct {
	ID        uint      `gorm:"primaryKey"`
	MessageID string    `gorm:"size:26;not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	Tag       string    `gorm:"size:32;not null"`
	CreatedAt time.Time
}

func (Reaction) TableName() string { return "message_reactions" }

// ReactionTags returns tags in the order they were added.
func (m *Message) ReactionTags() []string {
	tags := make([]string, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		tags = append(tags, r.Tag)
	}
	return tags
}

// Preview is a short description used for push notifications.
func (m *Message) Preview() string {
	if m.MessageType == MessageMedia && m.MediaKind != nil {
		return "sent a " + string(*m.MediaKind)
	}
	return m.Text
}
