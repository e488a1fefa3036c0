package models

import (
	"time"

	"github.com/google/uuid"
)

type RoomPrivacy string

const (
	PrivacyPublic  RoomPrivacy = "PUBLIC"
	PrivacyPrivate RoomPrivacy = "PRIVATE"
)

const (
	MinGroupMembers = 3
	MaxGroupMembers = 20
	MaxGroupAdmins  = 5
)

type Room struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	IsGroupChat   bool        `gorm:"not null"`
	RoomName      string      `gorm:"size:100"`
	RoomPrivacy   RoomPrivacy `gorm:"size:16;not null"`
	ProfileImage  *string
	CreatedBy     uuid.UUID `gorm:"type:uuid;not null"`
	DirectKey     *string   `gorm:"size:80;uniqueIndex"` // sorted member pair, direct rooms only
	MemberCount   int       `gorm:"not null"`
	LastMessageID *string   `gorm:"size:26"`
	CreatedAt     time.Time
	UpdatedAt     time.Time `gorm:"index"`

	Members []RoomMember `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

type RoomMember struct {
	RoomID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	IsAdmin     bool      `gorm:"not null"`
	UnreadCount int       `gorm:"not null"`
	JoinedAt    time.Time
}

// DirectKey returns the unordered-pair key that makes one-to-one rooms unique.
func DirectKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}

func (r *Room) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (r *Room) AdminIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, MaxGroupAdmins)
	for _, m := range r.Members {
		if m.IsAdmin {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

func (r *Room) Member(userID uuid.UUID) (*RoomMember, bool) {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i], true
		}
	}
	return nil, false
}

func (r *Room) HasMember(userID uuid.UUID) bool {
	_, ok := r.Member(userID)
	return ok
}

func (r *Room) IsAdmin(userID uuid.UUID) bool {
	m, ok := r.Member(userID)
	return ok && m.IsAdmin
}

// UnreadCounts maps member id to unread counter.
func (r *Room) UnreadCounts() map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int, len(r.Members))
	for _, m := range r.Members {
		counts[m.UserID] = m.UnreadCount
	}
	return counts
}

// OtherMember returns the counterpart of userID in a one-to-one room.
func (r *Room) OtherMember(userID uuid.UUID) (uuid.UUID, bool) {
	if r.IsGroupChat {
		return uuid.Nil, false
	}
	for _, m := range r.Members {
		if m.UserID != userID {
			return m.UserID, true
		}
	}
	return uuid.Nil, false
}

func (r *Room) Kind() string {
	if r.IsGroupChat {
		return "group"
	}
	return "direct"
}
