package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/models"
)

// CreateDirectChatRequest may bundle a first message. Message is a pointer
// so an explicitly empty bundle can be told apart from none.
type CreateDirectChatRequest struct {
	MemberID  uuid.UUID `json:"memberId" binding:"required"`
	Message   *string   `json:"message"`
	MediaURL  string    `json:"mediaUrl"`
	MediaKind string    `json:"mediaKind"`
}

func (r CreateDirectChatRequest) Bundled() bool {
	return r.Message != nil || r.MediaURL != "" || r.MediaKind != ""
}

type CreateGroupChatRequest struct {
	RoomName     string      `json:"roomName" binding:"required"`
	Members      []uuid.UUID `json:"members" binding:"required"`
	Admins       []uuid.UUID `json:"admins"`
	RoomPrivacy  string      `json:"roomPrivacy"`
	ProfileImage *string     `json:"profileImage"`
}

// UpdateChatRequest leaves nil fields unchanged.
type UpdateChatRequest struct {
	RoomName     *string     `json:"roomName"`
	RoomPrivacy  *string     `json:"roomPrivacy"`
	ProfileImage *string     `json:"profileImage"`
	Admins       []uuid.UUID `json:"admins"`
}

type AddMemberRequest struct {
	MemberID uuid.UUID `json:"memberId" binding:"required"`
}

type ChatResponse struct {
	ID            uuid.UUID          `json:"id"`
	IsGroupChat   bool               `json:"isGroupChat"`
	RoomName      string             `json:"roomName,omitempty"`
	RoomPrivacy   models.RoomPrivacy `json:"roomPrivacy"`
	ProfileImage  *string            `json:"profileImage,omitempty"`
	CreatedBy     uuid.UUID          `json:"createdBy"`
	Members       []uuid.UUID        `json:"members"`
	Admins        []uuid.UUID        `json:"admins"`
	UnreadCount   map[string]int     `json:"unreadCount"`
	LastMessageID *string            `json:"lastMessageId"`
	OnlineMembers []uuid.UUID        `json:"onlineMembers,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func NewChatResponse(room *models.Room) ChatResponse {
	unread := make(map[string]int, len(room.Members))
	for id, n := range room.UnreadCounts() {
		unread[id.String()] = n
	}
	return ChatResponse{
		ID:            room.ID,
		IsGroupChat:   room.IsGroupChat,
		RoomName:      room.RoomName,
		RoomPrivacy:   room.RoomPrivacy,
		ProfileImage:  room.ProfileImage,
		CreatedBy:     room.CreatedBy,
		Members:       room.MemberIDs(),
		Admins:        room.AdminIDs(),
		UnreadCount:   unread,
		LastMessageID: room.LastMessageID,
		CreatedAt:     room.CreatedAt,
		UpdatedAt:     room.UpdatedAt,
	}
}

// ChatListItem is a room as seen by one member in their chat list.
type ChatListItem struct {
	ChatResponse
	MyUnreadCount int `json:"myUnreadCount"`
}

func NewChatListItem(room *models.Room, viewer uuid.UUID) ChatListItem {
	item := ChatListItem{ChatResponse: NewChatResponse(room)}
	if m, ok := room.Member(viewer); ok {
		item.MyUnreadCount = m.UnreadCount
	}
	return item
}

type MemberEvent struct {
	ChatID uuid.UUID `json:"chatId"`
	UserID uuid.UUID `json:"userId"`
}
