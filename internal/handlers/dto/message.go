package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/models"
)

// SendMessageRequest carries a text body or a media attachment, never both.
type SendMessageRequest struct {
	Message   string `json:"message"`
	MediaURL  string `json:"mediaUrl"`
	MediaKind string `json:"mediaKind"`
}

type EditMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type ReactionRequest struct {
	Tag string `json:"tag" binding:"required"`
}

type ReactionResponse struct {
	UserID    uuid.UUID `json:"userId"`
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessageResponse struct {
	ID          string             `json:"id"`
	ChatID      uuid.UUID          `json:"chatId"`
	SenderID    uuid.UUID          `json:"senderId"`
	Message     string             `json:"message,omitempty"`
	MediaURL    *string            `json:"mediaUrl,omitempty"`
	MediaKind   *models.MediaKind  `json:"mediaKind,omitempty"`
	MessageType models.MessageType `json:"messageType"`
	Edited      bool               `json:"edited"`
	Reactions   []ReactionResponse `json:"reactions"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func NewMessageResponse(msg *models.Message) MessageResponse {
	reactions := make([]ReactionResponse, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions = append(reactions, ReactionResponse{UserID: r.UserID, Tag: r.Tag, CreatedAt: r.CreatedAt})
	}
	return MessageResponse{
		ID:          msg.ID,
		ChatID:      msg.ChatRoomID,
		SenderID:    msg.SenderID,
		Message:     msg.Text,
		MediaURL:    msg.MediaURL,
		MediaKind:   msg.MediaKind,
		MessageType: msg.MessageType,
		Edited:      msg.Edited,
		Reactions:   reactions,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
}

func NewMessageList(msgs []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}

type MessagePage struct {
	Messages   []MessageResponse `json:"messages"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"totalPages"`
}

type MessageDeleted struct {
	ChatID        uuid.UUID `json:"chatId"`
	MessageID     string    `json:"messageId"`
	LastMessageID *string   `json:"lastMessageId"`
}

type UnreadReset struct {
	ChatID uuid.UUID `json:"chatId"`
}

type NotificationResponse struct {
	ID        uuid.UUID               `json:"id"`
	ActorID   uuid.UUID               `json:"actorId"`
	Kind      models.NotificationKind `json:"kind"`
	ChatID    *uuid.UUID              `json:"chatId,omitempty"`
	MessageID *string                 `json:"messageId,omitempty"`
	Body      string                  `json:"body"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"createdAt"`
}

func NewNotificationList(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			ActorID:   n.ActorID,
			Kind:      n.Kind,
			ChatID:    n.ChatID,
			MessageID: n.MessageID,
			Body:      n.Body,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type NotificationPage struct {
	Notifications []NotificationResponse `json:"notifications"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
	Total         int64                  `json:"total"`
	TotalPages    int                    `json:"totalPages"`
}
