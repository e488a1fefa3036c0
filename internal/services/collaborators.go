package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/models"
)

// DirectoryUser is what the chat core needs to know about a user.
type DirectoryUser struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	NickName  string      `json:"nickName"`
	AvatarURL string      `json:"avatarUrl"`
	Private   bool        `json:"private"`
	Blocked   []uuid.UUID `json:"blocked"`
}

func (u *DirectoryUser) HasBlocked(id uuid.UUID) bool {
	for _, b := range u.Blocked {
		if b == id {
			return true
		}
	}
	return false
}

// UserDirectory resolves users. GetUser returns apperrors.ErrUnknownUser for absent ids.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*DirectoryUser, error)
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
}

type Push struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushDispatcher delivers to a user's registered devices. Fire-and-forget.
type PushDispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, push Push) error
}

// NotificationLog is an append-only record of events for later retrieval.
type NotificationLog interface {
	Append(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Notification, int64, error)
}
