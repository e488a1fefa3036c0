package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/models"
)

// RoomPatch carries the optional fields of a room details update. Nil means unchanged.
type RoomPatch struct {
	RoomName     *string
	RoomPrivacy  *models.RoomPrivacy
	ProfileImage *string
	Admins       []uuid.UUID
}

type RoomRepository interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindDirectRoom(ctx context.Context, key string) (*models.Room, error)
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
	GetMember(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error)
	AddMember(ctx context.Context, roomID, userID uuid.UUID, maxMembers int) error
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) (remaining int, err error)
	UpdateRoomDetails(ctx context.Context, roomID uuid.UUID, patch RoomPatch) error
	DeleteRoom(ctx context.Context, roomID uuid.UUID) error
	ResetUnread(ctx context.Context, roomID, userID uuid.UUID) error
	UserRoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	RoomMemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, roomID uuid.UUID, offset, limit int) ([]models.Message, int64, error)
	UpdateMessageText(ctx context.Context, id string, senderID uuid.UUID, text string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string, senderID uuid.UUID) (*models.Message, error)
	DeleteMessagesBySender(ctx context.Context, roomID, senderID uuid.UUID) (int64, error)
	DeleteRoomMessages(ctx context.Context, roomID uuid.UUID) error
	AddReaction(ctx context.Context, reaction *models.Reaction) error
}
