package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/handlers/dto"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/messages"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/rooms"
	"github.com/thereayou/loci-chat/internal/services"
	"github.com/thereayou/loci-chat/internal/websocket"
)

// Fanout delivers the outcome of a store operation to live sessions, and to
// push for members with none. Used by both the gateway and HTTP handlers.
type Fanout struct {
	hub           *websocket.Hub
	push          services.PushDispatcher
	notifications services.NotificationLog
}

func NewFanout(hub *websocket.Hub, push services.PushDispatcher, notifications services.NotificationLog) *Fanout {
	return &Fanout{hub: hub, push: push, notifications: notifications}
}

func (f *Fanout) toMembers(ctx context.Context, members []uuid.UUID, event string, data interface{}) []uuid.UUID {
	frame, err := websocket.Encode(event, data)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str(logger.FieldEvent, event).Msg("failed to encode event")
		return nil
	}
	return f.hub.SendToMembers(members, frame)
}

// MessageSent reaches every session of every member, pushing to members
// other than the sender that have no live session.
func (f *Fanout) MessageSent(ctx context.Context, sent *messages.Sent, senderName string) {
	offline := f.toMembers(ctx, sent.Room.MemberIDs(), websocket.EventMessage, dto.NewMessageResponse(sent.Message))

	if f.push == nil {
		return
	}
	title := senderName
	if sent.Room.IsGroupChat {
		title = senderName + " @ " + sent.Room.RoomName
	}
	for _, id := range offline {
		if id == sent.Message.SenderID {
			continue
		}
		err := f.push.Dispatch(ctx, id, services.Push{
			Title: title,
			Body:  sent.Message.Preview(),
			Data: map[string]string{
				"chatId":    sent.Room.ID.String(),
				"messageId": sent.Message.ID,
			},
		})
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldUserID, id.String()).Msg("push dispatch failed")
		}
	}
}

// RoomCreated announces a new room to its members and records a notification
// for everyone but the creator.
func (f *Fanout) RoomCreated(ctx context.Context, room *models.Room, actor uuid.UUID) {
	f.toMembers(ctx, room.MemberIDs(), websocket.EventNewChat, dto.NewChatResponse(room))

	for _, id := range room.MemberIDs() {
		if id != actor {
			f.notifyNewChat(ctx, room, id, actor)
		}
	}
}

func (f *Fanout) notifyNewChat(ctx context.Context, room *models.Room, userID, actor uuid.UUID) {
	if f.notifications == nil {
		return
	}
	chatID := room.ID
	err := f.notifications.Append(ctx, &models.Notification{
		UserID:  userID,
		ActorID: actor,
		Kind:    models.NotificationNewChat,
		ChatID:  &chatID,
		Body:    room.RoomName,
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldUserID, userID.String()).Msg("failed to record new chat notification")
	}
}

// MemberAdded tells the new member about the room and everyone else about the new state.
func (f *Fanout) MemberAdded(ctx context.Context, room *models.Room, memberID, actor uuid.UUID) {
	f.toMembers(ctx, room.MemberIDs(), websocket.EventNewChat, dto.NewChatResponse(room))
	f.notifyNewChat(ctx, room, memberID, actor)
}

// MemberRemoved unsubscribes the member's sessions and notifies the rest.
func (f *Fanout) MemberRemoved(ctx context.Context, removal *rooms.Removal) {
	room := removal.Room
	f.hub.LeaveRoomAll(removal.MemberID, room.ID)

	notify := append(room.MemberIDs(), removal.MemberID)
	if removal.RoomDeleted {
		f.RoomDeleted(ctx, room, notify)
		return
	}
	f.toMembers(ctx, notify, websocket.EventLeaveChat, dto.MemberEvent{ChatID: room.ID, UserID: removal.MemberID})
}

// RoomDeleted unsubscribes everyone and tells each member they left.
func (f *Fanout) RoomDeleted(ctx context.Context, room *models.Room, members []uuid.UUID) {
	for _, id := range members {
		f.hub.LeaveRoomAll(id, room.ID)
		f.toMembers(ctx, []uuid.UUID{id}, websocket.EventLeaveChat, dto.MemberEvent{ChatID: room.ID, UserID: id})
	}
}

func (f *Fanout) DetailsUpdated(ctx context.Context, room *models.Room) {
	f.toMembers(ctx, room.MemberIDs(), websocket.EventUpdateGroupName, dto.NewChatResponse(room))
}

func (f *Fanout) MessageEdited(ctx context.Context, msg *models.Message, members []uuid.UUID) {
	f.toMembers(ctx, members, websocket.EventMessageEdited, dto.NewMessageResponse(msg))
}

func (f *Fanout) MessageDeleted(ctx context.Context, msg *models.Message, room *models.Room) {
	f.toMembers(ctx, room.MemberIDs(), websocket.EventMessageDeleted, dto.MessageDeleted{
		ChatID:        msg.ChatRoomID,
		MessageID:     msg.ID,
		LastMessageID: room.LastMessageID,
	})
}

func (f *Fanout) Reaction(ctx context.Context, msg *models.Message, members []uuid.UUID) {
	f.toMembers(ctx, members, websocket.EventMessageReaction, dto.NewMessageResponse(msg))
}

// UnreadReset syncs the member's other sessions.
func (f *Fanout) UnreadReset(ctx context.Context, userID, roomID uuid.UUID) {
	f.toMembers(ctx, []uuid.UUID{userID}, websocket.EventUnreadReset, dto.UnreadReset{ChatID: roomID})
}
