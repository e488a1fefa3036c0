package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/messages"
	"github.com/thereayou/loci-chat/internal/metrics"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/rooms"
	"github.com/thereayou/loci-chat/internal/websocket"
)

type identifyPayload struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	NickName string `json:"nickName"`
}

type chatPayload struct {
	ChatID string `json:"chatId"`
}

type messagePayload struct {
	Message     string `json:"message"`
	MediaURL    string `json:"mediaUrl"`
	MediaKind   string `json:"mediaKind"`
	ChatID      string `json:"chatId"`
	RecipientID string `json:"recipientId"`
}

type editPayload struct {
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

type deletePayload struct {
	MessageID string `json:"messageId"`
}

// Gateway binds inbound websocket events to the room store, message log and
// hub. Errors go back to the client as socketError; the connection stays open.
type Gateway struct {
	hub       *websocket.Hub
	store     *rooms.Store
	log       *messages.Log
	fanout    *Fanout
	opTimeout time.Duration
}

func NewGateway(hub *websocket.Hub, store *rooms.Store, log *messages.Log, fanout *Fanout, opTimeout time.Duration) *Gateway {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Gateway{hub: hub, store: store, log: log, fanout: fanout, opTimeout: opTimeout}
}

func (g *Gateway) HandleMessage(client *websocket.Client, frame *websocket.Frame) error {
	// Detached from the connection so a disconnect right after sending
	// does not abort persistence.
	ctx, cancel := context.WithTimeout(context.Background(), g.opTimeout)
	defer cancel()

	l := logger.L().With().
		Str(logger.FieldClientID, client.ID.String()).
		Str(logger.FieldEvent, frame.Event).
		Logger()
	ctx = logger.WithLogger(ctx, l)

	err := g.dispatch(ctx, client, frame)
	if err != nil {
		kind := apperrors.KindOf(err)
		metrics.ErrorsTotal.WithLabelValues(string(kind)).Inc()
		if kind == apperrors.KindInternal || kind == apperrors.KindTransient {
			l.Error().Err(err).Msg("event failed")
		} else {
			l.Debug().Err(err).Msg("event rejected")
		}
	}
	return err
}

func (g *Gateway) dispatch(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	if frame.Event == websocket.EventConnected {
		return g.identify(client, frame)
	}
	if client.State() != websocket.StateAuthenticated {
		return apperrors.ErrNotIdentified
	}

	switch frame.Event {
	case websocket.EventJoinChat:
		return g.joinChat(ctx, client, frame)
	case websocket.EventLeaveChat:
		return g.leaveChat(client, frame)
	case websocket.EventStartTyping, websocket.EventStopTyping:
		return g.typing(client, frame)
	case websocket.EventMessage:
		return g.sendMessage(ctx, client, frame)
	case websocket.EventEditMessage:
		return g.editMessage(ctx, client, frame)
	case websocket.EventDeleteMessage:
		return g.deleteMessage(ctx, client, frame)
	case websocket.EventReadChat:
		return g.readChat(ctx, client, frame)
	default:
		return apperrors.BadEvent("unknown event " + frame.Event)
	}
}

func decode(frame *websocket.Frame, v interface{}) error {
	if len(frame.Data) == 0 {
		return apperrors.BadEvent(frame.Event + " requires a payload")
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return apperrors.BadEvent("malformed " + frame.Event + " payload")
	}
	return nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.BadEvent("invalid " + field)
	}
	return id, nil
}

func (g *Gateway) identify(client *websocket.Client, frame *websocket.Frame) error {
	var p identifyPayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	userID, err := parseID(p.UserID, "userId")
	if err != nil {
		return err
	}
	if userID != client.TokenUserID {
		return apperrors.ErrNotIdentified.WithMessage("userId does not match the token")
	}
	if err := g.hub.Identify(client, userID, p.Name, p.NickName); err != nil {
		if errors.Is(err, websocket.ErrNotRegistered) {
			return apperrors.ErrNotIdentified.WithMessage("connection closed")
		}
		return err
	}
	client.SendServerMessage("connected")
	return nil
}

func (g *Gateway) joinChat(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var p chatPayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	roomID, err := parseID(p.ChatID, "chatId")
	if err != nil {
		return err
	}
	if _, err := g.store.Get(ctx, roomID, client.UserID()); err != nil {
		return err
	}
	g.hub.JoinRoom(client, roomID)
	client.SendServerMessage("joined " + roomID.String())
	return nil
}

func (g *Gateway) leaveChat(client *websocket.Client, frame *websocket.Frame) error {
	var p chatPayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	roomID, err := parseID(p.ChatID, "chatId")
	if err != nil {
		return err
	}
	g.hub.LeaveRoom(client, roomID)
	return nil
}

func (g *Gateway) typing(client *websocket.Client, frame *websocket.Frame) error {
	var p chatPayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	roomID, err := parseID(p.ChatID, "chatId")
	if err != nil {
		return err
	}
	if !client.IsInRoom(roomID) {
		return apperrors.ErrNotMember.WithMessage("join the chat before typing")
	}

	out, err := websocket.Encode(frame.Event, websocket.TypingPayload{
		ChatID: roomID.String(),
		UserID: client.UserID().String(),
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	g.hub.BroadcastToRoom(roomID, out, client.ID)
	return nil
}

func (g *Gateway) sendMessage(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var p messagePayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	content := messages.Content{Text: p.Message, MediaURL: p.MediaURL, MediaKind: models.MediaKind(p.MediaKind)}
	sender := client.UserID()

	var roomID uuid.UUID
	switch {
	case p.ChatID != "":
		id, err := parseID(p.ChatID, "chatId")
		if err != nil {
			return err
		}
		roomID = id

	case p.RecipientID != "":
		recipient, err := parseID(p.RecipientID, "recipientId")
		if err != nil {
			return err
		}
		room, err := g.directRoom(ctx, sender, recipient, content)
		if err != nil {
			return err
		}
		roomID = room.ID

	default:
		return apperrors.BadEvent("message requires chatId or recipientId")
	}

	sent, err := g.log.Send(ctx, roomID, sender, content)
	if err != nil {
		return err
	}
	name, _ := client.Names()
	g.fanout.MessageSent(ctx, sent, name)
	return nil
}

// directRoom finds the one-to-one room for the pair, creating it on first message.
func (g *Gateway) directRoom(ctx context.Context, sender, recipient uuid.UUID, content messages.Content) (*models.Room, error) {
	room, err := g.store.FindOneToOne(ctx, sender, recipient)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, apperrors.ErrRoomNotFound) {
		return nil, err
	}
	if content.Empty() {
		return nil, apperrors.ErrPrivateChatRequiresContent
	}
	if _, err := content.Normalize(); err != nil {
		return nil, err
	}

	room, err = g.store.CreateOneToOne(ctx, sender, recipient, sender)
	if errors.Is(err, apperrors.ErrRoomExists) {
		// lost a race with the other member
		return g.store.FindOneToOne(ctx, sender, recipient)
	}
	if err != nil {
		return nil, err
	}
	g.fanout.RoomCreated(ctx, room, sender)
	return room, nil
}

func (g *Gateway) editMessage(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var p editPayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	msg, err := g.log.Edit(ctx, p.MessageID, client.UserID(), p.Message)
	if err != nil {
		return err
	}
	members, err := g.store.MemberIDs(ctx, msg.ChatRoomID)
	if err != nil {
		return err
	}
	g.fanout.MessageEdited(ctx, msg, members)
	return nil
}

func (g *Gateway) deleteMessage(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var p deletePayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	msg, err := g.log.Delete(ctx, p.MessageID, client.UserID())
	if err != nil {
		return err
	}
	room, err := g.store.Get(ctx, msg.ChatRoomID, client.UserID())
	if err != nil {
		return err
	}
	g.fanout.MessageDeleted(ctx, msg, room)
	return nil
}

func (g *Gateway) readChat(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var p chatPayload
	if err := decode(frame, &p); err != nil {
		return err
	}
	roomID, err := parseID(p.ChatID, "chatId")
	if err != nil {
		return err
	}
	if err := g.log.ResetUnread(ctx, roomID, client.UserID()); err != nil {
		return err
	}
	g.fanout.UnreadReset(ctx, client.UserID(), roomID)
	return nil
}
