// Package messages implements the message log: append, edit, delete,
// reactions, per-member unread counters and paged history.
package messages

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/metrics"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/retry"
	"github.com/thereayou/loci-chat/internal/services"
)

type Options struct {
	PageSizeDefault int
	PageSizeMax     int
}

type Log struct {
	repo          services.MessageRepository
	rooms         services.RoomRepository
	directory     services.UserDirectory
	notifications services.NotificationLog
	opts          Options
	ids           *idSource
}

func NewLog(repo services.MessageRepository, rooms services.RoomRepository, directory services.UserDirectory, notifications services.NotificationLog, opts Options) *Log {
	if opts.PageSizeDefault < 1 {
		opts.PageSizeDefault = 5
	}
	if opts.PageSizeMax < opts.PageSizeDefault {
		opts.PageSizeMax = 100
	}
	return &Log{
		repo:          repo,
		rooms:         rooms,
		directory:     directory,
		notifications: notifications,
		opts:          opts,
		ids:           newIDSource(),
	}
}

// Sent is the result of a successful send.
type Sent struct {
	Message    *models.Message
	Room       *models.Room
	Recipients []uuid.UUID // members other than the sender
}

// Send persists a message and bumps every other member's unread counter.
func (l *Log) Send(ctx context.Context, roomID, senderID uuid.UUID, content Content) (*Sent, error) {
	content, err := content.Normalize()
	if err != nil {
		return nil, err
	}

	room, err := retry.Value(ctx, func() (*models.Room, error) { return l.rooms.GetRoom(ctx, roomID) })
	if err != nil {
		return nil, err
	}
	if !room.HasMember(senderID) {
		return nil, apperrors.ErrNotMember
	}
	if err := l.checkNotBlocked(ctx, room, senderID); err != nil {
		return nil, err
	}

	id, now := l.ids.next()
	msg := &models.Message{
		ID:         id,
		ChatRoomID: roomID,
		SenderID:   senderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	content.apply(msg)

	start := time.Now()
	if err := l.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.StoreLatency.WithLabelValues("insert_message").Observe(time.Since(start).Seconds())
	metrics.MessagesSent.WithLabelValues(room.Kind()).Inc()

	recipients := make([]uuid.UUID, 0, len(room.Members))
	for _, m := range room.Members {
		if m.UserID != senderID {
			recipients = append(recipients, m.UserID)
		}
	}
	return &Sent{Message: msg, Room: room, Recipients: recipients}, nil
}

// checkNotBlocked rejects direct messages to a user who blocked the sender.
func (l *Log) checkNotBlocked(ctx context.Context, room *models.Room, senderID uuid.UUID) error {
	other, ok := room.OtherMember(senderID)
	if !ok {
		return nil
	}
	u, err := retry.Value(ctx, func() (*services.DirectoryUser, error) { return l.directory.GetUser(ctx, other) })
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil
		}
		return err
	}
	if u.HasBlocked(senderID) {
		return apperrors.ErrBlocked
	}
	return nil
}

func (l *Log) Edit(ctx context.Context, messageID string, senderID uuid.UUID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message is empty")
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return nil, apperrors.Validation("message is too long")
	}
	return l.repo.UpdateMessageText(ctx, messageID, senderID, text)
}

// Delete removes a message owned by senderID; the room's last message pointer is repaired in the same transaction.
func (l *Log) Delete(ctx context.Context, messageID string, senderID uuid.UUID) (*models.Message, error) {
	return l.repo.DeleteMessage(ctx, messageID, senderID)
}

func (l *Log) DeleteAllBySender(ctx context.Context, roomID, senderID uuid.UUID) (int64, error) {
	return l.repo.DeleteMessagesBySender(ctx, roomID, senderID)
}

func (l *Log) DeleteRoomMessages(ctx context.Context, roomID uuid.UUID) error {
	return l.repo.DeleteRoomMessages(ctx, roomID)
}

func (l *Log) ResetUnread(ctx context.Context, roomID, memberID uuid.UUID) error {
	return retry.Do(ctx, func() error { return l.rooms.ResetUnread(ctx, roomID, memberID) })
}

// Page is one page of history, newest first.
type Page struct {
	Messages   []models.Message
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// PageSize clamps a requested page size to the configured bounds.
func (l *Log) PageSize(limit int) int {
	switch {
	case limit < 1:
		return l.opts.PageSizeDefault
	case limit > l.opts.PageSizeMax:
		return l.opts.PageSizeMax
	}
	return limit
}

func (l *Log) List(ctx context.Context, roomID, requesterID uuid.UUID, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	limit = l.PageSize(limit)

	if _, err := retry.Value(ctx, func() (*models.RoomMember, error) {
		return l.rooms.GetMember(ctx, roomID, requesterID)
	}); err != nil {
		return nil, err
	}

	var (
		items []models.Message
		total int64
	)
	err := retry.Do(ctx, func() error {
		var err error
		items, total, err = l.repo.ListMessages(ctx, roomID, (page-1)*limit, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Page{
		Messages:   items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: TotalPages(total, limit),
	}, nil
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit < 1 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// AddReaction appends tag to the message and records a notification for its sender.
func (l *Log) AddReaction(ctx context.Context, messageID string, memberID uuid.UUID, tag string) (*models.Message, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || utf8.RuneCountInString(tag) > maxTagLength {
		return nil, apperrors.Validation("reaction must be 1 to 32 characters")
	}

	msg, err := retry.Value(ctx, func() (*models.Message, error) { return l.repo.GetMessage(ctx, messageID) })
	if err != nil {
		return nil, err
	}
	if _, err := l.rooms.GetMember(ctx, msg.ChatRoomID, memberID); err != nil {
		return nil, err
	}

	if err := l.repo.AddReaction(ctx, &models.Reaction{
		MessageID: messageID,
		UserID:    memberID,
		Tag:       tag,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if memberID != msg.SenderID {
		chatID, msgID := msg.ChatRoomID, msg.ID
		entry := &models.Notification{
			UserID:    msg.SenderID,
			ActorID:   memberID,
			Kind:      models.NotificationReaction,
			ChatID:    &chatID,
			MessageID: &msgID,
			Body:      tag,
			CreatedAt: time.Now().UTC(),
		}
		if err := l.notifications.Append(ctx, entry); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("message_id", messageID).Msg("failed to record reaction notification")
		}
	}

	return l.repo.GetMessage(ctx, messageID)
}
