package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ services.MessageRepository = (*Database)(nil)

// repointLastMessage moves a dangling last_message_id to the newest remaining
// message in the room, or NULL when none is left.
const repointLastMessage = `UPDATE rooms SET last_message_id = (
	SELECT id FROM messages WHERE chat_room_id = ? ORDER BY created_at DESC, id DESC LIMIT 1
) WHERE id = ? AND last_message_id IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM messages m WHERE m.id = rooms.last_message_id)`

func preloadReactions(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// InsertMessage stores msg, increments every other member's unread counter
// and advances the room's last message pointer in one transaction. The
// sender's membership row is locked first, so a concurrent leave either
// fails the insert with ErrNotMember or waits for it to commit.
func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.RoomMember
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ? AND user_id = ?", msg.ChatRoomID, msg.SenderID).
			Take(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotMember
		}
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id <> ?", msg.ChatRoomID, msg.SenderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error; err != nil {
			return err
		}

		// Message ids are time ordered, so a late commit never moves the pointer backwards.
		return tx.Model(&models.Room{}).
			Where("id = ? AND (last_message_id IS NULL OR last_message_id < ?)", msg.ChatRoomID, msg.ID).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"updated_at":      msg.CreatedAt,
			}).Error
	})
	return classify(err)
}

func (d *Database) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := d.db.WithContext(ctx).Preload("Reactions", preloadReactions).First(&msg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("message not found")
	}
	if err != nil {
		return nil, classify(err)
	}
	return &msg, nil
}

// ListMessages returns a newest-first page and the room's total message count.
func (d *Database) ListMessages(ctx context.Context, roomID uuid.UUID, offset, limit int) ([]models.Message, int64, error) {
	db := d.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Message{}).Where("chat_room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var messages []models.Message
	err := db.Preload("Reactions", preloadReactions).
		Where("chat_room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return messages, total, nil
}

// UpdateMessageText edits a text message owned by senderID. Ownership and
// the message type are part of the update predicate.
func (d *Database) UpdateMessageText(ctx context.Context, id string, senderID uuid.UUID, text string) (*models.Message, error) {
	db := d.db.WithContext(ctx)
	res := db.Model(&models.Message{}).
		Where("id = ? AND sender_id = ? AND message_type = ?", id, senderID, models.MessageText).
		Updates(map[string]interface{}{
			"text":       text,
			"edited":     true,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&models.Message{}).Where("id = ? AND sender_id = ?", id, senderID).Count(&n).Error; err != nil {
			return nil, classify(err)
		}
		if n > 0 {
			return nil, apperrors.Validation("media messages cannot be edited")
		}
		return nil, apperrors.ErrNotFound.WithMessage("message not found")
	}
	return d.GetMessage(ctx, id)
}

// DeleteMessage hard deletes a message owned by senderID and returns it.
func (d *Database) DeleteMessage(ctx context.Context, id string, senderID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&msg, "id = ? AND sender_id = ?", id, senderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound.WithMessage("message not found")
		}
		if err != nil {
			return err
		}

		if err := tx.Where("message_id = ?", id).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND sender_id = ?", id, senderID).Delete(&models.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound.WithMessage("message not found")
		}
		return tx.Exec(repointLastMessage, msg.ChatRoomID, msg.ChatRoomID).Error
	})
	if err != nil {
		return nil, classify(err)
	}
	return &msg, nil
}

// DeleteMessagesBySender removes everything senderID wrote in a room.
func (d *Database) DeleteMessagesBySender(ctx context.Context, roomID, senderID uuid.UUID) (int64, error) {
	var deleted int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&models.Message{}).Select("id").Where("chat_room_id = ? AND sender_id = ?", roomID, senderID)
		if err := tx.Where("message_id IN (?)", ids).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}

		res := tx.Where("chat_room_id = ? AND sender_id = ?", roomID, senderID).Delete(&models.Message{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		if deleted == 0 {
			return nil
		}
		return tx.Exec(repointLastMessage, roomID, roomID).Error
	})
	if err != nil {
		return 0, classify(err)
	}
	return deleted, nil
}

func (d *Database) DeleteRoomMessages(ctx context.Context, roomID uuid.UUID) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&models.Message{}).Select("id").Where("chat_room_id = ?", roomID)
		if err := tx.Where("message_id IN (?)", ids).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Room{}).Where("id = ?", roomID).Update("last_message_id", nil).Error
	})
	return classify(err)
}

func (d *Database) AddReaction(ctx context.Context, reaction *models.Reaction) error {
	err := d.db.WithContext(ctx).Create(reaction).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperrors.ErrNotFound.WithMessage("message not found")
	}
	return classify(err)
}
