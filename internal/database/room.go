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

var _ services.RoomRepository = (*Database)(nil)

func preloadMembers(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at ASC, user_id ASC")
}

// touchRoom bumps member_count by delta and takes the room row lock, so
// membership changes to the same room are serialized.
func touchRoom(q *gorm.DB, roomID uuid.UUID, delta int) *gorm.DB {
	return q.Model(&models.Room{}).Where("id = ?", roomID).Updates(map[string]interface{}{
		"member_count": gorm.Expr("member_count + ?", delta),
		"updated_at":   time.Now().UTC(),
	})
}

func (d *Database) roomExists(tx *gorm.DB, roomID uuid.UUID) (bool, error) {
	var n int64
	if err := tx.Model(&models.Room{}).Where("id = ?", roomID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateRoom inserts the room and its member rows in one transaction.
func (d *Database) CreateRoom(ctx context.Context, room *models.Room) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
			return err
		}
		return tx.Create(&room.Members).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrRoomExists
	}
	return classify(err)
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).Preload("Members", preloadMembers).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrRoomNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &room, nil
}

func (d *Database) FindDirectRoom(ctx context.Context, key string) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).Preload("Members", preloadMembers).First(&room, "direct_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrRoomNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &room, nil
}

// ListUserRooms returns the rooms userID belongs to, most recently active first.
func (d *Database) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	db := d.db.WithContext(ctx)
	sub := db.Model(&models.RoomMember{}).Select("room_id").Where("user_id = ?", userID)

	var rooms []models.Room
	err := db.Preload("Members", preloadMembers).
		Where("id IN (?)", sub).
		Order("updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, classify(err)
	}
	return rooms, nil
}

func (d *Database) GetMember(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	var m models.RoomMember
	err := d.db.WithContext(ctx).First(&m, "room_id = ? AND user_id = ?", roomID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotMember
	}
	if err != nil {
		return nil, classify(err)
	}
	return &m, nil
}

// AddMember appends userID unless the room already holds maxMembers.
func (d *Database) AddMember(ctx context.Context, roomID, userID uuid.UUID, maxMembers int) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := touchRoom(tx.Where("member_count < ?", maxMembers), roomID, 1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			ok, err := d.roomExists(tx, roomID)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.ErrRoomNotFound
			}
			return apperrors.ErrRoomFull
		}

		var existing int64
		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperrors.ErrAlreadyMember
		}

		return tx.Create(&models.RoomMember{
			RoomID:   roomID,
			UserID:   userID,
			JoinedAt: time.Now().UTC(),
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrAlreadyMember
	}
	return classify(err)
}

// RemoveMember deletes the membership row unless userID is the room's only admin.
// It returns the number of members left.
func (d *Database) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) (int, error) {
	var remaining int
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := touchRoom(tx, roomID, -1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrRoomNotFound
		}

		res = tx.Where("room_id = ? AND user_id = ?", roomID, userID).
			Where("is_admin = ? OR (SELECT COUNT(*) FROM room_members rm WHERE rm.room_id = ? AND rm.is_admin = ?) > 1",
				false, roomID, true).
			Delete(&models.RoomMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.RoomMember{}).
				Where("room_id = ? AND user_id = ?", roomID, userID).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperrors.ErrNotMember
			}
			return apperrors.ErrLastAdmin
		}

		var room models.Room
		if err := tx.Select("member_count").First(&room, "id = ?", roomID).Error; err != nil {
			return err
		}
		remaining = room.MemberCount
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	return remaining, nil
}

// UpdateRoomDetails applies patch. A non-nil Admins list replaces the admin set
// and must name current members only.
func (d *Database) UpdateRoomDetails(ctx context.Context, roomID uuid.UUID, patch services.RoomPatch) error {
	fields := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.RoomName != nil {
		fields["room_name"] = *patch.RoomName
	}
	if patch.RoomPrivacy != nil {
		fields["room_privacy"] = *patch.RoomPrivacy
	}
	if patch.ProfileImage != nil {
		fields["profile_image"] = *patch.ProfileImage
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Room{}).Where("id = ?", roomID).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrRoomNotFound
		}
		if patch.Admins == nil {
			return nil
		}

		var n int64
		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id IN ?", roomID, patch.Admins).
			Count(&n).Error; err != nil {
			return err
		}
		if int(n) != len(patch.Admins) {
			return apperrors.ErrNotMember.WithMessage("admins must be members of the chat")
		}

		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ?", roomID).
			Update("is_admin", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id IN ?", roomID, patch.Admins).
			Update("is_admin", true).Error
	})
	return classify(err)
}

func (d *Database) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", roomID).Delete(&models.Room{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrRoomNotFound
		}
		return nil
	})
	return classify(err)
}

// ResetUnread sets the member's counter to zero.
func (d *Database) ResetUnread(ctx context.Context, roomID, userID uuid.UUID) error {
	res := d.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("unread_count", 0)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotMember
	}
	return nil
}

func (d *Database) UserRoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("user_id = ?", userID).
		Pluck("room_id", &ids).Error
	return ids, classify(err)
}

func (d *Database) RoomMemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ?", roomID).
		Order("joined_at ASC, user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, classify(err)
}
