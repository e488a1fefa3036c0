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

var _ services.UserDirectory = (*Directory)(nil)

// Directory is the gorm-backed user directory.
type Directory struct {
	db *gorm.DB
}

func (d *Database) Directory() *Directory {
	return &Directory{db: d.db}
}

// SaveUser upserts a directory record. Accounts are owned by another service which syncs them here.
func (d *Directory) SaveUser(ctx context.Context, user *models.User) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "nick_name", "avatar_url", "private"}),
	}).Create(user).Error
	return classify(err)
}

func (d *Directory) BlockUser(ctx context.Context, userID, blockedID uuid.UUID) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserBlock{UserID: userID, BlockedID: blockedID}).Error
	return classify(err)
}

func (d *Directory) GetUser(ctx context.Context, id uuid.UUID) (*services.DirectoryUser, error) {
	db := d.db.WithContext(ctx)

	var user models.User
	err := db.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUnknownUser
	}
	if err != nil {
		return nil, classify(err)
	}

	var blocked []uuid.UUID
	if err := db.Model(&models.UserBlock{}).Where("user_id = ?", id).Pluck("blocked_id", &blocked).Error; err != nil {
		return nil, classify(err)
	}

	return &services.DirectoryUser{
		ID:        user.ID,
		Name:      user.Name,
		NickName:  user.NickName,
		AvatarURL: user.AvatarURL,
		Private:   user.Private,
		Blocked:   blocked,
	}, nil
}

// SetOnline records the presence flag and the last time it changed.
func (d *Directory) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	err := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online":    online,
			"last_seen_at": time.Now().UTC(),
		}).Error
	return classify(err)
}

// IsOnline reads the stored presence flag.
func (d *Directory) IsOnline(ctx context.Context, id uuid.UUID) (bool, error) {
	var user models.User
	err := d.db.WithContext(ctx).Select("is_online").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperrors.ErrUnknownUser
	}
	if err != nil {
		return false, classify(err)
	}
	return user.IsOnline, nil
}
