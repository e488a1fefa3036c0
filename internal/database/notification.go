package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/models"
	"github.com/thereayou/loci-chat/internal/services"
	"gorm.io/gorm"
)

var _ services.NotificationLog = (*Notifications)(nil)

// Notifications is the gorm-backed notification log.
type Notifications struct {
	db *gorm.DB
}

func (d *Database) Notifications() *Notifications {
	return &Notifications{db: d.db}
}

func (n *Notifications) Append(ctx context.Context, entry *models.Notification) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return classify(n.db.WithContext(ctx).Create(entry).Error)
}

// List returns a newest-first page of userID's notifications and the total count.
func (n *Notifications) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Notification, int64, error) {
	db := n.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var items []models.Notification
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return items, total, nil
}
