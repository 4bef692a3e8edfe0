package repository

import (
	"context"

	"github.com/rookgm/kopisort/internal/models"
	"github.com/rookgm/kopisort/internal/repository/postgres"
)

const insertNotificationQuery = `
						INSERT INTO notifications (id, user_id, title, message, type, link)
						VALUES ($1, $2, $3, $4, $5, $6)
						RETURNING is_read, created_at
`

// NotificationRepository implements NotificationRepository interface
type NotificationRepository struct {
	db *postgres.DB
}

// NewNotificationRepository creates new NotificationRepository instance
func NewNotificationRepository(db *postgres.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts notification
func (nr *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	err := nr.db.QueryRow(ctx, insertNotificationQuery, n.ID, n.UserID, n.Title, n.Message, n.Type, n.Link).
		Scan(&n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	return n, nil
}
