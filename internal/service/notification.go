package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rookgm/kopisort/internal/events"
	"github.com/rookgm/kopisort/internal/models"
	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// notification outcomes
const (
	outcomePersisted = "persisted"
	outcomePublished = "published"
	outcomeFailed    = "failed"
)

// NotificationRepository is interface for interacting with notification-related data
type NotificationRepository interface {
	// CreateNotification inserts notification
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
}

// Recorder counts dispatch outcomes
type Recorder interface {
	Notification(outcome string)
	EventPublished(outcome string)
}

// NotificationDispatcher persists notifications and publishes them as events.
// Failures are logged and swallowed.
type NotificationDispatcher struct {
	repo      NotificationRepository
	tx        Transactor
	publisher events.Publisher
	recorder  Recorder
	logger    *zap.Logger
}

// NewNotificationDispatcher creates new NotificationDispatcher instance
func NewNotificationDispatcher(repo NotificationRepository, tx Transactor, publisher events.Publisher, recorder Recorder, logger *zap.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		repo:      repo,
		tx:        tx,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
	}
}

// Notify creates notification with fresh id in its own transaction, then publishes it
func (nd *NotificationDispatcher) Notify(ctx context.Context, notice models.Notice) {
	// detached from the request so a disconnecting client does not drop the notification
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			nd.recorder.Notification(outcomeFailed)
			nd.logger.Error("notification dispatch panicked",
				zap.Uint64("user_id", notice.UserID),
				zap.Any("panic", r))
		}
	}()

	n := &models.Notification{
		ID:      models.NewNotificationID(),
		UserID:  notice.UserID,
		Title:   notice.Title,
		Message: notice.Message,
		Type:    models.NormalizeNotificationType(notice.Type),
		Link:    notice.Link,
	}

	err := nd.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := nd.repo.CreateNotification(ctx, n)
		return err
	})
	if err != nil {
		nd.recorder.Notification(outcomeFailed)
		nd.logger.Error("failed to create notification",
			zap.Uint64("user_id", notice.UserID),
			zap.String("event", notice.Event),
			zap.Error(err))
		return
	}
	nd.recorder.Notification(outcomePersisted)

	nd.publish(ctx, notice, n)
}

func (nd *NotificationDispatcher) publish(ctx context.Context, notice models.Notice, n *models.Notification) {
	key := notice.OrderID
	if key == "" {
		key = fmt.Sprint(notice.UserID)
	}

	env, err := events.NewEnvelope(notice.Event, key, notice.OrderID, events.NotificationPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		OrderID:        notice.OrderID,
		Title:          n.Title,
		Message:        n.Message,
		Type:           string(n.Type),
		Link:           n.Link,
	})
	if err == nil {
		err = nd.publisher.Publish(ctx, env)
	}
	if err != nil {
		nd.recorder.EventPublished(outcomeFailed)
		nd.logger.Warn("failed to publish notification event",
			zap.String("notification_id", n.ID),
			zap.String("event", notice.Event),
			zap.Error(err))
		return
	}
	nd.recorder.EventPublished(outcomePublished)

	nd.logger.Debug("notification dispatched",
		zap.String("notification_id", n.ID),
		zap.Uint64("user_id", n.UserID),
		zap.String("event", notice.Event))
}
