package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/zulandar/bikereg/internal/models"
)

// NotificationView is a notification with its age rendered for display.
type NotificationView struct {
	models.Notification
	Age string `json:"age"`
}

func (r *Registry) addNotification(ctx context.Context, message string) error {
	n := models.Notification{Message: message, CreatedAt: r.now()}
	if err := r.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("registry: add notification: %w", err)
	}
	return nil
}

// ListNotifications returns a page of notifications, newest first, and the
// total count.
func (r *Registry) ListNotifications(ctx context.Context, p Page) ([]NotificationView, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("registry: count notifications: %w", err)
	}
	var rows []models.Notification
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if err := p.apply(q).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("registry: list notifications: %w", err)
	}

	now := r.now()
	out := make([]NotificationView, len(rows))
	for i, n := range rows {
		out[i] = NotificationView{Notification: n, Age: humanize.RelTime(n.CreatedAt, now, "ago", "from now")}
	}
	return out, total, nil
}

// UnreadCount returns how many notifications have not been read.
func (r *Registry) UnreadCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("is_read = ?", false).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("registry: unread count: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification as read.
func (r *Registry) MarkAllRead(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).Where("is_read = ?", false).Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("registry: mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteNotification removes one notification.
func (r *Registry) DeleteNotification(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Notification{}, id)
	if res.Error != nil {
		return fmt.Errorf("registry: delete notification %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("notification", id)
	}
	return nil
}

// DeleteAllNotifications removes every notification.
func (r *Registry) DeleteAllNotifications(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("registry: delete all notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PruneRead deletes read notifications older than retention.
func (r *Registry) PruneRead(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := r.now().Add(-retention)
	res := r.db.WithContext(ctx).Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("registry: prune notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
