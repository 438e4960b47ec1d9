package repositories

import (
	"context"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// NotificationRepository defines the interface for notification persistence.
// Read and view tracking is done with single-statement set-adds so concurrent
// readers never lose each other's marks.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, executor SQLExecutor, n *models.Notification) error
	GetNotificationByID(ctx context.Context, id string) (*models.Notification, error)
	ListNotificationsForUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationsViewed(ctx context.Context, executor SQLExecutor, ids []string, userID string) error
	MarkNotificationRead(ctx context.Context, executor SQLExecutor, id, userID string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, executor SQLExecutor, userID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	ListNotifications(ctx context.Context, page, pageSize int) ([]models.Notification, int, error)
	NotificationStats(ctx context.Context) (*models.NotificationStats, error)
	DeleteNotification(ctx context.Context, executor SQLExecutor, id string) error
}

type notificationRepository struct {
	db SQLExecutor
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db SQLExecutor) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, title, message, type, priority, link, recipients, is_for_all_users, image,
	image_type, read_by, viewed_by, created_by, created_at`

const visibleToUser = `(is_for_all_users OR $1::text = ANY(recipients))`

func (r *notificationRepository) CreateNotification(ctx context.Context, executor SQLExecutor, n *models.Notification) error {
	executor = orDB(executor, r.db)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.Recipients = stringArray(n.Recipients)
	n.ReadBy = stringArray(n.ReadBy)
	n.ViewedBy = stringArray(n.ViewedBy)

	query := `INSERT INTO notifications (` + notificationColumns + `)
	          VALUES (:id, :title, :message, :type, :priority, :link, :recipients, :is_for_all_users, :image,
	              :image_type, :read_by, :viewed_by, :created_by, :created_at)`
	if _, err := executor.NamedExecContext(ctx, query, n); err != nil {
		return mapError(err, "creating notification")
	}
	return nil
}

func (r *notificationRepository) GetNotificationByID(ctx context.Context, id string) (*models.Notification, error) {
	n := &models.Notification{}
	if err := sqlx.GetContext(ctx, r.db, n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "getting notification")
	}
	return n, nil
}

// ListNotificationsForUser returns broadcast and targeted notifications, newest first.
func (r *notificationRepository) ListNotificationsForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	out := []models.Notification{}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + visibleToUser + ` ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, r.db, &out, query, userID); err != nil {
		return nil, mapError(err, "listing notifications for user")
	}
	return out, nil
}

// MarkNotificationsViewed adds userID to viewed_by on every listed notification lacking it.
func (r *notificationRepository) MarkNotificationsViewed(ctx context.Context, executor SQLExecutor, ids []string, userID string) error {
	executor = orDB(executor, r.db)
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE notifications SET viewed_by = array_append(viewed_by, $1::text)
	          WHERE id::text = ANY($2) AND NOT ($1::text = ANY(viewed_by))`
	if _, err := executor.ExecContext(ctx, query, userID, stringArray(ids)); err != nil {
		return mapError(err, "marking notifications viewed")
	}
	return nil
}

// MarkNotificationRead adds userID to read_by, and to viewed_by when absent.
// It reports false when the user had already read the notification.
func (r *notificationRepository) MarkNotificationRead(ctx context.Context, executor SQLExecutor, id, userID string) (bool, error) {
	executor = orDB(executor, r.db)
	query := `UPDATE notifications
	          SET read_by = array_append(read_by, $1::text),
	              viewed_by = CASE WHEN $1::text = ANY(viewed_by) THEN viewed_by ELSE array_append(viewed_by, $1::text) END
	          WHERE id = $2 AND NOT ($1::text = ANY(read_by))`
	res, err := executor.ExecContext(ctx, query, userID, id)
	if err != nil {
		return false, mapError(err, "marking notification read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err, "marking notification read")
	}
	return n > 0, nil
}

// MarkAllNotificationsRead marks every visible, unread notification as read by userID.
func (r *notificationRepository) MarkAllNotificationsRead(ctx context.Context, executor SQLExecutor, userID string) (int64, error) {
	executor = orDB(executor, r.db)
	query := `UPDATE notifications
	          SET read_by = array_append(read_by, $1::text),
	              viewed_by = CASE WHEN $1::text = ANY(viewed_by) THEN viewed_by ELSE array_append(viewed_by, $1::text) END
	          WHERE ` + visibleToUser + ` AND NOT ($1::text = ANY(read_by))`
	res, err := executor.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, mapError(err, "marking all notifications read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "marking all notifications read")
	}
	return n, nil
}

func (r *notificationRepository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE ` + visibleToUser + ` AND NOT ($1::text = ANY(read_by))`
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID); err != nil {
		return 0, mapError(err, "counting unread notifications")
	}
	return count, nil
}

// ListNotifications returns one page of all notifications and the total count.
func (r *notificationRepository) ListNotifications(ctx context.Context, page, pageSize int) ([]models.Notification, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM notifications`); err != nil {
		return nil, 0, mapError(err, "counting notifications")
	}

	page, pageSize = pageBounds(page, pageSize)
	out := []models.Notification{}
	query := `SELECT ` + notificationColumns + ` FROM notifications ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := sqlx.SelectContext(ctx, r.db, &out, query, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, mapError(err, "listing notifications")
	}
	return out, total, nil
}

func (r *notificationRepository) NotificationStats(ctx context.Context) (*models.NotificationStats, error) {
	var row struct {
		Total int `db:"total"`
		Reads int `db:"reads"`
		Views int `db:"views"`
	}
	query := `SELECT COUNT(*) AS total,
	              COALESCE(SUM(cardinality(read_by)), 0) AS reads,
	              COALESCE(SUM(cardinality(viewed_by)), 0) AS views
	          FROM notifications`
	if err := sqlx.GetContext(ctx, r.db, &row, query); err != nil {
		return nil, mapError(err, "notification stats")
	}

	var byType []models.TypeCount
	if err := sqlx.SelectContext(ctx, r.db, &byType, `SELECT type AS key, COUNT(*) AS count FROM notifications GROUP BY type`); err != nil {
		return nil, mapError(err, "notification stats by type")
	}

	stats := &models.NotificationStats{
		Total:      row.Total,
		TotalReads: row.Reads,
		TotalViews: row.Views,
		ByType:     make(map[string]int, len(byType)),
	}
	for _, tc := range byType {
		stats.ByType[tc.Key] = tc.Count
	}
	return stats, nil
}

func (r *notificationRepository) DeleteNotification(ctx context.Context, executor SQLExecutor, id string) error {
	executor = orDB(executor, r.db)
	res, err := executor.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting notification")
	}
	return expectOneRow(res, ErrNotFound, "deleting notification")
}
