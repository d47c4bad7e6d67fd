package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/pagination"
)

// Repository is the inbox table. Every query is scoped to one account.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	Page(ctx context.Context, q inboxQuery) ([]models.Notification, *pagination.Cursor, error)
	CountUnread(ctx context.Context, accountID uuid.UUID) (int64, error)
	// MarkRead reports whether the notification belongs to the account.
	// Marking an already read notification is not an error.
	MarkRead(ctx context.Context, accountID, notificationID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, accountID uuid.UUID, at time.Time) (int64, error)
}

type inboxQuery struct {
	accountID  uuid.UUID
	limit      int
	after      *pagination.Cursor
	unreadOnly bool
}

type gormInbox struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormInbox{db: db}
}

func (g *gormInbox) owned(ctx context.Context, accountID uuid.UUID) *gorm.DB {
	return g.db.WithContext(ctx).Model(&models.Notification{}).Where("account_id = ?", accountID)
}

func (g *gormInbox) Create(ctx context.Context, notification *models.Notification) error {
	return g.db.WithContext(ctx).Create(notification).Error
}

func (g *gormInbox) Page(ctx context.Context, q inboxQuery) ([]models.Notification, *pagination.Cursor, error) {
	tx := g.owned(ctx, q.accountID)
	if q.unreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	var rows []models.Notification
	if err := tx.Scopes(pagination.Newest(q.after, q.limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, q.limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (g *gormInbox) CountUnread(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var n int64
	err := g.owned(ctx, accountID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

func (g *gormInbox) MarkRead(ctx context.Context, accountID, notificationID uuid.UUID, at time.Time) (bool, error) {
	// COALESCE keeps the first read time and still reports a match for
	// notifications that were read before.
	res := g.owned(ctx, accountID).
		Where("id = ?", notificationID).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (g *gormInbox) MarkAllRead(ctx context.Context, accountID uuid.UUID, at time.Time) (int64, error) {
	res := g.owned(ctx, accountID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}
