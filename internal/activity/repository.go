package activity

import (
	"clurb/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, event *domain.ActivityEvent) error
	ListSince(ctx context.Context, userID uint64, since time.Time) ([]domain.ActivityEvent, error)
	ListRecent(ctx context.Context, userID uint64, limit int) ([]domain.ActivityEvent, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, event *domain.ActivityEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *RepositoryImpl) ListSince(ctx context.Context, userID uint64, since time.Time) ([]domain.ActivityEvent, error) {
	var events []domain.ActivityEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&events).Error
	return events, err
}

func (r *RepositoryImpl) ListRecent(ctx context.Context, userID uint64, limit int) ([]domain.ActivityEvent, error) {
	var events []domain.ActivityEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
