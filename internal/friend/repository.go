package friend

import (
	"clurb/internal/domain"
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindUser(ctx context.Context, id uint64) (*domain.User, error)
	FindByID(ctx context.Context, id uint64) (*domain.Friendship, error)
	// FindBetween returns the friendship between a and b in either direction.
	FindBetween(ctx context.Context, a, b uint64) (*domain.Friendship, error)
	Save(ctx context.Context, friendship *domain.Friendship) error
	// ListForUser returns pending and accepted rows on either side, with both
	// users loaded.
	ListForUser(ctx context.Context, userID uint64) ([]domain.Friendship, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindUser(ctx context.Context, id uint64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Friendship, error) {
	var f domain.Friendship
	if err := r.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *RepositoryImpl) FindBetween(ctx context.Context, a, b uint64) (*domain.Friendship, error) {
	var f domain.Friendship
	err := r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *RepositoryImpl) Save(ctx context.Context, friendship *domain.Friendship) error {
	return r.db.WithContext(ctx).Save(friendship).Error
}

func (r *RepositoryImpl) ListForUser(ctx context.Context, userID uint64) ([]domain.Friendship, error) {
	var rows []domain.Friendship
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Friend").
		Where("(user_id = ? OR friend_id = ?) AND status <> ?", userID, userID, domain.FriendshipDeclined).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}
