package chat

import (
	"clurb/internal/domain"
	"context"
	"slices"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	FindUser(ctx context.Context, id uint64) (*domain.User, error)
	// Recent returns the newest limit messages in ascending order.
	Recent(ctx context.Context, documentID uint64, limit int) ([]domain.ChatMessage, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, msg *domain.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *RepositoryImpl) FindUser(ctx context.Context, id uint64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *RepositoryImpl) Recent(ctx context.Context, documentID uint64, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("document_id = ?", documentID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
