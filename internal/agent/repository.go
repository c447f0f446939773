package agent

import (
	"clurb/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository persists assistant conversations. Every chat lookup is scoped
// to its owner, so another user's chat reads as not found.
type Repository interface {
	ListChats(ctx context.Context, userID uint64) ([]domain.AgentChat, error)
	CreateChat(ctx context.Context, chat *domain.AgentChat) error
	FindChat(ctx context.Context, id, userID uint64) (*domain.AgentChat, error)
	UpdateTitle(ctx context.Context, id, userID uint64, title string) (int64, error)
	DeleteChat(ctx context.Context, id, userID uint64) (int64, error)
	ListMessages(ctx context.Context, chatID uint64) ([]domain.AgentMessage, error)
	// AddMessage stores the message and bumps the chat's updated_at.
	AddMessage(ctx context.Context, message *domain.AgentMessage) error
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) ListChats(ctx context.Context, userID uint64) ([]domain.AgentChat, error) {
	chats := []domain.AgentChat{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *RepositoryImpl) CreateChat(ctx context.Context, chat *domain.AgentChat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *RepositoryImpl) FindChat(ctx context.Context, id, userID uint64) (*domain.AgentChat, error) {
	var chat domain.AgentChat
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *RepositoryImpl) UpdateTitle(ctx context.Context, id, userID uint64, title string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.AgentChat{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}

func (r *RepositoryImpl) DeleteChat(ctx context.Context, id, userID uint64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.AgentChat{})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		if affected == 0 {
			return nil
		}
		return tx.Where("chat_id = ?", id).Delete(&domain.AgentMessage{}).Error
	})
	return affected, err
}

func (r *RepositoryImpl) ListMessages(ctx context.Context, chatID uint64) ([]domain.AgentMessage, error) {
	messages := []domain.AgentMessage{}
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *RepositoryImpl) AddMessage(ctx context.Context, message *domain.AgentMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&domain.AgentChat{}).
			Where("id = ?", message.ChatID).
			Update("updated_at", message.CreatedAt).Error
	})
}
