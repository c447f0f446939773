package progress

import (
	"clurb/internal/domain"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Upsert(ctx context.Context, progress *domain.ReadingProgress) error
	Get(ctx context.Context, documentID, userID uint64) (*domain.ReadingProgress, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

// Upsert writes the row keyed on (document_id, user_id); the last write wins.
func (r *RepositoryImpl) Upsert(ctx context.Context, progress *domain.ReadingProgress) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"current_page", "last_read_at"}),
		}).
		Create(progress).Error
}

func (r *RepositoryImpl) Get(ctx context.Context, documentID, userID uint64) (*domain.ReadingProgress, error) {
	var progress domain.ReadingProgress
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}
