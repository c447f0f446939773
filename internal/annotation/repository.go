package annotation

import (
	"clurb/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, note *domain.Annotation) error
	FindUser(ctx context.Context, id uint64) (*domain.User, error)
	FindByID(ctx context.Context, id uint64) (*domain.Annotation, error)
	ListByPage(ctx context.Context, documentID uint64, page int) ([]domain.Annotation, error)
	// UpdatePosition and Delete match on author_id as well as id and return
	// the number of affected rows, so a non-author changes nothing.
	UpdatePosition(ctx context.Context, id, authorID uint64, pos Position) (int64, error)
	Delete(ctx context.Context, id, authorID uint64) (int64, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, note *domain.Annotation) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *RepositoryImpl) FindUser(ctx context.Context, id uint64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Annotation, error) {
	var note domain.Annotation
	if err := r.db.WithContext(ctx).First(&note, id).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *RepositoryImpl) ListByPage(ctx context.Context, documentID uint64, page int) ([]domain.Annotation, error) {
	var notes []domain.Annotation
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("document_id = ? AND page_number = ?", documentID, page).
		Order("created_at ASC, id ASC").
		Find(&notes).Error
	return notes, err
}

func (r *RepositoryImpl) UpdatePosition(ctx context.Context, id, authorID uint64, pos Position) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Annotation{}).
		Where("id = ? AND author_id = ?", id, authorID).
		Updates(map[string]any{
			"position_x": pos.X,
			"position_y": pos.Y,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *RepositoryImpl) Delete(ctx context.Context, id, authorID uint64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND author_id = ?", id, authorID).
		Delete(&domain.Annotation{})
	return result.RowsAffected, result.Error
}
