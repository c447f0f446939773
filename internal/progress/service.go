package progress

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"context"
	goErrors "errors"
	"fmt"

	"gorm.io/gorm"
)

// Authorizer resolves a caller's membership of a document.
type Authorizer interface {
	Authorize(ctx context.Context, documentID, userID uint64) (*domain.Document, string, error)
}

type Service interface {
	RecordPage(ctx context.Context, documentID, userID uint64, page int) error
	GetProgress(ctx context.Context, documentID, userID uint64) (*domain.ReadingProgress, error)
}

type DefaultService struct {
	repository Repository
	tracker    *Tracker
	access     Authorizer
}

func NewService(repository Repository, tracker *Tracker, access Authorizer) Service {
	return &DefaultService{repository: repository, tracker: tracker, access: access}
}

func (s *DefaultService) RecordPage(ctx context.Context, documentID, userID uint64, page int) error {
	doc, _, err := s.access.Authorize(ctx, documentID, userID)
	if err != nil {
		return err
	}

	if page < 1 {
		return errors.UnprocessableEntity("page must be at least 1", nil)
	}
	if doc.TotalPages > 0 && page > doc.TotalPages {
		return errors.UnprocessableEntity(fmt.Sprintf("page must be at most %d", doc.TotalPages), nil)
	}

	s.tracker.Record(documentID, userID, page)
	return nil
}

// GetProgress prefers a page still waiting in the debounce window over the stored row.
func (s *DefaultService) GetProgress(ctx context.Context, documentID, userID uint64) (*domain.ReadingProgress, error) {
	if _, _, err := s.access.Authorize(ctx, documentID, userID); err != nil {
		return nil, err
	}

	progress, err := s.repository.Get(ctx, documentID, userID)
	if err != nil && !goErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Internal(err)
	}

	if page, ok := s.tracker.Pending(documentID, userID); ok {
		if progress == nil {
			progress = &domain.ReadingProgress{DocumentID: documentID, UserID: userID}
		}
		progress.CurrentPage = page
		return progress, nil
	}

	if progress == nil {
		return nil, errors.NotFound("No reading progress for this document", err)
	}
	return progress, nil
}
