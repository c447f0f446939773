package annotation

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"clurb/internal/metrics"
	"context"
	goErrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const MaxContentLength = 2000

type Authorizer interface {
	Authorize(ctx context.Context, documentID, userID uint64) (*domain.Document, string, error)
}

type ActivityRecorder interface {
	Record(userID, documentID uint64, action string, metadata map[string]any)
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*View, error)
	ListByPage(ctx context.Context, documentID, userID uint64, page int) ([]View, error)
	UpdatePosition(ctx context.Context, id, userID uint64, pos Position) (*domain.Annotation, error)
	Delete(ctx context.Context, id, userID uint64) error
}

type CreateInput struct {
	DocumentID uint64
	AuthorID   uint64
	PageNumber int
	Content    string
	Position   Position
	Style      string
}

// View is an annotation as members see it: parsed style and author profile.
type View struct {
	domain.Annotation
	Sticker Style          `json:"sticker"`
	Author  domain.Profile `json:"author"`
}

func toView(note domain.Annotation) View {
	return View{
		Annotation: note,
		Sticker:    ParseStyle(note.Style),
		Author:     note.Author.ToProfile(),
	}
}

type DefaultService struct {
	repository Repository
	access     Authorizer
	recorder   ActivityRecorder
	logger     *zap.Logger
}

func NewService(repository Repository, access Authorizer, recorder ActivityRecorder, logger *zap.Logger) Service {
	return &DefaultService{repository: repository, access: access, recorder: recorder, logger: logger}
}

func (s *DefaultService) Create(ctx context.Context, input CreateInput) (*View, error) {
	doc, _, err := s.access.Authorize(ctx, input.DocumentID, input.AuthorID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	if content == "" || utf8.RuneCountInString(content) > MaxContentLength {
		return nil, errors.UnprocessableEntity(fmt.Sprintf("content must be 1 to %d characters", MaxContentLength), nil)
	}
	if err := validatePage(doc, input.PageNumber); err != nil {
		return nil, err
	}

	pos := input.Position.Clamp()
	note := &domain.Annotation{
		DocumentID: input.DocumentID,
		PageNumber: input.PageNumber,
		AuthorID:   input.AuthorID,
		Content:    content,
		PositionX:  pos.X,
		PositionY:  pos.Y,
		Style:      ParseStyle(input.Style).String(),
		IsSurprise: true,
	}

	if err := s.repository.Create(ctx, note); err != nil {
		metrics.AnnotationOps.WithLabelValues("create", "error").Inc()
		return nil, errors.Internal(err)
	}
	metrics.AnnotationOps.WithLabelValues("create", "success").Inc()

	// the note is stored; a missing author profile must not fail the create
	if author, err := s.repository.FindUser(ctx, input.AuthorID); err == nil {
		note.Author = *author
	} else {
		s.logger.Warn("note author lookup failed", zap.Uint64("note_id", note.ID), zap.Error(err))
	}

	s.recorder.Record(input.AuthorID, input.DocumentID, domain.ActionStickyNoteCreated, map[string]any{
		"page":    input.PageNumber,
		"note_id": note.ID,
	})

	view := toView(*note)
	return &view, nil
}

func (s *DefaultService) ListByPage(ctx context.Context, documentID, userID uint64, page int) ([]View, error) {
	doc, _, err := s.access.Authorize(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if err := validatePage(doc, page); err != nil {
		return nil, err
	}

	notes, err := s.repository.ListByPage(ctx, documentID, page)
	if err != nil {
		return nil, errors.Internal(err)
	}

	views := make([]View, 0, len(notes))
	for _, n := range notes {
		views = append(views, toView(n))
	}
	return views, nil
}

func (s *DefaultService) UpdatePosition(ctx context.Context, id, userID uint64, pos Position) (*domain.Annotation, error) {
	note, err := s.loadForMember(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	pos = pos.Clamp()
	rows, err := s.repository.UpdatePosition(ctx, id, userID, pos)
	if err != nil {
		metrics.AnnotationOps.WithLabelValues("move", "error").Inc()
		return nil, errors.Internal(err)
	}
	if rows == 0 {
		metrics.AnnotationOps.WithLabelValues("move", "forbidden").Inc()
		return nil, errors.Forbidden("Only the author can move this note", nil)
	}
	metrics.AnnotationOps.WithLabelValues("move", "success").Inc()

	note.PositionX = pos.X
	note.PositionY = pos.Y
	return note, nil
}

func (s *DefaultService) Delete(ctx context.Context, id, userID uint64) error {
	if _, err := s.loadForMember(ctx, id, userID); err != nil {
		return err
	}

	rows, err := s.repository.Delete(ctx, id, userID)
	if err != nil {
		metrics.AnnotationOps.WithLabelValues("delete", "error").Inc()
		return errors.Internal(err)
	}
	if rows == 0 {
		metrics.AnnotationOps.WithLabelValues("delete", "forbidden").Inc()
		return errors.Forbidden("Only the author can delete this note", nil)
	}
	metrics.AnnotationOps.WithLabelValues("delete", "success").Inc()
	return nil
}

// loadForMember hides notes of documents the caller cannot see behind a 404.
func (s *DefaultService) loadForMember(ctx context.Context, id, userID uint64) (*domain.Annotation, error) {
	note, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if goErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Note not found", err)
		}
		return nil, errors.Internal(err)
	}
	if _, _, err := s.access.Authorize(ctx, note.DocumentID, userID); err != nil {
		return nil, err
	}
	return note, nil
}

func validatePage(doc *domain.Document, page int) error {
	if page < 1 {
		return errors.UnprocessableEntity("page must be at least 1", nil)
	}
	if doc.TotalPages > 0 && page > doc.TotalPages {
		return errors.UnprocessableEntity(fmt.Sprintf("page must be at most %d", doc.TotalPages), nil)
	}
	return nil
}
