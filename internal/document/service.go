package document

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"clurb/internal/pdfx"
	"clurb/internal/storage"
	"clurb/redis"
	"context"
	defError "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pdfContentType = "application/pdf"

type Service interface {
	Authorize(ctx context.Context, docID, userID uint64) (*domain.Document, string, error)
	Upload(ctx context.Context, input UploadInput) (*domain.Document, error)
	ListForUser(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error)
	GetDocumentByID(ctx context.Context, docID, userID uint64) (*DocumentShowResponse, error)
	RenameDocument(ctx context.Context, docID, userID uint64, title string) (*domain.Document, error)
	SetTotalPages(ctx context.Context, docID, userID uint64, total int) (*domain.Document, error)
	DeleteDocument(ctx context.Context, docID, userID uint64) error
	PageText(ctx context.Context, docID, userID uint64, page int) (string, error)

	ListMembers(ctx context.Context, docID, requesterID uint64) ([]MemberDTO, error)
	ChangeRole(ctx context.Context, docID, requesterID, targetUserID uint64, role string) error
	RemoveMember(ctx context.Context, docID, requesterID, targetUserID uint64) error
	Leave(ctx context.Context, docID, userID uint64) error

	Invite(ctx context.Context, docID, inviterID, inviteeID uint64, message *string) (*domain.Invitation, error)
	ListPendingInvitations(ctx context.Context, userID uint64) ([]InvitationDTO, error)
	RespondInvitation(ctx context.Context, invitationID, userID uint64, accept bool) (*domain.Invitation, error)
}

type UserProvider interface {
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
}

type ActivityRecorder interface {
	Record(userID, documentID uint64, action string, metadata map[string]any)
}

type PresenceReader interface {
	Online(ctx context.Context, documentID uint64) (map[uint64]struct{}, error)
}

// ProgressCanceller drops a pending progress write for a user who lost access.
type ProgressCanceller interface {
	Cancel(documentID, userID uint64)
}

type Deps struct {
	Repository DocumentRepository
	Users      UserProvider
	Store      storage.Store
	Cache      *redis.Cache
	Presence   PresenceReader
	Progress   ProgressCanceller
	Recorder   ActivityRecorder
	Logger     *zap.Logger
}

type DefaultService struct {
	repository DocumentRepository
	users      UserProvider
	store      storage.Store
	cache      *redis.Cache
	presence   PresenceReader
	progress   ProgressCanceller
	recorder   ActivityRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(deps Deps) *DefaultService {
	return &DefaultService{
		repository: deps.Repository,
		users:      deps.Users,
		store:      deps.Store,
		cache:      deps.Cache,
		presence:   deps.Presence,
		progress:   deps.Progress,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

func listVersionKey(userID uint64) string {
	return fmt.Sprintf("user:%d:docs:version", userID)
}

// invalidate bumps the library cache version of every given user, so the next
// list fetch misses.
func (s *DefaultService) invalidate(ctx context.Context, userIDs ...uint64) {
	for _, id := range userIDs {
		if err := s.cache.IncrementVersion(ctx, listVersionKey(id)); err != nil {
			s.logger.Warn("library cache invalidation failed", zap.Uint64("user_id", id), zap.Error(err))
		}
	}
}

func (s *DefaultService) invalidateMembers(ctx context.Context, docID uint64) {
	ids, err := s.repository.MemberUserIDs(ctx, docID)
	if err != nil {
		s.logger.Warn("member lookup for cache invalidation failed", zap.Uint64("document_id", docID), zap.Error(err))
		return
	}
	s.invalidate(ctx, ids...)
}

// InvalidateLibrary drops the user's cached library after their reading
// progress on documentID changed.
func (s *DefaultService) InvalidateLibrary(documentID, userID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.invalidate(ctx, userID)
}

// Authorize loads the document and the caller's role. Non-members get the
// same 404 as a missing document.
func (s *DefaultService) Authorize(ctx context.Context, docID, userID uint64) (*domain.Document, string, error) {
	membership, err := s.repository.GetMembership(ctx, docID, userID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errors.NotFound("Document not found", err)
		}
		return nil, "", errors.Internal(err)
	}

	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errors.NotFound("Document not found", err)
		}
		return nil, "", errors.Internal(err)
	}
	return doc, membership.Role, nil
}

func (s *DefaultService) authorizeOwner(ctx context.Context, docID, userID uint64, action string) (*domain.Document, error) {
	doc, role, err := s.Authorize(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleOwner {
		return nil, errors.Forbidden(fmt.Sprintf("Only owner can %s", action), nil)
	}
	return doc, nil
}

type UploadInput struct {
	OwnerID     uint64
	Title       string
	Filename    string
	ContentType string
	Data        []byte
}

func (s *DefaultService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	if len(input.Data) == 0 {
		return nil, errors.UnprocessableEntity("File is empty", nil)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = pdfContentType
	}

	totalPages := 0
	if contentType == pdfContentType {
		info, err := pdfx.Inspect(input.Data)
		if err != nil {
			return nil, errors.UnprocessableEntity("File is not a readable PDF", err)
		}
		totalPages = info.Pages
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSuffix(input.Filename, filepath.Ext(input.Filename))
	}
	if title == "" {
		return nil, errors.UnprocessableEntity("Title cannot be empty", nil)
	}

	key := storage.ObjectKey(input.OwnerID, input.Filename, s.now().UTC())
	url, err := s.store.Put(ctx, key, contentType, input.Data)
	if err != nil {
		return nil, errors.Internal(err)
	}

	doc := &domain.Document{
		OwnerID:    input.OwnerID,
		Title:      title,
		FileURL:    url,
		FileType:   contentType,
		TotalPages: totalPages,
	}
	if err := s.repository.Create(ctx, doc); err != nil {
		s.deleteBlob(url)
		return nil, errors.Internal(err)
	}

	s.invalidate(ctx, input.OwnerID)
	s.recorder.Record(input.OwnerID, doc.ID, domain.ActionFileUploaded, map[string]any{
		"title":     doc.Title,
		"file_type": doc.FileType,
	})

	return doc, nil
}

// deleteBlob is best effort: a leftover object is logged, never surfaced.
func (s *DefaultService) deleteBlob(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.Delete(ctx, url); err != nil {
		s.logger.Warn("blob deletion failed", zap.String("url", url), zap.Error(err))
	}
}

type PaginatedDocuments struct {
	Data []DocumentListItem `json:"data"`
	Meta DocumentsMeta      `json:"meta"`
}

func (s *DefaultService) ListForUser(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error) {
	// Get the current data version for this user's library
	v := s.cache.GetVersion(ctx, listVersionKey(userID))
	cacheKey := fmt.Sprintf("docs:u:%d:v:%d:p:%d:ps:%d", userID, v, page, pageSize)

	var result PaginatedDocuments
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return &result, nil
	}

	documents, meta, err := s.repository.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, errors.Internal(err)
	}
	result = PaginatedDocuments{Data: documents, Meta: meta}

	if err := s.cache.Set(ctx, cacheKey, result, 24*time.Hour); err != nil {
		s.logger.Warn("library cache write failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
	return &result, nil
}

type DocumentShowResponse struct {
	domain.Document
	Role string `json:"role"`
}

func (s *DefaultService) GetDocumentByID(ctx context.Context, docID, userID uint64) (*DocumentShowResponse, error) {
	doc, role, err := s.Authorize(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	return &DocumentShowResponse{Document: *doc, Role: role}, nil
}

func (s *DefaultService) RenameDocument(ctx context.Context, docID, userID uint64, title string) (*domain.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.UnprocessableEntity("Title cannot be empty", nil)
	}

	doc, err := s.authorizeOwner(ctx, docID, userID, "rename document")
	if err != nil {
		return nil, err
	}

	oldTitle := doc.Title
	if err := s.repository.UpdateTitle(ctx, docID, title); err != nil {
		return nil, errors.Internal(err)
	}
	doc.Title = title
	doc.UpdatedAt = s.now().UTC()

	s.invalidateMembers(ctx, docID)
	s.recorder.Record(userID, docID, domain.ActionFileRenamed, map[string]any{
		"old_title": oldTitle,
		"new_title": title,
	})

	return doc, nil
}

// SetTotalPages stores the page count a reader's viewer reported. It only
// writes when the value is valid and differs from what is stored.
func (s *DefaultService) SetTotalPages(ctx context.Context, docID, userID uint64, total int) (*domain.Document, error) {
	if total < 1 {
		return nil, errors.UnprocessableEntity("Total pages must be at least 1", nil)
	}

	doc, _, err := s.Authorize(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if doc.TotalPages == total {
		return doc, nil
	}

	if err := s.repository.UpdateTotalPages(ctx, docID, total); err != nil {
		return nil, errors.Internal(err)
	}
	doc.TotalPages = total
	s.invalidateMembers(ctx, docID)

	return doc, nil
}

func (s *DefaultService) DeleteDocument(ctx context.Context, docID, userID uint64) error {
	doc, err := s.authorizeOwner(ctx, docID, userID, "delete document")
	if err != nil {
		return err
	}

	members, err := s.repository.MemberUserIDs(ctx, docID)
	if err != nil {
		return errors.Internal(err)
	}

	s.deleteBlob(doc.FileURL)

	if err := s.repository.Delete(ctx, docID); err != nil {
		return errors.Internal(err)
	}

	for _, id := range members {
		s.progress.Cancel(docID, id)
	}
	s.invalidate(ctx, members...)
	return nil
}

func (s *DefaultService) PageText(ctx context.Context, docID, userID uint64, page int) (string, error) {
	doc, _, err := s.Authorize(ctx, docID, userID)
	if err != nil {
		return "", err
	}
	if doc.FileType != pdfContentType {
		return "", errors.UnprocessableEntity("Text is only available for PDF documents", nil)
	}

	data, err := s.store.Get(ctx, doc.FileURL)
	if err != nil {
		if defError.Is(err, storage.ErrNotFound) {
			return "", errors.NotFound("Document file not found", err)
		}
		return "", errors.Internal(err)
	}

	text, err := pdfx.PageText(data, page)
	if err != nil {
		if defError.Is(err, pdfx.ErrPageOutOfRange) {
			return "", errors.UnprocessableEntity("Page is out of range", err)
		}
		return "", errors.Internal(err)
	}
	return text, nil
}

type MemberDTO struct {
	User        domain.Profile `json:"user"`
	Role        string         `json:"role"`
	InvitedAt   time.Time      `json:"invited_at"`
	CurrentPage *int           `json:"current_page"`
	LastReadAt  *time.Time     `json:"last_read_at"`
	Online      bool           `json:"online"`
}

func (s *DefaultService) ListMembers(ctx context.Context, docID, requesterID uint64) ([]MemberDTO, error) {
	if _, _, err := s.Authorize(ctx, docID, requesterID); err != nil {
		return nil, err
	}

	rows, err := s.repository.ListMembers(ctx, docID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	online, err := s.presence.Online(ctx, docID)
	if err != nil {
		s.logger.Warn("presence lookup failed", zap.Uint64("document_id", docID), zap.Error(err))
		online = map[uint64]struct{}{}
	}

	result := make([]MemberDTO, 0, len(rows))
	for _, r := range rows {
		_, isOnline := online[r.UserID]
		result = append(result, MemberDTO{
			User: domain.Profile{
				ID:          r.UserID,
				Username:    r.Username,
				DisplayName: r.DisplayName,
				AvatarURL:   r.AvatarURL,
			},
			Role:        r.Role,
			InvitedAt:   r.InvitedAt,
			CurrentPage: r.CurrentPage,
			LastReadAt:  r.LastReadAt,
			Online:      isOnline,
		})
	}
	return result, nil
}

func (s *DefaultService) targetMembership(ctx context.Context, docID, requesterID, targetUserID uint64, action string) (*domain.Membership, error) {
	if _, err := s.authorizeOwner(ctx, docID, requesterID, action); err != nil {
		return nil, err
	}
	if requesterID == targetUserID {
		return nil, errors.UnprocessableEntity("Owner role cannot be changed", nil)
	}

	target, err := s.repository.GetMembership(ctx, docID, targetUserID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.UnprocessableEntity("User is not a member", err)
		}
		return nil, errors.Internal(err)
	}
	return target, nil
}

func (s *DefaultService) ChangeRole(ctx context.Context, docID, requesterID, targetUserID uint64, role string) error {
	if role != domain.RoleEditor && role != domain.RoleViewer {
		return errors.UnprocessableEntity("Role must be editor or viewer", nil)
	}

	target, err := s.targetMembership(ctx, docID, requesterID, targetUserID, "change roles")
	if err != nil {
		return err
	}
	if target.Role == role {
		return nil
	}

	if err := s.repository.UpdateRole(ctx, docID, targetUserID, role); err != nil {
		return errors.Internal(err)
	}
	s.invalidate(ctx, targetUserID)
	return nil
}

func (s *DefaultService) RemoveMember(ctx context.Context, docID, requesterID, targetUserID uint64) error {
	if _, err := s.targetMembership(ctx, docID, requesterID, targetUserID, "remove members"); err != nil {
		return err
	}
	return s.removeMembership(ctx, docID, targetUserID)
}

// Leave drops the caller's own membership. The owner cannot leave.
func (s *DefaultService) Leave(ctx context.Context, docID, userID uint64) error {
	_, role, err := s.Authorize(ctx, docID, userID)
	if err != nil {
		return err
	}
	if role == domain.RoleOwner {
		return errors.UnprocessableEntity("Owner cannot leave, delete the document instead", nil)
	}
	return s.removeMembership(ctx, docID, userID)
}

func (s *DefaultService) removeMembership(ctx context.Context, docID, userID uint64) error {
	rows, err := s.repository.RemoveMember(ctx, docID, userID)
	if err != nil {
		return errors.Internal(err)
	}
	if rows == 0 {
		return errors.UnprocessableEntity("User is not a member", nil)
	}

	s.progress.Cancel(docID, userID)
	s.invalidate(ctx, userID)
	return nil
}

func (s *DefaultService) Invite(ctx context.Context, docID, inviterID, inviteeID uint64, message *string) (*domain.Invitation, error) {
	if _, err := s.authorizeOwner(ctx, docID, inviterID, "invite"); err != nil {
		return nil, err
	}
	if inviterID == inviteeID {
		return nil, errors.UnprocessableEntity("Can't invite yourself", nil)
	}

	if _, err := s.users.GetUserByID(ctx, inviteeID); err != nil {
		return nil, errors.UnprocessableEntity("Can't find user", err)
	}

	if _, err := s.repository.GetMembership(ctx, docID, inviteeID); err == nil {
		return nil, errors.Conflict("User is already a member", nil)
	} else if !defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Internal(err)
	}

	existing, err := s.repository.FindInvitationFor(ctx, docID, inviteeID)
	switch {
	case err == nil && existing.Status == domain.InvitationPending:
		return nil, errors.Conflict("Invitation already sent", nil)
	case err == nil:
		// resend a declined or accepted invitation
		existing.Status = domain.InvitationPending
		existing.InviterID = inviterID
		existing.Message = message
		existing.CreatedAt = s.now().UTC()
		existing.RespondedAt = nil
		if err := s.repository.SaveInvitation(ctx, existing); err != nil {
			return nil, errors.Internal(err)
		}
		return existing, nil
	case !defError.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Internal(err)
	}

	invitation := &domain.Invitation{
		DocumentID: docID,
		InviterID:  inviterID,
		InviteeID:  inviteeID,
		Status:     domain.InvitationPending,
		Message:    message,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repository.SaveInvitation(ctx, invitation); err != nil {
		return nil, errors.Internal(err)
	}

	s.recorder.Record(inviterID, docID, domain.ActionFileShared, map[string]any{
		"shared_with": inviteeID,
	})
	return invitation, nil
}

type InvitationDTO struct {
	ID        uint64         `json:"id"`
	Status    string         `json:"status"`
	Message   *string        `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
	Document  InvitationFile `json:"file"`
	Inviter   domain.Profile `json:"inviter"`
}

type InvitationFile struct {
	ID            uint64  `json:"id"`
	Title         string  `json:"title"`
	CoverImageURL *string `json:"cover_image_url"`
}

func (s *DefaultService) ListPendingInvitations(ctx context.Context, userID uint64) ([]InvitationDTO, error) {
	invitations, err := s.repository.ListPendingInvitations(ctx, userID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	result := make([]InvitationDTO, 0, len(invitations))
	for _, inv := range invitations {
		result = append(result, InvitationDTO{
			ID:        inv.ID,
			Status:    inv.Status,
			Message:   inv.Message,
			CreatedAt: inv.CreatedAt,
			Document: InvitationFile{
				ID:            inv.Document.ID,
				Title:         inv.Document.Title,
				CoverImageURL: inv.Document.CoverImageURL,
			},
			Inviter: inv.Inviter.ToProfile(),
		})
	}
	return result, nil
}

func (s *DefaultService) RespondInvitation(ctx context.Context, invitationID, userID uint64, accept bool) (*domain.Invitation, error) {
	invitation, err := s.repository.FindInvitation(ctx, invitationID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Invitation not found", err)
		}
		return nil, errors.Internal(err)
	}
	if invitation.InviteeID != userID {
		return nil, errors.NotFound("Invitation not found", nil)
	}
	if invitation.Status != domain.InvitationPending {
		return nil, errors.UnprocessableEntity("Invitation already responded to", nil)
	}

	now := s.now().UTC()
	invitation.RespondedAt = &now
	invitation.Status = domain.InvitationDeclined
	if accept {
		invitation.Status = domain.InvitationAccepted
	}

	if err := s.repository.RespondInvitation(ctx, invitation); err != nil {
		return nil, errors.Internal(err)
	}

	if accept {
		s.invalidate(ctx, userID)
		s.recorder.Record(userID, invitation.DocumentID, domain.ActionFileJoined, nil)
	}
	return invitation, nil
}
