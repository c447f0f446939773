package document

import (
	"clurb/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentRepository interface {
	// Create inserts the document and its owner membership in one transaction.
	Create(ctx context.Context, document *domain.Document) error
	FindByID(ctx context.Context, id uint64) (*domain.Document, error)
	GetMembership(ctx context.Context, docID, userID uint64) (*domain.Membership, error)
	ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]DocumentListItem, DocumentsMeta, error)
	UpdateTitle(ctx context.Context, docID uint64, title string) error
	UpdateTotalPages(ctx context.Context, docID uint64, total int) error
	// Delete removes the document together with everything hanging off it.
	Delete(ctx context.Context, docID uint64) error

	ListMembers(ctx context.Context, docID uint64) ([]MemberRow, error)
	MemberUserIDs(ctx context.Context, docID uint64) ([]uint64, error)
	UpdateRole(ctx context.Context, docID, userID uint64, role string) error
	RemoveMember(ctx context.Context, docID, userID uint64) (int64, error)

	FindInvitation(ctx context.Context, id uint64) (*domain.Invitation, error)
	FindInvitationFor(ctx context.Context, docID, inviteeID uint64) (*domain.Invitation, error)
	SaveInvitation(ctx context.Context, invitation *domain.Invitation) error
	ListPendingInvitations(ctx context.Context, inviteeID uint64) ([]domain.Invitation, error)
	// RespondInvitation stores the new status and, on accept, adds a viewer
	// membership. An existing membership is left untouched.
	RespondInvitation(ctx context.Context, invitation *domain.Invitation) error
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *domain.Document) error {
	now := time.Now().UTC()
	document.CreatedAt = now
	document.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(document).Error; err != nil {
			return err
		}
		return tx.Create(&domain.Membership{
			DocumentID: document.ID,
			UserID:     document.OwnerID,
			Role:       domain.RoleOwner,
			InvitedAt:  now,
		}).Error
	})
}

func (r *DocumentRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepositoryImpl) GetMembership(ctx context.Context, docID, userID uint64) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

// DocumentListItem is a library row: the document, the caller's role and
// where the caller stopped reading.
type DocumentListItem struct {
	ID            uint64     `json:"id"`
	Title         string     `json:"title"`
	FileURL       string     `json:"file_url"`
	FileType      string     `json:"file_type"`
	CoverImageURL *string    `json:"cover_image_url"`
	TotalPages    int        `json:"total_pages"`
	OwnerID       uint64     `json:"owner_id"`
	Role          string     `json:"role"`
	CurrentPage   *int       `json:"current_page"`
	LastReadAt    *time.Time `json:"last_read_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (r *DocumentRepositoryImpl) ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]DocumentListItem, DocumentsMeta, error) {
	db := r.db.WithContext(ctx)
	items := []DocumentListItem{}
	var totalRecords int64

	if err := db.Model(&domain.Membership{}).Where("user_id = ?", userID).Count(&totalRecords).Error; err != nil {
		return items, DocumentsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := db.Table("documents AS d").
		Select(`d.id, d.title, d.file_url, d.file_type, d.cover_image_url, d.total_pages, d.owner_id,
			m.role, rp.current_page, rp.last_read_at, d.created_at, d.updated_at`).
		Joins("JOIN memberships m ON m.document_id = d.id AND m.user_id = ?", userID).
		Joins("LEFT JOIN reading_progress rp ON rp.document_id = d.id AND rp.user_id = ?", userID).
		Order("COALESCE(rp.last_read_at, d.updated_at) DESC").
		Offset(offset).
		Limit(pageSize).
		Scan(&items).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return items, DocumentsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

func (r *DocumentRepositoryImpl) UpdateTitle(ctx context.Context, docID uint64, title string) error {
	return r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", docID).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()}).Error
}

func (r *DocumentRepositoryImpl) UpdateTotalPages(ctx context.Context, docID uint64, total int) error {
	return r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", docID).
		Update("total_pages", total).Error
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, docID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []any{
			&domain.ChatMessage{},
			&domain.Annotation{},
			&domain.ReadingProgress{},
			&domain.Invitation{},
			&domain.Membership{},
		}
		for _, model := range dependents {
			if err := tx.Where("document_id = ?", docID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&domain.Document{}, docID).Error
	})
}

// MemberRow is a membership joined with the member's profile and progress.
type MemberRow struct {
	UserID      uint64
	Role        string
	InvitedAt   time.Time
	Username    string
	DisplayName *string
	AvatarURL   *string
	CurrentPage *int
	LastReadAt  *time.Time
}

func (r *DocumentRepositoryImpl) ListMembers(ctx context.Context, docID uint64) ([]MemberRow, error) {
	var rows []MemberRow
	err := r.db.WithContext(ctx).Table("memberships AS m").
		Select(`m.user_id, m.role, m.invited_at, u.username, u.display_name, u.avatar_url,
			rp.current_page, rp.last_read_at`).
		Joins("JOIN users u ON u.id = m.user_id").
		Joins("LEFT JOIN reading_progress rp ON rp.document_id = m.document_id AND rp.user_id = m.user_id").
		Where("m.document_id = ?", docID).
		Order("m.invited_at ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *DocumentRepositoryImpl) MemberUserIDs(ctx context.Context, docID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("document_id = ?", docID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *DocumentRepositoryImpl) UpdateRole(ctx context.Context, docID, userID uint64, role string) error {
	return r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("document_id = ? AND user_id = ?", docID, userID).
		Update("role", role).Error
}

func (r *DocumentRepositoryImpl) RemoveMember(ctx context.Context, docID, userID uint64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ? AND role <> ?", docID, userID, domain.RoleOwner).
		Delete(&domain.Membership{})
	return result.RowsAffected, result.Error
}

func (r *DocumentRepositoryImpl) FindInvitation(ctx context.Context, id uint64) (*domain.Invitation, error) {
	var inv domain.Invitation
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *DocumentRepositoryImpl) FindInvitationFor(ctx context.Context, docID, inviteeID uint64) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND invitee_id = ?", docID, inviteeID).
		Order("created_at DESC").
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *DocumentRepositoryImpl) SaveInvitation(ctx context.Context, invitation *domain.Invitation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(invitation).Error
}

func (r *DocumentRepositoryImpl) ListPendingInvitations(ctx context.Context, inviteeID uint64) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Preload("Document").
		Preload("Inviter").
		Where("invitee_id = ? AND status = ?", inviteeID, domain.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error
	return invitations, err
}

func (r *DocumentRepositoryImpl) RespondInvitation(ctx context.Context, invitation *domain.Invitation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Invitation{}).
			Where("id = ?", invitation.ID).
			Updates(map[string]any{
				"status":       invitation.Status,
				"responded_at": invitation.RespondedAt,
			}).Error; err != nil {
			return err
		}

		if invitation.Status != domain.InvitationAccepted {
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&domain.Membership{
			DocumentID: invitation.DocumentID,
			UserID:     invitation.InviteeID,
			Role:       domain.RoleViewer,
			InvitedAt:  time.Now().UTC(),
		}).Error
	})
}
