package agent

import (
	"clurb/internal/domain"
	"context"
	"math"
	"time"

	"gorm.io/gorm"
)

// BookProgress is one library entry with the reader's position in it.
type BookProgress struct {
	DocumentID      uint64     `json:"-"`
	Title           string     `json:"title"`
	CurrentPage     int        `json:"current_page"`
	TotalPages      int        `json:"total_pages"`
	PercentComplete int        `json:"percent_complete"`
	HasStarted      bool       `json:"has_started"`
	LastReadAt      *time.Time `json:"last_read_at"`
}

type NoteSummary struct {
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Page      int       `json:"page"`
	BookTitle string    `json:"book_title"`
	CreatedAt time.Time `json:"created_at"`
}

type Reader struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	CurrentPage int        `json:"current_page"`
	LastReadAt  *time.Time `json:"last_read_at"`
}

// Library answers the reading questions the assistant's tools ask. Every
// query is limited to documents the asking user is a member of.
type Library interface {
	LastRead(ctx context.Context, userID uint64) (*BookProgress, error)
	// Books lists the user's library, newest first. A non-empty title keeps
	// only case-insensitive partial matches.
	Books(ctx context.Context, userID uint64, title string, limit int) ([]BookProgress, error)
	// NotesFromOthers returns notes other users left in documents userID owns.
	NotesFromOthers(ctx context.Context, userID uint64, limit int) ([]NoteSummary, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	// SharedProgress is otherID's progress on documents both users belong to.
	SharedProgress(ctx context.Context, userID, otherID uint64, title string) ([]BookProgress, error)
	Readers(ctx context.Context, documentID, excludeUserID uint64) ([]Reader, error)
}

type LibraryImpl struct {
	db *gorm.DB
}

func NewLibrary(db *gorm.DB) Library {
	return &LibraryImpl{db: db}
}

const progressColumns = `d.id AS document_id, d.title, d.total_pages,
	COALESCE(rp.current_page, 0) AS current_page, rp.last_read_at,
	rp.id IS NOT NULL AS has_started`

func (r *LibraryImpl) LastRead(ctx context.Context, userID uint64) (*BookProgress, error) {
	var rows []BookProgress
	err := r.db.WithContext(ctx).Table("reading_progress AS rp").
		Select(progressColumns).
		Joins("JOIN documents d ON d.id = rp.document_id").
		Joins("JOIN memberships m ON m.document_id = d.id AND m.user_id = rp.user_id").
		Where("rp.user_id = ?", userID).
		Order("rp.last_read_at DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	withPercent(rows)
	return &rows[0], nil
}

func (r *LibraryImpl) Books(ctx context.Context, userID uint64, title string, limit int) ([]BookProgress, error) {
	rows := []BookProgress{}
	query := r.db.WithContext(ctx).Table("documents AS d").
		Select(progressColumns).
		Joins("JOIN memberships m ON m.document_id = d.id AND m.user_id = ?", userID).
		Joins("LEFT JOIN reading_progress rp ON rp.document_id = d.id AND rp.user_id = ?", userID)
	if title != "" {
		query = query.Where("d.title ILIKE ?", "%"+title+"%")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("d.created_at DESC").Scan(&rows).Error
	return withPercent(rows), err
}

func (r *LibraryImpl) NotesFromOthers(ctx context.Context, userID uint64, limit int) ([]NoteSummary, error) {
	notes := []NoteSummary{}
	err := r.db.WithContext(ctx).Table("sticky_notes AS n").
		Select(`n.content, COALESCE(u.display_name, u.username) AS author,
			n.page_number AS page, d.title AS book_title, n.created_at`).
		Joins("JOIN documents d ON d.id = n.document_id").
		Joins("JOIN users u ON u.id = n.author_id").
		Where("d.owner_id = ? AND n.author_id <> ?", userID, userID).
		Order("n.created_at DESC").
		Limit(limit).
		Scan(&notes).Error
	return notes, err
}

func (r *LibraryImpl) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *LibraryImpl) SharedProgress(ctx context.Context, userID, otherID uint64, title string) ([]BookProgress, error) {
	rows := []BookProgress{}
	query := r.db.WithContext(ctx).Table("reading_progress AS rp").
		Select(progressColumns).
		Joins("JOIN documents d ON d.id = rp.document_id").
		Joins("JOIN memberships mine ON mine.document_id = d.id AND mine.user_id = ?", userID).
		Joins("JOIN memberships theirs ON theirs.document_id = d.id AND theirs.user_id = ?", otherID).
		Where("rp.user_id = ?", otherID)
	if title != "" {
		query = query.Where("d.title ILIKE ?", "%"+title+"%")
	}
	err := query.Order("rp.last_read_at DESC").Scan(&rows).Error
	return withPercent(rows), err
}

func (r *LibraryImpl) Readers(ctx context.Context, documentID, excludeUserID uint64) ([]Reader, error) {
	readers := []Reader{}
	err := r.db.WithContext(ctx).Table("memberships AS m").
		Select(`u.username, COALESCE(u.display_name, u.username) AS display_name,
			COALESCE(rp.current_page, 0) AS current_page, rp.last_read_at`).
		Joins("JOIN users u ON u.id = m.user_id").
		Joins("LEFT JOIN reading_progress rp ON rp.document_id = m.document_id AND rp.user_id = m.user_id").
		Where("m.document_id = ? AND m.user_id <> ?", documentID, excludeUserID).
		Order("rp.last_read_at DESC NULLS LAST").
		Scan(&readers).Error
	return readers, err
}

func withPercent(rows []BookProgress) []BookProgress {
	for i := range rows {
		rows[i].PercentComplete = percent(rows[i].CurrentPage, rows[i].TotalPages)
	}
	return rows
}

func percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(current) * 100 / float64(total)))
}
