package domain

import (
	"time"

	"gorm.io/datatypes"
)

type ReadingProgress struct {
	ID          uint64    `json:"id"`
	DocumentID  uint64    `gorm:"uniqueIndex:idx_progress_document_user;not null" json:"document_id"`
	UserID      uint64    `gorm:"uniqueIndex:idx_progress_document_user;not null" json:"user_id"`
	CurrentPage int       `gorm:"not null;check:current_page >= 1" json:"current_page"`
	LastReadAt  time.Time `json:"last_read_at"`
}

func (ReadingProgress) TableName() string {
	return "reading_progress"
}

// Annotation is a positioned note ("sticker") on one page of a document.
type Annotation struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `gorm:"index:idx_annotation_page;not null" json:"document_id"`
	PageNumber int       `gorm:"index:idx_annotation_page;not null" json:"page_number"`
	AuthorID   uint64    `gorm:"not null" json:"author_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	PositionX  float64   `gorm:"not null" json:"position_x"`
	PositionY  float64   `gorm:"not null" json:"position_y"`
	Style      string    `gorm:"column:color;not null" json:"color"`
	IsSurprise bool      `gorm:"default:true" json:"is_surprise"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Author     User      `gorm:"foreignKey:AuthorID" json:"-"`
}

func (Annotation) TableName() string {
	return "sticky_notes"
}

type ChatMessage struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `gorm:"index:idx_chat_document_created;not null" json:"document_id"`
	SenderID   uint64    `gorm:"not null" json:"sender_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"index:idx_chat_document_created" json:"created_at"`
	Sender     User      `gorm:"foreignKey:SenderID" json:"-"`
}

const (
	ActionFileUploaded      = "file_uploaded"
	ActionFileRenamed       = "file_renamed"
	ActionFileShared        = "file_shared"
	ActionFileJoined        = "file_joined"
	ActionPageViewed        = "page_viewed"
	ActionStickyNoteCreated = "sticky_note_created"
	ActionChatMessageSent   = "chat_message_sent"
)

type ActivityEvent struct {
	ID         uint64            `json:"id"`
	UserID     uint64            `gorm:"index:idx_activity_user_created;not null" json:"user_id"`
	DocumentID *uint64           `gorm:"index" json:"document_id"`
	ActionType string            `gorm:"type:varchar(64);not null" json:"action_type"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index:idx_activity_user_created" json:"created_at"`
}

func (ActivityEvent) TableName() string {
	return "activity_log"
}
