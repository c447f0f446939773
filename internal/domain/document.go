package domain

import (
	"time"
)

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
	RoleNone   = "none"
)

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

type Document struct {
	ID            uint64    `json:"id"`
	OwnerID       uint64    `gorm:"index;not null" json:"owner_id"`
	Title         string    `gorm:"not null" json:"title"`
	Description   *string   `json:"description"`
	FileURL       string    `gorm:"not null" json:"file_url"`
	FileType      string    `gorm:"not null;default:'application/pdf'" json:"file_type"`
	CoverImageURL *string   `json:"cover_image_url"`
	TotalPages    int       `gorm:"not null;default:0" json:"total_pages"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Membership is a user's role-scoped access to a Document.
type Membership struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `gorm:"uniqueIndex:idx_membership_document_user;not null" json:"document_id"`
	UserID     uint64    `gorm:"uniqueIndex:idx_membership_document_user;not null;index" json:"user_id"`
	Role       string    `gorm:"type:varchar(16);not null" json:"role"`
	InvitedAt  time.Time `json:"invited_at"`
	User       User      `gorm:"foreignKey:UserID" json:"-"`
}

type Invitation struct {
	ID          uint64     `json:"id"`
	DocumentID  uint64     `gorm:"index;not null" json:"document_id"`
	InviterID   uint64     `gorm:"not null" json:"inviter_id"`
	InviteeID   uint64     `gorm:"index;not null" json:"invitee_id"`
	Status      string     `gorm:"type:varchar(16);not null" json:"status"`
	Message     *string    `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at"`
	Document    Document   `gorm:"foreignKey:DocumentID" json:"-"`
	Inviter     User       `gorm:"foreignKey:InviterID" json:"-"`
}

func (Invitation) TableName() string {
	return "file_invitations"
}
